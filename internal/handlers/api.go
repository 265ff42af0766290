// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers of the card service: the
// JSON generation endpoints, image endpoints and the card pages.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"newyearcard/internal/ai"
	"newyearcard/internal/background"
	"newyearcard/internal/greeting"
	"newyearcard/internal/models"
	"newyearcard/internal/store"
)

// maxJSONBody bounds request bodies of the JSON endpoints.
const maxJSONBody = 64 << 10

// API groups the JSON generation endpoints.
type API struct {
	greetings   *greeting.Service
	backgrounds *background.Service
	registry    *ai.Registry
	events      *store.EventStore
}

// NewAPI creates the API handler group. registry and events may be nil.
func NewAPI(greetings *greeting.Service, backgrounds *background.Service, registry *ai.Registry, events *store.EventStore) *API {
	return &API{
		greetings:   greetings,
		backgrounds: backgrounds,
		registry:    registry,
		events:      events,
	}
}

type greetingRequest struct {
	Name string `json:"name"`
}

type imageRequest struct {
	Prompt string `json:"prompt"`
}

type imageResponse struct {
	ImageURL string `json:"imageUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GenerateGreeting returns {poem, wish} for a name given as ?name= on GET,
// or as a JSON body or form field on POST.
func (a *API) GenerateGreeting(w http.ResponseWriter, r *http.Request) {
	name := greetingName(w, r)
	slog.Debug("generate greeting", "method", r.Method, "name_hash", models.HashName(name))

	if strings.TrimSpace(name) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Name is required"})
		return
	}

	start := time.Now()
	g, err := a.greetings.Generate(r.Context(), name)
	if errors.Is(err, greeting.ErrInvalidName) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("Name must be at most %d characters", greeting.MaxNameRunes),
		})
		return
	}
	if err != nil {
		// The client went away; nothing useful can be written.
		slog.Info("greeting request aborted", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Request cancelled"})
		return
	}

	a.events.Record(r.Context(), models.Event{
		Kind:       models.EventGreeting,
		Source:     g.Source,
		Fallback:   g.Source == greeting.SourceFallback,
		NameHash:   models.HashName(name),
		DurationMS: time.Since(start).Milliseconds(),
	})

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, g)
}

// greetingName extracts the name from the query, a JSON body, or a form.
// Unparseable bodies yield an empty name.
func greetingName(w http.ResponseWriter, r *http.Request) string {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("name")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var req greetingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return ""
		}
		return req.Name
	}

	if err := r.ParseForm(); err != nil {
		return ""
	}
	return r.PostForm.Get("name")
}

// GenerateImage produces a background for {prompt} and returns its URL.
// Generation failures degrade to a fallback background; only a missing
// prompt or a moderation flag is reported as an error.
func (a *API) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Prompt is required"})
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Prompt is required"})
		return
	}
	if msg := validatePrompt(prompt); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}

	if !a.checkPromptSafety(w, r, prompt) {
		return
	}

	start := time.Now()
	u := a.backgrounds.Generate(r.Context(), prompt)
	a.events.Record(r.Context(), models.Event{
		Kind:       models.EventBackground,
		Source:     "generate",
		Fallback:   !a.backgrounds.Enabled() || strings.HasPrefix(u, "data:"),
		Detail:     truncate(prompt, 200),
		DurationMS: time.Since(start).Milliseconds(),
	})

	writeJSON(w, http.StatusOK, imageResponse{ImageURL: u})
}

// checkPromptSafety runs the prompt through the moderation API. Returns
// true if the prompt is safe or no moderator is available. If the prompt
// is flagged, writes a 422 response and returns false.
func (a *API) checkPromptSafety(w http.ResponseWriter, r *http.Request, prompt string) bool {
	if a.registry == nil {
		return true
	}
	result, err := a.registry.CheckPrompt(r.Context(), prompt)
	if err != nil {
		slog.Warn("moderation check failed, allowing prompt", "error", err)
		return true // providers have their own safety filters
	}
	if result.Safe {
		return true
	}

	categories := strings.Join(result.Categories, ", ")
	slog.Warn("prompt flagged by moderation", "categories", categories)
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Error: fmt.Sprintf("Prompt was flagged for: %s. Please reformulate it and try again.", categories),
	})
	return false
}

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
