// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ModerationResult contains the outcome of a prompt safety check.
type ModerationResult struct {
	Safe       bool     // true if the prompt passes moderation
	Categories []string // flagged category names, sorted (empty when safe)
}

// Moderator checks user prompts for policy violations before they are
// sent to an image provider.
type Moderator interface {
	CheckSafety(ctx context.Context, text string) (*ModerationResult, error)
}

// httpModerator talks to an OpenAI-style POST .../moderations endpoint.
// OpenAI's is free for all key holders; Mistral's is paid and omits the
// top-level "flagged" field.
type httpModerator struct {
	name    string
	model   string
	url     string
	apiKey  string
	client  *http.Client
	flagged func(r modResult) bool
}

func newOpenAIModerator(apiKey, baseURL string) *httpModerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &httpModerator{
		name:    "openai",
		model:   "omni-moderation-latest",
		url:     baseURL + "/moderations",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		flagged: func(r modResult) bool { return r.Flagged },
	}
}

func newMistralModerator(apiKey, baseURL string) *httpModerator {
	if baseURL == "" {
		baseURL = "https://api.mistral.ai/v1"
	}
	return &httpModerator{
		name:   "mistral",
		model:  "mistral-moderation-latest",
		url:    baseURL + "/moderations",
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
		flagged: func(r modResult) bool {
			for _, v := range r.Categories {
				if v {
					return true
				}
			}
			return false
		},
	}
}

func (m *httpModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	payload, err := json.Marshal(modRequest{Model: m.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%s moderation marshal: %w", m.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s moderation request: %w", m.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s moderation http: %w", m.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s moderation read body: %w", m.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &moderationHTTPError{provider: m.name, status: resp.StatusCode, body: string(respBody)}
	}

	var result modResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%s moderation unmarshal: %w", m.name, err)
	}

	if len(result.Results) == 0 || !m.flagged(result.Results[0]) {
		return &ModerationResult{Safe: true}, nil
	}

	var flagged []string
	for cat, isFlagged := range result.Results[0].Categories {
		if isFlagged {
			flagged = append(flagged, displayCategory(cat))
		}
	}
	sort.Strings(flagged)

	return &ModerationResult{Safe: false, Categories: flagged}, nil
}

// displayCategory converts "hate/threatening" to "hate (threatening)" and
// "self_harm" to "self harm".
func displayCategory(cat string) string {
	display := cat
	if strings.Contains(cat, "/") {
		display = strings.ReplaceAll(cat, "/", " (") + ")"
	}
	return strings.ReplaceAll(display, "_", " ")
}

type moderationHTTPError struct {
	provider string
	status   int
	body     string
}

func (e *moderationHTTPError) Error() string {
	return fmt.Sprintf("%s moderation API error (status %d): %s", e.provider, e.status, e.body)
}

// fallbackModerator asks the primary moderator first and switches to the
// secondary when the primary fails (project-scoped OpenAI keys, for
// instance, are refused by the moderation endpoint).
type fallbackModerator struct {
	primary   Moderator
	secondary Moderator
}

func (f *fallbackModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	res, err := f.primary.CheckSafety(ctx, text)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	slog.Warn("primary moderator failed, using fallback", "error", err)
	return f.secondary.CheckSafety(ctx, text)
}

// --- Request/Response types ---

type modRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type modResponse struct {
	Results []modResult `json:"results"`
}

type modResult struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories"`
}
