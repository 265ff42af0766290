// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"newyearcard/internal/background"
	"newyearcard/internal/device"
	"newyearcard/internal/export"
	"newyearcard/internal/greeting"
	"newyearcard/internal/imagestore"
	"newyearcard/internal/models"
	"newyearcard/internal/render"
	"newyearcard/internal/session"
	"newyearcard/internal/storage"
	"newyearcard/internal/store"
	"newyearcard/internal/theme"
)

// DefaultBackgroundWait bounds how long a background pick may take.
const DefaultBackgroundWait = 5 * time.Second

// DefaultBackgroundGrace is how long a new card waits for its background
// once the greeting is ready. After that the card starts with a builtin
// background and the picked one replaces it when it arrives.
const DefaultBackgroundGrace = 300 * time.Millisecond

// backgroundPrompt is sent to the image provider when a visitor asks for
// a new background.
const backgroundPrompt = "中国新年骏马主题插画，红金喜庆配色，祥云与灯笼点缀，竖版构图"

// CardDeps holds the collaborators of the card pages.
type CardDeps struct {
	Render      *render.Renderer
	Sessions    *session.Store
	Greetings   *greeting.Service
	Backgrounds *background.Service
	Pool        *background.Pool      // may be nil
	Preloader   *background.Preloader // may be nil
	Exporter    *export.Exporter      // nil disables export
	Shares      *ShareStore           // nil makes share fall back to download
	Events      *store.EventStore     // may be nil
	Storage     *storage.Client       // may be nil; its URLs are accepted as ?bg=

	BaseURL         string // public origin for links and QR codes
	CaptureURL      string // origin the headless browser reaches
	BackgroundWait  time.Duration
	BackgroundGrace time.Duration
}

// Cards groups the card page handlers.
type Cards struct {
	CardDeps
}

// NewCards creates the card handler group.
func NewCards(deps CardDeps) *Cards {
	if deps.BackgroundWait <= 0 {
		deps.BackgroundWait = DefaultBackgroundWait
	}
	if deps.BackgroundGrace <= 0 {
		deps.BackgroundGrace = DefaultBackgroundGrace
	}
	return &Cards{CardDeps: deps}
}

// Home renders the name form over a preloaded background.
func (c *Cards) Home(w http.ResponseWriter, r *http.Request) {
	bg := c.pickBackground(r.Context(), "")
	c.Render.Page(w, http.StatusOK, "home", &render.PageData{
		Title: "新年贺卡",
		Theme: theme.Default(),
		Data: map[string]any{
			"Background": bg,
			"MaxName":    greeting.MaxNameRunes,
		},
	})
}

// New creates a card for ?name=. The greeting and the background are
// fetched concurrently; the page waits for the greeting only.
func (c *Cards) New(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name, err := greeting.ValidateName(q.Get("name"))
	if err != nil {
		c.renderHomeError(w, "请输入 1 到 32 个字的名字")
		return
	}

	profile := device.Detect(r.UserAgent()).
		WithReducedMotion(r.Header.Get("Sec-CH-Prefers-Reduced-Motion") == "reduce")
	t := theme.Random(nil)
	preferred := q.Get("bg")

	// The background pick outlives the request so a late result can
	// still reach the card. It is bounded by BackgroundWait.
	bgCtx, cancelBg := context.WithCancel(context.WithoutCancel(r.Context()))
	bgDone := make(chan string, 1)
	go func() {
		bgDone <- c.pickBackground(bgCtx, preferred)
	}()

	var (
		g    *greeting.Greeting
		bg   string
		late bool
	)
	greeted := make(chan struct{})
	start := time.Now()
	eg, ctx := errgroup.WithContext(r.Context())
	eg.Go(func() error {
		defer close(greeted)
		res, err := c.Greetings.Generate(ctx, name)
		if err != nil {
			return err
		}
		g = res
		return nil
	})
	eg.Go(func() error {
		select {
		case bg = <-bgDone:
			return nil
		case <-ctx.Done():
			return nil
		case <-greeted:
		}
		grace := time.NewTimer(c.BackgroundGrace)
		defer grace.Stop()
		select {
		case bg = <-bgDone:
		case <-grace.C:
			bg, late = background.SafeBuiltin(), true
		case <-ctx.Done():
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		cancelBg()
		if r.Context().Err() != nil {
			slog.Info("card request abandoned", "error", err)
			return
		}
		slog.Error("greeting failed", "error", err)
		c.renderError(w, http.StatusServiceUnavailable, "生成失败", "祝福语生成失败，请稍后重试", "", true)
		return
	}
	if bg == "" {
		bg, late = background.SafeBuiltin(), true
	}

	c.Events.Record(r.Context(), models.Event{
		Kind:       models.EventGreeting,
		Source:     g.Source,
		Fallback:   g.Source == greeting.SourceFallback,
		NameHash:   models.HashName(name),
		DurationMS: time.Since(start).Milliseconds(),
	})

	card := &session.Card{
		Name:       name,
		ThemeID:    t.ID,
		Greeting:   g,
		Background: bg,
		Profile:    profile,
	}
	if _, err := c.Sessions.Create(r.Context(), card); err != nil {
		slog.Error("card session create failed", "error", err)
		cancelBg()
		c.renderError(w, http.StatusInternalServerError, "生成失败", "贺卡保存失败，请稍后重试", "", true)
		return
	}

	if late {
		go c.applyLateBackground(context.WithoutCancel(r.Context()), card.ID, bg, bgDone, cancelBg)
	} else {
		cancelBg()
	}
	http.Redirect(w, r, "/cards/"+card.ID, http.StatusSeeOther)
}

// applyLateBackground puts a background that arrived after the card was
// created onto the card, unless the background was changed meanwhile.
func (c *Cards) applyLateBackground(ctx context.Context, id, placeholder string, bgDone <-chan string, done context.CancelFunc) {
	defer done()
	u := <-bgDone
	if u == placeholder {
		return
	}
	card, err := c.Sessions.Get(ctx, id)
	if err != nil || card.Background != placeholder {
		return
	}
	if _, err := c.Sessions.SetBackground(ctx, id, u); err != nil {
		slog.Warn("late background update failed", "id", id, "error", err)
	}
}

// Show re-renders an existing card.
func (c *Cards) Show(w http.ResponseWriter, r *http.Request) {
	card, ok := c.loadCard(w, r)
	if !ok {
		return
	}
	c.Render.Page(w, http.StatusOK, "card", c.cardPage(card, card.Profile.ReducedMotion))
}

// Capture renders the bare card for the headless browser.
func (c *Cards) Capture(w http.ResponseWriter, r *http.Request) {
	card, ok := c.loadCard(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	c.Render.Page(w, http.StatusOK, "capture", c.cardPage(card, true))
}

// ChangeBackground swaps the background of a card. The greeting and theme
// stay as they are.
func (c *Cards) ChangeBackground(w http.ResponseWriter, r *http.Request) {
	card, ok := c.loadCard(w, r)
	if !ok {
		return
	}

	var next string
	if c.Backgrounds != nil && c.Backgrounds.Enabled() {
		start := time.Now()
		next = c.Backgrounds.Generate(r.Context(), backgroundPrompt)
		c.Events.Record(r.Context(), models.Event{
			Kind:       models.EventBackground,
			Source:     "swap",
			Fallback:   next == "" || imageFallback(next),
			DurationMS: time.Since(start).Milliseconds(),
		})
	} else {
		next = c.pickBackground(r.Context(), background.NextBuiltin(card.Background))
	}
	if r.Context().Err() != nil {
		return
	}

	if _, err := c.Sessions.SetBackground(r.Context(), card.ID, next); err != nil {
		slog.Error("card background update failed", "id", card.ID, "error", err)
		c.renderError(w, http.StatusInternalServerError, "更换失败", "背景更换失败，请稍后重试", "/cards/"+card.ID, false)
		return
	}
	http.Redirect(w, r, "/cards/"+card.ID, http.StatusSeeOther)
}

// pickBackground returns the first loadable of preferred, a remembered
// pool entry and a random builtin, bounded by BackgroundWait. Pool entries
// that fail to load in time are evicted.
func (c *Cards) pickBackground(ctx context.Context, preferred string) string {
	ctx, cancel := context.WithTimeout(ctx, c.BackgroundWait)
	defer cancel()

	var candidates []string
	if c.acceptBackground(ctx, preferred) {
		candidates = append(candidates, preferred)
	}
	var pooled string
	if c.Pool != nil {
		if u, ok := c.Pool.Random(ctx); ok && u != preferred {
			pooled = u
			candidates = append(candidates, u)
		}
	}
	candidates = append(candidates, background.NextBuiltin(preferred))

	if c.Preloader == nil {
		return candidates[0]
	}
	choice := c.Preloader.Pick(ctx, candidates, background.SafeBuiltin())

	// A cancelled caller says nothing about the entry; a timeout does.
	if pooled != "" && slices.Contains(choice.Failed, pooled) && !errors.Is(ctx.Err(), context.Canceled) {
		evictCtx, cancelEvict := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancelEvict()
		c.Pool.Evict(evictCtx, pooled)
		slog.Info("background evicted from pool", "url", truncate(pooled, 80))
	}
	return choice.URL
}

// loadCard resolves {id} or writes a 404 page.
func (c *Cards) loadCard(w http.ResponseWriter, r *http.Request) (*session.Card, bool) {
	id := chi.URLParam(r, "id")
	card, err := c.Sessions.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		c.renderError(w, http.StatusNotFound, "贺卡不存在", "这张贺卡已过期，请重新生成", "/", false)
		return nil, false
	}
	if err != nil {
		slog.Error("card session load failed", "id", id, "error", err)
		c.renderError(w, http.StatusInternalServerError, "加载失败", "贺卡加载失败，请稍后重试", "/", true)
		return nil, false
	}
	return card, true
}

func (c *Cards) cardPage(card *session.Card, reducedMotion bool) *render.PageData {
	return &render.PageData{
		Title:         card.Name + "的新年贺卡",
		Theme:         theme.Resolve(card.ThemeID),
		ReducedMotion: reducedMotion,
		Data: map[string]any{
			"ID":            card.ID,
			"Name":          card.Name,
			"Poem":          card.Greeting.Poem,
			"Wish":          card.Greeting.Wish,
			"Background":    card.Background,
			"PreferPreview": card.Profile.PrefersPreviewOverDownload,
			"ImageURL":      cardImageURL(c.BaseURL, card),
		},
	}
}

// cardImageURL links to the server-rendered PNG of a card. Only local
// backgrounds are passed along.
func cardImageURL(base string, card *session.Card) string {
	poem, _ := json.Marshal(card.Greeting.Poem)
	q := url.Values{}
	q.Set("name", card.Name)
	q.Set("poem", string(poem))
	q.Set("wish", card.Greeting.Wish)
	q.Set("themeId", card.ThemeID)
	if _, ok := imagestore.NameFromURL(card.Background); ok {
		q.Set("bg", card.Background)
	}
	return base + "/card-image?" + q.Encode()
}

// imageFallback reports whether a background came from a local fallback
// rather than a generated file.
func imageFallback(u string) bool {
	if _, ok := imagestore.NameFromURL(u); ok {
		return false
	}
	return strings.HasPrefix(u, "data:") || slices.Contains(background.Builtin(), u)
}

func (c *Cards) renderHomeError(w http.ResponseWriter, msg string) {
	c.Render.Page(w, http.StatusBadRequest, "home", &render.PageData{
		Title: "新年贺卡",
		Theme: theme.Default(),
		Data: map[string]any{
			"Background": background.SafeBuiltin(),
			"MaxName":    greeting.MaxNameRunes,
			"Error":      msg,
		},
	})
}

func (c *Cards) renderError(w http.ResponseWriter, status int, heading, msg, back string, retry bool) {
	c.Render.Page(w, status, "error", &render.PageData{
		Title: heading,
		Theme: theme.Default(),
		Data: map[string]any{
			"Heading": heading,
			"Message": msg,
			"Back":    back,
			"Retry":   retry,
		},
	})
}
