// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Everything runs in-process: an in-memory KV, a scripted capturer and no
// AI providers, so the local fallbacks are exercised.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"newyearcard/internal/ai"
	"newyearcard/internal/background"
	"newyearcard/internal/cache"
	"newyearcard/internal/cardimage"
	"newyearcard/internal/export"
	"newyearcard/internal/greeting"
	"newyearcard/internal/imagestore"
	"newyearcard/internal/render"
	"newyearcard/internal/session"
	"newyearcard/internal/store"
)

const (
	uaWeChat        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 MicroMessenger/8.0.44(0x18002c2f) NetType/WIFI Language/zh_CN"
	uaDesktopChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	uaMacSafari     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
)

// fakeCapturer returns a solid PNG, or fails every attempt when fail is set.
type fakeCapturer struct {
	fail  bool
	calls atomic.Int32
}

func (f *fakeCapturer) Capture(ctx context.Context, target string, opts export.CaptureOptions) ([]byte, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("browser unavailable")
	}
	return testPNG(400, 600), nil
}

// mockModerator flags every prompt containing "bad".
type mockModerator struct{}

func (mockModerator) CheckSafety(_ context.Context, text string) (*ai.ModerationResult, error) {
	if strings.Contains(text, "bad") {
		return &ai.ModerationResult{Safe: false, Categories: []string{"violence"}}, nil
	}
	return &ai.ModerationResult{Safe: true}, nil
}

func testPNG(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: 0xb9, G: 0x1c, B: 0x1c, A: 0xff})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// testApp wires every handler group against in-memory collaborators.
type testApp struct {
	router    chi.Router
	kv        *cache.MemoryKV
	sessions  *session.Store
	images    *imagestore.Store
	capturer  *fakeCapturer
	pool      *background.Pool
	shares    *ShareStore
	imageHits *cache.ImageCache
}

// newTestApp builds the app; opts adjust the card dependencies.
func newTestApp(t *testing.T, opts ...func(*CardDeps)) *testApp {
	t.Helper()

	kv := cache.NewMemoryKV(time.Minute)
	rn, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	imgStore, err := imagestore.New(t.TempDir(), 5)
	if err != nil {
		t.Fatalf("imagestore.New: %v", err)
	}
	fonts, err := cardimage.LoadFonts("")
	if err != nil {
		t.Fatalf("LoadFonts: %v", err)
	}

	registry := ai.NewRegistry(nil)
	registry.SetModerator(mockModerator{})

	pool := background.NewPool(kv)
	greetings := greeting.NewService(nil)
	backgrounds := background.NewService(nil, background.LocalSink{Store: imgStore}, pool)
	capturer := &fakeCapturer{}
	sessions := session.NewStore(kv)
	shares := NewShareStore(kv, time.Minute)
	events := store.NewEventStore(nil)
	imgCache := cache.NewImageCache(kv, time.Minute)

	api := NewAPI(greetings, backgrounds, registry, events)
	images := NewImages(imgStore, cardimage.NewRenderer(fonts), imgCache, "http://card.test")
	deps := CardDeps{
		Render:         rn,
		Sessions:       sessions,
		Greetings:      greetings,
		Backgrounds:    backgrounds,
		Pool:           pool,
		Exporter:       export.NewExporter(export.NewPipeline(capturer), 5*time.Second),
		Shares:         shares,
		Events:         events,
		BaseURL:        "http://card.test",
		CaptureURL:     "http://127.0.0.1:8080",
		BackgroundWait: time.Second,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	cards := NewCards(deps)

	r := chi.NewRouter()
	r.Get("/", cards.Home)
	r.Get("/card", cards.New)
	r.Get("/cards/{id}", cards.Show)
	r.Get("/cards/{id}/capture", cards.Capture)
	r.Post("/cards/{id}/background", cards.ChangeBackground)
	r.Post("/cards/{id}/export", cards.Export)
	r.Get("/shared/{id}", cards.Shared)
	r.Get("/generate-greeting", api.GenerateGreeting)
	r.Post("/generate-greeting", api.GenerateGreeting)
	r.Post("/generate-image", api.GenerateImage)
	r.Get("/card-image", images.CardImage)
	r.Get("/images/{filename}", images.Serve)

	return &testApp{
		router:    r,
		kv:        kv,
		sessions:  sessions,
		images:    imgStore,
		capturer:  capturer,
		pool:      pool,
		shares:    shares,
		imageHits: imgCache,
	}
}

func (a *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// createCard makes a card through GET /card and returns its id.
func (a *testApp) createCard(t *testing.T, name, ua string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/card?name="+url.QueryEscape(name), nil)
	req.Header.Set("User-Agent", ua)
	rec := a.do(t, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("GET /card status = %d, body = %s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	id, ok := strings.CutPrefix(loc, "/cards/")
	if !ok || !session.ValidID(id) {
		t.Fatalf("unexpected redirect %q", loc)
	}
	return id
}
