package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"newyearcard/internal/cache"
	"newyearcard/internal/render"
	"newyearcard/internal/theme"
)

const (
	// DefaultShareTTL is how long an exported card stays reachable by its
	// share link.
	DefaultShareTTL = time.Hour

	sharePrefix = "share:"
	qrSize      = 256
)

// ErrShareNotFound is returned for unknown or expired share links.
var ErrShareNotFound = errors.New("share: not found")

// SharedCard is an exported image kept for its share page.
type SharedCard struct {
	CardID    string    `json:"card_id"`
	Name      string    `json:"name"`
	ThemeID   string    `json:"theme_id"`
	Filename  string    `json:"filename"`
	ImageURL  string    `json:"image_url"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// ShareStore keeps exported cards in the KV cache for a short time.
type ShareStore struct {
	kv  cache.KV
	ttl time.Duration
}

// NewShareStore creates a share store. A zero ttl uses DefaultShareTTL.
func NewShareStore(kv cache.KV, ttl time.Duration) *ShareStore {
	if ttl <= 0 {
		ttl = DefaultShareTTL
	}
	return &ShareStore{kv: kv, ttl: ttl}
}

// Save stores sc and returns its share id.
func (s *ShareStore) Save(ctx context.Context, sc *SharedCard) (string, error) {
	id := uuid.NewString()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now()
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("share save: %w", err)
	}
	if err := s.kv.Set(ctx, sharePrefix+id, data, s.ttl); err != nil {
		return "", fmt.Errorf("share save: %w", err)
	}
	return id, nil
}

// Get returns a shared card by id.
func (s *ShareStore) Get(ctx context.Context, id string) (*SharedCard, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrShareNotFound
	}
	data, err := s.kv.Get(ctx, sharePrefix+id)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("share get: %w", err)
	}
	var sc SharedCard
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("share decode: %w", err)
	}
	return &sc, nil
}

// Shared renders the share page of an exported card.
func (c *Cards) Shared(w http.ResponseWriter, r *http.Request) {
	if c.Shares == nil {
		c.renderError(w, http.StatusNotFound, "链接已失效", "分享链接已过期，请重新生成贺卡", "/", false)
		return
	}
	id := chi.URLParam(r, "id")
	sc, err := c.Shares.Get(r.Context(), id)
	if errors.Is(err, ErrShareNotFound) {
		c.renderError(w, http.StatusNotFound, "链接已失效", "分享链接已过期，请重新生成贺卡", "/", false)
		return
	}
	if err != nil {
		slog.Error("shared card load failed", "id", id, "error", err)
		c.renderError(w, http.StatusInternalServerError, "加载失败", "分享内容加载失败，请稍后重试", "/", true)
		return
	}

	var qr string
	if c.BaseURL != "" {
		qr = qrDataURL(c.BaseURL + "/shared/" + id)
	}

	c.Render.Page(w, http.StatusOK, "share", &render.PageData{
		Title: sc.Name + "的新年贺卡",
		Theme: theme.Resolve(sc.ThemeID),
		Data: map[string]any{
			"DataURL":  pngDataURL(sc.Data),
			"Filename": sc.Filename,
			"Name":     sc.Name,
			"QR":       qr,
			"ImageURL": sc.ImageURL,
		},
	})
}

// qrDataURL encodes link as a PNG QR code data URL. Errors yield "".
func qrDataURL(link string) string {
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		slog.Warn("qr encode failed", "error", err)
		return ""
	}
	return pngDataURL(png)
}

func pngDataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
