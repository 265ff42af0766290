package handlers

import (
	"errors"
	"image"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"newyearcard/internal/cache"
	"newyearcard/internal/cardimage"
	"newyearcard/internal/imagestore"
	"newyearcard/internal/imaging"
	"newyearcard/internal/theme"
)

// Images serves generated background files and server-rendered cards.
type Images struct {
	store    *imagestore.Store
	renderer *cardimage.Renderer
	cache    *cache.ImageCache
	baseURL  string
}

// NewImages creates the image handler group. cache may be nil.
func NewImages(store *imagestore.Store, renderer *cardimage.Renderer, imgCache *cache.ImageCache, baseURL string) *Images {
	return &Images{store: store, renderer: renderer, cache: imgCache, baseURL: baseURL}
}

// Serve returns a stored background. Names that could escape the image
// directory are rejected before the filesystem is touched.
func (h *Images) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	if err := imagestore.ValidateName(name); err != nil {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	data, contentType, err := h.store.Read(name)
	switch {
	case errors.Is(err, imagestore.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case err != nil:
		slog.Error("image read failed", "name", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(data)
}

// CardImage renders a card as PNG from query parameters:
// name, poem (JSON array), wish, themeId and an optional local bg.
func (h *Images) CardImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		name = cardimage.DefaultName
	}
	wish := q.Get("wish")
	if wish == "" {
		wish = cardimage.DefaultWish
	}
	poemRaw := q.Get("poem")
	if msg := validateCardText(poemRaw, wish); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	t := theme.Resolve(q.Get("themeId"))
	bg := q.Get("bg")

	key := cache.ImageKey(name, poemRaw, wish, t.ID, bg)
	if h.cache != nil {
		if png, ok := h.cache.Get(r.Context(), key); ok {
			writePNG(w, png)
			return
		}
	}

	spec := cardimage.CardSpec{
		Name:       name,
		Poem:       cardimage.ParsePoem(poemRaw),
		Wish:       wish,
		Theme:      t,
		Background: h.localBackground(bg),
	}
	if h.baseURL != "" {
		spec.QRURL = h.baseURL + "/card?name=" + url.QueryEscape(name)
	}

	png, err := h.renderer.Render(spec)
	if err != nil {
		slog.Error("card image render failed", "theme", t.ID, "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to generate image"))
		return
	}

	if h.cache != nil {
		h.cache.Set(r.Context(), key, png)
	}
	writePNG(w, png)
}

// localBackground decodes a background from the image store. Remote URLs
// are never fetched from here.
func (h *Images) localBackground(u string) image.Image {
	name, ok := imagestore.NameFromURL(u)
	if !ok {
		return nil
	}
	data, _, err := h.store.Read(name)
	if err != nil {
		slog.Debug("card image background unavailable", "name", name, "error", err)
		return nil
	}
	img, err := imaging.Decode(data)
	if err != nil {
		slog.Warn("card image background undecodable", "name", name, "error", err)
		return nil
	}
	return img
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=600")
	w.Write(png)
}
