package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"newyearcard/internal/export"
	"newyearcard/internal/models"
	"newyearcard/internal/render"
	"newyearcard/internal/session"
	"newyearcard/internal/theme"
)

// Export captures the card as a PNG and delivers it the way the visitor's
// device handles best. A second submit while one export runs is ignored.
func (c *Cards) Export(w http.ResponseWriter, r *http.Request) {
	card, ok := c.loadCard(w, r)
	if !ok {
		return
	}
	if c.Exporter == nil {
		c.renderError(w, http.StatusServiceUnavailable, "保存失败", export.ManualScreenshotMessage, "/cards/"+card.ID, false)
		return
	}

	d := &httpDelivery{w: w, r: r, cards: c, card: card}
	req := export.Request{
		Target:   c.CaptureURL + "/cards/" + card.ID + "/capture",
		Filename: export.Filename(card.Name),
		Profile:  card.Profile,
	}

	start := time.Now()
	res, err := c.Exporter.Export(r.Context(), card.ID, req, d, d)
	if errors.Is(err, export.ErrInProgress) {
		slog.Debug("export already running", "id", card.ID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	e := models.Event{
		Kind:       models.EventExport,
		NameHash:   models.HashName(card.Name),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		slog.Error("card export failed", "id", card.ID, "error", err)
		e.Source, e.Fallback, e.Detail = "failed", true, truncate(err.Error(), 500)
	} else {
		slog.Info("card exported", "id", card.ID, "method", res.Method, "tier", res.Artifact.Tier)
		e.Source, e.Detail = string(res.Method), res.Artifact.Tier
		e.Fallback = res.Artifact.Tier != export.Tiers(card.Profile)[0].Name
	}
	c.Events.Record(context.WithoutCancel(r.Context()), e)
}

// httpDelivery answers the export request with the artifact or a failure
// page. It writes at most one response.
type httpDelivery struct {
	w       http.ResponseWriter
	r       *http.Request
	cards   *Cards
	card    *session.Card
	written bool
}

func (d *httpDelivery) Preview(_ context.Context, a *export.Artifact) error {
	d.written = true
	d.cards.Render.Page(d.w, http.StatusOK, "preview", &render.PageData{
		Title:         d.card.Name + "的新年贺卡",
		Theme:         theme.Resolve(d.card.ThemeID),
		ReducedMotion: true,
		Data: map[string]any{
			"ID":       d.card.ID,
			"DataURL":  pngDataURL(a.Data),
			"Width":    a.Width,
			"Height":   a.Height,
			"Filename": a.Filename,
		},
	})
	return nil
}

func (d *httpDelivery) Share(ctx context.Context, a *export.Artifact) error {
	if d.cards.Shares == nil {
		return export.ErrShareUnavailable
	}
	id, err := d.cards.Shares.Save(ctx, &SharedCard{
		CardID:   d.card.ID,
		Name:     d.card.Name,
		ThemeID:  d.card.ThemeID,
		Filename: a.Filename,
		ImageURL: cardImageURL(d.cards.BaseURL, d.card),
		Data:     a.Data,
	})
	if err != nil {
		slog.Warn("share store failed", "id", d.card.ID, "error", err)
		return export.ErrShareUnavailable
	}
	d.written = true
	http.Redirect(d.w, d.r, "/shared/"+id, http.StatusSeeOther)
	return nil
}

func (d *httpDelivery) Download(_ context.Context, a *export.Artifact) error {
	d.written = true
	h := d.w.Header()
	h.Set("Content-Type", a.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(a.Data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	h.Set("Cache-Control", "no-store")
	d.w.WriteHeader(http.StatusOK)
	_, err := d.w.Write(a.Data)
	return err
}

func (d *httpDelivery) Notify(n export.FailureNotice) {
	if d.written {
		slog.Warn("export failed after response started", "id", d.card.ID, "error", n.Err)
		return
	}
	d.written = true
	d.cards.renderError(d.w, http.StatusInternalServerError, "保存失败", n.Message, "/cards/"+d.card.ID, false)
}
