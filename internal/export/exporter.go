package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"newyearcard/internal/device"
	"newyearcard/internal/imaging"
)

// DefaultBudget bounds a whole export, all tiers and delivery included.
const DefaultBudget = 60 * time.Second

// Preview dimensions used when the artifact cannot be decoded.
const (
	DefaultPreviewWidth  = 1200
	DefaultPreviewHeight = 1800
)

// ManualScreenshotMessage is shown when an export fails.
const ManualScreenshotMessage = "保存图片失败，请尝试长按截图保存"

var (
	// ErrShareCancelled is returned by a Deliverer when the user dismissed
	// the share sheet.
	ErrShareCancelled = errors.New("export: share cancelled")

	// ErrShareUnavailable is returned by a Deliverer that cannot share.
	ErrShareUnavailable = errors.New("export: share unavailable")
)

// Method is how an artifact reached the user.
type Method string

const (
	MethodPreview  Method = "preview"
	MethodShare    Method = "share"
	MethodDownload Method = "download"
)

// Deliverer hands a finished artifact to the user.
type Deliverer interface {
	// Preview shows the image on a page for long-press saving.
	Preview(ctx context.Context, a *Artifact) error
	// Share offers the image through a share target. Any error, usually
	// ErrShareCancelled or ErrShareUnavailable, falls back to Download.
	Share(ctx context.Context, a *Artifact) error
	// Download sends the image as an attachment.
	Download(ctx context.Context, a *Artifact) error
}

// FailureNotice tells the user an export did not succeed.
type FailureNotice struct {
	Message string
	Err     error
}

// Notifier reports export failures to the user.
type Notifier interface {
	Notify(n FailureNotice)
}

// Request describes one export.
type Request struct {
	Target   string // capture page URL
	Filename string
	Profile  device.Profile
}

// Result describes a successful export.
type Result struct {
	Method   Method
	Artifact *Artifact
}

// Gate admits at most one export per key at a time.
type Gate struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{inflight: make(map[string]struct{})}
}

// Acquire marks key busy. It returns false when key is already busy.
func (g *Gate) Acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return false
	}
	g.inflight[key] = struct{}{}
	return true
}

// Release clears key.
func (g *Gate) Release(key string) {
	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()
}

// Busy reports whether key is in flight.
func (g *Gate) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inflight[key]
	return busy
}

// Exporter captures and delivers cards.
type Exporter struct {
	pipeline *Pipeline
	gate     *Gate
	budget   time.Duration
}

// NewExporter creates an exporter. A zero budget uses DefaultBudget.
func NewExporter(p *Pipeline, budget time.Duration) *Exporter {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Exporter{pipeline: p, gate: NewGate(), budget: budget}
}

// Export captures req.Target and delivers the result. A second call for
// the same key while one runs returns ErrInProgress without side effects.
//
// Once admitted, the export is detached from ctx cancellation and bounded
// by the exporter's budget. Any failure, panics included, produces exactly
// one notice and is returned to the caller for logging.
func (e *Exporter) Export(ctx context.Context, key string, req Request, d Deliverer, n Notifier) (res *Result, err error) {
	if !e.gate.Acquire(key) {
		return nil, ErrInProgress
	}
	defer e.gate.Release(key)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.budget)
	defer cancel()

	defer func() {
		if v := recover(); v != nil {
			slog.Error("export panic", "key", key, "panic", v, "stack", string(debug.Stack()))
			res, err = nil, fmt.Errorf("export panic: %v", v)
		}
		if err != nil {
			n.Notify(FailureNotice{Message: ManualScreenshotMessage, Err: err})
		}
	}()

	a, err := e.pipeline.Run(ctx, req.Target, req.Profile)
	if err != nil {
		return nil, err
	}
	a.Filename = req.Filename

	method, err := deliver(ctx, a, req.Profile, d)
	if err != nil {
		return nil, fmt.Errorf("export deliver: %w", err)
	}
	return &Result{Method: method, Artifact: a}, nil
}

// Busy reports whether an export for key is running.
func (e *Exporter) Busy(key string) bool {
	return e.gate.Busy(key)
}

func deliver(ctx context.Context, a *Artifact, p device.Profile, d Deliverer) (Method, error) {
	if p.PrefersPreviewOverDownload {
		if w, h, err := imaging.Dimensions(a.Data); err == nil {
			a.Width, a.Height = w, h
		} else {
			a.Width, a.Height = DefaultPreviewWidth, DefaultPreviewHeight
		}
		return MethodPreview, d.Preview(ctx, a)
	}

	if p.SupportsShare {
		err := d.Share(ctx, a)
		if err == nil {
			return MethodShare, nil
		}
		slog.Info("share not completed, falling back to download", "reason", err)
	}

	return MethodDownload, d.Download(ctx, a)
}
