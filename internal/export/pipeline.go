package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"newyearcard/internal/device"
	"newyearcard/internal/imaging"
)

// Pipeline runs capture tiers strictly in order and stops at the first
// success.
type Pipeline struct {
	capturer Capturer
	tiers    func(device.Profile) []Tier
}

// NewPipeline creates a pipeline using the standard tiers.
func NewPipeline(c Capturer) *Pipeline {
	return &Pipeline{capturer: c, tiers: Tiers}
}

// Run captures target and returns a PNG artifact. A tier fails when it
// errors, returns nothing, or returns bytes that do not decode as an
// image. ctx cancellation stops the pipeline between tiers.
func (p *Pipeline) Run(ctx context.Context, target string, profile device.Profile) (*Artifact, error) {
	var errs []error
	for _, tier := range p.tiers(profile) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("export run: %w", err)
		}

		a, err := p.attempt(ctx, target, tier)
		if err != nil {
			slog.Warn("capture tier failed", "tier", tier.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name, err))
			continue
		}
		slog.Info("card captured", "tier", tier.Name, "width", a.Width, "height", a.Height, "bytes", len(a.Data))
		return a, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrCaptureExhausted, errors.Join(errs...))
}

func (p *Pipeline) attempt(ctx context.Context, target string, tier Tier) (*Artifact, error) {
	data, err := p.capturer.Capture(ctx, target, tier.Opts)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty capture")
	}

	if tier.Opts.Encoding != PNG {
		// Secondary decode step: the artifact is always a PNG.
		data, err = imaging.ToPNG(data)
		if err != nil {
			return nil, fmt.Errorf("re-encode: %w", err)
		}
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty image")
	}

	return &Artifact{
		Data:        data,
		Width:       w,
		Height:      h,
		ContentType: "image/png",
		Tier:        tier.Name,
	}, nil
}
