// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package export turns a rendered card into a PNG and hands it to the
// user. Capture runs through an ordered list of tiers that trade quality
// for robustness; the first tier producing a decodable image wins. The
// result is delivered as a preview page, a share link or a download,
// depending on the client's capability profile.
package export

import (
	"context"
	"errors"
	"fmt"

	"newyearcard/internal/device"
)

var (
	// ErrInProgress is returned when an export for the same card is
	// already running. The call is a no-op.
	ErrInProgress = errors.New("export: already in progress")

	// ErrCaptureExhausted is returned when every capture tier failed.
	ErrCaptureExhausted = errors.New("export: all capture tiers failed")
)

// Encoding selects the screenshot format.
type Encoding int

const (
	PNG Encoding = iota
	JPEG
)

func (e Encoding) String() string {
	if e == JPEG {
		return "jpeg"
	}
	return "png"
}

// CaptureOptions configure one capture attempt.
type CaptureOptions struct {
	PixelRatio          float64
	CacheBust           bool // bypass caches so the latest background is used
	NeutralizeTransform bool // drop the card's CSS transform before capture
	CORS                bool // load images with crossOrigin="anonymous"
	Encoding            Encoding
}

// Capturer renders the card at target into image bytes.
type Capturer interface {
	Capture(ctx context.Context, target string, opts CaptureOptions) ([]byte, error)
}

// Tier is one capture strategy.
type Tier struct {
	Name string
	Opts CaptureOptions
}

// Tiers returns the capture strategies for a client, best quality first.
// Constrained in-app webviews start at a lower pixel ratio.
func Tiers(p device.Profile) []Tier {
	high := p.PixelRatio
	if high <= 0 {
		high = 2
	}
	return []Tier{
		{Name: "high", Opts: CaptureOptions{PixelRatio: high, CacheBust: true, NeutralizeTransform: true, CORS: true}},
		{Name: "medium", Opts: CaptureOptions{PixelRatio: 1.5, CacheBust: true, NeutralizeTransform: true, CORS: true}},
		{Name: "low", Opts: CaptureOptions{PixelRatio: 1, NeutralizeTransform: true, CORS: true}},
		{Name: "alternate", Opts: CaptureOptions{PixelRatio: 1, CORS: true, Encoding: JPEG}},
	}
}

// Artifact is an exported card image.
type Artifact struct {
	Data        []byte
	Width       int
	Height      int
	Filename    string
	ContentType string
	Tier        string
}

// Filename returns the download name for a card made for name.
func Filename(name string) string {
	return fmt.Sprintf("%s-NewYearCard.png", name)
}
