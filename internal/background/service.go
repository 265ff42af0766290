// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package background resolves a background image for a card. Generation
// goes through an image-capable AI provider; every failure degrades to a
// remembered, builtin or procedurally generated background so a caller
// always gets a usable reference.
package background

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"newyearcard/internal/ai"
	"newyearcard/internal/imagestore"
	"newyearcard/internal/imaging"
)

// styleVariants decorate every prompt so consecutive generations differ.
var styleVariants = []string{
	"国潮插画风格",
	"水彩晕染风格",
	"剪纸层叠风格",
	"新中式极简风格",
	"鎏金浮雕质感",
	"水墨与金箔结合",
}

const promptSuffix = "。每次生成保持构图与细节不同，无文字。"

// Sink persists a fitted background and returns a URL the browser can load.
type Sink interface {
	SaveBackground(ctx context.Context, data []byte, contentType string) (string, error)
}

// LocalSink stores backgrounds in the on-disk image store.
type LocalSink struct {
	Store *imagestore.Store
}

// SaveBackground writes data to the image store and returns its /images/ URL.
func (s LocalSink) SaveBackground(_ context.Context, data []byte, contentType string) (string, error) {
	name, err := s.Store.Save(data, contentType)
	if err != nil {
		return "", err
	}
	return imagestore.URL(name), nil
}

// Service produces backgrounds.
type Service struct {
	gen  ai.ImageGenerator // nil disables remote generation
	sink Sink
	pool *Pool

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewService creates a background service. gen may be nil, in which case
// every request is answered with a generated palette SVG.
func NewService(gen ai.ImageGenerator, sink Sink, pool *Pool) *Service {
	return &Service{
		gen:  gen,
		sink: sink,
		pool: pool,
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithRand replaces the random source, for deterministic tests.
func (s *Service) WithRand(r *rand.Rand) *Service {
	s.rng = r
	return s
}

// Enabled reports whether remote generation is configured.
func (s *Service) Enabled() bool {
	return s.gen != nil
}

// Generate returns a background URL for prompt. It never fails: without a
// provider it returns a palette SVG, and on any generation error it picks
// a remembered or builtin background. A cancelled ctx still yields a
// fallback; callers that care check ctx.Err themselves.
func (s *Service) Generate(ctx context.Context, prompt string) string {
	if s.gen == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return SVGDataURI(PaletteSVG(s.rng))
	}

	u, err := s.generate(ctx, prompt)
	if err != nil {
		slog.Warn("background generation failed, using fallback", "error", err)
		return s.Pick(ctx)
	}
	if s.pool != nil {
		s.pool.Save(ctx, u)
	}
	return u
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	data, ct, err := s.gen.GenerateImage(ctx, s.decorate(prompt))
	if err != nil {
		return "", fmt.Errorf("background generate: %w", err)
	}

	fitted, err := imaging.FitBackground(data)
	if err != nil {
		// Keep the provider bytes when they cannot be decoded locally.
		slog.Debug("background fit failed, storing original", "content_type", ct, "error", err)
		fitted = data
	} else {
		ct = "image/png"
	}

	if s.sink == nil {
		return "", fmt.Errorf("background store: no sink configured")
	}
	u, err := s.sink.SaveBackground(ctx, fitted, ct)
	if err != nil {
		return "", fmt.Errorf("background store: %w", err)
	}
	return u, nil
}

// Pick returns a fallback background: a pool entry half of the time when
// the pool is not empty, otherwise a random builtin.
func (s *Service) Pick(ctx context.Context) string {
	s.mu.Lock()
	usePool := s.rng.IntN(2) == 0
	s.mu.Unlock()

	if usePool && s.pool != nil {
		if u, ok := s.pool.Random(ctx); ok {
			return u
		}
	}
	return NextBuiltin("")
}

func (s *Service) decorate(prompt string) string {
	s.mu.Lock()
	style := styleVariants[s.rng.IntN(len(styleVariants))]
	s.mu.Unlock()

	prompt = strings.TrimRight(strings.TrimSpace(prompt), "。.")
	return prompt + "，" + style + promptSuffix
}
