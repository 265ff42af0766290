// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package greeting produces the poem and wish shown on a card. Providers
// are tried in order; when none is configured or all of them fail, a local
// deterministic greeting is returned instead.
package greeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"newyearcard/internal/ai"
)

// MaxNameRunes is the longest accepted recipient name.
const MaxNameRunes = 32

// SourceFallback marks a greeting built from local templates.
const SourceFallback = "fallback"

// ErrInvalidName is returned for empty or overlong names.
var ErrInvalidName = errors.New("greeting: invalid name")

// Greeting is the text of one card.
type Greeting struct {
	Poem []string `json:"poem"`
	Wish string   `json:"wish"`

	// Source is the provider name, or SourceFallback.
	Source string `json:"-"`
}

// Valid reports whether g has at least one non-blank poem line and a
// non-blank wish.
func (g *Greeting) Valid() bool {
	if g == nil || strings.TrimSpace(g.Wish) == "" {
		return false
	}
	for _, l := range g.Poem {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

// ValidateName trims name and checks its length.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameRunes {
		return "", ErrInvalidName
	}
	return name, nil
}

// Service generates greetings.
type Service struct {
	providers []ai.Provider
	content   Content
	intn      func(n int) int
}

// NewService creates a service trying providers in the given order.
func NewService(providers []ai.Provider) *Service {
	return &Service{
		providers: providers,
		content:   DefaultContent(),
		intn:      rand.IntN,
	}
}

// WithRand makes template selection deterministic, for tests.
func (s *Service) WithRand(r *rand.Rand) *Service {
	s.intn = r.IntN
	return s
}

// Generate returns a greeting for name. Provider failures are logged and
// absorbed; only an invalid name or a cancelled context produce an error.
func (s *Service) Generate(ctx context.Context, name string) (*Greeting, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	system := s.systemPrompt(name)
	user := fill(s.content.UserPrompt, name)

	for _, p := range s.providers {
		reply, err := p.Generate(ctx, system, user)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("greeting generate: %w", ctx.Err())
		}
		if err != nil {
			slog.Warn("greeting provider failed, trying next", "provider", p.Name(), "error", err)
			continue
		}

		g := parseReply(reply, s.content.PlainTextWish)
		if !g.Valid() {
			slog.Warn("greeting provider returned unusable content", "provider", p.Name())
			continue
		}
		g.Source = p.Name()
		return g, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("greeting generate: %w", err)
	}
	return s.Fallback(name), nil
}

// Fallback returns the fixed poem and one wish template filled with name.
func (s *Service) Fallback(name string) *Greeting {
	poem := make([]string, len(s.content.FallbackPoem))
	copy(poem, s.content.FallbackPoem)
	tpl := s.content.WishTemplates[s.intn(len(s.content.WishTemplates))]
	return &Greeting{
		Poem:   poem,
		Wish:   fill(tpl, name),
		Source: SourceFallback,
	}
}

// systemPrompt appends a few randomly chosen reference wishes so that
// replies vary between requests.
func (s *Service) systemPrompt(name string) string {
	var b strings.Builder
	b.WriteString(s.content.SystemPrompt)

	pool := make([]string, len(s.content.WishTemplates))
	copy(pool, s.content.WishTemplates)

	b.WriteString("\n\n")
	b.WriteString(s.content.ReferenceHeader)
	for i := 0; i < s.content.ReferenceCount && len(pool) > 0; i++ {
		idx := s.intn(len(pool))
		fmt.Fprintf(&b, "\n%d. %s", i+1, fill(pool[idx], name))
		pool = append(pool[:idx], pool[idx+1:]...)
	}

	b.WriteString("\n")
	b.WriteString(s.content.ResponseFormat)
	return b.String()
}
