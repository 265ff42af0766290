// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package theme holds the fixed catalog of card themes. The catalog is
// parsed once from an embedded YAML file and handed out by value, so no
// caller can mutate a shared theme.
package theme

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"net/url"

	"github.com/goccy/go-yaml"
)

//go:embed themes.yaml
var catalogYAML []byte

// Hex holds flat colors for renderers without CSS support.
type Hex struct {
	Primary   string `yaml:"primary" json:"primary"`
	Secondary string `yaml:"secondary" json:"secondary"`
	Accent    string `yaml:"accent" json:"accent"`
	Border    string `yaml:"border" json:"border"`
	Glow      string `yaml:"glow" json:"glow"`
}

// Theme is one visual style of the card.
type Theme struct {
	ID                string `yaml:"id" json:"id"`
	Name              string `yaml:"name" json:"name"`
	PageBg            string `yaml:"page_bg" json:"pageBg"`
	CardBg            string `yaml:"card_bg" json:"cardBg"`
	Texture           string `yaml:"texture" json:"-"`
	TextureURL        string `yaml:"-" json:"textureUrl,omitempty"`
	TextureOpacity    string `yaml:"texture_opacity" json:"textureOpacity"`
	TextPrimary       string `yaml:"text_primary" json:"textPrimary"`
	TextSecondary     string `yaml:"text_secondary" json:"textSecondary"`
	TextAccent        string `yaml:"text_accent" json:"textAccent"`
	TextMuted         string `yaml:"text_muted" json:"textMuted"`
	Border            string `yaml:"border" json:"border"`
	BorderStrong      string `yaml:"border_strong" json:"borderStrong"`
	Decoration        string `yaml:"decoration" json:"decoration"`
	ButtonPrimary     string `yaml:"button_primary" json:"buttonPrimary"`
	ButtonPrimaryText string `yaml:"button_primary_text" json:"buttonPrimaryText"`
	ButtonSecondary   string `yaml:"button_secondary" json:"buttonSecondary"`
	Glow              string `yaml:"glow" json:"glow"`
	HighlightBg       string `yaml:"highlight_bg" json:"highlightBg"`
	Hex               Hex    `yaml:"hex" json:"hexColors"`
}

type catalogFile struct {
	Textures map[string]string `yaml:"textures"`
	Themes   []Theme           `yaml:"themes"`
}

var catalog = mustParse(catalogYAML)

// parse decodes and validates a catalog document.
func parse(data []byte) ([]Theme, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("theme catalog: %w", err)
	}
	if len(f.Themes) == 0 {
		return nil, fmt.Errorf("theme catalog: no themes")
	}

	seen := make(map[string]bool, len(f.Themes))
	for i := range f.Themes {
		t := &f.Themes[i]
		if t.ID == "" || t.CardBg == "" {
			return nil, fmt.Errorf("theme catalog: entry %d missing id or card_bg", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("theme catalog: duplicate id %q", t.ID)
		}
		seen[t.ID] = true

		if t.Texture != "" {
			svg, ok := f.Textures[t.Texture]
			if !ok {
				return nil, fmt.Errorf("theme catalog: %s references unknown texture %q", t.ID, t.Texture)
			}
			t.TextureURL = "data:image/svg+xml," + url.PathEscape(svg)
		}
	}
	return f.Themes, nil
}

func mustParse(data []byte) []Theme {
	themes, err := parse(data)
	if err != nil {
		panic(err)
	}
	return themes
}

// All returns a copy of the catalog in its fixed order.
func All() []Theme {
	out := make([]Theme, len(catalog))
	copy(out, catalog)
	return out
}

// Default returns the first theme of the catalog.
func Default() Theme {
	return catalog[0]
}

// ByID looks up a theme. Unknown ids report false.
func ByID(id string) (Theme, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

// Resolve returns the theme with the given id, or Default when unknown.
func Resolve(id string) Theme {
	if t, ok := ByID(id); ok {
		return t
	}
	return Default()
}

// Random picks a theme uniformly. A nil r uses the global source.
func Random(r *rand.Rand) Theme {
	if r == nil {
		return catalog[rand.IntN(len(catalog))]
	}
	return catalog[r.IntN(len(catalog))]
}
