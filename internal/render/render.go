// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render provides HTML template rendering for the card pages.
// Every page template is paired with the base layout and the shared card
// partial; standalone templates (the capture page) bring their own
// document skeleton.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"newyearcard/internal/theme"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageData holds all data passed to page templates.
type PageData struct {
	Title         string         // Page title for <title> tag
	Theme         theme.Theme    // Colors of the page and card
	ReducedMotion bool           // Disable entrance animation
	Data          map[string]any // Page-specific data
}

// Renderer handles template parsing and execution.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
}

// standaloneTemplates render as full HTML documents without the base layout.
var standaloneTemplates = map[string]bool{
	"capture": true,
}

// partials are parsed into every page.
const (
	baseFile = "base.html"
	cardFile = "_card.html"
)

// New creates a Renderer by parsing all templates from the embedded
// filesystem.
func New() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap: template.FuncMap{
			"themeCSS":  ThemeCSS,
			"safeURL":   SafeURL,
			"emphasize": Emphasize,
			"add":       func(a, b int) int { return a + b },
		},
	}

	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == baseFile || name == cardFile {
			continue
		}
		tmplName := strings.TrimSuffix(name, ".html")

		root, files := baseFile, []string{"templates/" + baseFile, "templates/" + cardFile, "templates/" + name}
		if standaloneTemplates[tmplName] {
			root, files = name, []string{"templates/" + name, "templates/" + cardFile}
		}

		tmpl, err := template.New(root).Funcs(r.funcMap).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[tmplName] = tmpl
	}

	return r, nil
}

// Page renders a full page with the given status code. Rendering happens
// into a buffer first so a template error never leaves a half-written page.
func (rn *Renderer) Page(w http.ResponseWriter, status int, name string, data *PageData) {
	tmpl, ok := rn.templates[name]
	if !ok {
		http.Error(w, fmt.Sprintf("template %q not found", name), http.StatusInternalServerError)
		return
	}
	if data.Theme.ID == "" {
		data.Theme = theme.Default()
	}

	execName := baseFile
	if standaloneTemplates[name] {
		execName = name + ".html"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, execName, data); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Has reports whether a template is registered.
func (rn *Renderer) Has(name string) bool {
	_, ok := rn.templates[name]
	return ok
}

// ThemeCSS renders a theme as CSS custom properties. The catalog is
// embedded and trusted, so the values bypass html/template's CSS filter.
func ThemeCSS(t theme.Theme) template.CSS {
	var b strings.Builder
	prop := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "--%s:%s;", name, value)
		}
	}
	prop("page-bg", t.PageBg)
	prop("card-bg", t.CardBg)
	prop("text-primary", t.TextPrimary)
	prop("text-secondary", t.TextSecondary)
	prop("text-accent", t.TextAccent)
	prop("text-muted", t.TextMuted)
	prop("border", t.Border)
	prop("border-strong", t.BorderStrong)
	prop("decoration", t.Decoration)
	prop("button-primary", t.ButtonPrimary)
	prop("button-primary-text", t.ButtonPrimaryText)
	prop("button-secondary", t.ButtonSecondary)
	prop("glow", t.Glow)
	prop("highlight-bg", t.HighlightBg)
	if t.TextureURL != "" {
		prop("texture", `url("`+t.TextureURL+`")`)
		prop("texture-opacity", t.TextureOpacity)
	}
	return template.CSS(b.String())
}

// SafeURL admits the background and image references the app produces:
// http(s) URLs, root-relative paths and data:image URIs. Anything else
// becomes an empty string.
func SafeURL(u string) template.URL {
	switch {
	case strings.HasPrefix(u, "https://"), strings.HasPrefix(u, "http://"):
	case strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//"):
	case strings.HasPrefix(u, "data:image/"):
	default:
		return ""
	}
	return template.URL(u)
}

// Emphasize escapes wish and wraps every occurrence of name in a
// <strong class="name"> element.
func Emphasize(wish, name string) template.HTML {
	if name == "" || !strings.Contains(wish, name) {
		return template.HTML(html.EscapeString(wish))
	}
	parts := strings.Split(wish, name)
	for i, p := range parts {
		parts[i] = html.EscapeString(p)
	}
	return template.HTML(strings.Join(parts, `<strong class="name">`+html.EscapeString(name)+`</strong>`))
}
