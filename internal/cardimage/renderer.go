// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package cardimage draws a finished card as a PNG without a browser.
// It is used for link previews and as a direct image endpoint; the
// interactive export goes through the headless capture instead.
package cardimage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"

	"newyearcard/internal/theme"
)

// Card size in pixels.
const (
	Width  = 1200
	Height = 1800
)

// Defaults for missing request fields.
const (
	DefaultName = "朋友"
	DefaultWish = "新春快乐，万事如意"
	Title       = "新年快乐"
	YearLine    = "2026 丙午马年"
	SealText    = "马到成功"
	Footer      = "汕头水电车间 · 智轨先锋组"
)

// DefaultPoem is used when no poem, or an unparseable one, is given.
func DefaultPoem() []string {
	return []string{"新春佳节到", "福气满门绕"}
}

// ParsePoem decodes a JSON array of lines, falling back to DefaultPoem.
func ParsePoem(raw string) []string {
	if raw == "" {
		return DefaultPoem()
	}
	var lines []string
	if err := json.Unmarshal([]byte(raw), &lines); err != nil || len(lines) == 0 {
		return DefaultPoem()
	}
	return lines
}

// CardSpec is everything drawn on a card.
type CardSpec struct {
	Name       string
	Poem       []string
	Wish       string
	Theme      theme.Theme
	Background image.Image // optional, composited under the text
	QRURL      string      // optional link printed as a QR code
}

// WishStyle returns the wish font size and line height for a wish of the
// given length; long wishes get smaller, tighter text.
func WishStyle(wish string) (size, lineHeight float64) {
	n := utf8.RuneCountInString(wish)
	switch {
	case n > 300:
		size = 24
	case n > 200:
		size = 26
	case n > 150:
		size = 28
	case n > 100:
		size = 32
	default:
		size = 36
	}
	lineHeight = 1.8
	if n > 200 {
		lineHeight = 1.5
	}
	return size, lineHeight
}

// Renderer draws cards with one typeface.
type Renderer struct {
	fonts *Fonts
}

// NewRenderer creates a renderer.
func NewRenderer(fonts *Fonts) *Renderer {
	return &Renderer{fonts: fonts}
}

// faces is the set of faces one render uses.
type faces struct {
	title, year, poem, wish, footer, seal font.Face
}

func (r *Renderer) faces(wishSize float64) (*faces, error) {
	var f faces
	var err error
	for _, fs := range []struct {
		dst  *font.Face
		size float64
	}{
		{&f.title, 112}, {&f.year, 40}, {&f.poem, 56}, {&f.wish, wishSize}, {&f.footer, 28}, {&f.seal, 18},
	} {
		if *fs.dst, err = r.fonts.Face(fs.size); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// Render draws spec and returns PNG bytes.
func (r *Renderer) Render(spec CardSpec) ([]byte, error) {
	if spec.Name == "" {
		spec.Name = DefaultName
	}
	if len(spec.Poem) == 0 {
		spec.Poem = DefaultPoem()
	}
	if strings.TrimSpace(spec.Wish) == "" {
		spec.Wish = DefaultWish
	}

	wishSize, wishLH := WishStyle(spec.Wish)
	ff, err := r.faces(wishSize)
	if err != nil {
		return nil, err
	}

	dc, err := base(spec)
	if err != nil {
		return nil, err
	}

	hex := spec.Theme.Hex
	primary, secondary := mustColor(hex.Primary), mustColor(hex.Secondary)
	accent, border := mustColor(hex.Accent), mustColor(hex.Border)

	// Vignette.
	vig := gg.NewRadialGradient(Width/2, Height/2, 0, Width/2, Height/2, Height*0.75)
	vig.AddColorStop(0, color.NRGBA{})
	vig.AddColorStop(1, color.NRGBA{A: 26})
	dc.SetFillStyle(vig)
	dc.DrawRectangle(0, 0, Width, Height)
	dc.Fill()

	// Inset border and corners.
	dc.SetColor(border)
	dc.SetLineWidth(4)
	dc.DrawRoundedRectangle(40, 40, Width-80, Height-80, 32)
	dc.Stroke()
	drawCorners(dc, border)

	// Header.
	drawShadowed(dc, ff.title, Title, Width/2, 230, accent, 8)
	dc.SetFontFace(ff.year)
	yw, _ := dc.MeasureString(YearLine)
	dc.SetColor(withAlpha(secondary, 0.9))
	dc.DrawStringAnchored(YearLine, Width/2, 330, 0.5, 0.5)
	dc.SetLineWidth(2)
	dc.DrawLine(Width/2-yw/2-100, 330, Width/2-yw/2-20, 330)
	dc.DrawLine(Width/2+yw/2+20, 330, Width/2+yw/2+100, 330)
	dc.Stroke()

	// Body: poem then wish box, centered between header and footer.
	const bodyTop, bodyBottom = 400.0, 1530.0
	const poemAdvance = 56*1.3 + 32
	boxW := (Width - 160) * 0.9
	dc.SetFontFace(ff.wish)
	wishLines := Wrap(spec.Wish, boxW-80, 2*wishSize, func(s string) float64 {
		w, _ := dc.MeasureString(s)
		return w
	})
	wishAdvance := wishSize * wishLH
	boxH := float64(len(wishLines))*wishAdvance + 80

	bodyH := float64(len(spec.Poem))*poemAdvance + 60 + 40 + boxH
	y := bodyTop
	if bodyH < bodyBottom-bodyTop {
		y += (bodyBottom - bodyTop - bodyH) / 2
	}

	dc.SetFontFace(ff.poem)
	for _, line := range spec.Poem {
		cy := y + poemAdvance/2
		drawShadowed(dc, ff.poem, line, Width/2, cy, primary, 4)
		lw, _ := dc.MeasureString(line)
		dc.SetColor(withAlpha(accent, 0.6))
		dc.DrawCircle(Width/2-lw/2-26, cy, 6)
		dc.DrawCircle(Width/2+lw/2+26, cy, 6)
		dc.Fill()
		y += poemAdvance
	}

	y += 60 + 40
	boxX := (Width - boxW) / 2
	dc.SetColor(color.NRGBA{A: 38})
	dc.DrawRectangle(boxX, y, boxW, boxH)
	dc.Fill()
	dc.SetColor(border)
	dc.SetLineWidth(2)
	dc.DrawLine(boxX, y, boxX+boxW, y)
	dc.DrawLine(boxX, y+boxH, boxX+boxW, y+boxH)
	dc.Stroke()

	dc.SetFontFace(ff.wish)
	dc.SetColor(primary)
	ly := y + 40 + wishAdvance/2
	for i, line := range wishLines {
		x := boxX + 40
		if i == 0 {
			x += 2 * wishSize
		}
		dc.DrawStringAnchored(line, x, ly, 0, 0.5)
		ly += wishAdvance
	}

	// Footer.
	const footerTop = 1560.0
	dc.SetColor(border)
	dc.SetLineWidth(2)
	dc.DrawLine(120, footerTop, Width-120, footerTop)
	dc.Stroke()

	dc.SetColor(withAlpha(secondary, 0.9))
	dc.SetLineWidth(3)
	dc.DrawRoundedRectangle(Width/2-40, footerTop+20, 80, 80, 8)
	dc.Stroke()
	dc.SetColor(withAlpha(secondary, 0.1))
	dc.DrawRoundedRectangle(Width/2-34, footerTop+26, 68, 68, 4)
	dc.Fill()
	dc.SetFontFace(ff.seal)
	dc.SetColor(secondary)
	dc.DrawStringWrapped(SealText, Width/2, footerTop+60, 0.5, 0.5, 40, 1.1, gg.AlignCenter)

	dc.SetFontFace(ff.footer)
	dc.SetColor(withAlpha(secondary, 0.8))
	dc.DrawStringAnchored(Footer, Width/2, footerTop+140, 0.5, 0.5)

	if spec.QRURL != "" {
		if err := drawQR(dc, spec.QRURL, Width-80-150, footerTop+16, 130); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("cardimage encode: %w", err)
	}
	return buf.Bytes(), nil
}

// base returns a context holding the theme gradient with the optional
// background composited over it.
func base(spec CardSpec) (*gg.Context, error) {
	grad, err := ParseGradient(spec.Theme.CardBg)
	if err != nil {
		return nil, err
	}
	dc := gg.NewContext(Width, Height)
	dc.SetFillStyle(grad.Pattern(Width, Height))
	dc.DrawRectangle(0, 0, Width, Height)
	dc.Fill()

	if spec.Background == nil {
		return dc, nil
	}
	bg := imaging.Fill(spec.Background, Width, Height, imaging.Center, imaging.Lanczos)
	composed := imaging.Overlay(dc.Image(), bg, image.Pt(0, 0), 0.35)
	return gg.NewContextForImage(composed), nil
}

func drawShadowed(dc *gg.Context, face font.Face, s string, x, y float64, c color.NRGBA, offset float64) {
	dc.SetFontFace(face)
	dc.SetColor(color.NRGBA{A: 77})
	dc.DrawStringAnchored(s, x, y+offset, 0.5, 0.5)
	dc.SetColor(c)
	dc.DrawStringAnchored(s, x, y, 0.5, 0.5)
}

func drawCorners(dc *gg.Context, c color.NRGBA) {
	corners := []struct{ x, y, sx, sy float64 }{
		{60, 60, 1, 1}, {Width - 60, 60, -1, 1}, {Width - 60, Height - 60, -1, -1}, {60, Height - 60, 1, -1},
	}
	dc.SetColor(c)
	for _, k := range corners {
		dc.SetLineWidth(3)
		dc.DrawLine(k.x, k.y, k.x+52*k.sx, k.y)
		dc.DrawLine(k.x, k.y, k.x, k.y+52*k.sy)
		dc.Stroke()
		dc.SetLineWidth(1.5)
		dc.DrawLine(k.x+8*k.sx, k.y+8*k.sy, k.x+45*k.sx, k.y+8*k.sy)
		dc.DrawLine(k.x+8*k.sx, k.y+8*k.sy, k.x+8*k.sx, k.y+45*k.sy)
		dc.Stroke()
		dc.DrawCircle(k.x, k.y, 3)
		dc.Fill()
	}
}

func drawQR(dc *gg.Context, url string, x, y float64, size int) error {
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("cardimage qr: %w", err)
	}
	q.DisableBorder = true

	dc.SetColor(color.White)
	dc.DrawRoundedRectangle(x-8, y-8, float64(size)+16, float64(size)+16, 8)
	dc.Fill()
	dc.DrawImage(q.Image(size), int(x), int(y))
	return nil
}
