package cardimage

import (
	"fmt"
	"image/color"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
)

var (
	gradientRe = regexp.MustCompile(`^linear-gradient\(\s*(-?[\d.]+)deg\s*,(.+)\)$`)
	stopRe     = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8})(?:\s+([\d.]+)%)?$`)
	rgbaRe     = regexp.MustCompile(`^rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*(?:,\s*([\d.]+)\s*)?\)$`)
)

// Stop is one color stop of a linear gradient.
type Stop struct {
	Offset float64 // 0..1
	Color  color.NRGBA
}

// Gradient is a parsed CSS linear-gradient.
type Gradient struct {
	Angle float64 // degrees, CSS convention (0 = to top, 90 = to right)
	Stops []Stop
}

// ParseGradient parses `linear-gradient(<angle>deg, <hex> [<pct>%], ...)`.
// Stops without a position are spread evenly as in CSS.
func ParseGradient(css string) (Gradient, error) {
	m := gradientRe.FindStringSubmatch(strings.TrimSpace(css))
	if m == nil {
		return Gradient{}, fmt.Errorf("cardimage: unsupported background %q", css)
	}
	angle, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Gradient{}, fmt.Errorf("cardimage: angle: %w", err)
	}

	parts := strings.Split(m[2], ",")
	if len(parts) < 2 {
		return Gradient{}, fmt.Errorf("cardimage: gradient needs two stops")
	}
	g := Gradient{Angle: angle, Stops: make([]Stop, len(parts))}
	for i, p := range parts {
		sm := stopRe.FindStringSubmatch(strings.TrimSpace(p))
		if sm == nil {
			return Gradient{}, fmt.Errorf("cardimage: bad color stop %q", p)
		}
		c, err := ParseColor(sm[1])
		if err != nil {
			return Gradient{}, err
		}
		off := float64(i) / float64(len(parts)-1)
		if sm[2] != "" {
			pct, _ := strconv.ParseFloat(sm[2], 64)
			off = pct / 100
		}
		g.Stops[i] = Stop{Offset: off, Color: c}
	}
	return g, nil
}

// Pattern returns a gg gradient covering a w x h box the way a browser
// lays out the CSS gradient line.
func (g Gradient) Pattern(w, h float64) gg.Gradient {
	rad := g.Angle * math.Pi / 180
	dx, dy := math.Sin(rad), -math.Cos(rad)
	half := (math.Abs(w*dx) + math.Abs(h*dy)) / 2
	cx, cy := w/2, h/2

	grad := gg.NewLinearGradient(cx-dx*half, cy-dy*half, cx+dx*half, cy+dy*half)
	for _, s := range g.Stops {
		grad.AddColorStop(s.Offset, s.Color)
	}
	return grad
}

// ParseColor parses #rgb, #rrggbb, #rrggbbaa, rgb(r, g, b) or
// rgba(r, g, b, a).
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if m := rgbaRe.FindStringSubmatch(s); m != nil {
		var c [3]uint8
		for i := range c {
			v, err := strconv.ParseUint(m[i+1], 10, 8)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("cardimage: bad color %q", s)
			}
			c[i] = uint8(v)
		}
		a := 1.0
		if m[4] != "" {
			a, _ = strconv.ParseFloat(m[4], 64)
			a = math.Max(0, math.Min(1, a))
		}
		return color.NRGBA{R: c[0], G: c[1], B: c[2], A: uint8(math.Round(a * 255))}, nil
	}

	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("cardimage: bad color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("cardimage: bad color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// mustColor parses a catalog color, falling back to gold.
func mustColor(s string) color.NRGBA {
	c, err := ParseColor(s)
	if err != nil {
		return color.NRGBA{R: 0xfb, G: 0xbf, B: 0x24, A: 0xff}
	}
	return c
}

func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(float64(c.A) * a)
	return c
}
