package background

import (
	"fmt"
	"math/rand/v2"
)

var palettes = [][4]string{
	{"#7a0b14", "#b3121f", "#f59e0b", "#fde68a"},
	{"#4c0519", "#9f1239", "#fbbf24", "#fff7ed"},
	{"#991b1b", "#dc2626", "#facc15", "#fef3c7"},
	{"#450a0a", "#b91c1c", "#f97316", "#fffbeb"},
}

// PaletteSVG draws an abstract festive background from a random palette:
// a diagonal gradient, a soft glow, blurred circles, hills and sparkles.
// The markup is returned as is; wrap it with SVGDataURI for a URL.
// A nil r uses the global source.
func PaletteSVG(r *rand.Rand) string {
	intn := rand.IntN
	float := rand.Float64
	if r != nil {
		intn = r.IntN
		float = r.Float64
	}

	p := palettes[intn(len(palettes))]
	c1, c2, c3, c4 := p[0], p[1], p[2], p[3]
	n := func() int { return intn(900) + 62 }
	rad := func() int { return intn(120) + 30 }
	op := func() string { return fmt.Sprintf("%.3f", float()*0.35+0.08) }

	svg := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="1024" height="1024" viewBox="0 0 1024 1024">
  <defs>
    <linearGradient id="bg" x1="0" y1="0" x2="1" y2="1">
      <stop offset="0" stop-color="%[1]s"/>
      <stop offset="0.55" stop-color="%[2]s"/>
      <stop offset="1" stop-color="%[1]s"/>
    </linearGradient>
    <radialGradient id="glow" cx="50%%" cy="35%%" r="65%%">
      <stop offset="0" stop-color="%[4]s" stop-opacity="0.9"/>
      <stop offset="1" stop-color="%[4]s" stop-opacity="0"/>
    </radialGradient>
    <filter id="soft" x="-20%%" y="-20%%" width="140%%" height="140%%">
      <feGaussianBlur stdDeviation="14"/>
    </filter>
  </defs>
  <rect width="1024" height="1024" fill="url(#bg)"/>
  <rect width="1024" height="1024" fill="url(#glow)"/>
`, c1, c2, c3, c4)

	svg += `  <g opacity="0.9" filter="url(#soft)">` + "\n"
	for _, fill := range []string{c3, c4, c3, c4} {
		svg += fmt.Sprintf(`    <circle cx="%d" cy="%d" r="%d" fill="%s" fill-opacity="%s"/>`+"\n", n(), n(), rad(), fill, op())
	}
	svg += `  </g>
  <g opacity="0.95">
    <path d="M120 820c90-90 210-90 300 0s210 90 300 0 210-90 300 0v160H120z" fill="#000" fill-opacity="0.18"/>
    <path d="M-40 890c110-110 250-110 360 0s250 110 360 0 250-110 360 0v200H-40z" fill="#000" fill-opacity="0.14"/>
  </g>
`
	svg += fmt.Sprintf(`  <g stroke="%s" stroke-opacity="0.65" stroke-width="3" fill="none">`+"\n", c3)
	svg += fmt.Sprintf(`    <path d="M%d %d l18 -42 l18 42 l-42 -18 l42 18 l-42 18 l42 -18 l-18 42 l-18 -42" />`+"\n", n(), n())
	svg += fmt.Sprintf(`    <path d="M%d %d l14 -34 l14 34 l-34 -14 l34 14 l-34 14 l34 -14 l-14 34 l-14 -34" />`+"\n", n(), n())
	svg += fmt.Sprintf(`    <path d="M%d %d l22 -50 l22 50 l-50 -22 l50 22 l-50 22 l50 -22 l-22 50 l-22 -50" />`+"\n", n(), n())
	svg += "  </g>\n"
	svg += fmt.Sprintf(`  <g>
    <circle cx="860" cy="120" r="60" fill="%[1]s" fill-opacity="0.22"/>
    <circle cx="860" cy="120" r="44" fill="%[2]s" fill-opacity="0.18"/>
    <rect x="846" y="40" width="28" height="18" rx="6" fill="%[2]s" fill-opacity="0.35"/>
    <path d="M860 58v16" stroke="%[2]s" stroke-opacity="0.45" stroke-width="4" />
  </g>
</svg>`, c3, c4)

	return svg
}
