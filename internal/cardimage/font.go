package cardimage

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Fonts creates faces of one typeface at arbitrary sizes.
type Fonts struct {
	font *opentype.Font
}

// LoadFonts reads an OpenType/TrueType file or collection. An empty path
// uses Go Regular, which lacks CJK glyphs; production deployments point
// CARD_FONT_PATH at a CJK font such as Noto Serif SC.
func LoadFonts(path string) (*Fonts, error) {
	if path == "" {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("cardimage font: %w", err)
		}
		return &Fonts{font: f}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cardimage font: %w", err)
	}
	if f, err := opentype.Parse(data); err == nil {
		return &Fonts{font: f}, nil
	}
	coll, err := opentype.ParseCollection(data)
	if err != nil {
		return nil, fmt.Errorf("cardimage font %s: %w", path, err)
	}
	f, err := coll.Font(0)
	if err != nil {
		return nil, fmt.Errorf("cardimage font %s: %w", path, err)
	}
	return &Fonts{font: f}, nil
}

// Face returns a new face at size points (72 DPI, so points are pixels).
// Faces are not safe for concurrent use; callers create their own.
func (f *Fonts) Face(size float64) (font.Face, error) {
	face, err := opentype.NewFace(f.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("cardimage face: %w", err)
	}
	return face, nil
}
