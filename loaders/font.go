package loaders

import (
	"fmt"
	"image"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gekko3d/wgrender"
	"github.com/gekko3d/wgrender/geometries"
	"github.com/gekko3d/wgrender/gpu"
)

const glyphPadding = 2

// FontLoader rasterises TrueType and OpenType fonts into a single-channel
// glyph atlas.
type FontLoader struct {
	// Size in points. Defaults to 32.
	Size float64
	// DPI defaults to 72, making one point one pixel.
	DPI float64
	// AtlasSize is the side of the square atlas. Defaults to 512.
	AtlasSize int
	// Runes to rasterise. Defaults to printable ASCII.
	Runes []rune
}

// Font is a rasterised glyph atlas. It implements geometries.GlyphSource.
type Font struct {
	atlas      *image.Alpha
	glyphs     map[rune]geometries.Glyph
	ascent     float32
	lineHeight float32
}

func (l FontLoader) Load(path string) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loaders: read font: %w", err)
	}
	return l.Parse(data)
}

// Parse rasterises every requested rune of the font in data. It fails when
// the atlas is too small to hold them all.
func (l FontLoader) Parse(data []byte) (*Font, error) {
	if l.Size <= 0 {
		l.Size = 32
	}
	if l.DPI <= 0 {
		l.DPI = 72
	}
	if l.AtlasSize <= 0 {
		l.AtlasSize = 512
	}
	if len(l.Runes) == 0 {
		for r := rune(32); r < 127; r++ {
			l.Runes = append(l.Runes, r)
		}
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loaders: parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    l.Size,
		DPI:     l.DPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("loaders: create font face: %w", err)
	}
	defer face.Close()

	size := l.AtlasSize
	out := &Font{
		atlas:  image.NewAlpha(image.Rect(0, 0, size, size)),
		glyphs: make(map[rune]geometries.Glyph, len(l.Runes)),
	}
	metrics := face.Metrics()
	out.ascent = float32(metrics.Ascent.Ceil())
	out.lineHeight = float32(metrics.Height.Ceil())

	x, y, rowHeight := glyphPadding, glyphPadding, 0
	for _, r := range l.Runes {
		dr, mask, maskp, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		w, h := dr.Dx(), dr.Dy()
		if x+w+glyphPadding > size {
			x = glyphPadding
			y += rowHeight + glyphPadding
			rowHeight = 0
		}
		if x+w+glyphPadding > size || y+h+glyphPadding > size {
			return nil, fmt.Errorf("loaders: glyph %q does not fit a %dx%d atlas", r, size, size)
		}
		if w > 0 && h > 0 {
			draw.Draw(out.atlas, image.Rect(x, y, x+w, y+h), mask, maskp, draw.Src)
		}
		out.glyphs[r] = geometries.Glyph{
			UVMin:   [2]float32{float32(x) / float32(size), float32(y) / float32(size)},
			UVMax:   [2]float32{float32(x+w) / float32(size), float32(y+h) / float32(size)},
			Size:    [2]float32{float32(w), float32(h)},
			Offset:  [2]float32{float32(dr.Min.X), float32(dr.Min.Y)},
			Advance: float32(adv) / 64,
		}
		x += w + glyphPadding
		rowHeight = max(rowHeight, h)
	}
	return out, nil
}

func (f *Font) Glyph(r rune) (geometries.Glyph, bool) {
	g, ok := f.glyphs[r]
	return g, ok
}

func (f *Font) Ascent() float32     { return f.ascent }
func (f *Font) LineHeight() float32 { return f.lineHeight }
func (f *Font) GlyphCount() int     { return len(f.glyphs) }

// Image returns the atlas as single-channel coverage.
func (f *Font) Image() wgrender.ImageData {
	b := f.atlas.Rect
	return wgrender.ImageData{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: gpu.TextureFormatR8Unorm,
		Pixels: f.atlas.Pix,
	}
}

// Texture wraps the atlas for use with wgrender.NewTextMaterial.
func (f *Font) Texture(label string) *wgrender.Texture {
	return wgrender.NewTexture(label, f.Image())
}
