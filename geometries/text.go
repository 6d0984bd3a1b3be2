package geometries

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender"
)

// Glyph locates one rasterised rune in an atlas. Size, Offset and Advance
// are in atlas pixels; Offset is from the pen position to the glyph's
// top-left corner with y pointing down.
type Glyph struct {
	UVMin   [2]float32
	UVMax   [2]float32
	Size    [2]float32
	Offset  [2]float32
	Advance float32
}

// GlyphSource is implemented by font atlases such as loaders.Font.
type GlyphSource interface {
	Glyph(r rune) (Glyph, bool)
	Ascent() float32
	LineHeight() float32
}

// TextOptions control Text layout.
type TextOptions struct {
	// Size is the line height in world units. Defaults to 1.
	Size float32
	// Center shifts the block so its bounding box is centred on the
	// origin horizontally.
	Center bool
}

// Text lays out s as one quad per glyph in the XY plane, starting at the
// origin and growing right and down. Newlines start a new line; runes the
// source cannot render are skipped. It returns nil when nothing is visible.
func Text(src GlyphSource, s string, opts TextOptions) *wgrender.Geometry {
	size := opts.Size
	if size <= 0 {
		size = 1
	}
	lineHeight := src.LineHeight()
	if lineHeight <= 0 {
		return nil
	}
	scale := size / lineHeight
	ascent := src.Ascent()

	var m meshData
	var lineStarts []int
	var lineWidths []float32
	normal := mgl32.Vec3{0, 0, 1}
	penX, penY := float32(0), float32(0)
	lineStarts = append(lineStarts, 0)

	for _, r := range s {
		if r == '\n' {
			lineWidths = append(lineWidths, penX)
			lineStarts = append(lineStarts, len(m.positions)/3)
			penX = 0
			penY += lineHeight
			continue
		}
		g, ok := src.Glyph(r)
		if !ok {
			continue
		}
		if g.Size[0] > 0 && g.Size[1] > 0 {
			x0 := (penX + g.Offset[0]) * scale
			x1 := (penX + g.Offset[0] + g.Size[0]) * scale
			y0 := -(penY + ascent + g.Offset[1]) * scale
			y1 := -(penY + ascent + g.Offset[1] + g.Size[1]) * scale

			a := m.vertex(mgl32.Vec3{x0, y0, 0}, normal, g.UVMin[0], g.UVMin[1])
			b := m.vertex(mgl32.Vec3{x0, y1, 0}, normal, g.UVMin[0], g.UVMax[1])
			c := m.vertex(mgl32.Vec3{x1, y1, 0}, normal, g.UVMax[0], g.UVMax[1])
			d := m.vertex(mgl32.Vec3{x1, y0, 0}, normal, g.UVMax[0], g.UVMin[1])
			m.triangle(a, b, d)
			m.triangle(b, c, d)
		}
		penX += g.Advance
	}
	lineWidths = append(lineWidths, penX)

	if len(m.indices) == 0 {
		return nil
	}
	if opts.Center {
		for line, start := range lineStarts {
			end := len(m.positions) / 3
			if line+1 < len(lineStarts) {
				end = lineStarts[line+1]
			}
			shift := lineWidths[line] * scale / 2
			for v := start; v < end; v++ {
				m.positions[v*3] -= shift
			}
		}
	}
	return m.build("text")
}

// MeasureText returns the width and height s occupies in atlas pixels.
func MeasureText(src GlyphSource, s string) (width, height float32) {
	lines := 1
	var cur float32
	for _, r := range s {
		if r == '\n' {
			width = max(width, cur)
			cur = 0
			lines++
			continue
		}
		if g, ok := src.Glyph(r); ok {
			cur += g.Advance
		}
	}
	return max(width, cur), src.LineHeight() * float32(lines)
}
