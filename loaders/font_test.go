package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/gekko3d/wgrender/geometries"
	"github.com/gekko3d/wgrender/gpu"
)

func TestFontLoader_Atlas(t *testing.T) {
	f, err := FontLoader{Size: 24}.Parse(goregular.TTF)
	require.NoError(t, err)
	assert.Equal(t, 95, f.GlyphCount())
	assert.Greater(t, f.Ascent(), float32(0))
	assert.GreaterOrEqual(t, f.LineHeight(), f.Ascent())

	a, ok := f.Glyph('A')
	require.True(t, ok)
	assert.Greater(t, a.Advance, float32(0))
	assert.Greater(t, a.Size[0], float32(0))
	assert.Less(t, a.Offset[1], float32(0), "glyph top sits above the baseline")
	assert.Less(t, a.UVMin[0], a.UVMax[0])
	assert.Less(t, a.UVMin[1], a.UVMax[1])

	space, ok := f.Glyph(' ')
	require.True(t, ok)
	assert.Zero(t, space.Size[0])
	assert.Greater(t, space.Advance, float32(0))

	_, ok = f.Glyph('€')
	assert.False(t, ok)

	img := f.Image()
	assert.Equal(t, gpu.TextureFormatR8Unorm, img.Format)
	require.Len(t, img.Pixels, 512*512)
	// The glyph's atlas cell holds coverage.
	x0, y0 := int(a.UVMin[0]*512), int(a.UVMin[1]*512)
	x1, y1 := int(a.UVMax[0]*512), int(a.UVMax[1]*512)
	covered := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if img.Pixels[y*512+x] > 0 {
				covered++
			}
		}
	}
	assert.Greater(t, covered, 0)
}

func TestFontLoader_DrivesTextGeometry(t *testing.T) {
	f, err := FontLoader{Size: 16}.Parse(goregular.TTF)
	require.NoError(t, err)
	g := geometries.Text(f, "Hi", geometries.TextOptions{Size: 1})
	require.NotNil(t, g)
	assert.Equal(t, uint32(8), g.VertexCount())

	tex := f.Texture("atlas")
	assert.Equal(t, 512, tex.Width())
	assert.Equal(t, gpu.TextureFormatR8Unorm, tex.Format())
}

func TestFontLoader_Errors(t *testing.T) {
	_, err := FontLoader{Size: 48, AtlasSize: 32}.Parse(goregular.TTF)
	assert.ErrorContains(t, err, "does not fit")

	_, err = FontLoader{}.Parse([]byte("not a font"))
	assert.Error(t, err)

	_, err = FontLoader{}.Load(filepath.Join(t.TempDir(), "missing.ttf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
