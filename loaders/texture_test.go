package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gekko3d/wgrender/gpu"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 30, A: 255})
		}
	}
	return img
}

func TestTextureLoader_DecodeFormats(t *testing.T) {
	src := testImage(4, 2)
	encoders := map[string]func(*bytes.Buffer) error{
		"png":  func(b *bytes.Buffer) error { return png.Encode(b, src) },
		"bmp":  func(b *bytes.Buffer) error { return bmp.Encode(b, src) },
		"tiff": func(b *bytes.Buffer) error { return tiff.Encode(b, src, nil) },
	}
	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, encode(&buf))
			img, err := TextureLoader{}.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, 4, img.Width)
			assert.Equal(t, 2, img.Height)
			assert.Equal(t, gpu.TextureFormatRGBA8Unorm, img.Format)
			require.Len(t, img.Pixels, 4*2*4)
			// Pixel (3,1).
			assert.Equal(t, []byte{120, 40, 30, 255}, img.Pixels[(1*4+3)*4:(1*4+3)*4+4])
		})
	}
}

func TestTextureLoader_MaxSize(t *testing.T) {
	img := TextureLoader{MaxSize: 2, SRGB: true}.FromImage(testImage(4, 2))
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 1, img.Height)
	assert.Len(t, img.Pixels, 2*1*4)
	assert.Equal(t, gpu.TextureFormatRGBA8UnormSrgb, img.Format)

	// Images within the limit keep their size.
	img = TextureLoader{MaxSize: 8}.FromImage(testImage(4, 2))
	assert.Equal(t, 4, img.Width)
}

func TestTextureLoader_SubImageOrigin(t *testing.T) {
	sub := testImage(4, 4).SubImage(image.Rect(2, 2, 4, 4))
	img := TextureLoader{}.FromImage(sub)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, []byte{80, 80, 30, 255}, img.Pixels[:4])
}

func TestTextureLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checker.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, testImage(2, 2)))
	require.NoError(t, f.Close())

	tex, err := TextureLoader{}.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "checker.png", tex.Label())
	assert.Equal(t, 2, tex.Width())

	_, err = TextureLoader{}.Load(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = TextureLoader{}.Decode(strings.NewReader("not an image"))
	assert.ErrorIs(t, err, image.ErrFormat)
}
