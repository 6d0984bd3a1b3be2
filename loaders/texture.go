// Package loaders turns files into renderer resources: images into
// textures and fonts into glyph atlases.
package loaders

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	// Registered with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gekko3d/wgrender"
	"github.com/gekko3d/wgrender/gpu"
)

// TextureLoader decodes PNG, JPEG, BMP, TIFF and WebP images into RGBA8
// texture data with straight alpha.
type TextureLoader struct {
	// MaxSize, when positive, downscales images whose larger side exceeds
	// it, keeping the aspect ratio.
	MaxSize int
	// SRGB uploads the texels as sRGB so sampling linearises them.
	SRGB bool
}

// Load reads path and wraps the decoded image in a texture labelled with
// the file name.
func (l TextureLoader) Load(path string) (*wgrender.Texture, error) {
	img, err := l.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return wgrender.NewTexture(filepath.Base(path), img), nil
}

func (l TextureLoader) LoadImage(path string) (wgrender.ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return wgrender.ImageData{}, fmt.Errorf("loaders: open texture: %w", err)
	}
	defer f.Close()
	img, err := l.Decode(f)
	if err != nil {
		return wgrender.ImageData{}, fmt.Errorf("%w (%s)", err, path)
	}
	return img, nil
}

// Decode reads any registered image format from r.
func (l TextureLoader) Decode(r io.Reader) (wgrender.ImageData, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return wgrender.ImageData{}, fmt.Errorf("loaders: decode texture: %w", err)
	}
	return l.FromImage(img), nil
}

// FromImage converts img, scaling it down when it exceeds MaxSize.
func (l TextureLoader) FromImage(img image.Image) wgrender.ImageData {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if l.MaxSize > 0 && max(w, h) > l.MaxSize {
		scale := float64(l.MaxSize) / float64(max(w, h))
		dst = image.NewNRGBA(image.Rect(0, 0,
			max(1, int(float64(w)*scale+0.5)),
			max(1, int(float64(h)*scale+0.5))))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	} else {
		xdraw.Draw(dst, dst.Bounds(), img, bounds.Min, xdraw.Src)
	}

	format := gpu.TextureFormatRGBA8Unorm
	if l.SRGB {
		format = gpu.TextureFormatRGBA8UnormSrgb
	}
	return wgrender.ImageData{
		Width:  dst.Rect.Dx(),
		Height: dst.Rect.Dy(),
		Format: format,
		Pixels: dst.Pix,
	}
}
