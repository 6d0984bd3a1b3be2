package wgrender

import (
	"fmt"

	"github.com/gekko3d/wgrender/gpu"
)

// ImageData is decoded pixel data as produced by loaders.
type ImageData struct {
	Width  int
	Height int
	Format gpu.TextureFormat
	Pixels []byte
}

func (img ImageData) validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("invalid extent %dx%d", img.Width, img.Height)
	}
	bpp := img.Format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("format %s cannot be uploaded", img.Format)
	}
	if img.Pixels != nil && len(img.Pixels) != img.Width*img.Height*bpp {
		return fmt.Errorf("%d bytes for %dx%d %s", len(img.Pixels), img.Width, img.Height, img.Format)
	}
	return nil
}

// Texture owns image data and the 2D GPU texture it is uploaded to.
// Changing extent or format reallocates the texture and bumps the
// generation; same-shape updates are written in place.
type Texture struct {
	resource
	image   ImageData
	storage bool
	handle  gpu.Texture
}

func NewTexture(label string, img ImageData) *Texture {
	return &Texture{resource: newResource("texture", label), image: img}
}

// NewStorageTexture creates a texture compute passes can write to. It has
// no CPU pixels.
func NewStorageTexture(label string, width, height int, format gpu.TextureFormat) *Texture {
	return &Texture{
		resource: newResource("texture", label),
		image:    ImageData{Width: width, Height: height, Format: format},
		storage:  true,
	}
}

func (t *Texture) Width() int                { return t.image.Width }
func (t *Texture) Height() int               { return t.image.Height }
func (t *Texture) Format() gpu.TextureFormat { return t.image.Format }
func (t *Texture) Image() ImageData          { return t.image }

func (t *Texture) SetImage(img ImageData) {
	t.image = img
	t.markDirty()
}

func (t *Texture) gpuTexture() gpu.Texture { return t.handle }

func (t *Texture) EnsureUploaded(r *Renderer) (bool, error) {
	reset, err := t.bind(r, t.handle)
	if err != nil {
		return false, err
	}
	if reset {
		t.handle = nil
	}
	if !t.dirty && t.handle != nil {
		return false, nil
	}
	if err := t.image.validate(); err != nil {
		return false, &ResourceError{Resource: t.label, Op: "upload", Err: err}
	}

	w, h := uint32(t.image.Width), uint32(t.image.Height)
	if t.handle == nil || t.handle.Width() != w || t.handle.Height() != h || t.handle.Format() != t.image.Format {
		if t.handle != nil {
			t.retire(t.handle)
			t.handle = nil
		}
		usage := gpu.TextureUsageTextureBinding | gpu.TextureUsageCopyDst
		if t.storage {
			usage |= gpu.TextureUsageStorageBinding
		}
		handle, err := r.dev.CreateTexture(&gpu.TextureDescriptor{
			Label:  t.label,
			Width:  w,
			Height: h,
			Format: t.image.Format,
			Usage:  usage,
		})
		if err != nil {
			return false, &ResourceError{Resource: t.label, Op: "allocate", Err: err}
		}
		t.handle = handle
		t.generation++
	}
	if len(t.image.Pixels) > 0 {
		if err := r.dev.WriteTexture(t.handle, t.image.Pixels); err != nil {
			return false, &ResourceError{Resource: t.label, Op: "upload", Err: err}
		}
	}
	t.dirty = false
	t.uploads++
	r.stats.Uploads++
	return true, nil
}

// Release frees the GPU texture once in-flight frames are done with it.
func (t *Texture) Release() {
	if !t.release() {
		return
	}
	t.retire(t.handle)
	t.handle = nil
}

// VideoSource is an external frame producer such as a decoder. Time is the
// media time of the frame Frame would return.
type VideoSource interface {
	Time() float64
	Frame() (ImageData, bool)
}

// VideoTexture re-uploads whenever its source's media time moves.
type VideoTexture struct {
	*Texture
	source   VideoSource
	lastTime float64
	started  bool
}

func NewVideoTexture(label string, src VideoSource) *VideoTexture {
	return &VideoTexture{Texture: NewTexture(label, ImageData{}), source: src}
}

// NeedsUpdate reports whether the source moved past the uploaded frame.
func (v *VideoTexture) NeedsUpdate() bool {
	return !v.started || v.source.Time() != v.lastTime
}

func (v *VideoTexture) EnsureUploaded(r *Renderer) (bool, error) {
	if v.NeedsUpdate() {
		if img, ok := v.source.Frame(); ok {
			v.SetImage(img)
			v.lastTime = v.source.Time()
			v.started = true
		}
	}
	if !v.started {
		return false, &ResourceError{Resource: v.label, Op: "upload", Err: fmt.Errorf("no video frame available")}
	}
	return v.Texture.EnsureUploaded(r)
}

// Sampler wraps a GPU sampler. Changing the descriptor recreates it.
type Sampler struct {
	resource
	desc   gpu.SamplerDescriptor
	handle gpu.Sampler
}

func NewSampler(label string, desc gpu.SamplerDescriptor) *Sampler {
	s := &Sampler{resource: newResource("sampler", label)}
	desc.Label = s.label
	s.desc = desc
	return s
}

// LinearRepeatSampler is the common filtering sampler for tiled textures.
func LinearRepeatSampler(label string) *Sampler {
	return NewSampler(label, gpu.SamplerDescriptor{
		AddressModeU: gpu.AddressModeRepeat,
		AddressModeV: gpu.AddressModeRepeat,
		AddressModeW: gpu.AddressModeRepeat,
		MagFilter:    gpu.FilterModeLinear,
		MinFilter:    gpu.FilterModeLinear,
		MipmapFilter: gpu.FilterModeLinear,
	})
}

func LinearClampSampler(label string) *Sampler {
	return NewSampler(label, gpu.SamplerDescriptor{
		MagFilter:    gpu.FilterModeLinear,
		MinFilter:    gpu.FilterModeLinear,
		MipmapFilter: gpu.FilterModeLinear,
	})
}

func (s *Sampler) Descriptor() gpu.SamplerDescriptor { return s.desc }

func (s *Sampler) SetDescriptor(desc gpu.SamplerDescriptor) {
	desc.Label = s.label
	s.desc = desc
	s.markDirty()
}

func (s *Sampler) gpuSampler() gpu.Sampler { return s.handle }

func (s *Sampler) EnsureUploaded(r *Renderer) (bool, error) {
	reset, err := s.bind(r, s.handle)
	if err != nil {
		return false, err
	}
	if reset {
		s.handle = nil
	}
	if !s.dirty && s.handle != nil {
		return false, nil
	}
	h, err := r.dev.CreateSampler(&s.desc)
	if err != nil {
		return false, &ResourceError{Resource: s.label, Op: "allocate", Err: err}
	}
	s.retire(s.handle)
	s.handle = h
	s.generation++
	s.dirty = false
	s.uploads++
	r.stats.Uploads++
	return true, nil
}

func (s *Sampler) Release() {
	if !s.release() {
		return
	}
	s.retire(s.handle)
	s.handle = nil
}
