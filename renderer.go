package wgrender

import (
	"errors"
	"fmt"

	"github.com/gekko3d/wgrender/gpu"
)

const (
	cameraUniformSize = 256
	objectUniformSize = 128
)

type retiredHandle struct {
	h  gpu.Releasable
	at uint64
}

// Renderer turns scenes into GPU commands on one device. It owns the
// pipeline and layout caches and the per-frame camera and object uniforms;
// geometries, materials and textures stay owned by the caller and are
// uploaded on first use.
//
// A Renderer is driven from a single goroutine.
type Renderer struct {
	dev    gpu.Device
	cfg    Config
	log    Logger
	limits gpu.Limits

	frameNo     uint64
	submissions uint64
	cur         *frameState

	released bool
	lostErr  error

	retired   []retiredHandle
	layouts   map[uint64]gpu.BindGroupLayout
	pipelines map[uint64]*pipelineEntry

	cameraBuf   *Buffer
	cameraGroup *BindableGroup
	objectBuf   *Buffer
	objectGroup *BindableGroup
	objectCap   int
	objectStep  uint64

	depth gpu.Texture

	stats FrameStats
	last  *FrameReport
}

// NewRenderer validates cfg and prepares the renderer. No GPU objects are
// created until the first frame.
func NewRenderer(dev gpu.Device, cfg Config, opts ...Option) (*Renderer, error) {
	if dev == nil {
		return nil, fmt.Errorf("wgrender: nil device")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		dev:       dev,
		cfg:       cfg,
		log:       cfg.logger(),
		limits:    dev.Limits(),
		layouts:   map[uint64]gpu.BindGroupLayout{},
		pipelines: map[uint64]*pipelineEntry{},
	}
	for _, opt := range opts {
		opt(r)
	}

	align := uint64(r.limits.MinUniformBufferOffsetAlignment)
	if align == 0 {
		align = 256
	}
	r.objectStep = alignTo(objectUniformSize, align)
	r.objectCap = cfg.ObjectCapacity

	r.cameraBuf = NewBuffer("camera", gpu.BufferUsageUniform, make([]byte, cameraUniformSize))
	r.objectBuf = NewBuffer("objects", gpu.BufferUsageUniform, make([]byte, uint64(r.objectCap)*r.objectStep))
	var err error
	r.cameraGroup, err = NewBindableGroup("camera", UniformBinding(0, r.cameraBuf).WithVisibility(gpu.ShaderStageVertex|gpu.ShaderStageFragment))
	if err != nil {
		return nil, err
	}
	objects := UniformBinding(0, r.objectBuf).WithVisibility(gpu.ShaderStageVertex | gpu.ShaderStageFragment)
	objects.Dynamic = true
	objects.Size = objectUniformSize
	r.objectGroup, err = NewBindableGroup("objects", objects)
	if err != nil {
		return nil, err
	}
	r.log.Debugf("renderer ready: frames in flight %d, object capacity %d", cfg.FramesInFlight, cfg.ObjectCapacity)
	return r, nil
}

func (r *Renderer) Config() Config      { return r.cfg }
func (r *Renderer) Device() gpu.Device  { return r.dev }
func (r *Renderer) FrameNumber() uint64 { return r.frameNo }

// LastReport is the report of the most recent pass or frame, or nil.
func (r *Renderer) LastReport() *FrameReport { return r.last }

// Err reports why the renderer can no longer be used, or nil.
func (r *Renderer) Err() error { return r.usable() }

func (r *Renderer) usable() error {
	if r.released {
		return ErrRendererReleased
	}
	return r.lostErr
}

func (r *Renderer) alive() bool { return !r.released && r.lostErr == nil }

// retire queues h for release once the frames that may still use it have
// finished. On a lost device handles are dropped instead.
func (r *Renderer) retire(h gpu.Releasable) {
	if h == nil || r.lostErr != nil {
		return
	}
	if r.released {
		h.Release()
		return
	}
	r.retired = append(r.retired, retiredHandle{h: h, at: r.submissions})
}

func (r *Renderer) releaseRetired(all bool) {
	keep := r.retired[:0]
	for _, rh := range r.retired {
		if all || r.submissions-rh.at >= uint64(r.cfg.FramesInFlight) {
			rh.h.Release()
			continue
		}
		keep = append(keep, rh)
	}
	for i := len(keep); i < len(r.retired); i++ {
		r.retired[i] = retiredHandle{}
	}
	r.retired = keep
}

// Pending is the number of retired handles waiting for release.
func (r *Renderer) Pending() int { return len(r.retired) }

// fail turns device-lost errors into the renderer's DeviceLostError and
// passes everything else through.
func (r *Renderer) fail(err error) error {
	if err == nil {
		return nil
	}
	if isDeviceLost(err) {
		return r.loseDevice(err)
	}
	return err
}

// loseDevice invalidates every cached GPU object. Nothing is released: the
// handles died with the device.
func (r *Renderer) loseDevice(cause error) error {
	if r.lostErr != nil {
		return r.lostErr
	}
	var dl *DeviceLostError
	if !errors.As(cause, &dl) {
		dl = &DeviceLostError{Err: cause}
	}
	r.lostErr = dl
	r.log.Errorf("device lost: %v", cause)
	r.retired = nil
	r.layouts = map[uint64]gpu.BindGroupLayout{}
	r.pipelines = map[uint64]*pipelineEntry{}
	r.depth = nil
	r.cur = nil
	return dl
}

// submit finishes enc and hands it to the queue.
func (r *Renderer) submit(enc gpu.CommandEncoder, label string) error {
	defer enc.Release()
	cb, err := enc.Finish()
	if err != nil {
		return r.fail(&ResourceError{Resource: label, Op: "finish", Err: err})
	}
	err = r.dev.Submit(cb)
	cb.Release()
	if err != nil {
		return r.fail(&ResourceError{Resource: label, Op: "submit", Err: err})
	}
	r.submissions++
	r.releaseRetired(false)
	return nil
}

// Poll lets the device run completion callbacks such as readbacks without
// blocking.
func (r *Renderer) Poll() {
	if r.alive() {
		r.dev.Poll(false)
	}
}

// Resize reconfigures the surface. The depth buffer follows on the next
// frame.
func (r *Renderer) Resize(width, height uint32) error {
	if err := r.usable(); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return nil
	}
	if err := r.dev.Resize(width, height); err != nil {
		return r.fail(&ResourceError{Resource: "surface", Op: "resize", Err: err})
	}
	return nil
}

// Release frees everything the renderer created. Caller-owned resources
// keep their handles until they are released, which then happens at once.
// The device itself is left to its owner.
func (r *Renderer) Release() {
	if r.released {
		return
	}
	lost := r.lostErr != nil
	if !lost {
		if r.cur != nil {
			_ = r.dev.Present(r.cur.frame)
			r.cur = nil
		}
		r.releaseRetired(true)
		for _, e := range r.pipelines {
			e.release()
		}
		for _, l := range r.layouts {
			l.Release()
		}
		if r.depth != nil {
			r.depth.Release()
		}
	}
	r.released = true
	r.pipelines = nil
	r.layouts = nil
	r.depth = nil
	r.retired = nil
	r.cameraGroup.Release()
	r.objectGroup.Release()
	r.cameraBuf.Release()
	r.objectBuf.Release()
	r.log.Debugf("renderer released after %d frames", r.frameNo)
}
