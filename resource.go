package wgrender

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gekko3d/wgrender/gpu"
)

var ErrResourceReleased = errors.New("wgrender: resource released")

var nextResourceID atomic.Uint64

// Resource is anything a Binding can reference. The generation changes
// whenever the underlying GPU object is replaced, so bind groups built
// against an older generation are rebuilt.
type Resource interface {
	ResourceID() uint64
	Generation() uint64
	Label() string
	Released() bool
	EnsureUploaded(r *Renderer) (bool, error)
}

// BufferResource is a Resource backed by a GPU buffer.
type BufferResource interface {
	Resource
	gpuBuffer() gpu.Buffer
}

// TextureResource is a Resource backed by a GPU texture.
type TextureResource interface {
	Resource
	gpuTexture() gpu.Texture
}

// SamplerResource is a Resource backed by a GPU sampler.
type SamplerResource interface {
	Resource
	gpuSampler() gpu.Sampler
}

// resource carries the identity, dirty state and renderer ownership shared
// by all GPU-backed resources.
type resource struct {
	id         uint64
	label      string
	generation uint64
	dirty      bool
	released   bool
	owner      *Renderer
	uploads    int
}

func newResource(kind, label string) resource {
	if label == "" {
		label = kind + "-" + uuid.NewString()[:8]
	}
	return resource{
		id:    nextResourceID.Add(1),
		label: label,
		dirty: true,
	}
}

func (r *resource) ResourceID() uint64 { return r.id }
func (r *resource) Generation() uint64 { return r.generation }
func (r *resource) Label() string      { return r.label }
func (r *resource) Released() bool     { return r.released }
func (r *resource) Dirty() bool        { return r.dirty }

// Uploads counts how many times CPU data reached the GPU.
func (r *resource) Uploads() int { return r.uploads }

func (r *resource) markDirty() { r.dirty = true }

// bind attaches the resource to ren. When ownership moves from a released
// or lost renderer it hands old to that renderer, which releases it or
// drops it with its device, and reports true so the caller forgets it.
func (r *resource) bind(ren *Renderer, old gpu.Releasable) (reset bool, err error) {
	if r.released {
		return false, &ResourceError{Resource: r.label, Op: "bind", Err: ErrResourceReleased}
	}
	if err := ren.usable(); err != nil {
		return false, err
	}
	if r.owner == ren {
		return false, nil
	}
	if r.owner != nil && r.owner.alive() {
		return false, &ResourceError{Resource: r.label, Op: "bind", Err: fmt.Errorf("owned by another renderer")}
	}
	if r.owner != nil {
		r.owner.retire(old)
		reset = true
	}
	r.owner = ren
	r.dirty = true
	return reset, nil
}

// retire hands a replaced or released handle to its owner for deferred
// release.
func (r *resource) retire(h gpu.Releasable) {
	if h == nil || r.owner == nil {
		return
	}
	r.owner.retire(h)
}

func (r *resource) release() bool {
	if r.released {
		return false
	}
	r.released = true
	return true
}

func align4(n uint64) uint64 {
	if n%4 != 0 {
		n += 4 - n%4
	}
	return n
}

func alignTo(n, a uint64) uint64 {
	if a == 0 {
		return n
	}
	return (n + a - 1) / a * a
}
