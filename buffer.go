package wgrender

import (
	"github.com/gekko3d/wgrender/gpu"
)

// Buffer owns CPU-side bytes and the GPU buffer they are uploaded to. The
// GPU buffer grows to fit and never shrinks; growing replaces it and bumps
// the generation.
type Buffer struct {
	resource
	usage  gpu.BufferUsage
	data   []byte
	handle gpu.Buffer
}

func NewBuffer(label string, usage gpu.BufferUsage, data []byte) *Buffer {
	return &Buffer{
		resource: newResource("buffer", label),
		usage:    usage,
		data:     data,
	}
}

func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }
func (b *Buffer) Data() []byte           { return b.data }
func (b *Buffer) Size() uint64           { return uint64(len(b.data)) }

// SetData replaces the CPU bytes; the next EnsureUploaded writes them.
func (b *Buffer) SetData(data []byte) {
	b.data = data
	b.markDirty()
}

// MarkDirty schedules a re-upload after the caller changed Data in place.
func (b *Buffer) MarkDirty() { b.markDirty() }

func (b *Buffer) gpuBuffer() gpu.Buffer { return b.handle }

// EnsureUploaded allocates or grows the GPU buffer and writes pending data.
// It reports whether anything was written.
func (b *Buffer) EnsureUploaded(r *Renderer) (bool, error) {
	reset, err := b.bind(r, b.handle)
	if err != nil {
		return false, err
	}
	if reset {
		b.handle = nil
	}
	if !b.dirty && b.handle != nil {
		return false, nil
	}

	needed := align4(uint64(len(b.data)))
	if needed == 0 {
		needed = 4
	}
	if b.handle == nil || b.handle.Size() < needed {
		if b.handle != nil {
			b.retire(b.handle)
			b.handle = nil
		}
		h, err := r.dev.CreateBuffer(&gpu.BufferDescriptor{
			Label: b.label,
			Size:  needed,
			Usage: b.usage | gpu.BufferUsageCopyDst,
		})
		if err != nil {
			return false, &ResourceError{Resource: b.label, Op: "allocate", Err: err}
		}
		b.handle = h
		b.generation++
	}

	if len(b.data) > 0 {
		data := b.data
		if pad := align4(uint64(len(data))); pad != uint64(len(data)) {
			data = make([]byte, pad)
			copy(data, b.data)
		}
		if err := r.dev.WriteBuffer(b.handle, 0, data); err != nil {
			return false, &ResourceError{Resource: b.label, Op: "upload", Err: err}
		}
	}
	b.dirty = false
	b.uploads++
	r.stats.Uploads++
	return true, nil
}

// Release frees the GPU buffer once in-flight frames are done with it.
// Bind groups still referencing b fail with StaleResourceError.
func (b *Buffer) Release() {
	if !b.release() {
		return
	}
	b.retire(b.handle)
	b.handle = nil
}

// ComputeBuffer is a storage buffer for compute passes. It can be copied
// back to the CPU with Renderer.ReadBack and, when created with vertex
// usage, fed to a Geometry as an attribute buffer.
type ComputeBuffer struct {
	*Buffer
}

// NewComputeBuffer creates a zero-filled storage buffer of size bytes.
func NewComputeBuffer(label string, size uint64, vertex bool) *ComputeBuffer {
	return NewComputeBufferFromData(label, make([]byte, align4(size)), vertex)
}

func NewComputeBufferFromData(label string, data []byte, vertex bool) *ComputeBuffer {
	usage := gpu.BufferUsageStorage | gpu.BufferUsageCopySrc | gpu.BufferUsageCopyDst
	if vertex {
		usage |= gpu.BufferUsageVertex
	}
	return &ComputeBuffer{Buffer: NewBuffer(label, usage, data)}
}
