package wgrender

import (
	"context"
	"errors"
	"fmt"

	"github.com/gekko3d/wgrender/gpu"
)

var ErrReadbackPending = errors.New("wgrender: readback not complete")

// Readback is the pending result of copying a GPU buffer range to the CPU.
// It completes during a later Renderer.Poll or Wait.
type Readback struct {
	r    *Renderer
	done chan struct{}
	data []byte
	err  error
}

// Done is closed once the result is available.
func (rb *Readback) Done() <-chan struct{} { return rb.done }

// Result returns ErrReadbackPending until Done is closed.
func (rb *Readback) Result() ([]byte, error) {
	select {
	case <-rb.done:
		return rb.data, rb.err
	default:
		return nil, ErrReadbackPending
	}
}

// Wait polls the device until the readback completes or ctx ends. A device
// lost while waiting completes the readback with a *DeviceLostError.
func (rb *Readback) Wait(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-rb.done:
			return rb.data, rb.err
		default:
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rb.r.usable(); err != nil {
			return nil, err
		}
		rb.r.dev.Poll(true)
	}
}

func (rb *Readback) finish(data []byte, err error) {
	rb.data, rb.err = data, err
	close(rb.done)
}

// ReadBack copies size bytes at offset of buf into a mappable staging
// buffer and returns immediately. Work submitted earlier, such as a
// Dispatch writing buf, is visible in the result.
func (r *Renderer) ReadBack(buf *Buffer, offset, size uint64) (*Readback, error) {
	if err := r.usable(); err != nil {
		return nil, err
	}
	if !buf.Usage().Has(gpu.BufferUsageCopySrc) {
		return nil, &ResourceError{Resource: buf.Label(), Op: "read back", Err: fmt.Errorf("missing copy-src usage")}
	}
	if size == 0 || offset%4 != 0 || size%4 != 0 || offset+size > buf.Size() {
		return nil, &ResourceError{Resource: buf.Label(), Op: "read back", Err: fmt.Errorf("range %d+%d invalid for %d bytes", offset, size, buf.Size())}
	}
	if _, err := buf.EnsureUploaded(r); err != nil {
		return nil, r.fail(err)
	}

	label := buf.Label() + "-readback"
	staging, err := r.dev.CreateBuffer(&gpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gpu.BufferUsageMapRead | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, r.fail(&ResourceError{Resource: label, Op: "allocate", Err: err})
	}
	enc, err := r.dev.CreateCommandEncoder(label)
	if err != nil {
		staging.Release()
		return nil, r.fail(&ResourceError{Resource: label, Op: "encode", Err: err})
	}
	if err := enc.CopyBufferToBuffer(buf.gpuBuffer(), offset, staging, 0, size); err != nil {
		enc.Release()
		staging.Release()
		return nil, &ResourceError{Resource: label, Op: "copy", Err: err}
	}
	if err := r.submit(enc, label); err != nil {
		r.retire(staging)
		return nil, err
	}

	rb := &Readback{r: r, done: make(chan struct{})}
	err = r.dev.MapRead(staging, 0, size, func(data []byte, err error) {
		err = r.fail(err)
		r.retire(staging)
		rb.finish(data, err)
	})
	if err != nil {
		r.retire(staging)
		return nil, r.fail(&ResourceError{Resource: label, Op: "map", Err: err})
	}
	return rb, nil
}
