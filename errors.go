package wgrender

import (
	"errors"
	"fmt"

	"github.com/gekko3d/wgrender/gpu"
)

var (
	ErrRendererReleased = errors.New("wgrender: renderer released")
	ErrNoFrame          = errors.New("wgrender: no frame in progress")
	ErrFrameInProgress  = errors.New("wgrender: frame already in progress")
	ErrCycle            = errors.New("wgrender: node cannot become a child of its own descendant")
	ErrForeignNode      = errors.New("wgrender: node belongs to another scene")
	ErrNoVertexData     = errors.New("wgrender: geometry has no vertex data")
	ErrNoGeometry       = errors.New("wgrender: renderable has no geometry")
	ErrNoMaterial       = errors.New("wgrender: renderable has no material")
)

// ResourceError reports a missing or invalid GPU resource. The affected
// renderable or dispatch is skipped.
type ResourceError struct {
	Resource string
	Op       string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("wgrender: %s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// StaleResourceError reports a binding that references a released
// resource.
type StaleResourceError struct {
	Group    string
	Slot     uint32
	Resource string
}

func (e *StaleResourceError) Error() string {
	return fmt.Sprintf("wgrender: group %q slot %d references released %s", e.Group, e.Slot, e.Resource)
}

// PipelineCompilationError is cached per pipeline key; every material
// sharing the key fails the same way until its shader or state changes.
type PipelineCompilationError struct {
	Label string
	Key   uint64
	Err   error
}

func (e *PipelineCompilationError) Error() string {
	return fmt.Sprintf("wgrender: pipeline %q (%016x): %v", e.Label, e.Key, e.Err)
}

func (e *PipelineCompilationError) Unwrap() error { return e.Err }

// DeviceLostError is fatal to the renderer that returns it.
type DeviceLostError struct {
	Err error
}

func (e *DeviceLostError) Error() string {
	return fmt.Sprintf("wgrender: device lost: %v", e.Err)
}

func (e *DeviceLostError) Unwrap() error { return e.Err }

// RenderableError ties a per-object diagnostic to the node it came from.
type RenderableError struct {
	Node NodeID
	Name string
	Err  error
}

func (e *RenderableError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("renderable %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("renderable %v: %v", e.Node, e.Err)
}

func (e *RenderableError) Unwrap() error { return e.Err }

func errTooManyGroups(n, limit int) error {
	return fmt.Errorf("%d bind groups exceed the device limit of %d", n, limit)
}

func isDeviceLost(err error) bool {
	var dl *DeviceLostError
	return errors.Is(err, gpu.ErrDeviceLost) || errors.As(err, &dl)
}
