package wgrender

import (
	"fmt"
	"hash/fnv"

	"github.com/gekko3d/wgrender/gpu"
	"github.com/gekko3d/wgrender/shaders"
)

type ComputeDescriptor struct {
	Label  string
	Source string
	// EntryPoint defaults to cs_main.
	EntryPoint string
	// Groups are bound in order starting at index 0.
	Groups []*BindableGroup
}

// Compute is a dispatch-only program. It resolves its groups and pipeline
// through the same caches as materials.
type Compute struct {
	label      string
	source     string
	sourceHash uint64
	entryPoint string
	groups     []*BindableGroup
}

func NewCompute(desc ComputeDescriptor) (*Compute, error) {
	if desc.Source == "" {
		return nil, fmt.Errorf("wgrender: compute %q has no shader source", desc.Label)
	}
	c := &Compute{
		label:      desc.Label,
		entryPoint: desc.EntryPoint,
		groups:     append([]*BindableGroup(nil), desc.Groups...),
	}
	if c.label == "" {
		c.label = newResource("compute", "").label
	}
	if c.entryPoint == "" {
		c.entryPoint = shaders.ComputeEntry
	}
	for i, g := range c.groups {
		if g == nil {
			return nil, fmt.Errorf("wgrender: compute %q: group %d is nil", c.label, i)
		}
	}
	c.SetSource(desc.Source)
	return c, nil
}

func (c *Compute) Label() string            { return c.label }
func (c *Compute) EntryPoint() string       { return c.entryPoint }
func (c *Compute) Groups() []*BindableGroup { return append([]*BindableGroup(nil), c.groups...) }

func (c *Compute) SetSource(src string) {
	c.source = src
	h := fnv.New64a()
	h.Write([]byte(src))
	c.sourceHash = h.Sum64()
}

// SetGroup replaces the group bound at index.
func (c *Compute) SetGroup(index int, g *BindableGroup) error {
	if index < 0 || index >= len(c.groups) || g == nil {
		return fmt.Errorf("wgrender: compute %q has no group %d", c.label, index)
	}
	c.groups[index] = g
	return nil
}

// Dispatch records and submits one compute pass running c over x*y*z
// workgroups. It is independent of the frame cycle: work submitted before
// or after a Render runs in call order and nothing else is implied.
func (r *Renderer) Dispatch(c *Compute, x, y, z uint32) error {
	if err := r.usable(); err != nil {
		return err
	}
	groups := make([]gpu.BindGroup, len(c.groups))
	for i, g := range c.groups {
		h, err := g.Resolve(r)
		if err != nil {
			return r.fail(err)
		}
		groups[i] = h
	}
	e, err := r.computePipeline(c)
	if err != nil {
		return r.fail(err)
	}

	enc, err := r.dev.CreateCommandEncoder(c.label)
	if err != nil {
		return r.fail(&ResourceError{Resource: c.label, Op: "encode", Err: err})
	}
	pass := enc.BeginComputePass(c.label)
	pass.SetPipeline(e.compute)
	for i, h := range groups {
		pass.SetBindGroup(uint32(i), h, nil)
	}
	pass.DispatchWorkgroups(x, y, z)
	if err := pass.End(); err != nil {
		enc.Release()
		return r.fail(&ResourceError{Resource: c.label, Op: "encode", Err: err})
	}
	return r.submit(enc, c.label)
}
