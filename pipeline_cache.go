package wgrender

import (
	"encoding/binary"
	"hash"
	"hash/fnv"

	"github.com/gekko3d/wgrender/gpu"
	"github.com/gekko3d/wgrender/shaders"
)

// pipelineEntry caches a compiled pipeline or the error that prevented it.
// Failed keys are not retried until something in the key changes.
type pipelineEntry struct {
	key      uint64
	label    string
	render   gpu.RenderPipeline
	compute  gpu.ComputePipeline
	err      error
	blended  bool
	released bool
}

type keyHasher struct {
	h   hash.Hash64
	buf [8]byte
}

func newKeyHasher() *keyHasher { return &keyHasher{h: fnv.New64a()} }

func (k *keyHasher) u64(v uint64) *keyHasher {
	binary.LittleEndian.PutUint64(k.buf[:], v)
	k.h.Write(k.buf[:])
	return k
}

func (k *keyHasher) str(s string) *keyHasher {
	k.u64(uint64(len(s)))
	k.h.Write([]byte(s))
	return k
}

func (k *keyHasher) flag(b bool) *keyHasher {
	if b {
		return k.u64(1)
	}
	return k.u64(0)
}

func (k *keyHasher) sum() uint64 { return k.h.Sum64() }

// bindGroupLayout returns the shared layout for entries, creating it on
// first use.
func (r *Renderer) bindGroupLayout(label string, entries []gpu.BindGroupLayoutEntry) (gpu.BindGroupLayout, error) {
	sig := layoutSignature(entries)
	if l, ok := r.layouts[sig]; ok {
		return l, nil
	}
	l, err := r.dev.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{Label: label, Entries: entries})
	if err != nil {
		return nil, &ResourceError{Resource: label, Op: "create bind group layout", Err: err}
	}
	r.layouts[sig] = l
	return l, nil
}

func (r *Renderer) groupLayouts(groups []*BindableGroup) ([]gpu.BindGroupLayout, []uint64, error) {
	layouts := make([]gpu.BindGroupLayout, len(groups))
	sigs := make([]uint64, len(groups))
	for i, g := range groups {
		entries := g.layoutEntries()
		l, err := r.bindGroupLayout(g.label, entries)
		if err != nil {
			return nil, nil, err
		}
		layouts[i] = l
		sigs[i] = layoutSignature(entries)
	}
	return layouts, sigs, nil
}

func (r *Renderer) checkSource(src string, entries ...string) error {
	if err := shaders.RequireEntryPoints(src, entries...); err != nil {
		return err
	}
	if r.cfg.ValidateShaders {
		return shaders.Validate(src)
	}
	return nil
}

// renderPipeline returns the pipeline drawing g with m into the current
// targets. Pipelines are keyed by shader source, entry points, vertex
// layout, target formats, render state and group layouts, so materials
// that agree on all of them share one pipeline.
func (r *Renderer) renderPipeline(m *Material, g *Geometry, color gpu.TextureFormat) (*pipelineEntry, error) {
	groups := append([]*BindableGroup{r.cameraGroup, r.objectGroup}, m.Groups()...)
	if limit := int(r.limits.MaxBindGroups); limit > 0 && len(groups) > limit {
		return nil, &ResourceError{Resource: m.label, Op: "layout", Err: errTooManyGroups(len(groups), limit)}
	}
	layouts, sigs, err := r.groupLayouts(groups)
	if err != nil {
		return nil, err
	}
	vertex := g.Layout()
	state := m.state

	k := newKeyHasher().u64(m.sourceHash).str(m.vertexEntry).str(m.fragmentEntry)
	for _, b := range vertex {
		k.u64(b.ArrayStride).u64(uint64(b.StepMode))
		for _, a := range b.Attributes {
			k.u64(uint64(a.Format)).u64(a.Offset).u64(uint64(a.ShaderLocation))
		}
	}
	k.u64(uint64(color)).u64(uint64(r.cfg.DepthFormat))
	k.u64(uint64(state.Blend)).flag(state.DepthTest).flag(state.DepthWrite).u64(uint64(state.DepthCompare))
	k.u64(uint64(state.Cull)).u64(uint64(state.FrontFace)).u64(uint64(state.Topology))
	for _, s := range sigs {
		k.u64(s)
	}
	key := k.sum()

	if e, ok := r.pipelines[key]; ok {
		return e, e.err
	}
	e := &pipelineEntry{key: key, label: m.label, blended: state.Blended()}
	r.pipelines[key] = e
	if err := r.checkSource(m.source, m.vertexEntry, m.fragmentEntry); err != nil {
		e.err = &PipelineCompilationError{Label: m.label, Key: key, Err: err}
		r.log.Warnf("pipeline %s: %v", m.label, err)
		return e, e.err
	}
	// Pipelines match the pass's depth attachment even without depth
	// testing.
	desc := &gpu.RenderPipelineDescriptor{
		Label:            m.label,
		Source:           m.source,
		VertexEntry:      m.vertexEntry,
		FragmentEntry:    m.fragmentEntry,
		Buffers:          vertex,
		BindGroupLayouts: layouts,
		ColorFormat:      color,
		DepthFormat:      r.cfg.DepthFormat,
		SampleCount:      1,
		Topology:         state.Topology,
		CullMode:         state.Cull,
		FrontFace:        state.FrontFace,
		Blend:            state.Blend,
		DepthWrite:       state.DepthWrite && state.DepthTest,
		DepthCompare:     state.DepthCompare,
	}
	if !state.DepthTest {
		desc.DepthCompare = gpu.CompareFunctionAlways
	}
	p, err := r.dev.CreateRenderPipeline(desc)
	if err != nil {
		if isDeviceLost(err) {
			delete(r.pipelines, key)
			return nil, err
		}
		e.err = &PipelineCompilationError{Label: m.label, Key: key, Err: err}
		r.log.Warnf("pipeline %s: %v", m.label, err)
		return e, e.err
	}
	e.render = p
	r.stats.PipelinesBuilt++
	r.log.Debugf("built render pipeline %s (%016x)", m.label, key)
	return e, nil
}

func (r *Renderer) computePipeline(c *Compute) (*pipelineEntry, error) {
	if limit := int(r.limits.MaxBindGroups); limit > 0 && len(c.groups) > limit {
		return nil, &ResourceError{Resource: c.label, Op: "layout", Err: errTooManyGroups(len(c.groups), limit)}
	}
	layouts, sigs, err := r.groupLayouts(c.groups)
	if err != nil {
		return nil, err
	}
	k := newKeyHasher().str("compute").u64(c.sourceHash).str(c.entryPoint)
	for _, s := range sigs {
		k.u64(s)
	}
	key := k.sum()
	if e, ok := r.pipelines[key]; ok {
		return e, e.err
	}
	e := &pipelineEntry{key: key, label: c.label}
	r.pipelines[key] = e
	if err := r.checkSource(c.source, c.entryPoint); err != nil {
		e.err = &PipelineCompilationError{Label: c.label, Key: key, Err: err}
		r.log.Warnf("compute pipeline %s: %v", c.label, err)
		return e, e.err
	}
	p, err := r.dev.CreateComputePipeline(&gpu.ComputePipelineDescriptor{
		Label:            c.label,
		Source:           c.source,
		EntryPoint:       c.entryPoint,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		if isDeviceLost(err) {
			delete(r.pipelines, key)
			return nil, err
		}
		e.err = &PipelineCompilationError{Label: c.label, Key: key, Err: err}
		r.log.Warnf("compute pipeline %s: %v", c.label, err)
		return e, e.err
	}
	e.compute = p
	r.stats.PipelinesBuilt++
	r.log.Debugf("built compute pipeline %s (%016x)", c.label, key)
	return e, nil
}

func (e *pipelineEntry) release() {
	if e.released {
		return
	}
	e.released = true
	if e.render != nil {
		e.render.Release()
	}
	if e.compute != nil {
		e.compute.Release()
	}
}
