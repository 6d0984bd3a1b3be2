package wgrender

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/gekko3d/wgrender/gpu"
)

// Binding places one resource at a slot of a BindableGroup.
type Binding struct {
	Slot       uint32
	Type       gpu.BindingType
	Visibility gpu.ShaderStage
	Resource   Resource

	// Dynamic buffers are bound with a per-draw offset; Size is then the
	// bound range.
	Dynamic bool
	Size    uint64
}

func UniformBinding(slot uint32, buf BufferResource) Binding {
	return Binding{
		Slot:       slot,
		Type:       gpu.BindingTypeUniformBuffer,
		Visibility: gpu.ShaderStageVertex | gpu.ShaderStageFragment | gpu.ShaderStageCompute,
		Resource:   buf,
	}
}

func StorageBinding(slot uint32, buf BufferResource, readOnly bool) Binding {
	if readOnly {
		return Binding{
			Slot:       slot,
			Type:       gpu.BindingTypeReadOnlyStorageBuffer,
			Visibility: gpu.ShaderStageVertex | gpu.ShaderStageFragment | gpu.ShaderStageCompute,
			Resource:   buf,
		}
	}
	return Binding{Slot: slot, Type: gpu.BindingTypeStorageBuffer, Visibility: gpu.ShaderStageCompute, Resource: buf}
}

func TextureBinding(slot uint32, tex TextureResource) Binding {
	return Binding{
		Slot:       slot,
		Type:       gpu.BindingTypeSampledTexture,
		Visibility: gpu.ShaderStageFragment | gpu.ShaderStageCompute,
		Resource:   tex,
	}
}

func StorageTextureBinding(slot uint32, tex TextureResource) Binding {
	return Binding{Slot: slot, Type: gpu.BindingTypeStorageTexture, Visibility: gpu.ShaderStageCompute, Resource: tex}
}

func SamplerBinding(slot uint32, s SamplerResource) Binding {
	return Binding{
		Slot:       slot,
		Type:       gpu.BindingTypeFilteringSampler,
		Visibility: gpu.ShaderStageFragment | gpu.ShaderStageCompute,
		Resource:   s,
	}
}

// WithVisibility returns a copy of b visible to stages.
func (b Binding) WithVisibility(stages gpu.ShaderStage) Binding {
	b.Visibility = stages
	return b
}

func (b Binding) check() error {
	if b.Resource == nil {
		return fmt.Errorf("slot %d has no resource", b.Slot)
	}
	var ok bool
	switch {
	case b.Type.IsBuffer():
		_, ok = b.Resource.(BufferResource)
	case b.Type.IsTexture():
		_, ok = b.Resource.(TextureResource)
	case b.Type.IsSampler():
		_, ok = b.Resource.(SamplerResource)
	}
	if !ok {
		return fmt.Errorf("slot %d: %s cannot bind %T", b.Slot, b.Type, b.Resource)
	}
	return nil
}

func (b Binding) storageFormat() gpu.TextureFormat {
	if b.Type != gpu.BindingTypeStorageTexture {
		return gpu.TextureFormatUndefined
	}
	if f, ok := b.Resource.(interface{ Format() gpu.TextureFormat }); ok {
		return f.Format()
	}
	return gpu.TextureFormatUndefined
}

// BindableGroup is an ordered set of bindings backed by one cached GPU bind
// group. The bind group is rebuilt only when the signature, which covers
// the layout plus every resource's identity and generation, changes.
type BindableGroup struct {
	label    string
	bindings []Binding

	handle   gpu.BindGroup
	sig      uint64
	owner    *Renderer
	rebuilds int
	released bool
}

// NewBindableGroup validates the bindings. Slots must be unique.
func NewBindableGroup(label string, bindings ...Binding) (*BindableGroup, error) {
	if label == "" {
		label = newResource("group", "").label
	}
	seen := map[uint32]bool{}
	for _, b := range bindings {
		if seen[b.Slot] {
			return nil, fmt.Errorf("wgrender: group %q: duplicate slot %d", label, b.Slot)
		}
		seen[b.Slot] = true
		if err := b.check(); err != nil {
			return nil, fmt.Errorf("wgrender: group %q: %w", label, err)
		}
	}
	return &BindableGroup{label: label, bindings: append([]Binding(nil), bindings...)}, nil
}

func (g *BindableGroup) Label() string { return g.label }

func (g *BindableGroup) Bindings() []Binding { return append([]Binding(nil), g.bindings...) }

// Rebuilds counts how many GPU bind groups were created for g.
func (g *BindableGroup) Rebuilds() int { return g.rebuilds }

// Set swaps the resource at slot. The next Resolve rebuilds the group.
func (g *BindableGroup) Set(slot uint32, res Resource) error {
	for i := range g.bindings {
		if g.bindings[i].Slot != slot {
			continue
		}
		b := g.bindings[i]
		b.Resource = res
		if err := b.check(); err != nil {
			return fmt.Errorf("wgrender: group %q: %w", g.label, err)
		}
		g.bindings[i] = b
		return nil
	}
	return fmt.Errorf("wgrender: group %q has no slot %d", g.label, slot)
}

func (g *BindableGroup) layoutEntries() []gpu.BindGroupLayoutEntry {
	entries := make([]gpu.BindGroupLayoutEntry, len(g.bindings))
	for i, b := range g.bindings {
		entries[i] = gpu.BindGroupLayoutEntry{
			Binding:          b.Slot,
			Visibility:       b.Visibility,
			Type:             b.Type,
			HasDynamicOffset: b.Dynamic,
			MinBindingSize:   b.Size,
			StorageFormat:    b.storageFormat(),
		}
	}
	return entries
}

// LayoutSignature identifies the bind group layout. Groups with equal
// layout signatures share one GPU layout object.
func (g *BindableGroup) LayoutSignature() uint64 {
	return layoutSignature(g.layoutEntries())
}

func layoutSignature(entries []gpu.BindGroupLayoutEntry) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	for _, e := range entries {
		put(uint64(e.Binding))
		put(uint64(e.Visibility))
		put(uint64(e.Type))
		if e.HasDynamicOffset {
			put(1)
		} else {
			put(0)
		}
		put(e.MinBindingSize)
		put(uint64(e.StorageFormat))
	}
	return h.Sum64()
}

// Signature covers the layout and the identity and generation of every
// bound resource.
func (g *BindableGroup) Signature() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put(g.LayoutSignature())
	for _, b := range g.bindings {
		put(uint64(b.Slot))
		put(uint64(b.Type))
		put(b.Resource.ResourceID())
		put(b.Resource.Generation())
	}
	return h.Sum64()
}

// Resolve uploads dirty resources and returns the GPU bind group, reusing
// the cached one when the signature is unchanged. A released resource
// yields a *StaleResourceError.
func (g *BindableGroup) Resolve(r *Renderer) (gpu.BindGroup, error) {
	if g.released {
		return nil, &ResourceError{Resource: g.label, Op: "resolve", Err: ErrResourceReleased}
	}
	if err := r.usable(); err != nil {
		return nil, err
	}
	for _, b := range g.bindings {
		if b.Resource.Released() {
			return nil, &StaleResourceError{Group: g.label, Slot: b.Slot, Resource: b.Resource.Label()}
		}
	}
	if g.owner != r {
		if g.owner != nil {
			g.owner.retire(g.handle)
		}
		g.handle = nil
		g.owner = r
	}
	for _, b := range g.bindings {
		if _, err := b.Resource.EnsureUploaded(r); err != nil {
			return nil, err
		}
	}

	sig := g.Signature()
	if g.handle != nil && sig == g.sig {
		return g.handle, nil
	}
	layout, err := r.bindGroupLayout(g.label, g.layoutEntries())
	if err != nil {
		return nil, err
	}
	entries := make([]gpu.BindGroupEntry, len(g.bindings))
	for i, b := range g.bindings {
		e := gpu.BindGroupEntry{Binding: b.Slot, Size: b.Size}
		switch res := b.Resource.(type) {
		case BufferResource:
			e.Buffer = res.gpuBuffer()
		case TextureResource:
			e.Texture = res.gpuTexture()
		case SamplerResource:
			e.Sampler = res.gpuSampler()
		}
		entries[i] = e
	}
	handle, err := r.dev.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   g.label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, &ResourceError{Resource: g.label, Op: "create bind group", Err: err}
	}
	r.retire(g.handle)
	g.handle = handle
	g.sig = sig
	g.rebuilds++
	r.stats.GroupsRebuilt++
	return handle, nil
}

// Release frees the cached bind group. The bound resources are not
// released.
func (g *BindableGroup) Release() {
	if g.released {
		return
	}
	g.released = true
	if g.owner != nil {
		g.owner.retire(g.handle)
	}
	g.handle = nil
}
