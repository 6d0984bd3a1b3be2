package wgrender

import (
	"fmt"
	"hash/fnv"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender/gpu"
	"github.com/gekko3d/wgrender/shaders"
)

// RenderState is the fixed-function part of a pipeline.
type RenderState struct {
	Blend        gpu.BlendMode
	DepthTest    bool
	DepthWrite   bool
	DepthCompare gpu.CompareFunction
	Cull         gpu.CullMode
	FrontFace    gpu.FrontFace
	Topology     gpu.PrimitiveTopology
}

func DefaultRenderState() RenderState {
	return RenderState{
		Blend:        gpu.BlendModeOpaque,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: gpu.CompareFunctionLess,
		Cull:         gpu.CullModeBack,
		FrontFace:    gpu.FrontFaceCCW,
		Topology:     gpu.PrimitiveTopologyTriangleList,
	}
}

// TransparentRenderState blends with alpha and leaves depth untouched.
func TransparentRenderState() RenderState {
	s := DefaultRenderState()
	s.Blend = gpu.BlendModeAlpha
	s.DepthWrite = false
	s.Cull = gpu.CullModeNone
	return s
}

func (s RenderState) Blended() bool { return s.Blend != gpu.BlendModeOpaque }

type MaterialDescriptor struct {
	Label         string
	Source        string
	VertexEntry   string
	FragmentEntry string
	// Uniforms, when set, backs a UniformBuffer bound at slot 0 of the
	// material group.
	Uniforms *UniformLayout
	// Bindings join the uniform buffer in the material group, which the
	// shader sees as group 2.
	Bindings []Binding
	// Groups are shared groups bound after the material group.
	Groups []*BindableGroup
	// State defaults to DefaultRenderState.
	State *RenderState
}

// Material pairs a WGSL program with its render state and bindings. The
// pipeline itself lives in the renderer's cache and is shared by every
// material with the same source, state and layouts.
type Material struct {
	label         string
	source        string
	sourceHash    uint64
	vertexEntry   string
	fragmentEntry string
	state         RenderState

	uniforms *UniformBuffer
	group    *BindableGroup
	shared   []*BindableGroup
	// owned are resources the material created itself.
	owned []gpu.Releasable

	released bool
}

func NewMaterial(desc MaterialDescriptor) (*Material, error) {
	if desc.Source == "" {
		return nil, fmt.Errorf("wgrender: material %q has no shader source", desc.Label)
	}
	label := desc.Label
	if label == "" {
		label = newResource("material", "").label
	}
	m := &Material{
		label:         label,
		vertexEntry:   desc.VertexEntry,
		fragmentEntry: desc.FragmentEntry,
		state:         DefaultRenderState(),
		shared:        append([]*BindableGroup(nil), desc.Groups...),
	}
	if m.vertexEntry == "" {
		m.vertexEntry = shaders.VertexEntry
	}
	if m.fragmentEntry == "" {
		m.fragmentEntry = shaders.FragmentEntry
	}
	if desc.State != nil {
		m.state = *desc.State
	}
	m.SetSource(desc.Source)

	var bindings []Binding
	if desc.Uniforms != nil {
		m.uniforms = NewUniformBuffer(label+"-uniforms", desc.Uniforms)
		bindings = append(bindings, UniformBinding(0, m.uniforms).WithVisibility(gpu.ShaderStageVertex|gpu.ShaderStageFragment))
	}
	bindings = append(bindings, desc.Bindings...)
	if len(bindings) > 0 {
		g, err := NewBindableGroup(label, bindings...)
		if err != nil {
			return nil, err
		}
		m.group = g
	}
	return m, nil
}

func (m *Material) Label() string       { return m.label }
func (m *Material) Source() string      { return m.source }
func (m *Material) State() RenderState  { return m.state }
func (m *Material) VertexEntry() string { return m.vertexEntry }

func (m *Material) FragmentEntry() string { return m.fragmentEntry }

// SetSource swaps the shader. Renderables pick up the new pipeline on the
// next frame; a broken source only affects this material.
func (m *Material) SetSource(src string) {
	m.source = src
	h := fnv.New64a()
	h.Write([]byte(src))
	m.sourceHash = h.Sum64()
}

func (m *Material) SetState(s RenderState) { m.state = s }

// Uniforms is nil for materials declared without a uniform layout.
func (m *Material) Uniforms() *UniformBuffer { return m.uniforms }

// Group is the material's own group, bound at index 2.
func (m *Material) Group() *BindableGroup { return m.group }

// Groups lists every group in bind order starting at index 2.
func (m *Material) Groups() []*BindableGroup {
	var out []*BindableGroup
	if m.group != nil {
		out = append(out, m.group)
	}
	return append(out, m.shared...)
}

// Release frees the material group and uniform buffer. Shared groups and
// resources passed in as bindings stay with their owners.
func (m *Material) Release() {
	if m.released {
		return
	}
	m.released = true
	if m.group != nil {
		m.group.Release()
	}
	if m.uniforms != nil {
		m.uniforms.Release()
	}
	for _, res := range m.owned {
		res.Release()
	}
}

func (m *Material) Released() bool { return m.released }

func colorLayout() *UniformLayout {
	return NewUniformLayout().Add("color", UniformVec4)
}

// NewBasicMaterial creates a flat lit material.
func NewBasicMaterial(label string, color mgl32.Vec4) (*Material, error) {
	m, err := NewMaterial(MaterialDescriptor{
		Label:    label,
		Source:   shaders.Basic(),
		Uniforms: colorLayout(),
	})
	if err != nil {
		return nil, err
	}
	return m, m.uniforms.SetVec4("color", color)
}

// NewTexturedMaterial samples tex with s, tinted by white.
func NewTexturedMaterial(label string, tex TextureResource, s SamplerResource) (*Material, error) {
	m, err := NewMaterial(MaterialDescriptor{
		Label:    label,
		Source:   shaders.Textured(),
		Uniforms: colorLayout(),
		Bindings: []Binding{TextureBinding(1, tex), SamplerBinding(2, s)},
	})
	if err != nil {
		return nil, err
	}
	return m, m.uniforms.SetVec4("color", mgl32.Vec4{1, 1, 1, 1})
}

// NewInstancedMaterial draws geometries carrying a vec4 "offset" instance
// attribute.
func NewInstancedMaterial(label string, color mgl32.Vec4) (*Material, error) {
	m, err := NewMaterial(MaterialDescriptor{
		Label:    label,
		Source:   shaders.Instanced(),
		Uniforms: colorLayout(),
	})
	if err != nil {
		return nil, err
	}
	return m, m.uniforms.SetVec4("color", color)
}

// NewTextMaterial renders glyph quads from a coverage atlas.
func NewTextMaterial(label string, atlas TextureResource, color mgl32.Vec4) (*Material, error) {
	state := TransparentRenderState()
	sampler := LinearClampSampler(label + "-sampler")
	m, err := NewMaterial(MaterialDescriptor{
		Label:    label,
		Source:   shaders.Text(),
		Uniforms: colorLayout(),
		Bindings: []Binding{TextureBinding(1, atlas), SamplerBinding(2, sampler)},
		State:    &state,
	})
	if err != nil {
		return nil, err
	}
	m.owned = append(m.owned, sampler)
	return m, m.uniforms.SetVec4("color", color)
}
