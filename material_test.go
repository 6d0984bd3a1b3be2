package wgrender

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/wgrender/gpu"
	"github.com/gekko3d/wgrender/shaders"
)

func TestMaterial_Defaults(t *testing.T) {
	_, err := NewMaterial(MaterialDescriptor{Label: "nothing"})
	assert.Error(t, err)

	m := testMaterial(t, mgl32.Vec4{0.25, 0.5, 0.75, 1})
	assert.Equal(t, shaders.VertexEntry, m.VertexEntry())
	assert.Equal(t, shaders.FragmentEntry, m.FragmentEntry())
	assert.Equal(t, DefaultRenderState(), m.State())
	assert.False(t, m.State().Blended())
	assert.Equal(t, []float32{0.25, 0.5, 0.75, 1}, BytesToFloat32(m.Uniforms().Data()[:16]))

	require.Len(t, m.Groups(), 1)
	b := m.Group().Bindings()[0]
	assert.Equal(t, gpu.ShaderStageVertex|gpu.ShaderStageFragment, b.Visibility)
}

func TestMaterial_SharedGroupsFollowOwnGroup(t *testing.T) {
	lights, err := NewBindableGroup("lights", StorageBinding(0, NewBuffer("lights", gpu.BufferUsageStorage, make([]byte, 64)), true))
	require.NoError(t, err)
	m, err := NewMaterial(MaterialDescriptor{
		Label:    "lit",
		Source:   shaders.Basic(),
		Uniforms: colorLayout(),
		Groups:   []*BindableGroup{lights},
	})
	require.NoError(t, err)
	groups := m.Groups()
	require.Len(t, groups, 2)
	assert.Same(t, m.Group(), groups[0])
	assert.Same(t, lights, groups[1])

	m.Release()
	assert.True(t, m.Released())
	assert.True(t, m.Uniforms().Released())
	assert.False(t, lights.released)
}

func TestMaterial_TooManyGroups(t *testing.T) {
	r, _ := newTestRenderer(t)
	s, cam := testScene(t)
	var extra []*BindableGroup
	for i := 0; i < 2; i++ {
		extra = append(extra, mustGroup(t, UniformBinding(0, NewBuffer("", gpu.BufferUsageUniform, make([]byte, 16)))))
	}
	m, err := NewMaterial(MaterialDescriptor{Source: shaders.Basic(), Uniforms: colorLayout(), Groups: extra})
	require.NoError(t, err)
	addRenderable(t, s, testBox(t), m, mgl32.Vec3{})

	rep, err := r.Render(s, cam)
	require.NoError(t, err)
	assert.ErrorContains(t, rep.Err(), "exceed the device limit of 4")
}

func TestMaterial_ReleasedIsSkipped(t *testing.T) {
	r, dev := newTestRenderer(t)
	s, cam := testScene(t)
	m := testMaterial(t, mgl32.Vec4{1, 1, 1, 1})
	addRenderable(t, s, testBox(t), m, mgl32.Vec3{})
	m.Release()

	rep, err := r.Render(s, cam)
	require.NoError(t, err)
	assert.ErrorIs(t, rep.Err(), ErrResourceReleased)
	assert.Empty(t, dev.CommandsOf("DrawIndexed"))
}

func TestTextMaterial_OwnsSampler(t *testing.T) {
	atlas := NewTexture("atlas", ImageData{Width: 1, Height: 1, Format: gpu.TextureFormatR8Unorm, Pixels: []byte{255}})
	m, err := NewTextMaterial("text", atlas, mgl32.Vec4{1, 1, 1, 1})
	require.NoError(t, err)
	assert.True(t, m.State().Blended())
	bindings := m.Group().Bindings()
	require.Len(t, bindings, 3)
	sampler := bindings[2].Resource
	m.Release()
	assert.True(t, sampler.Released())
	assert.False(t, atlas.Released())
}
