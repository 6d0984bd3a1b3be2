package wgrender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/wgrender/gpu"
)

func TestBindableGroup_ResolveIsCached(t *testing.T) {
	r, dev := newTestRenderer(t)
	buf := NewBuffer("params", gpu.BufferUsageUniform, make([]byte, 16))
	g, err := NewBindableGroup("params", UniformBinding(0, buf))
	require.NoError(t, err)

	h1, err := g.Resolve(r)
	require.NoError(t, err)
	before := dev.Counters().BindGroups

	h2, err := g.Resolve(r)
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, before, dev.Counters().BindGroups)
	assert.Equal(t, 1, g.Rebuilds())

	// Rewriting data in place keeps the GPU buffer and the group.
	buf.SetData(make([]byte, 16))
	_, err = g.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Rebuilds())
}

func TestBindableGroup_GenerationBumpRebuildsOnce(t *testing.T) {
	r, dev := newTestRenderer(t)
	buf := NewBuffer("params", gpu.BufferUsageUniform, make([]byte, 16))
	g, err := NewBindableGroup("params", UniformBinding(0, buf))
	require.NoError(t, err)
	_, err = g.Resolve(r)
	require.NoError(t, err)
	gen := buf.Generation()

	buf.SetData(make([]byte, 64))
	before := dev.Counters().BindGroups
	_, err = g.Resolve(r)
	require.NoError(t, err)
	_, err = g.Resolve(r)
	require.NoError(t, err)

	assert.Equal(t, gen+1, buf.Generation())
	assert.Equal(t, before+1, dev.Counters().BindGroups)
	assert.Equal(t, 2, g.Rebuilds())
	// The old group waits for in-flight frames.
	assert.Equal(t, 2, r.Pending())
}

func TestBindableGroup_SharesLayouts(t *testing.T) {
	r, dev := newTestRenderer(t)
	a, err := NewBindableGroup("a", UniformBinding(0, NewBuffer("a", gpu.BufferUsageUniform, make([]byte, 16))))
	require.NoError(t, err)
	b, err := NewBindableGroup("b", UniformBinding(0, NewBuffer("b", gpu.BufferUsageUniform, make([]byte, 16))))
	require.NoError(t, err)
	assert.Equal(t, a.LayoutSignature(), b.LayoutSignature())
	assert.NotEqual(t, a.Signature(), b.Signature())

	_, err = a.Resolve(r)
	require.NoError(t, err)
	_, err = b.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Counters().BindGroupLayouts)
	assert.Equal(t, 2, dev.Counters().BindGroups)
}

func TestBindableGroup_Validation(t *testing.T) {
	buf := NewBuffer("u", gpu.BufferUsageUniform, make([]byte, 16))
	_, err := NewBindableGroup("dup", UniformBinding(0, buf), UniformBinding(0, buf))
	assert.ErrorContains(t, err, "duplicate slot 0")

	_, err = NewBindableGroup("empty", Binding{Slot: 0, Type: gpu.BindingTypeUniformBuffer})
	assert.ErrorContains(t, err, "no resource")

	wrong := Binding{Slot: 0, Type: gpu.BindingTypeSampledTexture, Resource: buf}
	_, err = NewBindableGroup("wrong", wrong)
	assert.Error(t, err)

	g, err := NewBindableGroup("", UniformBinding(0, buf))
	require.NoError(t, err)
	assert.NotEmpty(t, g.Label())
	assert.Error(t, g.Set(3, buf))
	assert.Error(t, g.Set(0, testTexture()))
}

func TestBindableGroup_SetRebuilds(t *testing.T) {
	r, _ := newTestRenderer(t)
	tex := testTexture()
	s := LinearRepeatSampler("s")
	g, err := NewBindableGroup("tex", TextureBinding(0, tex), SamplerBinding(1, s))
	require.NoError(t, err)
	_, err = g.Resolve(r)
	require.NoError(t, err)

	require.NoError(t, g.Set(0, testTexture()))
	_, err = g.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Rebuilds())
	assert.NotEqual(t, tex.ResourceID(), g.Bindings()[0].Resource.ResourceID())
}

func TestBindableGroup_StaleResource(t *testing.T) {
	r, _ := newTestRenderer(t)
	buf := NewBuffer("data", gpu.BufferUsageStorage, make([]byte, 32))
	g, err := NewBindableGroup("data", StorageBinding(3, buf, true))
	require.NoError(t, err)
	_, err = g.Resolve(r)
	require.NoError(t, err)

	buf.Release()
	_, err = g.Resolve(r)
	var stale *StaleResourceError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, "data", stale.Group)
	assert.Equal(t, uint32(3), stale.Slot)

	g.Release()
	_, err = g.Resolve(r)
	assert.ErrorIs(t, err, ErrResourceReleased)
}

func TestBindableGroup_Visibility(t *testing.T) {
	buf := NewBuffer("u", gpu.BufferUsageStorage, make([]byte, 16))
	rw := StorageBinding(0, buf, false)
	assert.Equal(t, gpu.BindingTypeStorageBuffer, rw.Type)
	assert.Equal(t, gpu.ShaderStageCompute, rw.Visibility)

	ro := StorageBinding(0, buf, true).WithVisibility(gpu.ShaderStageVertex)
	assert.Equal(t, gpu.BindingTypeReadOnlyStorageBuffer, ro.Type)
	assert.Equal(t, gpu.ShaderStageVertex, ro.Visibility)

	storage := NewStorageTexture("out", 4, 4, gpu.TextureFormatRGBA8Unorm)
	g, err := NewBindableGroup("st", StorageTextureBinding(0, storage))
	require.NoError(t, err)
	entries := g.layoutEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, gpu.TextureFormatRGBA8Unorm, entries[0].StorageFormat)
}
