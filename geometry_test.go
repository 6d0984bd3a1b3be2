package wgrender

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/wgrender/gpu"
)

func TestGeometry_IndexFormat(t *testing.T) {
	g := NewGeometry("tri")
	g.SetIndices([]uint32{0, 1, 2})
	assert.Equal(t, gpu.IndexFormatUint16, g.IndexFormat())
	assert.Equal(t, uint32(3), g.IndexCount())
	assert.Equal(t, 6, len(g.indices.Data()))

	g.SetIndices([]uint32{0, 1, 70000})
	assert.Equal(t, gpu.IndexFormatUint32, g.IndexFormat())
	assert.Equal(t, 12, len(g.indices.Data()))
	assert.True(t, g.Indexed())
}

func TestGeometry_LayoutAndCounts(t *testing.T) {
	box := testBox(t)
	assert.Equal(t, uint32(24), box.VertexCount())
	assert.Equal(t, uint32(1), box.InstanceCount())

	layout := box.Layout()
	require.Len(t, layout, 3)
	assert.Equal(t, uint64(12), layout[0].ArrayStride)
	assert.Equal(t, gpu.VertexFormatFloat32x2, layout[2].Attributes[0].Format)
	for i, l := range layout {
		assert.Equal(t, uint32(i), l.Attributes[0].ShaderLocation)
		assert.Equal(t, gpu.VertexStepModeVertex, l.StepMode)
	}

	assert.Error(t, box.SetAttribute(AttributeColor, 5, []float32{1}))
	assert.Error(t, box.SetAttribute(AttributeColor, 3, []float32{1, 2}))
}

func TestGeometry_Bounds(t *testing.T) {
	g := NewGeometry("pts")
	assert.True(t, g.Bounds().Empty())
	require.NoError(t, g.SetAttribute(AttributePosition, 3, []float32{-1, 0, 2, 3, -4, 0}))
	b := g.Bounds()
	assert.Equal(t, mgl32.Vec3{-1, -4, 0}, b.Min)
	assert.Equal(t, mgl32.Vec3{3, 0, 2}, b.Max)

	moved := b.Transform(mgl32.Translate3D(10, 0, 0))
	assert.Equal(t, mgl32.Vec3{9, -4, 0}, moved.Min)

	g.SetBounds(AABB{Min: mgl32.Vec3{-9, -9, -9}, Max: mgl32.Vec3{9, 9, 9}})
	require.NoError(t, g.SetAttribute(AttributePosition, 3, []float32{0, 0, 0}))
	assert.Equal(t, float32(9), g.Bounds().Max.X())
}

func TestInstancedGeometry_SharesBase(t *testing.T) {
	r, dev := newTestRenderer(t)
	base := testBox(t)
	inst := NewInstancedGeometry(base, 10)
	require.NoError(t, inst.SetInstanceAttribute("offset", 4, make([]float32, 40)))
	assert.Equal(t, uint32(10), inst.InstanceCount())
	assert.Equal(t, base.Bounds(), inst.Bounds())

	_, err := base.EnsureUploaded(r)
	require.NoError(t, err)
	before := dev.Counters().Buffers
	_, err = inst.EnsureUploaded(r)
	require.NoError(t, err)
	// Only the instance attribute is new.
	assert.Equal(t, before+1, dev.Counters().Buffers)

	layout := inst.Layout()
	require.Len(t, layout, 4)
	assert.Equal(t, gpu.VertexStepModeInstance, layout[3].StepMode)
	assert.Equal(t, uint32(3), layout[3].Attributes[0].ShaderLocation)

	inst.Release()
	require.NoError(t, base.Validate())
	assert.False(t, base.indices.Released())
	off, ok := inst.Attribute("offset")
	require.True(t, ok)
	assert.True(t, off.Released())
	assert.ErrorIs(t, inst.Validate(), ErrResourceReleased)

	// Replacing the indices of an instanced geometry detaches it from the base.
	other := NewInstancedGeometry(base, 2)
	other.SetIndices([]uint32{0, 1, 2})
	assert.NotSame(t, base.indices, other.indices)
	assert.Equal(t, uint32(36), base.IndexCount())
}

func TestInstancedGeometry_FollowsBase(t *testing.T) {
	base := testBox(t)
	inst := NewInstancedGeometry(base, 3)
	assert.Equal(t, uint32(36), inst.IndexCount())

	base.SetIndices([]uint32{0, 1, 2, 2, 1, 0})
	assert.Equal(t, uint32(6), inst.IndexCount())
	assert.Equal(t, gpu.IndexFormatUint16, inst.IndexFormat())
	base.SetIndices([]uint32{0, 1, 70000})
	assert.Equal(t, uint32(3), inst.IndexCount())
	assert.Equal(t, gpu.IndexFormatUint32, inst.IndexFormat())
	idx, ok := inst.IndexBuffer()
	require.True(t, ok)
	assert.Same(t, base.indices, idx)

	require.NoError(t, base.SetAttribute(AttributePosition, 3, []float32{0, 0, 0, 4, 0, 0, 0, 4, 0}))
	assert.Equal(t, uint32(3), inst.VertexCount())
	assert.Equal(t, float32(4), inst.Bounds().Max.X())

	// Vertex data set on the instanced geometry stays there.
	require.NoError(t, inst.SetAttribute(AttributeColor, 4, make([]float32, 12)))
	_, ok = base.Attribute(AttributeColor)
	assert.False(t, ok)
	_, ok = inst.Attribute(AttributeColor)
	assert.True(t, ok)
	assert.Len(t, inst.Layout(), 4)

	inst.Release()
	require.NoError(t, base.Validate())
	pos, _ := base.Attribute(AttributePosition)
	assert.False(t, pos.Released())
}

func TestGeometry_ComputeBufferAttribute(t *testing.T) {
	r, _ := newTestRenderer(t)
	g := testBox(t)
	notVertex := NewComputeBuffer("positions", 64, false)
	assert.Error(t, g.SetAttributeBuffer("offset", gpu.VertexFormatFloat32x4, notVertex.Buffer, true))

	offsets := NewComputeBuffer("offsets", 64, true)
	require.NoError(t, g.SetAttributeBuffer("offset", gpu.VertexFormatFloat32x4, offsets.Buffer, true))
	_, err := g.EnsureUploaded(r)
	require.NoError(t, err)

	g.Release()
	assert.False(t, offsets.Released())
}

func TestGeometry_ReplacedAttributeIsReleased(t *testing.T) {
	g := NewGeometry("g")
	require.NoError(t, g.SetAttribute(AttributePosition, 3, []float32{0, 0, 0}))
	first, _ := g.Attribute(AttributePosition)
	g.SetAttributeBytes(AttributePosition, gpu.VertexFormatFloat32x3, Float32Bytes([]float32{1, 1, 1}))
	second, _ := g.Attribute(AttributePosition)
	assert.Same(t, first, second)
	assert.Equal(t, 1, len(g.Layout()))
}
