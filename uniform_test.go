package wgrender

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformLayout_Offsets(t *testing.T) {
	l := NewUniformLayout().
		Add("time", UniformFloat).
		Add("dir", UniformVec3).
		Add("scale", UniformFloat).
		Add("uv", UniformVec2).
		Add("model", UniformMat4).
		Add("count", UniformUint)

	want := map[string]uint64{"time": 0, "dir": 16, "scale": 28, "uv": 32, "model": 48, "count": 112}
	for name, off := range want {
		f, ok := l.Field(name)
		require.True(t, ok, name)
		assert.Equal(t, off, f.Offset, name)
	}
	assert.Equal(t, uint64(128), l.Size())
	assert.Contains(t, l.WGSL("Params"), "  model: mat4x4<f32>,\n")
	assert.Panics(t, func() { l.Add("time", UniformFloat) })

	assert.Equal(t, uint64(16), NewUniformLayout().Add("x", UniformFloat).Size())
}

func TestUniformBuffer_Setters(t *testing.T) {
	u := NewUniformBuffer("u", NewUniformLayout().Add("color", UniformVec4).Add("gain", UniformFloat).Add("id", UniformInt))
	u.dirty = false

	require.NoError(t, u.SetVec4("color", mgl32.Vec4{1, 0.5, 0, 1}))
	assert.True(t, u.Dirty())
	require.NoError(t, u.SetFloat("gain", 2))
	require.NoError(t, u.SetInt("id", -3))

	assert.Equal(t, []float32{1, 0.5, 0, 1, 2}, BytesToFloat32(u.Data()[:20]))
	gain, err := u.Float("gain")
	require.NoError(t, err)
	assert.Equal(t, float32(2), gain)

	assert.ErrorContains(t, u.SetFloat("color", 1), "is vec4<f32>, not f32")
	assert.ErrorContains(t, u.SetFloat("missing", 1), "not in layout")
}
