package wgrender

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/wgrender/gpu"
	"github.com/gekko3d/wgrender/gpu/gputest"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ValidateShaders = false
	cfg.ObjectCapacity = 4
	return cfg
}

func newTestRenderer(t *testing.T) (*Renderer, *gputest.Device) {
	t.Helper()
	return newTestRendererWith(t, testConfig())
}

func newTestRendererWith(t *testing.T, cfg Config) (*Renderer, *gputest.Device) {
	t.Helper()
	dev := gputest.NewDevice(64, 64)
	r, err := NewRenderer(dev, cfg, WithLogger(NewNopLogger()))
	require.NoError(t, err)
	return r, dev
}

// testBox is a unit cube with positions, normals and uvs, indexed.
func testBox(t *testing.T) *Geometry {
	t.Helper()
	g := NewGeometry("box")
	var pos, nrm, uv []float32
	var idx []uint32
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}
	for _, f := range faces {
		base := uint32(len(pos) / 3)
		for _, c := range [][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := f.n.Mul(0.5).Add(f.u.Mul(c[0] * 0.5)).Add(f.v.Mul(c[1] * 0.5))
			pos = append(pos, p[:]...)
			nrm = append(nrm, f.n[:]...)
			uv = append(uv, (c[0]+1)/2, (1-c[1])/2)
		}
		idx = append(idx, base, base+1, base+2, base, base+2, base+3)
	}
	require.NoError(t, g.SetAttribute(AttributePosition, 3, pos))
	require.NoError(t, g.SetAttribute(AttributeNormal, 3, nrm))
	require.NoError(t, g.SetAttribute(AttributeUV, 2, uv))
	g.SetIndices(idx)
	return g
}

func testMaterial(t *testing.T, color mgl32.Vec4) *Material {
	t.Helper()
	m, err := NewBasicMaterial("basic", color)
	require.NoError(t, err)
	return m
}

func testTexture() *Texture {
	return NewTexture("checker", ImageData{
		Width:  2,
		Height: 2,
		Format: gpu.TextureFormatRGBA8Unorm,
		Pixels: []byte{
			255, 255, 255, 255, 0, 0, 0, 255,
			0, 0, 0, 255, 255, 255, 255, 255,
		},
	})
}

// testScene returns a scene with a camera attached to the root.
func testScene(t *testing.T) (*Scene, *Camera) {
	t.Helper()
	s := NewScene()
	cam := s.NewPerspectiveCamera(60, 1, 0.1, 100)
	require.NoError(t, s.Root().Add(cam.Object3D))
	return s, cam
}

func addRenderable(t *testing.T, s *Scene, g *Geometry, m *Material, pos mgl32.Vec3) *Renderable {
	t.Helper()
	rd := s.NewRenderable(g, m)
	rd.SetPosition(pos)
	require.NoError(t, s.Root().Add(rd.Object3D))
	return rd
}

func setGroupCommands(cmds []gputest.Command, minIndex uint32) []gputest.Command {
	var out []gputest.Command
	for _, c := range cmds {
		if c.Op == gputest.OpSetBindGroup && c.Index >= minIndex {
			out = append(out, c)
		}
	}
	return out
}

func assertMat4Near(t *testing.T, want, got mgl32.Mat4) {
	t.Helper()
	require.True(t, want.ApproxEqualThreshold(got, 1e-4), "want %v\ngot  %v", want, got)
}

func vec3(v mgl32.Vec3) []float32 { return v[:] }
