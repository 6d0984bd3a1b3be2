package wgrender

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestCamera_ProjectionDepthRange(t *testing.T) {
	s := NewScene()
	cam := s.NewPerspectiveCamera(90, 1, 1, 10)
	proj := cam.ProjectionMatrix()

	near := proj.Mul4x1(mgl32.Vec4{0, 0, -1, 1})
	far := proj.Mul4x1(mgl32.Vec4{0, 0, -10, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-5)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-5)

	cam.SetAspect(2)
	assert.Equal(t, float32(2), cam.Aspect())
	assert.NotEqual(t, proj, cam.ProjectionMatrix())
}

func TestCamera_OrthographicAspect(t *testing.T) {
	s := NewScene()
	cam := s.NewOrthographicCamera(-1, 1, -1, 1, 0.1, 10)
	cam.SetAspect(2)
	p := cam.ProjectionMatrix().Mul4x1(mgl32.Vec4{2, 1, -1, 1})
	assert.InDelta(t, 1, p.X(), 1e-5)
	assert.InDelta(t, 1, p.Y(), 1e-5)
	assert.Equal(t, ProjectionOrthographic, cam.Kind())
}

func TestCamera_ViewFollowsParent(t *testing.T) {
	s := NewScene()
	rig := s.NewObject("rig")
	cam := s.NewPerspectiveCamera(60, 1, 0.1, 100)
	assert.NoError(t, s.Root().Add(rig))
	assert.NoError(t, rig.Add(cam.Object3D))
	cam.SetPosition(mgl32.Vec3{0, 0, 5})

	p := cam.ViewMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDeltaSlice(t, []float32{0, 0, -5, 1}, p[:], 1e-5)

	rig.Translate(mgl32.Vec3{0, 0, 5})
	p = cam.ViewMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDeltaSlice(t, []float32{0, 0, -10, 1}, p[:], 1e-5)
}

func TestFrustum_ContainsAABB(t *testing.T) {
	s := NewScene()
	cam := s.NewPerspectiveCamera(60, 1, 0.1, 50)
	f := cam.Frustum()
	unit := AABB{Min: mgl32.Vec3{-0.5, -0.5, -0.5}, Max: mgl32.Vec3{0.5, 0.5, 0.5}}

	assert.True(t, f.ContainsAABB(unit.Transform(mgl32.Translate3D(0, 0, -10))))
	assert.False(t, f.ContainsAABB(unit.Transform(mgl32.Translate3D(0, 0, 10))))
	assert.False(t, f.ContainsAABB(unit.Transform(mgl32.Translate3D(0, 0, -60))))
	assert.False(t, f.ContainsAABB(unit.Transform(mgl32.Translate3D(40, 0, -10))))
	// Straddling the left plane still counts.
	assert.True(t, f.ContainsAABB(unit.Transform(mgl32.Translate3D(-5.9, 0, -10))))
}
