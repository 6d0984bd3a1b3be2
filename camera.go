package wgrender

import (
	"github.com/go-gl/mathgl/mgl32"
)

type ProjectionKind int

const (
	ProjectionPerspective ProjectionKind = iota
	ProjectionOrthographic
)

// depthRemap maps OpenGL-style clip depth [-1, 1] onto WebGPU's [0, 1].
var depthRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Camera is a scene node that produces view and projection matrices. The
// view matrix is the inverse of the node's world matrix and is refreshed
// whenever the world matrix is.
type Camera struct {
	Object3D

	kind ProjectionKind
	// fovY is the vertical field of view in degrees.
	fovY   float32
	aspect float32
	near   float32
	far    float32

	left, right, bottom, top float32

	projection mgl32.Mat4
	projDirty  bool

	view      mgl32.Mat4
	viewStamp uint64
}

// NewPerspectiveCamera creates a detached perspective camera.
func (s *Scene) NewPerspectiveCamera(fovYDegrees, aspect, near, far float32) *Camera {
	c := &Camera{
		Object3D:  s.NewObject("camera"),
		kind:      ProjectionPerspective,
		fovY:      fovYDegrees,
		aspect:    aspect,
		near:      near,
		far:       far,
		projDirty: true,
	}
	s.register(c)
	return c
}

// NewOrthographicCamera creates a detached orthographic camera.
func (s *Scene) NewOrthographicCamera(left, right, bottom, top, near, far float32) *Camera {
	c := &Camera{
		Object3D:  s.NewObject("camera"),
		kind:      ProjectionOrthographic,
		left:      left,
		right:     right,
		bottom:    bottom,
		top:       top,
		near:      near,
		far:       far,
		aspect:    1,
		projDirty: true,
	}
	s.register(c)
	return c
}

func (s *Scene) register(c *Camera) {
	c.n().camera = c
	s.cameras = append(s.cameras, c)
}

func (c *Camera) Kind() ProjectionKind { return c.kind }
func (c *Camera) Near() float32        { return c.near }
func (c *Camera) Far() float32         { return c.far }
func (c *Camera) Aspect() float32      { return c.aspect }
func (c *Camera) FovY() float32        { return c.fovY }

func (c *Camera) SetPerspective(fovYDegrees, aspect, near, far float32) {
	c.kind = ProjectionPerspective
	c.fovY, c.aspect, c.near, c.far = fovYDegrees, aspect, near, far
	c.projDirty = true
}

func (c *Camera) SetOrthographic(left, right, bottom, top, near, far float32) {
	c.kind = ProjectionOrthographic
	c.left, c.right, c.bottom, c.top, c.near, c.far = left, right, bottom, top, near, far
	c.projDirty = true
}

// SetAspect updates the aspect ratio. Orthographic cameras keep their
// vertical extent and widen horizontally around the center.
func (c *Camera) SetAspect(aspect float32) {
	if aspect <= 0 || aspect == c.aspect {
		return
	}
	if c.kind == ProjectionOrthographic {
		halfH := (c.top - c.bottom) / 2
		cx := (c.left + c.right) / 2
		c.left, c.right = cx-halfH*aspect, cx+halfH*aspect
	}
	c.aspect = aspect
	c.projDirty = true
}

func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	if c.projDirty {
		var p mgl32.Mat4
		if c.kind == ProjectionOrthographic {
			p = mgl32.Ortho(c.left, c.right, c.bottom, c.top, c.near, c.far)
		} else {
			p = mgl32.Perspective(mgl32.DegToRad(c.fovY), c.aspect, c.near, c.far)
		}
		c.projection = depthRemap.Mul4(p)
		c.projDirty = false
	}
	return c.projection
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	world := c.WorldMatrix()
	n := c.n()
	if c.viewStamp != n.computed || c.viewStamp == 0 {
		c.view = world.Inv()
		c.viewStamp = n.computed
	}
	return c.view
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

func (c *Camera) Frustum() Frustum {
	return FrustumFromMatrix(c.ViewProjection())
}
