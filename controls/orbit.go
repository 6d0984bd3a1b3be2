package controls

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender"
)

// OrbitControls keep a camera on a sphere around Target. Dragging with the
// left button rotates, the right button pans and the wheel zooms. Target
// and the camera position live in the camera's parent space.
type OrbitControls struct {
	Target mgl32.Vec3

	RotateSpeed float32
	ZoomSpeed   float32
	PanSpeed    float32

	MinDistance, MaxDistance float32
	// MinPolar and MaxPolar bound the angle from +Y in radians.
	MinPolar, MaxPolar float32

	Enabled bool

	cam      *wgrender.Camera
	distance float32
	azimuth  float32
	polar    float32
}

// NewOrbitControls starts from the camera's current position relative to
// target and points the camera at it.
func NewOrbitControls(cam *wgrender.Camera, target mgl32.Vec3) *OrbitControls {
	c := &OrbitControls{
		Target:      target,
		RotateSpeed: 1,
		ZoomSpeed:   1,
		PanSpeed:    1,
		MinDistance: 0.01,
		MaxDistance: float32(math.Inf(1)),
		MinPolar:    0.01,
		MaxPolar:    math.Pi - 0.01,
		Enabled:     true,
		cam:         cam,
	}
	offset := cam.Position().Sub(target)
	c.distance = offset.Len()
	if c.distance > 0 {
		c.azimuth = float32(math.Atan2(float64(offset.X()), float64(offset.Z())))
		c.polar = float32(math.Acos(float64(mgl32.Clamp(offset.Y()/c.distance, -1, 1))))
	} else {
		c.distance, c.polar = 1, math.Pi/2
	}
	c.Apply()
	return c
}

func (c *OrbitControls) Distance() float32 { return c.distance }
func (c *OrbitControls) Azimuth() float32  { return c.azimuth }
func (c *OrbitControls) Polar() float32    { return c.polar }

// Rotate turns the camera around Target by the given angles in radians.
func (c *OrbitControls) Rotate(azimuth, polar float32) {
	c.azimuth += azimuth
	c.polar += polar
}

// Zoom scales the distance to Target; factors below 1 move closer.
func (c *OrbitControls) Zoom(factor float32) {
	if factor > 0 {
		c.distance *= factor
	}
}

// Pan moves Target and camera together in the view plane. dx and dy are
// fractions of the visible height at Target's distance.
func (c *OrbitControls) Pan(dx, dy float32) {
	rot := c.cam.Rotation()
	right := rot.Rotate(mgl32.Vec3{1, 0, 0})
	up := rot.Rotate(mgl32.Vec3{0, 1, 0})
	height := c.distance
	if c.cam.Kind() == wgrender.ProjectionPerspective {
		height = 2 * c.distance * float32(math.Tan(float64(mgl32.DegToRad(c.cam.FovY()))/2))
	}
	c.Target = c.Target.Add(right.Mul(dx * height)).Add(up.Mul(dy * height))
}

// Update applies this frame's pointer input and repositions the camera.
// It does not call EndFrame on m.
func (c *OrbitControls) Update(m *MouseVectors) {
	if !c.Enabled {
		return
	}
	d := m.Delta()
	switch {
	case m.Pressed(ButtonLeft):
		c.Rotate(-d.X()*math.Pi*c.RotateSpeed, -d.Y()*math.Pi/2*c.RotateSpeed)
	case m.Pressed(ButtonRight), m.Pressed(ButtonMiddle):
		// NDC spans two units across the viewport.
		c.Pan(-d.X()/2*c.PanSpeed*c.cam.Aspect(), -d.Y()/2*c.PanSpeed)
	}
	if s := m.ScrollDelta(); s != 0 {
		c.Zoom(float32(math.Pow(0.95, float64(s*c.ZoomSpeed))))
	}
	c.Apply()
}

// Apply clamps the orbit and writes the camera transform.
func (c *OrbitControls) Apply() {
	c.polar = mgl32.Clamp(c.polar, c.MinPolar, c.MaxPolar)
	c.distance = mgl32.Clamp(c.distance, c.MinDistance, c.MaxDistance)

	sinP, cosP := math.Sincos(float64(c.polar))
	sinA, cosA := math.Sincos(float64(c.azimuth))
	offset := mgl32.Vec3{
		float32(sinP * sinA),
		float32(cosP),
		float32(sinP * cosA),
	}.Mul(c.distance)

	c.cam.SetPosition(c.Target.Add(offset))
	c.cam.LookAt(c.Target, mgl32.Vec3{0, 1, 0})
}
