package controls

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender"
)

// FlyControls move a camera freely: keys translate it along its own axes
// and pointer motion turns it by yaw and pitch in degrees.
type FlyControls struct {
	// Speed in units per second. Shift doubles it.
	Speed float32
	// Sensitivity in degrees per unit of NDC motion.
	Sensitivity float32
	Enabled     bool

	Yaw, Pitch float32

	cam *wgrender.Camera
}

// NewFlyControls keeps the camera's position and starts looking down -Z.
func NewFlyControls(cam *wgrender.Camera) *FlyControls {
	c := &FlyControls{Speed: 5, Sensitivity: 90, Enabled: true, cam: cam}
	c.apply(mgl32.Vec3{})
	return c
}

// Forward is the unit view direction for the current yaw and pitch.
func (c *FlyControls) Forward() mgl32.Vec3 {
	yaw := float64(mgl32.DegToRad(c.Yaw))
	pitch := float64(mgl32.DegToRad(c.Pitch))
	return mgl32.Vec3{
		float32(math.Sin(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(-math.Cos(yaw) * math.Cos(pitch)),
	}.Normalize()
}

// Update turns by the pointer delta when look is true and moves by the
// keys' axis for dt.
func (c *FlyControls) Update(dt time.Duration, keys *KeyState, mouse *MouseVectors, look bool) {
	if !c.Enabled {
		return
	}
	if look && mouse != nil {
		d := mouse.Delta()
		c.Yaw += d.X() * c.Sensitivity
		c.Pitch += d.Y() * c.Sensitivity
	}
	c.Pitch = mgl32.Clamp(c.Pitch, -89, 89)

	var move mgl32.Vec3
	if keys != nil && dt > 0 {
		axis := keys.MoveAxis()
		if axis.Len() > 0 {
			speed := c.Speed * float32(dt.Seconds())
			if keys.Pressed(KeyShift) {
				speed *= 2
			}
			forward := c.Forward()
			right := forward.Cross(mgl32.Vec3{0, 1, 0}).Normalize()
			dir := right.Mul(axis[0]).Add(mgl32.Vec3{0, axis[1], 0}).Add(forward.Mul(axis[2]))
			move = dir.Normalize().Mul(speed)
		}
	}
	c.apply(move)
}

func (c *FlyControls) apply(move mgl32.Vec3) {
	pos := c.cam.Position().Add(move)
	c.cam.SetPosition(pos)
	c.cam.LookAt(pos.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
}
