// Package controls turns pointer input into camera motion.
package controls

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender"
)

type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
	buttonCount
)

// MouseVectors tracks the pointer in normalised device coordinates: x and
// y run from -1 to 1 across the viewport with y pointing up. Window hosts
// feed it events; consumers read positions and the motion accumulated
// since the last EndFrame.
type MouseVectors struct {
	width, height int

	pixel    mgl32.Vec2
	position mgl32.Vec2
	delta    mgl32.Vec2
	scroll   float32
	seen     bool

	pressed     [buttonCount]bool
	justPressed [buttonCount]bool
}

func NewMouseVectors(width, height int) *MouseVectors {
	m := &MouseVectors{}
	m.Resize(width, height)
	return m
}

// Resize sets the viewport size in pixels.
func (m *MouseVectors) Resize(width, height int) {
	m.width, m.height = max(width, 1), max(height, 1)
	if m.seen {
		m.position = m.toNDC(m.pixel)
	}
}

func (m *MouseVectors) toNDC(p mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{
		p.X()/float32(m.width)*2 - 1,
		1 - p.Y()/float32(m.height)*2,
	}
}

// Move records the pointer at window pixel coordinates, origin top-left.
// The first event only sets the position.
func (m *MouseVectors) Move(x, y float64) {
	m.pixel = mgl32.Vec2{float32(x), float32(y)}
	ndc := m.toNDC(m.pixel)
	if m.seen {
		m.delta = m.delta.Add(ndc.Sub(m.position))
	}
	m.position = ndc
	m.seen = true
}

func (m *MouseVectors) Press(b Button) {
	if b < 0 || b >= buttonCount {
		return
	}
	if !m.pressed[b] {
		m.justPressed[b] = true
	}
	m.pressed[b] = true
}

func (m *MouseVectors) Release(b Button) {
	if b < 0 || b >= buttonCount {
		return
	}
	m.pressed[b] = false
}

// Scroll accumulates wheel motion; positive is away from the user.
func (m *MouseVectors) Scroll(dy float64) { m.scroll += float32(dy) }

func (m *MouseVectors) Position() mgl32.Vec2 { return m.position }
func (m *MouseVectors) Pixel() mgl32.Vec2    { return m.pixel }
func (m *MouseVectors) Delta() mgl32.Vec2    { return m.delta }
func (m *MouseVectors) ScrollDelta() float32 { return m.scroll }

func (m *MouseVectors) Pressed(b Button) bool {
	return b >= 0 && b < buttonCount && m.pressed[b]
}

func (m *MouseVectors) JustPressed(b Button) bool {
	return b >= 0 && b < buttonCount && m.justPressed[b]
}

// Dragging reports motion this frame while b is held.
func (m *MouseVectors) Dragging(b Button) bool {
	return m.Pressed(b) && m.delta != (mgl32.Vec2{})
}

// EndFrame clears per-frame motion, scroll and press edges.
func (m *MouseVectors) EndFrame() {
	m.delta = mgl32.Vec2{}
	m.scroll = 0
	m.justPressed = [buttonCount]bool{}
}

// Ray returns the world-space ray from cam through the pointer, starting
// on the near plane.
func (m *MouseVectors) Ray(cam *wgrender.Camera) (origin, dir mgl32.Vec3) {
	inv := cam.ViewProjection().Inv()
	unproject := func(z float32) mgl32.Vec3 {
		p := inv.Mul4x1(mgl32.Vec4{m.position.X(), m.position.Y(), z, 1})
		return p.Vec3().Mul(1 / p.W())
	}
	near, far := unproject(0), unproject(1)
	return near, far.Sub(near).Normalize()
}
