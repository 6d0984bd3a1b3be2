package controls

import "github.com/go-gl/mathgl/mgl32"

// Key identifies a keyboard key independently of the window library.
type Key int

const (
	KeyW Key = iota
	KeyA
	KeyS
	KeyD
	KeyQ
	KeyE
	KeySpace
	KeyControl
	KeyShift
	KeyTab
	KeyEscape
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	keyCount
)

// KeyState tracks held keys and the press and release edges of the
// current frame.
type KeyState struct {
	pressed      [keyCount]bool
	justPressed  [keyCount]bool
	justReleased [keyCount]bool
}

func (k *KeyState) valid(key Key) bool { return key >= 0 && key < keyCount }

func (k *KeyState) Press(key Key) {
	if !k.valid(key) {
		return
	}
	if !k.pressed[key] {
		k.justPressed[key] = true
	}
	k.pressed[key] = true
}

func (k *KeyState) Release(key Key) {
	if !k.valid(key) {
		return
	}
	if k.pressed[key] {
		k.justReleased[key] = true
	}
	k.pressed[key] = false
}

func (k *KeyState) Pressed(key Key) bool      { return k.valid(key) && k.pressed[key] }
func (k *KeyState) JustPressed(key Key) bool  { return k.valid(key) && k.justPressed[key] }
func (k *KeyState) JustReleased(key Key) bool { return k.valid(key) && k.justReleased[key] }

// EndFrame clears the press and release edges.
func (k *KeyState) EndFrame() {
	k.justPressed = [keyCount]bool{}
	k.justReleased = [keyCount]bool{}
}

// MoveAxis maps WASD or the arrow keys plus Space and Control to a
// movement vector: x right, y up, z forward.
func (k *KeyState) MoveAxis() mgl32.Vec3 {
	var v mgl32.Vec3
	if k.Pressed(KeyW) || k.Pressed(KeyUp) {
		v[2]++
	}
	if k.Pressed(KeyS) || k.Pressed(KeyDown) {
		v[2]--
	}
	if k.Pressed(KeyD) || k.Pressed(KeyRight) {
		v[0]++
	}
	if k.Pressed(KeyA) || k.Pressed(KeyLeft) {
		v[0]--
	}
	if k.Pressed(KeySpace) || k.Pressed(KeyE) {
		v[1]++
	}
	if k.Pressed(KeyControl) || k.Pressed(KeyQ) {
		v[1]--
	}
	return v
}
