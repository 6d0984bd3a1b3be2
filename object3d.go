package wgrender

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Object3D is a handle to a transform node in a Scene. It is a small value
// and may be copied freely; all copies address the same node. Using a
// handle after its node was destroyed panics.
type Object3D struct {
	scene *Scene
	id    NodeID
}

func (o Object3D) ID() NodeID      { return o.id }
func (o Object3D) Scene() *Scene   { return o.scene }
func (o Object3D) IsZero() bool    { return o.scene == nil }
func (o Object3D) Valid() bool     { return o.scene != nil && o.scene.valid(o.id) }
func (o Object3D) UUID() uuid.UUID { return o.n().uuid }
func (o Object3D) Name() string    { return o.n().name }

func (o Object3D) SetName(name string) { o.n().name = name }

func (o Object3D) n() *node { return o.scene.node(o.id) }

func (o Object3D) touch() { o.n().changed = o.scene.tick() }

func (o Object3D) Transform() Transform { return o.n().local }

func (o Object3D) SetTransform(t Transform) {
	o.n().local = t
	o.touch()
}

func (o Object3D) Position() mgl32.Vec3 { return o.n().local.Position }

func (o Object3D) SetPosition(p mgl32.Vec3) {
	o.n().local.Position = p
	o.touch()
}

func (o Object3D) Rotation() mgl32.Quat { return o.n().local.Rotation }

func (o Object3D) SetRotation(q mgl32.Quat) {
	o.n().local.Rotation = q.Normalize()
	o.touch()
}

func (o Object3D) Scale() mgl32.Vec3 { return o.n().local.Scale }

func (o Object3D) SetScale(v mgl32.Vec3) {
	o.n().local.Scale = v
	o.touch()
}

func (o Object3D) Translate(delta mgl32.Vec3) {
	n := o.n()
	n.local.Position = n.local.Position.Add(delta)
	o.touch()
}

// RotateAxis applies a local rotation of angle radians about axis.
func (o Object3D) RotateAxis(angle float32, axis mgl32.Vec3) {
	n := o.n()
	n.local.Rotation = n.local.Rotation.Mul(mgl32.QuatRotate(angle, axis.Normalize())).Normalize()
	o.touch()
}

// LookAt orients the node so its -Z axis points at target, both expressed
// in the parent's space.
func (o Object3D) LookAt(target, up mgl32.Vec3) {
	n := o.n()
	if target.Sub(n.local.Position).Len() < 1e-6 {
		return
	}
	view := mgl32.LookAtV(n.local.Position, target, up)
	n.local.Rotation = mgl32.Mat4ToQuat(view.Mat3().Transpose().Mat4()).Normalize()
	o.touch()
}

func (o Object3D) Visible() bool { return o.n().visible }

// SetVisible hides or shows the node and everything below it. Hidden nodes
// still get their transforms updated.
func (o Object3D) SetVisible(v bool) { o.n().visible = v }

// Add appends child to o's children, detaching it from its previous parent
// first. Adding o's own ancestor fails with ErrCycle.
func (o Object3D) Add(child Object3D) error {
	if child.scene != o.scene {
		return ErrForeignNode
	}
	return o.scene.reparent(o.id, child.id)
}

// Remove detaches child if o is its parent. The child stays alive and can
// be added again; use Scene.Destroy to free it.
func (o Object3D) Remove(child Object3D) {
	if child.scene != o.scene || !child.Valid() {
		return
	}
	c := child.n()
	if c.parent != int32(o.id.index) {
		return
	}
	o.scene.detach(child.id)
}

func (o Object3D) RemoveFromParent() { o.scene.detach(o.id) }

func (o Object3D) Parent() (Object3D, bool) {
	n := o.n()
	if n.parent == noNode {
		return Object3D{}, false
	}
	return Object3D{scene: o.scene, id: o.scene.idOf(n.parent)}, true
}

func (o Object3D) ChildCount() int { return o.n().children }

// Children returns the children in insertion order.
func (o Object3D) Children() []Object3D {
	n := o.n()
	out := make([]Object3D, 0, n.children)
	for c := n.firstChild; c != noNode; c = o.scene.nodes[c].next {
		out = append(out, Object3D{scene: o.scene, id: o.scene.idOf(c)})
	}
	return out
}

// WorldMatrix returns the node's world transform, recomputing stale
// ancestors on the way.
func (o Object3D) WorldMatrix() mgl32.Mat4 {
	o.n()
	return o.scene.worldOf(int32(o.id.index))
}

func (o Object3D) WorldPosition() mgl32.Vec3 {
	return o.WorldMatrix().Col(3).Vec3()
}

// Traverse visits o and its descendants in pre-order with up-to-date world
// matrices. Returning false skips the node's children.
func (o Object3D) Traverse(fn func(obj Object3D) bool) {
	o.n()
	o.scene.walk(o.id, func(id NodeID, _ *node, _ bool) bool {
		return fn(Object3D{scene: o.scene, id: id})
	})
}

// Camera returns the camera attached to this node, if any.
func (o Object3D) Camera() *Camera { return o.n().camera }

// Renderable returns the renderable attached to this node, if any.
func (o Object3D) Renderable() *Renderable { return o.n().renderable }
