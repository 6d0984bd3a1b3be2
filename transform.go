package wgrender

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a local TRS transform. The composed matrix is T * R * S.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() Transform {
	return Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

func (t Transform) Matrix() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

// Inverse builds inv(S) * inv(R) * inv(T) from the components. Rotation must
// be a unit quaternion and no scale axis may be zero.
func (t Transform) Inverse() mgl32.Mat4 {
	invScale := mgl32.Scale3D(1.0/t.Scale.X(), 1.0/t.Scale.Y(), 1.0/t.Scale.Z())
	invRotate := t.Rotation.Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z())

	return invScale.Mul4(invRotate).Mul4(invTranslate)
}

// TransformPolicy selects how the traversal refreshes world matrices.
type TransformPolicy int

const (
	// TransformPolicyLazy recomputes a node only when it or an ancestor
	// changed since its last computation.
	TransformPolicyLazy TransformPolicy = iota
	// TransformPolicyEveryFrame recomputes every reachable node on every
	// traversal.
	TransformPolicyEveryFrame
)

func (p TransformPolicy) String() string {
	switch p {
	case TransformPolicyLazy:
		return "lazy"
	case TransformPolicyEveryFrame:
		return "every-frame"
	}
	return "unknown"
}
