package wgrender

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned box. An AABB with Min > Max on any axis is empty.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{Min: mgl32.Vec3{inf, inf, inf}, Max: mgl32.Vec3{-inf, -inf, -inf}}
}

func (b AABB) Empty() bool {
	return b.Min.X() > b.Max.X() || b.Min.Y() > b.Max.Y() || b.Min.Z() > b.Max.Z()
}

func (b AABB) Extend(p mgl32.Vec3) AABB {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
	return b
}

// Transform returns a conservative world box for b under m.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	if b.Empty() {
		return b
	}
	corners := [8]mgl32.Vec3{
		{b.Min.X(), b.Min.Y(), b.Min.Z()},
		{b.Max.X(), b.Min.Y(), b.Min.Z()},
		{b.Min.X(), b.Max.Y(), b.Min.Z()},
		{b.Max.X(), b.Max.Y(), b.Min.Z()},
		{b.Min.X(), b.Min.Y(), b.Max.Z()},
		{b.Max.X(), b.Min.Y(), b.Max.Z()},
		{b.Min.X(), b.Max.Y(), b.Max.Z()},
		{b.Max.X(), b.Max.Y(), b.Max.Z()},
	}
	out := EmptyAABB()
	for _, c := range corners {
		out = out.Extend(m.Mul4x1(c.Vec4(1)).Vec3())
	}
	return out
}

func (b AABB) Overlaps(o AABB) bool {
	if b.Empty() || o.Empty() {
		return false
	}
	for i := 0; i < 3; i++ {
		if b.Min[i] > o.Max[i] || o.Min[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// DistanceSquared is zero for points inside b.
func (b AABB) DistanceSquared(p mgl32.Vec3) float32 {
	var d float32
	for i := 0; i < 3; i++ {
		if v := b.Min[i] - p[i]; v > 0 {
			d += v * v
		} else if v := p[i] - b.Max[i]; v > 0 {
			d += v * v
		}
	}
	return d
}

// Frustum holds six inward-facing planes (Ax + By + Cz + D >= 0 inside) in
// the order left, right, bottom, top, near, far.
type Frustum [6]mgl32.Vec4

// FrustumFromMatrix extracts planes from a view-projection matrix whose
// clip-space depth range is [0, 1].
func FrustumFromMatrix(vp mgl32.Mat4) Frustum {
	var f Frustum
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	f[0] = r3.Add(r0)
	f[1] = r3.Sub(r0)
	f[2] = r3.Add(r1)
	f[3] = r3.Sub(r1)
	// Near is z >= 0 alone with a [0, 1] depth range.
	f[4] = r2
	f[5] = r3.Sub(r2)

	for i := range f {
		length := float32(math.Sqrt(float64(f[i][0]*f[i][0] + f[i][1]*f[i][1] + f[i][2]*f[i][2])))
		if length > 0 {
			f[i] = f[i].Mul(1.0 / length)
		}
	}
	return f
}

// ContainsAABB reports whether any part of box may be inside the frustum.
func (f Frustum) ContainsAABB(box AABB) bool {
	for _, plane := range f {
		// Corner furthest along the plane normal.
		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] > 0 {
				p[axis] = box.Max[axis]
			} else {
				p[axis] = box.Min[axis]
			}
		}
		if plane[0]*p[0]+plane[1]*p[1]+plane[2]*p[2]+plane[3] < 0 {
			return false
		}
	}
	return true
}
