package geometries

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender"
)

type boxFace struct {
	normal, u, v mgl32.Vec3
}

// u x v = normal, so corners listed (-u,-v) (+u,-v) (+u,+v) (-u,+v) wind
// counter-clockwise seen from outside.
var boxFaces = [6]boxFace{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
}

// Box builds an axis-aligned box centred on the origin with 24 vertices and
// 36 indices. Each face has its own vertices so normals stay flat.
func Box(width, height, depth float32) *wgrender.Geometry {
	half := mgl32.Vec3{width / 2, height / 2, depth / 2}
	var m meshData
	for _, f := range boxFaces {
		var corners [4]uint32
		for i, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			dir := f.normal.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1]))
			p := mgl32.Vec3{dir[0] * half[0], dir[1] * half[1], dir[2] * half[2]}
			corners[i] = m.vertex(p, f.normal, (c[0]+1)/2, (1-c[1])/2)
		}
		m.triangle(corners[0], corners[1], corners[2])
		m.triangle(corners[0], corners[2], corners[3])
	}
	g := m.build("box")
	g.SetBounds(wgrender.AABB{Min: half.Mul(-1), Max: half})
	return g
}
