package geometries

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender"
)

// Plane builds a subdivided rectangle in the XY plane facing +Z. Texture
// v runs downwards, so the top-left corner samples uv (0,0).
func Plane(width, height float32, widthSegments, heightSegments int) *wgrender.Geometry {
	gx := max(widthSegments, 1)
	gy := max(heightSegments, 1)
	segW := width / float32(gx)
	segH := height / float32(gy)
	normal := mgl32.Vec3{0, 0, 1}

	var m meshData
	for iy := 0; iy <= gy; iy++ {
		y := height/2 - float32(iy)*segH
		for ix := 0; ix <= gx; ix++ {
			x := float32(ix)*segW - width/2
			m.vertex(mgl32.Vec3{x, y, 0}, normal, float32(ix)/float32(gx), float32(iy)/float32(gy))
		}
	}

	stride := uint32(gx + 1)
	for iy := uint32(0); iy < uint32(gy); iy++ {
		for ix := uint32(0); ix < uint32(gx); ix++ {
			a := ix + stride*iy
			b := ix + stride*(iy+1)
			c := ix + 1 + stride*(iy+1)
			d := ix + 1 + stride*iy
			m.triangle(a, b, d)
			m.triangle(b, c, d)
		}
	}
	return m.build("plane")
}
