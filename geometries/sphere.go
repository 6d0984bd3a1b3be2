package geometries

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender"
)

// Sphere builds a UV sphere. widthSegments is clamped to at least 3 and
// heightSegments to at least 2. The poles get degenerate-free caps: the top
// and bottom rings emit one triangle per segment instead of two.
func Sphere(radius float32, widthSegments, heightSegments int) *wgrender.Geometry {
	widthSegments = max(widthSegments, 3)
	heightSegments = max(heightSegments, 2)

	var m meshData
	grid := make([][]uint32, heightSegments+1)
	for iy := 0; iy <= heightSegments; iy++ {
		v := float32(iy) / float32(heightSegments)
		theta := float64(v) * math.Pi
		row := make([]uint32, widthSegments+1)
		for ix := 0; ix <= widthSegments; ix++ {
			u := float32(ix) / float32(widthSegments)
			phi := float64(u) * 2 * math.Pi
			n := mgl32.Vec3{
				float32(-math.Cos(phi) * math.Sin(theta)),
				float32(math.Cos(theta)),
				float32(math.Sin(phi) * math.Sin(theta)),
			}
			row[ix] = m.vertex(n.Mul(radius), n, u, v)
		}
		grid[iy] = row
	}

	for iy := 0; iy < heightSegments; iy++ {
		for ix := 0; ix < widthSegments; ix++ {
			a := grid[iy][ix+1]
			b := grid[iy][ix]
			c := grid[iy+1][ix]
			d := grid[iy+1][ix+1]
			if iy != 0 {
				m.triangle(a, b, d)
			}
			if iy != heightSegments-1 {
				m.triangle(b, c, d)
			}
		}
	}

	g := m.build("sphere")
	r := mgl32.Vec3{radius, radius, radius}
	g.SetBounds(wgrender.AABB{Min: r.Mul(-1), Max: r})
	return g
}
