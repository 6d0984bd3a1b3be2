package wgrender

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender/gpu"
)

// Ray is a half-line in world space.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

func (r Ray) At(t float32) mgl32.Vec3 { return r.Origin.Add(r.Direction.Mul(t)) }

// IntersectRay returns the distances along ray where it enters and leaves
// b, clamped to start at zero. ok is false when the ray misses.
func (b AABB) IntersectRay(ray Ray) (tMin, tMax float32, ok bool) {
	if b.Empty() {
		return 0, 0, false
	}
	tMin, tMax = 0, float32(math.Inf(1))
	for i := 0; i < 3; i++ {
		o, d := ray.Origin[i], ray.Direction[i]
		if d == 0 {
			if o < b.Min[i] || o > b.Max[i] {
				return 0, 0, false
			}
			continue
		}
		t1 := (b.Min[i] - o) / d
		t2 := (b.Max[i] - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = max(tMin, t1)
		tMax = min(tMax, t2)
		if tMin > tMax {
			return 0, 0, false
		}
	}
	return tMin, tMax, true
}

// Hit is one renderable intersected by a ray.
type Hit struct {
	Renderable *Renderable
	Distance   float32
	Point      mgl32.Vec3
	// Normal faces the ray origin.
	Normal mgl32.Vec3
}

// Raycast intersects ray with every visible renderable and returns the
// hits nearest first. Single-instance geometries with float3 positions are
// tested per triangle; anything else is tested against its bounds.
func (s *Scene) Raycast(ray Ray) []Hit {
	ray.Direction = ray.Direction.Normalize()
	var hits []Hit
	s.walk(s.root, func(id NodeID, n *node, visible bool) bool {
		if !visible {
			return false
		}
		rd := n.renderable
		if rd == nil || rd.Geometry == nil || rd.Geometry.released {
			return true
		}
		if hit, ok := rd.intersect(ray, n.world); ok {
			hits = append(hits, hit)
		}
		return true
	})
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

// Pick returns the nearest hit along ray.
func (s *Scene) Pick(ray Ray) (Hit, bool) {
	hits := s.Raycast(ray)
	if len(hits) == 0 {
		return Hit{}, false
	}
	return hits[0], true
}

func (r *Renderable) intersect(ray Ray, world mgl32.Mat4) (Hit, bool) {
	g := r.Geometry
	bounds := g.Bounds()
	if bounds.Empty() {
		return Hit{}, false
	}
	// The local direction is left unnormalised so t measures world
	// distance along the normalised world ray.
	inv := world.Inv()
	local := Ray{
		Origin:    inv.Mul4x1(ray.Origin.Vec4(1)).Vec3(),
		Direction: inv.Mul4x1(ray.Direction.Vec4(0)).Vec3(),
	}
	tBox, _, ok := bounds.IntersectRay(local)
	if !ok {
		return Hit{}, false
	}

	best := float32(math.Inf(1))
	var normal mgl32.Vec3
	if r.instances() == 1 && g.forEachTriangle(func(a, b, c mgl32.Vec3) {
		if t, ok := intersectTriangle(local, a, b, c); ok && t < best {
			best = t
			normal = b.Sub(a).Cross(c.Sub(a))
		}
	}) {
		if math.IsInf(float64(best), 1) {
			return Hit{}, false
		}
	} else {
		best = tBox
		normal = boxNormal(bounds, local.At(tBox))
	}

	n := inv.Transpose().Mul4x1(normal.Vec4(0)).Vec3().Normalize()
	if n.Dot(ray.Direction) > 0 {
		n = n.Mul(-1)
	}
	return Hit{Renderable: r, Distance: best, Point: ray.At(best), Normal: n}, true
}

// intersectTriangle is the two-sided Möller-Trumbore test.
func intersectTriangle(ray Ray, a, b, c mgl32.Vec3) (float32, bool) {
	const eps = 1e-7
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := ray.Direction.Cross(e2)
	det := e1.Dot(p)
	if det > -eps && det < eps {
		return 0, false
	}
	inv := 1 / det
	s := ray.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := ray.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	return t, t >= 0
}

// boxNormal picks the face of b closest to p.
func boxNormal(b AABB, p mgl32.Vec3) mgl32.Vec3 {
	best := float32(math.Inf(1))
	var n mgl32.Vec3
	for i := 0; i < 3; i++ {
		if d := mgl32.Abs(p[i] - b.Min[i]); d < best {
			best, n = d, mgl32.Vec3{}
			n[i] = -1
		}
		if d := mgl32.Abs(p[i] - b.Max[i]); d < best {
			best, n = d, mgl32.Vec3{}
			n[i] = 1
		}
	}
	return n
}

func readVec3(data []byte, i int) mgl32.Vec3 {
	off := i * 12
	return mgl32.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(data[off:])),
		math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:])),
	}
}

// forEachTriangle calls fn with the local corners of every triangle. It
// returns false when the geometry has no float3 positions to read.
func (g *Geometry) forEachTriangle(fn func(a, b, c mgl32.Vec3)) bool {
	pos := g.find(AttributePosition, false)
	if pos == nil || pos.format != gpu.VertexFormatFloat32x3 {
		return false
	}
	data := pos.buffer.Data()
	verts := len(data) / 12
	index := func(i int) int { return i }
	count := verts
	if buf, ok := g.IndexBuffer(); ok && g.Indexed() {
		idx := buf.Data()
		count = int(g.IndexCount())
		if g.IndexFormat() == gpu.IndexFormatUint32 {
			index = func(i int) int { return int(binary.LittleEndian.Uint32(idx[i*4:])) }
		} else {
			index = func(i int) int { return int(binary.LittleEndian.Uint16(idx[i*2:])) }
		}
	}
	for i := 0; i+2 < count; i += 3 {
		a, b, c := index(i), index(i+1), index(i+2)
		if a >= verts || b >= verts || c >= verts {
			continue
		}
		fn(readVec3(data, a), readVec3(data, b), readVec3(data, c))
	}
	return true
}
