package wgrender

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// maxCellsPerEntry keeps huge boxes out of the grid; they are checked on
// every query instead.
const maxCellsPerEntry = 4096

type cellKey [3]int32

type spatialEntry struct {
	renderable *Renderable
	bounds     AABB
}

// SpatialIndex is a uniform hash grid over world-space renderable bounds
// for region queries. It is a snapshot: rebuild it after moving nodes.
type SpatialIndex struct {
	cellSize float32
	cells    map[cellKey][]int32
	entries  []spatialEntry
	oversize []int32
}

func NewSpatialIndex(cellSize float32) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = 2
	}
	return &SpatialIndex{cellSize: cellSize, cells: make(map[cellKey][]int32)}
}

func (ix *SpatialIndex) CellSize() float32 { return ix.cellSize }
func (ix *SpatialIndex) Len() int          { return len(ix.entries) }

func (ix *SpatialIndex) Clear() {
	clear(ix.cells)
	ix.entries = ix.entries[:0]
	ix.oversize = ix.oversize[:0]
}

func (ix *SpatialIndex) cell(v float32) int32 {
	return int32(math.Floor(float64(v / ix.cellSize)))
}

func (ix *SpatialIndex) span(b AABB) (lo, hi cellKey) {
	for i := 0; i < 3; i++ {
		lo[i], hi[i] = ix.cell(b.Min[i]), ix.cell(b.Max[i])
	}
	return lo, hi
}

func cellCount(lo, hi cellKey) int64 {
	n := int64(1)
	for i := 0; i < 3; i++ {
		n *= int64(hi[i]-lo[i]) + 1
	}
	return n
}

// Insert adds rd with the given world bounds. Empty bounds are ignored.
func (ix *SpatialIndex) Insert(rd *Renderable, bounds AABB) {
	if bounds.Empty() {
		return
	}
	id := int32(len(ix.entries))
	ix.entries = append(ix.entries, spatialEntry{renderable: rd, bounds: bounds})
	lo, hi := ix.span(bounds)
	if cellCount(lo, hi) > maxCellsPerEntry {
		ix.oversize = append(ix.oversize, id)
		return
	}
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				k := cellKey{x, y, z}
				ix.cells[k] = append(ix.cells[k], id)
			}
		}
	}
}

// Rebuild indexes every visible renderable of s by its world bounds.
// Renderables without bounds, such as compute-driven instancing, are
// left out.
func (ix *SpatialIndex) Rebuild(s *Scene) {
	ix.Clear()
	s.walk(s.root, func(id NodeID, n *node, visible bool) bool {
		if !visible {
			return false
		}
		if rd := n.renderable; rd != nil && rd.Geometry != nil {
			ix.Insert(rd, rd.Geometry.Bounds().Transform(n.world))
		}
		return true
	})
}

func (ix *SpatialIndex) query(box AABB, keep func(AABB) bool) []*Renderable {
	if box.Empty() {
		return nil
	}
	seen := make(map[int32]struct{})
	var out []*Renderable
	visit := func(id int32) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		if e := ix.entries[id]; keep(e.bounds) {
			out = append(out, e.renderable)
		}
	}
	lo, hi := ix.span(box)
	if cellCount(lo, hi) > int64(len(ix.cells)) {
		// Cheaper to scan the occupied cells than the query's cells.
		for k, ids := range ix.cells {
			if k[0] < lo[0] || k[0] > hi[0] || k[1] < lo[1] || k[1] > hi[1] || k[2] < lo[2] || k[2] > hi[2] {
				continue
			}
			for _, id := range ids {
				visit(id)
			}
		}
	} else {
		for x := lo[0]; x <= hi[0]; x++ {
			for y := lo[1]; y <= hi[1]; y++ {
				for z := lo[2]; z <= hi[2]; z++ {
					for _, id := range ix.cells[cellKey{x, y, z}] {
						visit(id)
					}
				}
			}
		}
	}
	for _, id := range ix.oversize {
		visit(id)
	}
	return out
}

// QueryAABB returns the renderables whose bounds overlap box, in insertion
// order of first discovery.
func (ix *SpatialIndex) QueryAABB(box AABB) []*Renderable {
	return ix.query(box, box.Overlaps)
}

// QueryRadius returns the renderables whose bounds come within radius of
// center.
func (ix *SpatialIndex) QueryRadius(center mgl32.Vec3, radius float32) []*Renderable {
	r := mgl32.Vec3{radius, radius, radius}
	box := AABB{Min: center.Sub(r), Max: center.Add(r)}
	return ix.query(box, func(b AABB) bool {
		return b.DistanceSquared(center) <= radius*radius
	})
}
