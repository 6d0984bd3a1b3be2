// Package geometries generates common indexed meshes for the renderer.
// Every generator emits position, normal and uv attributes in that order so
// the built-in shaders find them at locations 0, 1 and 2.
package geometries

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender"
)

// meshData accumulates vertices before they are handed to a Geometry.
type meshData struct {
	positions []float32
	normals   []float32
	uvs       []float32
	indices   []uint32
}

func (m *meshData) vertex(p, n mgl32.Vec3, u, v float32) uint32 {
	idx := uint32(len(m.positions) / 3)
	m.positions = append(m.positions, p[:]...)
	m.normals = append(m.normals, n[:]...)
	m.uvs = append(m.uvs, u, v)
	return idx
}

func (m *meshData) triangle(a, b, c uint32) {
	m.indices = append(m.indices, a, b, c)
}

func (m *meshData) build(label string) *wgrender.Geometry {
	g := wgrender.NewGeometry(label)
	// Component counts are fixed here, so the setters cannot fail.
	_ = g.SetAttribute(wgrender.AttributePosition, 3, m.positions)
	_ = g.SetAttribute(wgrender.AttributeNormal, 3, m.normals)
	_ = g.SetAttribute(wgrender.AttributeUV, 2, m.uvs)
	g.SetIndices(m.indices)
	return g
}
