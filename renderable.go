package wgrender

// Renderable is a scene node that draws one Geometry with one Material.
// Geometry and Material are shared references; destroying the node leaves
// them alive for their owner to release.
type Renderable struct {
	Object3D

	Geometry *Geometry
	Material *Material
	// InstanceCount overrides the geometry's instance count when non-zero.
	InstanceCount uint32

	destroyed bool
}

// NewRenderable creates a detached renderable node.
func (s *Scene) NewRenderable(g *Geometry, m *Material) *Renderable {
	r := &Renderable{
		Object3D: s.NewObject("renderable"),
		Geometry: g,
		Material: m,
	}
	r.n().renderable = r
	return r
}

// Destroyed reports whether the node was freed with Scene.Destroy.
func (r *Renderable) Destroyed() bool { return r.destroyed }

func (r *Renderable) instances() uint32 {
	if r.InstanceCount > 0 {
		return r.InstanceCount
	}
	if r.Geometry == nil {
		return 1
	}
	return r.Geometry.InstanceCount()
}

// check reports why the renderable cannot be drawn this frame.
func (r *Renderable) check() error {
	switch {
	case r.Geometry == nil:
		return ErrNoGeometry
	case r.Material == nil:
		return ErrNoMaterial
	}
	return nil
}
