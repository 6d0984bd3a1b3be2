package wgrender

import (
	"fmt"
	"math"

	"github.com/gekko3d/wgrender/gpu"
)

// Attribute names the geometry generators agree on. Shaders see vertex
// attributes at consecutive locations in the order they were set, followed
// by the instance attributes.
const (
	AttributePosition = "position"
	AttributeNormal   = "normal"
	AttributeUV       = "uv"
	AttributeColor    = "color"
)

type attribute struct {
	name     string
	format   gpu.VertexFormat
	buffer   *Buffer
	owned    bool
	instance bool
}

// Geometry holds vertex attributes, optional indices and optional instance
// attributes, each in its own GPU buffer. A geometry can be shared by many
// renderables and is released explicitly by its owner.
type Geometry struct {
	label string

	vertex    []*attribute
	instances []*attribute

	indices     *Buffer
	indexFormat gpu.IndexFormat
	indexCount  uint32

	// base supplies the vertex attributes and indices of an instanced
	// geometry until it sets its own.
	base *Geometry

	instanceCount uint32

	bounds      AABB
	boundsSet   bool
	boundsDirty bool

	released bool
}

func NewGeometry(label string) *Geometry {
	if label == "" {
		label = newResource("geometry", "").label
	}
	return &Geometry{label: label, bounds: EmptyAABB(), boundsDirty: true}
}

// NewInstancedGeometry draws base count times per draw call. It reads
// base's vertex attributes, indices and bounds as they are at draw time,
// so later changes to base show up in every instanced view of it.
// Releasing the instanced geometry only frees its own instance attributes.
func NewInstancedGeometry(base *Geometry, count uint32) *Geometry {
	g := NewGeometry(base.label + "-instanced")
	g.base = base
	g.instanceCount = count
	return g
}

// vertexSource is the geometry whose vertex attributes g draws.
func (g *Geometry) vertexSource() *Geometry {
	if len(g.vertex) == 0 && g.base != nil {
		return g.base.vertexSource()
	}
	return g
}

// indexSource is the geometry whose indices g draws.
func (g *Geometry) indexSource() *Geometry {
	if g.indices == nil && g.base != nil {
		return g.base.indexSource()
	}
	return g
}

// ownVertex copies the base's vertex attributes into g as shared buffers
// before g changes its vertex data, leaving the base untouched.
func (g *Geometry) ownVertex() {
	if len(g.vertex) > 0 || g.base == nil {
		return
	}
	for _, a := range g.base.vertexSource().vertex {
		shared := *a
		shared.owned = false
		g.vertex = append(g.vertex, &shared)
	}
	g.boundsDirty = true
}

func (g *Geometry) Label() string { return g.label }

func (g *Geometry) find(name string, instance bool) *attribute {
	list := g.vertexSource().vertex
	if instance {
		list = g.instances
	}
	for _, a := range list {
		if a.name == name {
			return a
		}
	}
	return nil
}

func floatFormat(components int) (gpu.VertexFormat, error) {
	switch components {
	case 1:
		return gpu.VertexFormatFloat32, nil
	case 2:
		return gpu.VertexFormatFloat32x2, nil
	case 3:
		return gpu.VertexFormatFloat32x3, nil
	case 4:
		return gpu.VertexFormatFloat32x4, nil
	}
	return 0, fmt.Errorf("wgrender: %d float components is not a vertex format", components)
}

func (g *Geometry) set(name string, format gpu.VertexFormat, data []byte, instance bool) {
	if !instance {
		g.ownVertex()
	}
	if a := g.find(name, instance); a != nil && a.owned {
		a.format = format
		a.buffer.SetData(data)
	} else {
		a := &attribute{
			name:     name,
			format:   format,
			buffer:   NewBuffer(g.label+"-"+name, gpu.BufferUsageVertex, data),
			owned:    true,
			instance: instance,
		}
		g.put(a)
	}
	if name == AttributePosition && !instance {
		g.boundsDirty = true
	}
}

func (g *Geometry) put(a *attribute) {
	list := &g.vertex
	if a.instance {
		list = &g.instances
	}
	for i, old := range *list {
		if old.name == a.name {
			if old.owned {
				old.buffer.Release()
			}
			(*list)[i] = a
			return
		}
	}
	*list = append(*list, a)
}

// SetAttribute stores float vertex data with components values per vertex.
func (g *Geometry) SetAttribute(name string, components int, values []float32) error {
	format, err := floatFormat(components)
	if err != nil {
		return err
	}
	if len(values)%components != 0 {
		return fmt.Errorf("wgrender: attribute %q has %d values, not a multiple of %d", name, len(values), components)
	}
	g.set(name, format, Float32Bytes(values), false)
	return nil
}

// SetAttributeBytes stores pre-encoded vertex data.
func (g *Geometry) SetAttributeBytes(name string, format gpu.VertexFormat, data []byte) {
	g.set(name, format, data, false)
}

// SetInstanceAttribute stores per-instance float data.
func (g *Geometry) SetInstanceAttribute(name string, components int, values []float32) error {
	format, err := floatFormat(components)
	if err != nil {
		return err
	}
	if len(values)%components != 0 {
		return fmt.Errorf("wgrender: instance attribute %q has %d values, not a multiple of %d", name, len(values), components)
	}
	g.set(name, format, Float32Bytes(values), true)
	return nil
}

// SetAttributeBuffer binds a buffer the geometry does not own, typically a
// ComputeBuffer created with vertex usage. The buffer is not released with
// the geometry.
func (g *Geometry) SetAttributeBuffer(name string, format gpu.VertexFormat, buf *Buffer, instance bool) error {
	if !buf.Usage().Has(gpu.BufferUsageVertex) {
		return &ResourceError{Resource: buf.Label(), Op: "bind as vertex buffer", Err: fmt.Errorf("missing vertex usage")}
	}
	if !instance {
		g.ownVertex()
	}
	g.put(&attribute{name: name, format: format, buffer: buf, instance: instance})
	if name == AttributePosition && !instance {
		g.boundsDirty = true
	}
	return nil
}

// SetIndices stores triangle indices, as uint16 when every index fits.
func (g *Geometry) SetIndices(indices []uint32) {
	var data []byte
	format := gpu.IndexFormatUint16
	for _, i := range indices {
		if i > math.MaxUint16 {
			format = gpu.IndexFormatUint32
			break
		}
	}
	if format == gpu.IndexFormatUint16 {
		short := make([]uint16, len(indices))
		for i, v := range indices {
			short[i] = uint16(v)
		}
		data = Uint16Bytes(short)
	} else {
		data = Uint32Bytes(indices)
	}
	if g.indices == nil {
		g.indices = NewBuffer(g.label+"-indices", gpu.BufferUsageIndex, data)
	} else {
		g.indices.SetData(data)
	}
	g.indexFormat = format
	g.indexCount = uint32(len(indices))
}

func (g *Geometry) Indexed() bool {
	s := g.indexSource()
	return s.indices != nil && s.indexCount > 0
}

func (g *Geometry) IndexCount() uint32           { return g.indexSource().indexCount }
func (g *Geometry) IndexFormat() gpu.IndexFormat { return g.indexSource().indexFormat }

// IndexBuffer returns the buffer holding the encoded indices.
func (g *Geometry) IndexBuffer() (*Buffer, bool) {
	s := g.indexSource()
	return s.indices, s.indices != nil
}

// VertexCount is derived from the first vertex attribute.
func (g *Geometry) VertexCount() uint32 {
	vertex := g.vertexSource().vertex
	if len(vertex) == 0 {
		return 0
	}
	a := vertex[0]
	return uint32(a.buffer.Size() / a.format.Size())
}

// InstanceCount is 1 for plain geometries.
func (g *Geometry) InstanceCount() uint32 {
	if g.instanceCount == 0 {
		return 1
	}
	return g.instanceCount
}

func (g *Geometry) SetInstanceCount(n uint32) { g.instanceCount = n }

// Attribute returns the buffer backing a vertex or instance attribute.
func (g *Geometry) Attribute(name string) (*Buffer, bool) {
	if a := g.find(name, false); a != nil {
		return a.buffer, true
	}
	if a := g.find(name, true); a != nil {
		return a.buffer, true
	}
	return nil, false
}

func (g *Geometry) attributes() []*attribute {
	vertex := g.vertexSource().vertex
	out := make([]*attribute, 0, len(vertex)+len(g.instances))
	out = append(out, vertex...)
	return append(out, g.instances...)
}

// MaxInstances is how many instances the instance attributes hold data
// for, or 0 when the geometry has none and any count can be drawn.
func (g *Geometry) MaxInstances() uint32 {
	var limit uint32
	for i, a := range g.instances {
		n := uint32(a.buffer.Size() / a.format.Size())
		if i == 0 || n < limit {
			limit = n
		}
	}
	return limit
}

// Layout describes the vertex buffers in slot order.
func (g *Geometry) Layout() []gpu.VertexBufferLayout {
	attrs := g.attributes()
	out := make([]gpu.VertexBufferLayout, len(attrs))
	for i, a := range attrs {
		step := gpu.VertexStepModeVertex
		if a.instance {
			step = gpu.VertexStepModeInstance
		}
		out[i] = gpu.VertexBufferLayout{
			ArrayStride: a.format.Size(),
			StepMode:    step,
			Attributes: []gpu.VertexAttribute{{
				Format:         a.format,
				ShaderLocation: uint32(i),
			}},
		}
	}
	return out
}

// SetBounds overrides the bounding box computed from positions.
func (g *Geometry) SetBounds(b AABB) {
	g.bounds = b
	g.boundsSet = true
}

// Bounds is the local-space box around the position attribute. Geometries
// without float3 positions report an empty box and are never culled.
func (g *Geometry) Bounds() AABB {
	if g.boundsSet {
		return g.bounds
	}
	if len(g.vertex) == 0 && g.base != nil {
		return g.base.Bounds()
	}
	if !g.boundsDirty {
		return g.bounds
	}
	g.boundsDirty = false
	g.bounds = EmptyAABB()
	a := g.find(AttributePosition, false)
	if a == nil || a.format != gpu.VertexFormatFloat32x3 {
		return g.bounds
	}
	data := a.buffer.Data()
	for i := 0; i < len(data)/12; i++ {
		g.bounds = g.bounds.Extend(readVec3(data, i))
	}
	return g.bounds
}

// Validate reports whether the geometry can be drawn.
func (g *Geometry) Validate() error {
	if g.released {
		return &ResourceError{Resource: g.label, Op: "draw", Err: ErrResourceReleased}
	}
	if g.VertexCount() == 0 {
		return &ResourceError{Resource: g.label, Op: "draw", Err: ErrNoVertexData}
	}
	for _, a := range g.attributes() {
		if a.buffer.Released() {
			return &ResourceError{Resource: g.label, Op: "draw", Err: fmt.Errorf("attribute %q: %w", a.name, ErrResourceReleased)}
		}
	}
	if idx, ok := g.IndexBuffer(); ok && idx.Released() {
		return &ResourceError{Resource: g.label, Op: "draw", Err: fmt.Errorf("indices: %w", ErrResourceReleased)}
	}
	return nil
}

// EnsureUploaded uploads every dirty attribute and index buffer.
func (g *Geometry) EnsureUploaded(r *Renderer) (bool, error) {
	if err := g.Validate(); err != nil {
		return false, err
	}
	uploaded := false
	for _, a := range g.attributes() {
		ok, err := a.buffer.EnsureUploaded(r)
		if err != nil {
			return uploaded, err
		}
		uploaded = uploaded || ok
	}
	if idx, ok := g.IndexBuffer(); ok && g.Indexed() {
		ok, err := idx.EnsureUploaded(r)
		if err != nil {
			return uploaded, err
		}
		uploaded = uploaded || ok
	}
	return uploaded, nil
}

// Release frees the buffers this geometry owns. Shared attribute buffers
// and everything read from an instanced geometry's base are left alone.
func (g *Geometry) Release() {
	if g.released {
		return
	}
	g.released = true
	for _, list := range [][]*attribute{g.vertex, g.instances} {
		for _, a := range list {
			if a.owned {
				a.buffer.Release()
			}
		}
	}
	if g.indices != nil {
		g.indices.Release()
	}
}
