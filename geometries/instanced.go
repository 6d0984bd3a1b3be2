package geometries

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender"
	"github.com/gekko3d/wgrender/gpu"
)

// AttributeOffset is the per-instance vec4 read by the instanced material:
// xyz translate the instance, w scales it.
const AttributeOffset = "offset"

// Instanced draws base once per offset in a single draw call.
func Instanced(base *wgrender.Geometry, offsets []mgl32.Vec4) (*wgrender.Geometry, error) {
	if len(offsets) == 0 {
		return nil, fmt.Errorf("geometries: instanced %q needs at least one offset", base.Label())
	}
	g := wgrender.NewInstancedGeometry(base, uint32(len(offsets)))
	values := make([]float32, 0, len(offsets)*4)
	for _, o := range offsets {
		values = append(values, o[:]...)
	}
	if err := g.SetInstanceAttribute(AttributeOffset, 4, values); err != nil {
		g.Release()
		return nil, err
	}
	g.SetBounds(instanceBounds(base.Bounds(), offsets))
	return g, nil
}

// InstancedFromBuffer draws base count times with offsets read from buf,
// typically the output of a compute pass. Bounds are left unset, so the
// result is never frustum culled.
func InstancedFromBuffer(base *wgrender.Geometry, buf *wgrender.Buffer, count uint32) (*wgrender.Geometry, error) {
	if need := uint64(count) * 16; buf.Size() < need {
		return nil, fmt.Errorf("geometries: buffer %q holds %d bytes, %d instances need %d", buf.Label(), buf.Size(), count, need)
	}
	g := wgrender.NewInstancedGeometry(base, count)
	if err := g.SetAttributeBuffer(AttributeOffset, gpu.VertexFormatFloat32x4, buf, true); err != nil {
		g.Release()
		return nil, err
	}
	g.SetBounds(wgrender.EmptyAABB())
	return g, nil
}

// GridOffsets lays out nx*nz instances on the XZ plane centred on the
// origin, all with the given scale.
func GridOffsets(nx, nz int, spacing, scale float32) []mgl32.Vec4 {
	out := make([]mgl32.Vec4, 0, nx*nz)
	for z := 0; z < nz; z++ {
		for x := 0; x < nx; x++ {
			out = append(out, mgl32.Vec4{
				(float32(x) - float32(nx-1)/2) * spacing,
				0,
				(float32(z) - float32(nz-1)/2) * spacing,
				scale,
			})
		}
	}
	return out
}

func instanceBounds(base wgrender.AABB, offsets []mgl32.Vec4) wgrender.AABB {
	out := wgrender.EmptyAABB()
	if base.Empty() {
		return out
	}
	for _, o := range offsets {
		out = out.Extend(base.Min.Mul(o.W()).Add(o.Vec3()))
		out = out.Extend(base.Max.Mul(o.W()).Add(o.Vec3()))
	}
	return out
}
