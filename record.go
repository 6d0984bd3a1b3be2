package wgrender

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender/gpu"
)

type drawItem struct {
	rend  *Renderable
	node  NodeID
	name  string
	world mgl32.Mat4

	pipeline *pipelineEntry
	groups   []gpu.BindGroup
	groupKey uint64
	batch    int
	slot     int
}

type resolvedMaterial struct {
	groups []gpu.BindGroup
	key    uint64
	err    error
}

type batchKey struct {
	pipeline *pipelineEntry
	groups   uint64
}

// passCache memoizes per-pass work on shared geometries and materials so
// each is uploaded and resolved once no matter how many renderables use
// it.
type passCache struct {
	geometries map[*Geometry]error
	materials  map[*Material]*resolvedMaterial
	batches    map[batchKey]int
	frustum    Frustum
	cull       bool
	format     gpu.TextureFormat
}

func (r *Renderer) renderPass(scene *Scene, cam *Camera) (*FrameReport, error) {
	r.stats = FrameStats{Frame: r.frameNo, Passes: 1}
	rep := &FrameReport{Frame: r.frameNo}
	frame := r.cur.frame

	var items []drawItem
	scene.walk(scene.root, func(id NodeID, n *node, visible bool) bool {
		r.stats.Visited++
		if visible && n.renderable != nil {
			items = append(items, drawItem{rend: n.renderable, node: id, name: n.name, world: n.world})
		}
		return true
	})
	r.stats.Collected = len(items)

	// The camera is read after the traversal so it sees this frame's
	// transforms.
	camGroup, vp, err := r.writeCamera(cam)
	if err != nil {
		return rep, r.fail(err)
	}

	pc := &passCache{
		geometries: map[*Geometry]error{},
		materials:  map[*Material]*resolvedMaterial{},
		batches:    map[batchKey]int{},
		cull:       r.cfg.FrustumCulling,
		format:     frame.Format,
	}
	if pc.cull {
		pc.frustum = FrustumFromMatrix(vp)
	}
	ready := items[:0]
	for _, it := range items {
		culled, err := r.prepare(&it, pc)
		if err != nil {
			if isDeviceLost(err) {
				return rep, r.fail(err)
			}
			rep.Diagnostics = append(rep.Diagnostics, &RenderableError{Node: it.node, Name: it.name, Err: err})
			r.stats.Skipped++
			continue
		}
		if culled {
			r.stats.Culled++
			continue
		}
		ready = append(ready, it)
	}

	// Opaque batches first, each batch in first-seen order; the stable sort
	// keeps insertion order inside a batch.
	sort.SliceStable(ready, func(i, j int) bool {
		bi, bj := ready[i].pipeline.blended, ready[j].pipeline.blended
		if bi != bj {
			return !bi
		}
		return ready[i].batch < ready[j].batch
	})

	objGroup, err := r.writeObjects(ready)
	if err != nil {
		return rep, r.fail(err)
	}
	depth, err := r.depthTarget(frame.Width, frame.Height)
	if err != nil {
		return rep, r.fail(err)
	}

	enc, err := r.dev.CreateCommandEncoder("frame")
	if err != nil {
		return rep, r.fail(&ResourceError{Resource: "frame", Op: "encode", Err: err})
	}
	load := gpu.LoadOpClear
	if r.cur.passes > 0 {
		load = gpu.LoadOpLoad
	}
	cc := r.cfg.ClearColor
	desc := &gpu.RenderPassDescriptor{
		Label: "frame",
		Color: gpu.ColorAttachment{
			View:       frame.View,
			LoadOp:     load,
			ClearValue: gpu.Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]},
		},
	}
	if depth != nil {
		// Depth is per pass; each pass brings its own camera.
		desc.Depth = &gpu.DepthAttachment{View: depth, LoadOp: gpu.LoadOpClear, ClearValue: 1}
	}
	pass := enc.BeginRenderPass(desc)
	r.record(pass, ready, camGroup, objGroup)
	if err := pass.End(); err != nil {
		enc.Release()
		return rep, r.fail(&ResourceError{Resource: "frame", Op: "encode", Err: err})
	}
	if err := r.submit(enc, "frame"); err != nil {
		return rep, err
	}

	rep.Stats = r.stats
	if len(rep.Diagnostics) > 0 {
		r.log.Warnf("frame %d: skipped %d renderables: %v", r.frameNo, len(rep.Diagnostics), rep.Diagnostics[0])
	}
	return rep, nil
}

// prepare uploads what it needs and resolves the pipeline and groups.
func (r *Renderer) prepare(it *drawItem, pc *passCache) (culled bool, err error) {
	rd := it.rend
	if err := rd.check(); err != nil {
		return false, err
	}
	g, m := rd.Geometry, rd.Material
	if m.released {
		return false, &ResourceError{Resource: m.label, Op: "draw", Err: ErrResourceReleased}
	}
	if n, limit := rd.instances(), g.MaxInstances(); limit > 0 && n > limit {
		return false, &ResourceError{Resource: g.label, Op: "draw", Err: fmt.Errorf("%d instances requested, instance data holds %d", n, limit)}
	}
	if pc.cull && rd.instances() == 1 {
		if b := g.Bounds(); !b.Empty() && !pc.frustum.ContainsAABB(b.Transform(it.world)) {
			return true, nil
		}
	}

	gerr, seen := pc.geometries[g]
	if !seen {
		_, gerr = g.EnsureUploaded(r)
		pc.geometries[g] = gerr
	}
	if gerr != nil {
		return false, gerr
	}

	rm := pc.materials[m]
	if rm == nil {
		rm = r.resolveMaterial(m)
		pc.materials[m] = rm
	}
	if rm.err != nil {
		return false, rm.err
	}

	pe, err := r.renderPipeline(m, g, pc.format)
	if err != nil {
		return false, err
	}
	it.pipeline = pe
	it.groups = rm.groups
	it.groupKey = rm.key
	bk := batchKey{pipeline: pe, groups: rm.key}
	idx, ok := pc.batches[bk]
	if !ok {
		idx = len(pc.batches)
		pc.batches[bk] = idx
	}
	it.batch = idx
	return false, nil
}

func (r *Renderer) resolveMaterial(m *Material) *resolvedMaterial {
	groups := m.Groups()
	rm := &resolvedMaterial{groups: make([]gpu.BindGroup, len(groups))}
	k := newKeyHasher()
	for i, g := range groups {
		h, err := g.Resolve(r)
		if err != nil {
			rm.err = err
			return rm
		}
		rm.groups[i] = h
		k.u64(g.sig)
	}
	rm.key = k.sum()
	return rm
}

func (r *Renderer) writeCamera(cam *Camera) (gpu.BindGroup, mgl32.Mat4, error) {
	view := cam.ViewMatrix()
	proj := cam.ProjectionMatrix()
	vp := proj.Mul4(view)
	data := r.cameraBuf.Data()
	putMat4(data[0:], vp)
	putMat4(data[64:], view)
	putMat4(data[128:], proj)
	putVec4(data[192:], cam.WorldPosition().Vec4(1))
	r.cameraBuf.MarkDirty()
	h, err := r.cameraGroup.Resolve(r)
	return h, vp, err
}

// writeObjects fills one uniform slot per draw and uploads the used range
// with a single write. The buffer grows, and its group is rebuilt, when a
// pass has more objects than slots.
func (r *Renderer) writeObjects(items []drawItem) (gpu.BindGroup, error) {
	if n := len(items); n > r.objectCap {
		newCap := r.objectCap * 2
		if newCap < n {
			newCap = n
		}
		r.log.Debugf("growing object uniforms %d -> %d", r.objectCap, newCap)
		r.objectCap = newCap
		r.objectBuf.SetData(make([]byte, uint64(newCap)*r.objectStep))
	}
	data := r.objectBuf.Data()
	for i := range items {
		items[i].slot = i
		off := uint64(i) * r.objectStep
		world := items[i].world
		putMat4(data[off:], world)
		putMat4(data[off+64:], world.Mat3().Inv().Transpose().Mat4())
	}
	uploaded, err := r.objectBuf.EnsureUploaded(r)
	if err != nil {
		return nil, err
	}
	if !uploaded && len(items) > 0 {
		used := uint64(len(items)) * r.objectStep
		if err := r.dev.WriteBuffer(r.objectBuf.gpuBuffer(), 0, data[:used]); err != nil {
			return nil, &ResourceError{Resource: r.objectBuf.Label(), Op: "upload", Err: err}
		}
		r.stats.Uploads++
	}
	return r.objectGroup.Resolve(r)
}

func (r *Renderer) depthTarget(width, height uint32) (gpu.Texture, error) {
	if r.cfg.DepthFormat == gpu.TextureFormatUndefined {
		return nil, nil
	}
	if r.depth != nil && r.depth.Width() == width && r.depth.Height() == height {
		return r.depth, nil
	}
	if r.depth != nil {
		r.retire(r.depth)
		r.depth = nil
	}
	t, err := r.dev.CreateTexture(&gpu.TextureDescriptor{
		Label:  "depth",
		Width:  width,
		Height: height,
		Format: r.cfg.DepthFormat,
		Usage:  gpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, &ResourceError{Resource: "depth", Op: "allocate", Err: err}
	}
	r.depth = t
	return t, nil
}

// record issues the sorted draws. Pipelines and material groups are bound
// only when they change; the object group moves its dynamic offset per
// draw.
func (r *Renderer) record(pass gpu.RenderPass, items []drawItem, camGroup, objGroup gpu.BindGroup) {
	if len(items) == 0 {
		return
	}
	pass.SetBindGroup(0, camGroup, nil)

	var (
		pipeline  *pipelineEntry
		groupKey  uint64
		haveGroup bool
		batch     = -1
		geometry  *Geometry
	)
	for _, it := range items {
		if it.pipeline != pipeline {
			pass.SetPipeline(it.pipeline.render)
			pipeline = it.pipeline
			haveGroup = false
			r.stats.PipelineBinds++
		}
		if !haveGroup || it.groupKey != groupKey {
			for i, h := range it.groups {
				pass.SetBindGroup(uint32(2+i), h, nil)
				r.stats.GroupBinds++
			}
			groupKey = it.groupKey
			haveGroup = true
		}
		if it.batch != batch {
			batch = it.batch
			r.stats.Batches++
		}
		pass.SetBindGroup(1, objGroup, []uint32{uint32(uint64(it.slot) * r.objectStep)})

		g := it.rend.Geometry
		if g != geometry {
			for slot, a := range g.attributes() {
				pass.SetVertexBuffer(uint32(slot), a.buffer.gpuBuffer())
			}
			if idx, ok := g.IndexBuffer(); ok && g.Indexed() {
				pass.SetIndexBuffer(idx.gpuBuffer(), g.IndexFormat())
			}
			geometry = g
		}
		inst := it.rend.instances()
		if g.Indexed() {
			pass.DrawIndexed(g.IndexCount(), inst, 0, 0, 0)
		} else {
			pass.Draw(g.VertexCount(), inst, 0, 0)
		}
		r.stats.Draws++
		r.stats.Instances += int(inst)
	}
}
