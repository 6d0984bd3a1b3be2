package wgpudev

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/wgrender/gpu"
)

type buffer struct {
	b     *wgpu.Buffer
	label string
	size  uint64
	usage gpu.BufferUsage
}

func (b *buffer) Label() string          { return b.label }
func (b *buffer) Size() uint64           { return b.size }
func (b *buffer) Usage() gpu.BufferUsage { return b.usage }
func (b *buffer) Release()               { b.b.Release() }

// texture pairs a texture with its default view. Surface textures carry
// only the view; the surface owns the texture.
type texture struct {
	t      *wgpu.Texture
	view   *wgpu.TextureView
	label  string
	width  uint32
	height uint32
	format gpu.TextureFormat
}

func (t *texture) Label() string             { return t.label }
func (t *texture) Width() uint32             { return t.width }
func (t *texture) Height() uint32            { return t.height }
func (t *texture) Format() gpu.TextureFormat { return t.format }

func (t *texture) Release() {
	t.view.Release()
	if t.t != nil {
		t.t.Release()
	}
}

type sampler struct{ s *wgpu.Sampler }

func (s *sampler) Release() { s.s.Release() }

type bindGroupLayout struct{ l *wgpu.BindGroupLayout }

func (l *bindGroupLayout) Release() { l.l.Release() }

type bindGroup struct{ g *wgpu.BindGroup }

func (g *bindGroup) Release() { g.g.Release() }

type renderPipeline struct {
	p      *wgpu.RenderPipeline
	layout *wgpu.PipelineLayout
}

func (p *renderPipeline) Release() {
	p.p.Release()
	p.layout.Release()
}

type computePipeline struct {
	p      *wgpu.ComputePipeline
	layout *wgpu.PipelineLayout
}

func (p *computePipeline) Release() {
	p.p.Release()
	p.layout.Release()
}

type commandBuffer struct{ cb *wgpu.CommandBuffer }

func (c *commandBuffer) Release() { c.cb.Release() }

type encoder struct{ enc *wgpu.CommandEncoder }

func (e *encoder) BeginRenderPass(desc *gpu.RenderPassDescriptor) gpu.RenderPass {
	load := wgpu.LoadOpClear
	if desc.Color.LoadOp == gpu.LoadOpLoad {
		load = wgpu.LoadOpLoad
	}
	c := desc.Color.ClearValue
	rp := &wgpu.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       desc.Color.View.(*texture).view,
				LoadOp:     load,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: c.R, G: c.G, B: c.B, A: c.A},
			},
		},
	}
	if desc.Depth != nil {
		depthLoad := wgpu.LoadOpClear
		if desc.Depth.LoadOp == gpu.LoadOpLoad {
			depthLoad = wgpu.LoadOpLoad
		}
		rp.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            desc.Depth.View.(*texture).view,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: desc.Depth.ClearValue,
		}
	}
	return &renderPass{p: e.enc.BeginRenderPass(rp)}
}

func (e *encoder) BeginComputePass(label string) gpu.ComputePass {
	return &computePass{p: e.enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})}
}

func (e *encoder) CopyBufferToBuffer(src gpu.Buffer, srcOffset uint64, dst gpu.Buffer, dstOffset uint64, size uint64) error {
	return e.enc.CopyBufferToBuffer(src.(*buffer).b, srcOffset, dst.(*buffer).b, dstOffset, size)
}

func (e *encoder) Finish() (gpu.CommandBuffer, error) {
	cb, err := e.enc.Finish(nil)
	if err != nil {
		return nil, err
	}
	return &commandBuffer{cb: cb}, nil
}

func (e *encoder) Release() { e.enc.Release() }

type renderPass struct{ p *wgpu.RenderPassEncoder }

func (r *renderPass) SetPipeline(p gpu.RenderPipeline) {
	r.p.SetPipeline(p.(*renderPipeline).p)
}

func (r *renderPass) SetBindGroup(index uint32, group gpu.BindGroup, offsets []uint32) {
	r.p.SetBindGroup(index, group.(*bindGroup).g, offsets)
}

func (r *renderPass) SetVertexBuffer(slot uint32, buf gpu.Buffer) {
	r.p.SetVertexBuffer(slot, buf.(*buffer).b, 0, wgpu.WholeSize)
}

func (r *renderPass) SetIndexBuffer(buf gpu.Buffer, format gpu.IndexFormat) {
	r.p.SetIndexBuffer(buf.(*buffer).b, indexFormat(format), 0, wgpu.WholeSize)
}

func (r *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.p.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (r *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	r.p.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (r *renderPass) End() error {
	defer r.p.Release()
	return r.p.End()
}

type computePass struct{ p *wgpu.ComputePassEncoder }

func (c *computePass) SetPipeline(p gpu.ComputePipeline) {
	c.p.SetPipeline(p.(*computePipeline).p)
}

func (c *computePass) SetBindGroup(index uint32, group gpu.BindGroup, offsets []uint32) {
	c.p.SetBindGroup(index, group.(*bindGroup).g, offsets)
}

func (c *computePass) DispatchWorkgroups(x, y, z uint32) {
	c.p.DispatchWorkgroups(x, y, z)
}

func (c *computePass) End() error {
	defer c.p.Release()
	return c.p.End()
}
