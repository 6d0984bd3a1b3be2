package gputest

import (
	"fmt"
	"sync/atomic"

	"github.com/gekko3d/wgrender/gpu"
)

type object struct {
	dev      *Device
	ID       int
	released atomic.Bool
}

func (o *object) Release() {
	if o.released.Swap(true) {
		panic(fmt.Sprintf("gputest: object %d released twice", o.ID))
	}
	o.dev.released()
}

func (o *object) IsReleased() bool { return o.released.Load() }

type Buffer struct {
	object
	label string
	usage gpu.BufferUsage
	Data  []byte
}

func (b *Buffer) Label() string          { return b.label }
func (b *Buffer) Size() uint64           { return uint64(len(b.Data)) }
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

type Texture struct {
	object
	label  string
	width  uint32
	height uint32
	format gpu.TextureFormat
	Data   []byte
}

func (t *Texture) Label() string             { return t.label }
func (t *Texture) Width() uint32             { return t.width }
func (t *Texture) Height() uint32            { return t.height }
func (t *Texture) Format() gpu.TextureFormat { return t.format }

type Sampler struct {
	object
	Desc gpu.SamplerDescriptor
}

type BindGroupLayout struct {
	object
	Label   string
	Entries []gpu.BindGroupLayoutEntry
}

type BindGroup struct {
	object
	Label   string
	Layout  *BindGroupLayout
	Entries []gpu.BindGroupEntry
}

// Buffer returns the buffer bound at binding, or nil.
func (g *BindGroup) Buffer(binding uint32) *Buffer {
	for _, e := range g.Entries {
		if e.Binding == binding {
			b, _ := e.Buffer.(*Buffer)
			return b
		}
	}
	return nil
}

type RenderPipeline struct {
	object
	Desc gpu.RenderPipelineDescriptor
}

type ComputePipeline struct {
	object
	Desc gpu.ComputePipelineDescriptor
}

type CommandBuffer struct {
	object
	commands []Command
}

type Encoder struct {
	dev      *Device
	label    string
	commands []Command
	finished bool
}

func (e *Encoder) record(c Command) {
	if e.finished {
		panic("gputest: encoder used after Finish")
	}
	e.commands = append(e.commands, c)
}

func (e *Encoder) BeginRenderPass(desc *gpu.RenderPassDescriptor) gpu.RenderPass {
	d := *desc
	if desc.Depth != nil {
		depth := *desc.Depth
		d.Depth = &depth
	}
	e.record(Command{Op: OpBeginRenderPass, Pass: &d})
	return &renderPass{enc: e}
}

func (e *Encoder) BeginComputePass(label string) gpu.ComputePass {
	e.record(Command{Op: OpBeginComputePass})
	return &computePass{enc: e}
}

func (e *Encoder) CopyBufferToBuffer(src gpu.Buffer, srcOffset uint64, dst gpu.Buffer, dstOffset uint64, size uint64) error {
	s, d := src.(*Buffer), dst.(*Buffer)
	if srcOffset+size > s.Size() || dstOffset+size > d.Size() {
		return fmt.Errorf("gputest: copy of %d bytes out of range", size)
	}
	e.record(Command{Op: OpCopyBuffer, Buffer: s, Dst: d, SrcOffset: srcOffset, DstOffset: dstOffset, Size: size})
	return nil
}

func (e *Encoder) Finish() (gpu.CommandBuffer, error) {
	e.finished = true
	e.dev.mu.Lock()
	defer e.dev.mu.Unlock()
	if e.dev.lost {
		return nil, fmt.Errorf("gputest: finish %q: %w", e.label, gpu.ErrDeviceLost)
	}
	return &CommandBuffer{object: object{dev: e.dev, ID: e.dev.id()}, commands: e.commands}, nil
}

func (e *Encoder) Release() {}

type renderPass struct {
	enc   *Encoder
	ended bool
}

func (p *renderPass) SetPipeline(pl gpu.RenderPipeline) {
	p.enc.record(Command{Op: OpSetPipeline, RenderPipeline: pl.(*RenderPipeline)})
}

func (p *renderPass) SetBindGroup(index uint32, group gpu.BindGroup, offsets []uint32) {
	p.enc.record(Command{Op: OpSetBindGroup, Index: index, BindGroup: group.(*BindGroup), Offsets: append([]uint32(nil), offsets...)})
}

func (p *renderPass) SetVertexBuffer(slot uint32, buf gpu.Buffer) {
	p.enc.record(Command{Op: OpSetVertexBuffer, Index: slot, Buffer: buf.(*Buffer)})
}

func (p *renderPass) SetIndexBuffer(buf gpu.Buffer, format gpu.IndexFormat) {
	p.enc.record(Command{Op: OpSetIndexBuffer, Buffer: buf.(*Buffer), IndexFormat: format})
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.enc.record(Command{Op: OpDraw, Counts: [4]uint32{vertexCount, instanceCount, firstVertex, firstInstance}})
}

func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.enc.record(Command{Op: OpDrawIndexed, Counts: [4]uint32{indexCount, instanceCount, firstIndex, firstInstance}})
}

func (p *renderPass) End() error {
	if p.ended {
		return fmt.Errorf("gputest: render pass ended twice")
	}
	p.ended = true
	p.enc.record(Command{Op: OpEndPass})
	return nil
}

type computePass struct {
	enc   *Encoder
	ended bool
}

func (p *computePass) SetPipeline(pl gpu.ComputePipeline) {
	p.enc.record(Command{Op: OpSetPipeline, ComputePipeline: pl.(*ComputePipeline)})
}

func (p *computePass) SetBindGroup(index uint32, group gpu.BindGroup, offsets []uint32) {
	p.enc.record(Command{Op: OpSetBindGroup, Index: index, BindGroup: group.(*BindGroup), Offsets: append([]uint32(nil), offsets...)})
}

func (p *computePass) DispatchWorkgroups(x, y, z uint32) {
	p.enc.record(Command{Op: OpDispatch, Counts: [4]uint32{x, y, z}})
}

func (p *computePass) End() error {
	if p.ended {
		return fmt.Errorf("gputest: compute pass ended twice")
	}
	p.ended = true
	p.enc.record(Command{Op: OpEndPass})
	return nil
}
