// Package gputest provides an in-memory gpu.Device that records every call.
// Buffers keep their bytes, copies execute at Submit and mappings resolve on
// Poll, so readback round trips behave like a real queue.
package gputest

import (
	"fmt"
	"sync"

	"github.com/gekko3d/wgrender/gpu"
)

// Counters is a snapshot of how often each device entry point ran.
type Counters struct {
	Calls            int
	Buffers          int
	Textures         int
	Samplers         int
	BindGroupLayouts int
	BindGroups       int
	RenderPipelines  int
	ComputePipelines int
	BufferWrites     int
	TextureWrites    int
	Encoders         int
	Submits          int
	Releases         int
	Acquires         int
	Presents         int
}

// Command is one recorded encoder or pass call.
type Command struct {
	Op string

	RenderPipeline  *RenderPipeline
	ComputePipeline *ComputePipeline
	Index           uint32
	BindGroup       *BindGroup
	Offsets         []uint32
	Buffer          *Buffer
	IndexFormat     gpu.IndexFormat
	// Counts holds draw arguments in call order, or the dispatch size.
	Counts [4]uint32
	Pass   *gpu.RenderPassDescriptor

	// CopyBufferToBuffer only; Buffer is the source.
	Dst       *Buffer
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

const (
	OpBeginRenderPass  = "BeginRenderPass"
	OpBeginComputePass = "BeginComputePass"
	OpEndPass          = "End"
	OpSetPipeline      = "SetPipeline"
	OpSetBindGroup     = "SetBindGroup"
	OpSetVertexBuffer  = "SetVertexBuffer"
	OpSetIndexBuffer   = "SetIndexBuffer"
	OpDraw             = "Draw"
	OpDrawIndexed      = "DrawIndexed"
	OpDispatch         = "DispatchWorkgroups"
	OpCopyBuffer       = "CopyBufferToBuffer"
)

type pendingMap struct {
	buf    *Buffer
	offset uint64
	size   uint64
	done   func([]byte, error)
}

// Device is a recording gpu.Device. The zero value is not usable; call
// NewDevice.
type Device struct {
	mu sync.Mutex

	limits   gpu.Limits
	width    uint32
	height   uint32
	format   gpu.TextureFormat
	counters Counters
	commands []Command
	pending  []pendingMap
	failures map[string]error
	lost     bool
	nextID   int

	// OnDispatch runs at Submit for every recorded dispatch with the bind
	// groups that were bound at the time. Tests use it to stand in for a
	// compute shader.
	OnDispatch func(groups map[uint32]*BindGroup, x, y, z uint32)
}

var _ gpu.Device = (*Device)(nil)

func NewDevice(width, height uint32) *Device {
	return &Device{
		limits:   gpu.DefaultLimits(),
		width:    width,
		height:   height,
		format:   gpu.TextureFormatBGRA8Unorm,
		failures: map[string]error{},
	}
}

// FailOn makes every later call to the named entry point return err, until
// cleared with a nil err.
func (d *Device) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Lose simulates device loss. Every later call fails with gpu.ErrDeviceLost
// and pending mappings fail on the next Poll.
func (d *Device) Lose() {
	d.mu.Lock()
	d.lost = true
	d.mu.Unlock()
}

func (d *Device) Lost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

func (d *Device) Counters() Counters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters
}

// Commands returns every command from submitted encoders in submit order.
func (d *Device) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Command, len(d.commands))
	copy(out, d.commands)
	return out
}

// CommandsOf filters Commands by op.
func (d *Device) CommandsOf(op string) []Command {
	var out []Command
	for _, c := range d.Commands() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (d *Device) ResetCommands() {
	d.mu.Lock()
	d.commands = nil
	d.mu.Unlock()
}

func (d *Device) PendingMaps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// begin counts a call and reports the configured failure, if any. Caller
// holds d.mu.
func (d *Device) begin(op string) error {
	d.counters.Calls++
	if d.lost {
		return fmt.Errorf("gputest: %s: %w", op, gpu.ErrDeviceLost)
	}
	if err, ok := d.failures[op]; ok {
		return err
	}
	return nil
}

func (d *Device) id() int {
	d.nextID++
	return d.nextID
}

func (d *Device) released() {
	d.mu.Lock()
	d.counters.Releases++
	d.mu.Unlock()
}

func (d *Device) Limits() gpu.Limits { return d.limits }

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateBuffer"); err != nil {
		return nil, err
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("gputest: buffer %q has zero size", desc.Label)
	}
	d.counters.Buffers++
	return &Buffer{
		object: object{dev: d, ID: d.id()},
		label:  desc.Label,
		usage:  desc.Usage,
		Data:   make([]byte, desc.Size),
	}, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("WriteBuffer"); err != nil {
		return err
	}
	b := buf.(*Buffer)
	if b.IsReleased() {
		return fmt.Errorf("gputest: write to released buffer %q", b.label)
	}
	if offset+uint64(len(data)) > uint64(len(b.Data)) {
		return fmt.Errorf("gputest: write of %d bytes at %d overflows buffer %q (%d)", len(data), offset, b.label, len(b.Data))
	}
	copy(b.Data[offset:], data)
	d.counters.BufferWrites++
	return nil
}

func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateTexture"); err != nil {
		return nil, err
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("gputest: texture %q has zero extent", desc.Label)
	}
	d.counters.Textures++
	return &Texture{
		object: object{dev: d, ID: d.id()},
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
	}, nil
}

func (d *Device) WriteTexture(tex gpu.Texture, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("WriteTexture"); err != nil {
		return err
	}
	t := tex.(*Texture)
	want := int(t.width) * int(t.height) * t.format.BytesPerPixel()
	if len(data) != want {
		return fmt.Errorf("gputest: texture %q expects %d bytes, got %d", t.label, want, len(data))
	}
	t.Data = append(t.Data[:0], data...)
	d.counters.TextureWrites++
	return nil
}

func (d *Device) CreateSampler(desc *gpu.SamplerDescriptor) (gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateSampler"); err != nil {
		return nil, err
	}
	d.counters.Samplers++
	return &Sampler{object: object{dev: d, ID: d.id()}, Desc: *desc}, nil
}

func (d *Device) CreateBindGroupLayout(desc *gpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateBindGroupLayout"); err != nil {
		return nil, err
	}
	d.counters.BindGroupLayouts++
	entries := append([]gpu.BindGroupLayoutEntry(nil), desc.Entries...)
	return &BindGroupLayout{object: object{dev: d, ID: d.id()}, Label: desc.Label, Entries: entries}, nil
}

func (d *Device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateBindGroup"); err != nil {
		return nil, err
	}
	layout, ok := desc.Layout.(*BindGroupLayout)
	if !ok || layout == nil {
		return nil, fmt.Errorf("gputest: bind group %q has no layout", desc.Label)
	}
	if len(desc.Entries) != len(layout.Entries) {
		return nil, fmt.Errorf("gputest: bind group %q has %d entries, layout wants %d", desc.Label, len(desc.Entries), len(layout.Entries))
	}
	for _, e := range desc.Entries {
		if b, ok := e.Buffer.(*Buffer); ok && b.IsReleased() {
			return nil, fmt.Errorf("gputest: bind group %q references released buffer %q", desc.Label, b.label)
		}
	}
	d.counters.BindGroups++
	entries := append([]gpu.BindGroupEntry(nil), desc.Entries...)
	return &BindGroup{object: object{dev: d, ID: d.id()}, Label: desc.Label, Layout: layout, Entries: entries}, nil
}

func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateRenderPipeline"); err != nil {
		return nil, err
	}
	d.counters.RenderPipelines++
	return &RenderPipeline{object: object{dev: d, ID: d.id()}, Desc: *desc}, nil
}

func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateComputePipeline"); err != nil {
		return nil, err
	}
	d.counters.ComputePipelines++
	return &ComputePipeline{object: object{dev: d, ID: d.id()}, Desc: *desc}, nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateCommandEncoder"); err != nil {
		return nil, err
	}
	d.counters.Encoders++
	return &Encoder{dev: d, label: label}, nil
}

func (d *Device) Submit(cmds ...gpu.CommandBuffer) error {
	d.mu.Lock()
	if err := d.begin("Submit"); err != nil {
		d.mu.Unlock()
		return err
	}
	d.counters.Submits++
	var dispatches []Command
	var bound []map[uint32]*BindGroup
	for _, cb := range cmds {
		c := cb.(*CommandBuffer)
		groups := map[uint32]*BindGroup{}
		for _, cmd := range c.commands {
			d.commands = append(d.commands, cmd)
			switch cmd.Op {
			case OpBeginComputePass:
				groups = map[uint32]*BindGroup{}
			case OpSetBindGroup:
				groups[cmd.Index] = cmd.BindGroup
			case OpDispatch:
				snapshot := make(map[uint32]*BindGroup, len(groups))
				for k, v := range groups {
					snapshot[k] = v
				}
				dispatches = append(dispatches, cmd)
				bound = append(bound, snapshot)
			case OpCopyBuffer:
				copy(cmd.Dst.Data[cmd.DstOffset:], cmd.Buffer.Data[cmd.SrcOffset:cmd.SrcOffset+cmd.Size])
			}
		}
	}
	hook := d.OnDispatch
	d.mu.Unlock()
	if hook != nil {
		for i, cmd := range dispatches {
			hook(bound[i], cmd.Counts[0], cmd.Counts[1], cmd.Counts[2])
		}
	}
	return nil
}

func (d *Device) MapRead(buf gpu.Buffer, offset, size uint64, done func([]byte, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("MapRead"); err != nil {
		return err
	}
	b := buf.(*Buffer)
	if !b.usage.Has(gpu.BufferUsageMapRead) {
		return fmt.Errorf("gputest: buffer %q is not mappable", b.label)
	}
	if offset+size > uint64(len(b.Data)) {
		return fmt.Errorf("gputest: map range %d+%d exceeds buffer %q", offset, size, b.label)
	}
	d.pending = append(d.pending, pendingMap{buf: b, offset: offset, size: size, done: done})
	return nil
}

// Poll resolves every pending mapping. wait has no effect; the fake queue
// has always finished by the time Poll runs.
func (d *Device) Poll(wait bool) {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	lost := d.lost
	d.mu.Unlock()
	for _, p := range pending {
		if lost {
			p.done(nil, fmt.Errorf("gputest: map %q: %w", p.buf.label, gpu.ErrDeviceLost))
			continue
		}
		out := make([]byte, p.size)
		copy(out, p.buf.Data[p.offset:p.offset+p.size])
		p.done(out, nil)
	}
}

func (d *Device) AcquireFrame() (*gpu.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("AcquireFrame"); err != nil {
		return nil, err
	}
	d.counters.Acquires++
	view := &Texture{
		object: object{dev: d, ID: d.id()},
		label:  "surface",
		width:  d.width,
		height: d.height,
		format: d.format,
	}
	return &gpu.Frame{View: view, Width: d.width, Height: d.height, Format: d.format}, nil
}

func (d *Device) Present(frame *gpu.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("Present"); err != nil {
		return err
	}
	d.counters.Presents++
	return nil
}

func (d *Device) Resize(width, height uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("Resize"); err != nil {
		return err
	}
	d.width, d.height = width, height
	return nil
}

func (d *Device) Release() {}
