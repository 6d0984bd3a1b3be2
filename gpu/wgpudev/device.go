// Package wgpudev implements gpu.Device on WebGPU through
// cogentcore/webgpu, presenting into a GLFW window.
package wgpudev

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/wgrender/gpu"
)

type Options struct {
	Label           string
	HighPerformance bool
	VSync           bool
	MaxBindGroups   uint32
}

// Device owns the WebGPU instance, adapter, device and the window surface.
type Device struct {
	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	config   wgpu.SurfaceConfiguration
	limits   gpu.Limits
	lost     atomic.Bool
	lostMsg  atomic.Pointer[string]
	maps     mapTracker
}

var _ gpu.Device = (*Device)(nil)

// New requests an adapter compatible with win and configures its surface.
// The calling goroutine is locked to its OS thread, as GLFW requires.
func New(win *glfw.Window, opts Options) (*Device, error) {
	runtime.LockOSThread()

	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win))

	power := wgpu.PowerPreferenceLowPower
	if opts.HighPerformance {
		power = wgpu.PowerPreferenceHighPerformance
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   power,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudev: request adapter: %w", err)
	}

	limits := wgpu.DefaultLimits()
	if opts.MaxBindGroups > limits.MaxBindGroups {
		limits.MaxBindGroups = opts.MaxBindGroups
	}
	label := opts.Label
	if label == "" {
		label = "Main Device"
	}
	d := &Device{
		instance: instance,
		surface:  surface,
		adapter:  adapter,
		limits: gpu.Limits{
			MinUniformBufferOffsetAlignment: limits.MinUniformBufferOffsetAlignment,
			MaxBindGroups:                   limits.MaxBindGroups,
		},
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          label,
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
		DeviceLostCallback: func(reason wgpu.DeviceLostReason, message string) {
			d.markLost(fmt.Sprintf("%s: %s", reason, message))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudev: request device: %w", err)
	}
	d.device = device
	d.queue = device.GetQueue()

	caps := surface.GetCapabilities(adapter)
	present := wgpu.PresentModeImmediate
	if opts.VSync {
		present = wgpu.PresentModeFifo
	}
	width, height := win.GetFramebufferSize()
	d.config = wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: present,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &d.config)
	return d, nil
}

// MarkLost flags the device as lost. Every later call fails with
// gpu.ErrDeviceLost and pending maps fail on the next Poll.
func (d *Device) MarkLost() { d.markLost("") }

func (d *Device) markLost(msg string) {
	if msg != "" {
		d.lostMsg.CompareAndSwap(nil, &msg)
	}
	d.lost.Store(true)
}

func (d *Device) check(op string) error {
	if !d.lost.Load() {
		return nil
	}
	if msg := d.lostMsg.Load(); msg != nil {
		return fmt.Errorf("wgpudev: %s: %w (%s)", op, gpu.ErrDeviceLost, *msg)
	}
	return fmt.Errorf("wgpudev: %s: %w", op, gpu.ErrDeviceLost)
}

func (d *Device) Limits() gpu.Limits { return d.limits }

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	if err := d.check("create buffer"); err != nil {
		return nil, err
	}
	b, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudev: create buffer %q: %w", desc.Label, err)
	}
	return &buffer{b: b, label: desc.Label, size: desc.Size, usage: desc.Usage}, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	if err := d.check("write buffer"); err != nil {
		return err
	}
	return d.queue.WriteBuffer(buf.(*buffer).b, offset, data)
}

func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.Texture, error) {
	if err := d.check("create texture"); err != nil {
		return nil, err
	}
	t, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          wgpu.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormat(desc.Format),
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudev: create texture %q: %w", desc.Label, err)
	}
	view, err := t.CreateView(nil)
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("wgpudev: create view %q: %w", desc.Label, err)
	}
	return &texture{t: t, view: view, label: desc.Label, width: desc.Width, height: desc.Height, format: desc.Format}, nil
}

func (d *Device) WriteTexture(tex gpu.Texture, data []byte) error {
	if err := d.check("write texture"); err != nil {
		return err
	}
	t := tex.(*texture)
	return d.queue.WriteTexture(
		t.t.AsImageCopy(),
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  t.width * uint32(t.format.BytesPerPixel()),
			RowsPerImage: t.height,
		},
		&wgpu.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)
}

func (d *Device) CreateSampler(desc *gpu.SamplerDescriptor) (gpu.Sampler, error) {
	if err := d.check("create sampler"); err != nil {
		return nil, err
	}
	aniso := desc.MaxAnisotropy
	if aniso == 0 {
		aniso = 1
	}
	s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  addressMode(desc.AddressModeU),
		AddressModeV:  addressMode(desc.AddressModeV),
		AddressModeW:  addressMode(desc.AddressModeW),
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  mipmapFilterMode(desc.MipmapFilter),
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: aniso,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudev: create sampler %q: %w", desc.Label, err)
	}
	return &sampler{s: s}, nil
}

func (d *Device) CreateBindGroupLayout(desc *gpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	if err := d.check("create bind group layout"); err != nil {
		return nil, err
	}
	entries := make([]wgpu.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = layoutEntry(e)
	}
	l, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudev: create bind group layout %q: %w", desc.Label, err)
	}
	return &bindGroupLayout{l: l}, nil
}

func (d *Device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	if err := d.check("create bind group"); err != nil {
		return nil, err
	}
	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			entry.Buffer = e.Buffer.(*buffer).b
			entry.Offset = e.Offset
			entry.Size = e.Size
			if entry.Size == 0 {
				entry.Size = wgpu.WholeSize
			}
		case e.Texture != nil:
			entry.TextureView = e.Texture.(*texture).view
		case e.Sampler != nil:
			entry.Sampler = e.Sampler.(*sampler).s
		}
		entries[i] = entry
	}
	g, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  desc.Layout.(*bindGroupLayout).l,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpudev: create bind group %q: %w", desc.Label, err)
	}
	return &bindGroup{g: g}, nil
}

func (d *Device) shaderModule(label, source string) (*wgpu.ShaderModule, error) {
	return d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
}

func (d *Device) pipelineLayout(label string, layouts []gpu.BindGroupLayout) (*wgpu.PipelineLayout, error) {
	bgls := make([]*wgpu.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		bgls[i] = l.(*bindGroupLayout).l
	}
	return d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: bgls,
	})
}

func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if err := d.check("create render pipeline"); err != nil {
		return nil, err
	}
	module, err := d.shaderModule(desc.Label, desc.Source)
	if err != nil {
		return nil, fmt.Errorf("wgpudev: shader module %q: %w", desc.Label, err)
	}
	defer module.Release()

	layout, err := d.pipelineLayout(desc.Label, desc.BindGroupLayouts)
	if err != nil {
		return nil, fmt.Errorf("wgpudev: pipeline layout %q: %w", desc.Label, err)
	}

	buffers := make([]wgpu.VertexBufferLayout, len(desc.Buffers))
	for i, b := range desc.Buffers {
		attrs := make([]wgpu.VertexAttribute, len(b.Attributes))
		for j, a := range b.Attributes {
			attrs[j] = wgpu.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			}
		}
		step := wgpu.VertexStepModeVertex
		if b.StepMode == gpu.VertexStepModeInstance {
			step = wgpu.VertexStepModeInstance
		}
		buffers[i] = wgpu.VertexBufferLayout{ArrayStride: b.ArrayStride, StepMode: step, Attributes: attrs}
	}

	var depth *wgpu.DepthStencilState
	if desc.DepthFormat != gpu.TextureFormatUndefined {
		depth = &wgpu.DepthStencilState{
			Format:            textureFormat(desc.DepthFormat),
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      compareFunction(desc.DepthCompare),
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}
	samples := desc.SampleCount
	if samples == 0 {
		samples = 1
	}

	p, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    textureFormat(desc.ColorFormat),
					Blend:     blendState(desc.Blend),
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(desc.Topology),
			FrontFace: frontFace(desc.FrontFace),
			CullMode:  cullMode(desc.CullMode),
		},
		DepthStencil: depth,
		Multisample: wgpu.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		layout.Release()
		return nil, fmt.Errorf("wgpudev: create render pipeline %q: %w", desc.Label, err)
	}
	return &renderPipeline{p: p, layout: layout}, nil
}

func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	if err := d.check("create compute pipeline"); err != nil {
		return nil, err
	}
	module, err := d.shaderModule(desc.Label, desc.Source)
	if err != nil {
		return nil, fmt.Errorf("wgpudev: shader module %q: %w", desc.Label, err)
	}
	defer module.Release()

	layout, err := d.pipelineLayout(desc.Label, desc.BindGroupLayouts)
	if err != nil {
		return nil, fmt.Errorf("wgpudev: pipeline layout %q: %w", desc.Label, err)
	}
	p, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		layout.Release()
		return nil, fmt.Errorf("wgpudev: create compute pipeline %q: %w", desc.Label, err)
	}
	return &computePipeline{p: p, layout: layout}, nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	if err := d.check("create command encoder"); err != nil {
		return nil, err
	}
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("wgpudev: create command encoder: %w", err)
	}
	return &encoder{enc: enc}, nil
}

func (d *Device) Submit(cmds ...gpu.CommandBuffer) error {
	if err := d.check("submit"); err != nil {
		return err
	}
	bufs := make([]*wgpu.CommandBuffer, len(cmds))
	for i, c := range cmds {
		bufs[i] = c.(*commandBuffer).cb
	}
	d.queue.Submit(bufs...)
	return nil
}

func (d *Device) MapRead(buf gpu.Buffer, offset, size uint64, done func([]byte, error)) error {
	if err := d.check("map buffer"); err != nil {
		return err
	}
	b := buf.(*buffer)
	p := d.maps.add(b.label, done)
	err := b.b.MapAsync(wgpu.MapModeRead, offset, size, func(status wgpu.BufferMapAsyncStatus) {
		if !d.maps.take(p) {
			return
		}
		switch status {
		case wgpu.BufferMapAsyncStatusSuccess:
			mapped := b.b.GetMappedRange(uint(offset), uint(size))
			out := make([]byte, len(mapped))
			copy(out, mapped)
			b.b.Unmap()
			done(out, nil)
		case wgpu.BufferMapAsyncStatusDeviceLost:
			d.MarkLost()
			done(nil, fmt.Errorf("wgpudev: map %q: %w", b.label, gpu.ErrDeviceLost))
		default:
			done(nil, fmt.Errorf("wgpudev: map %q failed with status %d", b.label, status))
		}
	})
	if err != nil {
		d.maps.take(p)
		return fmt.Errorf("wgpudev: map %q: %w", b.label, err)
	}
	return nil
}

// Poll runs queue callbacks. Once the device is lost the queue never
// completes, so pending maps fail with gpu.ErrDeviceLost instead.
func (d *Device) Poll(wait bool) {
	if !d.lost.Load() {
		d.device.Poll(wait, nil)
	}
	if d.lost.Load() {
		d.maps.failAll()
	}
}

func (d *Device) AcquireFrame() (*gpu.Frame, error) {
	if err := d.check("acquire frame"); err != nil {
		return nil, err
	}
	tex, err := d.surface.GetCurrentTexture()
	if err != nil {
		// Outdated or lost surfaces recover with a reconfigure.
		d.surface.Configure(d.adapter, d.device, &d.config)
		if tex, err = d.surface.GetCurrentTexture(); err != nil {
			return nil, fmt.Errorf("wgpudev: acquire surface texture: %w", err)
		}
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("wgpudev: surface view: %w", err)
	}
	format := fromTextureFormat(d.config.Format)
	return &gpu.Frame{
		View:   &texture{view: view, label: "surface", width: d.config.Width, height: d.config.Height, format: format},
		Width:  d.config.Width,
		Height: d.config.Height,
		Format: format,
	}, nil
}

func (d *Device) Present(frame *gpu.Frame) error {
	if err := d.check("present"); err != nil {
		return err
	}
	d.surface.Present()
	frame.View.Release()
	return nil
}

func (d *Device) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return errors.New("wgpudev: resize to zero extent")
	}
	d.config.Width, d.config.Height = width, height
	d.surface.Configure(d.adapter, d.device, &d.config)
	return nil
}

func (d *Device) Release() {
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.surface.Release()
	d.instance.Release()
}
