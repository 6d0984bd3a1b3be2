// Package gpu is the backend-neutral device surface the renderer records
// against. Backends live in subpackages: wgpudev drives WebGPU through
// cogentcore/webgpu, gputest records every call in memory.
package gpu

import "errors"

// ErrDeviceLost is wrapped by backend errors once the underlying device is
// gone. Nothing created on that device may be used again.
var ErrDeviceLost = errors.New("gpu: device lost")

type Releasable interface {
	Release()
}

type Buffer interface {
	Releasable
	Label() string
	Size() uint64
	Usage() BufferUsage
}

// Texture is a GPU texture together with its default view.
type Texture interface {
	Releasable
	Label() string
	Width() uint32
	Height() uint32
	Format() TextureFormat
}

type Sampler interface{ Releasable }

type BindGroupLayout interface{ Releasable }

type BindGroup interface{ Releasable }

type RenderPipeline interface{ Releasable }

type ComputePipeline interface{ Releasable }

type CommandBuffer interface{ Releasable }

type Limits struct {
	MinUniformBufferOffsetAlignment uint32
	MaxBindGroups                   uint32
}

func DefaultLimits() Limits {
	return Limits{
		MinUniformBufferOffsetAlignment: 256,
		MaxBindGroups:                   4,
	}
}

type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format TextureFormat
	Usage  TextureUsage
}

type SamplerDescriptor struct {
	Label         string
	AddressModeU  AddressMode
	AddressModeV  AddressMode
	AddressModeW  AddressMode
	MagFilter     FilterMode
	MinFilter     FilterMode
	MipmapFilter  FilterMode
	MaxAnisotropy uint16
}

type BindGroupLayoutEntry struct {
	Binding          uint32
	Visibility       ShaderStage
	Type             BindingType
	HasDynamicOffset bool
	MinBindingSize   uint64
	// StorageFormat is only read for BindingTypeStorageTexture.
	StorageFormat TextureFormat
}

type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	Offset  uint64
	// Size of the buffer range; 0 binds the whole buffer.
	Size    uint64
	Texture Texture
	Sampler Sampler
}

type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

type VertexAttribute struct {
	Format         VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

type VertexBufferLayout struct {
	ArrayStride uint64
	StepMode    VertexStepMode
	Attributes  []VertexAttribute
}

type RenderPipelineDescriptor struct {
	Label            string
	Source           string
	VertexEntry      string
	FragmentEntry    string
	Buffers          []VertexBufferLayout
	BindGroupLayouts []BindGroupLayout
	ColorFormat      TextureFormat
	// DepthFormat is TextureFormatUndefined for pipelines without depth.
	DepthFormat  TextureFormat
	SampleCount  uint32
	Topology     PrimitiveTopology
	CullMode     CullMode
	FrontFace    FrontFace
	Blend        BlendMode
	DepthWrite   bool
	DepthCompare CompareFunction
}

type ComputePipelineDescriptor struct {
	Label            string
	Source           string
	EntryPoint       string
	BindGroupLayouts []BindGroupLayout
}

type ColorAttachment struct {
	View       Texture
	LoadOp     LoadOp
	ClearValue Color
}

type DepthAttachment struct {
	View       Texture
	LoadOp     LoadOp
	ClearValue float32
}

type RenderPassDescriptor struct {
	Label string
	Color ColorAttachment
	Depth *DepthAttachment
}

// Frame is an acquired presentation target. It must be handed back with
// Device.Present exactly once.
type Frame struct {
	View   Texture
	Width  uint32
	Height uint32
	Format TextureFormat
}

type RenderPass interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buf Buffer)
	SetIndexBuffer(buf Buffer, format IndexFormat)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End() error
}

type ComputePass interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	DispatchWorkgroups(x, y, z uint32)
	End() error
}

type CommandEncoder interface {
	BeginRenderPass(desc *RenderPassDescriptor) RenderPass
	BeginComputePass(label string) ComputePass
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) error
	Finish() (CommandBuffer, error)
	Release()
}

// Device creates GPU objects and submits recorded work. Recording is
// synchronous; execution is not. MapRead only enqueues the mapping, the
// callback fires from a later Poll.
type Device interface {
	Limits() Limits

	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	CreateTexture(desc *TextureDescriptor) (Texture, error)
	WriteTexture(tex Texture, data []byte) error
	CreateSampler(desc *SamplerDescriptor) (Sampler, error)

	CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)

	CreateCommandEncoder(label string) (CommandEncoder, error)
	Submit(cmds ...CommandBuffer) error
	MapRead(buf Buffer, offset, size uint64, done func(data []byte, err error)) error
	Poll(wait bool)

	AcquireFrame() (*Frame, error)
	Present(frame *Frame) error
	Resize(width, height uint32) error

	Release()
}
