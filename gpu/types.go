package gpu

import "fmt"

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageCopySrc
	BufferUsageCopyDst
	BufferUsageMapRead
	BufferUsageIndirect
)

func (u BufferUsage) Has(flag BufferUsage) bool { return u&flag == flag }

type TextureUsage uint32

const (
	TextureUsageTextureBinding TextureUsage = 1 << iota
	TextureUsageStorageBinding
	TextureUsageRenderAttachment
	TextureUsageCopySrc
	TextureUsageCopyDst
)

type TextureFormat uint32

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatR8Unorm
	TextureFormatRGBA8Unorm
	TextureFormatRGBA8UnormSrgb
	TextureFormatBGRA8Unorm
	TextureFormatBGRA8UnormSrgb
	TextureFormatR32Float
	TextureFormatRGBA16Float
	TextureFormatRGBA32Float
	TextureFormatDepth24Plus
	TextureFormatDepth32Float
)

// BytesPerPixel returns the texel size of color formats and 0 for depth
// formats, which are never written from the CPU.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatR8Unorm:
		return 1
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSrgb, TextureFormatBGRA8Unorm, TextureFormatBGRA8UnormSrgb, TextureFormatR32Float:
		return 4
	case TextureFormatRGBA16Float:
		return 8
	case TextureFormatRGBA32Float:
		return 16
	}
	return 0
}

func (f TextureFormat) IsDepth() bool {
	return f == TextureFormatDepth24Plus || f == TextureFormatDepth32Float
}

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatUndefined:
		return "undefined"
	case TextureFormatR8Unorm:
		return "r8unorm"
	case TextureFormatRGBA8Unorm:
		return "rgba8unorm"
	case TextureFormatRGBA8UnormSrgb:
		return "rgba8unorm-srgb"
	case TextureFormatBGRA8Unorm:
		return "bgra8unorm"
	case TextureFormatBGRA8UnormSrgb:
		return "bgra8unorm-srgb"
	case TextureFormatR32Float:
		return "r32float"
	case TextureFormatRGBA16Float:
		return "rgba16float"
	case TextureFormatRGBA32Float:
		return "rgba32float"
	case TextureFormatDepth24Plus:
		return "depth24plus"
	case TextureFormatDepth32Float:
		return "depth32float"
	}
	return fmt.Sprintf("TextureFormat(%d)", uint32(f))
}

type VertexFormat uint32

const (
	VertexFormatFloat32 VertexFormat = iota
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
	VertexFormatUint32x2
	VertexFormatUint32x3
	VertexFormatUint32x4
	VertexFormatSint32
)

// Size is the byte size of one element.
func (f VertexFormat) Size() uint64 {
	switch f {
	case VertexFormatFloat32, VertexFormatUint32, VertexFormatSint32:
		return 4
	case VertexFormatFloat32x2, VertexFormatUint32x2:
		return 8
	case VertexFormatFloat32x3, VertexFormatUint32x3:
		return 12
	case VertexFormatFloat32x4, VertexFormatUint32x4:
		return 16
	}
	return 0
}

// Components is the number of scalar components in one element.
func (f VertexFormat) Components() int {
	return int(f.Size() / 4)
}

type VertexStepMode uint32

const (
	VertexStepModeVertex VertexStepMode = iota
	VertexStepModeInstance
)

type IndexFormat uint32

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

func (f IndexFormat) Size() uint64 {
	if f == IndexFormatUint32 {
		return 4
	}
	return 2
}

type PrimitiveTopology uint32

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyLineList
	PrimitiveTopologyLineStrip
	PrimitiveTopologyPointList
)

type CullMode uint32

const (
	CullModeBack CullMode = iota
	CullModeFront
	CullModeNone
)

type FrontFace uint32

const (
	FrontFaceCCW FrontFace = iota
	FrontFaceCW
)

type CompareFunction uint32

const (
	CompareFunctionLess CompareFunction = iota
	CompareFunctionLessEqual
	CompareFunctionEqual
	CompareFunctionGreater
	CompareFunctionGreaterEqual
	CompareFunctionNotEqual
	CompareFunctionAlways
	CompareFunctionNever
)

type BlendMode uint32

const (
	BlendModeOpaque BlendMode = iota
	BlendModeAlpha
	BlendModeAdditive
	BlendModePremultiplied
)

type FilterMode uint32

const (
	FilterModeLinear FilterMode = iota
	FilterModeNearest
)

type AddressMode uint32

const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeRepeat
	AddressModeMirrorRepeat
)

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute
)

type BindingType uint32

const (
	BindingTypeUniformBuffer BindingType = iota
	BindingTypeStorageBuffer
	BindingTypeReadOnlyStorageBuffer
	BindingTypeSampledTexture
	BindingTypeStorageTexture
	BindingTypeFilteringSampler
	BindingTypeNonFilteringSampler
)

func (t BindingType) String() string {
	switch t {
	case BindingTypeUniformBuffer:
		return "uniform"
	case BindingTypeStorageBuffer:
		return "storage"
	case BindingTypeReadOnlyStorageBuffer:
		return "read-only-storage"
	case BindingTypeSampledTexture:
		return "texture"
	case BindingTypeStorageTexture:
		return "storage-texture"
	case BindingTypeFilteringSampler:
		return "sampler"
	case BindingTypeNonFilteringSampler:
		return "sampler-non-filtering"
	}
	return fmt.Sprintf("BindingType(%d)", uint32(t))
}

// IsBuffer reports whether the binding takes a Buffer resource.
func (t BindingType) IsBuffer() bool {
	return t <= BindingTypeReadOnlyStorageBuffer
}

func (t BindingType) IsTexture() bool {
	return t == BindingTypeSampledTexture || t == BindingTypeStorageTexture
}

func (t BindingType) IsSampler() bool {
	return t == BindingTypeFilteringSampler || t == BindingTypeNonFilteringSampler
}

type LoadOp uint32

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

type Color struct {
	R, G, B, A float64
}

var textureFormatNames = map[string]TextureFormat{
	"undefined":       TextureFormatUndefined,
	"none":            TextureFormatUndefined,
	"r8unorm":         TextureFormatR8Unorm,
	"rgba8unorm":      TextureFormatRGBA8Unorm,
	"rgba8unorm-srgb": TextureFormatRGBA8UnormSrgb,
	"bgra8unorm":      TextureFormatBGRA8Unorm,
	"bgra8unorm-srgb": TextureFormatBGRA8UnormSrgb,
	"r32float":        TextureFormatR32Float,
	"rgba16float":     TextureFormatRGBA16Float,
	"rgba32float":     TextureFormatRGBA32Float,
	"depth24plus":     TextureFormatDepth24Plus,
	"depth32float":    TextureFormatDepth32Float,
}

func (f TextureFormat) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *TextureFormat) UnmarshalText(b []byte) error {
	v, ok := textureFormatNames[string(b)]
	if !ok {
		return fmt.Errorf("gpu: unknown texture format %q", string(b))
	}
	*f = v
	return nil
}
