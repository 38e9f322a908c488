package driver

// Enum values match their Vulkan counterparts so the backend converts them
// with a plain cast.

type Format uint32

const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
	FormatD32Sfloat          Format = 126
	FormatD24UnormS8Uint     Format = 129
	FormatD32SfloatS8Uint    Format = 130
)

// BytesPerPixel returns the texel size of color and depth formats, 0 if unknown.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb, FormatB8G8R8A8Unorm, FormatB8G8R8A8Srgb,
		FormatD32Sfloat, FormatD24UnormS8Uint:
		return 4
	case FormatD32SfloatS8Uint, FormatR32G32Sfloat:
		return 8
	case FormatR32G32B32Sfloat:
		return 12
	case FormatR32G32B32A32Sfloat:
		return 16
	}
	return 0
}

func (f Format) HasStencil() bool {
	return f == FormatD24UnormS8Uint || f == FormatD32SfloatS8Uint
}

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc BufferUsageFlags = 0x00000001
	BufferUsageTransferDst BufferUsageFlags = 0x00000002
	BufferUsageUniform     BufferUsageFlags = 0x00000010
	BufferUsageStorage     BufferUsageFlags = 0x00000020
	BufferUsageIndex       BufferUsageFlags = 0x00000040
	BufferUsageVertex      BufferUsageFlags = 0x00000080
)

type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc            ImageUsageFlags = 0x00000001
	ImageUsageTransferDst            ImageUsageFlags = 0x00000002
	ImageUsageSampled                ImageUsageFlags = 0x00000004
	ImageUsageColorAttachment        ImageUsageFlags = 0x00000010
	ImageUsageDepthStencilAttachment ImageUsageFlags = 0x00000020
)

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal  MemoryPropertyFlags = 0x00000001
	MemoryPropertyHostVisible  MemoryPropertyFlags = 0x00000002
	MemoryPropertyHostCoherent MemoryPropertyFlags = 0x00000004
	MemoryPropertyHostCached   MemoryPropertyFlags = 0x00000008
)

type ImageLayout uint32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

type AccessFlags uint32

const (
	AccessShaderRead                  AccessFlags = 0x00000020
	AccessColorAttachmentWrite        AccessFlags = 0x00000100
	AccessDepthStencilAttachmentWrite AccessFlags = 0x00000400
	AccessTransferRead                AccessFlags = 0x00000800
	AccessTransferWrite               AccessFlags = 0x00001000
	AccessHostRead                    AccessFlags = 0x00002000
	AccessHostWrite                   AccessFlags = 0x00004000
)

type PipelineStageFlags uint32

const (
	PipelineStageTopOfPipe             PipelineStageFlags = 0x00000001
	PipelineStageVertexInput           PipelineStageFlags = 0x00000004
	PipelineStageVertexShader          PipelineStageFlags = 0x00000008
	PipelineStageFragmentShader        PipelineStageFlags = 0x00000080
	PipelineStageEarlyFragmentTests    PipelineStageFlags = 0x00000100
	PipelineStageColorAttachmentOutput PipelineStageFlags = 0x00000400
	PipelineStageTransfer              PipelineStageFlags = 0x00001000
	PipelineStageBottomOfPipe          PipelineStageFlags = 0x00002000
	PipelineStageHost                  PipelineStageFlags = 0x00004000
)

type ImageAspectFlags uint32

const (
	ImageAspectColor   ImageAspectFlags = 0x00000001
	ImageAspectDepth   ImageAspectFlags = 0x00000002
	ImageAspectStencil ImageAspectFlags = 0x00000004
)

type ShaderStageFlags uint32

const (
	ShaderStageVertex   ShaderStageFlags = 0x00000001
	ShaderStageFragment ShaderStageFlags = 0x00000010
)

type PrimitiveTopology uint32

const (
	TopologyPointList     PrimitiveTopology = 0
	TopologyLineList      PrimitiveTopology = 1
	TopologyLineStrip     PrimitiveTopology = 2
	TopologyTriangleList  PrimitiveTopology = 3
	TopologyTriangleStrip PrimitiveTopology = 4
)

type PolygonMode uint32

const (
	PolygonModeFill  PolygonMode = 0
	PolygonModeLine  PolygonMode = 1
	PolygonModePoint PolygonMode = 2
)

type CullMode uint32

const (
	CullModeNone  CullMode = 0
	CullModeFront CullMode = 1
	CullModeBack  CullMode = 2
)

type FrontFace uint32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

type CompareOp uint32

const (
	CompareOpNever          CompareOp = 0
	CompareOpLess           CompareOp = 1
	CompareOpEqual          CompareOp = 2
	CompareOpLessOrEqual    CompareOp = 3
	CompareOpGreater        CompareOp = 4
	CompareOpNotEqual       CompareOp = 5
	CompareOpGreaterOrEqual CompareOp = 6
	CompareOpAlways         CompareOp = 7
)

type BlendFactor uint32

const (
	BlendFactorZero             BlendFactor = 0
	BlendFactorOne              BlendFactor = 1
	BlendFactorSrcAlpha         BlendFactor = 6
	BlendFactorOneMinusSrcAlpha BlendFactor = 7
)

type BlendOp uint32

const BlendOpAdd BlendOp = 0

type ColorComponentFlags uint32

const (
	ColorComponentR    ColorComponentFlags = 0x1
	ColorComponentG    ColorComponentFlags = 0x2
	ColorComponentB    ColorComponentFlags = 0x4
	ColorComponentA    ColorComponentFlags = 0x8
	ColorComponentRGBA                     = ColorComponentR | ColorComponentG | ColorComponentB | ColorComponentA
)

type SampleCount uint32

const SampleCount1 SampleCount = 0x1

type DescriptorType uint32

const (
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeUniformBufferDynamic DescriptorType = 8
)

type Filter uint32

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

type SamplerAddressMode uint32

const (
	SamplerAddressModeRepeat      SamplerAddressMode = 0
	SamplerAddressModeClampToEdge SamplerAddressMode = 2
)

type IndexType uint32

const (
	IndexTypeUint16 IndexType = 0
	IndexTypeUint32 IndexType = 1
)

type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     uint32
}

type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

type Limits struct {
	MinUniformBufferOffsetAlignment uint64
	MaxUniformBufferRange           uint32
	MaxSamplerAnisotropy            float32
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

type ImageDesc struct {
	Width  uint32
	Height uint32
	Format Format
	Usage  ImageUsageFlags
}

type ImageViewDesc struct {
	Image  Handle
	Format Format
	Aspect ImageAspectFlags
}

type SamplerDesc struct {
	MagFilter   Filter
	MinFilter   Filter
	AddressMode SamplerAddressMode
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStageFlags
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorWrite updates one binding. Buffer writes use Buffer/Offset/Range,
// image writes use ImageView/Sampler/ImageLayout.
type DescriptorWrite struct {
	Binding     uint32
	Type        DescriptorType
	Buffer      Handle
	Offset      uint64
	Range       uint64
	ImageView   Handle
	Sampler     Handle
	ImageLayout ImageLayout
}

type PushConstantRange struct {
	Stages ShaderStageFlags
	Offset uint32
	Size   uint32
}

type VertexBinding struct {
	Binding uint32
	Stride  uint32
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

type ShaderStage struct {
	Stage  ShaderStageFlags
	Module Handle
	Entry  string
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Rect2D struct {
	X, Y          int32
	Width, Height uint32
}

type RasterizationState struct {
	PolygonMode PolygonMode
	CullMode    CullMode
	FrontFace   FrontFace
	LineWidth   float32
}

type ColorBlendAttachment struct {
	BlendEnable bool
	SrcColor    BlendFactor
	DstColor    BlendFactor
	ColorOp     BlendOp
	SrcAlpha    BlendFactor
	DstAlpha    BlendFactor
	AlphaOp     BlendOp
	WriteMask   ColorComponentFlags
}

type DepthStencilState struct {
	DepthTest  bool
	DepthWrite bool
	CompareOp  CompareOp
}

// GraphicsPipelineDesc is a fully resolved pipeline with one vertex binding and
// no dynamic state.
type GraphicsPipelineDesc struct {
	Stages           []ShaderStage
	VertexBinding    VertexBinding
	VertexAttributes []VertexAttribute
	Topology         PrimitiveTopology
	Viewport         Viewport
	Scissor          Rect2D
	Rasterization    RasterizationState
	Samples          SampleCount
	ColorBlend       ColorBlendAttachment
	DepthStencil     DepthStencilState
	Layout           Handle
	RenderPass       Handle
}

// RenderTarget describes the render pass pipelines are built against.
type RenderTarget struct {
	RenderPass  Handle
	ColorFormat Format
	DepthFormat Format
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
	IsDepth bool
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepth(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil, IsDepth: true}
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// BufferImageCopy copies a tightly packed region covering the whole image.
type BufferImageCopy struct {
	BufferOffset uint64
	Width        uint32
	Height       uint32
	Aspect       ImageAspectFlags
}

type ImageBarrier struct {
	Image     Handle
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess AccessFlags
	DstAccess AccessFlags
	SrcStage  PipelineStageFlags
	DstStage  PipelineStageFlags
	Aspect    ImageAspectFlags
}
