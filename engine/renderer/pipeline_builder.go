package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// PipelineBuilder holds every piece of fixed-function state for one graphics
// pipeline. Fields are set directly; Build validates them as a whole.
type PipelineBuilder struct {
	ShaderStages         []driver.ShaderStage
	VertexInput          metadata.VertexInputDescription
	Topology             driver.PrimitiveTopology
	Viewport             driver.Viewport
	Scissor              driver.Rect2D
	Rasterizer           driver.RasterizationState
	Multisampling        driver.SampleCount
	ColorBlendAttachment driver.ColorBlendAttachment
	DepthStencil         driver.DepthStencilState
	PipelineLayout       driver.Handle
}

// NewPipelineBuilder returns opaque, depth tested triangle list state covering
// extent, fed by the standard Vertex layout.
func NewPipelineBuilder(extent driver.Extent2D) *PipelineBuilder {
	b := &PipelineBuilder{
		VertexInput: metadata.VertexDescription(),
		Topology:    driver.TopologyTriangleList,
		Rasterizer: driver.RasterizationState{
			PolygonMode: driver.PolygonModeFill,
			CullMode:    driver.CullModeNone,
			FrontFace:   driver.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		Multisampling: driver.SampleCount1,
		ColorBlendAttachment: driver.ColorBlendAttachment{
			BlendEnable: false,
			WriteMask:   driver.ColorComponentRGBA,
		},
		DepthStencil: driver.DepthStencilState{
			DepthTest:  true,
			DepthWrite: true,
			CompareOp:  driver.CompareOpLessOrEqual,
		},
	}
	b.SetExtent(extent)
	return b
}

// SetExtent points viewport and scissor at the whole of extent.
func (b *PipelineBuilder) SetExtent(extent driver.Extent2D) {
	b.Viewport = driver.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	b.Scissor = driver.Rect2D{Width: extent.Width, Height: extent.Height}
}

// Validate reports the first inconsistency that would make pipeline creation
// fail or render nothing against target.
func (b *PipelineBuilder) Validate(target driver.RenderTarget) error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Wrapf(core.ErrInvalidArgument, "pipeline: "+format, args...)
	}

	if len(b.ShaderStages) == 0 {
		return invalid("no shader stages")
	}
	var hasVertex bool
	seen := driver.ShaderStageFlags(0)
	for i, s := range b.ShaderStages {
		if s.Module == driver.NullHandle {
			return invalid("stage %d has no shader module", i)
		}
		if s.Entry == "" {
			return invalid("stage %d has no entry point", i)
		}
		if seen&s.Stage != 0 {
			return invalid("stage %d duplicates stage %#x", i, s.Stage)
		}
		seen |= s.Stage
		hasVertex = hasVertex || s.Stage == driver.ShaderStageVertex
	}
	if !hasVertex {
		return invalid("no vertex stage")
	}
	if b.PipelineLayout == driver.NullHandle {
		return invalid("no pipeline layout")
	}
	if target.RenderPass == driver.NullHandle {
		return invalid("no render pass")
	}

	if b.VertexInput.Binding.Stride == 0 {
		return invalid("vertex binding has zero stride")
	}
	if len(b.VertexInput.Attributes) == 0 {
		return invalid("no vertex attributes")
	}
	locations := make(map[uint32]bool, len(b.VertexInput.Attributes))
	for _, a := range b.VertexInput.Attributes {
		if a.Binding != b.VertexInput.Binding.Binding {
			return invalid("attribute %d uses binding %d, only %d exists", a.Location, a.Binding, b.VertexInput.Binding.Binding)
		}
		if locations[a.Location] {
			return invalid("attribute location %d used twice", a.Location)
		}
		locations[a.Location] = true
		if a.Offset+a.Format.BytesPerPixel() > b.VertexInput.Binding.Stride {
			return invalid("attribute %d overruns the %d byte stride", a.Location, b.VertexInput.Binding.Stride)
		}
	}

	if b.Topology > driver.TopologyTriangleStrip {
		return invalid("unsupported topology %d", b.Topology)
	}
	if b.Viewport.Width <= 0 || b.Viewport.Height <= 0 {
		return invalid("empty viewport %vx%v", b.Viewport.Width, b.Viewport.Height)
	}
	if b.Viewport.MinDepth < 0 || b.Viewport.MaxDepth > 1 || b.Viewport.MinDepth > b.Viewport.MaxDepth {
		return invalid("depth range [%v, %v]", b.Viewport.MinDepth, b.Viewport.MaxDepth)
	}
	if b.Scissor.Width == 0 || b.Scissor.Height == 0 {
		return invalid("empty scissor")
	}
	if b.Rasterizer.LineWidth != 1.0 {
		return invalid("line width %v, wide lines are not enabled", b.Rasterizer.LineWidth)
	}
	if b.Multisampling != driver.SampleCount1 {
		return invalid("render pass is single sampled, got %d samples", b.Multisampling)
	}
	if (b.DepthStencil.DepthTest || b.DepthStencil.DepthWrite) && target.DepthFormat == driver.FormatUndefined {
		return invalid("depth testing without a depth attachment")
	}
	if b.ColorBlendAttachment.WriteMask == 0 {
		return invalid("color write mask is empty")
	}
	return nil
}

// Build creates the pipeline. On failure it returns driver.NullHandle and the
// reason; nothing is created.
func (b *PipelineBuilder) Build(device driver.Device, target driver.RenderTarget) (driver.Handle, error) {
	if err := b.Validate(target); err != nil {
		return driver.NullHandle, err
	}
	desc := &driver.GraphicsPipelineDesc{
		Stages:           b.ShaderStages,
		VertexBinding:    b.VertexInput.Binding,
		VertexAttributes: b.VertexInput.Attributes,
		Topology:         b.Topology,
		Viewport:         b.Viewport,
		Scissor:          b.Scissor,
		Rasterization:    b.Rasterizer,
		Samples:          b.Multisampling,
		ColorBlend:       b.ColorBlendAttachment,
		DepthStencil:     b.DepthStencil,
		Layout:           b.PipelineLayout,
		RenderPass:       target.RenderPass,
	}
	pipeline, err := device.CreateGraphicsPipeline(desc)
	if err != nil {
		core.LogError("failed to create pipeline: %v", err)
		return driver.NullHandle, errors.Wrap(err, "creating graphics pipeline")
	}
	return pipeline, nil
}
