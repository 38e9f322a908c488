package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

func validBuilder(t *testing.T, env *testEnv) *PipelineBuilder {
	t.Helper()
	vert, frag, layout := stubShaders(t, env.dev)
	b := NewPipelineBuilder(env.swapchain.Extent())
	b.ShaderStages = []driver.ShaderStage{
		{Stage: driver.ShaderStageVertex, Module: vert, Entry: "main"},
		{Stage: driver.ShaderStageFragment, Module: frag, Entry: "main"},
	}
	b.PipelineLayout = layout
	return b
}

func TestPipelineBuilderBuild(t *testing.T) {
	env := newTestEnv(t)
	b := validBuilder(t, env)
	pipeline, err := b.Build(env.dev, env.swapchain.RenderTarget())
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	desc := env.dev.Pipeline(pipeline)
	if desc == nil {
		t.Fatalf("Pipeline(%d) = nil", pipeline)
	}
	if desc.Viewport.Width != 800 || desc.Viewport.Height != 600 {
		t.Errorf("viewport = %vx%v, want 800x600", desc.Viewport.Width, desc.Viewport.Height)
	}
	if desc.Scissor.Width != 800 || desc.Scissor.Height != 600 {
		t.Errorf("scissor = %dx%d, want 800x600", desc.Scissor.Width, desc.Scissor.Height)
	}
	if desc.Topology != driver.TopologyTriangleList {
		t.Errorf("topology = %d, want triangle list", desc.Topology)
	}
	if desc.VertexBinding.Stride != metadata.VertexSize {
		t.Errorf("stride = %d, want %d", desc.VertexBinding.Stride, metadata.VertexSize)
	}
	if !desc.DepthStencil.DepthTest || desc.DepthStencil.CompareOp != driver.CompareOpLessOrEqual {
		t.Errorf("depth state = %+v", desc.DepthStencil)
	}
	if desc.RenderPass != env.swapchain.RenderTarget().RenderPass {
		t.Errorf("render pass = %d, want %d", desc.RenderPass, env.swapchain.RenderTarget().RenderPass)
	}
}

func TestPipelineBuilderValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *PipelineBuilder, target *driver.RenderTarget)
	}{
		{"no stages", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.ShaderStages = nil }},
		{"missing module", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.ShaderStages[1].Module = driver.NullHandle }},
		{"missing entry", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.ShaderStages[0].Entry = "" }},
		{"duplicate stage", func(b *PipelineBuilder, _ *driver.RenderTarget) {
			b.ShaderStages[1].Stage = driver.ShaderStageVertex
		}},
		{"no vertex stage", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.ShaderStages = b.ShaderStages[1:] }},
		{"no layout", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.PipelineLayout = driver.NullHandle }},
		{"no render pass", func(_ *PipelineBuilder, target *driver.RenderTarget) { target.RenderPass = driver.NullHandle }},
		{"zero stride", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.VertexInput.Binding.Stride = 0 }},
		{"no attributes", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.VertexInput.Attributes = nil }},
		{"attribute on other binding", func(b *PipelineBuilder, _ *driver.RenderTarget) {
			b.VertexInput.Attributes[0].Binding = 1
		}},
		{"duplicate location", func(b *PipelineBuilder, _ *driver.RenderTarget) {
			b.VertexInput.Attributes[1].Location = b.VertexInput.Attributes[0].Location
		}},
		{"attribute overruns stride", func(b *PipelineBuilder, _ *driver.RenderTarget) {
			b.VertexInput.Attributes[3].Offset = metadata.VertexSize - 4
		}},
		{"bad topology", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.Topology = 42 }},
		{"empty viewport", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.Viewport.Width = 0 }},
		{"inverted depth range", func(b *PipelineBuilder, _ *driver.RenderTarget) {
			b.Viewport.MinDepth, b.Viewport.MaxDepth = 1, 0
		}},
		{"empty scissor", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.Scissor.Height = 0 }},
		{"wide lines", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.Rasterizer.LineWidth = 2 }},
		{"multisampled", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.Multisampling = 4 }},
		{"depth without attachment", func(_ *PipelineBuilder, target *driver.RenderTarget) {
			target.DepthFormat = driver.FormatUndefined
		}},
		{"no color writes", func(b *PipelineBuilder, _ *driver.RenderTarget) { b.ColorBlendAttachment.WriteMask = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			b := validBuilder(t, env)
			target := env.swapchain.RenderTarget()
			tt.mutate(b, &target)

			if err := b.Validate(target); !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("Validate() = %v, want %v", err, core.ErrInvalidArgument)
			}
			pipeline, err := b.Build(env.dev, target)
			if err == nil || pipeline != driver.NullHandle {
				t.Errorf("Build() = %d, %v, want null handle and an error", pipeline, err)
			}
			if n := env.dev.Calls("CreateGraphicsPipeline"); n != 0 {
				t.Errorf("CreateGraphicsPipeline calls = %d, want 0", n)
			}
		})
	}
}

func TestPipelineBuilderDepthDisabledNeedsNoAttachment(t *testing.T) {
	env := newTestEnv(t)
	b := validBuilder(t, env)
	b.DepthStencil = driver.DepthStencilState{CompareOp: driver.CompareOpAlways}
	target := env.swapchain.RenderTarget()
	target.DepthFormat = driver.FormatUndefined
	if err := b.Validate(target); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestPipelineBuilderDriverFailure(t *testing.T) {
	env := newTestEnv(t)
	b := validBuilder(t, env)
	env.dev.Destroy(driver.ResourceShaderModule, b.ShaderStages[0].Module)

	pipeline, err := b.Build(env.dev, env.swapchain.RenderTarget())
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Build() error = %v, want %v", err, core.ErrNotFound)
	}
	if pipeline != driver.NullHandle {
		t.Errorf("Build() = %d, want null handle", pipeline)
	}
}
