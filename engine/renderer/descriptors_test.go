package renderer

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

func newTestDescriptors(t *testing.T, env *testEnv, frames int, maxObjects uint32) (*FrameController, *FrameDescriptors, *metadata.Texture) {
	t.Helper()
	fc, err := NewFrameController(env.dev, env.swapchain, env.teardown, FrameConfig{FramesInFlight: frames})
	if err != nil {
		t.Fatalf("NewFrameController() = %v", err)
	}
	sampler, _ := env.dev.CreateSampler(driver.SamplerDesc{})
	img, err := NewUploader(env.dev, env.allocator).UploadImage([]byte{255, 255, 255, 255}, 1, 1, driver.FormatR8G8B8A8Srgb, "white")
	if err != nil {
		t.Fatalf("UploadImage() = %v", err)
	}
	texture := &metadata.Texture{Name: "white", Width: 1, Height: 1, Image: img, Sampler: sampler}
	fd, err := NewFrameDescriptors(env.dev, env.allocator, env.teardown, fc.Slots(), maxObjects, texture)
	if err != nil {
		t.Fatalf("NewFrameDescriptors() = %v", err)
	}
	return fc, fd, texture
}

func TestFrameDescriptorsLayout(t *testing.T) {
	tests := []struct {
		align            uint64
		wantFrameStride  uint64
		wantObjectStride uint64
	}{
		{256, 256, 256},
		{64, 256, 128},
		{0, frameDataSize, objectDataSize},
	}
	for _, tt := range tests {
		env := newTestEnv(t)
		env.dev.SetLimits(driver.Limits{MinUniformBufferOffsetAlignment: tt.align})
		fc, fd, texture := newTestDescriptors(t, env, 2, 8)

		if fd.frameStride != tt.wantFrameStride || fd.ObjectStride() != tt.wantObjectStride {
			t.Errorf("align %d: strides = %d/%d, want %d/%d", tt.align, fd.frameStride, fd.ObjectStride(), tt.wantFrameStride, tt.wantObjectStride)
		}
		for _, slot := range fc.Slots() {
			if slot.Uniforms == nil || slot.Uniforms.Mapped == nil {
				t.Fatalf("slot %d has no mapped uniform buffer", slot.Index)
			}
			if want := tt.wantFrameStride + 8*tt.wantObjectStride; slot.Uniforms.Size != want {
				t.Errorf("slot %d uniform size = %d, want %d", slot.Index, slot.Uniforms.Size, want)
			}
			writes := env.dev.DescriptorWrites(slot.DescriptorSet)
			if w := writes[bindingFrame]; w.Buffer != slot.Uniforms.Buffer || w.Offset != 0 || w.Range != frameDataSize {
				t.Errorf("binding 0 = %+v", w)
			}
			if w := writes[bindingObjects]; w.Type != driver.DescriptorTypeUniformBufferDynamic || w.Offset != tt.wantFrameStride || w.Range != objectDataSize {
				t.Errorf("binding 1 = %+v", w)
			}
			if w := writes[bindingTexture]; w.ImageView != texture.Image.View || w.Sampler != texture.Sampler {
				t.Errorf("binding 2 = %+v", w)
			}
		}
		if fc.Slots()[0].Uniforms.Buffer == fc.Slots()[1].Uniforms.Buffer {
			t.Error("frame slots share a uniform buffer")
		}
	}
}

func TestFrameDescriptorsWriteObject(t *testing.T) {
	env := newTestEnv(t)
	fc, fd, _ := newTestDescriptors(t, env, 2, 4)
	slot := fc.Slots()[1]

	data := ObjectData{MVP: mgl32.Translate3D(1, 2, 3), Model: mgl32.Scale3D(2, 2, 2)}
	offset, err := fd.WriteObject(slot, 3, data)
	if err != nil {
		t.Fatalf("WriteObject() = %v", err)
	}
	if want := uint32(3 * fd.ObjectStride()); offset != want {
		t.Errorf("WriteObject() offset = %d, want %d", offset, want)
	}
	want := make([]byte, objectDataSize)
	write(want, 0, &data)
	start := fd.frameStride + uint64(offset)
	if got := slot.Uniforms.Mapped[start : start+objectDataSize]; !bytes.Equal(got, want) {
		t.Error("object record not found at its dynamic offset")
	}
	// The other slot is untouched.
	if other := fc.Slots()[0].Uniforms.Mapped[start : start+objectDataSize]; bytes.Equal(other, want) {
		t.Error("object record leaked into another frame's buffer")
	}

	if _, err := fd.WriteObject(slot, 4, data); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("WriteObject(4) = %v, want %v", err, core.ErrInvalidArgument)
	}
}

func TestFrameDescriptorsWriteFrame(t *testing.T) {
	env := newTestEnv(t)
	fc, fd, _ := newTestDescriptors(t, env, 1, 1)
	slot := fc.Slots()[0]
	data := FrameData{View: mgl32.Ident4(), Projection: mgl32.Ident4(), ViewProjection: mgl32.Ident4(), Time: [4]float32{1.5}}
	fd.WriteFrame(slot, data)

	want := make([]byte, frameDataSize)
	write(want, 0, &data)
	if !bytes.Equal(slot.Uniforms.Mapped[:frameDataSize], want) {
		t.Error("frame data not at the start of the uniform buffer")
	}
}

func TestFrameDescriptorsBindTexture(t *testing.T) {
	env := newTestEnv(t)
	fc, fd, white := newTestDescriptors(t, env, 3, 1)
	img, err := NewUploader(env.dev, env.allocator).UploadImage(make([]byte, 16), 2, 2, driver.FormatR8G8B8A8Srgb, "black")
	if err != nil {
		t.Fatalf("UploadImage() = %v", err)
	}
	black := &metadata.Texture{Name: "black", Width: 2, Height: 2, Image: img, Sampler: white.Sampler}
	if err := fd.BindTexture(black); err != nil {
		t.Fatalf("BindTexture() = %v", err)
	}
	for _, slot := range fc.Slots() {
		if w := env.dev.DescriptorWrites(slot.DescriptorSet)[bindingTexture]; w.ImageView != img.View {
			t.Errorf("slot %d samples view %d, want %d", slot.Index, w.ImageView, img.View)
		}
	}
	if err := fd.BindTexture(nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("BindTexture(nil) = %v, want %v", err, core.ErrInvalidArgument)
	}
}

func TestFrameDescriptorsPoolHoldsOneSetPerFrame(t *testing.T) {
	env := newTestEnv(t)
	_, fd, _ := newTestDescriptors(t, env, 2, 1)
	if _, err := env.dev.AllocateDescriptorSet(fd.pool, fd.Layout()); err == nil {
		t.Error("AllocateDescriptorSet() beyond the frame count succeeded")
	}
}
