package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// Uploader moves CPU data into device local memory through a staging buffer
// and a one-shot command buffer. Every call blocks until the copy finished.
type Uploader struct {
	device    driver.Device
	allocator *Allocator
}

func NewUploader(device driver.Device, allocator *Allocator) *Uploader {
	return &Uploader{device: device, allocator: allocator}
}

// immediateSubmit records into a fresh command buffer, submits it and waits
// for the queue to drain before freeing it.
func (u *Uploader) immediateSubmit(record func(cb driver.CommandBuffer)) error {
	cb, err := u.device.AllocateCommandBuffer()
	if err != nil {
		return errors.Wrap(err, "allocating upload command buffer")
	}
	defer u.device.FreeCommandBuffer(cb)

	if err := cb.Begin(true); err != nil {
		return errors.Wrap(err, "beginning upload command buffer")
	}
	record(cb)
	if err := cb.End(); err != nil {
		return errors.Wrap(err, "ending upload command buffer")
	}
	if err := u.device.Submit(cb, driver.NullHandle, driver.NullHandle, driver.NullHandle); err != nil {
		return errors.Wrap(err, "submitting upload")
	}
	return u.device.QueueWaitIdle()
}

func (u *Uploader) staging(data []byte, label string) (*metadata.AllocatedBuffer, error) {
	staging, err := u.allocator.CreateBuffer(uint64(len(data)), driver.BufferUsageTransferSrc, metadata.MemoryUsageCPUOnly, label+" staging")
	if err != nil {
		return nil, err
	}
	copy(staging.Mapped, data)
	return staging, nil
}

// UploadBuffer copies data into a new device local buffer usable as usage.
// The staging buffer is gone by the time it returns.
func (u *Uploader) UploadBuffer(data []byte, usage driver.BufferUsageFlags, label string) (*metadata.AllocatedBuffer, error) {
	if len(data) == 0 {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "upload of %s has no data", label)
	}
	staging, err := u.staging(data, label)
	if err != nil {
		return nil, err
	}
	defer u.allocator.DestroyBuffer(staging)

	size := uint64(len(data))
	dst, err := u.allocator.CreateBuffer(size, usage|driver.BufferUsageTransferDst|driver.BufferUsageTransferSrc, metadata.MemoryUsageGPUOnly, label)
	if err != nil {
		return nil, err
	}
	err = u.immediateSubmit(func(cb driver.CommandBuffer) {
		cb.CopyBuffer(staging.Buffer, dst.Buffer, []driver.BufferCopy{{Size: size}})
	})
	if err != nil {
		u.allocator.DestroyBuffer(dst)
		return nil, errors.Wrapf(err, "uploading %s", label)
	}
	return dst, nil
}

// UploadMesh uploads the vertices and indices of mesh into their own buffers.
func (u *Uploader) UploadMesh(mesh *metadata.Mesh) error {
	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return errors.Wrapf(core.ErrInvalidArgument, "mesh %s has %d vertices and %d indices", mesh.Name, len(mesh.Vertices), len(mesh.Indices))
	}
	vb, err := u.UploadBuffer(metadata.VertexBytes(mesh.Vertices), driver.BufferUsageVertex, mesh.Name+" vertices")
	if err != nil {
		return err
	}
	ib, err := u.UploadBuffer(metadata.IndexBytes(mesh.Indices), driver.BufferUsageIndex, mesh.Name+" indices")
	if err != nil {
		u.allocator.DestroyBuffer(vb)
		return err
	}
	mesh.VertexBuffer = vb
	mesh.IndexBuffer = ib
	return nil
}

// transitionMasks returns the access masks and stages for the layout
// transitions an upload or readback performs.
func transitionMasks(oldLayout, newLayout driver.ImageLayout) (src, dst driver.AccessFlags, srcStage, dstStage driver.PipelineStageFlags, err error) {
	switch {
	case oldLayout == driver.ImageLayoutUndefined && newLayout == driver.ImageLayoutTransferDstOptimal:
		return 0, driver.AccessTransferWrite, driver.PipelineStageTopOfPipe, driver.PipelineStageTransfer, nil
	case oldLayout == driver.ImageLayoutTransferDstOptimal && newLayout == driver.ImageLayoutShaderReadOnlyOptimal:
		return driver.AccessTransferWrite, driver.AccessShaderRead, driver.PipelineStageTransfer, driver.PipelineStageFragmentShader, nil
	case oldLayout == driver.ImageLayoutShaderReadOnlyOptimal && newLayout == driver.ImageLayoutTransferSrcOptimal:
		return driver.AccessShaderRead, driver.AccessTransferRead, driver.PipelineStageFragmentShader, driver.PipelineStageTransfer, nil
	case oldLayout == driver.ImageLayoutTransferSrcOptimal && newLayout == driver.ImageLayoutShaderReadOnlyOptimal:
		return driver.AccessTransferRead, driver.AccessShaderRead, driver.PipelineStageTransfer, driver.PipelineStageFragmentShader, nil
	case oldLayout == driver.ImageLayoutUndefined && newLayout == driver.ImageLayoutDepthStencilAttachmentOptimal:
		return 0, driver.AccessDepthStencilAttachmentWrite, driver.PipelineStageTopOfPipe, driver.PipelineStageEarlyFragmentTests, nil
	}
	return 0, 0, 0, 0, errors.Wrapf(core.ErrInvalidArgument, "unsupported image layout transition %d -> %d", oldLayout, newLayout)
}

func layoutBarrier(image driver.Handle, oldLayout, newLayout driver.ImageLayout, aspect driver.ImageAspectFlags) (driver.ImageBarrier, error) {
	src, dst, srcStage, dstStage, err := transitionMasks(oldLayout, newLayout)
	if err != nil {
		return driver.ImageBarrier{}, err
	}
	return driver.ImageBarrier{
		Image:     image,
		OldLayout: oldLayout,
		NewLayout: newLayout,
		SrcAccess: src,
		DstAccess: dst,
		SrcStage:  srcStage,
		DstStage:  dstStage,
		Aspect:    aspect,
	}, nil
}

// UploadImage copies tightly packed pixels into a new sampled image and
// leaves it in SHADER_READ_ONLY layout.
func (u *Uploader) UploadImage(pixels []byte, width, height uint32, format driver.Format, label string) (*metadata.AllocatedImage, error) {
	if len(pixels) == 0 {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "upload of %s has no pixels", label)
	}
	if want := int(width) * int(height) * int(format.BytesPerPixel()); want == 0 || len(pixels) != want {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "image %s: %d bytes for %dx%d, want %d", label, len(pixels), width, height, want)
	}

	toTransfer, _ := layoutBarrier(driver.NullHandle, driver.ImageLayoutUndefined, driver.ImageLayoutTransferDstOptimal, driver.ImageAspectColor)
	toShader, _ := layoutBarrier(driver.NullHandle, driver.ImageLayoutTransferDstOptimal, driver.ImageLayoutShaderReadOnlyOptimal, driver.ImageAspectColor)

	staging, err := u.staging(pixels, label)
	if err != nil {
		return nil, err
	}
	defer u.allocator.DestroyBuffer(staging)

	img, err := u.allocator.CreateImage(driver.ImageDesc{
		Width:  width,
		Height: height,
		Format: format,
		Usage:  driver.ImageUsageSampled | driver.ImageUsageTransferDst | driver.ImageUsageTransferSrc,
	}, driver.ImageAspectColor, label)
	if err != nil {
		return nil, err
	}
	toTransfer.Image = img.Image
	toShader.Image = img.Image

	err = u.immediateSubmit(func(cb driver.CommandBuffer) {
		cb.ImageBarrier(toTransfer)
		cb.CopyBufferToImage(staging.Buffer, img.Image, driver.ImageLayoutTransferDstOptimal, driver.BufferImageCopy{
			Width:  width,
			Height: height,
			Aspect: driver.ImageAspectColor,
		})
		cb.ImageBarrier(toShader)
	})
	if err != nil {
		u.allocator.DestroyImage(img)
		return nil, errors.Wrapf(err, "uploading %s", label)
	}
	return img, nil
}

// ReadBuffer returns a copy of buf's contents. Device local buffers are read
// back through a GPU-to-CPU staging copy; use it for debugging only.
func (u *Uploader) ReadBuffer(buf *metadata.AllocatedBuffer) ([]byte, error) {
	if buf.Mapped != nil {
		return append([]byte(nil), buf.Mapped...), nil
	}
	readback, err := u.allocator.CreateBuffer(buf.Size, driver.BufferUsageTransferDst, metadata.MemoryUsageGPUToCPU, "readback")
	if err != nil {
		return nil, err
	}
	defer u.allocator.DestroyBuffer(readback)

	err = u.immediateSubmit(func(cb driver.CommandBuffer) {
		cb.CopyBuffer(buf.Buffer, readback.Buffer, []driver.BufferCopy{{Size: buf.Size}})
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading back buffer")
	}
	return append([]byte(nil), readback.Mapped...), nil
}

// ReadImage returns the texels of an image in SHADER_READ_ONLY layout and
// puts it back in that layout.
func (u *Uploader) ReadImage(img *metadata.AllocatedImage) ([]byte, error) {
	size := uint64(img.Width) * uint64(img.Height) * uint64(img.Format.BytesPerPixel())
	readback, err := u.allocator.CreateBuffer(size, driver.BufferUsageTransferDst, metadata.MemoryUsageGPUToCPU, "image readback")
	if err != nil {
		return nil, err
	}
	defer u.allocator.DestroyBuffer(readback)

	toSrc, _ := layoutBarrier(img.Image, driver.ImageLayoutShaderReadOnlyOptimal, driver.ImageLayoutTransferSrcOptimal, driver.ImageAspectColor)
	back, _ := layoutBarrier(img.Image, driver.ImageLayoutTransferSrcOptimal, driver.ImageLayoutShaderReadOnlyOptimal, driver.ImageAspectColor)
	err = u.immediateSubmit(func(cb driver.CommandBuffer) {
		cb.ImageBarrier(toSrc)
		cb.CopyImageToBuffer(img.Image, driver.ImageLayoutTransferSrcOptimal, readback.Buffer, driver.BufferImageCopy{
			Width:  img.Width,
			Height: img.Height,
			Aspect: driver.ImageAspectColor,
		})
		cb.ImageBarrier(back)
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading back image")
	}
	return append([]byte(nil), readback.Mapped...), nil
}
