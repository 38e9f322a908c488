package loaders

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lmittmann/ppm"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// ImageLoader decodes PNG, JPEG, GIF, BMP, TIFF, WebP and PPM files into
// tightly packed RGBA8 pixels.
type ImageLoader struct {
	// FlipY stores rows bottom to top.
	FlipY bool
}

func (il *ImageLoader) Load(path string) (*metadata.Resource, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(core.ErrNotFound, "image %s", path)
		}
		return nil, errors.Wrapf(err, "opening image %s", path)
	}
	defer file.Close()

	data, err := DecodeImage(file, filepath.Ext(path), il.FlipY)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %s", path)
	}
	return &metadata.Resource{
		Name:     baseName(path),
		FullPath: path,
		Type:     metadata.ResourceTypeImage,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

// DecodeImage decodes r. ext selects the PPM decoder, every other format is
// sniffed from the header.
func DecodeImage(r io.Reader, ext string, flipY bool) (*metadata.ImageResourceData, error) {
	var (
		img image.Image
		err error
	)
	if strings.EqualFold(ext, ".ppm") {
		img, err = ppm.Decode(r)
	} else {
		img, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, err
	}
	rgba := ToRGBA(img)
	if flipY {
		flipRows(rgba)
	}
	b := rgba.Bounds()
	return &metadata.ImageResourceData{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: rgba.Pix,
	}, nil
}

// ToRGBA returns img as an RGBA image with a zero origin and no row padding.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

func flipRows(img *image.RGBA) {
	h := img.Bounds().Dy()
	tmp := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
