package metadata

import "github.com/spaghettifunk/ember/engine/renderer/driver"

const (
	/** @brief The default texture name. */
	DEFAULT_TEXTURE_NAME string = "default"
)

/**
 * @brief An RGBA8 texture resident on the device, sampled through Sampler.
 */
type Texture struct {
	/** @brief The texture Name. */
	Name string
	/** @brief The texture Width. */
	Width uint32
	/** @brief The texture Height. */
	Height uint32
	Image   *AllocatedImage
	Sampler driver.Handle
}

/**
 * @brief A structure to hold decoded image data, always 4 channels.
 */
type ImageResourceData struct {
	/** @brief The width of the image. */
	Width uint32
	/** @brief The height of the image. */
	Height uint32
	/** @brief The pixel data of the image, RGBA8, rows top to bottom. */
	Pixels []uint8
}
