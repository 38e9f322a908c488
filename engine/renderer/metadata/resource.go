package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief SPIR-V shader binary. */
	ResourceTypeShader ResourceType = iota
	/** @brief Image resource type. */
	ResourceTypeImage
	/** @brief Wavefront OBJ model. */
	ResourceTypeModel
	/** @brief YAML scene manifest. */
	ResourceTypeScene
	/** @brief Anything else found in the asset directory. */
	ResourceTypeUnknown
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeModel:
		return "model"
	case ResourceTypeScene:
		return "scene"
	}
	return "unknown"
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The resource type. */
	Type ResourceType
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}
