package metadata

import "github.com/spaghettifunk/ember/engine/renderer/driver"

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

/**
 * @brief Material configuration typically loaded from
 * a scene file or created in code.
 */
type MaterialConfig struct {
	/** @brief The name of the material. */
	Name string `yaml:"name"`
	/** @brief Asset name of the SPIR-V vertex shader. */
	VertexShader string `yaml:"vertex"`
	/** @brief Asset name of the SPIR-V fragment shader. */
	FragmentShader string `yaml:"fragment"`
	/** @brief Renders edges only when set. */
	Wireframe bool `yaml:"wireframe"`
}

/**
 * @brief A named pipeline and the layout it was built with.
 */
type Material struct {
	Name     string
	Pipeline driver.Handle
	Layout   driver.Handle
}
