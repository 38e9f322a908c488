package assets

import "github.com/spaghettifunk/ember/engine/renderer/metadata"

// Loader turns one asset file into a resource. The concrete Data type depends
// on the resource type: []uint32 for shaders, *metadata.ImageResourceData for
// images, *metadata.Mesh for models and *metadata.SceneConfig for scenes.
type Loader interface {
	Load(path string) (*metadata.Resource, error)
}
