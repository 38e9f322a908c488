package loaders

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// SceneLoader reads a YAML scene manifest and validates its references.
type SceneLoader struct{}

func (sl *SceneLoader) Load(path string) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(core.ErrNotFound, "scene %s", path)
		}
		return nil, errors.Wrapf(err, "reading scene %s", path)
	}
	scene, err := ParseScene(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scene %s", path)
	}
	if scene.Name == "" {
		scene.Name = baseName(path)
	}
	return &metadata.Resource{
		Name:     scene.Name,
		FullPath: path,
		Type:     metadata.ResourceTypeScene,
		DataSize: uint64(len(data)),
		Data:     scene,
	}, nil
}

func ParseScene(data []byte) (*metadata.SceneConfig, error) {
	var scene metadata.SceneConfig
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding yaml"), core.ErrInvalidArgument)
	}
	if err := scene.Validate(); err != nil {
		return nil, errors.Mark(err, core.ErrInvalidArgument)
	}
	return &scene, nil
}
