//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the demo with config.toml.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "config.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

type Test mg.Namespace

// Runs the packages that do not need a GPU or a window.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test",
		"./engine/core/...",
		"./engine/containers/...",
		"./engine/math/...",
		"./engine/config/...",
		"./engine/assets/...",
		"./engine/scene/...",
		"./engine/renderer/",
		"./engine/renderer/metadata/...",
		"./engine/renderer/driver/...",
	), withStream())
	return err
}
