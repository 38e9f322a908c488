//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/magefile/mage/mg"
	"github.com/schollz/progressbar/v3"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

// Compiles every GLSL stage under assets/shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the demo binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/ember", "."), withStream())
	return err
}

func shaderSources() ([]string, error) {
	var sources []string
	for _, ext := range []string{"*.vert", "*.frag", "*.comp"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, ext))
		if err != nil {
			return nil, err
		}
		sources = append(sources, matches...)
	}
	return sources, nil
}

// buildShaders skips stages whose SPIR-V is newer than the source.
func buildShaders() error {
	sources, err := shaderSources()
	if err != nil {
		return err
	}
	bar := progressbar.Default(int64(len(sources)), "compiling shaders")
	defer bar.Close()

	for _, src := range sources {
		out := src + ".spv"
		if upToDate(src, out) {
			bar.Add(1)
			continue
		}
		output, err := executeCmd("glslc", withArgs(src, "-o", out), withQuiet())
		if err != nil {
			bar.Clear()
			fmt.Fprintln(os.Stderr, strings.TrimSpace(output))
			return errors.Wrapf(err, "compiling %s", src)
		}
		bar.Describe(filepath.Base(out))
		bar.Add(1)
	}
	return nil
}

func upToDate(src, out string) bool {
	s, err := os.Stat(src)
	if err != nil {
		return false
	}
	o, err := os.Stat(out)
	if err != nil {
		return false
	}
	return o.ModTime().After(s.ModTime())
}
