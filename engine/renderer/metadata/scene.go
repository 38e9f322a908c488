package metadata

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneConfig is the manifest the engine populates the renderer from. Shaders,
// meshes and textures name assets; materials and objects refer to those names.
type SceneConfig struct {
	Name      string           `yaml:"name"`
	Shaders   []string         `yaml:"shaders"`
	Meshes    []SceneAsset     `yaml:"meshes"`
	Textures  []SceneAsset     `yaml:"textures"`
	Materials []MaterialConfig `yaml:"materials"`
	// Texture is bound to every frame's sampler. Empty keeps the default.
	Texture string        `yaml:"texture"`
	Objects []SceneObject `yaml:"objects"`
}

// SceneAsset maps a registry name onto an asset file.
type SceneAsset struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

// SceneObject places a mesh. Rotation is in degrees, applied X then Y then Z.
type SceneObject struct {
	Mesh     string     `yaml:"mesh"`
	Material string     `yaml:"material"`
	Position [3]float32 `yaml:"position"`
	Rotation [3]float32 `yaml:"rotation"`
	Scale    *float32   `yaml:"scale"`
}

func (o SceneObject) Transform() mgl32.Mat4 {
	scale := float32(1)
	if o.Scale != nil {
		scale = *o.Scale
	}
	t := mgl32.Translate3D(o.Position[0], o.Position[1], o.Position[2])
	r := mgl32.HomogRotate3DZ(mgl32.DegToRad(o.Rotation[2])).
		Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(o.Rotation[1]))).
		Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(o.Rotation[0])))
	return t.Mul4(r).Mul4(mgl32.Scale3D(scale, scale, scale))
}

// Validate checks that every name is declared once and that every reference
// resolves. The built-in triangle mesh is always available.
func (s *SceneConfig) Validate() error {
	shaders := make(map[string]bool, len(s.Shaders))
	for _, name := range s.Shaders {
		if name == "" {
			return errors.New("scene: shader with empty name")
		}
		if shaders[name] {
			return errors.Newf("scene: shader %q declared twice", name)
		}
		shaders[name] = true
	}

	meshes := map[string]bool{TriangleMeshName: true}
	for _, m := range s.Meshes {
		if m.Name == "" || m.File == "" {
			return errors.Newf("scene: mesh %q needs a name and a file", m.Name)
		}
		if meshes[m.Name] {
			return errors.Newf("scene: mesh %q declared twice", m.Name)
		}
		meshes[m.Name] = true
	}

	textures := map[string]bool{DEFAULT_TEXTURE_NAME: true}
	for _, t := range s.Textures {
		if t.Name == "" || t.File == "" {
			return errors.Newf("scene: texture %q needs a name and a file", t.Name)
		}
		if textures[t.Name] {
			return errors.Newf("scene: texture %q declared twice", t.Name)
		}
		textures[t.Name] = true
	}
	if s.Texture != "" && !textures[s.Texture] {
		return errors.Newf("scene: active texture %q is not declared", s.Texture)
	}

	materials := make(map[string]bool, len(s.Materials))
	for _, m := range s.Materials {
		if m.Name == "" {
			return errors.New("scene: material with empty name")
		}
		if materials[m.Name] {
			return errors.Newf("scene: material %q declared twice", m.Name)
		}
		if !shaders[m.VertexShader] {
			return errors.Newf("scene: material %q uses undeclared vertex shader %q", m.Name, m.VertexShader)
		}
		if !shaders[m.FragmentShader] {
			return errors.Newf("scene: material %q uses undeclared fragment shader %q", m.Name, m.FragmentShader)
		}
		materials[m.Name] = true
	}

	for i, o := range s.Objects {
		if !meshes[o.Mesh] {
			return errors.Newf("scene: object %d uses undeclared mesh %q", i, o.Mesh)
		}
		if !materials[o.Material] {
			return errors.Newf("scene: object %d uses undeclared material %q", i, o.Material)
		}
		if o.Scale != nil && *o.Scale <= 0 {
			return errors.Newf("scene: object %d has non-positive scale", i)
		}
	}
	return nil
}
