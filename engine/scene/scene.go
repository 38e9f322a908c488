package scene

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// AssetSource resolves asset names to decoded resources.
type AssetSource interface {
	LoadAsset(name string, resourceType metadata.ResourceType) (*metadata.Resource, error)
}

// Target is the part of the renderer a scene is built on.
type Target interface {
	LoadShader(name string, code []uint32) (driver.Handle, error)
	UploadMesh(mesh *metadata.Mesh) error
	UploadTexture(name string, data *metadata.ImageResourceData) (*metadata.Texture, error)
	CreateMaterial(config metadata.MaterialConfig) (*metadata.Material, error)
	UseTexture(name string) error
	AddRenderObject(meshName, materialName string, transform mgl32.Mat4) (*metadata.RenderObject, error)
}

// Report counts what a scene load created and collects the failures it
// skipped past.
type Report struct {
	Shaders   int
	Meshes    int
	Textures  int
	Materials int
	Objects   int
	Failures  []error
}

func (r *Report) fail(err error) {
	core.LogError("%v", err)
	r.Failures = append(r.Failures, err)
}

// Load reads the named scene manifest and populates target from it.
func Load(src AssetSource, target Target, name string) (*metadata.SceneConfig, *Report, error) {
	res, err := src.LoadAsset(name, metadata.ResourceTypeScene)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "loading scene %s", name)
	}
	scene, ok := res.Data.(*metadata.SceneConfig)
	if !ok {
		return nil, nil, errors.Wrapf(core.ErrInvalidArgument, "asset %s is not a scene", res.FullPath)
	}
	return scene, Populate(src, target, scene), nil
}

type request struct {
	name         string
	resourceType metadata.ResourceType
}

type decoded struct {
	res *metadata.Resource
	err error
}

// decodeAll loads every request on a worker pool. Results keep the request
// order.
func decodeAll(src AssetSource, requests []request) []decoded {
	results := make([]decoded, len(requests))
	if len(requests) == 0 {
		return results
	}
	js, err := core.NewJobSystem(min(runtime.NumCPU(), len(requests)), len(requests))
	if err != nil {
		for i, req := range requests {
			results[i].res, results[i].err = src.LoadAsset(req.name, req.resourceType)
		}
		return results
	}
	for i, req := range requests {
		i, req := i, req
		err := js.Submit(core.JobTask{
			Name: req.name,
			OnStart: func() error {
				res, err := src.LoadAsset(req.name, req.resourceType)
				results[i] = decoded{res: res, err: err}
				return err
			},
		})
		if err != nil {
			results[i].err = err
		}
	}
	js.Wait()
	js.Shutdown()
	return results
}

// Populate loads every asset the scene names into target. Files are decoded
// concurrently; everything touching the GPU runs on the calling goroutine in
// declaration order. A failed asset is logged and skipped, as is anything that
// depends on it; the rest of the scene still loads.
func Populate(src AssetSource, target Target, scene *metadata.SceneConfig) *Report {
	report := &Report{}

	requests := make([]request, 0, len(scene.Shaders)+len(scene.Meshes)+len(scene.Textures))
	for _, name := range scene.Shaders {
		requests = append(requests, request{name, metadata.ResourceTypeShader})
	}
	for _, m := range scene.Meshes {
		requests = append(requests, request{m.File, metadata.ResourceTypeModel})
	}
	for _, t := range scene.Textures {
		requests = append(requests, request{t.File, metadata.ResourceTypeImage})
	}
	results := decodeAll(src, requests)

	for i, name := range scene.Shaders {
		r := results[i]
		if r.err != nil {
			report.fail(errors.Wrapf(r.err, "shader %s", name))
			continue
		}
		if _, err := target.LoadShader(name, r.res.Data.([]uint32)); err != nil {
			report.fail(err)
			continue
		}
		report.Shaders++
	}
	results = results[len(scene.Shaders):]

	for i, m := range scene.Meshes {
		r := results[i]
		if r.err != nil {
			report.fail(errors.Wrapf(r.err, "mesh %s", m.Name))
			continue
		}
		mesh := r.res.Data.(*metadata.Mesh)
		mesh.Name = m.Name
		if err := target.UploadMesh(mesh); err != nil {
			report.fail(errors.Wrapf(err, "uploading mesh %s", m.Name))
			continue
		}
		report.Meshes++
	}
	results = results[len(scene.Meshes):]

	for i, t := range scene.Textures {
		r := results[i]
		if r.err != nil {
			report.fail(errors.Wrapf(r.err, "texture %s", t.Name))
			continue
		}
		if _, err := target.UploadTexture(t.Name, r.res.Data.(*metadata.ImageResourceData)); err != nil {
			report.fail(errors.Wrapf(err, "uploading texture %s", t.Name))
			continue
		}
		report.Textures++
	}

	for _, m := range scene.Materials {
		if _, err := target.CreateMaterial(m); err != nil {
			report.fail(errors.Wrapf(err, "material %s", m.Name))
			continue
		}
		report.Materials++
	}

	if scene.Texture != "" {
		if err := target.UseTexture(scene.Texture); err != nil {
			report.fail(errors.Wrapf(err, "binding texture %s", scene.Texture))
		}
	}

	for i, o := range scene.Objects {
		if _, err := target.AddRenderObject(o.Mesh, o.Material, o.Transform()); err != nil {
			report.fail(errors.Wrapf(err, "object %d", i))
			continue
		}
		report.Objects++
	}

	core.LogInfo("scene %s: %d shaders, %d meshes, %d textures, %d materials, %d objects, %d failures",
		scene.Name, report.Shaders, report.Meshes, report.Textures, report.Materials, report.Objects, len(report.Failures))
	return report
}
