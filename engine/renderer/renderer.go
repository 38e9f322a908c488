package renderer

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/components"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

type Config struct {
	FramesInFlight int
	FenceTimeout   time.Duration
	AcquireTimeout time.Duration
	// MaxObjects bounds the render objects drawn per frame.
	MaxObjects uint32
	ClearColor [4]float32
	// CameraPosition defaults to (0, 0, 7), looking down -Z at the origin.
	CameraPosition *mgl32.Vec3
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight: 2,
		FenceTimeout:   time.Second,
		AcquireTimeout: time.Second,
		MaxObjects:     1000,
		ClearColor:     [4]float32{0.05, 0.05, 0.08, 1},
	}
}

type material struct {
	*metadata.Material
	builder *PipelineBuilder
}

// Renderer owns every GPU resource the engine creates on top of a device and
// swapchain it was handed. Resources are registered by name and destroyed in
// reverse creation order on Shutdown.
type Renderer struct {
	device    driver.Device
	swapchain driver.Swapchain
	config    Config

	allocator *Allocator
	uploader  *Uploader

	// teardown lives as long as the renderer; pipelines bake in the swapchain
	// extent and go into swapchainTeardown, which is flushed on every rebuild.
	teardown          *Teardown
	swapchainTeardown *Teardown

	frames      *FrameController
	descriptors *FrameDescriptors
	recorder    *DrawRecorder
	camera      *components.Camera
	sampler     driver.Handle

	shaders   *core.Registry[driver.Handle]
	meshes    *core.Registry[*metadata.Mesh]
	materials *core.Registry[*material]
	textures  *core.Registry[*metadata.Texture]
	objects   []*metadata.RenderObject

	clock    *core.Clock
	lastDraw DrawStats
	shutdown bool
}

// New creates frame slots, the default white texture, descriptor sets and the
// built-in triangle mesh. On error everything created so far is destroyed.
func New(device driver.Device, swapchain driver.Swapchain, config Config) (*Renderer, error) {
	if config.MaxObjects == 0 {
		config.MaxObjects = DefaultConfig().MaxObjects
	}
	allocator := NewAllocator(device)
	r := &Renderer{
		device:            device,
		swapchain:         swapchain,
		config:            config,
		allocator:         allocator,
		uploader:          NewUploader(device, allocator),
		teardown:          NewTeardown(device, allocator),
		swapchainTeardown: NewTeardown(device, allocator),
		shaders:           core.NewRegistry[driver.Handle](),
		meshes:            core.NewRegistry[*metadata.Mesh](),
		materials:         core.NewRegistry[*material](),
		textures:          core.NewRegistry[*metadata.Texture](),
		clock:             core.NewClock(),
	}
	if err := r.initialize(); err != nil {
		r.teardown.Flush()
		return nil, err
	}
	r.clock.Start()
	return r, nil
}

func (r *Renderer) initialize() error {
	var err error
	r.frames, err = NewFrameController(r.device, r.swapchain, r.teardown, FrameConfig{
		FramesInFlight: r.config.FramesInFlight,
		FenceTimeout:   r.config.FenceTimeout,
		AcquireTimeout: r.config.AcquireTimeout,
	})
	if err != nil {
		return err
	}
	r.frames.OnRebuild(r.rebuildPipelines)

	r.sampler, err = r.device.CreateSampler(driver.SamplerDesc{
		MagFilter:   driver.FilterNearest,
		MinFilter:   driver.FilterNearest,
		AddressMode: driver.SamplerAddressModeRepeat,
	})
	if err != nil {
		return errors.Wrap(err, "creating sampler")
	}
	r.teardown.Push(driver.ResourceSampler, r.sampler, "default sampler")

	white, err := r.UploadTexture(metadata.DEFAULT_TEXTURE_NAME, &metadata.ImageResourceData{
		Width:  1,
		Height: 1,
		Pixels: []uint8{255, 255, 255, 255},
	})
	if err != nil {
		return errors.Wrap(err, "creating default texture")
	}

	r.descriptors, err = NewFrameDescriptors(r.device, r.allocator, r.teardown, r.frames.Slots(), r.config.MaxObjects, white)
	if err != nil {
		return err
	}

	position := mgl32.Vec3{0, 0, 7}
	if r.config.CameraPosition != nil {
		position = *r.config.CameraPosition
	}
	r.camera = components.NewCamera(position)
	r.recorder = NewDrawRecorder(r.swapchain, r.descriptors, r.camera)
	r.recorder.ClearColor = r.config.ClearColor

	if err := r.UploadMesh(metadata.Triangle()); err != nil {
		return errors.Wrap(err, "uploading triangle mesh")
	}
	core.LogInfo("renderer initialized with %d frames in flight", r.config.FramesInFlight)
	return nil
}

// LoadShader creates a shader module from SPIR-V words and registers it under
// name. Modules live until Shutdown so pipelines can be rebuilt from them.
func (r *Renderer) LoadShader(name string, code []uint32) (driver.Handle, error) {
	if len(code) == 0 {
		return driver.NullHandle, errors.Wrapf(core.ErrInvalidShader, "shader %s is empty", name)
	}
	module, err := r.device.CreateShaderModule(code)
	if err != nil {
		return driver.NullHandle, errors.Wrapf(err, "creating shader module %s", name)
	}
	r.teardown.Push(driver.ResourceShaderModule, module, name)
	r.shaders.Put(name, module)
	return module, nil
}

func (r *Renderer) shader(name string) (driver.Handle, error) {
	module, ok := r.shaders.Get(name)
	if !ok {
		return driver.NullHandle, errors.Wrapf(core.ErrNotFound, "shader %s", name)
	}
	return module, nil
}

// CreateMaterial builds a pipeline from two loaded shaders. Failure leaves
// no material registered under config.Name.
func (r *Renderer) CreateMaterial(config metadata.MaterialConfig) (*metadata.Material, error) {
	if _, exists := r.materials.Get(config.Name); exists {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "material %s already exists", config.Name)
	}
	vert, err := r.shader(config.VertexShader)
	if err != nil {
		return nil, err
	}
	frag, err := r.shader(config.FragmentShader)
	if err != nil {
		return nil, err
	}

	layout, err := r.device.CreatePipelineLayout([]driver.Handle{r.descriptors.Layout()}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "creating pipeline layout for %s", config.Name)
	}

	builder := NewPipelineBuilder(r.swapchain.Extent())
	builder.ShaderStages = []driver.ShaderStage{
		{Stage: driver.ShaderStageVertex, Module: vert, Entry: "main"},
		{Stage: driver.ShaderStageFragment, Module: frag, Entry: "main"},
	}
	builder.PipelineLayout = layout
	if config.Wireframe {
		builder.Rasterizer.PolygonMode = driver.PolygonModeLine
	}
	pipeline, err := builder.Build(r.device, r.swapchain.RenderTarget())
	if err != nil {
		r.device.Destroy(driver.ResourcePipelineLayout, layout)
		return nil, errors.Wrapf(err, "building material %s", config.Name)
	}
	r.teardown.Push(driver.ResourcePipelineLayout, layout, config.Name)
	r.swapchainTeardown.Push(driver.ResourcePipeline, pipeline, config.Name)

	m := &material{
		Material: &metadata.Material{Name: config.Name, Pipeline: pipeline, Layout: layout},
		builder:  builder,
	}
	r.materials.Put(config.Name, m)
	core.LogDebug("material %s created", config.Name)
	return m.Material, nil
}

// UploadMesh copies mesh to device local buffers and registers it by name.
func (r *Renderer) UploadMesh(mesh *metadata.Mesh) error {
	if _, exists := r.meshes.Get(mesh.Name); exists {
		return errors.Wrapf(core.ErrInvalidArgument, "mesh %s already uploaded", mesh.Name)
	}
	if err := r.uploader.UploadMesh(mesh); err != nil {
		return err
	}
	r.teardown.PushBuffer(mesh.VertexBuffer, mesh.Name+" vertices")
	r.teardown.PushBuffer(mesh.IndexBuffer, mesh.Name+" indices")
	r.meshes.Put(mesh.Name, mesh)
	return nil
}

// UploadTexture creates a sampled RGBA8 texture from decoded pixels.
func (r *Renderer) UploadTexture(name string, data *metadata.ImageResourceData) (*metadata.Texture, error) {
	if _, exists := r.textures.Get(name); exists {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "texture %s already uploaded", name)
	}
	img, err := r.uploader.UploadImage(data.Pixels, data.Width, data.Height, driver.FormatR8G8B8A8Srgb, name)
	if err != nil {
		return nil, err
	}
	r.teardown.PushImage(img, name)
	texture := &metadata.Texture{
		Name:    name,
		Width:   data.Width,
		Height:  data.Height,
		Image:   img,
		Sampler: r.sampler,
	}
	r.textures.Put(name, texture)
	return texture, nil
}

// UseTexture points every frame's sampler binding at the named texture. It
// waits for all frames in flight first.
func (r *Renderer) UseTexture(name string) error {
	texture, ok := r.textures.Get(name)
	if !ok {
		return errors.Wrapf(core.ErrNotFound, "texture %s", name)
	}
	if err := r.frames.WaitAll(); err != nil {
		return err
	}
	return r.descriptors.BindTexture(texture)
}

// AddRenderObject appends an object drawing the named mesh with the named
// material. Objects are drawn in the order they were added.
func (r *Renderer) AddRenderObject(meshName, materialName string, transform mgl32.Mat4) (*metadata.RenderObject, error) {
	mesh, ok := r.meshes.Get(meshName)
	if !ok {
		return nil, errors.Wrapf(core.ErrNotFound, "mesh %s", meshName)
	}
	m, ok := r.materials.Get(materialName)
	if !ok {
		return nil, errors.Wrapf(core.ErrNotFound, "material %s", materialName)
	}
	if uint32(len(r.objects)) >= r.config.MaxObjects {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "render object limit %d reached", r.config.MaxObjects)
	}
	obj := &metadata.RenderObject{Mesh: mesh, Material: m.Material, Transform: transform}
	r.objects = append(r.objects, obj)
	return obj, nil
}

func (r *Renderer) RenderObjects() []*metadata.RenderObject {
	return r.objects
}

func (r *Renderer) GetMesh(name string) (*metadata.Mesh, bool) {
	return r.meshes.Get(name)
}

func (r *Renderer) GetMaterial(name string) (*metadata.Material, bool) {
	m, ok := r.materials.Get(name)
	if !ok {
		return nil, false
	}
	return m.Material, true
}

func (r *Renderer) GetTexture(name string) (*metadata.Texture, bool) {
	return r.textures.Get(name)
}

func (r *Renderer) Camera() *components.Camera {
	return r.camera
}

// ReadBuffer returns the contents of buf. Debugging only; it stalls the queue.
func (r *Renderer) ReadBuffer(buf *metadata.AllocatedBuffer) ([]byte, error) {
	return r.uploader.ReadBuffer(buf)
}

func (r *Renderer) ReadTexture(texture *metadata.Texture) ([]byte, error) {
	return r.uploader.ReadImage(texture.Image)
}

// DrawFrame renders every render object with rotation applied on top of its
// transform. It returns false when the frame was skipped.
func (r *Renderer) DrawFrame(rotation mgl32.Mat4) (bool, error) {
	if r.shutdown {
		return false, errors.Wrap(core.ErrInvalidArgument, "renderer is shut down")
	}
	r.clock.Update()
	r.recorder.Time = float32(r.clock.Elapsed())
	return r.frames.Frame(func(slot *FrameSlot, imageIndex uint32) error {
		stats, err := r.recorder.Record(slot.CommandBuffer, slot, imageIndex, r.objects, rotation)
		r.lastDraw = stats
		return err
	})
}

// Resize schedules a swapchain rebuild for the next frame.
func (r *Renderer) Resize(width, height uint32) {
	r.frames.Resize(width, height)
}

func (r *Renderer) rebuildPipelines(extent driver.Extent2D) error {
	r.swapchainTeardown.Flush()
	target := r.swapchain.RenderTarget()
	var err error
	r.materials.Each(func(name string, m *material) {
		if err != nil {
			return
		}
		m.builder.SetExtent(extent)
		pipeline, berr := m.builder.Build(r.device, target)
		if berr != nil {
			err = errors.Wrapf(berr, "rebuilding material %s", name)
			return
		}
		m.Pipeline = pipeline
		r.swapchainTeardown.Push(driver.ResourcePipeline, pipeline, name)
	})
	return err
}

func (r *Renderer) FrameCount() uint64 {
	return r.frames.FrameCount()
}

func (r *Renderer) FrameStats() FrameStats {
	return r.frames.Stats()
}

// DrawStats returns the counters of the last recorded pass.
func (r *Renderer) DrawStats() DrawStats {
	return r.lastDraw
}

// Shutdown waits for every frame in flight, then destroys all resources in
// reverse creation order. It returns the number of leaked allocations.
func (r *Renderer) Shutdown() (int, error) {
	if r.shutdown {
		return 0, nil
	}
	r.shutdown = true
	r.clock.Stop()
	// Teardown runs even when a slot fence never signals again.
	waitErr := r.frames.WaitAll()
	if waitErr != nil {
		core.LogError("frames did not finish before shutdown: %v", waitErr)
	}
	if err := r.device.WaitIdle(); err != nil {
		waitErr = errors.CombineErrors(waitErr, errors.Wrap(err, "waiting for device idle"))
	}
	n := r.swapchainTeardown.Flush()
	n += r.teardown.Flush()
	core.LogInfo("renderer destroyed %d objects", n)
	return r.allocator.ReportLeaks(), waitErr
}
