package assets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/ember/engine/assets/loaders"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	ModifiedAt time.Time
	LastLoaded time.Time
}

// AssetManager indexes an asset directory, loads files through per type
// loaders and reports changes to indexed files as EVENT_CODE_ASSET_CHANGED.
// The event sender is the path of the changed file.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}
	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeModel, &loaders.ModelLoader{})
	am.registerLoader(metadata.ResourceTypeScene, &loaders.SceneLoader{})
	return am, nil
}

// Initialize indexes every file under assetsDir and starts watching it.
func (am *AssetManager) Initialize(assetsDir string) error {
	info, err := os.Stat(assetsDir)
	if err != nil {
		return errors.Wrapf(core.ErrNotFound, "asset directory %s: %v", assetsDir, err)
	}
	if !info.IsDir() {
		return errors.Wrapf(core.ErrInvalidArgument, "asset path %s is not a directory", assetsDir)
	}
	root := filepath.Clean(assetsDir)
	if err := am.watchRecursive(root); err != nil {
		return err
	}
	am.root = root
	go am.start()
	core.LogInfo("asset manager indexed %d files under %s", am.Count(), am.root)
	return nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	if am.root != "" {
		<-am.stopped
		return nil
	}
	return am.fsnotify.Close()
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Path resolves an asset name to its file. Names are relative to the type's
// directory; the default extension is added when name has none.
func (am *AssetManager) Path(name string, resourceType metadata.ResourceType) string {
	var dir, ext string
	switch resourceType {
	case metadata.ResourceTypeShader:
		dir, ext = "shaders", ".spv"
	case metadata.ResourceTypeImage:
		dir, ext = "textures", ".png"
	case metadata.ResourceTypeModel:
		dir, ext = "models", ".obj"
	case metadata.ResourceTypeScene:
		dir, ext = "scenes", ".yaml"
	}
	// Shader names carry their stage as an extension, mesh.vert.spv.
	switch {
	case resourceType == metadata.ResourceTypeShader && !strings.HasSuffix(name, ext):
		name += ext
	case resourceType != metadata.ResourceTypeShader && filepath.Ext(name) == "":
		name += ext
	}
	return filepath.Join(am.root, dir, name)
}

// LoadAsset loads the named asset of resourceType with its registered loader.
func (am *AssetManager) LoadAsset(name string, resourceType metadata.ResourceType) (*metadata.Resource, error) {
	loader, ok := am.loaders[resourceType]
	if !ok {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "no loader registered for asset type %s", resourceType)
	}
	path := am.Path(name, resourceType)

	am.mutex.RLock()
	_, indexed := am.assets[path]
	am.mutex.RUnlock()
	if !indexed {
		// Files created before the watcher caught up are still loadable.
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(core.ErrNotFound, "asset %s", path)
		}
		am.index(path)
	}

	resource, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	am.mutex.Lock()
	asset := am.assets[path]
	asset.LastLoaded = time.Now()
	am.assets[path] = asset
	am.mutex.Unlock()
	core.LogDebug("loaded %s %s", resourceType, path)
	return resource, nil
}

// Lookup returns the index entry for path.
func (am *AssetManager) Lookup(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.Clean(path)]
	return info, ok
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)
		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %v", err)
		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	path := filepath.Clean(e.Name)
	if e.Has(fsnotify.Create) {
		if s, err := os.Stat(path); err == nil && s.IsDir() {
			if err := am.watchRecursive(path); err != nil {
				core.LogWarn("watching %s: %v", path, err)
			}
			return
		}
	}
	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		am.removeAsset(path)
		return
	}
	if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
		if info, ok := am.index(path); ok {
			ctx := core.EventContext{}
			ctx.Data.U32[0] = uint32(info.Type)
			core.EventFire(core.EVENT_CODE_ASSET_CHANGED, path, ctx)
		}
	}
}

// watchRecursive adds path and every directory below it to the watch list and
// indexes the files it finds.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.index(filepath.Clean(walkPath))
		return nil
	})
}

// index records path if its extension maps to a resource type.
func (am *AssetManager) index(path string) (AssetInfo, bool) {
	assetType := DetermineAssetType(path)
	if assetType == metadata.ResourceTypeUnknown {
		return AssetInfo{}, false
	}
	info := AssetInfo{Path: path, Type: assetType}
	if s, err := os.Stat(path); err == nil {
		info.ModifiedAt = s.ModTime()
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	info.LastLoaded = am.assets[path].LastLoaded
	am.assets[path] = info
	return info, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, path)
}

func DetermineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp", ".ppm":
		return metadata.ResourceTypeImage
	case ".obj":
		return metadata.ResourceTypeModel
	case ".yaml", ".yml":
		return metadata.ResourceTypeScene
	default:
		return metadata.ResourceTypeUnknown
	}
}
