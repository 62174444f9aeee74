package skill

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Watcher hot-reloads manifest overrides from a skills directory. Dropping
// or editing a <name>.yaml file there re-grants or disables the matching
// skill without a restart.
type Watcher struct {
	registry *Registry
	dir      string
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher loads every manifest in dir, then starts watching for changes.
// The directory is created if missing. If the filesystem watcher cannot be
// established the initial load still stands; there is just no hot reload.
func NewWatcher(registry *Registry, dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create skills directory: %w", err)
	}

	w := &Watcher{
		registry: registry,
		dir:      dir,
		done:     make(chan struct{}),
	}
	if err := w.LoadDir(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return w, nil
	}
	w.watcher = watcher
	go w.watch()

	return w, nil
}

// LoadDir applies every manifest file currently in the skills directory.
func (w *Watcher) LoadDir() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read skills directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isManifestFile(entry.Name()) {
			continue
		}
		w.loadFile(filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

// loadFile parses and applies one manifest file. Malformed manifests are
// logged and skipped so one bad file cannot block the rest.
func (w *Watcher) loadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[skill] WARNING: read manifest %s: %v", path, err)
		return
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		log.Printf("[skill] WARNING: parse manifest %s: %v", path, err)
		return
	}
	if m.Name == "" {
		log.Printf("[skill] WARNING: manifest %s has no name", path)
		return
	}
	w.registry.ApplyManifest(m)
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isManifestFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.loadFile(event.Name)
			}
		case <-w.watcher.Errors:
			// Keep watching.
		}
	}
}

func isManifestFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// Close stops the watcher.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}
