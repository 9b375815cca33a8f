// Package bundle implements the plugin-bundle collaborators against the
// on-disk layout the host uses: one <name>.coreplugin directory per installed
// core, each carrying a core.json metadata file.
package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"coreupdater/internal/plugins"
)

const (
	// Ext is the directory suffix marking an installed core bundle.
	Ext = ".coreplugin"
	// MetadataFile is the per-bundle metadata file name.
	MetadataFile = "core.json"
)

// Metadata mirrors the core.json file inside a bundle.
type Metadata struct {
	Identifier    string   `json:"identifier"`
	Version       string   `json:"version"`
	Architectures []string `json:"architectures"`
	Systems       []string `json:"systems"`
}

// Registry scans a cores directory for installed bundles and caches their
// metadata until refreshed.
type Registry struct {
	Dir string

	mu     sync.Mutex
	cache  map[string]plugins.Installed
	paths  map[string]string
	loaded bool
}

// NewRegistry creates a registry over the given cores directory.
func NewRegistry(dir string) *Registry {
	return &Registry{Dir: dir}
}

// List returns every installed plugin.
func (r *Registry) List() ([]plugins.Installed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLocked(); err != nil {
		return nil, err
	}

	installed := make([]plugins.Installed, 0, len(r.cache))
	for _, plugin := range r.cache {
		installed = append(installed, plugin)
	}
	return installed, nil
}

// Lookup finds an installed plugin by identifier, matched case-insensitively.
func (r *Registry) Lookup(identifier string) (plugins.Installed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLocked(); err != nil {
		return plugins.Installed{}, false
	}
	plugin, ok := r.cache[strings.ToLower(identifier)]
	return plugin, ok
}

// Load reads bundle metadata from an installed bundle path and records it in
// the cache.
func (r *Registry) Load(path string) (plugins.Handle, error) {
	meta, err := readMetadata(path)
	if err != nil {
		return plugins.Handle{}, err
	}

	r.mu.Lock()
	if r.cache == nil {
		r.cache = make(map[string]plugins.Installed)
		r.paths = make(map[string]string)
	}
	key := strings.ToLower(meta.Identifier)
	r.cache[key] = plugins.Installed{
		Identifier:    meta.Identifier,
		Version:       meta.Version,
		Architectures: meta.Architectures,
		Systems:       meta.Systems,
	}
	r.paths[key] = path
	r.mu.Unlock()

	return plugins.Handle{
		Identifier: meta.Identifier,
		Version:    meta.Version,
		Path:       path,
	}, nil
}

// Refresh drops cached metadata for the identifier and re-reads it from disk
// so the next query observes the newly installed version.
func (r *Registry) Refresh(identifier string) error {
	key := strings.ToLower(identifier)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, key)
	path, ok := r.paths[key]
	if !ok {
		// Never cached; a full rescan picks it up.
		r.loaded = false
		return nil
	}

	meta, err := readMetadata(path)
	if err != nil {
		return err
	}
	r.cache[key] = plugins.Installed{
		Identifier:    meta.Identifier,
		Version:       meta.Version,
		Architectures: meta.Architectures,
		Systems:       meta.Systems,
	}
	return nil
}

// ensureLocked populates the cache from disk on first use. Caller holds r.mu.
func (r *Registry) ensureLocked() error {
	if r.loaded {
		return nil
	}

	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.cache = make(map[string]plugins.Installed)
			r.paths = make(map[string]string)
			r.loaded = true
			return nil
		}
		return fmt.Errorf("scan cores dir: %w", err)
	}

	cache := make(map[string]plugins.Installed)
	paths := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}
		path := filepath.Join(r.Dir, entry.Name())
		meta, err := readMetadata(path)
		if err != nil {
			// An unreadable bundle is skipped, not fatal to the scan.
			continue
		}
		key := strings.ToLower(meta.Identifier)
		cache[key] = plugins.Installed{
			Identifier:    meta.Identifier,
			Version:       meta.Version,
			Architectures: meta.Architectures,
			Systems:       meta.Systems,
		}
		paths[key] = path
	}

	r.cache = cache
	r.paths = paths
	r.loaded = true
	return nil
}

func readMetadata(bundlePath string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(bundlePath, MetadataFile))
	if err != nil {
		return Metadata{}, fmt.Errorf("read bundle metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode bundle metadata: %w", err)
	}
	if strings.TrimSpace(meta.Identifier) == "" {
		return Metadata{}, fmt.Errorf("bundle metadata missing identifier: %s", bundlePath)
	}
	return meta, nil
}
