// Package plugins declares the read-only view of the host's plugin-bundle
// subsystem plus the collaborator interfaces the update pipeline depends on.
// Concrete implementations live with the host (internal/bundle provides the
// disk-backed ones the CLI uses).
package plugins

// Installed is the read-only view of a plugin already on disk.
type Installed struct {
	Identifier    string
	Version       string
	Architectures []string
	Systems       []string
}

// Handle references a loadable plugin bundle after a successful install.
type Handle struct {
	Identifier string
	Version    string
	Path       string
}

// Registry answers queries about installed plugins and loads freshly
// installed bundles.
type Registry interface {
	// List returns every installed plugin.
	List() ([]Installed, error)
	// Lookup finds an installed plugin by identifier (case-insensitive).
	Lookup(identifier string) (Installed, bool)
	// Load resolves a plugin handle for an installed bundle path.
	Load(path string) (Handle, error)
	// Refresh drops any cached bundle metadata for the identifier so the
	// next query observes the newly installed version.
	Refresh(identifier string) error
}

// Extractor unpacks a verified release archive into the cores directory and
// returns the name of the installed bundle.
type Extractor interface {
	Extract(archivePath, intoDir string) (string, error)
}

// Preferences exposes the host's persisted per-system default core choice.
type Preferences interface {
	DefaultCore(systemID string) (coreID string, ok bool)
}
