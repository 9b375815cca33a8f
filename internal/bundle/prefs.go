package bundle

import (
	"encoding/json"
	"os"
	"strings"

	"coreupdater/internal/config"
	"coreupdater/internal/paths"
)

// defaultCorePrefix keys the persisted per-system core choice, e.g.
// "defaultCore.nes".
const defaultCorePrefix = "defaultCore."

// Preferences resolves the persisted default core for a system: the host's
// preferences file wins, with the updater config's default_cores map as a
// fallback.
type Preferences struct {
	Path   string
	Config config.Config
}

// DefaultCore implements plugins.Preferences.
func (p Preferences) DefaultCore(systemID string) (string, bool) {
	if core, ok := p.fromFile(systemID); ok {
		return core, true
	}
	return p.Config.DefaultCore(systemID)
}

func (p Preferences) fromFile(systemID string) (string, bool) {
	if p.Path == "" {
		return "", false
	}
	// A host without a preferences file is the common case, not an error.
	if ok, err := paths.FileExists(p.Path); err != nil || !ok {
		return "", false
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", false
	}

	var prefs map[string]string
	if err := json.Unmarshal(data, &prefs); err != nil {
		return "", false
	}

	want := strings.ToLower(defaultCorePrefix + systemID)
	for key, core := range prefs {
		if strings.ToLower(key) == want && strings.TrimSpace(core) != "" {
			return strings.ToLower(core), true
		}
	}
	return "", false
}
