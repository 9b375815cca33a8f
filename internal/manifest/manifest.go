package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed indicates the manifest payload violated the wire schema.
// Callers treat it as a failed fetch, not a fatal condition.
var ErrMalformed = errors.New("malformed manifest")

// Release is one downloadable version of a core. Immutable once decoded.
type Release struct {
	Version              string   `json:"version"`
	URL                  string   `json:"url"`
	SHA256               string   `json:"sha256"`
	MinimumSystemVersion string   `json:"minimumSystemVersion"`
	Architectures        []string `json:"architectures"`
}

// Core describes one pluggable emulation core and its published releases.
type Core struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Systems      []string  `json:"systems"`
	Releases     []Release `json:"releases"`
	Experimental bool      `json:"experimental,omitempty"`
	Deprecated   bool      `json:"deprecated,omitempty"`
}

// Identifier returns the lower-cased bundle identifier used for matching
// against installed plugins.
func (c Core) Identifier() string {
	return strings.ToLower(c.ID)
}

// Parse decodes a manifest body into core entries. Schema violations wrap
// ErrMalformed so callers can classify them without string matching.
func Parse(data []byte) ([]Core, error) {
	var cores []Core
	if err := json.Unmarshal(data, &cores); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i, core := range cores {
		if strings.TrimSpace(core.ID) == "" {
			return nil, fmt.Errorf("%w: core %d missing id", ErrMalformed, i)
		}
		if strings.TrimSpace(core.Name) == "" {
			return nil, fmt.Errorf("%w: core %q missing name", ErrMalformed, core.ID)
		}
		for j, rel := range core.Releases {
			if strings.TrimSpace(rel.Version) == "" {
				return nil, fmt.Errorf("%w: core %q release %d missing version", ErrMalformed, core.ID, j)
			}
			if strings.TrimSpace(rel.URL) == "" {
				return nil, fmt.Errorf("%w: core %q release %s missing url", ErrMalformed, core.ID, rel.Version)
			}
			if strings.TrimSpace(rel.SHA256) == "" {
				return nil, fmt.Errorf("%w: core %q release %s missing sha256", ErrMalformed, core.ID, rel.Version)
			}
		}
	}
	return cores, nil
}

// Encode renders core entries in the wire format: pretty-printed, slashes left
// unescaped, trailing newline. This is the exact layout the manifest tool
// writes back to disk.
func Encode(cores []Core) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cores); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}
