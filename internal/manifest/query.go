package manifest

import (
	"strings"

	"coreupdater/internal/version"
)

// SupportedOn reports whether the release can run in the given environment.
func (r Release) SupportedOn(env version.Environment) bool {
	return env.Supports(r.MinimumSystemVersion, r.Architectures)
}

// LatestSupportedRelease returns the newest release of the core that the
// environment supports. When two releases carry an identical version string
// the first one encountered wins; manifest producers are expected to keep
// versions unique, so the tie-break is a don't-care rather than an error.
func LatestSupportedRelease(core Core, env version.Environment) (Release, bool) {
	var (
		best  Release
		found bool
	)
	for _, rel := range core.Releases {
		if !rel.SupportedOn(env) {
			continue
		}
		if !found || version.Compare(rel.Version, best.Version) > 0 {
			best = rel
			found = true
		}
	}
	return best, found
}

// FindCore locates a core entry by identifier, matched case-insensitively.
func FindCore(cores []Core, identifier string) (Core, bool) {
	want := strings.ToLower(identifier)
	for _, core := range cores {
		if core.Identifier() == want {
			return core, true
		}
	}
	return Core{}, false
}
