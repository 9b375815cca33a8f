// Package manifesttool maintains the published release manifest: it inspects
// built plugin archives and appends matching Release entries. Existing
// entries are never removed or reordered.
package manifesttool

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"coreupdater/internal/bundle"
	"coreupdater/internal/manifest"
)

// DefaultURLTemplate derives a release download URL from the per-core
// repository mapping. Placeholders: {repo}, {version}, {file}.
const DefaultURLTemplate = "https://github.com/{repo}/releases/download/v{version}/{file}"

// Options configures an append run.
type Options struct {
	// ManifestPath is the manifest JSON file to update.
	ManifestPath string
	// Repos maps lower-cased core identifiers to repository names used in
	// the download URL.
	Repos map[string]string
	// URLTemplate overrides DefaultURLTemplate when set.
	URLTemplate string
	// MinimumSystemVersion is recorded on every appended release.
	MinimumSystemVersion string
}

// archiveInfo is what one plugin archive contributes to a Release entry.
type archiveInfo struct {
	Identifier    string
	Version       string
	SHA256        string
	Architectures []string
	FileName      string
}

// AppendReleases inspects each archive and appends a Release to the matching
// core in the manifest, then rewrites the file in the wire format.
func AppendReleases(opts Options, archivePaths []string) error {
	cores, err := loadManifest(opts.ManifestPath)
	if err != nil {
		return err
	}

	for _, archivePath := range archivePaths {
		info, err := inspectArchive(archivePath)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", filepath.Base(archivePath), err)
		}

		release, err := buildRelease(opts, info)
		if err != nil {
			return err
		}

		idx := coreIndex(cores, info.Identifier)
		if idx < 0 {
			return fmt.Errorf("no core %q in manifest", info.Identifier)
		}
		cores[idx].Releases = append(cores[idx].Releases, release)
	}

	return saveManifest(opts.ManifestPath, cores)
}

func buildRelease(opts Options, info archiveInfo) (manifest.Release, error) {
	repo, ok := repoFor(opts.Repos, info.Identifier)
	if !ok {
		return manifest.Release{}, fmt.Errorf("no repository mapping for core %q", info.Identifier)
	}

	template := opts.URLTemplate
	if template == "" {
		template = DefaultURLTemplate
	}
	url := strings.NewReplacer(
		"{repo}", repo,
		"{version}", info.Version,
		"{file}", info.FileName,
	).Replace(template)

	return manifest.Release{
		Version:              info.Version,
		URL:                  url,
		SHA256:               info.SHA256,
		MinimumSystemVersion: opts.MinimumSystemVersion,
		Architectures:        info.Architectures,
	}, nil
}

// repoFor matches the mapping key case-insensitively.
func repoFor(repos map[string]string, identifier string) (string, bool) {
	for key, repo := range repos {
		if strings.EqualFold(key, identifier) {
			return repo, true
		}
	}
	return "", false
}

func coreIndex(cores []manifest.Core, identifier string) int {
	for i, core := range cores {
		if core.Identifier() == identifier {
			return i
		}
	}
	return -1
}

// inspectArchive reads the bundle metadata, hashes the archive, and detects
// the architectures of the bundled executable.
func inspectArchive(archivePath string) (archiveInfo, error) {
	sum, err := fileSHA256(archivePath)
	if err != nil {
		return archiveInfo{}, err
	}

	meta, err := readBundleMetadata(archivePath)
	if err != nil {
		return archiveInfo{}, err
	}

	archs := meta.Architectures
	if len(archs) == 0 {
		archs, err = detectArchitectures(archivePath)
		if err != nil {
			return archiveInfo{}, err
		}
	}

	return archiveInfo{
		Identifier:    strings.ToLower(meta.Identifier),
		Version:       meta.Version,
		SHA256:        sum,
		Architectures: archs,
		FileName:      filepath.Base(archivePath),
	}, nil
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash archive: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// readBundleMetadata finds the bundle's core.json inside the archive.
func readBundleMetadata(archivePath string) (bundle.Metadata, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return bundle.Metadata{}, fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		parts := strings.Split(file.Name, "/")
		if len(parts) != 2 || !strings.HasSuffix(parts[0], bundle.Ext) || parts[1] != bundle.MetadataFile {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return bundle.Metadata{}, fmt.Errorf("open bundle metadata: %w", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return bundle.Metadata{}, fmt.Errorf("read bundle metadata: %w", err)
		}

		var meta bundle.Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return bundle.Metadata{}, fmt.Errorf("decode bundle metadata: %w", err)
		}
		if strings.TrimSpace(meta.Identifier) == "" {
			return bundle.Metadata{}, fmt.Errorf("bundle metadata missing identifier")
		}
		if strings.TrimSpace(meta.Version) == "" {
			return bundle.Metadata{}, fmt.Errorf("bundle metadata missing version")
		}
		return meta, nil
	}
	return bundle.Metadata{}, fmt.Errorf("archive contains no %s/%s", bundle.Ext, bundle.MetadataFile)
}

func loadManifest(path string) ([]manifest.Core, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	cores, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}
	return cores, nil
}

func saveManifest(path string, cores []manifest.Core) error {
	buf, err := manifest.Encode(cores)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "manifest-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
