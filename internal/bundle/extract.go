package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ZipExtractor unpacks verified release archives into the cores directory.
// Extraction lands in a temporary directory first and the bundle is committed
// with a rename, so a crashed extraction never leaves a half-written bundle
// in place.
type ZipExtractor struct{}

// Extract unpacks the archive into intoDir and returns the installed bundle
// name. The archive must contain exactly one top-level *.coreplugin
// directory.
func (ZipExtractor) Extract(archivePath, intoDir string) (string, error) {
	if err := os.MkdirAll(intoDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare cores dir: %w", err)
	}

	tmpDir, err := os.MkdirTemp(intoDir, ".extract-*")
	if err != nil {
		return "", fmt.Errorf("create extract dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	if err := extractZip(archivePath, tmpDir); err != nil {
		return "", err
	}

	name, err := bundleName(tmpDir)
	if err != nil {
		return "", err
	}

	target := filepath.Join(intoDir, name)
	if err := os.RemoveAll(target); err != nil {
		return "", fmt.Errorf("replace bundle %s: %w", name, err)
	}
	if err := os.Rename(filepath.Join(tmpDir, name), target); err != nil {
		return "", fmt.Errorf("commit bundle %s: %w", name, err)
	}
	committed = true
	_ = os.RemoveAll(tmpDir)

	return name, nil
}

// bundleName finds the single top-level *.coreplugin directory in an
// extracted archive.
func bundleName(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read extract dir: %w", err)
	}

	var name string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}
		if name != "" {
			return "", fmt.Errorf("archive contains multiple bundles: %s, %s", name, entry.Name())
		}
		name = entry.Name()
	}
	if name == "" {
		return "", fmt.Errorf("archive contains no %s bundle", Ext)
	}
	return name, nil
}

func extractZip(archivePath, dest string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		target := filepath.Join(dest, filepath.FromSlash(file.Name))

		// Reject entries that would escape the extraction directory.
		rel, err := filepath.Rel(dest, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("zip entry %q escapes extract dir", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, file.Mode()); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("prepare file %s: %w", target, err)
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", file.Name, err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, file.Mode())
		if err != nil {
			rc.Close()
			return fmt.Errorf("create file %s: %w", target, err)
		}
		if _, err := io.Copy(out, rc); err != nil {
			rc.Close()
			out.Close()
			return fmt.Errorf("copy file %s: %w", target, err)
		}
		rc.Close()
		if err := out.Close(); err != nil {
			return fmt.Errorf("close file %s: %w", target, err)
		}
	}
	return nil
}
