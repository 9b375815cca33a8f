package bundle

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"coreupdater/internal/config"
)

func writeBundle(t *testing.T, coresDir, name string, meta Metadata) string {
	t.Helper()
	path := filepath.Join(coresDir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir bundle: %v", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	if err := os.WriteFile(filepath.Join(path, MetadataFile), data, 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	return path
}

func TestRegistryListAndLookup(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "nestopia.coreplugin", Metadata{
		Identifier: "org.example.Nestopia",
		Version:    "1.5",
		Systems:    []string{"nes"},
	})
	writeBundle(t, dir, "snes9x.coreplugin", Metadata{
		Identifier: "org.example.snes9x",
		Version:    "2.0",
		Systems:    []string{"snes"},
	})
	// Non-bundle entries are ignored.
	if err := os.MkdirAll(filepath.Join(dir, "not-a-bundle"), 0o755); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(dir)
	installed, err := reg.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(installed) != 2 {
		t.Fatalf("expected 2 installed plugins, got %d", len(installed))
	}

	plugin, ok := reg.Lookup("ORG.EXAMPLE.NESTOPIA")
	if !ok {
		t.Fatal("expected case-insensitive lookup to match")
	}
	if plugin.Version != "1.5" {
		t.Fatalf("unexpected version: %s", plugin.Version)
	}
}

func TestRegistryMissingDirIsEmpty(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "nonexistent"))
	installed, err := reg.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(installed) != 0 {
		t.Fatalf("expected empty registry, got %d", len(installed))
	}
}

func TestRegistryRefreshObservesNewVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeBundle(t, dir, "nestopia.coreplugin", Metadata{
		Identifier: "org.example.nestopia",
		Version:    "1.0",
	})

	reg := NewRegistry(dir)
	if plugin, _ := reg.Lookup("org.example.nestopia"); plugin.Version != "1.0" {
		t.Fatalf("expected cached 1.0, got %s", plugin.Version)
	}

	// Simulate an in-place update behind the cache's back.
	data, _ := json.Marshal(Metadata{Identifier: "org.example.nestopia", Version: "1.1"})
	if err := os.WriteFile(filepath.Join(path, MetadataFile), data, 0o644); err != nil {
		t.Fatal(err)
	}

	// The stale cache still answers 1.0 until refreshed.
	if plugin, _ := reg.Lookup("org.example.nestopia"); plugin.Version != "1.0" {
		t.Fatalf("expected stale cache to answer 1.0, got %s", plugin.Version)
	}

	if err := reg.Refresh("org.example.nestopia"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if plugin, _ := reg.Lookup("org.example.nestopia"); plugin.Version != "1.1" {
		t.Fatalf("expected refreshed 1.1, got %s", plugin.Version)
	}
}

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "release.zip")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(file)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestZipExtractorInstallsBundle(t *testing.T) {
	meta, _ := json.Marshal(Metadata{Identifier: "org.example.foo", Version: "1.0"})
	archive := writeArchive(t, map[string]string{
		"foo.coreplugin/core.json":  string(meta),
		"foo.coreplugin/bin/foo":    "binary",
		"foo.coreplugin/assets/ico": "icon",
	})

	coresDir := filepath.Join(t.TempDir(), "cores")
	name, err := ZipExtractor{}.Extract(archive, coresDir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if name != "foo.coreplugin" {
		t.Fatalf("unexpected bundle name: %s", name)
	}

	if _, err := os.Stat(filepath.Join(coresDir, name, "bin", "foo")); err != nil {
		t.Fatalf("expected extracted file: %v", err)
	}

	// No leftover temp dirs after a successful commit.
	entries, err := os.ReadDir(coresDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the bundle in cores dir, found %d entries", len(entries))
	}
}

func TestZipExtractorReplacesExistingBundle(t *testing.T) {
	coresDir := filepath.Join(t.TempDir(), "cores")
	writeBundle(t, coresDir, "foo.coreplugin", Metadata{Identifier: "org.example.foo", Version: "0.9"})
	stale := filepath.Join(coresDir, "foo.coreplugin", "stale.txt")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	meta, _ := json.Marshal(Metadata{Identifier: "org.example.foo", Version: "1.0"})
	archive := writeArchive(t, map[string]string{"foo.coreplugin/core.json": string(meta)})

	if _, err := (ZipExtractor{}).Extract(archive, coresDir); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expected stale file to be removed with the old bundle")
	}
}

func TestZipExtractorRejectsMissingBundle(t *testing.T) {
	archive := writeArchive(t, map[string]string{"README.txt": "no bundle here"})
	if _, err := (ZipExtractor{}).Extract(archive, filepath.Join(t.TempDir(), "cores")); err == nil {
		t.Fatal("expected error for archive without a bundle")
	}
}

func TestZipExtractorRejectsEscapingEntry(t *testing.T) {
	archive := writeArchive(t, map[string]string{"../evil.txt": "outside"})
	if _, err := (ZipExtractor{}).Extract(archive, filepath.Join(t.TempDir(), "cores")); err == nil {
		t.Fatal("expected error for entry escaping the extract dir")
	}
}

func TestPreferencesFileWinsOverConfig(t *testing.T) {
	prefsPath := filepath.Join(t.TempDir(), "preferences.json")
	body, _ := json.Marshal(map[string]string{"defaultCore.nes": "org.example.FromFile"})
	if err := os.WriteFile(prefsPath, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Defaults = map[string]string{"nes": "org.example.fromconfig"}

	prefs := Preferences{Path: prefsPath, Config: cfg}
	core, ok := prefs.DefaultCore("nes")
	if !ok || core != "org.example.fromfile" {
		t.Fatalf("expected file preference to win, got %q ok=%v", core, ok)
	}

	// Systems absent from the file fall back to config.
	core, ok = prefs.DefaultCore("snes")
	if ok {
		t.Fatalf("expected no default for snes, got %q", core)
	}

	cfg.Defaults["snes"] = "org.example.snes9x"
	prefs.Config = cfg
	core, ok = prefs.DefaultCore("snes")
	if !ok || core != "org.example.snes9x" {
		t.Fatalf("expected config fallback, got %q ok=%v", core, ok)
	}
}
