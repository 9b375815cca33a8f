package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coreupdater/internal/manifest"
	"coreupdater/internal/version"
)

func buildBundleZip(t *testing.T, identifier, ver string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	meta, err := zw.Create("test.coreplugin/core.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := meta.Write([]byte(`{"identifier":"` + identifier + `","version":"` + ver + `"}`)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func installBundle(t *testing.T, supportRoot, name, identifier, ver string) {
	t.Helper()
	dir := filepath.Join(supportRoot, "Cores", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{"identifier":"` + identifier + `","version":"` + ver + `"}`
	if err := os.WriteFile(filepath.Join(dir, "core.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newFixture serves a payload and a manifest with one update and one fresh
// core, and points a support directory's config at the manifest server.
func newFixture(t *testing.T) (supportRoot string, payload []byte) {
	t.Helper()
	supportRoot = t.TempDir()
	arch := version.Current(context.Background()).Architecture

	payload = buildBundleZip(t, "org.example.nestopia", "2.0")
	sum := sha256.Sum256(payload)

	payloadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	t.Cleanup(payloadSrv.Close)

	cores := []manifest.Core{
		{
			ID:      "org.example.nestopia",
			Name:    "Nestopia",
			Systems: []string{"nes"},
			Releases: []manifest.Release{{
				Version:       "2.0",
				URL:           payloadSrv.URL + "/nestopia-2.0.zip",
				SHA256:        hex.EncodeToString(sum[:]),
				Architectures: []string{arch},
			}},
		},
		{
			ID:      "org.example.snes9x",
			Name:    "Snes9x",
			Systems: []string{"snes"},
			Releases: []manifest.Release{{
				Version:       "1.5",
				URL:           payloadSrv.URL + "/snes9x-1.5.zip",
				SHA256:        strings.Repeat("b", 64),
				Architectures: []string{arch},
			}},
		},
	}
	body, err := manifest.Encode(cores)
	if err != nil {
		t.Fatal(err)
	}

	manifestSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(manifestSrv.Close)

	cfg := "version: 1\nmanifest:\n  url: " + manifestSrv.URL + "/manifest.json\n"
	if err := os.MkdirAll(supportRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(supportRoot, "coreupdater.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	// Nestopia 1.0 is already installed, so the manifest's 2.0 is an update.
	installBundle(t, supportRoot, "nestopia.coreplugin", "org.example.nestopia", "1.0")
	return supportRoot, payload
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCheckReportsUpdateAndNewCore(t *testing.T) {
	supportRoot, _ := newFixture(t)

	out, err := runCommand(t, "check", "--support", supportRoot, "--json")
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	var payload struct {
		Cores []checkRow `json:"cores"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode check output: %v\n%s", err, out)
	}
	if len(payload.Cores) != 2 {
		t.Fatalf("expected 2 cores, got %d", len(payload.Cores))
	}
	// Sorted by display name: Nestopia then Snes9x.
	if payload.Cores[0].Core != "org.example.nestopia" || payload.Cores[0].Kind != "update" {
		t.Fatalf("unexpected first row: %+v", payload.Cores[0])
	}
	if payload.Cores[1].Core != "org.example.snes9x" || payload.Cores[1].Kind != "new" {
		t.Fatalf("unexpected second row: %+v", payload.Cores[1])
	}
	if payload.Cores[0].Version != "2.0" {
		t.Fatalf("unexpected update version: %s", payload.Cores[0].Version)
	}
}

func TestInstallBySystemInstallsBundle(t *testing.T) {
	supportRoot, _ := newFixture(t)

	out, err := runCommand(t, "install", "--support", supportRoot, "--system", "nes", "--yes")
	if err != nil {
		t.Fatalf("install: %v\n%s", err, out)
	}
	if !strings.Contains(out, "installed Nestopia 2.0") {
		t.Fatalf("expected install confirmation, got:\n%s", out)
	}

	metaPath := filepath.Join(supportRoot, "Cores", "test.coreplugin", "core.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("expected installed bundle: %v", err)
	}
	if !strings.Contains(string(data), `"2.0"`) {
		t.Fatalf("unexpected bundle metadata: %s", data)
	}

	// The downloads directory must not keep the verified artifact.
	entries, err := os.ReadDir(filepath.Join(supportRoot, "downloads"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty downloads dir, found %d entries", len(entries))
	}
}

func TestInstallByIdentifier(t *testing.T) {
	supportRoot, _ := newFixture(t)

	out, err := runCommand(t, "install", "--support", supportRoot, "--yes", "ORG.EXAMPLE.NESTOPIA")
	if err != nil {
		t.Fatalf("install: %v\n%s", err, out)
	}
	if !strings.Contains(out, "installed Nestopia 2.0") {
		t.Fatalf("expected install confirmation, got:\n%s", out)
	}
}

func TestInstallChecksumMismatchFails(t *testing.T) {
	supportRoot, _ := newFixture(t)

	// Snes9x's manifest hash never matches the served payload.
	out, err := runCommand(t, "install", "--support", supportRoot, "--yes", "org.example.snes9x")
	if err == nil {
		t.Fatalf("expected checksum failure, got:\n%s", out)
	}
	if !strings.Contains(err.Error(), "checksum") {
		t.Fatalf("expected checksum error, got %v", err)
	}
}

func TestInstallUnknownCore(t *testing.T) {
	supportRoot, _ := newFixture(t)

	_, err := runCommand(t, "install", "--support", supportRoot, "--yes", "org.example.unknown")
	if err == nil || !strings.Contains(err.Error(), "not available") {
		t.Fatalf("expected core-not-available error, got %v", err)
	}
}

func TestInstallRequiresConfirmationWhenNotInteractive(t *testing.T) {
	supportRoot, _ := newFixture(t)

	_, err := runCommand(t, "install", "--support", supportRoot, "org.example.nestopia")
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected confirmation error, got %v", err)
	}
}

func TestListShowsInstalledCores(t *testing.T) {
	supportRoot, _ := newFixture(t)

	out, err := runCommand(t, "list", "--support", supportRoot)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "org.example.nestopia") || !strings.Contains(out, "1.0") {
		t.Fatalf("expected installed core in output:\n%s", out)
	}
}
