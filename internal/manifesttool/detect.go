package manifesttool

import (
	"archive/zip"
	"bytes"
	"debug/macho"
	"fmt"
	"io"
	"sort"

	"coreupdater/internal/version"
)

// detectArchitectures reads the bundled Mach-O executable and reports which
// CPU architectures it carries. Fat binaries contribute every embedded slice.
func detectArchitectures(archivePath string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read zip entry %s: %w", file.Name, err)
		}

		archs, ok := machoArchitectures(data)
		if ok {
			return archs, nil
		}
	}
	return nil, fmt.Errorf("archive contains no Mach-O executable")
}

// machoArchitectures parses data as a thin or fat Mach-O file.
func machoArchitectures(data []byte) ([]string, bool) {
	at := bytes.NewReader(data)

	if fat, err := macho.NewFatFile(at); err == nil {
		seen := map[string]bool{}
		var archs []string
		for _, arch := range fat.Arches {
			token, ok := archToken(arch.Cpu)
			if !ok || seen[token] {
				continue
			}
			seen[token] = true
			archs = append(archs, token)
		}
		fat.Close()
		sort.Strings(archs)
		return archs, len(archs) > 0
	}

	if thin, err := macho.NewFile(at); err == nil {
		token, ok := archToken(thin.Cpu)
		thin.Close()
		if !ok {
			return nil, false
		}
		return []string{token}, true
	}

	return nil, false
}

func archToken(cpu macho.Cpu) (string, bool) {
	switch cpu {
	case macho.CpuArm64:
		return version.ArchARM64, true
	case macho.CpuAmd64:
		return version.ArchX8664, true
	default:
		return "", false
	}
}
