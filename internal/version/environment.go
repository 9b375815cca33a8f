package version

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Architecture tokens used throughout manifests and bundle metadata.
const (
	ArchARM64 = "arm64"
	ArchX8664 = "x86_64"
)

// Environment describes the machine a release candidate must run on.
type Environment struct {
	OSVersion    string
	Architecture string
}

// Current snapshots the host environment. The OS version probe is best-effort;
// an empty OSVersion disables the minimum-version check rather than failing
// every release.
func Current(ctx context.Context) Environment {
	if ctx == nil {
		ctx = context.Background()
	}
	return Environment{
		OSVersion:    hostOSVersion(ctx),
		Architecture: hostArchitecture(),
	}
}

func hostArchitecture() string {
	switch runtime.GOARCH {
	case "amd64":
		return ArchX8664
	case "arm64":
		return ArchARM64
	default:
		return runtime.GOARCH
	}
}

func hostOSVersion(ctx context.Context) string {
	if override := os.Getenv("COREUPDATER_OS_VERSION"); override != "" {
		return override
	}
	if runtime.GOOS == "darwin" {
		out, err := exec.CommandContext(ctx, "sw_vers", "-productVersion").Output()
		if err == nil {
			return strings.TrimSpace(string(out))
		}
	}
	return ""
}

// Supports reports whether a release constrained to minOSVersion and archs can
// run in this environment. The architecture list is authoritative: an absent
// architecture fails the check regardless of OS version.
func (e Environment) Supports(minOSVersion string, archs []string) bool {
	found := false
	for _, arch := range archs {
		if strings.EqualFold(arch, e.Architecture) {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if minOSVersion == "" || e.OSVersion == "" {
		return true
	}
	return Compare(minOSVersion, e.OSVersion) <= 0
}
