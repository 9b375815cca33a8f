package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// AppPaths captures canonical locations for the updater's on-disk state.
type AppPaths struct {
	Root         string
	ConfigFile   string
	CoresDir     string
	DownloadsDir string
	LogsDir      string
	PrefsFile    string
}

// Resolve determines the support root using the optional --support flag or the
// per-user application support directory when the flag is empty.
func Resolve(supportFlag string) (AppPaths, error) {
	var (
		root string
		err  error
	)

	if supportFlag != "" {
		root, err = filepath.Abs(supportFlag)
		if err != nil {
			return AppPaths{}, fmt.Errorf("resolve support root: %w", err)
		}
	} else {
		root, err = supportRoot()
		if err != nil {
			return AppPaths{}, err
		}
	}

	return newAppPaths(root), nil
}

func newAppPaths(root string) AppPaths {
	return AppPaths{
		Root:         root,
		ConfigFile:   filepath.Join(root, "coreupdater.yaml"),
		CoresDir:     filepath.Join(root, "Cores"),
		DownloadsDir: filepath.Join(root, "downloads"),
		LogsDir:      filepath.Join(root, "logs"),
		PrefsFile:    filepath.Join(root, "preferences.json"),
	}
}

// supportRoot determines the per-user support directory for the updater.
func supportRoot() (string, error) {
	if override, ok := os.LookupEnv("COREUPDATER_SUPPORT_DIR"); ok && override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolve COREUPDATER_SUPPORT_DIR: %w", err)
		}
		return abs, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "CoreUpdater"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "CoreUpdater"), nil
		}
		return filepath.Join(home, "AppData", "Local", "CoreUpdater"), nil
	default:
		return filepath.Join(home, ".local", "share", "coreupdater"), nil
	}
}

// EnsureDirs creates the directories the updater writes into.
func (p AppPaths) EnsureDirs() error {
	for _, dir := range []string{p.Root, p.CoresDir, p.DownloadsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure dir %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
