package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"coreupdater/internal/plugins"
)

// State is the lifecycle position of a download task.
type State string

const (
	StateIdle        State = "idle"
	StateDownloading State = "downloading"
	StateVerifying   State = "verifying"
	StateInstalled   State = "installed"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

// IsTerminal reports whether the state ends the task's lifecycle.
func (s State) IsTerminal() bool {
	switch s {
	case StateInstalled, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Logger is the minimal logging dependency; a nil logger is silent.
type Logger interface {
	Printf(format string, v ...any)
}

// Config carries the collaborators and directories a task installs through.
type Config struct {
	Client       *http.Client
	Extractor    plugins.Extractor
	Registry     plugins.Registry
	CoresDir     string
	DownloadsDir string
	Logger       Logger
}

// Task manages one core's pending update or fresh install: a single network
// transfer driven through download, verification and installation. Exactly
// one of HasUpdate/CanBeInstalled is meaningful per task.
type Task struct {
	CoreID         string
	Name           string
	Systems        []string
	Version        string
	URL            string
	SHA256         string
	HasUpdate      bool
	CanBeInstalled bool

	cfg Config

	mu            sync.Mutex
	state         State
	progress      float64
	cancelled     bool
	installing    bool
	userInitiated bool
	cancel        context.CancelFunc
	sinks         map[int]Sink
	nextSub       int
}

// New creates an idle task for the given release descriptor.
func New(cfg Config) *Task {
	return &Task{cfg: cfg, state: StateIdle}
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Progress returns the last reported transfer fraction in [0,1].
func (t *Task) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// MarkUserInitiated flags the task as explicitly requested by the user so
// its failure surfaces beyond the log. Safe to call while the transfer runs.
func (t *Task) MarkUserInitiated() {
	t.mu.Lock()
	t.userInitiated = true
	t.mu.Unlock()
}

// UserInitiated reports whether the user explicitly requested this install.
func (t *Task) UserInitiated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userInitiated
}

// IsDownloading reports whether a transfer is in flight.
func (t *Task) IsDownloading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateDownloading || t.state == StateVerifying
}

// Start opens the transfer. Calling it on a task that is not idle, or on a
// task without a URL, is a safe no-op: no second transfer is ever opened and
// there is no restart-from-partial.
func (t *Task) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	t.mu.Lock()
	if t.state != StateIdle || t.URL == "" {
		t.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.state = StateDownloading
	t.progress = 0
	t.cancelled = false
	t.installing = false
	t.cancel = cancel
	t.mu.Unlock()

	t.logf("download start core=%s version=%s url=%s", t.CoreID, t.Version, t.URL)
	t.emit(Event{Kind: EventStarted})

	go t.run(runCtx)
}

// Cancel aborts an in-flight transfer or verification immediately. The
// cancellation is reported through the failure channel with ErrCancelled.
// Once the install commit has begun the bundle swap runs to completion, so
// Cancel is rejected from that point on, as in any terminal state.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.installing || (t.state != StateDownloading && t.state != StateVerifying) {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (t *Task) run(ctx context.Context) {
	archivePath, err := t.download(ctx)
	if err != nil {
		t.fail(t.classify(err))
		return
	}

	t.setState(StateVerifying)
	if err := t.verify(ctx, archivePath); err != nil {
		// A failed-verification artifact must never be left where the
		// installer could later pick it up.
		_ = os.Remove(archivePath)
		t.fail(t.classify(err))
		return
	}

	if !t.beginInstall(ctx) {
		_ = os.Remove(archivePath)
		t.fail(ErrCancelled)
		return
	}

	handle, err := t.install(archivePath)
	_ = os.Remove(archivePath)
	if err != nil {
		t.fail(t.classify(err))
		return
	}

	t.setState(StateInstalled)
	t.logf("install finished core=%s version=%s path=%s", t.CoreID, t.Version, handle.Path)
	t.emit(Event{Kind: EventFinished, Progress: 1, Handle: handle})
}

func (t *Task) download(ctx context.Context) (string, error) {
	if err := os.MkdirAll(t.cfg.DownloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare downloads dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "coreupdater/1.0")

	client := t.cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", t.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download %s: unexpected status %s", t.URL, resp.Status)
	}

	tmpFile, err := os.CreateTemp(t.cfg.DownloadsDir, t.CoreID+"-*.download")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	pw := &progressWriter{task: t, total: resp.ContentLength}
	_, copyErr := io.Copy(io.MultiWriter(tmpFile, pw), resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write payload: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w", closeErr)
	}
	return tmpPath, nil
}

func (t *Task) verify(ctx context.Context, archivePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return fmt.Errorf("hash payload: %w", err)
	}
	sum := hex.EncodeToString(h.Sum(nil))

	if !strings.EqualFold(sum, t.SHA256) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, sum, strings.ToLower(t.SHA256))
	}
	return nil
}

// beginInstall is the last cancellation point. It either honors a cancel
// accepted during download or verification, or closes the cancel window so
// the commit runs uninterrupted.
func (t *Task) beginInstall(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || ctx.Err() != nil {
		return false
	}
	t.installing = true
	return true
}

func (t *Task) install(archivePath string) (plugins.Handle, error) {
	installedName, err := t.cfg.Extractor.Extract(archivePath, t.cfg.CoresDir)
	if err != nil {
		return plugins.Handle{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	handle, err := t.cfg.Registry.Load(filepath.Join(t.cfg.CoresDir, installedName))
	if err != nil {
		return plugins.Handle{}, fmt.Errorf("%w: %v", ErrPluginLoadFailed, err)
	}

	if t.HasUpdate {
		// Drop stale cached bundle metadata so the new version is observed
		// immediately.
		if err := t.cfg.Registry.Refresh(t.CoreID); err != nil {
			return plugins.Handle{}, fmt.Errorf("%w: refresh: %v", ErrPluginLoadFailed, err)
		}
	}
	return handle, nil
}

// classify maps context cancellation onto ErrCancelled when the task was
// cancelled through Cancel; everything else passes through unchanged.
func (t *Task) classify(err error) error {
	t.mu.Lock()
	cancelled := t.cancelled
	t.mu.Unlock()

	if cancelled || errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return err
}

func (t *Task) fail(err error) {
	t.mu.Lock()
	if errors.Is(err, ErrCancelled) {
		t.state = StateCancelled
	} else {
		t.state = StateFailed
	}
	t.mu.Unlock()

	t.logf("download failed core=%s: %v", t.CoreID, err)
	t.emit(Event{Kind: EventFailed, Err: err})
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *Task) setProgress(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	t.mu.Lock()
	t.progress = p
	t.mu.Unlock()
	t.emit(Event{Kind: EventProgress, Progress: p})
}

func (t *Task) logf(format string, v ...any) {
	if t.cfg.Logger == nil {
		return
	}
	t.cfg.Logger.Printf(format, v...)
}

// progressWriter reports written/total to the task. When the total size is
// unknown the fraction stays clamped at zero (indeterminate) instead of
// dividing by zero.
type progressWriter struct {
	task    *Task
	total   int64
	written int64
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		w.task.setProgress(float64(w.written) / float64(w.total))
	}
	return len(p), nil
}
