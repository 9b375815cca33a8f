// Package coordinator is the process-wide coordination point for core
// installs: it owns the task table produced by resolution passes, enforces
// the single-foreground-install rule, deduplicates transfers per core
// identifier and relays progress to the presentation layer.
package coordinator

import (
	"context"
	"sort"
	"strings"
	"sync"

	"coreupdater/internal/download"
	"coreupdater/internal/manifest"
	"coreupdater/internal/plugins"
	"coreupdater/internal/resolver"
	"coreupdater/internal/version"
)

// Catalog is the manifest source. *manifest.Service satisfies it.
type Catalog interface {
	Fetch(ctx context.Context) ([]manifest.Core, error)
	Snapshot() ([]manifest.Core, bool)
}

// Confirmer runs the user confirmation step before a foreground transfer
// starts.
type Confirmer interface {
	Confirm(task *download.Task) bool
}

// Presenter receives foreground install feedback. Implementations must not
// block; calls arrive on the download worker goroutine.
type Presenter interface {
	InstallStarted(task *download.Task)
	InstallProgress(task *download.Task, fraction float64)
	InstallFinished(task *download.Task, handle plugins.Handle)
	InstallFailed(task *download.Task, err error)
}

// Logger is the minimal logging dependency; nil is silent.
type Logger interface {
	Printf(format string, v ...any)
}

// Config wires the coordinator's collaborators.
type Config struct {
	Catalog           Catalog
	Registry          plugins.Registry
	Preferences       plugins.Preferences
	Confirmer         Confirmer
	Presenter         Presenter
	Env               version.Environment
	ExperimentalOptIn bool
	TaskConfig        download.Config
	Logger            Logger
}

// Coordinator mediates at most one foreground install at a time while any
// number of background installs proceed independently. Construct one per
// process and hand it to callers by reference.
type Coordinator struct {
	cfg Config

	mu         sync.Mutex
	tasks      map[string]*download.Task
	list       []*download.Task
	inflight   map[string]struct{}
	foreground *download.Task
}

// New creates a coordinator with an empty task table.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		tasks:    make(map[string]*download.Task),
		inflight: make(map[string]struct{}),
	}
}

// CheckForUpdates fetches the manifest, snapshots installed plugins and
// rebuilds the task table wholesale. Fetch and parse failures propagate to
// the caller; a previously built task table survives them.
func (c *Coordinator) CheckForUpdates(ctx context.Context) (resolver.Result, error) {
	cores, err := c.cfg.Catalog.Fetch(ctx)
	if err != nil {
		c.logf("manifest fetch failed: %v", err)
		return resolver.Result{}, err
	}

	installed, err := c.cfg.Registry.List()
	if err != nil {
		return resolver.Result{}, err
	}

	res := resolver.Resolve(cores, installed, c.cfg.Env, resolver.Options{
		ExperimentalOptIn: c.cfg.ExperimentalOptIn,
		TaskConfig:        c.cfg.TaskConfig,
	})

	c.mu.Lock()
	c.tasks = make(map[string]*download.Task, len(res.Updates)+len(res.NewCores))
	for _, task := range res.Updates {
		c.adoptLocked(task)
	}
	for _, task := range res.NewCores {
		c.adoptLocked(task)
	}
	c.rebuildLocked()
	c.mu.Unlock()

	return res, nil
}

// adoptLocked registers a resolved task and installs the coordinator's own
// lifecycle sink. Caller holds c.mu.
func (c *Coordinator) adoptLocked(task *download.Task) {
	c.tasks[task.CoreID] = task
	task.Subscribe(func(ev download.Event) { c.observe(task, ev) })
}

// observe tracks in-flight transfers and rebuilds the UI-facing list after
// every state-changing event.
func (c *Coordinator) observe(task *download.Task, ev download.Event) {
	c.mu.Lock()
	switch ev.Kind {
	case download.EventStarted:
		c.inflight[task.CoreID] = struct{}{}
	case download.EventFinished, download.EventFailed:
		delete(c.inflight, task.CoreID)
		if c.foreground == task {
			c.foreground = nil
		}
	}
	c.rebuildLocked()
	c.mu.Unlock()

	if ev.Kind == download.EventFailed && task.UserInitiated() {
		c.logf("user-initiated install failed core=%s: %v", task.CoreID, ev.Err)
	}
}

// rebuildLocked recomputes the core list from scratch, sorted by display
// name, so readers always observe a consistent total ordering. Caller holds
// c.mu.
func (c *Coordinator) rebuildLocked() {
	list := make([]*download.Task, 0, len(c.tasks))
	for _, task := range c.tasks {
		list = append(list, task)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].CoreID < list[j].CoreID
	})
	c.list = list
}

// CoreList returns the current task list, sorted by display name.
func (c *Coordinator) CoreList() []*download.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := make([]*download.Task, len(c.list))
	copy(list, c.list)
	return list
}

// Task returns the pending task for a core identifier, if any.
func (c *Coordinator) Task(coreID string) (*download.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.tasks[strings.ToLower(coreID)]
	return task, ok
}

// InstallForSystem selects the best downloadable core for the requested
// system and runs it as the foreground install. When several cores support
// the system the persisted user default wins; otherwise the alphabetically
// first display name is chosen for determinism. The call returns once the
// transfer has started (or was rejected); completion is reported through the
// presenter.
func (c *Coordinator) InstallForSystem(ctx context.Context, systemID string) (*download.Task, error) {
	task, err := c.selectForSystem(systemID)
	if err != nil {
		return nil, err
	}
	return task, c.startForeground(ctx, task)
}

// InstallForSavedState resolves the core for a saved state directly by
// identifier and runs it as the foreground install.
func (c *Coordinator) InstallForSavedState(ctx context.Context, coreID string) (*download.Task, error) {
	task, ok := c.Task(coreID)
	if !ok {
		return nil, ErrCoreNotAvailable
	}
	return task, c.startForeground(ctx, task)
}

// StartBackground fires a task without foreground bookkeeping: failures are
// logged and otherwise silent unless the task was flagged user-initiated. A
// start for an identifier already downloading is ignored.
func (c *Coordinator) StartBackground(ctx context.Context, coreID string) error {
	task, ok := c.Task(coreID)
	if !ok {
		return ErrCoreNotAvailable
	}

	c.mu.Lock()
	if _, busy := c.inflight[task.CoreID]; busy {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	task.Start(ctx)
	return nil
}

// SelectForSystem returns the foreground candidate for a system without
// starting it, using the same selection rule as InstallForSystem.
func (c *Coordinator) SelectForSystem(systemID string) (*download.Task, error) {
	return c.selectForSystem(systemID)
}

func (c *Coordinator) selectForSystem(systemID string) (*download.Task, error) {
	c.mu.Lock()
	var candidates []*download.Task
	for _, task := range c.list {
		if taskSupportsSystem(task, systemID) {
			candidates = append(candidates, task)
		}
	}
	c.mu.Unlock()

	if len(candidates) == 0 {
		return nil, ErrNoDownloadableCore
	}

	if c.cfg.Preferences != nil {
		if want, ok := c.cfg.Preferences.DefaultCore(systemID); ok {
			for _, task := range candidates {
				if strings.EqualFold(task.CoreID, want) {
					return task, nil
				}
			}
		}
	}

	// candidates inherit the list's display-name ordering.
	return candidates[0], nil
}

func taskSupportsSystem(task *download.Task, systemID string) bool {
	for _, sys := range task.Systems {
		if strings.EqualFold(sys, systemID) {
			return true
		}
	}
	return false
}

// startForeground claims the single foreground slot, runs the confirmation
// step and opens the transfer. The presenter subscription lives exactly from
// start to the task's terminal event.
func (c *Coordinator) startForeground(ctx context.Context, task *download.Task) error {
	if task.State().IsTerminal() {
		// A finished task stays in the table until the next resolution pass;
		// it has nothing left to install.
		return ErrCoreNotAvailable
	}

	c.mu.Lock()
	if c.foreground != nil {
		c.mu.Unlock()
		return ErrInstallAlreadyActive
	}
	c.foreground = task
	c.mu.Unlock()

	if c.cfg.Confirmer != nil && !c.cfg.Confirmer.Confirm(task) {
		c.mu.Lock()
		c.foreground = nil
		c.mu.Unlock()
		return ErrUserCancelled
	}

	task.MarkUserInitiated()

	var unsubscribe func()
	if c.cfg.Presenter != nil {
		unsubscribe = task.Subscribe(func(ev download.Event) {
			switch ev.Kind {
			case download.EventStarted:
				c.cfg.Presenter.InstallStarted(task)
			case download.EventProgress:
				c.cfg.Presenter.InstallProgress(task, ev.Progress)
			case download.EventFinished:
				c.cfg.Presenter.InstallFinished(task, ev.Handle)
				unsubscribe()
			case download.EventFailed:
				c.cfg.Presenter.InstallFailed(task, ev.Err)
				unsubscribe()
			}
		})
	}

	task.Start(ctx)
	return nil
}

func (c *Coordinator) logf(format string, v ...any) {
	if c.cfg.Logger == nil {
		return
	}
	c.cfg.Logger.Printf(format, v...)
}
