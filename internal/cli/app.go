package cli

import (
	"context"
	"io"
	"log"
	"sync"

	"coreupdater/internal/bundle"
	"coreupdater/internal/config"
	"coreupdater/internal/coordinator"
	"coreupdater/internal/download"
	"coreupdater/internal/logx"
	"coreupdater/internal/manifest"
	"coreupdater/internal/paths"
	"coreupdater/internal/plugins"
	"coreupdater/internal/version"
)

// app wires the updater's collaborators for one command invocation.
type app struct {
	paths     paths.AppPaths
	cfg       config.Config
	logger    *log.Logger
	logCloser io.Closer
	registry  *bundle.Registry
	service   *manifest.Service
	coord     *coordinator.Coordinator
	presenter *relayPresenter
	env       version.Environment
}

func newApp(ctx context.Context) (*app, error) {
	pp, err := paths.Resolve(supportDir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(pp.ConfigFile)
	if err != nil {
		return nil, err
	}

	if err := pp.EnsureDirs(); err != nil {
		return nil, err
	}

	coresDir := cfg.Cores.Directory
	if coresDir == "" {
		coresDir = pp.CoresDir
	}

	// Logging is best-effort; a broken log directory never blocks an install.
	logger, closer, _ := logx.New(pp)

	env := version.Current(ctx)
	registry := bundle.NewRegistry(coresDir)
	service := manifest.NewService(cfg.Manifest.URL)
	presenter := &relayPresenter{}

	taskCfg := download.Config{
		Extractor:    bundle.ZipExtractor{},
		Registry:     registry,
		CoresDir:     coresDir,
		DownloadsDir: pp.DownloadsDir,
	}
	coordCfg := coordinator.Config{
		Catalog:           service,
		Registry:          registry,
		Preferences:       bundle.Preferences{Path: pp.PrefsFile, Config: cfg},
		Presenter:         presenter,
		Env:               env,
		ExperimentalOptIn: cfg.Cores.Experimental,
	}
	if logger != nil {
		taskCfg.Logger = logger
		coordCfg.Logger = logger
	}
	coordCfg.TaskConfig = taskCfg

	return &app{
		paths:     pp,
		cfg:       cfg,
		logger:    logger,
		logCloser: closer,
		registry:  registry,
		service:   service,
		coord:     coordinator.New(coordCfg),
		presenter: presenter,
		env:       env,
	}, nil
}

func (a *app) Close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func (a *app) logf(format string, v ...any) {
	if a.logger != nil {
		a.logger.Printf(format, v...)
	}
}

// relayPresenter forwards install feedback to whichever presenter the active
// command installed. Commands set it after the coordinator is built, right
// before starting a foreground install.
type relayPresenter struct {
	mu    sync.Mutex
	inner coordinator.Presenter
}

func (r *relayPresenter) set(p coordinator.Presenter) {
	r.mu.Lock()
	r.inner = p
	r.mu.Unlock()
}

func (r *relayPresenter) get() coordinator.Presenter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner
}

func (r *relayPresenter) InstallStarted(task *download.Task) {
	if p := r.get(); p != nil {
		p.InstallStarted(task)
	}
}

func (r *relayPresenter) InstallProgress(task *download.Task, fraction float64) {
	if p := r.get(); p != nil {
		p.InstallProgress(task, fraction)
	}
}

func (r *relayPresenter) InstallFinished(task *download.Task, handle plugins.Handle) {
	if p := r.get(); p != nil {
		p.InstallFinished(task, handle)
	}
}

func (r *relayPresenter) InstallFailed(task *download.Task, err error) {
	if p := r.get(); p != nil {
		p.InstallFailed(task, err)
	}
}
