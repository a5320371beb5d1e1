package main

import (
	"context"
	"fmt"
	"time"

	"text2image/core"
	"text2image/db"
	"text2image/imagegen"
	"text2image/logging"
	"text2image/metrics"
	"text2image/postprocess"
	"text2image/sdruntime"
	"text2image/shutdown"
	"text2image/webui"
	"text2image/webui/auth"

	"go.uber.org/zap"
)

const (
	historyStopTimeout   = 10 * time.Second
	authCleanupInterval  = 10 * time.Minute
	historyCleanupPeriod = 24 * time.Hour
)

type appOptions struct {
	Version   string
	GitCommit string
	// Signals enables SIGINT/SIGTERM handling. Service mode leaves it off
	// because the service manager delivers stop requests.
	Signals bool
	// ShutdownTimeout bounds the shutdown sequence (0 = manager default).
	ShutdownTimeout time.Duration
}

// app is the wired server: engine, generator, history, metrics and the
// web UI, with every closer registered on the shutdown manager.
type app struct {
	cfg      *core.Config
	logger   *logging.Logger
	shutdown *shutdown.Manager
	engine   *sdruntime.LazyEngine
	server   *webui.Server
	opts     appOptions
}

// trackedGenerator runs every generation as a shutdown-tracked operation
// so a stop waits for it to finish.
type trackedGenerator struct {
	*imagegen.Generator
	manager *shutdown.Manager
}

func (g trackedGenerator) Generate(ctx context.Context, req imagegen.Request) (*imagegen.Result, error) {
	var result *imagegen.Result
	err := g.manager.WrapOperation(ctx, "generate", func(ctx context.Context) error {
		var err error
		result, err = g.Generator.Generate(ctx, req)
		return err
	})
	return result, err
}

func newApp(cfg *core.Config, logger *logging.Logger, opts appOptions) (*app, error) {
	var managerOpts []shutdown.ManagerOption
	if opts.ShutdownTimeout > 0 {
		managerOpts = append(managerOpts, shutdown.WithTimeout(opts.ShutdownTimeout))
	}
	manager := shutdown.NewManager(logger.Named("shutdown").Zap(), managerOpts...)
	ctx := manager.Context()

	a := &app{cfg: cfg, logger: logger, shutdown: manager, opts: opts}

	engine, err := imagegen.NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.engine = engine
	manager.Register("engine", shutdown.PriorityWorkers, func(context.Context) error {
		return engine.Close()
	})

	var runs *db.RunRepository
	if cfg.HistoryEnabled() {
		runs, err = a.openHistory(ctx)
		if err != nil {
			manager.Shutdown()
			return nil, err
		}
	}

	finalizer, err := postprocess.NewFinalizer(logger.Named("postprocess").Zap())
	if err != nil {
		manager.Shutdown()
		return nil, fmt.Errorf("watermark font: %w", err)
	}

	var recorder imagegen.RunRecorder
	if runs != nil {
		recorder = runs
	}
	generator, err := imagegen.NewGenerator(engine, finalizer, recorder, logger, imagegen.GeneratorConfig{
		OutputDir:    cfg.OutputDir,
		Timeout:      cfg.GenerationTimeout,
		ProgressTick: imagegen.DefaultProgressTick,
	})
	if err != nil {
		manager.Shutdown()
		return nil, err
	}

	store := metrics.NewStore(metrics.StoreConfig{Version: opts.Version}, time.Now())
	var gpu *metrics.GPUCollector
	if cfg.Engine == core.EngineSD {
		gpu = metrics.NewGPUCollector(metrics.DefaultGPUCollectorConfig(), metrics.NvidiaSMIReader{},
			store.UpdateGPUMetrics, logger.Named("gpu").Zap())
		go gpu.Run(ctx)
	}

	deps := webui.Dependencies{
		Generator: trackedGenerator{Generator: generator, manager: manager},
		Metrics:   store,
		GPU:       gpu,
	}
	if runs != nil {
		deps.Runs = runs
	}

	if cfg.AuthEnabled() {
		authMw, err := auth.NewAuthMiddleware(cfg.WebUIPassword, logger.Named("auth").Zap())
		if err != nil {
			manager.Shutdown()
			return nil, fmt.Errorf("web UI auth: %w", err)
		}
		authMw.SessionStore().StartCleanupTicker(ctx, authCleanupInterval)
		authMw.RateLimiter().StartCleanupTicker(ctx, authCleanupInterval)
		deps.Auth = authMw
	}

	serverCfg := webui.DefaultServerConfig(cfg.OutputDir)
	serverCfg.Host = cfg.Host
	serverCfg.Port = cfg.Port
	serverCfg.API.VersionInfo = webui.VersionInfo{Version: opts.Version, GitCommit: opts.GitCommit}

	server, err := webui.NewServer(serverCfg, deps, logger.Named("webui").Zap())
	if err != nil {
		manager.Shutdown()
		return nil, err
	}
	a.server = server
	manager.Register("http", shutdown.PriorityHTTP, server.Shutdown)
	manager.Register("prune-run-dirs", shutdown.PriorityFinalize,
		shutdown.PruneEmptyRunDirs(logger.Named("cleanup").Zap(), cfg.OutputDir))

	return a, nil
}

// openHistory opens the run database, starts the async writer and, when
// a retention period is set, the cleanup scheduler.
func (a *app) openHistory(ctx context.Context) (*db.RunRepository, error) {
	database, err := db.Open(ctx, a.cfg.HistoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	a.shutdown.Register("history-db", shutdown.PriorityStorage, func(context.Context) error {
		return database.Close()
	})

	runs := db.NewRunRepository(database, a.logger.Named("history").Zap())
	runs.StartAsync(db.DefaultAsyncWriterConfig())
	a.shutdown.Register("history-writer", shutdown.PriorityWorkers, func(context.Context) error {
		if !runs.StopAsync(historyStopTimeout) {
			return fmt.Errorf("history writer did not drain within %s", historyStopTimeout)
		}
		return nil
	})

	if a.cfg.HistoryRetentionDays > 0 {
		logger := a.logger.Named("history")
		database.StartCleanupScheduler(ctx, db.CleanupSchedulerConfig{
			RetentionDays: a.cfg.HistoryRetentionDays,
			Interval:      historyCleanupPeriod,
			OnCleanup: func(result db.CleanupResult, err error) {
				if err != nil {
					logger.Warn("history cleanup failed", zap.Error(err))
					return
				}
				if result.RunsDeleted > 0 {
					logger.Info("history cleanup removed old runs",
						zap.Int64("runs_deleted", result.RunsDeleted),
						zap.Duration("duration", result.Duration),
					)
				}
			},
		})
	}

	a.logger.Info("run history enabled", zap.String("path", a.cfg.HistoryDBPath))
	return runs, nil
}

// Run serves until shutdown is requested or the server fails, then runs
// the shutdown sequence and returns the exit code.
func (a *app) Run() int {
	if a.opts.Signals {
		a.shutdown.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start(a.shutdown.Context())
	}()

	code := core.ExitCodeSuccess
	select {
	case <-a.shutdown.Context().Done():
		code = shutdown.ExitCode(a.shutdown.Signal())
	case err := <-serverErr:
		if err != nil {
			a.logger.Error("web server stopped", zap.Error(err))
			code = core.ExitCodeError
		}
	}

	if err := a.shutdown.Shutdown(); err != nil && code == core.ExitCodeSuccess {
		code = core.ExitCodeError
	}
	return code
}
