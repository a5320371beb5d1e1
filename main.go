package main

import (
	"flag"
	"fmt"
	"os"

	"text2image/core"
	"text2image/core/validation"
	"text2image/imagegen"
	"text2image/logging"

	"github.com/fatih/color"
	"github.com/kardianos/service"
	"go.uber.org/zap"
)

// Set at build time with -ldflags "-X main.version=... -X main.gitCommit=...".
var (
	version   = "dev"
	gitCommit = ""
)

func main() {
	serviceCmd := flag.String("service", "", "service control: install, uninstall, start, stop or restart")
	envPath := flag.String("env", ".env", "path to the .env file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("text2image %s %s\n", version, gitCommit)
		return
	}

	if err := core.LoadEnvFile(*envPath); err != nil {
		color.Yellow("Warning: %v", err)
	}

	if *serviceCmd != "" {
		os.Exit(controlService(*serviceCmd, *envPath))
	}
	if !service.Interactive() {
		os.Exit(runService(*envPath))
	}
	os.Exit(run(*envPath, nil))
}

// run starts the server and blocks until a signal arrives or stop is
// closed. It returns the process exit code.
func run(envPath string, stop <-chan struct{}) int {
	cfg, err := core.LoadConfig()
	if err != nil {
		color.Red("Failed to load configuration: %v", err)
		return core.ExitCodeConfig
	}

	level := logging.ParseLogLevelString(cfg.LogLevel, logging.DefaultLevel(cfg.DevMode))
	logger, err := logging.NewLoggerWithLevel(cfg.DevMode, cfg.LogFile, level)
	if err != nil {
		color.Red("Failed to initialize logger: %v", err)
		return core.ExitCodeError
	}
	defer logger.Sync()

	if code := runStartupValidation(cfg, envPath, logger); code != core.ExitCodeSuccess {
		return code
	}

	logger.Info("configuration loaded",
		zap.String("addr", cfg.Addr()),
		zap.String(logging.FieldEngine, cfg.Engine),
		zap.String(logging.FieldOutputDir, cfg.OutputDir),
		zap.Bool("history", cfg.HistoryEnabled()),
		zap.Int("history_retention_days", cfg.HistoryRetentionDays),
		zap.Bool("auth", cfg.AuthEnabled()),
		zap.Duration("generation_timeout", cfg.GenerationTimeout),
	)

	a, err := newApp(cfg, logger, appOptions{
		Version:   version,
		GitCommit: gitCommit,
		Signals:   stop == nil,
	})
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return core.ExitCodeError
	}

	if stop != nil {
		go func() {
			select {
			case <-stop:
				a.shutdown.Trigger()
			case <-a.shutdown.Context().Done():
			}
		}()
	}

	code := a.Run()
	logger.Info("goodbye", zap.String("exit", core.ExitCodeName(code)))
	return code
}

// runStartupValidation checks configuration, directories and the engine
// before anything heavy starts.
func runStartupValidation(cfg *core.Config, envPath string, logger *logging.Logger) int {
	suite := validation.NewValidationSuite(cfg).
		WithEnvPath(envPath).
		WithShowProgress(service.Interactive()).
		WithEngineCheck(func() error {
			engine, err := imagegen.NewEngine(cfg, logger)
			if err != nil {
				return err
			}
			return engine.Close()
		})

	result := suite.Validate()
	if result.Success {
		logger.Info("startup validation passed",
			zap.Int("checks_passed", result.PassedSteps),
			zap.Duration("duration", result.Duration),
		)
		return core.ExitCodeSuccess
	}

	for _, step := range result.Steps {
		if step.Status == validation.StepFailed {
			logger.Error("validation step failed",
				zap.String("step", step.Name),
				zap.String("message", step.Message),
				zap.Error(step.Error),
			)
		}
	}
	return core.ExitCodeConfig
}
