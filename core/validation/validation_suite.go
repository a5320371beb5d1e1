// Package validation runs start-up checks and prints a coloured report.
package validation

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"text2image/core"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
)

// ValidationStep represents a single validation step with its status.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// GetErrors returns the errors of failed steps.
func (r SuiteResult) GetErrors() []error {
	var errs []error
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			errs = append(errs, step.Error)
		}
	}
	return errs
}

// Err combines the errors of failed steps, or returns nil.
func (r SuiteResult) Err() error {
	var result *multierror.Error
	for _, err := range r.GetErrors() {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// EngineCheck verifies that the configured engine can be created.
type EngineCheck func() error

// ValidationSuite checks the configuration, output directories and engine
// before the server starts.
type ValidationSuite struct {
	output       io.Writer
	cfg          *core.Config
	envPath      string
	engineCheck  EngineCheck
	showProgress bool
	failFast     bool
}

// NewValidationSuite creates a suite for cfg writing to stdout.
func NewValidationSuite(cfg *core.Config) *ValidationSuite {
	return &ValidationSuite{
		output:       os.Stdout,
		cfg:          cfg,
		envPath:      ".env",
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithEnvPath sets a custom path for the .env file.
func (s *ValidationSuite) WithEnvPath(path string) *ValidationSuite {
	s.envPath = path
	return s
}

// WithEngineCheck adds an engine construction check.
func (s *ValidationSuite) WithEngineCheck(check EngineCheck) *ValidationSuite {
	s.engineCheck = check
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops validation on first failure if enabled.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

type check struct {
	name string
	run  func() (StepStatus, string, error)
}

// Validate runs every check in order and prints a summary.
func (s *ValidationSuite) Validate() SuiteResult {
	startTime := time.Now()

	if s.showProgress {
		s.printHeader("Text-to-Image Configuration Validation")
	}

	checks := []check{
		{"Environment File", s.checkEnvFile},
		{"Configuration Values", s.checkConfig},
		{"Output Directory", s.checkOutputDir},
		{"History Database", s.checkHistoryDir},
		{"Image Engine", s.checkEngine},
	}

	steps := make([]ValidationStep, 0, len(checks))
	for _, c := range checks {
		step := s.runStep(c.name, c.run)
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			break
		}
	}

	result := s.buildResult(steps, startTime)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

func (s *ValidationSuite) checkEnvFile() (StepStatus, string, error) {
	if err := CheckFileExists(s.envPath); err != nil {
		return StepWarning, "no .env file, using environment and defaults", nil
	}
	return StepPassed, s.envPath, nil
}

func (s *ValidationSuite) checkConfig() (StepStatus, string, error) {
	if err := s.cfg.Validate(); err != nil {
		var merr *multierror.Error
		count := 1
		if errors.As(err, &merr) {
			count = len(merr.Errors)
		}
		return StepFailed, fmt.Sprintf("%d problem(s)", count), err
	}
	return StepPassed, fmt.Sprintf("engine=%s addr=%s", s.cfg.Engine, s.cfg.Addr()), nil
}

func (s *ValidationSuite) checkOutputDir() (StepStatus, string, error) {
	if err := CheckDirWritable(s.cfg.OutputDir); err != nil {
		return StepFailed, "", err
	}
	return StepPassed, s.cfg.OutputDir, nil
}

func (s *ValidationSuite) checkHistoryDir() (StepStatus, string, error) {
	if !s.cfg.HistoryEnabled() {
		return StepSkipped, "history disabled", nil
	}
	if err := CheckDirWritable(filepath.Dir(s.cfg.HistoryDBPath)); err != nil {
		return StepFailed, "", err
	}
	return StepPassed, s.cfg.HistoryDBPath, nil
}

func (s *ValidationSuite) checkEngine() (StepStatus, string, error) {
	if s.engineCheck == nil {
		return StepSkipped, "no engine check configured", nil
	}
	if err := s.engineCheck(); err != nil {
		return StepFailed, s.cfg.Engine, err
	}
	return StepPassed, s.cfg.Engine, nil
}

// runStep executes a validation step with timing and progress output.
func (s *ValidationSuite) runStep(name string, fn func() (StepStatus, string, error)) ValidationStep {
	if s.showProgress {
		s.printStepStart(name)
	}

	startTime := time.Now()
	status, message, err := fn()
	step := ValidationStep{
		Name:    name,
		Status:  status,
		Message: message,
		Error:   err,
		Latency: time.Since(startTime),
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

// buildResult creates a SuiteResult from completed steps.
func (s *ValidationSuite) buildResult(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}

	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon = "✓"
		clr = color.New(color.FgGreen)
	case StepFailed:
		icon = "✗"
		clr = color.New(color.FgRed)
	case StepWarning:
		icon = "!"
		clr = color.New(color.FgYellow)
	case StepSkipped:
		icon = "○"
		clr = color.New(color.FgHiBlack)
	default:
		icon = "?"
		clr = color.New(color.FgWhite)
	}

	// Overwrite the "running" line.
	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)

	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		errColor := color.New(color.FgRed)
		var merr *multierror.Error
		if errors.As(step.Error, &merr) {
			for _, e := range merr.Errors {
				errColor.Fprintf(s.output, "    └─ %s\n", e.Error())
			}
			return
		}
		errColor.Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "━━━ Validation Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed in %v)",
			result.PassedSteps, result.TotalSteps, result.Duration.Round(time.Millisecond))
		successColor.Fprintln(s.output, " ━━━")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "━━━ Validation Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}
