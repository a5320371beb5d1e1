// Package webui provides the browser front end for the image generator.
// This file contains the GenerateAPI molecule: the JSON endpoints behind the
// generator page.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"text2image/db"
	"text2image/imagegen"
	"text2image/metrics"
	"text2image/policy"
	"text2image/postprocess"
	"text2image/prompt"
	"text2image/sdruntime"
	"text2image/shutdown"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultFilename is the base name pre-filled in the form.
const DefaultFilename = "my_image"

// Generator runs one generation. imagegen.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, req imagegen.Request) (*imagegen.Result, error)
	EngineName() string
}

// RunLister lists recorded runs. db.RunRepository satisfies it.
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]db.RunRow, error)
}

var (
	_ Generator = (*imagegen.Generator)(nil)
	_ RunLister = (*db.RunRepository)(nil)
)

// GenerateAPI serves the generator's REST endpoints:
//   - POST /api/generate
//   - GET  /api/runs and /api/runs/{run}/{file}
//   - GET  /api/options
//   - GET  /api/status
type GenerateAPI struct {
	generator   Generator
	runs        RunLister
	metrics     metrics.Collector
	gpu         *metrics.GPUCollector
	broadcaster *WebSocketBroadcaster
	recent      *CircularBuffer[CompleteData]
	logger      *zap.Logger
	config      GenerateAPIConfig
}

// VersionInfo is reported by /api/status.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
}

// GenerateAPIConfig configures the GenerateAPI.
type GenerateAPIConfig struct {
	// OutputDir is the root that run files are served from
	OutputDir string

	// MaxBodyBytes limits the generate request body (default: 64 KiB)
	MaxBodyBytes int64

	// DefaultLimit and MaxLimit bound /api/runs (defaults: 20, 100)
	DefaultLimit int
	MaxLimit     int

	// RecentSize is how many completed runs new WebSocket clients receive (default: 10)
	RecentSize int

	// AuthEnabled is reported to the page so it can show a sign-out link
	AuthEnabled bool

	VersionInfo VersionInfo
}

// DefaultGenerateAPIConfig returns defaults rooted at outputDir.
func DefaultGenerateAPIConfig(outputDir string) GenerateAPIConfig {
	return GenerateAPIConfig{
		OutputDir:    outputDir,
		MaxBodyBytes: 64 << 10,
		DefaultLimit: 20,
		MaxLimit:     100,
		RecentSize:   10,
	}
}

// NewGenerateAPI creates the API. runs, collector, gpu and broadcaster may
// be nil; the matching features are then disabled.
func NewGenerateAPI(generator Generator, runs RunLister, collector metrics.Collector, gpu *metrics.GPUCollector, broadcaster *WebSocketBroadcaster, logger *zap.Logger, config GenerateAPIConfig) *GenerateAPI {
	defaults := DefaultGenerateAPIConfig(config.OutputDir)
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.DefaultLimit < 1 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.MaxLimit < 1 {
		config.MaxLimit = defaults.MaxLimit
	}
	if config.RecentSize < 1 {
		config.RecentSize = defaults.RecentSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GenerateAPI{
		generator:   generator,
		runs:        runs,
		metrics:     collector,
		gpu:         gpu,
		broadcaster: broadcaster,
		recent:      NewCircularBuffer[CompleteData](config.RecentSize),
		logger:      logger,
		config:      config,
	}
}

// RegisterRoutes registers the API on mux, wrapping each handler with protect.
func (api *GenerateAPI) RegisterRoutes(mux *http.ServeMux, protect func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/generate", protect(api.HandleGenerate))
	mux.HandleFunc("/api/runs", protect(api.HandleRuns))
	mux.HandleFunc("GET /api/runs/{run}/{file}", protect(api.HandleRunFile))
	mux.HandleFunc("/api/options", protect(api.HandleOptions))
	mux.HandleFunc("/api/status", protect(api.HandleStatus))
}

// InitialState is the snapshot sent to new WebSocket clients.
func (api *GenerateAPI) InitialState() WSMessage {
	return NewInitialMessage(InitialData{
		Engine: api.generator.EngineName(),
		Recent: api.recent.GetAll(),
	})
}

// GenerateRequest is the JSON body of POST /api/generate.
type GenerateRequest struct {
	Prompt         string  `json:"prompt"`
	Style          string  `json:"style"`
	Mode           string  `json:"mode"`
	NumImages      int     `json:"num_images"`
	Steps          int     `json:"steps"`
	GuidanceScale  float64 `json:"guidance_scale"`
	UseSeed        bool    `json:"use_seed"`
	Seed           uint64  `json:"seed"`
	NegativePrompt string  `json:"negative_prompt"`
	Filename       string  `json:"filename"`
}

// ImageLinks are the download URLs of one saved image.
type ImageLinks struct {
	Index  int    `json:"index"`
	PNGURL string `json:"png_url"`
	JPGURL string `json:"jpg_url"`
}

// GenerateResponse is returned on success.
type GenerateResponse struct {
	RunID          string       `json:"run_id"`
	Prompt         string       `json:"prompt"`
	NegativePrompt string       `json:"negative_prompt"`
	ElapsedSeconds float64      `json:"elapsed_seconds"`
	Elapsed        string       `json:"elapsed"`
	RunDir         string       `json:"run_dir"`
	Images         []ImageLinks `json:"images"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HandleGenerate runs one generation and returns the saved files' URLs.
//
// Status codes: 200 success, 400 malformed or out-of-range input, 422
// content policy rejection, 500 engine or filesystem failure.
func (api *GenerateAPI) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}

	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, api.config.MaxBodyBytes)

	var body GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.writeError(w, http.StatusBadRequest, CodeConfiguration, "invalid request body: "+err.Error())
		return
	}

	mode, err := sdruntime.ParseMode(body.Mode)
	if err != nil {
		api.writeError(w, http.StatusBadRequest, CodeConfiguration, err.Error())
		return
	}

	req := imagegen.Request{
		Prompt:         body.Prompt,
		Style:          prompt.ParseStyle(body.Style),
		Mode:           mode,
		NumImages:      body.NumImages,
		Steps:          body.Steps,
		GuidanceScale:  body.GuidanceScale,
		UseSeed:        body.UseSeed,
		Seed:           body.Seed,
		NegativePrompt: body.NegativePrompt,
		Filename:       body.Filename,
	}
	if api.broadcaster != nil {
		req.Progress = func(u imagegen.ProgressUpdate) {
			api.broadcaster.BroadcastMessage(NewProgressMessage(u))
		}
	}

	result, err := api.generator.Generate(r.Context(), req)
	if err != nil {
		api.handleGenerateError(w, mode, start, err)
		return
	}

	run := filepath.Base(result.RunDir)
	resp := GenerateResponse{
		RunID:          result.RunID,
		Prompt:         result.Prompt,
		NegativePrompt: result.NegativePrompt,
		ElapsedSeconds: result.Elapsed.Seconds(),
		Elapsed:        FormatElapsed(result.Elapsed),
		RunDir:         result.RunDir,
		Images: lo.Map(result.Saved, func(p postprocess.SavedImagePair, _ int) ImageLinks {
			return ImageLinks{
				Index:  p.Index,
				PNGURL: runFileURL(run, p.PNG),
				JPGURL: runFileURL(run, p.JPEG),
			}
		}),
	}

	done := CompleteData{
		RunID:          result.RunID,
		Run:            run,
		Prompt:         result.Prompt,
		NumImages:      len(result.Saved),
		ElapsedSeconds: resp.ElapsedSeconds,
	}
	api.recent.Push(done)
	if api.broadcaster != nil {
		api.broadcaster.BroadcastComplete(done)
	}
	api.record(metrics.GenerationRecord{
		RunID:     result.RunID,
		Mode:      string(mode),
		Outcome:   metrics.OutcomeSuccess,
		NumImages: len(result.Saved),
		Duration:  time.Since(start),
	})

	api.writeJSON(w, http.StatusOK, resp)
}

func (api *GenerateAPI) handleGenerateError(w http.ResponseWriter, mode sdruntime.Mode, start time.Time, err error) {
	if errors.Is(err, shutdown.ErrTrackerClosed) {
		api.writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "server is shutting down")
		return
	}

	var (
		status  int
		code    string
		message string
		outcome string
	)
	switch {
	case errors.Is(err, imagegen.ErrPolicyRejection):
		status, code, message, outcome = http.StatusUnprocessableEntity, CodePolicy, policy.RejectionMessage, metrics.OutcomePolicyRejection
	case errors.Is(err, sdruntime.ErrConfiguration):
		status, code, message, outcome = http.StatusBadRequest, CodeConfiguration, err.Error(), metrics.OutcomeConfiguration
	case errors.Is(err, postprocess.ErrPersistence):
		status, code, message, outcome = http.StatusInternalServerError, CodePersistence, "saving the images failed", metrics.OutcomePersistence
	default:
		status, code, message, outcome = http.StatusInternalServerError, CodeSynthesis, "image generation failed", metrics.OutcomeSynthesis
	}

	if status >= 500 {
		api.logger.Error("generate request failed", zap.String("code", code), zap.Error(err))
	} else {
		api.logger.Debug("generate request rejected", zap.String("code", code), zap.Error(err))
	}

	if api.broadcaster != nil {
		api.broadcaster.BroadcastError(code, message)
	}
	api.record(metrics.GenerationRecord{
		Mode:     string(mode),
		Outcome:  outcome,
		Duration: time.Since(start),
	})
	api.writeError(w, status, code, message)
}

func (api *GenerateAPI) record(rec metrics.GenerationRecord) {
	if api.metrics == nil {
		return
	}
	rec.FinishedAt = time.Now()
	api.metrics.RecordGeneration(rec)
}

func runFileURL(run, path string) string {
	return "/api/runs/" + run + "/" + filepath.Base(path)
}

// HandleRunFile serves one saved file. With ?download=1 it is sent as an
// attachment named generated_<n>.<ext>.
func (api *GenerateAPI) HandleRunFile(w http.ResponseWriter, r *http.Request) {
	run, file := r.PathValue("run"), r.PathValue("file")

	path, err := postprocess.ResolveRunFile(api.config.OutputDir, run, file)
	if err != nil {
		api.writeError(w, http.StatusNotFound, "", "file not found")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		api.writeError(w, http.StatusNotFound, "", "file not found")
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		api.writeError(w, http.StatusNotFound, "", "file not found")
		return
	}

	switch filepath.Ext(file) {
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".jpg":
		w.Header().Set("Content-Type", "image/jpeg")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+DownloadName(file)+`"`)
	}

	http.ServeContent(w, r, file, stat.ModTime(), f)
}

// DownloadName maps a saved file name ("<base>_<n>.<ext>") to the name
// offered to the browser ("generated_<n>.<ext>"). Names without an index
// are returned unchanged.
func DownloadName(file string) string {
	ext := filepath.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	i := strings.LastIndexByte(stem, '_')
	if i < 0 {
		return file
	}
	n, err := strconv.Atoi(stem[i+1:])
	if err != nil || n < 1 {
		return file
	}
	return "generated_" + strconv.Itoa(n) + ext
}

// RunsResponse is returned by /api/runs. Runs is filled from the history
// database; without one, RunDirs lists the run directories on disk.
type RunsResponse struct {
	Runs    []db.RunRow `json:"runs,omitempty"`
	RunDirs []string    `json:"run_dirs,omitempty"`
	Count   int         `json:"count"`
	Limit   int         `json:"limit"`
}

// HandleRuns lists recent runs, newest first.
func (api *GenerateAPI) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}

	limit := api.config.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > api.config.MaxLimit {
		limit = api.config.MaxLimit
	}

	resp := RunsResponse{Limit: limit}
	if api.runs != nil {
		rows, err := api.runs.ListRecent(r.Context(), limit)
		if err != nil {
			api.logger.Error("listing runs failed", zap.Error(err))
			api.writeError(w, http.StatusInternalServerError, CodeInternal, "listing runs failed")
			return
		}
		resp.Runs = rows
		resp.Count = len(rows)
	} else {
		dirs, err := postprocess.ListRunDirs(api.config.OutputDir)
		if err != nil {
			api.logger.Error("listing run directories failed", zap.Error(err))
			api.writeError(w, http.StatusInternalServerError, CodeInternal, "listing runs failed")
			return
		}
		if len(dirs) > limit {
			dirs = dirs[:limit]
		}
		resp.RunDirs = dirs
		resp.Count = len(dirs)
	}

	api.writeJSON(w, http.StatusOK, resp)
}

// Range describes one numeric input.
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
}

// ModeOption describes one mode and its parameter ranges. Guidance is nil
// for modes that run without guidance.
type ModeOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Steps    Range  `json:"steps"`
	Guidance *Range `json:"guidance"`
}

// OptionsResponse drives the form controls.
type OptionsResponse struct {
	Engine          string       `json:"engine"`
	Styles          []string     `json:"styles"`
	DefaultStyle    string       `json:"default_style"`
	Modes           []ModeOption `json:"modes"`
	NumImages       Range        `json:"num_images"`
	Seed            Range        `json:"seed"`
	DefaultFilename string       `json:"default_filename"`
	AuthEnabled     bool         `json:"auth_enabled"`
}

// Options returns the form configuration.
func (api *GenerateAPI) Options() OptionsResponse {
	modes := lo.Map([]sdruntime.Mode{sdruntime.ModeFast, sdruntime.ModeQuality}, func(m sdruntime.Mode, _ int) ModeOption {
		opt := ModeOption{Value: string(m), Label: m.Label()}
		if m == sdruntime.ModeQuality {
			opt.Steps = Range{Min: sdruntime.MinQualitySteps, Max: sdruntime.MaxQualitySteps, Step: sdruntime.QualityStepSize, Default: sdruntime.DefaultQualitySteps}
			opt.Guidance = &Range{Min: sdruntime.MinGuidance, Max: sdruntime.MaxGuidance, Step: sdruntime.GuidanceStep, Default: sdruntime.DefaultGuidance}
		} else {
			opt.Steps = Range{Min: sdruntime.MinFastSteps, Max: sdruntime.MaxFastSteps, Step: 1, Default: sdruntime.DefaultFastSteps}
		}
		return opt
	})

	return OptionsResponse{
		Engine:          api.generator.EngineName(),
		Styles:          lo.Map(prompt.Styles(), func(s prompt.Style, _ int) string { return string(s) }),
		DefaultStyle:    string(prompt.StylePhotorealistic),
		Modes:           modes,
		NumImages:       Range{Min: sdruntime.MinImages, Max: sdruntime.MaxImages, Step: 1, Default: sdruntime.MinImages},
		Seed:            Range{Min: 0, Max: sdruntime.MaxSeed, Step: 1, Default: sdruntime.DefaultSeed},
		DefaultFilename: DefaultFilename,
		AuthEnabled:     api.config.AuthEnabled,
	}
}

// HandleOptions serves Options as JSON.
func (api *GenerateAPI) HandleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	api.writeJSON(w, http.StatusOK, api.Options())
}

// StatusResponse is returned by /api/status.
type StatusResponse struct {
	Health      string                     `json:"health"`
	Version     string                     `json:"version"`
	GitCommit   string                     `json:"git_commit,omitempty"`
	Engine      string                     `json:"engine"`
	Uptime      string                     `json:"uptime"`
	UptimeSecs  float64                    `json:"uptime_secs"`
	Generations *metrics.GenerationMetrics `json:"generations,omitempty"`
	GPU         *metrics.GPUMetrics        `json:"gpu,omitempty"`
	GPUError    string                     `json:"gpu_error,omitempty"`
}

// HandleStatus reports process health, generation counters and the latest
// GPU sample when one is collected.
func (api *GenerateAPI) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}

	resp := StatusResponse{
		Health:    metrics.SystemHealthRunning,
		Version:   api.config.VersionInfo.Version,
		GitCommit: api.config.VersionInfo.GitCommit,
		Engine:    api.generator.EngineName(),
	}
	if api.metrics != nil {
		status := api.metrics.GetSystemStatus()
		gen := api.metrics.GetGenerationMetrics()
		resp.Health = status.Health
		resp.Uptime = FormatDuration(status.Uptime)
		resp.UptimeSecs = status.Uptime.Seconds()
		resp.Generations = &gen
	}
	if api.gpu != nil {
		if api.gpu.IsAvailable() {
			current := api.gpu.GetCurrentMetrics()
			resp.GPU = &current
		} else if err := api.gpu.GetLastError(); err != nil {
			resp.GPUError = err.Error()
		}
	}

	api.writeJSON(w, http.StatusOK, resp)
}

func (api *GenerateAPI) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Warn("writing response failed", zap.Error(err))
	}
}

func (api *GenerateAPI) writeError(w http.ResponseWriter, status int, code, message string) {
	api.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
