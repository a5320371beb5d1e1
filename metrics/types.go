// Package metrics keeps in-process counters for generation runs and GPU
// samples shown on the status endpoint.
// This file contains atom-level type definitions with no behavior.
package metrics

import "time"

// GenerationRecord is the outcome of one generate request.
type GenerationRecord struct {
	// RunID is empty for requests that failed before a run started
	RunID string `json:"run_id,omitempty"`

	// Mode is "fast" or "quality"
	Mode string `json:"mode"`

	// Outcome is one of the Outcome* constants
	Outcome string `json:"outcome"`

	// NumImages is the number of images saved (0 on failure)
	NumImages int `json:"num_images"`

	// Duration is the wall time of the request
	Duration time.Duration `json:"duration"`

	// FinishedAt is when the request completed
	FinishedAt time.Time `json:"finished_at"`
}

// GPUMetrics represents GPU resource utilization.
type GPUMetrics struct {
	// Utilization is the GPU utilization percentage (0-100)
	Utilization float64 `json:"utilization"`

	// Temperature is the GPU temperature in Celsius
	Temperature float64 `json:"temperature"`

	// MemoryTotal is the total GPU memory in bytes
	MemoryTotal int64 `json:"memory_total"`

	// MemoryUsed is the GPU memory in use in bytes
	MemoryUsed int64 `json:"memory_used"`

	// MemoryFree is the available GPU memory in bytes
	MemoryFree int64 `json:"memory_free"`
}

// SystemStatus represents overall process health.
type SystemStatus struct {
	// Health indicates the system state: "running" or "degraded"
	Health string `json:"health"`

	// Version is the application version string
	Version string `json:"version"`

	// Uptime is the duration since the process started
	Uptime time.Duration `json:"uptime"`
}

// GenerationMetrics aggregates every recorded request.
type GenerationMetrics struct {
	TotalRequests  int64 `json:"total_requests"`
	TotalSuccess   int64 `json:"total_success"`
	ImagesProduced int64 `json:"images_produced"`

	// Failures counts failed requests by outcome
	Failures map[string]int64 `json:"failures"`

	// ByMode contains per-mode statistics for successful runs
	ByMode map[string]*ModeMetrics `json:"by_mode"`
}

// ModeMetrics summarises successful runs of one mode.
type ModeMetrics struct {
	Count       int64         `json:"count"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// Outcome constants for GenerationRecord
const (
	OutcomeSuccess         = "success"
	OutcomePolicyRejection = "policy_rejection"
	OutcomeConfiguration   = "configuration"
	OutcomeSynthesis       = "synthesis"
	OutcomePersistence     = "persistence"
)

// Health constants for SystemStatus
const (
	SystemHealthRunning  = "running"
	SystemHealthDegraded = "degraded"
)
