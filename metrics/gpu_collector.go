package metrics

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GPUReader reads one GPU sample.
type GPUReader interface {
	ReadGPUMetrics(ctx context.Context) (GPUMetrics, error)
}

// GPUCollectorConfig configures the GPUCollector.
type GPUCollectorConfig struct {
	// CollectionInterval is how often to sample (minimum 1s, default 5s)
	CollectionInterval time.Duration

	// HistorySize is the number of samples retained (720 = 1 hour at 5s)
	HistorySize int
}

// DefaultGPUCollectorConfig returns a default configuration.
func DefaultGPUCollectorConfig() GPUCollectorConfig {
	return GPUCollectorConfig{
		CollectionInterval: 5 * time.Second,
		HistorySize:        720,
	}
}

// GPUCollector samples a GPUReader on an interval while the local
// diffusion engine is in use. Samples go to onSample and into a bounded
// history.
type GPUCollector struct {
	mu sync.RWMutex

	config GPUCollectorConfig
	reader GPUReader
	logger *zap.Logger

	history  []GPUMetrics
	histHead int
	histSize int

	last      GPUMetrics
	available bool
	lastError error

	onSample func(GPUMetrics)
}

// NewGPUCollector creates a collector. onSample may be nil.
func NewGPUCollector(config GPUCollectorConfig, reader GPUReader, onSample func(GPUMetrics), logger *zap.Logger) *GPUCollector {
	if config.CollectionInterval < time.Second {
		config.CollectionInterval = 5 * time.Second
	}
	if config.HistorySize < 1 {
		config.HistorySize = 720
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GPUCollector{
		config:   config,
		reader:   reader,
		logger:   logger,
		history:  make([]GPUMetrics, config.HistorySize),
		onSample: onSample,
	}
}

// Run samples immediately and then every interval until ctx is cancelled.
func (c *GPUCollector) Run(ctx context.Context) {
	c.CollectOnce(ctx)

	ticker := time.NewTicker(c.config.CollectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(ctx)
		}
	}
}

// CollectOnce takes one sample. A failed read marks the GPU unavailable
// and keeps the last good sample.
func (c *GPUCollector) CollectOnce(ctx context.Context) {
	sample, err := c.reader.ReadGPUMetrics(ctx)

	c.mu.Lock()
	wasAvailable := c.available
	if err != nil {
		c.available = false
		c.lastError = err
	} else {
		c.available = true
		c.lastError = nil
		c.last = sample
		c.history[c.histHead] = sample
		c.histHead = (c.histHead + 1) % len(c.history)
		if c.histSize < len(c.history) {
			c.histSize++
		}
	}
	c.mu.Unlock()

	if err != nil {
		if wasAvailable {
			c.logger.Warn("GPU sampling failed", zap.Error(err))
		}
		return
	}
	if c.onSample != nil {
		c.onSample(sample)
	}
}

// IsAvailable reports whether the last sample succeeded.
func (c *GPUCollector) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// GetLastError returns the error of the last failed sample, or nil.
func (c *GPUCollector) GetLastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// GetCurrentMetrics returns the last good sample.
func (c *GPUCollector) GetCurrentMetrics() GPUMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// GetHistory returns up to limit of the newest samples, oldest first.
func (c *GPUCollector) GetHistory(limit int) []GPUMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || c.histSize == 0 {
		return []GPUMetrics{}
	}
	if limit > c.histSize {
		limit = c.histSize
	}

	n := len(c.history)
	result := make([]GPUMetrics, limit)
	for i := 0; i < limit; i++ {
		result[i] = c.history[(c.histHead-limit+i+n)%n]
	}
	return result
}

// NvidiaSMIReader reads the first GPU through nvidia-smi.
type NvidiaSMIReader struct {
	// Path to the executable (default "nvidia-smi" on PATH)
	Path string
	// Timeout bounds one invocation (default 5s)
	Timeout time.Duration
}

// ReadGPUMetrics runs nvidia-smi once.
func (r NvidiaSMIReader) ReadGPUMetrics(ctx context.Context) (GPUMetrics, error) {
	path := r.Path
	if path == "" {
		path = "nvidia-smi"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path,
		"--query-gpu=utilization.gpu,temperature.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return GPUMetrics{}, fmt.Errorf("nvidia-smi failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return parseNvidiaSMIOutput(stdout.String())
}

// parseNvidiaSMIOutput parses the first CSV line of nvidia-smi output:
// utilization %, temperature C, memory used MiB, memory total MiB.
func parseNvidiaSMIOutput(output string) (GPUMetrics, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return GPUMetrics{}, fmt.Errorf("empty nvidia-smi output")
	}

	record, err := csv.NewReader(strings.NewReader(output)).Read()
	if err != nil {
		return GPUMetrics{}, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(record) < 4 {
		return GPUMetrics{}, fmt.Errorf("unexpected field count: got %d, expected 4", len(record))
	}

	names := [4]string{"utilization", "temperature", "memory used", "memory total"}
	var values [4]float64
	for i := range values {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		if err != nil {
			return GPUMetrics{}, fmt.Errorf("failed to parse %s: %w", names[i], err)
		}
		values[i] = v
	}

	const mib = 1024 * 1024
	used := int64(values[2] * mib)
	total := int64(values[3] * mib)

	return GPUMetrics{
		Utilization: values[0],
		Temperature: values[1],
		MemoryUsed:  used,
		MemoryTotal: total,
		MemoryFree:  total - used,
	}, nil
}
