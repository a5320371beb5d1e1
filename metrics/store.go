package metrics

import (
	"sync"
	"time"
)

// degradedWindow is how many of the newest records are inspected when
// deciding health.
const degradedWindow = 5

// Store is the in-memory Collector.
//
// This organism composes:
//   - a ring of recent GenerationRecord atoms
//   - running totals and per-mode aggregates
//   - the latest GPUMetrics sample
type Store struct {
	mu sync.RWMutex

	recent     []GenerationRecord
	recentCap  int
	recentHead int
	recentSize int

	totalRequests  int64
	totalSuccess   int64
	imagesProduced int64
	failures       map[string]int64
	byMode         map[string]*modeStats

	gpuMetrics GPUMetrics

	startTime time.Time
	version   string
	now       func() time.Time
}

type modeStats struct {
	count         int64
	totalDuration time.Duration
}

// StoreConfig configures the Store.
type StoreConfig struct {
	// HistoryCapacity is the number of recent records retained
	HistoryCapacity int
	// Version is reported by GetSystemStatus
	Version string
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		HistoryCapacity: 100,
		Version:         "0.0.0",
	}
}

// NewStore creates a Store; startTime is the origin for uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = 100
	}

	return &Store{
		recent:    make([]GenerationRecord, capacity),
		recentCap: capacity,
		failures:  make(map[string]int64),
		byMode:    make(map[string]*modeStats),
		startTime: startTime,
		version:   config.Version,
		now:       time.Now,
	}
}

// RecordGeneration adds one request outcome.
func (s *Store) RecordGeneration(rec GenerationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent[s.recentHead] = rec
	s.recentHead = (s.recentHead + 1) % s.recentCap
	if s.recentSize < s.recentCap {
		s.recentSize++
	}

	s.totalRequests++
	if rec.Outcome != OutcomeSuccess {
		s.failures[rec.Outcome]++
		return
	}

	s.totalSuccess++
	s.imagesProduced += int64(rec.NumImages)
	stats, ok := s.byMode[rec.Mode]
	if !ok {
		stats = &modeStats{}
		s.byMode[rec.Mode] = stats
	}
	stats.count++
	stats.totalDuration += rec.Duration
}

// GetGenerationMetrics returns the aggregate of all recorded requests.
func (s *Store) GetGenerationMetrics() GenerationMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := GenerationMetrics{
		TotalRequests:  s.totalRequests,
		TotalSuccess:   s.totalSuccess,
		ImagesProduced: s.imagesProduced,
		Failures:       make(map[string]int64, len(s.failures)),
		ByMode:         make(map[string]*ModeMetrics, len(s.byMode)),
	}
	for outcome, n := range s.failures {
		m.Failures[outcome] = n
	}
	for mode, stats := range s.byMode {
		m.ByMode[mode] = &ModeMetrics{
			Count:       stats.count,
			AvgDuration: stats.totalDuration / time.Duration(stats.count),
		}
	}
	return m
}

// GetRecent returns up to limit of the newest records, newest first.
func (s *Store) GetRecent(limit int) []GenerationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentLocked(limit)
}

func (s *Store) recentLocked(limit int) []GenerationRecord {
	if limit <= 0 || s.recentSize == 0 {
		return []GenerationRecord{}
	}
	if limit > s.recentSize {
		limit = s.recentSize
	}

	result := make([]GenerationRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.recentHead - 1 - i + s.recentCap) % s.recentCap
		result[i] = s.recent[idx]
	}
	return result
}

// UpdateGPUMetrics stores the latest GPU sample.
func (s *Store) UpdateGPUMetrics(gpu GPUMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gpuMetrics = gpu
}

// GetGPUMetrics returns the latest GPU sample.
func (s *Store) GetGPUMetrics() GPUMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gpuMetrics
}

// GetSystemStatus reports "degraded" when the newest few requests all
// failed inside the engine or while saving, and "running" otherwise.
// Policy and configuration failures are user errors and do not count.
func (s *Store) GetSystemStatus() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := SystemHealthRunning
	recent := s.recentLocked(degradedWindow)
	if len(recent) == degradedWindow {
		failing := 0
		for _, rec := range recent {
			if rec.Outcome == OutcomeSynthesis || rec.Outcome == OutcomePersistence {
				failing++
			}
		}
		if failing == degradedWindow {
			health = SystemHealthDegraded
		}
	}

	return SystemStatus{
		Health:  health,
		Version: s.version,
		Uptime:  s.now().Sub(s.startTime),
	}
}

var _ Collector = (*Store)(nil)
