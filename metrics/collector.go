package metrics

// Collector is the interface the web layer records into and reads from.
//
// Implementations must be safe for concurrent use and return zero values
// for anything not yet recorded.
type Collector interface {
	// RecordGeneration adds one request outcome.
	RecordGeneration(rec GenerationRecord)

	// GetGenerationMetrics returns the aggregate of all recorded requests.
	GetGenerationMetrics() GenerationMetrics

	// GetRecent returns up to limit of the newest records, newest first.
	GetRecent(limit int) []GenerationRecord

	// UpdateGPUMetrics stores the latest GPU sample.
	UpdateGPUMetrics(gpu GPUMetrics)

	// GetGPUMetrics returns the latest GPU sample.
	GetGPUMetrics() GPUMetrics

	// GetSystemStatus returns overall health.
	GetSystemStatus() SystemStatus
}
