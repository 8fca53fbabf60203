package models

import "time"

// MetricsSnapshot is a JSON summary of the in-process counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	ReviewOutcomes           map[string]uint64 `json:"review_outcomes"`
	AggregateRecomputes      uint64            `json:"aggregate_recomputes"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
