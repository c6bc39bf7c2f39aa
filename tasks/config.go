package tasks

import "time"

// Config configures the executor.
type Config struct {
	MinWorkers int
	MaxWorkers int

	// QueueCapacity bounds each of the four priority queues independently.
	QueueCapacity int

	// AutoScale enables the sampling controller.
	AutoScale bool

	SampleInterval time.Duration

	// HighWaterMark/LowWaterMark are weighted-queue-depth thresholds, where
	// each queued task counts by its priority weight (CRITICAL=4, HIGH=3,
	// NORMAL=2, LOW=1).
	HighWaterMark int
	LowWaterMark  int

	// SustainedSamples is how many consecutive samples past a water mark
	// are required before scaling the pool, debouncing a single noisy
	// reading from triggering a worker spawn or retirement.
	SustainedSamples int
}

// WithDefaults fills zero-valued fields with documented defaults.
func WithDefaults(cfg Config) Config {
	if cfg.MinWorkers == 0 {
		cfg.MinWorkers = 2
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 16
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = 1000
	}
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = 500 * time.Millisecond
	}
	if cfg.HighWaterMark == 0 {
		cfg.HighWaterMark = 40
	}
	if cfg.LowWaterMark == 0 {
		cfg.LowWaterMark = 5
	}
	if cfg.SustainedSamples == 0 {
		cfg.SustainedSamples = 3
	}
	return cfg
}
