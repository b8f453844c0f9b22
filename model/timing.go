package model

import (
	"errors"
	"math"
)

// ErrNoSamples is returned by Compute when no duration was recorded.
var ErrNoSamples = errors.New("timing has no samples")

// Timing collects the elapsed times of the repeated executions of a single
// logical operation and computes aggregate statistics over them.
type Timing struct {
	// Raw samples in milliseconds, in execution order
	SamplesMs []float64 `json:"samples_ms"`
	// Aggregates over the samples, outliers removed
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	MeanMs float64 `json:"mean_ms"`
}

// Add appends one sample.
func (t *Timing) Add(durationMs float64) {
	t.SamplesMs = append(t.SamplesMs, durationMs)
}

// Compute fills the aggregate fields. Samples further than two standard
// deviations from the mean are discarded before aggregating, so that a
// single cold-cache or GC-perturbed repetition does not skew the average.
func (t *Timing) Compute() error {
	switch len(t.SamplesMs) {
	case 0:
		return ErrNoSamples
	case 1:
		t.MinMs = t.SamplesMs[0]
		t.MaxMs = t.SamplesMs[0]
		t.MeanMs = t.SamplesMs[0]
		return nil
	}

	m := mean(t.SamplesMs)
	sd := stddev(t.SamplesMs, m)

	cleaned := make([]float64, 0, len(t.SamplesMs))
	for _, s := range t.SamplesMs {
		if s > m-2*sd && s < m+2*sd {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		// All samples equal: stddev is zero and the open interval is empty.
		cleaned = t.SamplesMs
	}

	t.MeanMs = mean(cleaned)
	t.MinMs = cleaned[0]
	t.MaxMs = cleaned[0]
	for _, s := range cleaned[1:] {
		t.MinMs = math.Min(t.MinMs, s)
		t.MaxMs = math.Max(t.MaxMs, s)
	}
	return nil
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev returns the sample standard deviation.
func stddev(values []float64, m float64) float64 {
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
