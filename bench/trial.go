package bench

// Package bench measures the latency of single Orthanc operations across
// database backends. A trial is one operation whose wall time is sampled
// over repeated executions; the hooks around it are excluded from timing.

import (
	"context"
	"time"

	"github.com/orthanc-tools/harness/model"
	"github.com/orthanc-tools/harness/orthanc"
)

// Trial is one measured operation.
type Trial interface {
	Name() string
	// BeforeAll runs once before all repetitions, outside timing.
	BeforeAll(ctx context.Context, client *orthanc.Client) error
	// BeforeEach runs before each repetition, outside timing.
	BeforeEach(ctx context.Context, client *orthanc.Client) error
	// Measure is the operation whose execution time is sampled.
	Measure(ctx context.Context, client *orthanc.Client) error
	// AfterEach runs after each repetition, outside timing.
	AfterEach(ctx context.Context, client *orthanc.Client) error
	// AfterAll runs once after all repetitions, outside timing.
	AfterAll(ctx context.Context, client *orthanc.Client) error
}

// Base is an embeddable no-op implementation of the trial hooks.
type Base struct{}

func (Base) BeforeAll(context.Context, *orthanc.Client) error  { return nil }
func (Base) BeforeEach(context.Context, *orthanc.Client) error { return nil }
func (Base) AfterEach(context.Context, *orthanc.Client) error  { return nil }
func (Base) AfterAll(context.Context, *orthanc.Client) error   { return nil }

// Run executes a trial: exactly repeat samples of Measure, hooks outside
// the timed section, aggregates computed at the end.
func Run(ctx context.Context, client *orthanc.Client, trial Trial, repeat int) (model.Timing, error) {
	var timing model.Timing

	if err := trial.BeforeAll(ctx, client); err != nil {
		return timing, err
	}

	for n := 0; n < repeat; n++ {
		if err := trial.BeforeEach(ctx, client); err != nil {
			return timing, err
		}

		start := time.Now()
		err := trial.Measure(ctx, client)
		elapsed := time.Since(start)
		if err != nil {
			return timing, err
		}
		timing.Add(float64(elapsed) / float64(time.Millisecond))

		if err := trial.AfterEach(ctx, client); err != nil {
			return timing, err
		}
	}

	if err := trial.AfterAll(ctx, client); err != nil {
		return timing, err
	}

	if err := timing.Compute(); err != nil {
		return timing, err
	}
	return timing, nil
}
