package bench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthanc-tools/harness/config"
	"github.com/orthanc-tools/harness/model"
	"github.com/orthanc-tools/harness/orthanc"
	"github.com/orthanc-tools/harness/provision"
	"github.com/orthanc-tools/harness/report"
)

const readyTimeout = 30 * time.Second

// Options configure a benchmark run across plan entries.
type Options struct {
	// Path of the Orthanc executable to measure
	Exe string
	// Plugin shared-library paths loaded by every configuration
	Plugins []string
	// Root directory for generated configurations, storages and indexes
	BaseDir string
	// Ports the measured instance listens on
	HTTPPort  int
	DicomPort int
	// Actions; when none is set, Run is implied
	Init  bool
	Run   bool
	Clear bool
	// Repetitions per trial; 0 keeps the plan default
	Repeat int
}

// Runner measures one plan entry after the other: clear, provision the
// database backend, launch Orthanc on a generated configuration, optionally
// seed the database, run the trial suite, tear down.
type Runner struct {
	logger   zerolog.Logger
	reporter *report.Reporter
	opts     Options
}

func NewRunner(logger zerolog.Logger, reporter *report.Reporter, opts Options) *Runner {
	if !opts.Init && !opts.Run && !opts.Clear {
		opts.Run = true
	}
	return &Runner{logger: logger, reporter: reporter, opts: opts}
}

// Run processes the selected plan entries in order. Provisioning errors are
// fatal for the whole run; the current entry is always torn down first.
func (r *Runner) Run(ctx context.Context, plan *config.Plan, entries []config.PlanEntry) error {
	repeat := plan.Repeat
	if r.opts.Repeat > 0 {
		repeat = r.opts.Repeat
	}

	for _, entry := range entries {
		r.logger.Info().Str("entry", entry.Label).Msg("Benchmarking")
		if err := r.runEntry(ctx, entry, repeat); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runEntry(ctx context.Context, entry config.PlanEntry, repeat int) error {
	storage := filepath.Join(r.opts.BaseDir, "storages", entry.Label)

	var db *provision.DBServer
	if entry.Backend.NeedsServer() {
		db = provision.NewDBServer(r.logger, entry.Label, entry.Backend, entry.Port)
	}

	if r.opts.Clear {
		if err := r.clearEntry(db, storage); err != nil {
			return err
		}
	}
	if !r.opts.Init && !r.opts.Run {
		return nil
	}

	configPath, err := r.generateConfiguration(entry, storage)
	if err != nil {
		return err
	}

	if db != nil {
		if err := db.Launch(ctx); err != nil {
			return err
		}
	}

	instance := provision.NewInstance(r.logger, "orthanc-benchmark", entry.Label)
	instance.Mode = provision.ModeExe
	instance.ExePath = r.opts.Exe
	instance.ConfigPath = configPath
	instance.Storage = storage
	instance.HTTPPort = r.opts.HTTPPort
	instance.DicomPort = r.opts.DicomPort

	client := orthanc.New(fmt.Sprintf("http://localhost:%d", r.opts.HTTPPort), r.logger)

	if err := instance.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := instance.Stop(); err != nil {
			r.logger.Warn().Err(err).Str("entry", entry.Label).Msg("Failed to stop instance")
		}
	}()
	if err := instance.WaitReady(ctx, client, readyTimeout); err != nil {
		return err
	}

	if r.opts.Init {
		r.logger.Info().Str("entry", entry.Label).Str("size", string(entry.Size)).Msg("Seeding database")
		if err := NewPopulator(client, entry.Size, r.logger).Populate(ctx); err != nil {
			return fmt.Errorf("failed to seed %s: %w", entry.Label, err)
		}
	}

	if r.opts.Run {
		for _, trial := range DefaultTrials() {
			timing, err := Run(ctx, client, trial, repeat)
			if err != nil {
				return fmt.Errorf("trial %s on %s: %w", trial.Name(), entry.Label, err)
			}
			r.logger.Info().
				Str("trial", trial.Name()).
				Str("entry", entry.Label).
				Float64("mean_ms", timing.MeanMs).
				Msg("Trial measured")
			r.reporter.RecordBenchmark(model.BenchmarkResult{
				Backend: entry.Label,
				Trial:   trial.Name(),
				Timing:  timing,
			})
		}
	}
	return nil
}

// clearEntry drops the persistent state of one entry: the database volume
// for server backends, the storage and index directory otherwise.
func (r *Runner) clearEntry(db *provision.DBServer, storage string) error {
	if db != nil {
		if err := db.Clear(); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(storage); err != nil {
		return fmt.Errorf("failed to clear storage %s: %w", storage, err)
	}
	return nil
}

func (r *Runner) generateConfiguration(entry config.PlanEntry, storage string) (string, error) {
	conf, err := config.WithDatabase(map[string]any{}, entry.Backend, entry.Port, storage)
	if err != nil {
		return "", err
	}
	completed := config.Complete(conf, config.Options{
		Name:             entry.Label,
		HTTPPort:         r.opts.HTTPPort,
		DicomPort:        r.opts.DicomPort,
		Plugins:          r.opts.Plugins,
		StorageDirectory: storage,
	})
	return config.Write(filepath.Join(r.opts.BaseDir, "configurations"), entry.Label, completed)
}
