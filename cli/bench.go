package cli

// The bench command: measure REST operation latency for each database
// backend of the benchmark plan.

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/orthanc-tools/harness/bench"
	"github.com/orthanc-tools/harness/config"
	"github.com/orthanc-tools/harness/model"
	"github.com/orthanc-tools/harness/report"
)

func (a *App) runBench(ctx *cli.Context) error {
	start := time.Now()

	plan := config.DefaultPlan()
	if path := ctx.String("plan"); path != "" {
		loaded, err := config.LoadPlan(path)
		if err != nil {
			return err
		}
		plan = loaded
	}

	entries, err := plan.Select(ctx.StringSlice("backend"))
	if err != nil {
		return err
	}

	var plugins []string
	if path := ctx.String("plugins-path"); path != "" {
		plugins = []string{path}
	}

	opts := bench.Options{
		Exe:       ctx.String("orthanc-path"),
		Plugins:   plugins,
		BaseDir:   ctx.String("work-dir"),
		HTTPPort:  ctx.Int("http-port"),
		DicomPort: ctx.Int("dicom-port"),
		Init:      ctx.Bool("init"),
		Run:       ctx.Bool("run"),
		Clear:     ctx.Bool("clear"),
		Repeat:    ctx.Int("repeat"),
	}

	a.logger.Info().Int("entries", len(entries)).Str("exe", opts.Exe).Msg("Starting benchmark run")

	reporter := report.New()
	runErr := bench.NewRunner(a.logger, reporter, opts).Run(ctx.Context, plan, entries)

	if len(reporter.Benchmarks()) > 0 {
		reporter.RenderBenchmarks(ctx.App.Writer)
	}
	if path := ctx.String("report"); path != "" {
		if err := reporter.WriteJSON(path); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to write report")
		}
	}

	exitCode := 0
	if runErr != nil {
		exitCode = 1
	}
	a.recordRun(model.RunKindBench, start, exitCode, &model.Target{Executable: opts.Exe}, reporter)

	return runErr
}
