package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/orthanc-tools/harness/history"
	"github.com/orthanc-tools/harness/model"
	"github.com/orthanc-tools/harness/report"
)

const AppName = "orthanc-harness"

const (
	defaultHTTPPort  = 8052
	defaultDicomPort = 4252
)

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Black-box integration tests and database benchmarks for the Orthanc DICOM server",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "test",
		Usage:  "Run integration scenarios against an Orthanc executable or docker image",
		Action: app.runTest,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "pattern",
				Aliases: []string{"k"},
				Usage:   "Only run scenarios matching this glob or substring (repeatable)",
			},
			&cli.StringFlag{
				Name:  "orthanc-under-tests-hostname",
				Usage: "Hostname the server under test answers on",
				Value: "localhost",
			},
			&cli.IntFlag{
				Name:  "orthanc-under-tests-http-port",
				Usage: "HTTP port of the server under test",
				Value: defaultHTTPPort,
			},
			&cli.IntFlag{
				Name:  "orthanc-under-tests-dicom-port",
				Usage: "DICOM port of the server under test",
				Value: defaultDicomPort,
			},
			&cli.StringFlag{
				Name:  "orthanc-under-tests-exe",
				Usage: "Path to the Orthanc executable under test",
			},
			&cli.StringFlag{
				Name:  "orthanc-under-tests-docker-image",
				Usage: "Docker image of the Orthanc under test",
			},
			&cli.StringFlag{
				Name:  "orthanc-previous-version-exe",
				Usage: "Path to a previous Orthanc executable used to prepare storages",
			},
			&cli.StringFlag{
				Name:  "orthanc-previous-version-docker-image",
				Usage: "Docker image of a previous Orthanc used to prepare storages",
			},
			&cli.StringSliceFlag{
				Name:    "plugin",
				Aliases: []string{"p"},
				Usage:   "Path to a plugin shared library to load (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "skip-preparation",
				Usage: "Reuse the storages prepared by a previous run",
			},
			&cli.DurationFlag{
				Name:  "scenario-timeout",
				Usage: "Upper bound on each scenario's preparation and execution phases (0 disables it)",
				Value: 30 * time.Minute,
			},
			&cli.BoolFlag{
				Name:  "break-before-preparation",
				Usage: "Pause before preparation, e.g. to attach a debugger to the preparation instance",
			},
			&cli.BoolFlag{
				Name:  "break-after-preparation",
				Usage: "Pause after preparation so the server under test can be started manually",
			},
			&cli.StringFlag{
				Name:  "work-dir",
				Usage: "Directory for generated configurations and storages",
				Value: "harness-work",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write the full JSON report to this path",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "bench",
		Usage:  "Measure REST operation latency across database backends",
		Action: app.runBench,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "plan",
				Usage: "YAML benchmark plan; omit to use the built-in plan",
			},
			&cli.StringSliceFlag{
				Name:  "backend",
				Usage: "Only run the plan entries with these labels (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "init",
				Usage: "Seed the databases",
			},
			&cli.BoolFlag{
				Name:  "run",
				Usage: "Run the trials (default when no action is given)",
			},
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Drop the database volumes and storages",
			},
			&cli.StringFlag{
				Name:  "orthanc-path",
				Usage: "Path to the Orthanc executable to measure",
				Value: "./Orthanc",
			},
			&cli.StringFlag{
				Name:  "plugins-path",
				Usage: "Folder containing the database plugins",
			},
			&cli.IntFlag{
				Name:  "http-port",
				Usage: "HTTP port of the measured instance",
				Value: defaultHTTPPort,
			},
			&cli.IntFlag{
				Name:  "dicom-port",
				Usage: "DICOM port of the measured instance",
				Value: defaultDicomPort,
			},
			&cli.IntFlag{
				Name:  "repeat",
				Usage: "Repetitions per trial (0 keeps the plan's repeat count)",
			},
			&cli.StringFlag{
				Name:  "work-dir",
				Usage: "Directory for generated configurations and storages",
				Value: "harness-work",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write the full JSON report to this path",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous runs",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Filter by run kind (test or bench)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

// recordRun persists one run in the history directory. Recording failures
// are logged, never fatal: the outcome of the run matters more than its
// bookkeeping.
func (a *App) recordRun(kind model.RunKind, start time.Time, exitCode int, target *model.Target, reporter *report.Reporter) {
	id, err := history.NewRunID()
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to record run")
		return
	}

	run := &model.Run{
		ID:         id,
		Kind:       kind,
		Timestamp:  start,
		Args:       os.Args,
		ExitCode:   exitCode,
		Duration:   time.Since(start),
		Target:     target,
		Scenarios:  reporter.Scenarios(),
		Benchmarks: reporter.Benchmarks(),
	}
	if cwd, err := os.Getwd(); err == nil {
		run.WorkDir = cwd
	}

	root, err := history.DefaultRoot()
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to record run")
		return
	}
	if _, err := history.Save(a.logger, root, run); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to record run")
	}
}
