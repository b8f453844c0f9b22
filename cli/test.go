package cli

// The test command: run the integration scenario catalogue against an
// Orthanc launched from an executable or a docker image.

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/orthanc-tools/harness/config"
	"github.com/orthanc-tools/harness/dcmtk"
	"github.com/orthanc-tools/harness/lifecycle"
	"github.com/orthanc-tools/harness/model"
	"github.com/orthanc-tools/harness/orthanc"
	"github.com/orthanc-tools/harness/report"
	"github.com/orthanc-tools/harness/scenario"
)

func (a *App) runTest(ctx *cli.Context) error {
	start := time.Now()

	exe := ctx.String("orthanc-under-tests-exe")
	image := ctx.String("orthanc-under-tests-docker-image")
	if (exe == "") == (image == "") {
		return &config.ConfigurationError{
			Field:  "orthanc-under-tests",
			Reason: "exactly one of --orthanc-under-tests-exe and --orthanc-under-tests-docker-image is required",
		}
	}
	if prevExe, prevImage := ctx.String("orthanc-previous-version-exe"), ctx.String("orthanc-previous-version-docker-image"); prevExe != "" && prevImage != "" {
		return &config.ConfigurationError{
			Field:  "orthanc-previous-version",
			Reason: "at most one of --orthanc-previous-version-exe and --orthanc-previous-version-docker-image may be given",
		}
	}

	hostname := ctx.String("orthanc-under-tests-hostname")
	httpPort := ctx.Int("orthanc-under-tests-http-port")
	dicomPort := ctx.Int("orthanc-under-tests-dicom-port")

	env := &scenario.Env{
		Logger:        a.logger,
		Hostname:      hostname,
		HTTPPort:      httpPort,
		DicomPort:     dicomPort,
		Exe:           exe,
		Image:         image,
		PreviousExe:   ctx.String("orthanc-previous-version-exe"),
		PreviousImage: ctx.String("orthanc-previous-version-docker-image"),
		Plugins:       ctx.StringSlice("plugin"),
		BaseDir:       ctx.String("work-dir"),
		Client:        orthanc.New(fmt.Sprintf("http://%s:%d", hostname, httpPort), a.logger),
		SCU:           dcmtk.NewRunner(a.logger),
	}

	registry, err := scenario.DefaultRegistry()
	if err != nil {
		return err
	}
	selected := registry.Select(ctx.StringSlice("pattern"))
	if len(selected) == 0 {
		a.logger.Warn().Strs("patterns", ctx.StringSlice("pattern")).Msg("No scenario matched")
	}
	a.logger.Info().Int("scenarios", len(selected)).Str("target", env.String()).Msg("Starting integration run")

	opts := lifecycle.Options{
		SkipPreparation: ctx.Bool("skip-preparation"),
		Breaks: map[lifecycle.BreakPoint]bool{
			lifecycle.BreakBeforePreparation: ctx.Bool("break-before-preparation"),
			lifecycle.BreakAfterPreparation:  ctx.Bool("break-after-preparation"),
		},
		PhaseTimeout: ctx.Duration("scenario-timeout"),
	}

	reporter := report.New()
	runErr := scenario.NewRunner(a.logger, reporter, opts).Run(ctx.Context, env, selected)

	reporter.RenderScenarios(ctx.App.Writer)
	if path := ctx.String("report"); path != "" {
		if err := reporter.WriteJSON(path); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to write report")
		}
	}

	summary := reporter.Summarize()
	exitCode := 0
	if runErr != nil || !summary.Ok() {
		exitCode = 1
	}

	target := &model.Target{
		Executable: exe,
		Image:      image,
		Hostname:   hostname,
		HTTPPort:   httpPort,
		DicomPort:  dicomPort,
	}
	a.recordRun(model.RunKindTest, start, exitCode, target, reporter)

	if runErr != nil {
		return runErr
	}
	if !summary.Ok() {
		return cli.Exit(fmt.Sprintf("%d of %d scenarios did not pass", summary.Failed+summary.Errored, len(selected)), 1)
	}
	return nil
}
