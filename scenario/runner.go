package scenario

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthanc-tools/harness/lifecycle"
	"github.com/orthanc-tools/harness/model"
	"github.com/orthanc-tools/harness/orthanc"
	"github.com/orthanc-tools/harness/provision"
	"github.com/orthanc-tools/harness/report"
)

// Runner drives selected scenarios through their lifecycle, one at a time,
// and records their outcomes.
type Runner struct {
	logger   zerolog.Logger
	reporter *report.Reporter
	opts     lifecycle.Options
}

// NewRunner creates a Runner recording into reporter.
func NewRunner(logger zerolog.Logger, reporter *report.Reporter, opts lifecycle.Options) *Runner {
	return &Runner{logger: logger, reporter: reporter, opts: opts}
}

// Run executes the scenarios in order. Assertion failures and unexpected
// scenario errors are recorded and the run continues; provisioning and
// connectivity errors abort the whole run, since the server under test is
// required, not optional.
func (r *Runner) Run(ctx context.Context, env *Env, scenarios []Scenario) error {
	for _, s := range scenarios {
		if err := r.runOne(ctx, env, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runOne(ctx context.Context, env *Env, s Scenario) error {
	logger := r.logger.With().Str("scenario", s.Name()).Logger()
	logger.Info().Msg("Running scenario")

	ctrl := lifecycle.New(logger, r.opts)
	env.Controller = ctrl
	defer func() {
		ctrl.Teardown()
		env.Controller = nil
	}()

	start := time.Now()
	err := r.drive(ctx, env, s, ctrl)
	elapsed := time.Since(start)

	if err != nil {
		var pe *provision.ProvisioningError
		var ce *orthanc.ConnectivityError
		if errors.As(err, &pe) || errors.As(err, &ce) {
			// fatal: the run cannot continue without the server
			ctrl.Abort()
			return err
		}

		var failure *Failure
		status := model.StatusErrored
		if errors.As(err, &failure) {
			status = model.StatusFailed
		}
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("Scenario did not pass")
		r.reporter.Record(model.ScenarioResult{
			Name:    s.Name(),
			Status:  status,
			Error:   err.Error(),
			Elapsed: elapsed,
		})
		return nil
	}

	logger.Info().Dur("elapsed", elapsed).Msg("Scenario passed")
	r.reporter.Record(model.ScenarioResult{
		Name:    s.Name(),
		Status:  model.StatusPassed,
		Elapsed: elapsed,
	})
	return nil
}

// drive walks one scenario through the phase machine: break, prepare,
// break, launch or adopt the server under test, execute.
func (r *Runner) drive(ctx context.Context, env *Env, s Scenario, ctrl *lifecycle.Controller) error {
	if err := ctrl.BreakIfRequested(lifecycle.BreakBeforePreparation, ""); err != nil {
		return err
	}

	prepared := &Prepared{}
	err := ctrl.RunPreparation(ctx, func(ctx context.Context) error {
		p, err := s.Prepare(ctx, env)
		if err != nil {
			return err
		}
		prepared = p
		return nil
	})
	if err != nil {
		return err
	}

	// After a requested break the operator starts the server under test
	// manually; otherwise this process does, unless preparation was skipped
	// entirely (the server is then assumed to be running already).
	if prepared.ConfigPath != "" && !ctrl.BreakRequested(lifecycle.BreakAfterPreparation) {
		_, err := env.LaunchUnderTest(ctx, s.Name()+"_under_test", prepared.StorageName, prepared.ConfigPath)
		if err != nil {
			return err
		}
	}
	if err := ctrl.BreakIfRequested(lifecycle.BreakAfterPreparation, prepared.ConfigPath); err != nil {
		return err
	}
	if err := env.WaitUnderTestReady(ctx); err != nil {
		return err
	}

	return ctrl.RunExecution(ctx, func(ctx context.Context) error {
		return s.Execute(ctx, env)
	})
}
