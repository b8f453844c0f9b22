package lifecycle

// Package lifecycle sequences a test run through its preparation and
// execution phases, with optional operator breakpoints between them so an
// externally started server (e.g. under a debugger) can take over the
// prepared configuration.

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthanc-tools/harness/provision"
)

// State of a test run.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StatePrepared
	StateExecuting
	StateCompleted
	// StateAborted is terminal and reachable from any non-terminal state on
	// unrecoverable failure.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StatePrepared:
		return "prepared"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// BreakPoint identifies where an operator break can be requested.
type BreakPoint string

const (
	BreakBeforePreparation BreakPoint = "before_preparation"
	BreakAfterPreparation  BreakPoint = "after_preparation"
)

// Options configure a controller.
type Options struct {
	// Skip the seeding callback of the preparation phase
	SkipPreparation bool
	// Requested operator breaks
	Breaks map[BreakPoint]bool
	// Confirmation input for breaks; defaults to stdin
	Input io.Reader
	// Break instructions output; defaults to stdout
	Output io.Writer
	// Upper bound on each of the preparation and execution phases, so a
	// scenario stuck polling the server cannot hang the run forever.
	// Zero disables the bound. Operator breaks are never bounded.
	PhaseTimeout time.Duration
}

// Controller is the lifecycle state machine of one test run. It is strictly
// single-threaded: a break suspends everything until the operator confirms.
type Controller struct {
	state  State
	opts   Options
	logger zerolog.Logger

	// instances this controller started and therefore owns
	owned []*provision.Instance
}

// New creates a controller in the Idle state.
func New(logger zerolog.Logger, opts Options) *Controller {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Controller{
		state:  StateIdle,
		opts:   opts,
		logger: logger,
	}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

var transitions = map[State][]State{
	StateIdle:      {StatePreparing, StateAborted},
	StatePreparing: {StatePrepared, StateAborted},
	StatePrepared:  {StateExecuting, StateAborted},
	StateExecuting: {StateCompleted, StateAborted},
}

func (c *Controller) transition(to State) error {
	for _, allowed := range transitions[c.state] {
		if allowed == to {
			c.logger.Debug().Stringer("from", c.state).Stringer("to", to).Msg("Phase transition")
			c.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal phase transition %s -> %s", c.state, to)
}

// Abort moves any non-terminal run into the Aborted state.
func (c *Controller) Abort() {
	if c.state == StateCompleted || c.state == StateAborted {
		return
	}
	c.logger.Warn().Stringer("from", c.state).Msg("Run aborted")
	c.state = StateAborted
}

// RunPreparation executes the preparation phase: prepare generates the
// configuration and seeds the server-side state. With SkipPreparation set,
// prepare is not called but the phase still completes, so a previously
// prepared storage can be reused.
func (c *Controller) RunPreparation(ctx context.Context, prepare func(ctx context.Context) error) error {
	if err := c.transition(StatePreparing); err != nil {
		return err
	}
	if c.opts.SkipPreparation {
		c.logger.Info().Msg("Skipping preparation")
	} else {
		ctx, cancel := c.phaseContext(ctx)
		defer cancel()
		if err := prepare(ctx); err != nil {
			c.Abort()
			return fmt.Errorf("preparation failed: %w", err)
		}
	}
	return c.transition(StatePrepared)
}

// phaseContext bounds one phase with the configured timeout.
func (c *Controller) phaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.PhaseTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opts.PhaseTimeout)
}

// BreakIfRequested suspends the run at the given point when the run
// configuration asks for it: it prints where the prepared configuration
// lives and blocks until the operator confirms. No other work proceeds
// while paused, and the pause has no timeout.
func (c *Controller) BreakIfRequested(point BreakPoint, configPath string) error {
	if !c.opts.Breaks[point] {
		return nil
	}

	fmt.Fprintf(c.opts.Output, "++++ Break at %s ++++\n", point)
	if configPath != "" {
		fmt.Fprintf(c.opts.Output, "++++ It is now time to start your own server with configuration file '%s' ++++\n", configPath)
	}
	fmt.Fprintln(c.opts.Output, "Press Enter to continue")

	reader := bufio.NewReader(c.opts.Input)
	if _, err := reader.ReadString('\n'); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read operator confirmation: %w", err)
	}
	c.logger.Info().Str("point", string(point)).Msg("Operator resumed the run")
	return nil
}

// BreakRequested reports whether a break was asked for at the given point.
func (c *Controller) BreakRequested(point BreakPoint) bool {
	return c.opts.Breaks[point]
}

// RunExecution hands control to the scenario execution against whichever
// instance now serves the prepared configuration: the one this process
// started, or one the operator started during a break.
func (c *Controller) RunExecution(ctx context.Context, execute func(ctx context.Context) error) error {
	if err := c.transition(StateExecuting); err != nil {
		return err
	}
	ctx, cancel := c.phaseContext(ctx)
	defer cancel()
	if err := execute(ctx); err != nil {
		c.Abort()
		return err
	}
	return c.transition(StateCompleted)
}

// Own registers an instance started by this process, so Teardown stops it.
// Instances started manually by the operator are never registered: their
// lifecycle belongs to the operator.
func (c *Controller) Own(inst *provision.Instance) {
	c.owned = append(c.owned, inst)
}

// Teardown stops every owned instance, most recently started first.
func (c *Controller) Teardown() {
	for n := len(c.owned) - 1; n >= 0; n-- {
		if err := c.owned[n].Stop(); err != nil {
			c.logger.Warn().Err(err).Str("role", c.owned[n].Role).Msg("Failed to stop instance")
		}
	}
	c.owned = nil
}
