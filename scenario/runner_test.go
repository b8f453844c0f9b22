package scenario

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/orthanc-tools/harness/lifecycle"
	"github.com/orthanc-tools/harness/model"
	"github.com/orthanc-tools/harness/orthanc"
	"github.com/orthanc-tools/harness/provision"
	"github.com/orthanc-tools/harness/report"
)

// newTestEnv returns an Env whose client talks to a stub server answering
// /system, so the runner believes the server under test is already up.
func newTestEnv(t *testing.T) *Env {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/system" {
			w.Write([]byte(`{"Version":"1.12.0"}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	return &Env{
		Logger: zerolog.Nop(),
		Exe:    "/usr/bin/true",
		Client: orthanc.New(server.URL, zerolog.Nop()),
	}
}

func TestRunnerRecordsOneResultPerSelectedScenario(t *testing.T) {
	registry := newTestRegistry(t, "Housekeeper", "Jobs", "MaxStorageReject")
	selected := registry.Select([]string{"Jobs"})
	require.Len(t, selected, 1)

	reporter := report.New()
	runner := NewRunner(zerolog.Nop(), reporter, lifecycle.Options{})

	require.NoError(t, runner.Run(context.Background(), newTestEnv(t), selected))

	results := reporter.Scenarios()
	require.Len(t, results, 1)
	require.Equal(t, "Jobs", results[0].Name)
	require.Equal(t, model.StatusPassed, results[0].Status)
}

func TestRunnerRecordsAssertionFailureAndContinues(t *testing.T) {
	failing := &fakeScenario{
		name:    "Failing",
		execute: func(ctx context.Context, env *Env) error { return Failf("got 3 studies, want 2") },
	}
	passing := &fakeScenario{name: "Passing"}

	reporter := report.New()
	runner := NewRunner(zerolog.Nop(), reporter, lifecycle.Options{})

	require.NoError(t, runner.Run(context.Background(), newTestEnv(t), []Scenario{failing, passing}))

	results := reporter.Scenarios()
	require.Len(t, results, 2)
	require.Equal(t, model.StatusFailed, results[0].Status)
	require.Contains(t, results[0].Error, "want 2")
	require.Equal(t, model.StatusPassed, results[1].Status)
	require.Equal(t, 1, passing.executed)
}

func TestRunnerRecordsUnexpectedErrorAsErrored(t *testing.T) {
	erroring := &fakeScenario{
		name:    "Erroring",
		execute: func(ctx context.Context, env *Env) error { return errors.New("decode failed") },
	}

	reporter := report.New()
	runner := NewRunner(zerolog.Nop(), reporter, lifecycle.Options{})

	require.NoError(t, runner.Run(context.Background(), newTestEnv(t), []Scenario{erroring}))

	results := reporter.Scenarios()
	require.Len(t, results, 1)
	require.Equal(t, model.StatusErrored, results[0].Status)
}

func TestRunnerAbortsOnProvisioningError(t *testing.T) {
	broken := &fakeScenario{
		name: "Broken",
		prepare: func(ctx context.Context, env *Env) (*Prepared, error) {
			return nil, &provision.ProvisioningError{Role: "orthanc-previous-version", Detail: "failed to launch"}
		},
	}
	never := &fakeScenario{name: "Never"}

	reporter := report.New()
	runner := NewRunner(zerolog.Nop(), reporter, lifecycle.Options{})

	err := runner.Run(context.Background(), newTestEnv(t), []Scenario{broken, never})
	require.Error(t, err)

	var pe *provision.ProvisioningError
	require.ErrorAs(t, err, &pe)
	require.Empty(t, reporter.Scenarios())
	require.Zero(t, never.prepared)
}

func TestRunnerRecordsStuckScenarioAsErrored(t *testing.T) {
	stuck := &fakeScenario{
		name: "Stuck",
		execute: func(ctx context.Context, env *Env) error {
			// polls the server forever, like a job that never leaves Running
			<-ctx.Done()
			return ctx.Err()
		},
	}
	after := &fakeScenario{name: "After"}

	reporter := report.New()
	runner := NewRunner(zerolog.Nop(), reporter, lifecycle.Options{PhaseTimeout: 20 * time.Millisecond})

	require.NoError(t, runner.Run(context.Background(), newTestEnv(t), []Scenario{stuck, after}))

	results := reporter.Scenarios()
	require.Len(t, results, 2)
	require.Equal(t, model.StatusErrored, results[0].Status)
	require.Contains(t, results[0].Error, "deadline")
	require.Equal(t, model.StatusPassed, results[1].Status)
}

func TestRunnerSkipPreparation(t *testing.T) {
	s := &fakeScenario{name: "Skipped"}

	reporter := report.New()
	runner := NewRunner(zerolog.Nop(), reporter, lifecycle.Options{SkipPreparation: true})

	require.NoError(t, runner.Run(context.Background(), newTestEnv(t), []Scenario{s}))
	require.Zero(t, s.prepared)
	require.Equal(t, 1, s.executed)

	results := reporter.Scenarios()
	require.Len(t, results, 1)
	require.Equal(t, model.StatusPassed, results[0].Status)
}
