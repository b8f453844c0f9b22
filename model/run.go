package model

import "time"

// RunKind represents the kind of harness run
type RunKind string

const (
	RunKindTest  RunKind = "test"
	RunKindBench RunKind = "bench"
)

// Run represents a single harness execution (integration tests or benchmarks)
// It is persisted as JSON so previous runs can be listed and compared.
type Run struct {
	// Unique ID for this run (16 random bytes, hex encoded)
	ID string `json:"id"`
	// Kind of run (test or bench)
	Kind RunKind `json:"kind"`
	// Timestamp when the run started
	Timestamp time.Time `json:"timestamp"`
	// Command-line arguments (including command name)
	Args []string `json:"args"`
	// Working directory where the harness was run
	WorkDir string `json:"workdir"`
	// Exit code of the run
	ExitCode int `json:"exit_code"`
	// Duration of the whole run
	Duration time.Duration `json:"duration"`
	// Server under test (executable path or docker image reference)
	Target *Target `json:"target,omitempty"`
	// Scenario outcomes (test runs)
	Scenarios []ScenarioResult `json:"scenarios,omitempty"`
	// Timing aggregates (bench runs)
	Benchmarks []BenchmarkResult `json:"benchmarks,omitempty"`
}

// Target describes how the server under test was obtained.
type Target struct {
	// Path of the local executable, if launched from an executable
	Executable string `json:"executable,omitempty"`
	// Docker image reference, if launched as a container
	Image string `json:"image,omitempty"`
	// Hostname the harness talked to
	Hostname string `json:"hostname,omitempty"`
	// HTTP port of the server under test
	HTTPPort int `json:"http_port,omitempty"`
	// DICOM port of the server under test
	DicomPort int `json:"dicom_port,omitempty"`
}

// ScenarioStatus is the outcome of one executed scenario.
type ScenarioStatus string

const (
	// StatusPassed means every assertion of the scenario held
	StatusPassed ScenarioStatus = "passed"
	// StatusFailed means an assertion inside the scenario failed
	StatusFailed ScenarioStatus = "failed"
	// StatusErrored means the scenario raised an unexpected error
	StatusErrored ScenarioStatus = "errored"
)

// ScenarioResult is one outcome per executed scenario. Results are
// append-only: once recorded they are never mutated, and their order is
// the execution order.
type ScenarioResult struct {
	Name    string         `json:"name"`
	Status  ScenarioStatus `json:"status"`
	Error   string         `json:"error,omitempty"`
	Elapsed time.Duration  `json:"elapsed"`
}

// BenchmarkResult holds the timing aggregate of one trial against one
// database backend.
type BenchmarkResult struct {
	// Backend label (e.g. "pg11-small")
	Backend string `json:"backend"`
	// Trial name (e.g. "FindStudyByPatientId1Result")
	Trial  string `json:"trial"`
	Timing Timing `json:"timing"`
}
