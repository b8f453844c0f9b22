package report

// Package report aggregates scenario outcomes and benchmark timings, and
// renders them to the console or a JSON report file.

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/orthanc-tools/harness/model"
)

// Summary counts the outcomes of an integration-test run.
type Summary struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	// Names of the scenarios that did not pass, in execution order
	FailedNames []string `json:"failed_names,omitempty"`
}

// Ok reports whether the run should exit zero.
func (s Summary) Ok() bool { return s.Failed == 0 && s.Errored == 0 }

// Reporter collects results. Results are append-only: recorded once, never
// mutated, order preserved.
type Reporter struct {
	scenarios  []model.ScenarioResult
	benchmarks []model.BenchmarkResult
}

// New creates an empty Reporter.
func New() *Reporter {
	return &Reporter{}
}

// Record appends one scenario result. It never blocks.
func (r *Reporter) Record(result model.ScenarioResult) {
	r.scenarios = append(r.scenarios, result)
}

// RecordBenchmark appends one benchmark result.
func (r *Reporter) RecordBenchmark(result model.BenchmarkResult) {
	r.benchmarks = append(r.benchmarks, result)
}

// Scenarios returns the recorded scenario results in execution order.
func (r *Reporter) Scenarios() []model.ScenarioResult {
	return append([]model.ScenarioResult(nil), r.scenarios...)
}

// Benchmarks returns the recorded benchmark results in execution order.
func (r *Reporter) Benchmarks() []model.BenchmarkResult {
	return append([]model.BenchmarkResult(nil), r.benchmarks...)
}

// Summarize aggregates the scenario outcomes.
func (r *Reporter) Summarize() Summary {
	var s Summary
	for _, result := range r.scenarios {
		switch result.Status {
		case model.StatusPassed:
			s.Passed++
		case model.StatusFailed:
			s.Failed++
			s.FailedNames = append(s.FailedNames, result.Name)
		case model.StatusErrored:
			s.Errored++
			s.FailedNames = append(s.FailedNames, result.Name)
		}
	}
	return s
}

// RenderScenarios writes the integration-test outcome table.
func (r *Reporter) RenderScenarios(out io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Scenario", "Status", "Elapsed", "Error"})
	for _, result := range r.scenarios {
		t.AppendRow(table.Row{result.Name, string(result.Status), result.Elapsed.Round(time.Millisecond), result.Error})
	}
	s := r.Summarize()
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d passed, %d failed, %d errored", s.Passed, s.Failed, s.Errored), "", ""})
	t.Render()
}

// RenderBenchmarks writes the per-trial timing table, one column per
// backend, one row per trial, mean times in milliseconds.
func (r *Reporter) RenderBenchmarks(out io.Writer) {
	backends := map[string]bool{}
	trials := map[string]bool{}
	means := map[string]map[string]float64{}
	for _, b := range r.benchmarks {
		backends[b.Backend] = true
		trials[b.Trial] = true
		if means[b.Trial] == nil {
			means[b.Trial] = map[string]float64{}
		}
		means[b.Trial][b.Backend] = b.Timing.MeanMs
	}

	backendNames := sortedSet(backends)
	trialNames := sortedSet(trials)

	t := table.NewWriter()
	t.SetOutputMirror(out)

	header := table.Row{"Trial"}
	for _, b := range backendNames {
		header = append(header, b)
	}
	t.AppendHeader(header)

	for _, trial := range trialNames {
		row := table.Row{trial}
		for _, b := range backendNames {
			if mean, ok := means[trial][b]; ok {
				row = append(row, fmt.Sprintf("%.2f ms", mean))
			} else {
				row = append(row, "-")
			}
		}
		t.AppendRow(row)
	}
	t.Render()
}

func sortedSet(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// jsonReport is the document written by WriteJSON.
type jsonReport struct {
	Summary    Summary                 `json:"summary"`
	Scenarios  []model.ScenarioResult  `json:"scenarios,omitempty"`
	Benchmarks []model.BenchmarkResult `json:"benchmarks,omitempty"`
}

// WriteJSON writes the full report to a file.
func (r *Reporter) WriteJSON(path string) error {
	doc := jsonReport{
		Summary:    r.Summarize(),
		Scenarios:  r.scenarios,
		Benchmarks: r.benchmarks,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
