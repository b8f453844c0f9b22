package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orthanc-tools/harness/model"
)

func TestSummarize(t *testing.T) {
	r := New()
	r.Record(model.ScenarioResult{Name: "Housekeeper", Status: model.StatusPassed, Elapsed: time.Second})
	r.Record(model.ScenarioResult{Name: "Jobs", Status: model.StatusFailed, Error: "job left Running"})
	r.Record(model.ScenarioResult{Name: "MaxStorageReject", Status: model.StatusErrored, Error: "decode failed"})

	s := r.Summarize()
	require.Equal(t, 1, s.Passed)
	require.Equal(t, 1, s.Failed)
	require.Equal(t, 1, s.Errored)
	require.Equal(t, []string{"Jobs", "MaxStorageReject"}, s.FailedNames)
	require.False(t, s.Ok())
}

func TestSummaryOkWhenAllPassed(t *testing.T) {
	r := New()
	r.Record(model.ScenarioResult{Name: "Jobs", Status: model.StatusPassed})
	require.True(t, r.Summarize().Ok())
}

func TestEmptySummaryIsOk(t *testing.T) {
	require.True(t, New().Summarize().Ok())
}

func TestResultsKeepExecutionOrder(t *testing.T) {
	r := New()
	r.Record(model.ScenarioResult{Name: "Jobs"})
	r.Record(model.ScenarioResult{Name: "Housekeeper"})

	results := r.Scenarios()
	require.Equal(t, "Jobs", results[0].Name)
	require.Equal(t, "Housekeeper", results[1].Name)
}

func TestRenderBenchmarks(t *testing.T) {
	r := New()
	r.RecordBenchmark(model.BenchmarkResult{
		Backend: "sqlite-small", Trial: "UploadFile",
		Timing: model.Timing{MeanMs: 12.345},
	})
	r.RecordBenchmark(model.BenchmarkResult{
		Backend: "pg11-small", Trial: "UploadFile",
		Timing: model.Timing{MeanMs: 8.1},
	})
	r.RecordBenchmark(model.BenchmarkResult{
		Backend: "sqlite-small", Trial: "Statistics",
		Timing: model.Timing{MeanMs: 1.5},
	})

	var out bytes.Buffer
	r.RenderBenchmarks(&out)

	rendered := out.String()
	require.Contains(t, rendered, "sqlite-small")
	require.Contains(t, rendered, "pg11-small")
	require.Contains(t, rendered, "UploadFile")
	require.Contains(t, rendered, "12.35 ms")
	// Statistics was never measured on pg11: its cell is a dash
	require.Contains(t, rendered, "-")
}

func TestRenderScenariosRoundsElapsedToMilliseconds(t *testing.T) {
	r := New()
	r.Record(model.ScenarioResult{
		Name:    "Jobs",
		Status:  model.StatusPassed,
		Elapsed: 1234567890 * time.Nanosecond,
	})

	var out bytes.Buffer
	r.RenderScenarios(&out)

	rendered := out.String()
	require.Contains(t, rendered, "1.235s")
	require.NotContains(t, rendered, "1.23456789s")
}

func TestWriteJSON(t *testing.T) {
	r := New()
	r.Record(model.ScenarioResult{Name: "Jobs", Status: model.StatusPassed, Elapsed: 3 * time.Second})
	r.RecordBenchmark(model.BenchmarkResult{Backend: "sqlite-small", Trial: "UploadFile", Timing: model.Timing{MeanMs: 10}})

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Summary    Summary                 `json:"summary"`
		Scenarios  []model.ScenarioResult  `json:"scenarios"`
		Benchmarks []model.BenchmarkResult `json:"benchmarks"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, 1, doc.Summary.Passed)
	require.Len(t, doc.Scenarios, 1)
	require.Len(t, doc.Benchmarks, 1)
	require.Equal(t, "UploadFile", doc.Benchmarks[0].Trial)
}
