package bench

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orthanc-tools/harness/model"
	"github.com/orthanc-tools/harness/orthanc"
)

type countingTrial struct {
	Base
	beforeAll  int
	beforeEach int
	measured   int
	afterEach  int
	afterAll   int
	fail       error
}

func (c *countingTrial) Name() string { return "Counting" }

func (c *countingTrial) BeforeAll(context.Context, *orthanc.Client) error {
	c.beforeAll++
	return nil
}

func (c *countingTrial) BeforeEach(context.Context, *orthanc.Client) error {
	c.beforeEach++
	return nil
}

func (c *countingTrial) Measure(context.Context, *orthanc.Client) error {
	c.measured++
	if c.fail != nil {
		return c.fail
	}
	time.Sleep(time.Millisecond)
	return nil
}

func (c *countingTrial) AfterEach(context.Context, *orthanc.Client) error {
	c.afterEach++
	return nil
}

func (c *countingTrial) AfterAll(context.Context, *orthanc.Client) error {
	c.afterAll++
	return nil
}

func TestRunSamplesExactlyRepeatTimes(t *testing.T) {
	trial := &countingTrial{}

	timing, err := Run(context.Background(), nil, trial, 10)
	require.NoError(t, err)

	require.Len(t, timing.SamplesMs, 10)
	require.Equal(t, 10, trial.measured)
	require.Equal(t, 1, trial.beforeAll)
	require.Equal(t, 10, trial.beforeEach)
	require.Equal(t, 10, trial.afterEach)
	require.Equal(t, 1, trial.afterAll)
	require.Greater(t, timing.MeanMs, 0.0)
}

func TestRunStopsOnMeasureError(t *testing.T) {
	trial := &countingTrial{fail: errors.New("find refused")}

	_, err := Run(context.Background(), nil, trial, 10)
	require.Error(t, err)
	require.Equal(t, 1, trial.measured)
	require.Zero(t, trial.afterEach)
}

func TestRunZeroRepetitionsIsAnError(t *testing.T) {
	trial := &countingTrial{}

	_, err := Run(context.Background(), nil, trial, 0)
	require.ErrorIs(t, err, model.ErrNoSamples)
	require.Zero(t, trial.measured)
}

func TestDefaultTrialsCoverTheSuite(t *testing.T) {
	var names []string
	for _, trial := range DefaultTrials() {
		names = append(names, trial.Name())
	}
	require.Equal(t, []string{
		"FindStudyByStudyDescription1Result",
		"FindStudyByStudyDescription0Results",
		"FindStudyByPatientId1Result",
		"FindStudyByPatientId0Results",
		"FindStudyByPatientId5Results",
		"ToolsFindStudyByStudyInstanceUID",
		"ToolsFindPatientByPatientID",
		"UploadFile",
		"Statistics",
	}, names)
}
