package orthanc

// Job-control helpers over /jobs/{id} and its action endpoints.

import (
	"context"
	"fmt"
	"time"
)

// Job states reported by the server.
const (
	JobPending = "Pending"
	JobRunning = "Running"
	JobPaused  = "Paused"
	JobSuccess = "Success"
	JobFailure = "Failure"
	JobRetry   = "Retry"
)

// Job is the JSON document of GET /jobs/{id}.
type Job struct {
	ID       string         `json:"ID"`
	Type     string         `json:"Type"`
	State    string         `json:"State"`
	Progress int            `json:"Progress"`
	Priority int            `json:"Priority"`
	Content  map[string]any `json:"Content"`
}

// IsDone reports whether the job reached a terminal state.
func (j *Job) IsDone() bool {
	return j.State == JobSuccess || j.State == JobFailure
}

// Job fetches the current state of one job.
func (c *Client) Job(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.GetJSON(ctx, "/jobs/"+id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Jobs lists all job IDs known to the server.
func (c *Client) Jobs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.GetJSON(ctx, "/jobs", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CancelJob asks the server to cancel a job.
func (c *Client) CancelJob(ctx context.Context, id string) error {
	return c.jobAction(ctx, id, "cancel")
}

// PauseJob asks the server to pause a job.
func (c *Client) PauseJob(ctx context.Context, id string) error {
	return c.jobAction(ctx, id, "pause")
}

// ResumeJob resumes a paused job.
func (c *Client) ResumeJob(ctx context.Context, id string) error {
	return c.jobAction(ctx, id, "resume")
}

// ResubmitJob restarts a failed or canceled job.
func (c *Client) ResubmitJob(ctx context.Context, id string) error {
	return c.jobAction(ctx, id, "resubmit")
}

func (c *Client) jobAction(ctx context.Context, id, action string) error {
	return c.PostJSON(ctx, "/jobs/"+id+"/"+action, map[string]any{}, nil)
}

// WaitJobDone polls a job until it reaches Success or Failure. The caller
// bounds the wait through ctx; polling never returns a job still in a
// non-terminal state.
func (c *Client) WaitJobDone(ctx context.Context, id string) (*Job, error) {
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.IsDone() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("job %s still in state %s: %w", id, job.State, ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// StoreToModality submits a store job towards a registered DICOM modality.
// With asynchronous set, the answer carries the job ID to drive through the
// /jobs API.
func (c *Client) StoreToModality(ctx context.Context, modality string, resources []string, asynchronous bool, priority int) (string, error) {
	var answer struct {
		ID string `json:"ID"`
	}
	err := c.PostJSON(ctx, "/modalities/"+modality+"/store", map[string]any{
		"Resources":    resources,
		"Asynchronous": asynchronous,
		"Priority":     priority,
	}, &answer)
	if err != nil {
		return "", err
	}
	return answer.ID, nil
}
