package orthanc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// jobServer simulates the /jobs API: every poll advances the job one step
// along the given state walk, the last state is sticky.
type jobServer struct {
	mu      sync.Mutex
	walk    []string
	step    int
	actions []string
}

func (s *jobServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		state := s.walk[s.step]
		if s.step < len(s.walk)-1 {
			s.step++
		}
		s.mu.Unlock()
		json.NewEncoder(w).Encode(Job{ID: "job-1", Type: "DicomModalityStore", State: state})
	})
	for _, action := range []string{"cancel", "pause", "resume", "resubmit"} {
		action := action
		mux.HandleFunc("/jobs/job-1/"+action, func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.actions = append(s.actions, action)
			s.mu.Unlock()
			w.Write([]byte("{}"))
		})
	}
	return mux
}

func TestWaitJobDoneReturnsTerminalState(t *testing.T) {
	js := &jobServer{walk: []string{"Pending", "Running", "Running", "Success"}}
	server := httptest.NewServer(js.handler())
	defer server.Close()

	client := New(server.URL, zerolog.Nop())
	job, err := client.WaitJobDone(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, job.IsDone())
	require.Equal(t, JobSuccess, job.State)
}

func TestWaitJobDoneNeverReturnsRunning(t *testing.T) {
	js := &jobServer{walk: []string{"Running", "Failure"}}
	server := httptest.NewServer(js.handler())
	defer server.Close()

	client := New(server.URL, zerolog.Nop())
	job, err := client.WaitJobDone(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, JobFailure, job.State)
}

func TestWaitJobDoneHonorsContext(t *testing.T) {
	js := &jobServer{walk: []string{"Running"}}
	server := httptest.NewServer(js.handler())
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	client := New(server.URL, zerolog.Nop())
	_, err := client.WaitJobDone(ctx, "job-1")
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCancelThenResubmit(t *testing.T) {
	js := &jobServer{walk: []string{"Running", "Failure", "Running", "Success"}}
	server := httptest.NewServer(js.handler())
	defer server.Close()

	client := New(server.URL, zerolog.Nop())

	require.NoError(t, client.CancelJob(context.Background(), "job-1"))
	job, err := client.WaitJobDone(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, JobFailure, job.State)

	require.NoError(t, client.ResubmitJob(context.Background(), "job-1"))
	job, err = client.WaitJobDone(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, JobSuccess, job.State)

	require.Equal(t, []string{"cancel", "resubmit"}, js.actions)
}

func TestJobActionOnUnknownJobIsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := New(server.URL, zerolog.Nop())
	err := client.CancelJob(context.Background(), "job-1")

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusNotFound, he.StatusCode)
}

func TestConnectivityErrorOnClosedServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := New(server.URL, zerolog.Nop())
	_, err := client.Job(context.Background(), "job-1")
	require.True(t, IsConnectivityError(err))
}
