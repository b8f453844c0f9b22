package scenario

// Jobs: drive the job-control REST surface. The configuration registers the
// server under test as its own DICOM modality, so an asynchronous store job
// can be submitted, observed, canceled, resumed and resubmitted without a
// second server.

import (
	"context"
	"errors"

	"github.com/orthanc-tools/harness/config"
	"github.com/orthanc-tools/harness/dicomgen"
	"github.com/orthanc-tools/harness/orthanc"
)

const jobsStorage = "jobs"

type Jobs struct{}

func (j *Jobs) Name() string { return "Jobs" }

func (j *Jobs) Prepare(ctx context.Context, env *Env) (*Prepared, error) {
	if err := env.ClearStorage(jobsStorage); err != nil {
		return nil, err
	}

	conf := config.WithModality(map[string]any{}, "self", "ORTHANC", env.Hostname, env.DicomPort)
	configPath, err := env.GenerateConfiguration("jobs_under_test", jobsStorage, conf)
	if err != nil {
		return nil, err
	}
	return &Prepared{ConfigPath: configPath, StorageName: jobsStorage}, nil
}

func (j *Jobs) Execute(ctx context.Context, env *Env) error {
	if err := env.Client.DeleteAllContent(ctx); err != nil {
		return err
	}

	var resources []string
	for instance := 0; instance < 5; instance++ {
		data, err := dicomgen.Generate(dicomgen.Attributes{PatientIndex: 55555, StudyIndex: 1, InstanceIndex: instance})
		if err != nil {
			return err
		}
		id, err := env.Client.UploadInstance(ctx, data)
		if err != nil {
			return err
		}
		resources = append(resources, id)
	}

	// submit, query, cancel, resubmit: the final state must be terminal
	jobID, err := env.Client.StoreToModality(ctx, "self", resources, true, 0)
	if err != nil {
		return err
	}

	// the job may already be done when the cancel arrives; a 4xx answer
	// then is legitimate, anything else is not
	if err := env.Client.CancelJob(ctx, jobID); err != nil && !isHTTPError(err) {
		return err
	}

	job, err := env.Client.WaitJobDone(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.IsDone() {
		return Failf("job %s left the polling loop in state %s", jobID, job.State)
	}

	if job.State == orthanc.JobFailure {
		if err := env.Client.ResubmitJob(ctx, jobID); err != nil {
			return err
		}
		if job, err = env.Client.WaitJobDone(ctx, jobID); err != nil {
			return err
		}
		if job.State != orthanc.JobSuccess {
			return Failf("resubmitted job %s ended in state %s, want %s", jobID, job.State, orthanc.JobSuccess)
		}
	}

	// second job exercises pause/resume
	jobID, err = env.Client.StoreToModality(ctx, "self", resources, true, 0)
	if err != nil {
		return err
	}
	if err := env.Client.PauseJob(ctx, jobID); err != nil && !isHTTPError(err) {
		return err
	}
	job, err = env.Client.Job(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State == orthanc.JobPaused {
		if err := env.Client.ResumeJob(ctx, jobID); err != nil {
			return err
		}
	}
	if job, err = env.Client.WaitJobDone(ctx, jobID); err != nil {
		return err
	}
	if !job.IsDone() {
		return Failf("job %s left the polling loop in state %s", jobID, job.State)
	}

	// storing to itself must not have created new resources
	instances, err := env.Client.Instances(ctx)
	if err != nil {
		return err
	}
	if len(instances) != 5 {
		return Failf("instance count changed after self-store: got %d, want 5", len(instances))
	}
	return nil
}

func isHTTPError(err error) bool {
	var he *orthanc.HTTPError
	return errors.As(err, &he)
}
