package bench

import (
	"context"

	"github.com/orthanc-tools/harness/dicomgen"
	"github.com/orthanc-tools/harness/orthanc"
)

// The find trials query the sentinel studies seeded by the populator, so
// their result counts are the same on every database size.

type findStudiesTrial struct {
	Base
	name  string
	query map[string]string
}

func (t *findStudiesTrial) Name() string { return t.name }

func (t *findStudiesTrial) Measure(ctx context.Context, client *orthanc.Client) error {
	_, err := client.FindStudies(ctx, t.query)
	return err
}

type findPatientsTrial struct {
	Base
	name  string
	query map[string]string
}

func (t *findPatientsTrial) Name() string { return t.name }

func (t *findPatientsTrial) Measure(ctx context.Context, client *orthanc.Client) error {
	_, err := client.FindPatients(ctx, t.query)
	return err
}

// uploadFileTrial measures the ingestion of one instance. The instance is
// generated once, then deleted before each repetition so every sample is a
// fresh insert.
type uploadFileTrial struct {
	Base
	data       []byte
	instanceID string
}

func (t *uploadFileTrial) Name() string { return "UploadFile" }

func (t *uploadFileTrial) BeforeAll(ctx context.Context, client *orthanc.Client) error {
	data, err := dicomgen.Generate(dicomgen.Attributes{PatientIndex: 88888, StudyIndex: 1})
	if err != nil {
		return err
	}
	t.data = data
	return nil
}

func (t *uploadFileTrial) BeforeEach(ctx context.Context, client *orthanc.Client) error {
	if t.instanceID == "" {
		return nil
	}
	err := client.DeleteInstance(ctx, t.instanceID)
	t.instanceID = ""
	return err
}

func (t *uploadFileTrial) Measure(ctx context.Context, client *orthanc.Client) error {
	id, err := client.UploadInstance(ctx, t.data)
	t.instanceID = id
	return err
}

func (t *uploadFileTrial) AfterAll(ctx context.Context, client *orthanc.Client) error {
	if t.instanceID == "" {
		return nil
	}
	err := client.DeleteInstance(ctx, t.instanceID)
	t.instanceID = ""
	return err
}

type statisticsTrial struct {
	Base
}

func (t *statisticsTrial) Name() string { return "Statistics" }

func (t *statisticsTrial) Measure(ctx context.Context, client *orthanc.Client) error {
	_, err := client.Statistics(ctx)
	return err
}

// DefaultTrials is the trial suite every backend runs, in execution order.
func DefaultTrials() []Trial {
	return []Trial{
		&findStudiesTrial{name: "FindStudyByStudyDescription1Result", query: map[string]string{"StudyDescription": "99999-99999"}},
		&findStudiesTrial{name: "FindStudyByStudyDescription0Results", query: map[string]string{"StudyDescription": "X"}},
		&findStudiesTrial{name: "FindStudyByPatientId1Result", query: map[string]string{"PatientID": "99999"}},
		&findStudiesTrial{name: "FindStudyByPatientId0Results", query: map[string]string{"PatientID": "X"}},
		&findStudiesTrial{name: "FindStudyByPatientId5Results", query: map[string]string{"PatientID": "99998"}},
		&findStudiesTrial{name: "ToolsFindStudyByStudyInstanceUID", query: map[string]string{"StudyInstanceUID": "99999.99999"}},
		&findPatientsTrial{name: "ToolsFindPatientByPatientID", query: map[string]string{"PatientID": "99999"}},
		&uploadFileTrial{},
		&statisticsTrial{},
	}
}
