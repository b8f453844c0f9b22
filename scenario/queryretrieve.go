package scenario

// QueryRetrieve: drive the DICOM network side of the server under test with
// the DCMTK SCUs. The configuration registers the server as its own
// modality, so a C-MOVE can target it without a second server; C-GET
// retrieves over the querying association and needs no registration.

import (
	"context"
	"os"
	"strings"

	"github.com/orthanc-tools/harness/config"
	"github.com/orthanc-tools/harness/dcmtk"
	"github.com/orthanc-tools/harness/dicomgen"
)

const queryRetrieveStorage = "query_retrieve"

const (
	qrStudyUID       = "66666.1"
	qrInstanceCount  = 2
	qrMissingStudy   = "5.6.7"
	qrPatientID      = "66666"
	qrWrongPatientID = "60606"
)

type QueryRetrieve struct{}

func (q *QueryRetrieve) Name() string { return "QueryRetrieve" }

func (q *QueryRetrieve) Prepare(ctx context.Context, env *Env) (*Prepared, error) {
	if err := env.ClearStorage(queryRetrieveStorage); err != nil {
		return nil, err
	}

	conf := config.WithModality(map[string]any{}, "self", "ORTHANC", env.Hostname, env.DicomPort)
	configPath, err := env.GenerateConfiguration("query_retrieve_under_test", queryRetrieveStorage, conf)
	if err != nil {
		return nil, err
	}
	return &Prepared{ConfigPath: configPath, StorageName: queryRetrieveStorage}, nil
}

func (q *QueryRetrieve) Execute(ctx context.Context, env *Env) error {
	if _, err := env.SCU.Run(ctx, "echoscu", dcmtk.BuildEchoArgs(dcmtk.EchoOptions{
		Called: env.DicomNode(),
	})); err != nil {
		return Failf("echo was refused: %v", err)
	}

	if err := env.Client.DeleteAllContent(ctx); err != nil {
		return err
	}
	for instance := 0; instance < qrInstanceCount; instance++ {
		data, err := dicomgen.Generate(dicomgen.Attributes{PatientIndex: 66666, StudyIndex: 1, InstanceIndex: instance})
		if err != nil {
			return err
		}
		if _, err := env.Client.UploadInstance(ctx, data); err != nil {
			return err
		}
	}

	if err := q.checkFind(ctx, env); err != nil {
		return err
	}
	if err := q.checkGet(ctx, env); err != nil {
		return err
	}
	return q.checkMove(ctx, env)
}

// checkFind queries at study level: the uploaded study must come back, a
// query on an absent patient must not.
func (q *QueryRetrieve) checkFind(ctx context.Context, env *Env) error {
	out, err := env.SCU.Run(ctx, "findscu", dcmtk.BuildFindArgs(dcmtk.FindOptions{
		Called: env.DicomNode(),
		Level:  "STUDY",
		Keys:   map[string]string{"PatientID": qrPatientID, "StudyInstanceUID": ""},
	}))
	if err != nil {
		return err
	}
	if !strings.Contains(out, qrStudyUID) {
		return Failf("find on patient %s did not return study %s: %s", qrPatientID, qrStudyUID, out)
	}

	out, err = env.SCU.Run(ctx, "findscu", dcmtk.BuildFindArgs(dcmtk.FindOptions{
		Called: env.DicomNode(),
		Level:  "STUDY",
		Keys:   map[string]string{"PatientID": qrWrongPatientID, "StudyInstanceUID": ""},
	}))
	if err != nil {
		return err
	}
	if strings.Contains(out, qrStudyUID) {
		return Failf("find on patient %s unexpectedly matched study %s", qrWrongPatientID, qrStudyUID)
	}
	return nil
}

// checkGet retrieves the study over C-GET and counts the received files; a
// retrieve of an unknown study must fail without delivering anything.
func (q *QueryRetrieve) checkGet(ctx context.Context, env *Env) error {
	dir, err := os.MkdirTemp("", "query-retrieve-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	if _, err := env.SCU.Run(ctx, "getscu", dcmtk.BuildGetArgs(dcmtk.GetOptions{
		Called:    env.DicomNode(),
		Level:     "STUDY",
		Keys:      map[string]string{"StudyInstanceUID": qrStudyUID},
		OutputDir: dir,
	})); err != nil {
		return err
	}
	received, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(received) != qrInstanceCount {
		return Failf("retrieved %d instances, want %d", len(received), qrInstanceCount)
	}

	empty, err := os.MkdirTemp("", "query-retrieve-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(empty)

	if _, err := env.SCU.Run(ctx, "getscu", dcmtk.BuildGetArgs(dcmtk.GetOptions{
		Called:    env.DicomNode(),
		Level:     "STUDY",
		Keys:      map[string]string{"StudyInstanceUID": qrMissingStudy},
		OutputDir: empty,
	})); err == nil {
		return Failf("retrieving absent study %s was reported as a success", qrMissingStudy)
	}
	received, err = os.ReadDir(empty)
	if err != nil {
		return err
	}
	if len(received) != 0 {
		return Failf("retrieving absent study %s delivered %d instances", qrMissingStudy, len(received))
	}
	return nil
}

// checkMove moves the study to the server's own AE title; the instances
// already exist there, so the count must not change.
func (q *QueryRetrieve) checkMove(ctx context.Context, env *Env) error {
	if _, err := env.SCU.Run(ctx, "movescu", dcmtk.BuildMoveArgs(dcmtk.MoveOptions{
		Called:      env.DicomNode(),
		Destination: "ORTHANC",
		Level:       "STUDY",
		Keys:        map[string]string{"StudyInstanceUID": qrStudyUID},
	})); err != nil {
		return err
	}

	instances, err := env.Client.Instances(ctx)
	if err != nil {
		return err
	}
	if len(instances) != qrInstanceCount {
		return Failf("instance count changed after self-move: got %d, want %d", len(instances), qrInstanceCount)
	}
	return nil
}
