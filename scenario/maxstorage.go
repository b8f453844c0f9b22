package scenario

// MaxStorageReject: with a patient-count quota in Reject mode, the third
// patient must be refused both through the REST API (507) and through a
// DICOM C-STORE (failed association).

import (
	"context"
	"errors"
	"os"

	"github.com/orthanc-tools/harness/dcmtk"
	"github.com/orthanc-tools/harness/dicomgen"
	"github.com/orthanc-tools/harness/orthanc"
)

const maxStorageStorage = "max_storage_reject"

type MaxStorageReject struct{}

func (m *MaxStorageReject) Name() string { return "MaxStorageReject" }

func (m *MaxStorageReject) Prepare(ctx context.Context, env *Env) (*Prepared, error) {
	if err := env.ClearStorage(maxStorageStorage); err != nil {
		return nil, err
	}
	configPath, err := env.GenerateConfiguration("max_storage_reject_under_test", maxStorageStorage, map[string]any{
		"MaximumPatientCount": 2,
		"MaximumStorageMode":  "Reject",
	})
	if err != nil {
		return nil, err
	}
	return &Prepared{ConfigPath: configPath, StorageName: maxStorageStorage}, nil
}

func (m *MaxStorageReject) Execute(ctx context.Context, env *Env) error {
	if err := m.checkRestUploads(ctx, env); err != nil {
		return err
	}
	return m.checkStoreSCU(ctx, env)
}

// checkRestUploads makes sure the third patient does not make it into the
// storage through the REST API.
func (m *MaxStorageReject) checkRestUploads(ctx context.Context, env *Env) error {
	if err := env.Client.DeleteAllContent(ctx); err != nil {
		return err
	}

	for patient := 1; patient <= 2; patient++ {
		if err := m.upload(ctx, env, patient); err != nil {
			return err
		}
	}

	err := m.upload(ctx, env, 3)
	var he *orthanc.HTTPError
	switch {
	case err == nil:
		return Failf("third patient was accepted despite the quota")
	case errors.As(err, &he):
		if he.StatusCode != 507 {
			return Failf("third patient rejected with status %d, want 507", he.StatusCode)
		}
	default:
		return err
	}

	return m.expectStudies(ctx, env, 2)
}

// checkStoreSCU repeats the check over the DICOM protocol with storescu.
func (m *MaxStorageReject) checkStoreSCU(ctx context.Context, env *Env) error {
	if err := env.Client.DeleteAllContent(ctx); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "max-storage-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	var files []string
	for patient := 11; patient <= 13; patient++ {
		path, err := dicomgen.WriteFile(dir, dicomgen.Attributes{PatientIndex: patient, StudyIndex: 1})
		if err != nil {
			return err
		}
		files = append(files, path)
	}

	store := func(file string) error {
		_, err := env.SCU.Run(ctx, "storescu", dcmtk.BuildStoreArgs(dcmtk.StoreOptions{
			Called: env.DicomNode(),
			Files:  []string{file},
		}))
		return err
	}

	for _, file := range files[:2] {
		if err := store(file); err != nil {
			return err
		}
	}
	if err := store(files[2]); err == nil {
		return Failf("third patient was accepted over DICOM despite the quota")
	}

	return m.expectStudies(ctx, env, 2)
}

func (m *MaxStorageReject) upload(ctx context.Context, env *Env, patient int) error {
	data, err := dicomgen.Generate(dicomgen.Attributes{PatientIndex: patient, StudyIndex: 1})
	if err != nil {
		return err
	}
	_, err = env.Client.UploadInstance(ctx, data)
	return err
}

func (m *MaxStorageReject) expectStudies(ctx context.Context, env *Env, want int) error {
	studies, err := env.Client.Studies(ctx)
	if err != nil {
		return err
	}
	if len(studies) != want {
		return Failf("got %d studies, want %d", len(studies), want)
	}
	return nil
}
