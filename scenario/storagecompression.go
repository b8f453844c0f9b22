package scenario

// StorageCompression: seed a storage with compression enabled, restart the
// server with compression disabled, then read files stored both ways
// through the REST API. Reading twice exercises the storage cache on top of
// the mixed storage.

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/orthanc-tools/harness/dicomgen"
)

const storageCompressionStorage = "storage_compression"

const (
	compressedPatient   = 44444
	uncompressedPatient = 44445
)

type StorageCompression struct{}

func (s *StorageCompression) Name() string { return "StorageCompression" }

func (s *StorageCompression) Prepare(ctx context.Context, env *Env) (*Prepared, error) {
	if err := env.ClearStorage(storageCompressionStorage); err != nil {
		return nil, err
	}

	prepPath, err := env.GenerateConfiguration("storage_compression_preparation", storageCompressionStorage, map[string]any{
		"StorageCompression": true,
	})
	if err != nil {
		return nil, err
	}
	prep, err := env.LaunchPreparation(ctx, "storage_compression_preparation", storageCompressionStorage, prepPath)
	if err != nil {
		return nil, err
	}

	if err := s.uploadStudy(ctx, env, compressedPatient); err != nil {
		return nil, err
	}
	// the seeding instance itself must serve the file it just compressed
	if err := s.checkPatientReadable(ctx, env, compressedPatient); err != nil {
		return nil, err
	}

	if err := prep.Stop(); err != nil {
		return nil, err
	}

	configPath, err := env.GenerateConfiguration("storage_compression_under_test", storageCompressionStorage, map[string]any{
		"StorageCompression": false,
	})
	if err != nil {
		return nil, err
	}
	return &Prepared{ConfigPath: configPath, StorageName: storageCompressionStorage}, nil
}

func (s *StorageCompression) Execute(ctx context.Context, env *Env) error {
	if err := s.uploadStudy(ctx, env, uncompressedPatient); err != nil {
		return err
	}

	// second pass reads through the storage cache
	for pass := 0; pass < 2; pass++ {
		for _, patient := range []int{compressedPatient, uncompressedPatient} {
			if err := s.checkPatientReadable(ctx, env, patient); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *StorageCompression) uploadStudy(ctx context.Context, env *Env, patient int) error {
	for instance := 0; instance < 2; instance++ {
		data, err := dicomgen.Generate(dicomgen.Attributes{PatientIndex: patient, StudyIndex: 1, InstanceIndex: instance})
		if err != nil {
			return err
		}
		if _, err := env.Client.UploadInstance(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// checkPatientReadable finds the patient's study and downloads its first
// instance, decoding the file to prove the stored attachment is intact.
func (s *StorageCompression) checkPatientReadable(ctx context.Context, env *Env, patient int) error {
	studies, err := env.Client.FindStudies(ctx, map[string]string{"PatientID": strconv.Itoa(patient)})
	if err != nil {
		return err
	}
	if len(studies) != 1 {
		return Failf("patient %d: got %d studies, want 1", patient, len(studies))
	}

	ids, err := env.Client.Lookup(ctx, fmt.Sprintf("%d.1.0.0", patient), "Instance")
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return Failf("patient %d: lookup returned %d instances, want 1", patient, len(ids))
	}

	data, err := env.Client.InstanceDicom(ctx, ids[0])
	if err != nil {
		return err
	}
	name, err := patientNameOf(data)
	if err != nil {
		return Failf("patient %d: stored file is unreadable: %v", patient, err)
	}
	if want := fmt.Sprintf("Patient-%d", patient); name != want {
		return Failf("patient %d: stored file carries PatientName %q, want %q", patient, name, want)
	}
	return nil
}

func patientNameOf(data []byte) (string, error) {
	dataset, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return "", err
	}
	element, err := dataset.FindElementByTag(tag.PatientName)
	if err != nil {
		return "", err
	}
	values, _ := element.Value.GetValue().([]string)
	if len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}
