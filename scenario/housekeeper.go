package scenario

// Housekeeper: seed a storage with one study, then restart the server with
// StorageCompression and ExtraMainDicomTags changed and the Housekeeper
// plugin enabled, and check that the background reconstruction rewrote the
// stored files and database entries.

import (
	"context"
	"fmt"
	"time"

	"github.com/orthanc-tools/harness/dicomgen"
)

const housekeeperStorage = "housekeeper"

// Housekeeper needs the libHousekeeper plugin in --plugin.
type Housekeeper struct {
	sopInstanceUID string
	before         resourceInfos
}

type resourceInfos struct {
	instance map[string]any
	series   map[string]any
	study    map[string]any
	patient  map[string]any
}

func (h *Housekeeper) Name() string { return "Housekeeper" }

func (h *Housekeeper) Prepare(ctx context.Context, env *Env) (*Prepared, error) {
	if err := env.ClearStorage(housekeeperStorage); err != nil {
		return nil, err
	}

	prepPath, err := env.GenerateConfiguration("housekeeper_preparation", housekeeperStorage, map[string]any{
		"StorageCompression": false,
		"Housekeeper":        map[string]any{"Enable": false},
	})
	if err != nil {
		return nil, err
	}

	prep, err := env.LaunchPreparation(ctx, "housekeeper_preparation", housekeeperStorage, prepPath)
	if err != nil {
		return nil, err
	}

	// one study, one series, two instances
	for instance := 0; instance < 2; instance++ {
		attr := dicomgen.Attributes{PatientIndex: 77777, StudyIndex: 1, InstanceIndex: instance}
		data, err := dicomgen.Generate(attr)
		if err != nil {
			return nil, err
		}
		if _, err := env.Client.UploadInstance(ctx, data); err != nil {
			return nil, err
		}
		if instance == 0 {
			h.sopInstanceUID = "77777.1.0.0"
		}
	}

	h.before, err = h.getInfos(ctx, env)
	if err != nil {
		return nil, err
	}

	if err := prep.Stop(); err != nil {
		return nil, err
	}

	configPath, err := env.GenerateConfiguration("housekeeper_under_test", housekeeperStorage, map[string]any{
		"StorageCompression": true,
		"ExtraMainDicomTags": map[string]any{
			"Patient":  []string{"PatientWeight"},
			"Study":    []string{"NameOfPhysiciansReadingStudy"},
			"Series":   []string{"ScanOptions"},
			"Instance": []string{"Rows", "Columns"},
		},
		"Housekeeper": map[string]any{"Enable": true},
	})
	if err != nil {
		return nil, err
	}
	return &Prepared{ConfigPath: configPath, StorageName: housekeeperStorage}, nil
}

func (h *Housekeeper) Execute(ctx context.Context, env *Env) error {
	if err := h.waitProcessed(ctx, env); err != nil {
		return err
	}

	status, err := env.Client.HousekeeperStatus(ctx)
	if err != nil {
		return err
	}
	if status["LastTimeStarted"] == nil {
		return Failf("housekeeper never started: %v", status)
	}

	after, err := h.getInfos(ctx, env)
	if err != nil {
		return err
	}

	// extra tags were not in the database before reconstruction
	for _, check := range []struct {
		infos resourceInfos
		want  bool
	}{
		{h.before, false},
		{after, true},
	} {
		for _, extra := range []struct {
			level map[string]any
			tag   string
		}{
			{check.infos.instance, "Rows"},
			{check.infos.series, "ScanOptions"},
			{check.infos.study, "NameOfPhysiciansReadingStudy"},
			{check.infos.patient, "PatientWeight"},
		} {
			_, present := mainDicomTags(extra.level)[extra.tag]
			if present != check.want {
				return Failf("tag %s: present=%v, want %v", extra.tag, present, check.want)
			}
		}
	}

	// the storage was rewritten (compression changed), so the file UUID of
	// the instance must differ
	if h.before.instance["FileUuid"] == after.instance["FileUuid"] {
		return Failf("instance file was not rewritten: FileUuid still %v", after.instance["FileUuid"])
	}
	return nil
}

// waitProcessed polls /housekeeper/status until the plugin caught up with
// the new configuration and processed every pending change.
func (h *Housekeeper) waitProcessed(ctx context.Context, env *Env) error {
	for attempt := 0; attempt < 60; attempt++ {
		status, err := env.Client.HousekeeperStatus(ctx)
		if err != nil {
			return err
		}
		lastConf, _ := status["LastProcessedConfiguration"].(map[string]any)
		if lastConf["StorageCompressionEnabled"] == true &&
			status["LastChangeToProcess"] == status["LastProcessedChange"] {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("housekeeper did not finish processing in time")
}

func (h *Housekeeper) getInfos(ctx context.Context, env *Env) (resourceInfos, error) {
	var infos resourceInfos

	ids, err := env.Client.Lookup(ctx, h.sopInstanceUID, "Instance")
	if err != nil {
		return infos, err
	}
	if len(ids) != 1 {
		return infos, Failf("lookup of %s returned %d instances, want 1", h.sopInstanceUID, len(ids))
	}

	infos.instance, err = env.Client.Resource(ctx, "instances", ids[0])
	if err != nil {
		return infos, err
	}
	infos.series, err = env.Client.Resource(ctx, "series", asString(infos.instance["ParentSeries"]))
	if err != nil {
		return infos, err
	}
	infos.study, err = env.Client.Resource(ctx, "studies", asString(infos.series["ParentStudy"]))
	if err != nil {
		return infos, err
	}
	infos.patient, err = env.Client.Resource(ctx, "patients", asString(infos.study["ParentPatient"]))
	if err != nil {
		return infos, err
	}
	return infos, nil
}

func mainDicomTags(resource map[string]any) map[string]any {
	tags, _ := resource["MainDicomTags"].(map[string]any)
	return tags
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
