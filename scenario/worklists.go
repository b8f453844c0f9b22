package scenario

// Worklists: serve a small worklist database and query it over the DICOM
// modality worklist model with findscu. Needs the libModalityWorklists
// plugin in --plugin, and the worklist database directory visible to the
// server (exe mode, or a matching mount in docker mode).

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/orthanc-tools/harness/dcmtk"
	"github.com/orthanc-tools/harness/dicomgen"
)

const worklistsStorage = "worklists"

type Worklists struct{}

func (w *Worklists) Name() string { return "Worklists" }

func (w *Worklists) Prepare(ctx context.Context, env *Env) (*Prepared, error) {
	if err := env.ClearStorage(worklistsStorage); err != nil {
		return nil, err
	}

	database := filepath.Join(env.BaseDir, "worklists")
	if err := os.RemoveAll(database); err != nil {
		return nil, err
	}
	for _, entry := range []dicomgen.WorklistAttributes{
		{AccessionNumber: "20001", Modality: "MR"},
		{AccessionNumber: "20002", Modality: "CT"},
	} {
		if _, err := dicomgen.WriteWorklistFile(database, entry); err != nil {
			return nil, err
		}
	}

	configPath, err := env.GenerateConfiguration("worklists_under_test", worklistsStorage, map[string]any{
		"Worklists": map[string]any{
			"Enable":   true,
			"Database": database,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Prepared{ConfigPath: configPath, StorageName: worklistsStorage}, nil
}

func (w *Worklists) Execute(ctx context.Context, env *Env) error {
	// exact match on one entry
	out, err := w.query(ctx, env, map[string]string{"PatientID": "20001", "PatientName": ""})
	if err != nil {
		return err
	}
	if !strings.Contains(out, "Worklist^20001") {
		return Failf("worklist query on 20001 returned no entry: %s", out)
	}
	if strings.Contains(out, "Worklist^20002") {
		return Failf("worklist query on 20001 also matched 20002")
	}

	// universal match returns every entry
	out, err = w.query(ctx, env, map[string]string{"PatientName": ""})
	if err != nil {
		return err
	}
	for _, name := range []string{"Worklist^20001", "Worklist^20002"} {
		if !strings.Contains(out, name) {
			return Failf("universal worklist query is missing %s: %s", name, out)
		}
	}

	// no match
	out, err = w.query(ctx, env, map[string]string{"PatientID": "20999", "PatientName": ""})
	if err != nil {
		return err
	}
	if strings.Contains(out, "Worklist^") {
		return Failf("worklist query on an absent patient matched an entry: %s", out)
	}
	return nil
}

func (w *Worklists) query(ctx context.Context, env *Env, keys map[string]string) (string, error) {
	return env.SCU.Run(ctx, "findscu", dcmtk.BuildWorklistArgs(dcmtk.WorklistOptions{
		Called: env.DicomNode(),
		Keys:   keys,
	}))
}
