package dicomgen

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestGenerateWorklistDefaults(t *testing.T) {
	data, err := GenerateWorklist(WorklistAttributes{AccessionNumber: "20001"})
	require.NoError(t, err)

	dataset := parse(t, data)
	require.Equal(t, "20001", stringValue(t, dataset, tag.AccessionNumber))
	require.Equal(t, "Worklist^20001", stringValue(t, dataset, tag.PatientName))
	require.Equal(t, "20001", stringValue(t, dataset, tag.PatientID))
	require.Equal(t, "MR", stringValue(t, dataset, tag.Modality))
}

func TestGenerateWorklistRequiresAccessionNumber(t *testing.T) {
	_, err := GenerateWorklist(WorklistAttributes{})
	require.Error(t, err)
}

func TestWriteWorklistFileNamesByAccessionNumber(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteWorklistFile(dir, WorklistAttributes{AccessionNumber: "20002", PatientName: "Doe^Jane"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20002.wl"), path)

	data, err := GenerateWorklist(WorklistAttributes{AccessionNumber: "20002", PatientName: "Doe^Jane"})
	require.NoError(t, err)
	dataset := parse(t, data)
	require.Equal(t, "Doe^Jane", stringValue(t, dataset, tag.PatientName))
}
