package dicomgen

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func parse(t *testing.T, data []byte) dicom.Dataset {
	t.Helper()
	dataset, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)
	return dataset
}

func stringValue(t *testing.T, dataset dicom.Dataset, tg tag.Tag) string {
	t.Helper()
	element, err := dataset.FindElementByTag(tg)
	require.NoError(t, err)
	values := element.Value.GetValue().([]string)
	require.NotEmpty(t, values)
	return values[0]
}

func TestGenerateDefaults(t *testing.T) {
	data, err := Generate(Attributes{PatientIndex: 77777, StudyIndex: 1, InstanceIndex: 2})
	require.NoError(t, err)

	dataset := parse(t, data)
	require.Equal(t, "Patient-77777", stringValue(t, dataset, tag.PatientName))
	require.Equal(t, "77777", stringValue(t, dataset, tag.PatientID))
	require.Equal(t, "77777-1", stringValue(t, dataset, tag.StudyDescription))
	require.Equal(t, "77777.1", stringValue(t, dataset, tag.StudyInstanceUID))
	require.Equal(t, "77777.1.0", stringValue(t, dataset, tag.SeriesInstanceUID))
	require.Equal(t, "77777.1.0.2", stringValue(t, dataset, tag.SOPInstanceUID))
}

func TestGenerateExplicitAttributesWin(t *testing.T) {
	data, err := Generate(Attributes{
		PatientIndex:   1,
		PatientName:    "Doe^John",
		SOPInstanceUID: "1.2.3.4",
	})
	require.NoError(t, err)

	dataset := parse(t, data)
	require.Equal(t, "Doe^John", stringValue(t, dataset, tag.PatientName))
	require.Equal(t, "1.2.3.4", stringValue(t, dataset, tag.SOPInstanceUID))
}

func TestGenerateCarriesNonMainTags(t *testing.T) {
	data, err := Generate(Attributes{PatientIndex: 1})
	require.NoError(t, err)

	dataset := parse(t, data)
	require.Equal(t, "70", stringValue(t, dataset, tag.PatientWeight))
	require.Equal(t, "FS", stringValue(t, dataset, tag.ScanOptions))

	rows, err := dataset.FindElementByTag(tag.Rows)
	require.NoError(t, err)
	require.NotNil(t, rows)
}

func TestGenerateDistinctInstancesDiffer(t *testing.T) {
	first, err := Generate(Attributes{PatientIndex: 1, InstanceIndex: 0})
	require.NoError(t, err)
	second, err := Generate(Attributes{PatientIndex: 1, InstanceIndex: 1})
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestWriteFileNamesBySOPInstanceUID(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteFile(dir, Attributes{PatientIndex: 11, StudyIndex: 1})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "11.1.0.0.dcm"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
