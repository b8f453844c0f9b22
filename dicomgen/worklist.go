package dicomgen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Modality worklist information model - FIND.
const worklistSOPClassUID = "1.2.840.10008.5.1.4.31"

// WorklistAttributes describe one scheduled procedure entry served by the
// worklist database of the server under test.
type WorklistAttributes struct {
	AccessionNumber string
	PatientName     string
	PatientID       string
	Modality        string
}

func (a WorklistAttributes) withDefaults() WorklistAttributes {
	if a.PatientName == "" {
		a.PatientName = fmt.Sprintf("Worklist^%s", a.AccessionNumber)
	}
	if a.PatientID == "" {
		a.PatientID = a.AccessionNumber
	}
	if a.Modality == "" {
		a.Modality = "MR"
	}
	return a
}

// GenerateWorklist encodes one worklist entry. The worklist plugin matches
// C-FIND keys against these attributes when answering findscu -W queries.
func GenerateWorklist(attr WorklistAttributes) ([]byte, error) {
	if attr.AccessionNumber == "" {
		return nil, fmt.Errorf("a worklist entry needs an accession number")
	}
	attr = attr.withDefaults()

	type tagged struct {
		tag   tag.Tag
		value any
	}
	elements := []tagged{
		{tag.MediaStorageSOPClassUID, []string{worklistSOPClassUID}},
		{tag.MediaStorageSOPInstanceUID, []string{"2.25." + attr.AccessionNumber}},
		{tag.TransferSyntaxUID, []string{transferSyntaxUID}},
		{tag.AccessionNumber, []string{attr.AccessionNumber}},
		{tag.PatientName, []string{attr.PatientName}},
		{tag.PatientID, []string{attr.PatientID}},
		{tag.Modality, []string{attr.Modality}},
	}

	dataset := dicom.Dataset{}
	for _, e := range elements {
		element, err := dicom.NewElement(e.tag, e.value)
		if err != nil {
			return nil, fmt.Errorf("failed to build element %v: %w", e.tag, err)
		}
		dataset.Elements = append(dataset.Elements, element)
	}

	var buf bytes.Buffer
	if err := dicom.Write(&buf, dataset, dicom.SkipVRVerification()); err != nil {
		return nil, fmt.Errorf("failed to encode worklist entry %s: %w", attr.AccessionNumber, err)
	}
	return buf.Bytes(), nil
}

// WriteWorklistFile writes one entry to dir as <AccessionNumber>.wl, the
// layout the worklist plugin expects in its database directory.
func WriteWorklistFile(dir string, attr WorklistAttributes) (string, error) {
	data, err := GenerateWorklist(attr)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, attr.AccessionNumber+".wl")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
