package dicomgen

// Package dicomgen synthesizes minimal DICOM instances with controlled
// identifying tags. The harness uses them to seed databases and to feed
// upload scenarios without shipping a sample file corpus.

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Explicit VR little endian, the transfer syntax of every generated file.
const transferSyntaxUID = "1.2.840.10008.1.2.1"

// Secondary capture image storage.
const sopClassUID = "1.2.840.10008.5.1.4.1.1.7"

// Attributes are the identifying tags of one generated instance. Zero-value
// fields get deterministic defaults derived from the indices, matching the
// numbering scheme used when populating benchmark databases.
type Attributes struct {
	PatientIndex  int
	StudyIndex    int
	SeriesIndex   int
	InstanceIndex int

	PatientName       string
	PatientID         string
	StudyDescription  string
	SeriesDescription string
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
}

func (a Attributes) withDefaults() Attributes {
	if a.PatientName == "" {
		a.PatientName = fmt.Sprintf("Patient-%d", a.PatientIndex)
	}
	if a.PatientID == "" {
		a.PatientID = strconv.Itoa(a.PatientIndex)
	}
	if a.StudyDescription == "" {
		a.StudyDescription = fmt.Sprintf("%d-%d", a.PatientIndex, a.StudyIndex)
	}
	if a.SeriesDescription == "" {
		a.SeriesDescription = fmt.Sprintf("%d-%d-%d", a.PatientIndex, a.StudyIndex, a.SeriesIndex)
	}
	if a.StudyInstanceUID == "" {
		a.StudyInstanceUID = fmt.Sprintf("%d.%d", a.PatientIndex, a.StudyIndex)
	}
	if a.SeriesInstanceUID == "" {
		a.SeriesInstanceUID = fmt.Sprintf("%d.%d.%d", a.PatientIndex, a.StudyIndex, a.SeriesIndex)
	}
	if a.SOPInstanceUID == "" {
		a.SOPInstanceUID = fmt.Sprintf("%d.%d.%d.%d", a.PatientIndex, a.StudyIndex, a.SeriesIndex, a.InstanceIndex)
	}
	return a
}

// Generate encodes one DICOM instance carrying the given attributes.
func Generate(attr Attributes) ([]byte, error) {
	attr = attr.withDefaults()

	type tagged struct {
		tag   tag.Tag
		value any
	}
	elements := []tagged{
		{tag.MediaStorageSOPClassUID, []string{sopClassUID}},
		{tag.MediaStorageSOPInstanceUID, []string{attr.SOPInstanceUID}},
		{tag.TransferSyntaxUID, []string{transferSyntaxUID}},
		{tag.SOPClassUID, []string{sopClassUID}},
		{tag.SOPInstanceUID, []string{attr.SOPInstanceUID}},
		{tag.Modality, []string{"OT"}},
		{tag.PatientName, []string{attr.PatientName}},
		{tag.PatientID, []string{attr.PatientID}},
		{tag.StudyDescription, []string{attr.StudyDescription}},
		{tag.SeriesDescription, []string{attr.SeriesDescription}},
		{tag.StudyInstanceUID, []string{attr.StudyInstanceUID}},
		{tag.SeriesInstanceUID, []string{attr.SeriesInstanceUID}},
		{tag.SeriesNumber, []string{strconv.Itoa(attr.SeriesIndex)}},
		{tag.InstanceNumber, []string{strconv.Itoa(attr.InstanceIndex)}},
		// Tags outside the default main-tag set, so reconstruction
		// scenarios can observe ExtraMainDicomTags taking effect.
		{tag.PatientWeight, []string{"70"}},
		{tag.NameOfPhysiciansReadingStudy, []string{"Reading^Physician"}},
		{tag.ScanOptions, []string{"FS"}},
		{tag.Rows, []int{16}},
		{tag.Columns, []int{16}},
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
		return nil, fmt.Errorf("failed to encode instance %s: %w", attr.SOPInstanceUID, err)
	}
	return buf.Bytes(), nil
}

// WriteFile generates one instance and writes it to dir as <SOPInstanceUID>.dcm,
// returning the file path. storescu-based scenarios need files on disk.
func WriteFile(dir string, attr Attributes) (string, error) {
	attr = attr.withDefaults()
	data, err := Generate(attr)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, attr.SOPInstanceUID+".dcm")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
