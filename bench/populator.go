package bench

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/orthanc-tools/harness/config"
	"github.com/orthanc-tools/harness/dicomgen"
	"github.com/orthanc-tools/harness/orthanc"
)

// Populator fills a fresh database with a deterministic set of studies so
// that find trials always hit the same data regardless of backend or size.
type Populator struct {
	client *orthanc.Client
	size   config.Size
	logger zerolog.Logger
}

func NewPopulator(client *orthanc.Client, size config.Size, logger zerolog.Logger) *Populator {
	return &Populator{client: client, size: size, logger: logger}
}

// Populate uploads the sentinel studies every size shares plus the filler
// that makes the database tiny, small or medium:
//   - patient 99998 owns exactly 5 single-instance studies,
//   - patient 99999 owns exactly 1 single-instance study.
//
// The find trials query those patients so their result counts stay
// comparable across sizes.
func (p *Populator) Populate(ctx context.Context) error {
	for study := 99994; study <= 99998; study++ {
		if err := p.createStudy(ctx, 99998, study, 1, 1); err != nil {
			return err
		}
	}
	if err := p.createStudy(ctx, 99999, 99999, 1, 1); err != nil {
		return err
	}

	var patientCount, smallStudies, largeStudies int
	switch p.size {
	case config.SizeTiny:
		return nil
	case config.SizeSmall:
		patientCount, smallStudies, largeStudies = 3, 2, 1
	default:
		patientCount, smallStudies, largeStudies = 100, 4, 8
	}

	for patient := 0; patient < patientCount; patient++ {
		p.logger.Info().Int("patient", patient).Msg("generating filler studies")
		study := 0
		for i := 0; i < smallStudies; i++ {
			if err := p.createStudy(ctx, patient, study, 2, 2); err != nil {
				return err
			}
			study++
		}
		for i := 0; i < largeStudies; i++ {
			if err := p.createStudy(ctx, patient, study, 4, 500); err != nil {
				return err
			}
			study++
		}
	}
	return nil
}

func (p *Populator) createStudy(ctx context.Context, patient, study, seriesCount, instancesPerSeries int) error {
	for series := 0; series < seriesCount; series++ {
		for instance := 0; instance < instancesPerSeries; instance++ {
			data, err := dicomgen.Generate(dicomgen.Attributes{
				PatientIndex:  patient,
				StudyIndex:    study,
				SeriesIndex:   series,
				InstanceIndex: instance,
			})
			if err != nil {
				return err
			}
			if _, err := p.client.UploadInstance(ctx, data); err != nil {
				return err
			}
		}
	}
	return nil
}
