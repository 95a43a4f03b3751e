package domain

import (
	"fmt"

	"github.com/couchcryptid/broadband-data-etl/internal/frame"
)

// BDC column names.
const (
	ColCellRes8            = "h3_res8_id"
	ColProvider            = "brand_name"
	ColTechnology          = "technology_name"
	ColMaxDownload         = "max_advertised_download_speed"
	ColMaxUpload           = "max_advertised_upload_speed"
	ColBusinessResidential = "business_residential_code"
	ColCommonTech          = "common_tech"
	ColCategory            = "category"
)

// RecordsFromFrame decodes a stacked BDC batch into availability records.
func RecordsFromFrame(f *frame.Frame) ([]AvailabilityRecord, error) {
	cells, err := stringColumn(f, ColCellRes8)
	if err != nil {
		return nil, err
	}
	providers, err := stringColumn(f, ColProvider)
	if err != nil {
		return nil, err
	}
	techs, err := stringColumn(f, ColTechnology)
	if err != nil {
		return nil, err
	}
	codes, err := stringColumn(f, ColBusinessResidential)
	if err != nil {
		return nil, err
	}
	downs, err := f.IntValues(ColMaxDownload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	ups, err := f.IntValues(ColMaxUpload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	records := make([]AvailabilityRecord, f.Len())
	for i := range records {
		records[i] = AvailabilityRecord{
			CellRes8:            cells[i],
			Provider:            providers[i],
			Technology:          techs[i],
			MaxDownload:         downs[i],
			MaxUpload:           ups[i],
			BusinessResidential: codes[i],
		}
	}
	return records, nil
}

func stringColumn(f *frame.Frame, name string) ([]string, error) {
	values, err := f.StringValues(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	return values, nil
}
