package domain

import (
	"context"

	"github.com/couchcryptid/broadband-data-etl/internal/frame"
)

// Extraction is one reporting period of availability data, stacked from every
// provider file for the state.
type Extraction struct {
	AsOf  string // BDC as-of date, YYYY-MM-DD
	Files int
	Frame *frame.Frame
}

// Extractor pulls the latest availability data from the regulator.
type Extractor interface {
	Extract(ctx context.Context) (Extraction, error)
}

// Notifier delivers the run report to operators.
type Notifier interface {
	Notify(ctx context.Context, report RunReport) error
}
