package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/broadband-data-etl/internal/coverage"
	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/couchcryptid/broadband-data-etl/internal/hexindex"
	"golang.org/x/sync/errgroup"
)

// Result holds every output of one transform, ready to publish.
type Result struct {
	Coverage     map[int][]domain.CoveragePolygon // by resolution
	Summary      []domain.SpeedSummary
	SummaryHexes []domain.CellGeometry
	Unmatched    map[int][]string // cells with service but no hex polygon, by resolution
}

// Transform classifies the records in place, derives their coarser cells, and
// builds the coverage layers and speed summary. hexes holds the hex polygons
// for each resolution in domain.Resolutions.
//
// Records are enriched once before the per-resolution work fans out; the
// branches only read them.
func Transform(ctx context.Context, records []domain.AvailabilityRecord, hexes map[int][]domain.CellGeometry) (Result, error) {
	domain.ClassifyRecords(records)

	var coarser []int
	for _, res := range domain.Resolutions {
		if res < domain.FinestResolution {
			coarser = append(coarser, res)
		}
	}
	if err := hexindex.AddAncestors(records, coarser...); err != nil {
		return Result{}, fmt.Errorf("transform: %w", err)
	}

	result := Result{
		Coverage:  make(map[int][]domain.CoveragePolygon, len(domain.Resolutions)),
		Unmatched: make(map[int][]string),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, res := range domain.Resolutions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			aggregates, err := coverage.Aggregate(records, res, hexes[res])
			if err != nil {
				return fmt.Errorf("transform resolution %d: %w", res, err)
			}
			polygons := coverage.Dissolve(aggregates)
			unmatched := coverage.Unmatched(aggregates)

			mu.Lock()
			defer mu.Unlock()
			result.Coverage[res] = polygons
			if len(unmatched) > 0 {
				result.Unmatched[res] = unmatched
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	summary, err := coverage.SummarizeMaxByCell(records)
	if err != nil {
		return Result{}, fmt.Errorf("transform: %w", err)
	}
	result.Summary = summary
	result.SummaryHexes = coverage.FilterCells(hexes[domain.FinestResolution], summary)
	return result, nil
}
