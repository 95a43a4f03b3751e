package coverage

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
)

type summaryKey struct {
	cell     string
	provider string
	common   domain.CommonTech
	category domain.Category
}

// SummarizeMaxByCell builds the speed table behind the finest hex layer: the
// best download and upload per cell, provider, common technology and category
// over residential and mixed-use records. Records must already be classified.
//
// Speeds are published as 16-bit integers; a negative maximum or one outside
// that range fails the run. Provider names are shortened after grouping, so two providers that
// share a display name stay separate rows.
func SummarizeMaxByCell(records []domain.AvailabilityRecord) ([]domain.SpeedSummary, error) {
	groups := make(map[summaryKey]*speeds)
	for i := range records {
		r := &records[i]
		if !r.ResidentialEligible() {
			continue
		}
		if r.CommonTech == "" || r.Category == "" {
			return nil, fmt.Errorf("summarize: record %d is not classified: %w", i, domain.ErrSchema)
		}
		if r.CellRes8 == "" {
			return nil, fmt.Errorf("summarize: record %d has no resolution %d cell: %w", i, domain.FinestResolution, domain.ErrAggregation)
		}
		k := summaryKey{cell: r.CellRes8, provider: r.Provider, common: r.CommonTech, category: r.Category}
		s, ok := groups[k]
		if !ok {
			groups[k] = &speeds{down: r.MaxDownload, up: r.MaxUpload}
			continue
		}
		s.observe(r.MaxDownload, r.MaxUpload)
	}

	out := make([]domain.SpeedSummary, 0, len(groups))
	for k, s := range groups {
		down, err := narrow(s.down)
		if err != nil {
			return nil, fmt.Errorf("summarize %s %s download: %w", k.cell, k.provider, err)
		}
		up, err := narrow(s.up)
		if err != nil {
			return nil, fmt.Errorf("summarize %s %s upload: %w", k.cell, k.provider, err)
		}
		out = append(out, domain.SpeedSummary{
			CellID:      k.cell,
			Provider:    domain.ProviderDisplayName(k.provider),
			CommonTech:  k.common,
			Category:    k.category,
			MaxDownload: down,
			MaxUpload:   up,
		})
	}
	sort.Slice(out, func(i, j int) bool { return lessSummary(out[i], out[j]) })
	return out, nil
}

func narrow(v int64) (int16, error) {
	if v < 0 || v > math.MaxInt16 {
		return 0, fmt.Errorf("%d Mbps: %w", v, domain.ErrSpeedOutOfRange)
	}
	return int16(v), nil
}

func lessSummary(a, b domain.SpeedSummary) bool {
	switch {
	case a.CellID != b.CellID:
		return a.CellID < b.CellID
	case a.Provider != b.Provider:
		return a.Provider < b.Provider
	case a.CommonTech != b.CommonTech:
		return a.CommonTech < b.CommonTech
	case a.Category != b.Category:
		return a.Category < b.Category
	case a.MaxDownload != b.MaxDownload:
		return a.MaxDownload < b.MaxDownload
	default:
		return a.MaxUpload < b.MaxUpload
	}
}

// FilterCells keeps the hexes that have at least one row in the summary table.
func FilterCells(cells []domain.CellGeometry, summary []domain.SpeedSummary) []domain.CellGeometry {
	served := make(map[string]struct{}, len(summary))
	for _, s := range summary {
		served[s.CellID] = struct{}{}
	}
	out := make([]domain.CellGeometry, 0, len(served))
	for _, c := range cells {
		if _, ok := served[c.HexID]; ok {
			out = append(out, c)
		}
	}
	return out
}
