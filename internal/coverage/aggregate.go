// Package coverage turns availability records into per-cell service rows,
// dissolved coverage polygons, and the per-cell speed summary table.
package coverage

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
)

type cellKey struct {
	cell       string
	technology string
	provider   string
	common     domain.CommonTech
}

func (k cellKey) less(o cellKey) bool {
	if k.cell != o.cell {
		return k.cell < o.cell
	}
	if k.technology != o.technology {
		return k.technology < o.technology
	}
	if k.provider != o.provider {
		return k.provider < o.provider
	}
	return k.common < o.common
}

type speeds struct {
	down, up int64
}

// observe keeps the download and upload maxima independently; they may come
// from different records.
func (s *speeds) observe(down, up int64) {
	s.down = max(s.down, down)
	s.up = max(s.up, up)
}

// Aggregate groups residential and mixed-use records by cell at resolution,
// technology, provider and common technology, keeping the best advertised
// download and upload per group, then attaches each group's cell polygon.
//
// Only cells with service appear in the output. A group whose cell is missing
// from cells is kept with a nil Geometry; see Unmatched. Output is sorted by
// group key.
func Aggregate(records []domain.AvailabilityRecord, resolution int, cells []domain.CellGeometry) ([]domain.CellAggregate, error) {
	if !domain.SupportedResolution(resolution) {
		return nil, fmt.Errorf("aggregate: no cell column for resolution %d: %w", resolution, domain.ErrAggregation)
	}
	byID, err := indexCells(cells)
	if err != nil {
		return nil, err
	}

	groups := make(map[cellKey]*speeds)
	for i := range records {
		r := &records[i]
		if !r.ResidentialEligible() {
			continue
		}
		cell := r.Cell(resolution)
		if cell == "" {
			return nil, fmt.Errorf("aggregate: record %d has no resolution %d cell: %w", i, resolution, domain.ErrAggregation)
		}
		k := cellKey{cell: cell, technology: r.Technology, provider: r.Provider, common: r.CommonTech}
		s, ok := groups[k]
		if !ok {
			s = &speeds{down: r.MaxDownload, up: r.MaxUpload}
			groups[k] = s
			continue
		}
		s.observe(r.MaxDownload, r.MaxUpload)
	}

	keys := make([]cellKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	out := make([]domain.CellAggregate, len(keys))
	for i, k := range keys {
		s := groups[k]
		out[i] = domain.CellAggregate{
			CellID:      k.cell,
			Technology:  k.technology,
			Provider:    k.provider,
			CommonTech:  k.common,
			MaxDownload: s.down,
			MaxUpload:   s.up,
		}
		if c, ok := byID[k.cell]; ok {
			out[i].ObjectID = c.ObjectID
			out[i].Geometry = c.Geometry
		}
	}
	return out, nil
}

// indexCells keys cell polygons by hex id. The first row wins when an id repeats.
func indexCells(cells []domain.CellGeometry) (map[string]domain.CellGeometry, error) {
	byID := make(map[string]domain.CellGeometry, len(cells))
	for i, c := range cells {
		if c.HexID == "" {
			return nil, fmt.Errorf("aggregate: cell row %d has no hex id: %w", i, domain.ErrAggregation)
		}
		if _, ok := byID[c.HexID]; !ok {
			byID[c.HexID] = c
		}
	}
	return byID, nil
}

// Unmatched returns the sorted distinct cell ids of aggregates that found no
// polygon in the hex layer.
func Unmatched(aggregates []domain.CellAggregate) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, a := range aggregates {
		if a.Geometry != nil {
			continue
		}
		if _, ok := seen[a.CellID]; ok {
			continue
		}
		seen[a.CellID] = struct{}{}
		ids = append(ids, a.CellID)
	}
	sort.Strings(ids)
	return ids
}
