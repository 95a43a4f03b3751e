package coverage

import (
	"sort"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/paulmach/orb"
)

type serviceKey struct {
	technology string
	common     domain.CommonTech
	provider   string
	down, up   int64
}

func (k serviceKey) less(o serviceKey) bool {
	switch {
	case k.technology != o.technology:
		return k.technology < o.technology
	case k.common != o.common:
		return k.common < o.common
	case k.provider != o.provider:
		return k.provider < o.provider
	case k.down != o.down:
		return k.down < o.down
	default:
		return k.up < o.up
	}
}

// Dissolve merges the cells of every (technology, common technology, provider,
// download, upload) group into one coverage polygon. Aggregates without a
// geometry are skipped and groups left empty are dropped. Category is
// recomputed from the common technology. Output is sorted by group.
func Dissolve(aggregates []domain.CellAggregate) []domain.CoveragePolygon {
	members := make(map[serviceKey][]orb.Polygon)
	for _, a := range aggregates {
		if a.Geometry == nil {
			continue
		}
		k := serviceKey{technology: a.Technology, common: a.CommonTech, provider: a.Provider, down: a.MaxDownload, up: a.MaxUpload}
		members[k] = append(members[k], a.Geometry)
	}

	keys := make([]serviceKey, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	out := make([]domain.CoveragePolygon, 0, len(keys))
	for _, k := range keys {
		geom := Union(members[k])
		if len(geom) == 0 {
			continue
		}
		out = append(out, domain.CoveragePolygon{
			Technology:  k.technology,
			CommonTech:  k.common,
			Provider:    k.provider,
			MaxDownload: k.down,
			MaxUpload:   k.up,
			Geometry:    geom,
		})
	}
	domain.CategorizePolygons(out)
	return out
}

// BuildServicePolygons aggregates records at resolution and dissolves the result.
func BuildServicePolygons(records []domain.AvailabilityRecord, resolution int, cells []domain.CellGeometry) ([]domain.CoveragePolygon, error) {
	aggregates, err := Aggregate(records, resolution, cells)
	if err != nil {
		return nil, err
	}
	return Dissolve(aggregates), nil
}
