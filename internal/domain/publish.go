package domain

import (
	"context"

	"github.com/paulmach/orb"
)

// ServiceKind says whether a destination stores geometry.
type ServiceKind string

const (
	KindLayer ServiceKind = "layer"
	KindTable ServiceKind = "table"
)

// Destination identifies one layer or table of a hosted feature service.
type Destination struct {
	Name       string      // report label, e.g. "service_hexes_6"
	ServiceURL string      // .../FeatureServer
	Kind       ServiceKind // layer or table
	Index      int         // sublayer or table id within the service

	// RelationshipBound destinations reject truncate; their rows are deleted
	// by object id and re-added instead.
	RelationshipBound bool
}

// Feature is one row to publish. Geometry is nil for tables.
type Feature struct {
	Attributes map[string]any
	Geometry   orb.Geometry
}

// PublishResult counts the rows a publish touched.
type PublishResult struct {
	Added   int
	Deleted int
}

// Publisher replaces the contents of a hosted layer or table.
type Publisher interface {
	Publish(ctx context.Context, dest Destination, features []Feature) (PublishResult, error)
}

// HexSource loads the hosted hex polygons for a resolution.
type HexSource interface {
	Hexes(ctx context.Context, resolution int) ([]CellGeometry, error)
}

// CoverageFeatures converts coverage polygons to publishable features.
func CoverageFeatures(polygons []CoveragePolygon) []Feature {
	out := make([]Feature, len(polygons))
	for i, p := range polygons {
		out[i] = Feature{
			Attributes: map[string]any{
				ColTechnology:  p.Technology,
				ColCommonTech:  string(p.CommonTech),
				ColProvider:    p.Provider,
				ColMaxDownload: p.MaxDownload,
				ColMaxUpload:   p.MaxUpload,
				ColCategory:    string(p.Category),
			},
			Geometry: p.Geometry,
		}
	}
	return out
}

// SummaryFeatures converts speed summary rows to table rows.
func SummaryFeatures(rows []SpeedSummary) []Feature {
	out := make([]Feature, len(rows))
	for i, r := range rows {
		out[i] = Feature{
			Attributes: map[string]any{
				ColCellRes8:    r.CellID,
				ColProvider:    r.Provider,
				ColCommonTech:  string(r.CommonTech),
				ColCategory:    string(r.Category),
				ColMaxDownload: r.MaxDownload,
				ColMaxUpload:   r.MaxUpload,
			},
		}
	}
	return out
}

// CellFeatures converts hex polygons to features keyed by hex_id. The
// platform object id is left out.
func CellFeatures(cells []CellGeometry) []Feature {
	out := make([]Feature, len(cells))
	for i, c := range cells {
		out[i] = Feature{
			Attributes: map[string]any{"hex_id": c.HexID},
			Geometry:   c.Geometry,
		}
	}
	return out
}
