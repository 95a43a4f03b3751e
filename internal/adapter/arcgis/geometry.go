package arcgis

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// spatialReference is WGS84, the reference hex layers are queried and
// features are written in.
var spatialReference = map[string]int{"wkid": 4326}

// esriPolygon is an Esri JSON polygon. Outer rings run clockwise and holes
// counterclockwise, the reverse of GeoJSON.
type esriPolygon struct {
	Rings            [][][2]float64 `json:"rings"`
	SpatialReference map[string]int `json:"spatialReference,omitempty"`
}

var errEmptyGeometry = errors.New("empty geometry")

// toEsri converts an orb polygon or multipolygon.
func toEsri(g orb.Geometry) (*esriPolygon, error) {
	var polys []orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{v}
	case orb.MultiPolygon:
		polys = v
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported geometry %s", g.GeoJSONType())
	}

	out := &esriPolygon{SpatialReference: spatialReference}
	for _, p := range polys {
		for i, r := range p {
			want := orb.CCW
			if i == 0 {
				want = orb.CW
			}
			out.Rings = append(out.Rings, esriRing(r, want))
		}
	}
	if len(out.Rings) == 0 {
		return nil, errEmptyGeometry
	}
	return out, nil
}

func esriRing(r orb.Ring, want orb.Orientation) [][2]float64 {
	ring := r.Clone()
	if !ring.Closed() && len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	if ring.Orientation() != want {
		ring.Reverse()
	}
	pts := make([][2]float64, len(ring))
	for i, p := range ring {
		pts[i] = [2]float64{p[0], p[1]}
	}
	return pts
}

// fromEsri converts an Esri polygon to orb, shells counterclockwise. Each
// clockwise ring starts a polygon and the counterclockwise rings after it are
// its holes.
func fromEsri(e *esriPolygon) (orb.MultiPolygon, error) {
	if e == nil || len(e.Rings) == 0 {
		return nil, errEmptyGeometry
	}
	var mp orb.MultiPolygon
	for _, raw := range e.Rings {
		ring := make(orb.Ring, len(raw))
		for i, p := range raw {
			ring[i] = orb.Point{p[0], p[1]}
		}
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			ring.Reverse()
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
			continue
		}
		if ring.Orientation() == orb.CW {
			ring.Reverse()
		}
		mp = append(mp, orb.Polygon{ring})
	}
	return mp, nil
}
