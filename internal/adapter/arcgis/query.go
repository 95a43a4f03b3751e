package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
)

type queryFeature struct {
	Attributes map[string]json.RawMessage `json:"attributes"`
	Geometry   *esriPolygon               `json:"geometry"`
}

type queryResponse struct {
	ObjectIDField         string         `json:"objectIdFieldName"`
	Features              []queryFeature `json:"features"`
	ExceededTransferLimit bool           `json:"exceededTransferLimit"`
}

type idsResponse struct {
	ObjectIDField string  `json:"objectIdFieldName"`
	ObjectIDs     []int64 `json:"objectIds"`
}

// Hexes loads every hex polygon of the resolution's hex layer, paging until
// the server stops reporting exceededTransferLimit.
func (c *Client) Hexes(ctx context.Context, resolution int) ([]domain.CellGeometry, error) {
	layer, ok := c.hexLayers[resolution]
	if !ok {
		return nil, fmt.Errorf("no hex layer configured for resolution %d", resolution)
	}

	var cells []domain.CellGeometry
	for offset := 0; ; {
		params := url.Values{
			"where":             {"1=1"},
			"outFields":         {"hex_id,OBJECTID"},
			"returnGeometry":    {"true"},
			"outSR":             {"4326"},
			"orderByFields":     {"OBJECTID"},
			"resultOffset":      {strconv.Itoa(offset)},
			"resultRecordCount": {strconv.Itoa(c.pageSize)},
		}
		var page queryResponse
		if err := c.get(ctx, layer+"/query", params, &page); err != nil {
			return nil, fmt.Errorf("query hexes at resolution %d offset %d: %w", resolution, offset, err)
		}
		for _, f := range page.Features {
			cell, err := toCell(f)
			if err != nil {
				return nil, fmt.Errorf("hex layer %d: %w", resolution, err)
			}
			cells = append(cells, cell)
		}
		if !page.ExceededTransferLimit || len(page.Features) == 0 {
			break
		}
		offset += len(page.Features)
	}

	c.logger.Debug("loaded hexes", "resolution", resolution, "count", len(cells))
	return cells, nil
}

func toCell(f queryFeature) (domain.CellGeometry, error) {
	var cell domain.CellGeometry
	raw, ok := f.Attributes["hex_id"]
	if !ok {
		return cell, fmt.Errorf("feature has no hex_id")
	}
	if err := json.Unmarshal(raw, &cell.HexID); err != nil {
		return cell, fmt.Errorf("hex_id: %w", err)
	}
	if raw, ok := f.Attributes["OBJECTID"]; ok {
		if err := json.Unmarshal(raw, &cell.ObjectID); err != nil {
			return cell, fmt.Errorf("hex %s OBJECTID: %w", cell.HexID, err)
		}
	}
	mp, err := fromEsri(f.Geometry)
	if err != nil {
		return cell, fmt.Errorf("hex %s: %w", cell.HexID, err)
	}
	cell.Geometry = mp[0]
	return cell, nil
}

// objectIDs lists every object id in a layer or table.
func (c *Client) objectIDs(ctx context.Context, layer string) ([]int64, error) {
	params := url.Values{
		"where":         {"1=1"},
		"returnIdsOnly": {"true"},
	}
	var resp idsResponse
	if err := c.get(ctx, layer+"/query", params, &resp); err != nil {
		return nil, fmt.Errorf("query object ids: %w", err)
	}
	return resp.ObjectIDs, nil
}
