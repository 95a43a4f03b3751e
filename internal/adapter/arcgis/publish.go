package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
)

type editResult struct {
	ObjectID int64     `json:"objectId"`
	Success  bool      `json:"success"`
	Error    *APIError `json:"error,omitempty"`
}

type addResponse struct {
	AddResults []editResult `json:"addResults"`
}

type deleteResponse struct {
	DeleteResults []editResult `json:"deleteResults"`
}

type truncateResponse struct {
	Success bool `json:"success"`
}

type esriFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *esriPolygon   `json:"geometry,omitempty"`
}

// Publish replaces every row of dest with features. Plain destinations are
// truncated; relationship-bound ones have their rows deleted by object id.
// Features are then added in chunks and any rejected row fails the publish.
func (c *Client) Publish(ctx context.Context, dest domain.Destination, features []domain.Feature) (domain.PublishResult, error) {
	var result domain.PublishResult
	layer := layerURL(dest.ServiceURL, dest.Index)

	payload, err := encodeFeatures(dest, features)
	if err != nil {
		return result, fmt.Errorf("encode %s: %w", dest.Name, err)
	}

	if dest.RelationshipBound {
		deleted, err := c.deleteAll(ctx, layer)
		if err != nil {
			return result, fmt.Errorf("clear %s: %w", dest.Name, err)
		}
		result.Deleted = deleted
	} else if err := c.truncate(ctx, layer); err != nil {
		return result, fmt.Errorf("truncate %s: %w", dest.Name, err)
	}

	for start := 0; start < len(payload); start += c.chunkSize {
		end := min(start+c.chunkSize, len(payload))
		added, err := c.addFeatures(ctx, layer, payload[start:end])
		result.Added += added
		if err != nil {
			return result, fmt.Errorf("add to %s rows %d-%d: %w", dest.Name, start, end-1, err)
		}
	}
	c.logger.Debug("replaced layer contents", "layer", dest.Name, "added", result.Added, "deleted", result.Deleted)
	return result, nil
}

func encodeFeatures(dest domain.Destination, features []domain.Feature) ([]esriFeature, error) {
	out := make([]esriFeature, len(features))
	for i, f := range features {
		out[i].Attributes = f.Attributes
		if dest.Kind == domain.KindTable {
			continue
		}
		g, err := toEsri(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if g == nil {
			return nil, fmt.Errorf("feature %d: layer features need a geometry", i)
		}
		out[i].Geometry = g
	}
	return out, nil
}

func (c *Client) truncate(ctx context.Context, layer string) error {
	var resp truncateResponse
	params := url.Values{"async": {"false"}}
	if err := c.post(ctx, adminURL(layer)+"/truncate", params, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("truncate was not successful")
	}
	return nil
}

func (c *Client) deleteAll(ctx context.Context, layer string) (int, error) {
	ids, err := c.objectIDs(ctx, layer)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for start := 0; start < len(ids); start += c.chunkSize {
		end := min(start+c.chunkSize, len(ids))
		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
		var resp deleteResponse
		params := url.Values{"objectIds": {strings.Join(parts, ",")}}
		if err := c.post(ctx, layer+"/deleteFeatures", params, &resp); err != nil {
			return deleted, err
		}
		n, err := countSuccess(resp.DeleteResults)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (c *Client) addFeatures(ctx context.Context, layer string, features []esriFeature) (int, error) {
	data, err := json.Marshal(features)
	if err != nil {
		return 0, fmt.Errorf("marshal features: %w", err)
	}
	params := url.Values{
		"features":          {string(data)},
		"rollbackOnFailure": {"true"},
	}
	var resp addResponse
	if err := c.post(ctx, layer+"/addFeatures", params, &resp); err != nil {
		return 0, err
	}
	return countSuccess(resp.AddResults)
}

func countSuccess(results []editResult) (int, error) {
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
			continue
		}
		if r.Error != nil {
			return ok, fmt.Errorf("object %d: %w", r.ObjectID, r.Error)
		}
		return ok, fmt.Errorf("object %d was rejected", r.ObjectID)
	}
	return ok, nil
}
