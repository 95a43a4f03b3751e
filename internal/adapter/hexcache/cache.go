// Package hexcache caches hosted hex polygons between runs. Hex layers change
// rarely and take many paged queries to load, so a run reads them from Redis
// or an in-process LRU when it can.
package hexcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/couchcryptid/broadband-data-etl/internal/observability"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Store is a byte-value cache with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedHexSource wraps a HexSource with a Store. Cache failures are logged
// and the inner source is used.
type CachedHexSource struct {
	inner   domain.HexSource
	store   Store
	ttl     time.Duration
	prefix  string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedHexSource creates a cache decorator around a hex source. Keys are
// namespaced by prefix so several jobs can share one Redis.
func NewCachedHexSource(inner domain.HexSource, store Store, ttl time.Duration, prefix string, metrics *observability.Metrics, logger *slog.Logger) *CachedHexSource {
	return &CachedHexSource{
		inner:   inner,
		store:   store,
		ttl:     ttl,
		prefix:  prefix,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *CachedHexSource) Hexes(ctx context.Context, resolution int) ([]domain.CellGeometry, error) {
	key := fmt.Sprintf("%s:hexes:%d", c.prefix, resolution)
	res := strconv.Itoa(resolution)

	data, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.HexCache.WithLabelValues(res, "error").Inc()
		c.logger.Warn("hex cache read failed", "resolution", resolution, "error", err)
	case ok:
		cells, err := decodeCells(data)
		if err == nil {
			c.metrics.HexCache.WithLabelValues(res, "hit").Inc()
			c.logger.Debug("hex cache hit", "resolution", resolution, "count", len(cells))
			return cells, nil
		}
		c.metrics.HexCache.WithLabelValues(res, "error").Inc()
		c.logger.Warn("discarding unreadable hex cache entry", "resolution", resolution, "error", err)
	default:
		c.metrics.HexCache.WithLabelValues(res, "miss").Inc()
	}

	cells, err := c.inner.Hexes(ctx, resolution)
	if err != nil {
		return nil, err
	}
	// Empty layers are not cached.
	if len(cells) == 0 {
		return cells, nil
	}
	data, err = encodeCells(cells)
	if err != nil {
		return nil, fmt.Errorf("encode hexes: %w", err)
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("hex cache write failed", "resolution", resolution, "error", err)
	}
	return cells, nil
}

// encodeCells stores cells as a GeoJSON feature collection.
func encodeCells(cells []domain.CellGeometry) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, cell := range cells {
		f := geojson.NewFeature(cell.Geometry)
		f.Properties["hex_id"] = cell.HexID
		f.Properties["objectid"] = cell.ObjectID
		fc.Append(f)
	}
	return fc.MarshalJSON()
}

func decodeCells(data []byte) ([]domain.CellGeometry, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}
	cells := make([]domain.CellGeometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			return nil, fmt.Errorf("hex %v: geometry is not a polygon", f.Properties["hex_id"])
		}
		id := f.Properties.MustString("hex_id", "")
		if id == "" {
			return nil, errors.New("feature without hex_id")
		}
		cells = append(cells, domain.CellGeometry{
			HexID:    id,
			ObjectID: int64(f.Properties.MustFloat64("objectid", 0)),
			Geometry: poly,
		})
	}
	return cells, nil
}
