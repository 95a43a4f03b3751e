package hexcache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/couchcryptid/broadband-data-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	cells []domain.CellGeometry
	err   error
	calls int
}

func (s *countingSource) Hexes(_ context.Context, _ int) ([]domain.CellGeometry, error) {
	s.calls++
	return s.cells, s.err
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func testCells() []domain.CellGeometry {
	return []domain.CellGeometry{
		{HexID: "8828308281fffff", ObjectID: 7, Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}},
		{HexID: "8828308283fffff", ObjectID: 8, Geometry: orb.Polygon{{{1, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 0}}}},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCachedHexSource_CachesHits(t *testing.T) {
	inner := &countingSource{cells: testCells()}
	metrics := observability.NewMetricsForTesting()
	c := NewCachedHexSource(inner, NewMemoryStore(8, nil), time.Hour, "broadband-data", metrics, discard())

	first, err := c.Hexes(context.Background(), 8)
	require.NoError(t, err)
	second, err := c.Hexes(context.Background(), 8)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HexCache.WithLabelValues("8", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HexCache.WithLabelValues("8", "hit")))
}

func TestCachedHexSource_KeysByResolution(t *testing.T) {
	inner := &countingSource{cells: testCells()}
	c := NewCachedHexSource(inner, NewMemoryStore(8, nil), time.Hour, "broadband-data", observability.NewMetricsForTesting(), discard())

	_, err := c.Hexes(context.Background(), 7)
	require.NoError(t, err)
	_, err = c.Hexes(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedHexSource_ExpiredEntryReloads(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &countingSource{cells: testCells()}
	c := NewCachedHexSource(inner, NewMemoryStore(8, clock), time.Hour, "broadband-data", observability.NewMetricsForTesting(), discard())

	_, err := c.Hexes(context.Background(), 8)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = c.Hexes(context.Background(), 8)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedHexSource_BrokenStoreFallsThrough(t *testing.T) {
	inner := &countingSource{cells: testCells()}
	metrics := observability.NewMetricsForTesting()
	c := NewCachedHexSource(inner, brokenStore{}, time.Hour, "broadband-data", metrics, discard())

	cells, err := c.Hexes(context.Background(), 8)
	require.NoError(t, err)
	assert.Len(t, cells, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HexCache.WithLabelValues("8", "error")))
}

func TestCachedHexSource_InnerErrorNotCached(t *testing.T) {
	inner := &countingSource{err: errors.New("token expired")}
	store := NewMemoryStore(8, nil)
	c := NewCachedHexSource(inner, store, time.Hour, "broadband-data", observability.NewMetricsForTesting(), discard())

	_, err := c.Hexes(context.Background(), 8)
	require.Error(t, err)
	_, ok, _ := store.Get(context.Background(), "broadband-data:hexes:8")
	assert.False(t, ok)
}

func TestCachedHexSource_CorruptEntryReloads(t *testing.T) {
	inner := &countingSource{cells: testCells()}
	store := NewMemoryStore(8, nil)
	require.NoError(t, store.Set(context.Background(), "broadband-data:hexes:8", []byte("{not json"), 0))
	c := NewCachedHexSource(inner, store, time.Hour, "broadband-data", observability.NewMetricsForTesting(), discard())

	cells, err := c.Hexes(context.Background(), 8)
	require.NoError(t, err)
	assert.Len(t, cells, 2)
	assert.Equal(t, 1, inner.calls)
}

func TestEncodeCells_RoundTrip(t *testing.T) {
	data, err := encodeCells(testCells())
	require.NoError(t, err)
	got, err := decodeCells(data)
	require.NoError(t, err)
	assert.Equal(t, testCells(), got)
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, nil)
	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	_, ok, _ := s.Get(ctx, "a")
	require.True(t, ok)
	require.NoError(t, s.Set(ctx, "c", []byte("3"), 0))

	_, ok, _ = s.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	_, ok, _ = s.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = s.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, nil)
	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "a", []byte("2"), 0))

	got, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("2"), got)
}
