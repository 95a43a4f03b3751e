package coverage

import (
	"math"
	"math/rand"
	"testing"

	"github.com/couchcryptid/broadband-data-etl/internal/hexindex"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square returns the unit square with its lower-left corner at (x, y).
func square(x, y float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}}
}

func TestUnion_AdjacentSquares(t *testing.T) {
	got := Union([]orb.Polygon{square(0, 0), square(1, 0)})

	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	assert.Equal(t, orb.Ring{{0, 0}, {2, 0}, {2, 1}, {0, 1}, {0, 0}}, got[0][0])
	assert.InDelta(t, 2.0, planar.Area(got), 1e-12)
}

func TestUnion_Disjoint(t *testing.T) {
	got := Union([]orb.Polygon{square(5, 5), square(0, 0)})

	require.Len(t, got, 2)
	assert.Equal(t, orb.Point{0, 0}, got[0][0][0])
	assert.Equal(t, orb.Point{5, 5}, got[1][0][0])
}

func TestUnion_CornerTouchIsTwoPolygons(t *testing.T) {
	got := Union([]orb.Polygon{square(0, 0), square(1, 1)})

	require.Len(t, got, 2)
	for _, p := range got {
		require.Len(t, p, 1)
		assert.Len(t, p[0], 5)
		assert.InDelta(t, 1.0, planar.Area(p), 1e-12)
	}
}

func TestUnion_RingWithHole(t *testing.T) {
	var cells []orb.Polygon
	for x := 0.0; x < 3; x++ {
		for y := 0.0; y < 3; y++ {
			if x == 1 && y == 1 {
				continue
			}
			cells = append(cells, square(x, y))
		}
	}

	got := Union(cells)

	require.Len(t, got, 1)
	require.Len(t, got[0], 2)
	assert.Equal(t, orb.Ring{{0, 0}, {3, 0}, {3, 3}, {0, 3}, {0, 0}}, got[0][0])
	assert.Len(t, got[0][1], 5)
	assert.Less(t, signedArea(got[0][1]), 0.0)
	assert.InDelta(t, 8.0, planar.Area(got), 1e-12)
}

func TestUnion_IslandInHole(t *testing.T) {
	var cells []orb.Polygon
	for x := 0.0; x < 5; x++ {
		for y := 0.0; y < 5; y++ {
			inner := x >= 1 && x <= 3 && y >= 1 && y <= 3
			if inner && !(x == 2 && y == 2) {
				continue
			}
			cells = append(cells, square(x, y))
		}
	}

	got := Union(cells)

	require.Len(t, got, 2)
	assert.Len(t, got[0], 2, "outer square keeps its hole")
	assert.Len(t, got[1], 1, "island has no hole")
	assert.InDelta(t, 17.0, planar.Area(got), 1e-12)
}

func TestUnion_OrderIndependent(t *testing.T) {
	cells := []orb.Polygon{square(0, 0), square(1, 0), square(2, 0), square(0, 1), square(2, 1), square(4, 4)}
	want := Union(cells)

	shuffled := append([]orb.Polygon(nil), cells...)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	assert.Equal(t, want, Union(shuffled))
}

func TestUnion_ClockwiseInputIsNormalized(t *testing.T) {
	cw := square(1, 0)
	cw[0].Reverse()

	got := Union([]orb.Polygon{square(0, 0), cw})

	require.Len(t, got, 1)
	assert.InDelta(t, 2.0, planar.Area(got), 1e-12)
}

func TestUnion_Empty(t *testing.T) {
	assert.Empty(t, Union(nil))
	assert.Empty(t, Union([]orb.Polygon{{{{0, 0}, {1, 1}, {0, 0}}}}))
}

func TestUnion_HexChildren(t *testing.T) {
	kids, err := hexindex.Children("872830828ffffff", 8)
	require.NoError(t, err)

	var cells []orb.Polygon
	var total float64
	for _, k := range kids {
		poly, err := hexindex.Boundary(k)
		require.NoError(t, err)
		cells = append(cells, poly)
		total += planar.Area(poly)
	}

	got := Union(cells)

	require.Len(t, got, 1)
	assert.Len(t, got[0], 1)
	assert.InDelta(t, total, planar.Area(got), total*1e-4)
	assert.Less(t, math.Abs(signedArea(got[0][0])-total), total*1e-4)
}
