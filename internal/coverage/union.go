package coverage

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// snapScale is the coordinate grid Union works on. Shared hex vertices computed
// independently agree well within 1e-9 degrees.
const snapScale = 1e9

type segment struct {
	from, to orb.Point
}

// Union dissolves polygons that tile the plane without overlapping, such as
// hex cells, into the fewest polygons covering the same area.
//
// Every ring is oriented with the interior on its left, so an edge shared by
// two inputs appears once in each direction and cancels. The surviving edges
// are the outline of the union and are stitched back into rings. Output is
// ordered and independent of input order.
func Union(polygons []orb.Polygon) orb.MultiPolygon {
	open := make(map[segment]int)
	for _, p := range polygons {
		for i, r := range p {
			ring := normalizeRing(r, i == 0)
			for j := 0; j+1 < len(ring); j++ {
				s := segment{ring[j], ring[j+1]}
				rev := segment{s.to, s.from}
				if open[rev] > 0 {
					open[rev]--
					if open[rev] == 0 {
						delete(open, rev)
					}
					continue
				}
				open[s]++
			}
		}
	}
	return assemble(stitch(open))
}

func snap(p orb.Point) orb.Point {
	return orb.Point{math.Round(p[0]*snapScale) / snapScale, math.Round(p[1]*snapScale) / snapScale}
}

// normalizeRing snaps and closes a ring and orients it counterclockwise for
// shells, clockwise for holes. Degenerate rings come back nil.
func normalizeRing(r orb.Ring, shell bool) orb.Ring {
	pts := make(orb.Ring, 0, len(r)+1)
	for _, p := range r {
		p = snap(p)
		if len(pts) > 0 && pts[len(pts)-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	for len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return nil
	}
	pts = append(pts, pts[0])

	area := signedArea(pts)
	if area == 0 {
		return nil
	}
	if (area > 0) != shell {
		pts.Reverse()
	}
	return pts
}

// signedArea is positive for counterclockwise rings.
func signedArea(r orb.Ring) float64 {
	var sum float64
	for i := 0; i+1 < len(r); i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return sum / 2
}

func lessPoint(a, b orb.Point) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

// stitch links the boundary edges into closed rings. Arriving at a vertex
// with several ways out, it takes the first outgoing edge clockwise from the
// edge it came in on, which keeps regions that only touch at a point apart.
func stitch(open map[segment]int) []orb.Ring {
	edges := make([]segment, 0, len(open))
	for s, n := range open {
		for range n {
			edges = append(edges, s)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return lessPoint(edges[i].from, edges[j].from)
		}
		return lessPoint(edges[i].to, edges[j].to)
	})

	outgoing := make(map[orb.Point][]int)
	for i, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], i)
	}

	next := make([]int, len(edges))
	claimed := make([]bool, len(edges))
	for i, e := range edges {
		next[i] = -1
		back := math.Atan2(e.from[1]-e.to[1], e.from[0]-e.to[0])
		best, bestTurn := -1, 0.0
		for _, c := range outgoing[e.to] {
			if claimed[c] {
				continue
			}
			out := edges[c]
			turn := back - math.Atan2(out.to[1]-out.from[1], out.to[0]-out.from[0])
			for turn <= 0 {
				turn += 2 * math.Pi
			}
			for turn > 2*math.Pi {
				turn -= 2 * math.Pi
			}
			if best < 0 || turn < bestTurn {
				best, bestTurn = c, turn
			}
		}
		if best >= 0 {
			claimed[best] = true
			next[i] = best
		}
	}

	var rings []orb.Ring
	visited := make([]bool, len(edges))
	for start := range edges {
		if visited[start] {
			continue
		}
		walk := []orb.Point{edges[start].from}
		for cur := start; cur >= 0 && !visited[cur]; cur = next[cur] {
			visited[cur] = true
			walk = append(walk, edges[cur].to)
		}
		if walk[0] != walk[len(walk)-1] {
			continue
		}
		rings = append(rings, splitAtRepeats(walk)...)
	}
	return rings
}

// splitAtRepeats cuts a closed walk into simple rings wherever it passes
// through a vertex twice.
func splitAtRepeats(walk []orb.Point) []orb.Ring {
	var rings []orb.Ring
	stack := make([]orb.Point, 0, len(walk))
	pos := make(map[orb.Point]int, len(walk))
	for _, p := range walk {
		k, seen := pos[p]
		if !seen {
			pos[p] = len(stack)
			stack = append(stack, p)
			continue
		}
		loop := append(orb.Ring(nil), stack[k:]...)
		loop = append(loop, p)
		for _, q := range stack[k+1:] {
			delete(pos, q)
		}
		stack = stack[:k+1]
		if loop = simplifyRing(loop); loop != nil {
			rings = append(rings, loop)
		}
	}
	return rings
}

// simplifyRing drops vertices that sit on a straight run and rotates the ring
// to start at its smallest vertex.
func simplifyRing(r orb.Ring) orb.Ring {
	pts := []orb.Point(r[:len(r)-1])
	for changed := true; changed && len(pts) >= 3; {
		changed = false
		for i := 0; i < len(pts) && len(pts) >= 3; i++ {
			a, b, c := pts[(i+len(pts)-1)%len(pts)], pts[i], pts[(i+1)%len(pts)]
			cross := (b[0]-a[0])*(c[1]-b[1]) - (b[1]-a[1])*(c[0]-b[0])
			if cross == 0 {
				pts = append(pts[:i:i], pts[i+1:]...)
				changed = true
				i--
			}
		}
	}
	if len(pts) < 3 {
		return nil
	}

	first := 0
	for i, p := range pts {
		if lessPoint(p, pts[first]) {
			first = i
		}
	}
	out := make(orb.Ring, 0, len(pts)+1)
	out = append(out, pts[first:]...)
	out = append(out, pts[:first]...)
	return append(out, out[0])
}

// assemble sorts rings into shells and holes by orientation and gives each
// hole to the smallest shell that contains it.
func assemble(rings []orb.Ring) orb.MultiPolygon {
	var shells, holes []orb.Ring
	for _, r := range rings {
		switch a := signedArea(r); {
		case a > 0:
			shells = append(shells, r)
		case a < 0:
			holes = append(holes, r)
		}
	}
	sort.Slice(shells, func(i, j int) bool { return lessRing(shells[i], shells[j]) })
	sort.Slice(holes, func(i, j int) bool { return lessRing(holes[i], holes[j]) })

	polygons := make(orb.MultiPolygon, len(shells))
	for i, s := range shells {
		polygons[i] = orb.Polygon{s}
	}
	for _, h := range holes {
		owner, ownerArea := -1, 0.0
		for i, s := range shells {
			area := signedArea(s)
			if owner >= 0 && area >= ownerArea {
				continue
			}
			if ringInside(h, s) {
				owner, ownerArea = i, area
			}
		}
		if owner >= 0 {
			polygons[owner] = append(polygons[owner], h)
		}
	}
	return polygons
}

func ringInside(inner, outer orb.Ring) bool {
	for _, p := range inner {
		if !planar.RingContains(outer, p) {
			return false
		}
	}
	return true
}

func lessRing(a, b orb.Ring) bool {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return lessPoint(a[i], b[i])
		}
	}
	return len(a) < len(b)
}
