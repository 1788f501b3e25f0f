package georef

import (
	"math"
	"sort"
)

type edges struct {
	top    [2]Point // west, east
	bottom [2]Point // west, east
	left   [2]Point // north, south
	right  [2]Point // north, south
}

// SortCorners assigns corner roles to user placed points by proximity to the
// image corners. The top edge takes the point nearest (0,0) and then the one
// nearest (width,0) among the rest; the bottom edge is resolved the same way
// from (0,height) and (width,height). Edges are resolved independently, so
// near-degenerate placements may reuse a point for two roles.
func SortCorners(points []Point, width, height int) (nw, ne, se, sw Point) {
	e := sortEdges(points, float64(width), float64(height))
	return e.top[0], e.top[1], e.bottom[1], e.bottom[0]
}

func sortEdges(points []Point, w, h float64) edges {
	var e edges
	e.top[0], e.top[1] = nearestPair(points, 0, 0, w, 0)
	e.bottom[0], e.bottom[1] = nearestPair(points, 0, h, w, h)
	e.left[0], e.left[1] = nearestPair(points, 0, 0, 0, h)
	e.right[0], e.right[1] = nearestPair(points, w, 0, w, h)
	return e
}

// nearestPair picks the point nearest (x0,y0), then the point nearest
// (x1,y1) among the remaining ones.
func nearestPair(points []Point, x0, y0, x1, y1 float64) (Point, Point) {
	rest := append([]Point(nil), points...)
	sortByDistance(rest, x0, y0)
	first, rest := rest[0], rest[1:]
	sortByDistance(rest, x1, y1)
	return first, rest[0]
}

func sortByDistance(points []Point, x, y float64) {
	sort.SliceStable(points, func(i, j int) bool {
		return dist(points[i], x, y) < dist(points[j], x, y)
	})
}

func dist(p Point, x, y float64) float64 {
	return math.Hypot(p.X-x, p.Y-y)
}
