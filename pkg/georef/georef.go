// Package georef converts between image pixel positions and geographic
// coordinates for maps calibrated with four points.
package georef

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInsufficientPoints is returned when fewer than four usable points
	// are given to Calibrate.
	ErrInsufficientPoints = errors.New("at least 4 calibration points required")
	// ErrDegenerateCalibration is returned when two points used for one
	// edge fit share the same pixel coordinate.
	ErrDegenerateCalibration = errors.New("degenerate calibration points")
)

// earthRadius in meters, used for the MM1B scale.
const earthRadius = 6378137.0

// Point binds a pixel position to a geographic coordinate. Longitude is
// positive East and latitude positive North.
type Point struct {
	Index int
	X, Y  float64
	Lon   float64
	Lat   float64
}

func (p Point) valid() bool {
	for _, v := range []float64{p.X, p.Y, p.Lon, p.Lat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Calibration is the result of fitting user points to the image corners.
type Calibration struct {
	// Corners are NW, NE, SE, SW at pixels (0,0), (w,0), (w,h), (0,h).
	Corners [4]Point
	// MM1B is the approximate map scale in meters per pixel.
	MM1B float64
}

// Calibrate computes the geographic position of the four image corners from
// user placed points. Longitude is fitted along the top and bottom edges,
// latitude along the left and right edges, each as an independent linear
// function extrapolated to the image border.
func Calibrate(points []Point, width, height int) (*Calibration, error) {
	var usable []Point
	for _, p := range points {
		if p.valid() {
			usable = append(usable, p)
		}
	}
	if len(usable) < 4 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientPoints, len(usable))
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	w, h := float64(width), float64(height)
	e := sortEdges(usable, w, h)

	nLonW, nLonE, err := fitEdge(e.top[0].X, e.top[0].Lon, e.top[1].X, e.top[1].Lon, w)
	if err != nil {
		return nil, fmt.Errorf("top edge: %w", err)
	}
	sLonW, sLonE, err := fitEdge(e.bottom[0].X, e.bottom[0].Lon, e.bottom[1].X, e.bottom[1].Lon, w)
	if err != nil {
		return nil, fmt.Errorf("bottom edge: %w", err)
	}
	wLatN, wLatS, err := fitEdge(e.left[0].Y, e.left[0].Lat, e.left[1].Y, e.left[1].Lat, h)
	if err != nil {
		return nil, fmt.Errorf("left edge: %w", err)
	}
	eLatN, eLatS, err := fitEdge(e.right[0].Y, e.right[0].Lat, e.right[1].Y, e.right[1].Lat, h)
	if err != nil {
		return nil, fmt.Errorf("right edge: %w", err)
	}

	cal := &Calibration{
		Corners: [4]Point{
			{Index: 1, X: 0, Y: 0, Lon: nLonW, Lat: wLatN},
			{Index: 2, X: w, Y: 0, Lon: nLonE, Lat: eLatN},
			{Index: 3, X: w, Y: h, Lon: sLonE, Lat: eLatS},
			{Index: 4, X: 0, Y: h, Lon: sLonW, Lat: wLatS},
		},
	}
	cal.MM1B = scale(cal.Corners, w)
	return cal, nil
}

// fitEdge fits v = a + b*t through (t0,v0) and (t1,v1) and returns the
// values at t=0 and t=size.
func fitEdge(t0, v0, t1, v1, size float64) (float64, float64, error) {
	dt := t1 - t0
	if dt == 0 {
		return 0, 0, fmt.Errorf("%w: both points at %v", ErrDegenerateCalibration, t0)
	}
	grad := (v1 - v0) / dt
	start := v0 - grad*t0
	return start, start + grad*size, nil
}

func scale(c [4]Point, width float64) float64 {
	west := (c[0].Lon + c[3].Lon) / 2
	east := (c[1].Lon + c[2].Lon) / 2
	meanLat := (c[0].Lat + c[1].Lat + c[2].Lat + c[3].Lat) / 4
	dist := radians(east-west) * earthRadius * math.Cos(radians(meanLat))
	return dist / width
}

func radians(d float64) float64 {
	return d * math.Pi / 180
}

// XYToLonLat maps pixel (x,y) to lon/lat using the calibrated corners
// (NW, NE, SE, SW). The corner quadrilateral is interpolated as a perspective
// mapping: a horizontal line through the left and right edges at y and a
// vertical line through the top and bottom edges at x are intersected.
func XYToLonLat(corners [4]Point, width, height int, x, y float64) (float64, float64) {
	w, h := float64(width), float64(height)
	nw, ne, se, sw := corners[0], corners[1], corners[2], corners[3]

	yy := h - y
	xx := w - x

	return intersectLines(
		(yy*nw.Lon+y*sw.Lon)/h, (yy*nw.Lat+y*sw.Lat)/h,
		(yy*ne.Lon+y*se.Lon)/h, (yy*ne.Lat+y*se.Lat)/h,
		(xx*nw.Lon+x*ne.Lon)/w, (xx*nw.Lat+x*ne.Lat)/w,
		(xx*sw.Lon+x*se.Lon)/w, (xx*sw.Lat+x*se.Lat)/w,
	)
}

func det(a, b, c, d float64) float64 {
	return a*d - b*c
}

// intersectLines returns the intersection of the infinite lines through
// (x1,y1)-(x2,y2) and (x3,y3)-(x4,y4). Parallel lines use a denominator of 1.
func intersectLines(x1, y1, x2, y2, x3, y3, x4, y4 float64) (float64, float64) {
	d := det(x1-x2, y1-y2, x3-x4, y3-y4)
	if d == 0 {
		d = 1
	}
	d1 := det(x1, y1, x2, y2)
	d2 := det(x3, y3, x4, y4)
	px := det(d1, x1-x2, d2, x3-x4) / d
	py := det(d1, y1-y2, d2, y3-y4) / d
	return px, py
}
