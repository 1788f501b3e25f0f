package georef

import (
	"errors"
	"math"
	"testing"
)

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// linear returns a point on a map spanning lon 19..20 and lat 51..50 over a
// 1000x500 image.
func linear(x, y float64) Point {
	return Point{X: x, Y: y, Lon: 19 + x/1000, Lat: 51 - y/500}
}

func TestCalibrate_Rectangle(t *testing.T) {
	points := []Point{
		linear(900, 400),
		linear(100, 100),
		linear(100, 400),
		linear(900, 100),
	}

	cal, err := Calibrate(points, 1000, 500)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	want := [4]Point{linear(0, 0), linear(1000, 0), linear(1000, 500), linear(0, 500)}
	for i, c := range cal.Corners {
		if c.X != want[i].X || c.Y != want[i].Y {
			t.Errorf("corner %d pixel = (%v,%v), want (%v,%v)", i, c.X, c.Y, want[i].X, want[i].Y)
		}
		if !near(c.Lon, want[i].Lon, 1e-9) || !near(c.Lat, want[i].Lat, 1e-9) {
			t.Errorf("corner %d = (%v,%v), want (%v,%v)", i, c.Lon, c.Lat, want[i].Lon, want[i].Lat)
		}
		if c.Index != i+1 {
			t.Errorf("corner %d index = %d", i, c.Index)
		}
	}

	wantScale := (1 * math.Pi / 180) * 6378137 * math.Cos(50.5*math.Pi/180) / 1000
	if !near(cal.MM1B, wantScale, 1e-9) {
		t.Errorf("MM1B = %v, want %v", cal.MM1B, wantScale)
	}
}

func TestCalibrate_Degenerate(t *testing.T) {
	points := []Point{
		{X: 50, Y: 0, Lon: 19, Lat: 51},
		{X: 50, Y: 100, Lon: 19.1, Lat: 50.9},
		{X: 50, Y: 200, Lon: 19.2, Lat: 50.8},
		{X: 50, Y: 300, Lon: 19.3, Lat: 50.7},
	}

	cal, err := Calibrate(points, 100, 300)
	if !errors.Is(err, ErrDegenerateCalibration) {
		t.Fatalf("Calibrate(collinear) = %v, %v; want ErrDegenerateCalibration", cal, err)
	}
}

func TestCalibrate_InsufficientPoints(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
	}{
		{"none", nil},
		{"three", []Point{linear(0, 0), linear(10, 0), linear(0, 10)}},
		{"nan", []Point{linear(0, 0), linear(10, 0), linear(0, 10), {X: math.NaN()}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Calibrate(tt.points, 100, 100); !errors.Is(err, ErrInsufficientPoints) {
				t.Errorf("Calibrate error = %v, want ErrInsufficientPoints", err)
			}
		})
	}
}

func TestSortCorners(t *testing.T) {
	a := Point{Index: 1, X: 10, Y: 10}
	b := Point{Index: 2, X: 20, Y: 12}
	c := Point{Index: 3, X: 15, Y: 90}
	d := Point{Index: 4, X: 90, Y: 85}

	nw, ne, se, sw := SortCorners([]Point{d, c, b, a}, 100, 100)
	got := []int{nw.Index, ne.Index, se.Index, sw.Index}
	want := []int{1, 2, 4, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortCorners = %v, want %v", got, want)
		}
	}
}

// Three points clustered near the origin make the top and bottom edges share
// a point. The result is inconsistent but must not fail.
func TestSortCorners_Clustered(t *testing.T) {
	a := Point{Index: 1, X: 0, Y: 0, Lon: 19, Lat: 51}
	b := Point{Index: 2, X: 1, Y: 1, Lon: 19.01, Lat: 50.99}
	c := Point{Index: 3, X: 2, Y: 2, Lon: 19.02, Lat: 50.98}
	d := Point{Index: 4, X: 100, Y: 100, Lon: 20, Lat: 50}

	nw, ne, se, sw := SortCorners([]Point{a, b, c, d}, 100, 100)
	got := []int{nw.Index, ne.Index, se.Index, sw.Index}
	want := []int{1, 3, 4, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortCorners = %v, want %v", got, want)
		}
	}

	cal, err := Calibrate([]Point{a, b, c, d}, 100, 100)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	for i, corner := range cal.Corners {
		if math.IsNaN(corner.Lon) || math.IsNaN(corner.Lat) {
			t.Errorf("corner %d is NaN", i)
		}
	}
}

func TestXYToLonLat_Rectangle(t *testing.T) {
	corners := [4]Point{linear(0, 0), linear(1000, 0), linear(1000, 500), linear(0, 500)}

	for i, c := range corners {
		lon, lat := XYToLonLat(corners, 1000, 500, c.X, c.Y)
		if !near(lon, c.Lon, 1e-9) || !near(lat, c.Lat, 1e-9) {
			t.Errorf("corner %d: got (%v,%v), want (%v,%v)", i, lon, lat, c.Lon, c.Lat)
		}
	}

	lon, lat := XYToLonLat(corners, 1000, 500, 500, 250)
	var meanLon, meanLat float64
	for _, c := range corners {
		meanLon += c.Lon / 4
		meanLat += c.Lat / 4
	}
	if !near(lon, meanLon, 1e-9) || !near(lat, meanLat, 1e-9) {
		t.Errorf("center = (%v,%v), want (%v,%v)", lon, lat, meanLon, meanLat)
	}

	want := linear(250, 100)
	lon, lat = XYToLonLat(corners, 1000, 500, 250, 100)
	if !near(lon, want.Lon, 1e-9) || !near(lat, want.Lat, 1e-9) {
		t.Errorf("(250,100) = (%v,%v), want (%v,%v)", lon, lat, want.Lon, want.Lat)
	}
}

func TestXYToLonLat_Skewed(t *testing.T) {
	corners := [4]Point{
		{X: 0, Y: 0, Lon: 18.80, Lat: 49.85},
		{X: 5357, Y: 0, Lon: 19.26, Lat: 49.82},
		{X: 5357, Y: 7685, Lon: 19.25, Lat: 49.39},
		{X: 0, Y: 7685, Lon: 18.78, Lat: 49.41},
	}

	for i, c := range corners {
		lon, lat := XYToLonLat(corners, 5357, 7685, c.X, c.Y)
		if !near(lon, c.Lon, 1e-9) || !near(lat, c.Lat, 1e-9) {
			t.Errorf("corner %d: got (%v,%v), want (%v,%v)", i, lon, lat, c.Lon, c.Lat)
		}
	}

	lon, lat := XYToLonLat(corners, 5357, 7685, 2678.5, 3842.5)
	if lon < 18.78 || lon > 19.26 || lat < 49.39 || lat > 49.85 {
		t.Errorf("center (%v,%v) outside corner box", lon, lat)
	}
}

func TestIntersectLines_Parallel(t *testing.T) {
	// parallel lines fall back to a denominator of 1 instead of dividing by zero
	x, y := intersectLines(0, 0, 1, 0, 0, 1, 1, 1)
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		t.Errorf("intersectLines(parallel) = (%v,%v)", x, y)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want, eps              float64
	}{
		{"one degree east at 50N", 50, 19, 50, 20, 71.7, 1},
		{"same point", 50, 19, 50, 19, 0, 1e-9},
		{"one degree north", 0, 0, 1, 0, 111.2, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if !near(got, tt.want, tt.eps) {
				t.Errorf("Distance = %v, want %v±%v", got, tt.want, tt.eps)
			}
		})
	}
}

func TestToDegMin(t *testing.T) {
	deg, min, hem := ToDegMin(-19.25, "E", "W")
	if deg != 19 || !near(min, 15, 1e-9) || hem != "W" {
		t.Errorf("ToDegMin(-19.25) = %d, %v, %s", deg, min, hem)
	}
	if got := FormatLat(50.5); got != "50° 30.00' N" {
		t.Errorf("FormatLat(50.5) = %q", got)
	}
	if got := FormatLon(-0.25); got != "0° 15.00' W" {
		t.Errorf("FormatLon(-0.25) = %q", got)
	}
	if got := FormatDegreeSeconds(50.5021, true); got != "50° 30' 07.56'' N" {
		t.Errorf("FormatDegreeSeconds(50.5021) = %q", got)
	}
	if got := FormatDegreeSeconds(-19.25, false); got != "19° 15' 00.00'' W" {
		t.Errorf("FormatDegreeSeconds(-19.25) = %q", got)
	}
}
