package georef

import (
	"fmt"
	"math"
)

// earthDiameter in km (2 * 6371).
const earthDiameter = 12742.0

// Distance returns the great-circle distance in km between two points using
// the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p := math.Pi / 180
	a := 0.5 - math.Cos((lat2-lat1)*p)/2 +
		math.Cos(lat1*p)*math.Cos(lat2*p)*(1-math.Cos((lon2-lon1)*p))/2
	return earthDiameter * math.Asin(math.Sqrt(a))
}

// ToDegMin splits a degree value into whole degrees, minutes and a hemisphere
// letter: pos for values >= 0, neg otherwise.
func ToDegMin(d float64, pos, neg string) (int, float64, string) {
	hem := pos
	if d < 0 {
		d = -d
		hem = neg
	}
	whole := math.Trunc(d)
	return int(whole), (d - whole) * 60, hem
}

// FormatDegree formats a latitude (N/S) or longitude (E/W) as degrees and
// decimal minutes, like 50° 30.00' N.
func FormatDegree(d float64, latitude bool) string {
	pos, neg := "E", "W"
	if latitude {
		pos, neg = "N", "S"
	}
	deg, min, hem := ToDegMin(d, pos, neg)
	return fmt.Sprintf("%d° %05.2f' %s", deg, min, hem)
}

// FormatDegreeSeconds formats a latitude (N/S) or longitude (E/W) as
// degrees, minutes and decimal seconds, like 50° 30' 07.20'' N.
func FormatDegreeSeconds(d float64, latitude bool) string {
	pos, neg := "E", "W"
	if latitude {
		pos, neg = "N", "S"
	}
	deg, min, hem := ToDegMin(d, pos, neg)
	whole := math.Trunc(min)
	return fmt.Sprintf("%d° %d' %05.2f'' %s", deg, int(whole), (min-whole)*60, hem)
}

// FormatLat formats a latitude.
func FormatLat(d float64) string {
	return FormatDegree(d, true)
}

// FormatLon formats a longitude.
func FormatLon(d float64) string {
	return FormatDegree(d, false)
}
