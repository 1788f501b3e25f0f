// Package mapfile reads and writes OziExplorer ".map" calibration files as
// used by Trekbuddy map sets.
package mapfile

import (
	"github.com/paulmach/orb"

	"github.com/kbedkowski/tbviewer/pkg/georef"
)

// Header is the required first line of a .map file.
const Header = "OziExplorer Map Data File Version 2.2"

// Meta holds the content of a .map file.
type Meta struct {
	ImageFilename string
	ImageFilepath string
	Projection    string
	MapProjection string

	// Points are the user calibration points ("PointNN" records).
	Points []georef.Point

	// CornerXY and CornerLonLat come from MMPXY and MMPLL records, in
	// file order.
	CornerXY     []orb.Point
	CornerLonLat []orb.Point
	PointsCount  int

	MM1B        float64
	ImageWidth  int
	ImageHeight int
}

// Valid reports whether the image size is known.
func (m *Meta) Valid() bool {
	return m.ImageWidth > 0 && m.ImageHeight > 0
}

// Calibrated reports whether the four corner records are complete.
func (m *Meta) Calibrated() bool {
	return len(m.CornerXY) == 4 && len(m.CornerLonLat) == 4 && m.PointsCount == 4
}

// Corners returns the calibrated corners in file order. The image size must
// be known for the corners to be usable.
func (m *Meta) Corners() ([4]georef.Point, error) {
	var c [4]georef.Point
	if !m.Calibrated() {
		return c, ErrNotCalibrated
	}
	if !m.Valid() {
		return c, ErrNoImageSize
	}
	for i := range c {
		c[i] = georef.Point{
			Index: i + 1,
			X:     m.CornerXY[i].X(),
			Y:     m.CornerXY[i].Y(),
			Lon:   m.CornerLonLat[i].Lon(),
			Lat:   m.CornerLonLat[i].Lat(),
		}
	}
	return c, nil
}

// LonLat maps an image pixel to geographic coordinates.
func (m *Meta) LonLat(x, y float64) (float64, float64, error) {
	c, err := m.Corners()
	if err != nil {
		return 0, 0, err
	}
	lon, lat := georef.XYToLonLat(c, m.ImageWidth, m.ImageHeight, x, y)
	return lon, lat, nil
}

// Bound returns the lon/lat extent of the corners.
func (m *Meta) Bound() orb.Bound {
	return orb.MultiPoint(m.CornerLonLat).Bound()
}

// FromCalibration builds a calibrated Meta for an image of the given size.
func FromCalibration(points []georef.Point, cal *georef.Calibration, width, height int) *Meta {
	m := &Meta{
		Points:      append([]georef.Point(nil), points...),
		PointsCount: len(cal.Corners),
		MM1B:        cal.MM1B,
		ImageWidth:  width,
		ImageHeight: height,
	}
	for _, c := range cal.Corners {
		m.CornerXY = append(m.CornerXY, orb.Point{c.X, c.Y})
		m.CornerLonLat = append(m.CornerLonLat, orb.Point{c.Lon, c.Lat})
	}
	return m
}
