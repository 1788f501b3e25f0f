package mapfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/kbedkowski/tbviewer/pkg/georef"
)

const (
	minLines  = 10
	iwhPrefix = "IWH,Map Image Width/Height,"
)

// cornerRecord is one MMPXY or MMPLL line before order validation.
type cornerRecord struct {
	lineNo int
	line   string
	id     int
	a, b   float64
}

// Parse parses the content of a .map file. Each call returns a new Meta;
// the caller decides whether Valid or Calibrated is required.
func Parse(content string) (*Meta, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	if lines[0] != Header {
		return nil, lineError(ErrBadHeader, 0, lines[0], nil)
	}
	if len(lines) < minLines {
		return nil, lineError(ErrTooShort, -1, "", fmt.Errorf("%d lines, expected at least %d", len(lines), minLines))
	}

	m := &Meta{
		ImageFilename: lines[1],
		ImageFilepath: lines[2],
		Projection:    lines[4],
		MapProjection: lines[8],
	}

	var mmpll, mmpxy []cornerRecord
	for no := 9; no < len(lines); no++ {
		line := lines[no]
		switch {
		case strings.HasPrefix(line, "Point"):
			p, ok, err := parsePoint(line)
			if err != nil {
				return nil, lineError(ErrMalformedRecord, no, line, err)
			}
			if ok {
				m.Points = append(m.Points, p)
			}
		case strings.HasPrefix(line, iwhPrefix):
			w, h, err := parseSize(line[len(iwhPrefix):])
			if err != nil {
				return nil, lineError(ErrMalformedRecord, no, line, err)
			}
			m.ImageWidth, m.ImageHeight = w, h
		case strings.HasPrefix(line, "MMPNUM,"):
			n, err := strconv.Atoi(strings.TrimSpace(line[len("MMPNUM,"):]))
			if err != nil {
				return nil, lineError(ErrMalformedRecord, no, line, err)
			}
			m.PointsCount = n
		case strings.HasPrefix(line, "MMPLL"):
			r, err := parseCorner(no, line)
			if err != nil {
				return nil, err
			}
			mmpll = append(mmpll, r)
		case strings.HasPrefix(line, "MMPXY"):
			r, err := parseCorner(no, line)
			if err != nil {
				return nil, err
			}
			mmpxy = append(mmpxy, r)
		case strings.HasPrefix(line, "MM1B,"):
			v, err := strconv.ParseFloat(strings.TrimSpace(line[len("MM1B,"):]), 64)
			if err != nil {
				return nil, lineError(ErrMalformedRecord, no, line, err)
			}
			m.MM1B = v
		}
	}

	var err error
	if m.CornerLonLat, err = orderCorners("MMPLL", mmpll); err != nil {
		return nil, err
	}
	if m.CornerXY, err = orderCorners("MMPXY", mmpxy); err != nil {
		return nil, err
	}
	return m, nil
}

// parsePoint parses a "PointNN,xy,x,y,in,deg,latD,latM,latH,lonD,lonM,lonH,..."
// record. Unused slots (blank x) return ok=false.
//
// Hemisphere letters follow the convention of files written by this tool:
// latitude is negated for "E" and longitude for "S".
func parsePoint(line string) (georef.Point, bool, error) {
	var p georef.Point
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) > 2 && fields[2] == "" {
		return p, false, nil
	}
	if len(fields) < 12 {
		return p, false, fmt.Errorf("%d fields, expected at least 12", len(fields))
	}

	idx, err := strconv.Atoi(strings.TrimPrefix(fields[0], "Point"))
	if err != nil {
		return p, false, err
	}
	nums := make([]float64, 0, 6)
	for _, i := range []int{2, 3, 6, 7, 9, 10} {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return p, false, err
		}
		nums = append(nums, v)
	}

	p = georef.Point{
		Index: idx,
		X:     nums[0],
		Y:     nums[1],
		Lat:   nums[2] + nums[3]/60,
		Lon:   nums[4] + nums[5]/60,
	}
	if fields[8] == "E" {
		p.Lat = -p.Lat
	}
	if fields[11] == "S" {
		p.Lon = -p.Lon
	}
	return p, true, nil
}

func parseSize(s string) (int, int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%d fields, expected 2", len(parts))
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

// parseCorner parses "TAG,id,a,b" records (MMPXY: x,y; MMPLL: lon,lat).
func parseCorner(no int, line string) (cornerRecord, error) {
	r := cornerRecord{lineNo: no, line: line}
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return r, lineError(ErrMalformedRecord, no, line, fmt.Errorf("%d fields, expected 4", len(fields)))
	}
	var err error
	if r.id, err = strconv.Atoi(strings.TrimSpace(fields[1])); err != nil {
		return r, lineError(ErrMalformedRecord, no, line, err)
	}
	if r.a, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64); err != nil {
		return r, lineError(ErrMalformedRecord, no, line, err)
	}
	if r.b, err = strconv.ParseFloat(strings.TrimSpace(fields[3]), 64); err != nil {
		return r, lineError(ErrMalformedRecord, no, line, err)
	}
	return r, nil
}

// orderCorners checks that records arrived numbered 1, 2, 3, ...
func orderCorners(tag string, recs []cornerRecord) ([]orb.Point, error) {
	var out []orb.Point
	for k, r := range recs {
		if r.id != k+1 {
			return nil, lineError(ErrOutOfOrderPoint, r.lineNo, r.line,
				fmt.Errorf("%s point %d, expected %d", tag, r.id, k+1))
		}
		out = append(out, orb.Point{r.a, r.b})
	}
	return out, nil
}
