package mapfile

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kbedkowski/tbviewer/pkg/georef"
)

const dummyImage = "dummy.jpg"

const projectionBlock = `1 ,Map Code,
WGS 84,WGS 84,   0.0000,   0.0000,WGS 84
Reserved 1
Reserved 2
Magnetic Variation,,,E
Map Projection,Latitude/Longitude,PolyCal,No,AutoCalOnly,No,BSBUseWPX,No
`

const movingMapBlock = `Projection Setup,,,,,,,,,,
Map Feature = MF ; Map Comment = MC     These follow if they exist
Track File = TF      These follow if they exist
Moving Map Parameters = MM?    These follow if they exist
MM0,Yes
`

// Text renders m as a .map document. Numeric fields are written in shortest
// round-trip form, so Parse(m.Text()) reproduces them.
func (m *Meta) Text() string {
	var b strings.Builder
	b.WriteString(Header + "\n")
	b.WriteString(orDummy(m.ImageFilename) + "\n")
	b.WriteString(orDummy(m.ImageFilepath) + "\n")
	b.WriteString(projectionBlock)

	for _, p := range m.Points {
		b.WriteString(formatPoint(p) + "\n")
	}

	b.WriteString(movingMapBlock)
	fmt.Fprintf(&b, "MMPNUM,%d\n", len(m.CornerXY))
	for i, p := range m.CornerXY {
		fmt.Fprintf(&b, "MMPXY,%d,%s,%s\n", i+1, formatFloat(p.X()), formatFloat(p.Y()))
	}
	for i, p := range m.CornerLonLat {
		fmt.Fprintf(&b, "MMPLL,%d,%11s,%11s\n", i+1, formatFloat(p.Lon()), formatFloat(p.Lat()))
	}
	fmt.Fprintf(&b, "MM1B,%s\n", formatFloat(m.MM1B))
	b.WriteString("MOP,Map Open Position,0,0\n")
	fmt.Fprintf(&b, "IWH,Map Image Width/Height,%d,%d\n", m.ImageWidth, m.ImageHeight)
	return b.String()
}

// WriteTo writes the Text form of m to w.
func (m *Meta) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, m.Text())
	return int64(n), err
}

// formatPoint writes a PointNN record. Hemisphere letters mirror parsePoint:
// negative latitude is marked "E" and negative longitude "S".
func formatPoint(p georef.Point) string {
	latD, latM, latH := georef.ToDegMin(p.Lat, "N", "E")
	lonD, lonM, lonH := georef.ToDegMin(p.Lon, "E", "S")
	return fmt.Sprintf("Point%02d,xy,%5s,%5s,in, deg,%4d,%.7f,%s,%4d,%.7f,%s, grid,   ,           ,           ,N",
		p.Index, formatFloat(p.X), formatFloat(p.Y),
		latD, latM, latH, lonD, lonM, lonH)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDummy(s string) string {
	if s == "" {
		return dummyImage
	}
	return s
}
