package mapmaker

import (
	"bytes"
	"fmt"

	"github.com/kbedkowski/tbviewer/pkg/mapfile"
)

// WorldFile renders an ESRI world file for a calibrated map. Pixel sizes are
// in degrees, taken from the top and left edges of the calibrated corners.
func WorldFile(meta *mapfile.Meta) ([]byte, error) {
	c, err := meta.Corners()
	if err != nil {
		return nil, fmt.Errorf("world file: %w", err)
	}
	nw, ne, sw := c[0], c[1], c[3]
	px := (ne.Lon - nw.Lon) / float64(meta.ImageWidth)
	py := (nw.Lat - sw.Lat) / float64(meta.ImageHeight)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%24.10f\n", px)
	fmt.Fprintf(&buf, "%24.10f\n", 0.0)
	fmt.Fprintf(&buf, "%24.10f\n", 0.0)
	fmt.Fprintf(&buf, "%24.10f\n", -py)
	fmt.Fprintf(&buf, "%24.10f\n", nw.Lon)
	fmt.Fprintf(&buf, "%24.10f\n", nw.Lat)
	return buf.Bytes(), nil
}
