package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kbedkowski/tbviewer/internal/atlas"
	"github.com/kbedkowski/tbviewer/pkg/georef"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4"))
	layerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))
)

var infoCmd = &cobra.Command{
	Use:   "info <atlas|map>",
	Short: "Show layers and maps of an atlas, or the details of one map",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringP("map", "m", "", "map of an atlas as layer/map")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ref, _ := cmd.Flags().GetString("map")
	out := cmd.OutOrStdout()

	opts, err := atlasOptions()
	if err != nil {
		return err
	}
	a, err := atlas.Open(args[0], opts...)
	if err != nil {
		return err
	}
	defer a.Close()
	if ref == "" && !a.Standalone() {
		printAtlas(out, a)
		return nil
	}

	m, err := selectMap(a, ref)
	if err != nil {
		return err
	}
	defer m.Close()
	printMap(out, m)
	return nil
}

func printAtlas(w io.Writer, a *atlas.Atlas) {
	fmt.Fprintln(w, titleStyle.Render(a.Path)+" "+dimStyle.Render("("+a.Type.String()+")"))
	for _, l := range a.Layers {
		fmt.Fprintln(w, layerStyle.Render(l.Name))
		for _, m := range l.Maps {
			fmt.Fprintf(w, "  %s %s\n", m.Name, dimStyle.Render(m.Path))
		}
	}
}

func printMap(w io.Writer, m *atlas.Map) {
	meta, ix := m.Meta(), m.Index()
	fmt.Fprintln(w, titleStyle.Render(m.Name))
	fmt.Fprintf(w, "image:      %s\n", meta.ImageFilename)
	fmt.Fprintf(w, "size:       %d x %d\n", meta.ImageWidth, meta.ImageHeight)
	fmt.Fprintf(w, "tiles:      %d (%d x %d)\n", ix.Len(), ix.TileWidth, ix.TileHeight)
	fmt.Fprintf(w, "projection: %s\n", meta.Projection)

	corners, err := meta.Corners()
	if err != nil {
		fmt.Fprintln(w, warningStyle.Render("not calibrated"))
		return
	}
	fmt.Fprintf(w, "scale:      %.2f m/px\n", meta.MM1B)
	for i, c := range corners {
		fmt.Fprintf(w, "corner %d:   %6.0f %6.0f  %s  %s\n", i+1, c.X, c.Y,
			georef.FormatLat(c.Lat), georef.FormatLon(c.Lon))
	}
	nw, se := corners[0], corners[2]
	fmt.Fprintf(w, "diagonal:   %.2f km\n", georef.Distance(nw.Lat, nw.Lon, se.Lat, se.Lon))
}
