package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbedkowski/tbviewer/pkg/georef"
)

var locateCmd = &cobra.Command{
	Use:   "locate <atlas|map>",
	Short: "Print the geographic position of an image pixel",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)
	locateCmd.Flags().StringP("map", "m", "", "map of an atlas as layer/map")
	locateCmd.Flags().Float64("x", 0, "pixel column")
	locateCmd.Flags().Float64("y", 0, "pixel row")
	locateCmd.Flags().Bool("dms", false, "print degrees, minutes and seconds")
	locateCmd.MarkFlagRequired("x")
	locateCmd.MarkFlagRequired("y")
}

func runLocate(cmd *cobra.Command, args []string) error {
	ref, _ := cmd.Flags().GetString("map")
	x, _ := cmd.Flags().GetFloat64("x")
	y, _ := cmd.Flags().GetFloat64("y")
	dms, _ := cmd.Flags().GetBool("dms")

	a, m, err := openMapArg(args[0], ref)
	if err != nil {
		return err
	}
	defer a.Close()
	defer m.Close()

	lon, lat, err := m.LonLat(x, y)
	if err != nil {
		return err
	}
	latText, lonText := georef.FormatLat(lat), georef.FormatLon(lon)
	if dms {
		latText, lonText = georef.FormatDegreeSeconds(lat, true), georef.FormatDegreeSeconds(lon, false)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%.6f %.6f\t%s  %s\n", lat, lon, latText, lonText)
	return nil
}
