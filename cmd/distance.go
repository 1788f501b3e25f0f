package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kbedkowski/tbviewer/pkg/georef"
)

var distanceCmd = &cobra.Command{
	Use:   "distance <lat1> <lon1> <lat2> <lon2>",
	Short: "Great-circle distance in kilometers",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var v [4]float64
		for i, a := range args {
			f, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return fmt.Errorf("invalid coordinate %q: %v", a, err)
			}
			v[i] = f
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.3f km\n", georef.Distance(v[0], v[1], v[2], v[3]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(distanceCmd)
}
