package cmd

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kbedkowski/tbviewer/internal/vfs"
	"github.com/kbedkowski/tbviewer/pkg/georef"
	"github.com/kbedkowski/tbviewer/pkg/mapfile"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Compute a .map file from calibration points",
	Long: `Compute the corner coordinates of an image from at least four
calibration points and write them as an OziExplorer .map file.

Each point is given as x,y,lat,lon with longitude positive East and
latitude positive North.`,
	Args: cobra.NoArgs,
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().StringP("image", "i", "", "image file, used for its size and name")
	calibrateCmd.Flags().Int("width", 0, "image width in pixels")
	calibrateCmd.Flags().Int("height", 0, "image height in pixels")
	calibrateCmd.Flags().StringArrayP("point", "p", nil, "calibration point as x,y,lat,lon (repeatable)")
	calibrateCmd.Flags().StringP("output", "o", "", "output .map file (default stdout)")
	calibrateCmd.MarkFlagRequired("point")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	imagePath, _ := cmd.Flags().GetString("image")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	pointArgs, _ := cmd.Flags().GetStringArray("point")
	output, _ := cmd.Flags().GetString("output")

	if imagePath != "" {
		w, h, err := imageSize(imagePath)
		if err != nil {
			return err
		}
		width, height = w, h
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image size unknown, use --image or --width and --height")
	}

	points := make([]georef.Point, 0, len(pointArgs))
	for i, s := range pointArgs {
		p, err := parsePoint(s)
		if err != nil {
			return err
		}
		p.Index = i + 1
		points = append(points, p)
	}

	cal, err := georef.Calibrate(points, width, height)
	if err != nil {
		return err
	}
	meta := mapfile.FromCalibration(points, cal, width, height)
	if imagePath != "" {
		meta.ImageFilename = filepath.Base(imagePath)
		if abs, err := filepath.Abs(imagePath); err == nil {
			meta.ImageFilepath = abs
		}
	}

	if output == "" {
		_, err := meta.WriteTo(cmd.OutOrStdout())
		return err
	}
	enc, err := vfs.EncodingByName(viper.GetString("codepage"))
	if err != nil {
		return err
	}
	data, err := enc.NewEncoder().String(meta.Text())
	if err != nil {
		return fmt.Errorf("encode map file: %w", err)
	}
	if err := os.WriteFile(output, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write map file: %w", err)
	}
	logger.Info("Map file written", "file", output, "scale", cal.MM1B)
	return nil
}

// parsePoint parses "x,y,lat,lon".
func parsePoint(s string) (georef.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return georef.Point{}, fmt.Errorf("invalid point %q: expected x,y,lat,lon", s)
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return georef.Point{}, fmt.Errorf("invalid point %q: %v", s, err)
		}
		v[i] = f
	}
	return georef.Point{X: v[0], Y: v[1], Lat: v[2], Lon: v[3]}, nil
}

// imageSize reads the dimensions from the image header.
func imageSize(name string) (int, int, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("read image size of %s: %w", name, err)
	}
	return cfg.Width, cfg.Height, nil
}
