package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kbedkowski/tbviewer/internal/imaging"
	"github.com/kbedkowski/tbviewer/internal/mapmaker"
	"github.com/kbedkowski/tbviewer/internal/vfs"
	"github.com/kbedkowski/tbviewer/pkg/mapfile"
)

var cutCmd = &cobra.Command{
	Use:   "cut <image> <output.map>",
	Short: "Cut an image into a Trekbuddy tile set",
	Long: `Cut an image into JPEG tiles under <dir>/set, write the set listing and,
when a calibration is given, the .map file. By default the result is also
packed into <name>.tar next to the map.`,
	Args: cobra.ExactArgs(2),
	RunE: runCut,
}

func init() {
	rootCmd.AddCommand(cutCmd)
	cutCmd.Flags().StringP("calibration", "c", "", ".map file with the image calibration")
	cutCmd.Flags().Int("tile-size", mapmaker.DefaultTileSize, "tile width and height in pixels")
	cutCmd.Flags().Int("quality", mapmaker.DefaultQuality, "JPEG quality of the tiles")
	cutCmd.Flags().Int("workers", 0, "concurrent tile encoders (default GOMAXPROCS)")
	cutCmd.Flags().BoolP("force", "f", false, "overwrite existing tiles")
	cutCmd.Flags().Bool("tar", true, "pack the map into a tar archive")
	cutCmd.Flags().Bool("worldfile", false, "write a .jgw world file")
}

func runCut(cmd *cobra.Command, args []string) error {
	imagePath, dst := args[0], args[1]
	calibration, _ := cmd.Flags().GetString("calibration")
	tileSize, _ := cmd.Flags().GetInt("tile-size")
	quality, _ := cmd.Flags().GetInt("quality")
	workers, _ := cmd.Flags().GetInt("workers")
	force, _ := cmd.Flags().GetBool("force")
	createTar, _ := cmd.Flags().GetBool("tar")
	worldFile, _ := cmd.Flags().GetBool("worldfile")

	enc, err := vfs.EncodingByName(viper.GetString("codepage"))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	img, err := imaging.NewCodec().Decode(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", imagePath, err)
	}

	var meta *mapfile.Meta
	if calibration != "" {
		raw, err := os.ReadFile(calibration)
		if err != nil {
			return fmt.Errorf("read calibration: %w", err)
		}
		text, err := enc.NewDecoder().String(string(raw))
		if err != nil {
			return fmt.Errorf("decode calibration: %w", err)
		}
		if meta, err = mapfile.Parse(text); err != nil {
			return err
		}
		b := img.Bounds()
		if meta.Valid() && (meta.ImageWidth != b.Dx() || meta.ImageHeight != b.Dy()) {
			logger.Warn("Calibration size differs from image",
				"calibration", fmt.Sprintf("%dx%d", meta.ImageWidth, meta.ImageHeight),
				"image", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()))
		}
		meta.ImageFilename = filepath.Base(imagePath)
		meta.ImageWidth, meta.ImageHeight = b.Dx(), b.Dy()
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := mapmaker.Create(ctx, img, meta, dst, &mapmaker.Options{
		TileWidth:  tileSize,
		TileHeight: tileSize,
		Quality:    quality,
		Force:      force,
		CreateTar:  createTar,
		WorldFile:  worldFile,
		Workers:    workers,
		Encoding:   enc,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d tiles (%d written, %d kept)\n",
		titleStyle.Render(res.SetFile), len(res.Tiles), res.Written, res.Skipped)
	for _, f := range []string{res.MapFile, res.WorldFile, res.TarFile} {
		if f != "" {
			fmt.Fprintln(out, f)
		}
	}
	if meta == nil {
		fmt.Fprintln(out, warningStyle.Render("no calibration given, map file not written"))
	}
	return nil
}
