package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kbedkowski/tbviewer/internal/atlas"
	"github.com/kbedkowski/tbviewer/internal/logging"
	"github.com/kbedkowski/tbviewer/internal/vfs"
)

// Version is reported by the server health endpoint.
var Version = "0.3.0"

var (
	cfgFile string

	logger     = slog.New(slog.DiscardHandler)
	logCleanup = func() {}

	setupLogging = logging.Setup
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tbviewer",
	Short: "View and calibrate Trekbuddy maps and atlases",
	Long: `tbviewer reads Trekbuddy map sets and atlases from directories or tar
archives, maps image pixels to geographic coordinates, and calibrates new
maps into OziExplorer .map files.

Examples:
  # List layers and maps of an atlas
  tbviewer info ~/maps/poland/poland.tba

  # Show one map of an atlas
  tbviewer info ~/maps/poland/poland.tba --map topo/janow

  # Geographic position of a pixel
  tbviewer locate janow.tar --x 3328 --y 3840

  # Calibrate an image from four points (x,y,lat,lon)
  tbviewer calibrate --width 5357 --height 7685 \
    -p 224,526,49.8,18.8 -p 5136,526,49.8,19.2 \
    -p 5158,7527,49.4,19.2 -p 1730,7529,49.4,18.9 -o janow.map

  # Cut an image into a tile set and tar archive
  tbviewer cut janow.jpg out/janow.map --calibration janow.map

  # Start HTTP server
  tbviewer serve atlas.tba --port 8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, cleanup, err := setupLogging(logging.Config{
			File:    viper.GetString("log.file"),
			Debug:   viper.GetBool("log.debug"),
			Console: cmd.ErrOrStderr(),
		})
		if err != nil {
			return fmt.Errorf("setup logging: %w", err)
		}
		logger, logCleanup = l, cleanup
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := execute()
	if err != nil {
		os.Exit(1)
	}
}

// execute runs the root command and closes the log file whether or not the
// command failed.
func execute() error {
	defer func() {
		logCleanup()
		logger, logCleanup = slog.New(slog.DiscardHandler), func() {}
	}()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tbviewer.yaml)")
	rootCmd.PersistentFlags().String("log-file", "", "write JSON logs to this rotated file")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("codepage", "windows-1250", "codepage of .map files")
	rootCmd.PersistentFlags().Int("cache-tiles", atlas.DefaultCacheSize, "decoded tiles cached per map")

	// Bind flags to viper
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("codepage", rootCmd.PersistentFlags().Lookup("codepage"))
	viper.BindPFlag("cache.tiles", rootCmd.PersistentFlags().Lookup("cache-tiles"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".tbviewer" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tbviewer")
	}

	// TBVIEWER_SERVER_PORT overrides server.port
	viper.SetEnvPrefix("tbviewer")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// atlasOptions builds atlas options from the configuration.
func atlasOptions() ([]atlas.Option, error) {
	enc, err := vfs.EncodingByName(viper.GetString("codepage"))
	if err != nil {
		return nil, err
	}
	return []atlas.Option{
		atlas.WithLogger(logger),
		atlas.WithCacheSize(viper.GetInt("cache.tiles")),
		atlas.WithStorage(vfs.WithEncoding(enc)),
	}, nil
}

// openMapArg opens the atlas at path and the map named by ref ("layer/map").
// ref may be empty for a standalone map.
func openMapArg(path, ref string) (*atlas.Atlas, *atlas.Map, error) {
	opts, err := atlasOptions()
	if err != nil {
		return nil, nil, err
	}
	a, err := atlas.Open(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	m, err := selectMap(a, ref)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, m, nil
}

func selectMap(a *atlas.Atlas, ref string) (*atlas.Map, error) {
	if ref == "" {
		if !a.Standalone() {
			return nil, fmt.Errorf("%s is an atlas, select a map with --map layer/map", a.Path)
		}
		return a.OpenMap(a.Layers[0].Maps[0])
	}
	layer, name, ok := strings.Cut(ref, "/")
	if !ok {
		return nil, fmt.Errorf("map must be given as layer/map, got %q", ref)
	}
	mref, ok := a.Lookup(layer, name)
	if !ok {
		return nil, fmt.Errorf("map %q not found in %s", ref, a.Path)
	}
	return a.OpenMap(mref)
}
