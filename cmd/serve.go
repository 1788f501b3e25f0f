package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kbedkowski/tbviewer/internal/atlas"
	"github.com/kbedkowski/tbviewer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [atlas|map]",
	Short: "Start HTTP server for map tiles and calibration",
	Long: `Start an HTTP server that exposes the maps of an atlas, their tiles and
pixel to coordinate lookups, and a calibration endpoint.

Without an atlas only the health and calibration endpoints are useful.

Examples:
  # Serve an atlas on default port 8080
  tbviewer serve ~/maps/poland/poland.tba

  # Serve a standalone map on a custom port
  tbviewer serve janow.tar --port 3000

  # Bind to all interfaces
  tbviewer serve atlas.tar --bind 0.0.0.0 --port 8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")

	addr := fmt.Sprintf("%s:%d", bind, port)

	var a *atlas.Atlas
	if len(args) == 1 {
		opts, err := atlasOptions()
		if err != nil {
			return err
		}
		if a, err = atlas.Open(args[0], opts...); err != nil {
			return err
		}
		defer a.Close()
		logger.Info("Atlas opened", "path", a.Path, "type", a.Type.String(), "layers", len(a.Layers))
	}

	apiServer := server.NewServer(Version, a, logger)
	defer apiServer.Close()

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.NewRouter(apiServer, timeout),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting tbviewer server", "addr", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s/api/v1/health\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Atlas: http://%s/api/v1/atlas\n", addr)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
