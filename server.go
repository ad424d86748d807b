package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prl900/dc_wms/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WMS server",
	Long: `Start an HTTP server that provides:
  - /wms - WMS GetCapabilities and GetMap
  - /tiles/{layer}/{z}/{x}/{y}.png - XYZ tiles in EPSG:3857
  - /health - Health check endpoint`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := LoadConfig(cmd)
		logger.Init(cfg.Log)
		log := logger.Named("server")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := cfg.Open(ctx, log)
		if err != nil {
			log.Error().Err(err).Msg("startup failed")
			return err
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           svc.Routes(),
			ReadHeaderTimeout: readHeaderTimeout,
		}
		errc := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.Addr).Msg("http listening")
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().String("url", "http://localhost:8080/wms", "Public service URL advertised in capabilities")
	serveCmd.Flags().String("title", "Data cube WMS", "Service title")
	serveCmd.Flags().String("abstract", "", "Service abstract")
	serveCmd.Flags().Float64("max-area", 4e11, "Largest request extent in square metres")
	serveCmd.Flags().Int("max-size", 4096, "Largest request width or height in pixels")
	serveCmd.Flags().Duration("timeout", time.Minute, "Per request timeout")
}
