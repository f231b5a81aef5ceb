package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/home-economics/pricemaps/internal/server"
	"github.com/home-economics/pricemaps/internal/view"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the built site with a rebucket API",
	Long:  "Serves the output directory on the configured port, plus POST /api/rebucket for server-side spatial filtering and bucketing. Shuts down gracefully on SIGINT/SIGTERM.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ds, ref, err := loadInputs(ctx)
		if err != nil {
			return err
		}
		palette, err := loadPalette()
		if err != nil {
			return err
		}
		engine, err := view.NewEngine(ds, ref, cfg.Map.BucketCount, palette)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.New(engine, cfg.Data.OutputDir),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("preview server listening", zap.Int("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			zap.L().Info("preview server stopped")
		}
		return nil
	},
}

func init() { rootCmd.AddCommand(serveCmd) }
