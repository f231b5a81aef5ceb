package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/home-economics/pricemaps/internal/config"
)

var cfg *config.Config

// exitCode lets commands signal a non-error status (e.g. check reporting
// "no new data") without cobra printing usage.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "pricemaps",
	Short: "ZIP-level housing price maps",
	Long:  "Ingests the Zillow ZHVI ZIP dataset, joins population and boundary reference data, buckets price metrics, and renders self-contained interactive maps.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
