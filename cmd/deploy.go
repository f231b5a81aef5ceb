package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/home-economics/pricemaps/internal/deploy"
	"github.com/home-economics/pricemaps/internal/store"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Publish the built site",
	Long:  "Publishes the output directory to the configured destination: a local publish directory (copy mode) or an FTP host (ftp mode). The deployment is recorded against the latest build run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.LatestRun(ctx)
		if err != nil {
			return err
		}
		if run == nil || run.Status != store.RunComplete {
			return eris.New("deploy: no completed build run; run `pricemaps build` first")
		}

		d, err := deploy.New(cfg.Deploy)
		if err != nil {
			return err
		}
		dest, err := d.Deploy(ctx, cfg.Data.OutputDir)
		if err != nil {
			return err
		}

		if _, err := st.RecordDeploy(ctx, run.ID, d.Target(), dest); err != nil {
			return err
		}
		fmt.Printf("deployed to %s\n", dest)
		return nil
	},
}

func init() { rootCmd.AddCommand(deployCmd) }
