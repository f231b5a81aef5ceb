package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/home-economics/pricemaps/internal/store"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show snapshot, build, and deploy history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := st.LatestSnapshot(ctx)
		if err != nil {
			return err
		}
		if snap == nil {
			fmt.Println("no snapshots recorded; run `pricemaps check` or `pricemaps fetch`")
		} else {
			fmt.Printf("latest snapshot: %s (checked %s)\n",
				snap.LatestDate.Format("2006-01-02"), snap.CheckedAt.Format(time.RFC3339))
			if snap.DownloadedAt != nil {
				fmt.Printf("  downloaded %s -> %s\n", snap.DownloadedAt.Format(time.RFC3339), snap.Path)
			} else {
				fmt.Println("  not downloaded yet")
			}
		}

		runs, err := st.ListRuns(ctx, statusLimit)
		if err != nil {
			return err
		}
		fmt.Printf("\nbuild runs (%d):\n", len(runs))
		for _, r := range runs {
			line := fmt.Sprintf("  %s  %-8s  started %s", r.ID[:8], r.Status, r.StartedAt.Format(time.RFC3339))
			switch r.Status {
			case store.RunComplete:
				line += fmt.Sprintf("  %d zips -> %s", r.Zips, r.OutputDir)
			case store.RunFailed:
				line += "  " + r.Error
			}
			fmt.Println(line)
		}

		deploys, err := st.ListDeploys(ctx, statusLimit)
		if err != nil {
			return err
		}
		fmt.Printf("\ndeploys (%d):\n", len(deploys))
		for _, d := range deploys {
			fmt.Printf("  %s  %-4s  %s  %s\n", d.ID[:8], d.Target, d.DeployedAt.Format(time.RFC3339), d.Dest)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "history entries to show")
	rootCmd.AddCommand(statusCmd)
}
