package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkQuiet bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check upstream for a new dataset snapshot",
	Long:  "Fetches only the dataset header row and compares the latest date column against the last recorded snapshot. Exits 0 when new data is available, 3 when not.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		svc, st, err := openAcquire(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := svc.Check(ctx, cfg.Data.ZHVIURL)
		if err != nil {
			return err
		}

		if !checkQuiet {
			fmt.Printf("remote snapshot: %s\n", res.RemoteDate.Format("2006-01-02"))
			if res.KnownDate != nil {
				fmt.Printf("known snapshot:  %s\n", res.KnownDate.Format("2006-01-02"))
			}
		}

		if !res.NewData {
			if !checkQuiet {
				fmt.Println("no new data")
			}
			exitCode = 3
			return nil
		}
		if !checkQuiet {
			fmt.Println("new data available")
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "suppress output, report via exit status only")
	rootCmd.AddCommand(checkCmd)
}
