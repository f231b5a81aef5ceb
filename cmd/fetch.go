package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/home-economics/pricemaps/internal/refdata"
)

var fetchRefdata bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the dataset (and optionally boundary reference data)",
	Long:  "Downloads the ZHVI CSV into the data directory, skipping the transfer when the upstream ETag is unchanged. With --refdata, also downloads and extracts the ZCTA cartographic boundary archive.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		svc, st, err := openAcquire(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		path, updated, err := svc.DownloadDataset(ctx, cfg.Data.ZHVIURL, cfg.Data.DataDir)
		if err != nil {
			return err
		}
		if updated {
			fmt.Printf("dataset downloaded: %s\n", path)
		} else {
			fmt.Printf("dataset unchanged: %s\n", path)
		}

		if !fetchRefdata {
			return nil
		}

		archiveURL := cfg.Refdata.ShapefileURL
		if refdata.DetailTier(cfg.Refdata.DetailTier) == refdata.Tier20m {
			archiveURL = tier20mURL(archiveURL)
		}
		shpPath, err := svc.DownloadRefdata(ctx, archiveURL, filepath.Dir(cfg.Refdata.ShapefilePath))
		if err != nil {
			return err
		}
		fmt.Printf("shapefile extracted: %s\n", shpPath)
		return nil
	},
}

// tier20mURL rewrites the boundary archive URL to the coarser 1:20M
// variant published alongside the 1:500k file.
func tier20mURL(url string) string {
	return strings.Replace(url, "500k", "20m", 1)
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchRefdata, "refdata", false, "also download the boundary shapefile archive")
	rootCmd.AddCommand(fetchCmd)
}
