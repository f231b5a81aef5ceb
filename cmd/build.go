package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/home-economics/pricemaps/internal/acquire"
	"github.com/home-economics/pricemaps/internal/bucket"
	"github.com/home-economics/pricemaps/internal/payload"
	"github.com/home-economics/pricemaps/internal/refdata"
	"github.com/home-economics/pricemaps/internal/render"
	"github.com/home-economics/pricemaps/internal/store"
	"github.com/home-economics/pricemaps/internal/zhvi"
)

var buildBoundaries bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the map site from the downloaded data",
	Long:  "Loads the dataset and reference data, computes global buckets per metric, and writes the payload JSON plus one interactive HTML page per metric into the output directory.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snapID := ""
		if snap, err := st.LatestSnapshot(ctx); err == nil && snap != nil {
			snapID = snap.ID
		}
		run, err := st.StartRun(ctx, snapID)
		if err != nil {
			return err
		}

		doc, err := buildSite(ctx)
		if err != nil {
			if failErr := st.FailRun(ctx, run.ID, err); failErr != nil {
				zap.L().Warn("could not record failed run", zap.Error(failErr))
			}
			return err
		}

		if err := st.CompleteRun(ctx, run.ID, len(doc.Points), cfg.Data.OutputDir); err != nil {
			return err
		}
		fmt.Printf("built %d zips into %s\n", len(doc.Points), cfg.Data.OutputDir)
		return nil
	},
}

// loadInputs reads the dataset and reference data concurrently.
func loadInputs(ctx context.Context) (*zhvi.Dataset, *refdata.Store, error) {
	var (
		ds  *zhvi.Dataset
		ref *refdata.Store
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := os.Open(filepath.Join(cfg.Data.DataDir, acquire.DatasetFile))
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck
		ds, err = zhvi.Load(gctx, f)
		return err
	})
	g.Go(func() error {
		shapes, err := refdata.LoadShapefile(cfg.Refdata.ShapefilePath, refdata.ShapefileOptions{
			IncludeBoundaries: buildBoundaries,
		})
		if err != nil {
			return err
		}
		pops, err := refdata.LoadPopulation(gctx, cfg.Refdata.PopulationPath)
		if err != nil {
			return err
		}
		ref, err = refdata.NewStore(shapes, pops)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ds, ref, nil
}

// loadPalette returns the configured palette, or the default when no
// palette file is configured.
func loadPalette() (bucket.Palette, error) {
	if cfg.Map.PalettePath == "" {
		return bucket.DefaultPalette(), nil
	}
	return bucket.LoadPalette(cfg.Map.PalettePath)
}

// buildSite loads inputs, assembles the payload, and renders the site.
func buildSite(ctx context.Context) (*payload.Document, error) {
	ds, ref, err := loadInputs(ctx)
	if err != nil {
		return nil, err
	}
	palette, err := loadPalette()
	if err != nil {
		return nil, err
	}

	doc, err := payload.Build(ds, ref, cfg.Map.BucketCount, palette)
	if err != nil {
		return nil, err
	}
	if err := render.WriteSite(doc, cfg.Data.OutputDir); err != nil {
		return nil, err
	}
	return doc, nil
}

func init() {
	buildCmd.Flags().BoolVar(&buildBoundaries, "boundaries", false, "load simplified boundary rings (slower, larger)")
	rootCmd.AddCommand(buildCmd)
}
