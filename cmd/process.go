package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/afrimetrics/atlas-cli/internal/classify"
	"github.com/afrimetrics/atlas-cli/internal/gadm"
	"github.com/afrimetrics/atlas-cli/internal/model"
	"github.com/afrimetrics/atlas-cli/internal/raster"
	"github.com/afrimetrics/atlas-cli/internal/registry"
	"github.com/afrimetrics/atlas-cli/internal/report"
	"github.com/afrimetrics/atlas-cli/internal/store"
)

var (
	processRaster    string
	processCountries []string
	processMethod    string
	processClasses   int
	processReports   bool
	processExport    bool
)

var processCmd = &cobra.Command{
	Use:   "process [dataset]",
	Short: "Run the per-country clip/classify batch for a raster dataset",
	Long: `Clips the dataset raster to each country boundary, computes class
breaks, and stores them. Countries run concurrently; a failure in one
country is logged and skipped, never aborting the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dataset := args[0]

		if err := cfg.Validate("process"); err != nil {
			return err
		}

		methodName := processMethod
		if methodName == "" {
			methodName = cfg.Classify.Method
		}
		method, err := classify.ParseMethod(methodName)
		if err != nil {
			return err
		}
		classes := processClasses
		if classes == 0 {
			classes = cfg.Classify.Classes
		}

		rasterPath := processRaster
		if rasterPath == "" {
			rasterPath = filepath.Join(cfg.Data.RasterDir, dataset+".asc")
		}
		grid, err := raster.OpenASCII(rasterPath)
		if err != nil {
			return eris.Wrapf(err, "process: open raster %s", rasterPath)
		}

		countries := processCountries
		if len(countries) == 0 {
			for _, c := range registry.All() {
				countries = append(countries, c.ISO3)
			}
		} else {
			for i, iso3 := range countries {
				countries[i] = strings.ToUpper(iso3)
				if !registry.IsSubSaharan(countries[i]) {
					return eris.Wrapf(registry.ErrUnknownCountry, "process: %s", countries[i])
				}
			}
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.CreateRun(ctx, dataset)
		if err != nil {
			return err
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusClassifying, ""); err != nil {
			return err
		}

		if processReports {
			if err := os.MkdirAll(cfg.Process.ReportDir, 0o755); err != nil {
				return eris.Wrap(err, "process: create report dir")
			}
		}
		if processExport {
			if err := os.MkdirAll(cfg.Process.ExportDir, 0o755); err != nil {
				return eris.Wrap(err, "process: create export dir")
			}
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Process.Concurrency)

		var succeeded, failed atomic.Int64
		for _, iso3 := range countries {
			g.Go(func() error {
				if err := processCountry(gCtx, st, grid, dataset, iso3, run.ID, method, classes); err != nil {
					failed.Add(1)
					zap.L().Warn("country failed",
						zap.String("iso3", iso3),
						zap.String("dataset", dataset),
						zap.Error(err),
					)
					return nil
				}
				succeeded.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		status := model.RunStatusComplete
		errMsg := ""
		if succeeded.Load() == 0 {
			status = model.RunStatusFailed
			errMsg = fmt.Sprintf("all %d countries failed", failed.Load())
		}
		if err := st.UpdateRunStatus(ctx, run.ID, status, errMsg); err != nil {
			return err
		}

		zap.L().Info("process complete",
			zap.String("dataset", dataset),
			zap.String("run_id", run.ID),
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

func processCountry(
	ctx context.Context,
	st store.Store,
	grid *raster.Grid,
	dataset, iso3, runID string,
	method classify.Method,
	classes int,
) error {
	boundary, err := gadm.Load(cfg.Data.GADMDir, iso3)
	if err != nil {
		return eris.Wrap(err, "load boundary")
	}

	res, err := raster.Clip(grid, boundary.Geom)
	if err != nil {
		return eris.Wrap(err, "clip")
	}

	sample, err := classify.NewSample(res.Values)
	if err != nil {
		return eris.Wrap(err, "sample")
	}

	breaks, err := classify.Compute(sample, classes, method)
	if err != nil {
		return eris.Wrap(err, "compute breaks")
	}

	rec := &model.BreaksRecord{
		RunID:     runID,
		Dataset:   dataset,
		ISO3:      iso3,
		Method:    method.String(),
		Classes:   classes,
		Breaks:    breaks,
		CellCount: res.Inside,
	}
	if err := st.SaveBreaks(ctx, rec); err != nil {
		return eris.Wrap(err, "save breaks")
	}

	if processReports {
		path := filepath.Join(cfg.Process.ReportDir, fmt.Sprintf("%s_%s.html", strings.ToLower(iso3), dataset))
		rep := report.BreaksReport{
			Dataset: dataset,
			ISO3:    iso3,
			Method:  method.String(),
			Breaks:  breaks,
			Counts:  report.BinCounts(sample, breaks),
		}
		if err := report.WriteHTML(path, rep); err != nil {
			return eris.Wrap(err, "write report")
		}
	}

	if processExport {
		clipped, err := raster.ClipGrid(grid, boundary.Geom)
		if err != nil {
			return eris.Wrap(err, "clip grid")
		}
		path := filepath.Join(cfg.Process.ExportDir, fmt.Sprintf("%s_%s.asc", strings.ToLower(iso3), dataset))
		if err := clipped.SaveASCII(path); err != nil {
			return eris.Wrap(err, "export clipped grid")
		}
	}

	zap.L().Info("processed country",
		zap.String("iso3", iso3),
		zap.String("dataset", dataset),
		zap.Int("cells", res.Inside),
	)
	return nil
}

func init() {
	processCmd.Flags().StringVar(&processRaster, "raster", "", "ESRI ASCII grid path (default <raster_dir>/<dataset>.asc)")
	processCmd.Flags().StringSliceVar(&processCountries, "countries", nil, "ISO3 subset (default all Sub-Saharan countries)")
	processCmd.Flags().StringVar(&processMethod, "method", "", "classification method (default from config)")
	processCmd.Flags().IntVar(&processClasses, "classes", 0, "number of classes (default from config)")
	processCmd.Flags().BoolVar(&processReports, "reports", false, "write an HTML report per country")
	processCmd.Flags().BoolVar(&processExport, "export", false, "write the clipped ASCII grid per country")
	rootCmd.AddCommand(processCmd)
}
