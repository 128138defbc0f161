package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/afrimetrics/atlas-cli/internal/classify"
	"github.com/afrimetrics/atlas-cli/internal/gadm"
	"github.com/afrimetrics/atlas-cli/internal/model"
	"github.com/afrimetrics/atlas-cli/internal/raster"
	"github.com/afrimetrics/atlas-cli/internal/store"
)

var (
	breaksRaster  string
	breaksCountry string
	breaksDataset string
	breaksMethod  string
	breaksClasses int
	breaksSave    bool
)

var breaksCmd = &cobra.Command{
	Use:   "breaks",
	Short: "Compute class breaks for one country raster",
	Long:  "Clips a raster to a country boundary, samples the cells inside, and prints the class break boundaries as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		methodName := breaksMethod
		if methodName == "" {
			methodName = cfg.Classify.Method
		}
		method, err := classify.ParseMethod(methodName)
		if err != nil {
			return err
		}
		classes := breaksClasses
		if classes == 0 {
			classes = cfg.Classify.Classes
		}

		iso3 := strings.ToUpper(breaksCountry)
		boundary, err := gadm.Load(cfg.Data.GADMDir, iso3)
		if err != nil {
			return eris.Wrapf(err, "breaks: load boundary %s", iso3)
		}

		grid, err := raster.OpenASCII(breaksRaster)
		if err != nil {
			return eris.Wrapf(err, "breaks: open raster %s", breaksRaster)
		}

		res, err := raster.Clip(grid, boundary.Geom)
		if err != nil {
			return eris.Wrap(err, "breaks: clip")
		}

		sample, err := classify.NewSample(res.Values)
		if err != nil {
			return eris.Wrapf(err, "breaks: sample %s", iso3)
		}

		breaks, err := classify.Compute(sample, classes, method)
		if err != nil {
			return eris.Wrapf(err, "breaks: compute %s", iso3)
		}

		rec := &model.BreaksRecord{
			Dataset:   breaksDataset,
			ISO3:      iso3,
			Method:    method.String(),
			Classes:   classes,
			Breaks:    breaks,
			CellCount: res.Inside,
		}

		if breaksSave {
			st, err := store.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			if err := st.SaveBreaks(ctx, rec); err != nil {
				return err
			}
			zap.L().Info("saved breaks",
				zap.String("iso3", iso3),
				zap.String("dataset", breaksDataset),
				zap.String("method", method.String()),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rec), "breaks: encode result")
	},
}

func init() {
	breaksCmd.Flags().StringVar(&breaksRaster, "raster", "", "ESRI ASCII grid path")
	breaksCmd.Flags().StringVar(&breaksCountry, "country", "", "ISO3 country code")
	breaksCmd.Flags().StringVar(&breaksDataset, "dataset", "gdp", "dataset name for the stored record")
	breaksCmd.Flags().StringVar(&breaksMethod, "method", "", "classification method (default from config)")
	breaksCmd.Flags().IntVar(&breaksClasses, "classes", 0, "number of classes (default from config)")
	breaksCmd.Flags().BoolVar(&breaksSave, "save", false, "persist the breaks to the store")
	breaksCmd.MarkFlagRequired("raster")  //nolint:errcheck
	breaksCmd.MarkFlagRequired("country") //nolint:errcheck
	rootCmd.AddCommand(breaksCmd)
}
