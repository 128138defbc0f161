package main

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/afrimetrics/atlas-cli/internal/etl"
)

var (
	cleanIn          string
	cleanOut         string
	cleanIndicators  []string
	cleanStartYear   int
	cleanTotalsPath  string
	cleanExposureCol string
	cleanTotalsCol   string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean raw datasets into the dashboard's long formats",
}

var cleanEmdatCmd = &cobra.Command{
	Use:   "emdat",
	Short: "Clean the EM-DAT disaster export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in := cleanIn
		if in == "" {
			in = filepath.Join(cfg.Data.RawDir, "emdat.xlsx")
		}
		out := cleanOut
		if out == "" {
			out = filepath.Join(cfg.Data.CleanDir, "disasters.csv")
		}

		if err := etl.CleanEMDATFile(in, out); err != nil {
			return eris.Wrap(err, "clean emdat")
		}
		zap.L().Info("cleaned emdat", zap.String("out", out))
		return nil
	},
}

var cleanWDICmd = &cobra.Command{
	Use:   "wdi",
	Short: "Melt the wide WDI export into per-indicator series",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in := cleanIn
		if in == "" {
			in = filepath.Join(cfg.Data.RawDir, "wdi.csv")
		}
		outDir := cleanOut
		if outDir == "" {
			outDir = cfg.Data.CleanDir
		}
		startYear := cleanStartYear
		if startYear == 0 {
			startYear = cfg.Fetch.StartYear
		}

		if err := etl.CleanWDIFile(cmd.Context(), in, outDir, cleanIndicators, startYear); err != nil {
			return eris.Wrap(err, "clean wdi")
		}
		zap.L().Info("cleaned wdi",
			zap.Strings("indicators", cleanIndicators),
			zap.String("out_dir", outDir),
		)
		return nil
	},
}

var cleanFloodCmd = &cobra.Command{
	Use:   "flood",
	Short: "Join flood exposure with population totals and add regional rows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in := cleanIn
		if in == "" {
			in = filepath.Join(cfg.Data.RawDir, "flood_exposure.csv")
		}
		totals := cleanTotalsPath
		if totals == "" {
			totals = filepath.Join(cfg.Data.RawDir, "population_totals.csv")
		}
		out := cleanOut
		if out == "" {
			out = filepath.Join(cfg.Data.CleanDir, "flood.csv")
		}

		if err := etl.CleanFloodFiles(in, totals, out, cleanExposureCol, cleanTotalsCol); err != nil {
			return eris.Wrap(err, "clean flood")
		}
		zap.L().Info("cleaned flood", zap.String("out", out))
		return nil
	},
}

func init() {
	cleanCmd.PersistentFlags().StringVar(&cleanIn, "in", "", "input file (default from config data dirs)")
	cleanCmd.PersistentFlags().StringVar(&cleanOut, "out", "", "output file or directory (default from config data dirs)")

	cleanWDICmd.Flags().StringSliceVar(&cleanIndicators, "indicators",
		[]string{"NY.GDP.MKTP.CD", "SP.POP.TOTL", "SP.URB.TOTL.IN.ZS"},
		"WDI indicator codes to extract")
	cleanWDICmd.Flags().IntVar(&cleanStartYear, "start-year", 0, "first year to keep (default from config)")

	cleanFloodCmd.Flags().StringVar(&cleanTotalsPath, "totals", "", "population totals CSV")
	cleanFloodCmd.Flags().StringVar(&cleanExposureCol, "exposure-col", "exposed_population", "exposure value column")
	cleanFloodCmd.Flags().StringVar(&cleanTotalsCol, "totals-col", "total_population", "totals value column")

	cleanCmd.AddCommand(cleanEmdatCmd, cleanWDICmd, cleanFloodCmd)
	rootCmd.AddCommand(cleanCmd)
}
