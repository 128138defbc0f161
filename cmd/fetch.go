package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/afrimetrics/atlas-cli/internal/fetcher"
)

var (
	fetchOnly     []string
	fetchManifest string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download raw sources listed in the manifest",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		manifestPath := fetchManifest
		if manifestPath == "" {
			manifestPath = cfg.Fetch.Manifest
		}
		m, err := fetcher.LoadManifest(manifestPath)
		if err != nil {
			return err
		}

		timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
		httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout:    timeout,
			MaxRetries: cfg.Fetch.Retries,
		})
		dl := &fetcher.Downloader{
			HTTP:   httpFetcher,
			FTP:    fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
			WB:     fetcher.NewWorldBankClient(httpFetcher, fetcher.WorldBankBaseURL),
			RawDir: cfg.Data.RawDir,
		}

		sources := m.Sources
		if len(fetchOnly) > 0 {
			sources = sources[:0:0]
			for _, name := range fetchOnly {
				src, err := m.Find(name)
				if err != nil {
					return err
				}
				sources = append(sources, src)
			}
		}

		for _, src := range sources {
			zap.L().Info("fetching source", zap.String("source", src.Name))
			if err := dl.Fetch(cmd.Context(), src); err != nil {
				return eris.Wrapf(err, "fetch %s", src.Name)
			}
		}
		zap.L().Info("fetch complete", zap.Int("sources", len(sources)))
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchOnly, "only", nil, "fetch only the named sources")
	fetchCmd.Flags().StringVar(&fetchManifest, "manifest", "", "manifest path (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
