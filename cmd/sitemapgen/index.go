package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/metrics"
	"sitemapgen/pkg/sitemap"
	"sitemapgen/pkg/storage"
	"sitemapgen/pkg/ui"
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild sitemap-index.xml from the files in the output directory",
	Long: `Rebuild sitemap-index.xml from the sitemap files already present in the
output directory, without contacting the names API.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringP("output", "o", "", "output directory holding the sitemap files")
	indexCmd.Flags().String("site-url", "", "public site base URL used in the index")
	indexCmd.Flags().String("metrics-textfile", "", "write index metrics to this node_exporter textfile")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return err
	}

	m := metrics.New()
	builder := sitemap.NewIndexBuilder(store, cfg.Site.BaseURL, m, logger.GetLogger())
	result, err := builder.Regenerate(cmd.Context())
	if err != nil {
		return err
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	ui.PrintSuccess("Index written: " + result.File)
	ui.PrintInfo("Entries", strconv.Itoa(len(result.Entries)))
	return nil
}
