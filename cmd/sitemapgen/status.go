package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"sitemapgen/pkg/checkpoint"
	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/metrics"
	"sitemapgen/pkg/names"
	"sitemapgen/pkg/sitemap"
	"sitemapgen/pkg/storage"
	"sitemapgen/pkg/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved progress and the generated files",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringP("output", "o", "", "output directory to inspect")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	categories := names.Categories()

	ui.PrintHighlight("Sitemap generation status")
	ui.PrintInfo("Output", cfg.Output.Directory)

	cp, err := checkpoint.NewManager(store, len(categories), log).Inspect()
	switch {
	case err != nil:
		ui.PrintWarning("Checkpoint unreadable, the next run starts over", err)
	case cp == nil:
		ui.PrintInfo("Checkpoint", "none")
	default:
		ui.PrintInfo("Progress", fmt.Sprintf("[%s] %d/%d categories",
			ui.Bar(cp.CategoryIndex, len(categories), 20), cp.CategoryIndex, len(categories)))
		ui.PrintInfo("Position", describePosition(cp.CategoryIndex, cp.Page))
		ui.PrintInfo("Next file", sitemap.FileName(cp.NextSequence))
		ui.PrintInfo("Pending URLs", strconv.Itoa(len(cp.Pending)))
		ui.PrintInfo("Updated", cp.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}

	files, err := sitemap.NewIndexBuilder(store, cfg.Site.BaseURL, metrics.New(), log).SitemapFiles()
	if err != nil {
		return err
	}
	ui.PrintInfo("Sitemap files", strconv.Itoa(len(files)))
	ui.PrintList(files)

	hasIndex, err := store.Exists(sitemap.IndexFileName)
	if err != nil {
		return err
	}
	ui.PrintInfo("Index", strconv.FormatBool(hasIndex))
	return nil
}

// describePosition renders a checkpoint position for humans
func describePosition(categoryIndex, page int) string {
	categories := names.Categories()
	if categoryIndex >= len(categories) {
		return "all categories complete"
	}
	return fmt.Sprintf("%s, page %d", categories[categoryIndex], page)
}
