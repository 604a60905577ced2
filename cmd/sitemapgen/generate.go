package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"sitemapgen/pkg/checkpoint"
	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/names"
	"sitemapgen/pkg/pipeline"
	"sitemapgen/pkg/ui"
)

var forceRestart bool

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch every name and write the sitemap files and index",
	Long: `Fetch every category from the names API, write the name pages into
numbered sitemap files and rebuild sitemap-index.xml.

If sitemap-progress.json exists in the output directory the run resumes from
it. Interrupt with Ctrl-C at any time; progress is kept.`,
	Example: `  # Generate into ./public with the default settings
  sitemapgen generate

  # Point at a staging API and write smaller files
  sitemapgen generate --api-base https://staging.example/api/names --urls-per-sitemap 500

  # Throw away previous output and start over
  sitemapgen generate --force-restart`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("output", "o", "", "output directory for sitemap files")
	generateCmd.Flags().String("site-url", "", "public site base URL used in generated links")
	generateCmd.Flags().String("api-base", "", "names API endpoint")
	generateCmd.Flags().Int("urls-per-sitemap", 0, "maximum URLs per sitemap file")
	generateCmd.Flags().Int("page-size", 0, "names requested per API page")
	generateCmd.Flags().Int("max-retries", 0, "maximum attempts per API page")
	generateCmd.Flags().Int("requests-per-minute", 0, "upstream request rate limit (0 disables)")
	generateCmd.Flags().String("metrics-textfile", "", "write run metrics to this node_exporter textfile")
	generateCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "delete previous output and checkpoint before running")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	log.WithField("version", version).Info("sitemapgen starting")

	ui.PrintBanner()
	ui.PrintInfo("Output", cfg.Output.Directory)
	ui.PrintInfo("Site", cfg.Site.BaseURL)
	ui.PrintInfo("API", cfg.Upstream.BaseURL)
	ui.PrintInfo("URLs per sitemap", strconv.Itoa(cfg.Output.URLsPerSitemap))

	progress := ui.NewProgressDisplay()
	p, err := pipeline.New(cfg, log, progress)
	if err != nil {
		return err
	}

	if forceRestart {
		if err := p.ForceRestart(); err != nil {
			return err
		}
		ui.PrintWarning("Previous output removed, starting from scratch")
	} else if cp := resumePoint(p.Checkpoints()); cp != nil {
		ui.PrintHighlight("Resuming from checkpoint")
		ui.PrintInfo("Position", describePosition(cp.CategoryIndex, cp.Page))
		ui.PrintInfo("Next file", strconv.Itoa(cp.NextSequence))
	}

	summary, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			ui.PrintWarning("Interrupted, progress saved", cfg.Output.Directory)
		}
		return err
	}

	progress.Complete(summary.IndexEntries)
	if len(summary.FailedCategories) > 0 {
		failed := make([]string, 0, len(summary.FailedCategories))
		for _, c := range summary.FailedCategories {
			failed = append(failed, c.String())
		}
		ui.PrintWarning("Some categories were cut short after repeated fetch failures")
		ui.PrintList(failed)
	}
	ui.PrintSuccess("Sitemaps generated")
	return nil
}

// resumePoint returns the checkpoint a run will continue from, or nil when
// the run starts over. It reads silently; Run reports unusable checkpoints.
func resumePoint(m *checkpoint.Manager) *checkpoint.Checkpoint {
	cp, err := m.Inspect()
	if err != nil || cp == nil {
		return nil
	}
	if cp.Validate(len(names.Categories())) != nil {
		return nil
	}
	return cp
}
