package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/metrics"
	"sitemapgen/pkg/server"
	"sitemapgen/pkg/ui"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the output directory over HTTP",
	Long: `Serve the generated sitemap files over HTTP, with GET /health for
liveness checks and GET /metrics for Prometheus.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("output", "o", "", "directory to serve")
	serveCmd.Flags().String("host", "", "listen host")
	serveCmd.Flags().Int("port", 0, "listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Dir:     cfg.Output.Directory,
		Version: version,
	}, metrics.New().WithRuntimeCollectors(), logger.GetLogger())

	ui.PrintInfo("Serving", cfg.Output.Directory)
	ui.PrintInfo("Listening", "http://"+srv.Addr())
	return srv.ListenAndServe(ctx)
}
