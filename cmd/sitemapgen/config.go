package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"sitemapgen/pkg/config"
	"sitemapgen/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage sitemapgen configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (SITEMAPGEN_*, plus SITE_URL, API_BASE, HOST and PORT)
  - .env file
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the default values",
	Long: `Create a configuration file holding every option at its default value.

The file is written to sitemapgen.yaml in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "sitemapgen.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	ui.Println("\nNext steps:")
	ui.Println("1. Set site.base_url and upstream.base_url")
	ui.Println("2. Run 'sitemapgen config validate --config " + configPath + "'")
	ui.Println("3. Generate with 'sitemapgen generate --config " + configPath + "'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	ui.Println()
	ui.Println(string(data))

	source := "(none found)"
	if configFile != "" {
		source = configFile
	}
	ui.PrintInfo("Configuration file", source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Upstream.RequestsPerMinute == 0 {
		warnings = append(warnings, "no upstream rate limit configured")
	}
	if cfg.Output.URLsPerSitemap > 10000 {
		warnings = append(warnings, "large sitemap files are slow for crawlers to fetch")
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		ui.PrintList(warnings)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.Println("\nConfiguration summary:")
	ui.PrintInfo("  Site", cfg.Site.BaseURL)
	ui.PrintInfo("  API", cfg.Upstream.BaseURL)
	ui.PrintInfo("  Output directory", cfg.Output.Directory)
	ui.PrintInfo("  URLs per sitemap", strconv.Itoa(cfg.Output.URLsPerSitemap))
	ui.PrintInfo("  Max attempts", strconv.Itoa(cfg.Retry.MaxAttempts))
	ui.PrintInfo("  Log level", cfg.Logging.Level)
	return nil
}
