package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Output.URLsPerSitemap != 1000 {
		t.Errorf("Expected default URLs per sitemap to be 1000, got %d", config.Output.URLsPerSitemap)
	}

	if config.Upstream.PageSize != 100 {
		t.Errorf("Expected default page size to be 100, got %d", config.Upstream.PageSize)
	}

	if config.Upstream.Timeout != 15*time.Second {
		t.Errorf("Expected default timeout to be 15s, got %v", config.Upstream.Timeout)
	}

	if config.Retry.MaxAttempts != 5 {
		t.Errorf("Expected default max attempts to be 5, got %d", config.Retry.MaxAttempts)
	}

	if config.Output.Directory != "public" {
		t.Errorf("Expected default output directory to be public, got %s", config.Output.Directory)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SITEMAPGEN_SITE_URL", "https://example.test")
	t.Setenv("SITEMAPGEN_API_BASE", "https://api.example.test/names")
	t.Setenv("SITEMAPGEN_OUTPUT_DIR", "/tmp/sitemaps")
	t.Setenv("SITEMAPGEN_URLS_PER_SITEMAP", "250")
	t.Setenv("SITEMAPGEN_PAGE_SIZE", "50")
	t.Setenv("SITEMAPGEN_TIMEOUT", "5s")
	t.Setenv("SITEMAPGEN_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Site.BaseURL != "https://example.test" {
		t.Errorf("Expected site URL to be https://example.test, got %s", config.Site.BaseURL)
	}
	if config.Upstream.BaseURL != "https://api.example.test/names" {
		t.Errorf("Expected API base to be overridden, got %s", config.Upstream.BaseURL)
	}
	if config.Output.Directory != "/tmp/sitemaps" {
		t.Errorf("Expected output directory to be /tmp/sitemaps, got %s", config.Output.Directory)
	}
	if config.Output.URLsPerSitemap != 250 {
		t.Errorf("Expected URLs per sitemap to be 250, got %d", config.Output.URLsPerSitemap)
	}
	if config.Upstream.PageSize != 50 {
		t.Errorf("Expected page size to be 50, got %d", config.Upstream.PageSize)
	}
	if config.Upstream.Timeout != 5*time.Second {
		t.Errorf("Expected timeout to be 5s, got %v", config.Upstream.Timeout)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvLegacyNames(t *testing.T) {
	t.Setenv("SITEMAPGEN_SITE_URL", "")
	t.Setenv("SITE_URL", "https://legacy.example.test")
	t.Setenv("API_BASE", "https://legacy-api.example.test/api/names")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Site.BaseURL != "https://legacy.example.test" {
		t.Errorf("Expected legacy SITE_URL to be honored, got %s", config.Site.BaseURL)
	}
	if config.Upstream.BaseURL != "https://legacy-api.example.test/api/names" {
		t.Errorf("Expected legacy API_BASE to be honored, got %s", config.Upstream.BaseURL)
	}
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("SITEMAPGEN_URLS_PER_SITEMAP", "lots")
	t.Setenv("SITEMAPGEN_TIMEOUT", "soon")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error for invalid environment values")
	}
	if !strings.Contains(err.Error(), "SITEMAPGEN_URLS_PER_SITEMAP") {
		t.Errorf("Expected error to mention SITEMAPGEN_URLS_PER_SITEMAP, got %v", err)
	}
	if !strings.Contains(err.Error(), "SITEMAPGEN_TIMEOUT") {
		t.Errorf("Expected error to mention SITEMAPGEN_TIMEOUT, got %v", err)
	}
	if config.Output.URLsPerSitemap != 1000 {
		t.Errorf("Expected URLs per sitemap to keep its default, got %d", config.Output.URLsPerSitemap)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{
			name:      "valid config",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "site URL without scheme",
			mutate:    func(c *Config) { c.Site.BaseURL = "nameverse.vercel.app" },
			wantError: true,
		},
		{
			name:      "upstream URL without scheme",
			mutate:    func(c *Config) { c.Upstream.BaseURL = "ftp://names" },
			wantError: true,
		},
		{
			name:      "zero URLs per sitemap",
			mutate:    func(c *Config) { c.Output.URLsPerSitemap = 0 },
			wantError: true,
		},
		{
			name:      "URLs per sitemap over protocol limit",
			mutate:    func(c *Config) { c.Output.URLsPerSitemap = 50001 },
			wantError: true,
		},
		{
			name:      "zero max attempts",
			mutate:    func(c *Config) { c.Retry.MaxAttempts = 0 },
			wantError: true,
		},
		{
			name:      "jitter out of range",
			mutate:    func(c *Config) { c.Retry.JitterFactor = 1.5 },
			wantError: true,
		},
		{
			name:      "invalid port",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "invalid" },
			wantError: true,
		},
		{
			name:      "json log format",
			mutate:    func(c *Config) { c.Logging.Format = "json" },
			wantError: false,
		},
		{
			name:      "unknown log format",
			mutate:    func(c *Config) { c.Logging.Format = "xml" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	config := DefaultConfig()
	config.Site.BaseURL = ""
	config.Output.Directory = ""

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "site base URL") || !strings.Contains(err.Error(), "output directory") {
		t.Errorf("Expected both problems to be reported, got %v", err)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"output":           "/flag/output",
		"site-url":         "https://flag.example.test",
		"urls-per-sitemap": 2,
		"max-retries":      3,
		"log-level":        "error",
		"log-format":       "json",
	}

	config.MergeCommandLineFlags(flags)

	if config.Output.Directory != "/flag/output" {
		t.Errorf("Expected output directory to be /flag/output, got %s", config.Output.Directory)
	}
	if config.Site.BaseURL != "https://flag.example.test" {
		t.Errorf("Expected site URL to be https://flag.example.test, got %s", config.Site.BaseURL)
	}
	if config.Output.URLsPerSitemap != 2 {
		t.Errorf("Expected URLs per sitemap to be 2, got %d", config.Output.URLsPerSitemap)
	}
	if config.Retry.MaxAttempts != 3 {
		t.Errorf("Expected max attempts to be 3, got %d", config.Retry.MaxAttempts)
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
	if config.Logging.Format != "json" {
		t.Errorf("Expected log format to be json, got %s", config.Logging.Format)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	config := DefaultConfig()
	config.Site.BaseURL = "https://saved.example.test"
	config.Output.URLsPerSitemap = 500
	config.Retry.BaseDelay = 250 * time.Millisecond

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loadedConfig := DefaultConfig()
	if err := loadedConfig.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedConfig.Site.BaseURL != "https://saved.example.test" {
		t.Errorf("Expected loaded site URL to be https://saved.example.test, got %s", loadedConfig.Site.BaseURL)
	}
	if loadedConfig.Output.URLsPerSitemap != 500 {
		t.Errorf("Expected loaded URLs per sitemap to be 500, got %d", loadedConfig.Output.URLsPerSitemap)
	}
	if loadedConfig.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("Expected loaded base delay to be 250ms, got %v", loadedConfig.Retry.BaseDelay)
	}
}

func TestLoadFromFileDurationStrings(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
upstream:
  timeout: 30s
retry:
  base_delay: 500ms
  max_attempts: 7
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Upstream.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", config.Upstream.Timeout)
	}
	if config.Retry.BaseDelay != 500*time.Millisecond {
		t.Errorf("Expected base delay 500ms, got %v", config.Retry.BaseDelay)
	}
	if config.Retry.MaxAttempts != 7 {
		t.Errorf("Expected max attempts 7, got %d", config.Retry.MaxAttempts)
	}
	if config.Output.URLsPerSitemap != 1000 {
		t.Errorf("Expected untouched defaults to survive, got %d", config.Output.URLsPerSitemap)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	err := config.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("Expected error for explicit missing config file")
	}
}

func TestLoadPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
output:
  directory: from-file
  urls_per_sitemap: 10
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("SITEMAPGEN_OUTPUT_DIR", "from-env")

	config, err := Load(configPath, map[string]interface{}{"urls-per-sitemap": 20})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Output.Directory != "from-env" {
		t.Errorf("Expected environment to override file, got %s", config.Output.Directory)
	}
	if config.Output.URLsPerSitemap != 20 {
		t.Errorf("Expected flag to override file, got %d", config.Output.URLsPerSitemap)
	}
}
