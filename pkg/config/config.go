package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the sitemap generator
type Config struct {
	// Public site the generated URLs point to
	Site SiteConfig `yaml:"site" json:"site"`

	// Upstream names API
	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`

	// Retry policy for upstream fetches
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Output server
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig holds the public site settings
type SiteConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// UpstreamConfig holds the names API configuration
type UpstreamConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	CategoryParam     string        `yaml:"category_param" json:"category_param"`
	PageSize          int           `yaml:"page_size" json:"page_size"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds retry configuration for upstream fetches
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory      string `yaml:"directory" json:"directory"`
	URLsPerSitemap int    `yaml:"urls_per_sitemap" json:"urls_per_sitemap"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	// Textfile is a node-exporter textfile collector path; empty disables export
	Textfile string `yaml:"textfile" json:"textfile"`
}

// ServerConfig holds the output server configuration
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format is "console" for colored human output or "json" for log shippers
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL: "https://nameverse.vercel.app",
		},
		Upstream: UpstreamConfig{
			BaseURL:           "https://namverse-api.vercel.app/api/names",
			// the legacy names API keys categories as ?religion=
			CategoryParam:     "religion",
			PageSize:          100,
			Timeout:           15 * time.Second,
			UserAgent:         "sitemapgen/1.0",
			RequestsPerMinute: 0,
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			BaseDelay:    1 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0,
		},
		Output: OutputConfig{
			Directory:      "public",
			URLsPerSitemap: 1000,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   "",
		},
	}
}

// lookupEnv returns the first non-empty value among the given keys
func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// LoadFromEnv loads configuration from environment variables.
// SITE_URL and API_BASE are accepted for compatibility with existing deployments.
func (c *Config) LoadFromEnv() error {
	var errs []error

	if siteURL := lookupEnv("SITEMAPGEN_SITE_URL", "SITE_URL"); siteURL != "" {
		c.Site.BaseURL = siteURL
	}
	if apiBase := lookupEnv("SITEMAPGEN_API_BASE", "API_BASE"); apiBase != "" {
		c.Upstream.BaseURL = apiBase
	}
	if userAgent := os.Getenv("SITEMAPGEN_USER_AGENT"); userAgent != "" {
		c.Upstream.UserAgent = userAgent
	}
	if outputDir := os.Getenv("SITEMAPGEN_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}
	if textfile := os.Getenv("SITEMAPGEN_METRICS_TEXTFILE"); textfile != "" {
		c.Metrics.Textfile = textfile
	}
	if host := lookupEnv("SITEMAPGEN_HOST", "HOST"); host != "" {
		c.Server.Host = host
	}
	if logLevel := os.Getenv("SITEMAPGEN_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("SITEMAPGEN_LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}
	if logFile := os.Getenv("SITEMAPGEN_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	intVars := []struct {
		keys   []string
		target *int
	}{
		{[]string{"SITEMAPGEN_PAGE_SIZE"}, &c.Upstream.PageSize},
		{[]string{"SITEMAPGEN_REQUESTS_PER_MINUTE"}, &c.Upstream.RequestsPerMinute},
		{[]string{"SITEMAPGEN_MAX_ATTEMPTS"}, &c.Retry.MaxAttempts},
		{[]string{"SITEMAPGEN_URLS_PER_SITEMAP"}, &c.Output.URLsPerSitemap},
		{[]string{"SITEMAPGEN_PORT", "PORT"}, &c.Server.Port},
	}
	for _, v := range intVars {
		raw := lookupEnv(v.keys...)
		if raw == "" {
			continue
		}
		val, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", v.keys[0], raw))
			continue
		}
		*v.target = val
	}

	if timeout := os.Getenv("SITEMAPGEN_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("SITEMAPGEN_TIMEOUT: invalid duration %q", timeout))
		} else {
			c.Upstream.Timeout = d
		}
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".sitemapgen.yaml",
		".sitemapgen.yml",
		filepath.Join(home, ".config", "sitemapgen", "config.yaml"),
		filepath.Join(home, ".config", "sitemapgen", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if !strings.HasPrefix(c.Site.BaseURL, "http") {
		errs = append(errs, errors.New("site base URL must be a valid http(s) URL"))
	}
	if !strings.HasPrefix(c.Upstream.BaseURL, "http") {
		errs = append(errs, errors.New("upstream base URL must be a valid http(s) URL"))
	}
	if c.Upstream.CategoryParam == "" {
		errs = append(errs, errors.New("upstream category parameter is required"))
	}
	if c.Upstream.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream timeout must be positive"))
	}
	if c.Upstream.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, errors.New("jitter factor must be between 0 and 1"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.URLsPerSitemap <= 0 {
		errs = append(errs, errors.New("URLs per sitemap must be positive"))
	}
	if c.Output.URLsPerSitemap > 50000 {
		errs = append(errs, errors.New("URLs per sitemap cannot exceed the sitemap protocol limit of 50000"))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("port must be a valid port number (1-65535)"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, errors.New("log format must be console or json"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if siteURL, ok := flags["site-url"].(string); ok && siteURL != "" {
		c.Site.BaseURL = siteURL
	}
	if apiBase, ok := flags["api-base"].(string); ok && apiBase != "" {
		c.Upstream.BaseURL = apiBase
	}
	if perSitemap, ok := flags["urls-per-sitemap"].(int); ok && perSitemap > 0 {
		c.Output.URLsPerSitemap = perSitemap
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Upstream.PageSize = pageSize
	}
	if maxRetries, ok := flags["max-retries"].(int); ok && maxRetries > 0 {
		c.Retry.MaxAttempts = maxRetries
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm >= 0 {
		c.Upstream.RequestsPerMinute = rpm
	}
	if host, ok := flags["host"].(string); ok && host != "" {
		c.Server.Host = host
	}
	if port, ok := flags["port"].(int); ok && port > 0 {
		c.Server.Port = port
	}
	if textfile, ok := flags["metrics-textfile"].(string); ok && textfile != "" {
		c.Metrics.Textfile = textfile
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat, ok := flags["log-format"].(string); ok && logFormat != "" {
		c.Logging.Format = logFormat
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".sitemapgen.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
