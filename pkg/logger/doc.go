// Package logger provides a structured logging interface for sitemapgen.
//
// It wraps zerolog and exposes a small Logger interface with:
//   - levelled logging (Debug, Info, Warn, Error)
//   - structured fields via WithField, WithFields and the *WithFields methods
//   - colored console or JSON output on stderr, optionally mirrored to a file
//   - a global logger for commands that do not thread one through
//
// Basic Usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//
//	logger.Info("generation started")
//	logger.WithField("category", "hindu").Info("category complete")
//
// Components take a Logger and derive a scoped child:
//
//	log := base.WithField("component", "batcher")
//	log.InfoWithFields("sitemap written", map[string]interface{}{
//	    "file": "sitemap-3.xml",
//	    "urls": 1000,
//	})
//
// Tests use NewTestLogger to capture and assert on messages, or
// NewNopLogger to discard them.
package logger
