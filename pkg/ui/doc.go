// Package ui prints human-facing terminal output for the sitemapgen commands.
//
// Structured logs go to stderr through the logger package. This package
// writes short colored status lines to stdout, styled with lipgloss, and a
// ProgressDisplay that follows a generation run page by page. Quiet mode
// keeps only errors.
package ui
