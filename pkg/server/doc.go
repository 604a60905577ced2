// Package server serves a generated sitemap directory over HTTP.
//
// Routes:
//
//	GET /health   JSON status with service name, version and uptime
//	GET /metrics  Prometheus metrics
//	GET /...      files from the output directory
//
// ListenAndServe blocks until its context is cancelled and then shuts the
// listener down gracefully.
package server
