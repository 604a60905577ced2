package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"sitemapgen/pkg/errors"
	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/metrics"
)

const serviceName = "sitemapgen"

// Options configures a Server
type Options struct {
	Host    string
	Port    int
	Dir     string
	Version string

	// ShutdownTimeout bounds the graceful shutdown after the context ends
	ShutdownTimeout time.Duration
}

// Server serves the generated sitemap files together with a health check
// and the metrics endpoint
type Server struct {
	opts    Options
	metrics *metrics.Metrics
	logger  logger.Logger
	started time.Time
	now     func() time.Time
	handler http.Handler
}

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

// New creates a server for the files in opts.Dir
func New(opts Options, m *metrics.Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	if m == nil {
		m = metrics.New().WithRuntimeCollectors()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		opts:    opts,
		metrics: m,
		logger:  log.WithField("component", "server"),
		now:     time.Now,
	}
	s.started = s.now()
	s.handler = s.routes()
	return s
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Handler returns the root handler with logging applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("GET /", http.FileServer(http.Dir(s.opts.Dir)))

	return s.requestLogging(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	status := HealthStatus{
		Status:    "healthy",
		Service:   serviceName,
		Version:   s.opts.Version,
		Timestamp: now.UTC(),
		Uptime:    now.Sub(s.started).Seconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.WithError(err).Warn("Failed to write health response")
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return errors.Wrap(errors.ErrorTypeNetwork, err, "failed to listen on "+s.Addr())
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.LogComponentStart(s.logger, "server", map[string]interface{}{
		"addr": ln.Addr().String(),
		"dir":  s.opts.Dir,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(errors.ErrorTypeNetwork, err, "server stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(errors.ErrorTypeNetwork, err, "graceful shutdown failed")
	}
	logger.LogComponentStop(s.logger, "server", "context done")
	return nil
}
