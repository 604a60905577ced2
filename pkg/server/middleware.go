package server

import (
	"net/http"
	"time"

	"sitemapgen/pkg/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{w, http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLogging logs every request and counts it by method and status
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newStatusRecorder(w)
		next.ServeHTTP(rw, r)

		s.metrics.ObserveHTTPRequest(r.Method, rw.statusCode)
		logger.LogRequest(s.logger, r.Method, r.URL.Path, rw.statusCode, float64(time.Since(start).Microseconds())/1000)
	})
}
