package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dhcpdash/internal/config"
	"dhcpdash/internal/feed"
	"dhcpdash/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// ViewSource exposes the current state of both feeds
type ViewSource interface {
	DeviceView() feed.State[feed.DeviceTableView]
	PoolView() feed.State[feed.PoolView]
}

// Server represents the HTTP server. It serves the view state read-only;
// reservations are never proxied through it.
type Server struct {
	cfg      *config.Config
	views    ViewSource
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
	mux      *http.ServeMux
}

// NewServer creates a new web server. A nil gatherer disables /metrics.
func NewServer(cfg *config.Config, views ViewSource, gatherer prometheus.Gatherer) *Server {
	server := &Server{
		cfg:      cfg,
		views:    views,
		gatherer: gatherer,
		logger:   logger.WithComponent("web"),
		mux:      http.NewServeMux(),
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/devices", s.handleDevicesAPI)
	s.mux.HandleFunc("GET /api/pool", s.handlePoolAPI)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the routes wrapped in request logging
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Start serves on the configured listen address until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPListen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.cfg.HTTPListen).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("remote", r.RemoteAddr).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("Request")
	})
}
