package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"framecut/internal/calibration"
	"framecut/internal/logging"
	"framecut/internal/matte"
	"framecut/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second

// maxDimension caps the width and height accepted by preview endpoints.
const maxDimension = 8192

// Server serves the calibration preview API.
type Server struct {
	calibration calibration.Set
	threshold   matte.Threshold
	fingerprint string
	started     time.Time
	router      *mux.Router
}

// New creates a server for an already validated calibration set.
func New(set calibration.Set, threshold matte.Threshold) *Server {
	s := &Server{
		calibration: set,
		threshold:   threshold,
		fingerprint: set.Fingerprint(),
		started:     time.Now(),
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	r.HandleFunc("/health", s.HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/calibration", s.GetCalibration).Methods(http.MethodGet)
	api.HandleFunc("/region/{mode}/{orientation}", s.GetRegion).Methods(http.MethodGet)
	api.HandleFunc("/mask/{orientation}.png", s.GetMask).Methods(http.MethodGet)

	return r
}

// Router exposes the routes, for route logging.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return middleware.Logger(middleware.DefaultLoggingConfig())(s.router)
}

// Serve listens on l until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}
