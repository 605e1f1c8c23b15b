package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader = "X-Request-Id"

	// shutdownTimeout is the time given for outstanding requests to finish
	// before shutdown.
	shutdownTimeout = 5 * time.Second
)

type (
	ServerConfig struct {
		EnableRequestLogging bool
	}

	Server struct {
		logger *logrus.Logger
		server *http.Server
	}
)

// NewServer builds the router for the save functions plus /healthz and
// /metrics.
func NewServer(logger *logrus.Logger, cfg ServerConfig, h *Handlers) *Server {
	r := mux.NewRouter()

	// Catch panics and return 500s
	r.Use(gorillaHandlers.RecoveryHandler(
		gorillaHandlers.RecoveryLogger(logger),
		gorillaHandlers.PrintRecoveryStack(true),
	))
	r.Use(requestID)

	if cfg.EnableRequestLogging {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				m := httpsnoop.CaptureMetrics(next, w, r)
				logger.WithFields(logrus.Fields{
					"duration_ms": m.Duration.Milliseconds(),
					"status":      m.Code,
					"bytes":       m.Written,
					"method":      r.Method,
					"path":        r.URL.Path,
					"request_id":  w.Header().Get(RequestIDHeader),
				}).Info("request")
			})
		})
	}

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	h.AddHandlers(r)

	return &Server{
		logger: logger,
		server: &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second},
	}
}

// Handler returns the root handler, for platforms that host an http.Handler
// directly.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves on ln until the server fails or ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context, ln net.Listener) error {
	errch := make(chan error, 1)
	go func() {
		errch <- s.server.Serve(ln)
	}()

	s.logger.WithField("address", ln.Addr().String()).Info("Started server")

	select {
	case err := <-errch:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Gracefully shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return s.server.Close()
		}
		return nil
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
