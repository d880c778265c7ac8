// ABOUTME: Keep-alive HTTP server run beside the scheduler loop
// ABOUTME: Serves /ping, /healthz with store and budget state, and /metrics
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/metrics"
	"github.com/harper/dmagent/internal/ratelimit"
)

// Pinger reports store reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusReader reads the limiter snapshot
type StatusReader interface {
	Status(ctx context.Context) (ratelimit.Status, error)
}

// Health is the /healthz body
type Health struct {
	OK     bool              `json:"ok"`
	Store  string            `json:"store"`
	Budget *ratelimit.Status `json:"budget,omitempty"`
}

// NewRouter builds the handler tree
func NewRouter(store Pinger, limiter StatusReader, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Bot is alive!"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()

		h := Health{OK: true, Store: "ok"}
		code := http.StatusOK
		if err := store.Ping(ctx); err != nil {
			logger.Warn("health check: store unreachable", zap.Error(err))
			h.OK, h.Store = false, err.Error()
			code = http.StatusServiceUnavailable
		} else if s, err := limiter.Status(ctx); err == nil {
			h.Budget = &s
		}
		writeJSON(w, code, h)
	})

	r.Handle("/metrics", metrics.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server wraps http.Server with context-driven shutdown
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer listens on port once Serve is called
func NewServer(port int, h http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(port)),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Serve blocks until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()
	s.logger.Info("keep-alive server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
