// Package http serves the operational endpoints of the bot and the mirror
// worker: liveness, readiness against the transaction store, and metrics.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "paybot/internal/log"
	"paybot/internal/middleware/ratelimit"
	"paybot/internal/middleware/security"
	"paybot/internal/middleware/trace"
	"paybot/internal/store"
)

const readyTimeout = 3 * time.Second

// Server is an http.Server with the ops routes mounted.
type Server struct {
	http.Server
	pinger      store.Pinger
	logger      *applog.Logger
	rateLimiter *ratelimit.Limiter

	stopLimiter  context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer mounts the routes. pinger may be nil, in which case /readyz
// always reports ready.
func NewServer(addr string, pinger store.Pinger, logger *applog.Logger) *Server {
	logger = logger.WithComponent(applog.ComponentHTTP)
	resolver, _ := security.NewResolver()

	s := &Server{
		pinger:      pinger,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	var h http.Handler = mux
	h = s.rejectProbes(h)
	h = s.rateLimiter.Middleware(resolver.ClientIP, nil)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = applog.Middleware(logger)(h)
	h = trace.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopLimiter = cancel
	go s.rateLimiter.Run(ctx)

	return s
}

// Shutdown stops the limiter sweeper and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopLimiter()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) rejectProbes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if security.IsProbe(r) {
			s.logger.WarnContext(r.Context(), "Rejected suspicious request",
				"method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte("paybot is running"))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
