// Package server exposes the analyses over HTTP, streams live points over a
// websocket and runs the periodic alert threshold check.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/huangsam/perfscope/core"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/live"
	"github.com/huangsam/perfscope/internal/logging"
	"github.com/huangsam/perfscope/schema"
)

// liveConnsPerClient caps concurrent websocket connections per client address.
const liveConnsPerClient = 4

// Server holds the HTTP API and its collaborators.
type Server struct {
	cfg     *contract.Config
	mgr     contract.StoreManager
	hub     *live.Hub
	buf     *live.Buffer
	metrics *Metrics
	limiter func(http.Handler) http.Handler
	gate    *LiveThrottle
	checker *Checker
	now     func() time.Time
}

// New wires a server over the store manager. The KV store backing rate limiting
// and live throttling comes from the manager and may be nil.
func New(cfg *contract.Config, mgr contract.StoreManager) *Server {
	s := &Server{
		cfg: cfg,
		mgr: mgr,
		hub: live.NewHub(),
		buf: live.NewBuffer(0, cfg.LiveGrace),
		now: time.Now,
	}
	s.metrics = NewMetrics(func() float64 { return float64(s.hub.ClientCount()) })
	kv := mgr.GetKVStore()
	s.limiter = RateLimit(kv, cfg.RateLimit, s.metrics)
	s.gate = NewLiveThrottle(kv, liveConnsPerClient)
	s.checker = NewChecker(mgr, s.metrics)
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limiter)

		for _, name := range core.AnalysisNames() {
			r.Get("/"+name, s.handleAnalysis(name))
		}
		r.Post("/ingest", s.handleIngest)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListInstances)
			r.Post("/check", s.handleCheck)
			r.Post("/{id}/ack", s.handleTransition(schema.AlertAcknowledged))
			r.Post("/{id}/resolve", s.handleTransition(schema.AlertResolved))

			r.Get("/configs", s.handleListConfigs)
			r.Post("/configs", s.handleCreateConfig)
			r.Delete("/configs/{id}", s.handleDeleteConfig)
		})

		r.Get("/runs", s.handleRuns)
		r.Get("/status", s.handleStatus)
		r.Get("/live/series", s.handleLiveSeries)
		r.Get("/live", live.Handler(s.hub, s.buf, s.gate))
	})
	return r
}

// httpService runs the HTTP listener as a supervised service.
type httpService struct {
	addr    string
	handler http.Handler
}

func (h *httpService) String() string {
	return "http"
}

// Serve listens until ctx is done, then shuts down gracefully.
func (h *httpService) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              h.addr,
		Handler:           h.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", h.addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Err(err).Msg("http shutdown failed")
		}
		return ctx.Err()
	}
}
