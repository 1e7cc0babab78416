package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ButyrinIA/postadmin/internal/config"
	"github.com/ButyrinIA/postadmin/internal/gateway"
	"github.com/ButyrinIA/postadmin/internal/logger"
	"github.com/ButyrinIA/postadmin/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg      *config.Config
	gw       gateway.Gateway
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	handler  http.Handler
	http     *http.Server
	log      *logger.Entry
}

// New wires the REST API, the websocket session endpoint, /metrics and
// /health around gw. A nil gatherer serves the default registry.
func New(cfg *config.Config, gw gateway.Gateway, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:      cfg,
		gw:       gw,
		metrics:  m,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.Log.WithField("component", "server"),
	}
	s.handler = s.routes()
	s.http = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/posts", func(r chi.Router) {
		r.Get("/", s.listPosts)
		r.Post("/", s.createPost)
		r.Post("/batch-status", s.batchUpdateStatus)
		r.Get("/{id}", s.getPost)
		r.Put("/{id}", s.updatePost)
		r.Delete("/{id}", s.deletePost)
	})

	r.Get("/ws/posts", s.serveSession)

	return r
}

func (s *Server) Handler() http.Handler { return s.handler }

// Run blocks serving HTTP until Shutdown.
func (s *Server) Run() error {
	s.log.WithField("addr", s.http.Addr).Info("Запуск сервера")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("write response failed")
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, gateway.ErrInvalidArgument):
		code = http.StatusBadRequest
	case errors.Is(err, gateway.ErrNotFound):
		code = http.StatusNotFound
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
