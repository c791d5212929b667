package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/voicebridge/internal/artifact"
	"github.com/antoniostano/voicebridge/internal/config"
	"github.com/antoniostano/voicebridge/internal/exchange"
	"github.com/antoniostano/voicebridge/internal/observability"
	"github.com/antoniostano/voicebridge/internal/session"
)

type Server struct {
	ctx        context.Context
	cfg        config.Config
	controller *session.Controller
	store      exchange.Store
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
	static     http.Handler
	index      *template.Template
}

// New builds the HTTP surface. ctx bounds pipelines started from UI commands;
// it should be the process lifetime context, not a request context.
func New(ctx context.Context, cfg config.Config, controller *session.Controller, store exchange.Store, metrics *observability.Metrics) *Server {
	return &Server{
		ctx:        ctx,
		cfg:        cfg,
		controller: controller,
		store:      store,
		metrics:    metrics,
		static:     newStaticHandler(),
		index:      indexTemplate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers may only drive the UI socket from the same origin.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// The device and other non-browser clients omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(observability.TraceMiddleware)

	r.Get("/", s.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", s.static))
	r.Handle(artifact.RecordingsURLPrefix+"*", artifactFiles(artifact.RecordingsURLPrefix, s.cfg.RecordingsDir))
	r.Handle(artifact.ResponsesURLPrefix+"*", artifactFiles(artifact.ResponsesURLPrefix, s.cfg.ResponsesDir))

	r.Get("/ws", s.handleDeviceWS)
	r.Get("/ws-ui", s.handleUIWS)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/exchange", s.handleExchange)
	r.Get("/v1/session", s.handleSession)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"exchange_store":   s.storeMode(),
		"device_connected": s.controller.Device().Connected(),
		"ui_connected":     s.controller.UI().Connected(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if _, err := s.store.Last(r.Context()); err != nil && !errors.Is(err, exchange.ErrNotFound) {
			respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"exchange_store": s.storeMode(),
	})
}

func (s *Server) handleExchange(w http.ResponseWriter, _ *http.Request) {
	ex := s.controller.Current()
	if ex.IsZero() {
		respondError(w, http.StatusNotFound, "no_exchange", exchange.ErrNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, ex)
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotStages())
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, indexData(s.controller.Current())); err != nil {
		log.Printf("httpapi: render index: %v", err)
	}
}

func (s *Server) storeMode() string {
	if s.store == nil {
		return "none"
	}
	return s.store.Mode()
}

// artifactFiles serves files from dir read-only, without directory listings.
func artifactFiles(prefix, dir string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || strings.HasSuffix(r.URL.Path, ".part") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
