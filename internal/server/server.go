package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"threatwatch/internal/behavior"
	"threatwatch/internal/common"
	"threatwatch/internal/feed"
	"threatwatch/internal/hunting"
	"threatwatch/internal/indicator"
	"threatwatch/internal/response"
)

// Server exposes the engine's operation surface over HTTP.
type Server struct {
	feeds        *feed.Registry
	matcher      *indicator.Matcher
	engine       *behavior.Engine
	events       *behavior.EventLog
	hunter       *hunting.Executor
	investigator *hunting.Investigator
	responder    *response.Engine
	router       *mux.Router
}

func New(
	feeds *feed.Registry,
	matcher *indicator.Matcher,
	engine *behavior.Engine,
	events *behavior.EventLog,
	hunter *hunting.Executor,
	investigator *hunting.Investigator,
	responder *response.Engine,
) *Server {
	s := &Server{
		feeds:        feeds,
		matcher:      matcher,
		engine:       engine,
		events:       events,
		hunter:       hunter,
		investigator: investigator,
		responder:    responder,
		router:       mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/v1/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/v1/feeds", s.handleRegisterFeed).Methods(http.MethodPost)
	r.HandleFunc("/v1/feeds", s.handleListFeeds).Methods(http.MethodGet)
	r.HandleFunc("/v1/feeds/sync", s.handleSyncFeeds).Methods(http.MethodPost)

	r.HandleFunc("/v1/indicators/query", s.handleQueryIndicators).Methods(http.MethodPost)

	r.HandleFunc("/v1/events", s.handleIngestEvents).Methods(http.MethodPost)
	r.HandleFunc("/v1/behavior/analyze", s.handleAnalyzeBehavior).Methods(http.MethodPost)
	r.HandleFunc("/v1/anomalies/detect", s.handleDetectAnomalies).Methods(http.MethodPost)

	r.HandleFunc("/v1/hunts", s.handleHunt).Methods(http.MethodPost)
	r.HandleFunc("/v1/hunts/{id}", s.handleHuntResult).Methods(http.MethodGet)
	r.HandleFunc("/v1/threats/{id}/investigate", s.handleInvestigate).Methods(http.MethodPost)

	r.HandleFunc("/v1/responses", s.handleOrchestrate).Methods(http.MethodPost)
	r.HandleFunc("/v1/playbooks", s.handleListPlaybooks).Methods(http.MethodGet)
	r.HandleFunc("/v1/playbooks/{id}/execute", s.handleExecutePlaybook).Methods(http.MethodPost)
}

func (s *Server) Router() http.Handler { return s.router }

// StartMetrics serves the Prometheus endpoint on its own listener.
func (s *Server) StartMetrics(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		ve *common.ValidationError
		nf *common.NotFoundError
		ce *common.ConnectivityError
	)
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &ce):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, common.NewValidationError("invalid request body: %v", err))
		return false
	}
	return true
}
