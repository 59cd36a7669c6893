package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"threatwatch/internal/behavior"
	"threatwatch/internal/common"
	"threatwatch/internal/feed"
	"threatwatch/internal/hunting"
	"threatwatch/internal/indicator"
	"threatwatch/internal/response"
)

func (s *Server) handleRegisterFeed(w http.ResponseWriter, r *http.Request) {
	var cfg feed.Config
	if !decodeBody(w, r, &cfg) {
		return
	}
	id, err := s.feeds.Register(r.Context(), cfg)
	if err != nil {
		// A connectivity failure still registered the feed (disabled);
		// report both the id and the condition.
		var ce *common.ConnectivityError
		if id != "" && errors.As(err, &ce) {
			writeJSON(w, http.StatusAccepted, map[string]string{
				"feed_id": id,
				"warning": err.Error(),
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"feed_id": id})
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feeds.List())
}

func (s *Server) handleSyncFeeds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feeds.SyncAll(r.Context()))
}

func (s *Server) handleQueryIndicators(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Indicators []indicator.Lookup `json:"indicators"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.matcher.Query(r.Context(), req.Indicators)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleIngestEvents(w http.ResponseWriter, r *http.Request) {
	var events []behavior.SecurityEvent
	if !decodeBody(w, r, &events) {
		return
	}
	s.events.Append(events...)
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(events)})
}

func (s *Server) handleAnalyzeBehavior(w http.ResponseWriter, r *http.Request) {
	var events []behavior.SecurityEvent
	if !decodeBody(w, r, &events) {
		return
	}
	if len(events) == 0 {
		events = s.events.All()
	} else {
		s.events.Append(events...)
	}
	writeJSON(w, http.StatusOK, s.engine.AnalyzeBehavior(events))
}

func (s *Server) handleDetectAnomalies(w http.ResponseWriter, r *http.Request) {
	var m behavior.SecurityMetrics
	if !decodeBody(w, r, &m) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.DetectAnomalies(m))
}

func (s *Server) handleHunt(w http.ResponseWriter, r *http.Request) {
	var q hunting.Query
	if !decodeBody(w, r, &q) {
		return
	}
	writeJSON(w, http.StatusOK, s.hunter.Hunt(r.Context(), q))
}

func (s *Server) handleHuntResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.hunter.Result(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleInvestigate(w http.ResponseWriter, r *http.Request) {
	res, err := s.investigator.Investigate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var threat response.ThreatEvent
	if !decodeBody(w, r, &threat) {
		return
	}
	if threat.Type == "" {
		writeError(w, common.NewValidationError("threat type is required"))
		return
	}
	res, err := s.responder.OrchestrateResponse(r.Context(), threat)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListPlaybooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.responder.Playbooks())
}

func (s *Server) handleExecutePlaybook(w http.ResponseWriter, r *http.Request) {
	var ec response.ExecContext
	if !decodeBody(w, r, &ec) {
		return
	}
	exec, err := s.responder.ExecutePlaybook(r.Context(), mux.Vars(r)["id"], ec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}
