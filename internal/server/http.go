package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zeusync/behave/internal/core/observability/log"
	"github.com/zeusync/behave/internal/host"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	if s.config.Token != "" {
		r.Use(tokenAuth(s.config.Token))
	}

	r.Get("/trees", s.listTrees)
	r.Get("/agents", s.listAgents)
	r.Get("/agents/{id}", s.getAgent)
	r.Post("/agents/{id}/events/{name}", s.fireEvent)
	r.Get("/ws", s.stream.handle)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

type eventRequest struct {
	Payload any `json:"payload"`
}

type eventResponse struct {
	ID    string `json:"id"`
	Agent string `json:"agent"`
	Event string `json:"event"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) listTrees(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.host.Workspace().Trees())
}

func (s *Server) listAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.host.Agents())
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	info, err := s.host.Agent(chi.URLParam(r, "id"))
	if err != nil {
		s.hostError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// fireEvent queues an event; the optional JSON body {"payload": ...} becomes
// the event payload.
func (s *Server) fireEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	agent, name := chi.URLParam(r, "id"), chi.URLParam(r, "name")
	id, err := s.host.FireEvent(agent, name, req.Payload)
	if err != nil {
		s.hostError(w, err)
		return
	}
	s.logger.Debug("event queued", log.Agent(agent), log.String("event", name), log.String("event_id", id))
	writeJSON(w, http.StatusAccepted, eventResponse{ID: id, Agent: agent, Event: name})
}

func (s *Server) hostError(w http.ResponseWriter, err error) {
	if errors.Is(err, host.ErrAgentNotBound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.logger.Error("request failed", log.Error(err))
	writeError(w, http.StatusInternalServerError, err)
}
