package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Peleke/colloquium/internal/domain"
	"github.com/Peleke/colloquium/internal/session"
	"github.com/Peleke/colloquium/internal/version"
)

// exportTimeout bounds the database write for a session export.
const exportTimeout = 10 * time.Second

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWS)

	mux.HandleFunc("GET /api/sources", s.handleListSources)
	mux.HandleFunc("POST /api/sessions", s.handleStartSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/turns", s.handleSubmitTurn)
	mux.HandleFunc("POST /api/sessions/{id}/end", s.handleEndSession)
	mux.HandleFunc("POST /api/sessions/{id}/export", s.handleExportSession)

	mux.HandleFunc("/", handleNotFound)
}

// errorShape is the error body for every non-2xx API response.
type errorShape struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type errorResponse struct {
	Error errorShape `json:"error"`
}

// statusFor maps engine errors onto HTTP statuses and stable codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, domain.ErrInvalidSelection):
		return http.StatusBadRequest, "invalid_selection"
	case errors.Is(err, domain.ErrEmptyTurn):
		return http.StatusBadRequest, "empty_turn"
	case errors.Is(err, domain.ErrSourceNotFound):
		return http.StatusNotFound, "source_not_found"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusConflict, "session_closed"
	case errors.Is(err, domain.ErrTurnInFlight):
		return http.StatusConflict, "turn_in_flight"
	case errors.Is(err, domain.ErrUpstreamFailure):
		return http.StatusBadGateway, "upstream_failure"
	case errors.Is(err, domain.ErrReviewSynthesisFailed):
		return http.StatusBadGateway, "review_synthesis_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("internal error")
	}
	retryable := domain.IsRetryable(err) || status == http.StatusGatewayTimeout
	writeJSON(w, status, errorResponse{Error: errorShape{
		Code:      code,
		Message:   err.Error(),
		Retryable: retryable,
	}})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorShape{
		Code:    "bad_request",
		Message: msg,
	}})
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Subscribers int    `json:"subscribers"`
	UptimeMS    int64  `json:"uptimeMs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Version:     version.Version,
		Subscribers: s.feed.Count(),
		UptimeMS:    time.Since(s.startedAt).Milliseconds(),
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: errorShape{
		Code:    "not_found",
		Message: "no such route: " + r.URL.Path,
	}})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	materials, err := s.sources.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": materials})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req session.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	result, err := s.sessions.Start(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Snapshot(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type submitTurnRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req submitTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	result, err := s.sessions.SubmitTurn(r.Context(), r.PathValue("id"), req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	review, err := s.sessions.EndSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"review": review})
}

func (s *Server) handleExportSession(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: errorShape{
			Code:    "export_disabled",
			Message: "no database configured",
		}})
		return
	}

	snap, err := s.sessions.Snapshot(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()
	if err := s.exports.Save(ctx, snap); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": snap.ID,
		"turns":     len(snap.Turns),
		"exported":  true,
	})
}
