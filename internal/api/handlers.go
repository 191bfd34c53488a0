package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/renewly/internal/client"
	"github.com/foxzi/renewly/internal/intake"
	"github.com/foxzi/renewly/internal/pipeline"
)

// genericRejection is what token failures look like to the outside;
// the specific reason only reaches logs and development responses.
const genericRejection = "This link is invalid or has expired."

// SubmitRequest is the request body for POST /response/{token}
type SubmitRequest struct {
	Response string `json:"response"`
}

// SubmitResponse is the success response for POST /response/{token}
type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RunResponse is the response for POST /admin/run
type RunResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
	Clients     int    `json:"clients"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{
		"message": "Renewly - Subscription Renewal Reminder Service",
		"status":  "running",
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		s.logger.Error("failed to count clients", "error", err)
		s.sendJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:      "degraded",
			Environment: s.cfg.Server.Environment,
			Uptime:      time.Since(s.startTime).String(),
		})
		return
	}

	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Environment: s.cfg.Server.Environment,
		Uptime:      time.Since(s.startTime).String(),
		Clients:     count,
	})
}

// handleResponseForm handles GET /response/{token}
func (s *Server) handleResponseForm(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")

	rec, err := s.intake.Resolve(r.Context(), tok)
	if err != nil {
		var rejected *intake.RejectedError
		if errors.As(err, &rejected) {
			s.renderErrorPage(w, http.StatusBadRequest)
			return
		}
		s.logger.Error("failed to resolve token", "error", err)
		s.renderErrorPage(w, http.StatusInternalServerError)
		return
	}

	s.renderFormPage(w, rec)
}

// handleResponseSubmit handles POST /response/{token}
func (s *Server) handleResponseSubmit(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")

	response, ok := s.parseResponseValue(r)
	if !ok {
		s.sendError(w, http.StatusBadRequest, "response must be Interested or Not Interested")
		return
	}

	if err := s.intake.Submit(r.Context(), tok, response); err != nil {
		var rejected *intake.RejectedError
		if errors.As(err, &rejected) {
			s.sendError(w, http.StatusBadRequest, s.rejectionMessage(rejected))
			return
		}
		s.logger.Error("failed to submit response", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to submit response. Please try again.")
		return
	}

	s.sendJSON(w, http.StatusOK, SubmitResponse{
		Success: true,
		Message: "Thank you for your response!",
	})
}

// handleRun handles POST /admin/run. The pipeline runs in the
// background; the trigger returns immediately.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.pipeline.AllowsOverlap() && s.pipeline.Running() {
		s.sendError(w, http.StatusConflict, "a run is already in progress")
		return
	}

	go func() {
		if _, err := s.pipeline.TryRun(context.Background()); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				s.logger.Warn("manual trigger skipped, run already in progress")
				return
			}
			s.logger.Error("manual run failed", "error", err)
		}
	}()

	s.sendJSON(w, http.StatusAccepted, RunResponse{
		Success: true,
		Message: "Reminder run triggered; processing in the background.",
	})
}

// handleStats handles GET /admin/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.pipeline.LastRun()
	if stats == nil {
		s.sendError(w, http.StatusNotFound, "no runs have completed yet")
		return
	}
	s.sendJSON(w, http.StatusOK, stats)
}

// parseResponseValue reads the submitted response from a JSON body or
// form data and checks it against the allowed choices.
func (s *Server) parseResponseValue(r *http.Request) (string, bool) {
	var response string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", false
		}
		response = req.Response
	} else {
		if err := r.ParseForm(); err != nil {
			return "", false
		}
		response = r.PostFormValue("response")
	}

	if !client.IsValidResponse(response) {
		return "", false
	}
	return response, true
}

// rejectionMessage maps a token rejection to a user-facing message:
// detailed in development, generic in production.
func (s *Server) rejectionMessage(err *intake.RejectedError) string {
	if s.cfg.IsProduction() {
		return genericRejection
	}
	return err.Error()
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
