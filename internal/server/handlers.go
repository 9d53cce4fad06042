package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ColeMorton/trading-sub010/internal/models"
)

// submitRequest is the job submission payload
type submitRequest struct {
	Instruments    []string              `json:"instruments" validate:"required,min=1,dive,required"`
	Strategies     []models.StrategyGrid `json:"strategies" validate:"required,min=1"`
	MinTrades      int                   `json:"min_trades" validate:"gte=0"`
	WebhookURL     string                `json:"webhook_url" validate:"omitempty,url"`
	WebhookHeaders map[string]string     `json:"webhook_headers"`
}

// submitResponse points the caller at the job's status and stream
type submitResponse struct {
	JobID             uuid.UUID        `json:"job_id"`
	Status            models.JobStatus `json:"status"`
	StatusRef         string           `json:"status_ref"`
	ProgressStreamRef string           `json:"progress_stream_ref"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrTooManyStreams):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleCreateSession authenticates once via API key and sets the opaque
// session cookie browser clients use on the progress stream.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	token, err := s.sessions.Create()
	if err != nil {
		s.logger.WithError(err).Error("Session creation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"expires_in_seconds": int(s.sessions.TTL().Seconds()),
	})
}

// handleSubmit validates and registers a new sweep job, then dispatches the
// executor onto it.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	spec := models.GridSpec{
		Instruments: req.Instruments,
		Strategies:  req.Strategies,
		MinTrades:   req.MinTrades,
	}
	job, err := s.registry.Submit(spec, req.WebhookURL, req.WebhookHeaders)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	go func() {
		if err := s.runner.Run(s.baseCtx, job.ID); err != nil {
			s.logger.WithField("job_id", job.ID).WithError(err).Warn("Sweep job finished with error")
		}
	}()

	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:             job.ID,
		Status:            job.Status,
		StatusRef:         fmt.Sprintf("/api/v1/sweeps/%s", job.ID),
		ProgressStreamRef: fmt.Sprintf("/api/v1/sweeps/%s/stream", job.ID),
	})
}

// handleGetJob returns the full job record as of the moment of the call
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	job, err := s.registry.Get(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancel requests cooperative cancellation; idempotent
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.registry.RequestCancel(jobID); err != nil {
		writeDomainError(w, err)
		return
	}
	job, err := s.registry.Get(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// handleListRuns lists recent sweep runs, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	page, err := s.query.ListRuns(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetResults returns one page of a run's ranked results
func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	page, err := s.query.GetResults(r.Context(), runID,
		r.URL.Query().Get("instrument"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetBest returns the curated selection for a run
func (s *Server) handleGetBest(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	best, err := s.query.GetBest(r.Context(), runID, r.URL.Query().Get("instrument"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, best)
}

// handleGetBestPerInstrument returns one selection per instrument in the run
func (s *Server) handleGetBestPerInstrument(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	selections, err := s.query.GetBestPerInstrument(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": selections})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	var value int
	_, _ = fmt.Sscanf(r.URL.Query().Get(name), "%d", &value)
	return value
}
