// Package analysis serves the analyze, react and challenge endpoints.
package analysis

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"alphaseeker/pkg/api/response"
	"alphaseeker/pkg/core/pipeline"
	"alphaseeker/pkg/models"
)

// Service is the part of the orchestrator these endpoints drive.
type Service interface {
	Analyze(ctx context.Context, req pipeline.AnalyzeRequest) (*pipeline.Result, error)
	React(ctx context.Context, req pipeline.ReactRequest) (*pipeline.Result, error)
	Challenge(ctx context.Context, req pipeline.ChallengeRequest) (map[string]interface{}, error)
}

type AnalyzeResponse struct {
	Mode  models.Mode            `json:"mode"`
	Data  models.AnalysisContext `json:"data"`
	Entry models.HistoryEntry    `json:"entry"`
	Prior string                 `json:"prior_id,omitempty"`
}

// Handler holds dependencies for analysis endpoints
type Handler struct {
	svc Service
	log zerolog.Logger
}

// NewHandler creates a new analysis handler
func NewHandler(svc Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("component", "api.analysis").Logger()}
}

// Routes mounts the endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/analyze", h.HandleAnalyze)
	r.Post("/react", h.HandleReact)
	r.Post("/challenge", h.HandleChallenge)
}

func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req pipeline.AnalyzeRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	res, err := h.svc.Analyze(r.Context(), req)
	if err != nil {
		h.fail(w, "analyze", err)
		return
	}
	response.JSON(w, http.StatusOK, AnalyzeResponse{
		Mode:  res.Mode,
		Data:  res.Entry.Data,
		Entry: res.Entry,
		Prior: res.PriorID,
	})
}

// HandleReact returns the revised analysis. The entry is persisted like any other.
func (h *Handler) HandleReact(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ReactRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	res, err := h.svc.React(r.Context(), req)
	if err != nil {
		h.fail(w, "react", err)
		return
	}
	response.JSON(w, http.StatusOK, res.Entry.Data)
}

func (h *Handler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ChallengeRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	out, err := h.svc.Challenge(r.Context(), req)
	if err != nil {
		h.fail(w, "challenge", err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := response.Error(w, err)
	ev := h.log.Warn()
	if status >= http.StatusInternalServerError {
		ev = h.log.Error()
	}
	ev.Err(err).Str("op", op).Int("status", status).Msg("request failed")
}
