// Package history serves read access to analysis history and the save/import endpoint.
package history

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"alphaseeker/pkg/api/response"
	"alphaseeker/pkg/core/pipeline"
	"alphaseeker/pkg/models"
)

type Service interface {
	History(ctx context.Context, ticker string) ([]models.HistoryEntry, error)
	Latest(ctx context.Context, ticker string) (*models.HistoryEntry, error)
	Tickers(ctx context.Context) ([]string, error)
	Import(ctx context.Context, req pipeline.ImportRequest) (*pipeline.Result, error)
}

type SaveResponse struct {
	Status string              `json:"status"`
	Entry  models.HistoryEntry `json:"entry"`
}

type Handler struct {
	svc Service
	log zerolog.Logger
}

func NewHandler(svc Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("component", "api.history").Logger()}
}

// Routes mounts the endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/latest", h.HandleLatest)
		r.Get("/tickers", h.HandleTickers)
	})
	r.Post("/save", h.HandleSave)
}

// HandleList returns entries in ascending timestamp order, optionally for one ticker.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ticker := models.NormalizeTicker(r.URL.Query().Get("ticker"))
	entries, err := h.svc.History(r.Context(), ticker)
	if err != nil {
		h.fail(w, "history", err)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	response.JSON(w, http.StatusOK, entries)
}

func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	ticker := models.NormalizeTicker(r.URL.Query().Get("ticker"))
	if ticker == "" {
		response.BadRequest(w, fmt.Errorf("ticker query parameter is required"))
		return
	}
	entry, err := h.svc.Latest(r.Context(), ticker)
	if err != nil {
		h.fail(w, "latest", err)
		return
	}
	response.JSON(w, http.StatusOK, entry)
}

func (h *Handler) HandleTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.svc.Tickers(r.Context())
	if err != nil {
		h.fail(w, "tickers", err)
		return
	}
	if tickers == nil {
		tickers = []string{}
	}
	response.JSON(w, http.StatusOK, tickers)
}

// HandleSave imports an externally produced analysis after validating it.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ImportRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	if len(req.Data) == 0 {
		response.BadRequest(w, fmt.Errorf("data is required"))
		return
	}

	res, err := h.svc.Import(r.Context(), req)
	if err != nil {
		h.fail(w, "save", err)
		return
	}
	h.log.Info().Str("ticker", res.Entry.Ticker).Str("id", res.Entry.ID).Msg("analysis saved")
	response.JSON(w, http.StatusOK, SaveResponse{Status: "saved", Entry: res.Entry})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := response.Error(w, err)
	ev := h.log.Warn()
	if status >= http.StatusInternalServerError {
		ev = h.log.Error()
	}
	ev.Err(err).Str("op", op).Int("status", status).Msg("request failed")
}
