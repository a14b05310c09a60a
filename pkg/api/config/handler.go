package config

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"alphaseeker/pkg/api/response"
)

type Response struct {
	ActiveProvider string            `json:"active_provider"`
	Available      []string          `json:"available"`
	Agents         map[string]string `json:"agents,omitempty"` // role -> provider override
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

type SwitchResponse struct {
	Status         string `json:"status"`
	ActiveProvider string `json:"active_provider"`
}

// Providers is the provider switchboard. agent.Manager satisfies it.
type Providers interface {
	GetActiveProvider() string
	Available() []string
	SetGlobalProvider(name string) error
	RoleOverrides() map[string]string
}

// Handler holds dependencies for config endpoints
type Handler struct {
	providers Providers
	log       zerolog.Logger
}

// NewHandler creates a new config handler
func NewHandler(providers Providers, log zerolog.Logger) *Handler {
	return &Handler{
		providers: providers,
		log:       log.With().Str("component", "api.config").Logger(),
	}
}

// Routes mounts the endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/config", h.HandleConfig)
	r.Post("/config/switch", h.HandleSwitch)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, Response{
		ActiveProvider: h.providers.GetActiveProvider(),
		Available:      h.providers.Available(),
		Agents:         h.providers.RoleOverrides(),
	})
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	if req.Provider == "" {
		response.BadRequest(w, fmt.Errorf("provider is required"))
		return
	}

	if err := h.providers.SetGlobalProvider(req.Provider); err != nil {
		response.BadRequest(w, err)
		return
	}
	h.log.Info().Str("provider", req.Provider).Msg("switched provider")
	response.JSON(w, http.StatusOK, SwitchResponse{Status: "ok", ActiveProvider: req.Provider})
}
