package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kr1s57/netlens/internal/adapter/controller/ws"
	"github.com/kr1s57/netlens/internal/config"
	"github.com/kr1s57/netlens/internal/entity"
)

// Runner executes one guarded report run
type Runner interface {
	RunWithWatchdog(ctx context.Context) entity.RunResult
}

// RunnerFactory builds a runner for a per-request configuration
type RunnerFactory func(cfg config.Config) (Runner, error)

// Broadcaster pushes panel updates to websocket subscribers
type Broadcaster interface {
	BroadcastToTopic(topic, msgType string, payload interface{}) bool
}

// PanelHandler serves report runs over HTTP
type PanelHandler struct {
	base    config.Config
	factory RunnerFactory
	hub     Broadcaster
	logger  *slog.Logger
}

// NewPanelHandler creates a new panel handler. hub may be nil.
func NewPanelHandler(base config.Config, factory RunnerFactory, hub Broadcaster, logger *slog.Logger) *PanelHandler {
	return &PanelHandler{
		base:    base,
		factory: factory,
		hub:     hub,
		logger:  logger,
	}
}

// GetPanel runs a display-mode report
// GET /api/v1/panel?argument=...
func (h *PanelHandler) GetPanel(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(cfg *config.Config) {
		// a panel request is never a change event
		if cfg.Run.Mode.IsEvent() {
			cfg.Run.Mode = entity.TriggerPanel
		}
	})
}

// NetworkChanged runs an event-mode report
// POST /api/v1/events/network-change?argument=...
func (h *PanelHandler) NetworkChanged(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(cfg *config.Config) {
		cfg.Run.Mode = entity.TriggerEvent
	})
}

func (h *PanelHandler) run(w http.ResponseWriter, r *http.Request, force func(cfg *config.Config)) {
	cfg, err := config.ApplyArgument(h.base, r.URL.Query().Get("argument"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid argument", err)
		return
	}
	force(&cfg)

	runner, err := h.factory(cfg)
	if err != nil {
		h.logger.Error("Failed to build report run", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "Failed to build report run", err)
		return
	}

	result := runner.RunWithWatchdog(r.Context())

	if h.hub != nil && result.Panel != nil {
		h.hub.BroadcastToTopic(ws.TopicPanel, "panel_update", result.Panel)
	}

	Respond(w, r, http.StatusOK, result)
}
