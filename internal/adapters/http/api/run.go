package api

import (
	"context"
	"net/http"
)

// Triggerer starts an out-of-band cycle.
type Triggerer interface {
	Trigger(ctx context.Context) error
}

// RunHandler handles manual cycle requests.
type RunHandler struct {
	triggerer Triggerer
}

// NewRunHandler creates a new run handler.
func NewRunHandler(t Triggerer) *RunHandler {
	return &RunHandler{triggerer: t}
}

// HandleRun handles POST /run. The cycle runs in the background; 202 means
// it was started, 409 means one is already running.
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if err := h.triggerer.Trigger(r.Context()); err != nil {
		writeError(w, http.StatusConflict, "conflict", err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "accepted"})
}
