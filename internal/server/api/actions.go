// Package api implements the JSON handlers of the drawing board's HTTP API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/board"
	"github.com/ayusman/mudra/internal/store"
)

// Result is the reply to a trigger run against the live board.
type Result struct {
	Applied bool           `json:"applied"`
	Drawing *store.Drawing `json:"drawing,omitempty"`
	Status  board.Status   `json:"status"`
}

// Controller runs triggers on the board owned by the frame loop.
type Controller interface {
	Do(ctx context.Context, t board.Trigger) (Result, error)
	Status(ctx context.Context) (board.Status, error)
}

// ActionHandler handles HTTP requests for board actions.
type ActionHandler struct {
	ctrl Controller
}

// NewActionHandler creates a new ActionHandler driving ctrl.
func NewActionHandler(ctrl Controller) *ActionHandler {
	return &ActionHandler{ctrl: ctrl}
}

type actionRequest struct {
	Action string `json:"action"`
	Color  int    `json:"color"`
}

type actionsResponse struct {
	Actions []string     `json:"actions"`
	Status  board.Status `json:"status"`
}

// ServeHTTP implements the http.Handler interface.
//
//	GET  /api/actions  lists the action names and the board status
//	POST /api/actions  runs {"action": name, "color": n}
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.run(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list handles GET /api/actions.
func (h *ActionHandler) list(w http.ResponseWriter, r *http.Request) {
	status, err := h.ctrl.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Board unavailable")
		return
	}
	writeJSON(w, http.StatusOK, actionsResponse{
		Actions: board.ActionNames(),
		Status:  status,
	})
}

// run handles POST /api/actions.
func (h *ActionHandler) run(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	trigger, err := board.ParseAction(req.Action, req.Color)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.ctrl.Do(r.Context(), trigger)
	if err != nil {
		log.WithError(err).WithField("action", req.Action).Warn("action failed")
		writeError(w, http.StatusServiceUnavailable, "Failed to run action")
		return
	}

	writeJSON(w, http.StatusOK, res)
}
