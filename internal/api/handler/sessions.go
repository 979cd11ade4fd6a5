package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/echorelay/internal/api/apierr"
	"github.com/mcoot/echorelay/internal/api/request"
	"github.com/mcoot/echorelay/internal/api/response"
	"github.com/mcoot/echorelay/internal/services/registry"
	"github.com/mcoot/echorelay/internal/services/sessions"
)

// SessionHandler handles game server session endpoints
type SessionHandler struct {
	registry *registry.Registry
	starter  *sessions.Starter
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry *registry.Registry, starter *sessions.Starter) *SessionHandler {
	return &SessionHandler{registry: registry, starter: starter}
}

// List handles GET /sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := request.Page(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	ids, err := h.registry.ListActiveSessions(page.Offset(), page.Limit())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionIDs(ids))
}

// Get handles GET /sessions/{sessionId}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, err := request.SessionID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	reg, err := h.registry.Lookup(sessionID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromRegistration(reg))
}

// Start handles POST /sessions/{sessionId}
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID, err := request.SessionID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req request.StartSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, request.MaxBodyBytes)).Decode(&req); err != nil {
		WriteError(w, apierr.NewInvalidRequestError("Invalid request body"))
		return
	}

	newID, err := h.starter.StartSession(r.Context(), sessionID, req.Params())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.StartSessionResponse{SessionID: newID.String()})
}
