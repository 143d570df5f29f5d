package handler

import (
	"encoding/json"
	"net/http"

	"github.com/signcast/notify/internal/application/publisher"
	"github.com/signcast/notify/internal/domain"
	"github.com/signcast/notify/internal/pkg/validate"
)

// EntityChangedRequest is the mutation hook body posted by the content
// store after each committed write. screen_id and playlist_id are the
// optional pre-delete linkage snapshot: the hook fires post-commit, so
// for op=delete they are the only way to resolve the affected screens.
type EntityChangedRequest struct {
	EntityType string `json:"entity_type" validate:"required,oneof=schedule playlist playlist_item media_asset"`
	EntityID   string `json:"entity_id" validate:"required"`
	Op         string `json:"op" validate:"required,oneof=create update delete"`
	ScreenID   string `json:"screen_id,omitempty"`
	PlaylistID string `json:"playlist_id,omitempty"`
}

// HookHandler receives content-store mutation events and hands them to
// the change publisher.
type HookHandler struct {
	svc publisher.Service
}

func NewHookHandler(svc publisher.Service) *HookHandler { return &HookHandler{svc: svc} }

// EntityChanged always answers 202 once the request parses: fan-out
// failures are the publisher's to log and swallow, never the content
// store's problem.
func (h *HookHandler) EntityChanged(w http.ResponseWriter, r *http.Request) {
	var req EntityChangedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.svc.OnEntityChanged(r.Context(), domain.EntityChange{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Op:         req.Op,
		ScreenID:   req.ScreenID,
		PlaylistID: req.PlaylistID,
	})
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "accepted"})
}

// BroadcastRequest is the admin system-message body.
type BroadcastRequest struct {
	OrgID    string `json:"org_id" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Message  string `json:"message" validate:"required"`
	Priority int    `json:"priority" validate:"omitempty,min=0,max=10"`
}

// Broadcast is the operator path for creating system_message records.
func (h *HookHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	priority := req.Priority
	if priority == 0 {
		priority = 5
	}
	sent, err := h.svc.BroadcastSystemMessage(r.Context(), req.OrgID, req.Title, req.Message, priority)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, BroadcastEnvelope{ScreensNotified: sent})
}
