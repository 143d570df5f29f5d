package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/signcast/notify/internal/application/outbox"
	"github.com/signcast/notify/internal/transport/http/middleware"
)

// NotificationHandler exposes the device ack path and an ops view of
// the undelivered queue.
type NotificationHandler struct {
	svc outbox.Service
}

func NewNotificationHandler(svc outbox.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// Acknowledge records acknowledged_at for the calling device's records.
// Ids targeting another screen are silently skipped.
func (h *NotificationHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	scr, ok := middleware.ScreenFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids required")
		return
	}
	if err := h.svc.Acknowledge(r.Context(), scr.ScreenID, body.IDs); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "acknowledged"})
}

// ListUndelivered is an ops/debug view of a screen's backlog.
func (h *NotificationHandler) ListUndelivered(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.FetchUndelivered(r.Context(), chi.URLParam(r, "screenID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}
