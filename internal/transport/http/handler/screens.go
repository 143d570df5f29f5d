package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/signcast/notify/internal/application/screen"
	"github.com/signcast/notify/internal/domain"
	"github.com/signcast/notify/internal/pkg/validate"
)

// ScreenHandler handles screen registration and fleet queries.
type ScreenHandler struct {
	svc screen.Service
}

func NewScreenHandler(svc screen.Service) *ScreenHandler { return &ScreenHandler{svc: svc} }

func (h *ScreenHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scr, deviceToken, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, RegisteredScreenEnvelope{Screen: scr, DeviceToken: deviceToken})
}

func (h *ScreenHandler) Get(w http.ResponseWriter, r *http.Request) {
	scr, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "screen not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scr)
}

func (h *ScreenHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "org_id query parameter required")
		return
	}
	screens, err := h.svc.ListByOrg(r.Context(), orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, screens)
}

func (h *ScreenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "screen deleted"})
}
