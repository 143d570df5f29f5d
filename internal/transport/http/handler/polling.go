package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/signcast/notify/internal/application/scheduler"
	"github.com/signcast/notify/internal/domain"
	"github.com/signcast/notify/internal/transport/http/middleware"
)

// PollingHandler serves the device polling endpoint and the admin
// config/override surface.
type PollingHandler struct {
	svc scheduler.Service
}

func NewPollingHandler(svc scheduler.Service) *PollingHandler { return &PollingHandler{svc: svc} }

// Resolve is the device-facing endpoint: a single cheap lookup that
// never rejects the caller.
func (h *PollingHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	scr, ok := middleware.ScreenFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	res := h.svc.ResolveInterval(r.Context(), scr.OrgID, time.Now().UTC())
	writeJSON(w, http.StatusOK, res)
}

func (h *PollingHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.GetConfig(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *PollingHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.PollingConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg.OrgID = chi.URLParam(r, "orgID")
	if err := h.svc.PutConfig(r.Context(), &cfg); err != nil {
		if errors.Is(err, domain.ErrBadRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *PollingHandler) ActivateOverride(w http.ResponseWriter, r *http.Request) {
	// An empty body means default duration; chunked requests report
	// ContentLength -1, so emptiness is detected by the decoder.
	var req domain.ActivateOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DurationHours < 0 || req.DurationHours > 24 {
		writeError(w, http.StatusBadRequest, "duration_hours must be between 1 and 24")
		return
	}
	ov, err := h.svc.ActivateOverride(r.Context(), chi.URLParam(r, "orgID"), req.DurationHours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (h *PollingHandler) DeactivateOverride(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivateOverride(r.Context(), chi.URLParam(r, "orgID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "override deactivated"})
}
