package handler

import (
	"net/http"
	"time"
)

// ConnectionReporter is the view of the delivery gateway the health
// endpoint needs.
type ConnectionReporter interface {
	ConnectionCount() int
	ConnectedScreens() []string
}

// HealthHandler reports process liveness and gateway connection state.
type HealthHandler struct {
	startedAt time.Time
	gateway   ConnectionReporter
}

func NewHealthHandler(gateway ConnectionReporter) *HealthHandler {
	return &HealthHandler{startedAt: time.Now(), gateway: gateway}
}

func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	connections := h.gateway.ConnectedScreens()
	if connections == nil {
		connections = []string{}
	}
	writeJSON(w, http.StatusOK, HealthEnvelope{
		Status:                "ok",
		UptimeSeconds:         int64(time.Since(h.startedAt).Seconds()),
		ActiveConnectionCount: h.gateway.ConnectionCount(),
		Connections:           connections,
	})
}
