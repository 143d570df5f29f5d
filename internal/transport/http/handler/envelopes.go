package handler

import (
	"encoding/json"
	"net/http"

	"github.com/signcast/notify/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// RegisteredScreenEnvelope wraps a screen registration response. The
// device token appears here once and is never returned again.
type RegisteredScreenEnvelope struct {
	Screen      *domain.Screen `json:"screen"`
	DeviceToken string         `json:"device_token"`
}

// BroadcastEnvelope reports how many screens a broadcast reached.
type BroadcastEnvelope struct {
	ScreensNotified int `json:"screens_notified"`
}

// HealthEnvelope is the health endpoint response shape.
type HealthEnvelope struct {
	Status                string   `json:"status"`
	UptimeSeconds         int64    `json:"uptime_seconds"`
	ActiveConnectionCount int      `json:"active_connection_count"`
	Connections           []string `json:"connections"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
