package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/signcast/notify/internal/application/delivery"
	"github.com/signcast/notify/internal/transport/http/middleware"
	"github.com/sirupsen/logrus"
)

// StreamHandler serves the long-lived SSE stream: catch-up replay of
// the undelivered backlog, then live pushes and heartbeats until the
// device disconnects or falls behind.
type StreamHandler struct {
	svc       delivery.Service
	heartbeat time.Duration
}

func NewStreamHandler(svc delivery.Service, heartbeat time.Duration) *StreamHandler {
	return &StreamHandler{svc: svc, heartbeat: heartbeat}
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	scr, ok := middleware.ScreenFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	session, err := h.svc.Subscribe(r.Context(), scr.ScreenID)
	if err != nil {
		logrus.WithField("screen_id", scr.ScreenID).WithError(err).Error("subscribe failed")
		writeError(w, http.StatusInternalServerError, "subscribe failed")
		return
	}
	defer session.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, flusher, "connected", map[string]interface{}{
		"screenId":  scr.ScreenID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return
	}

	// Catch-up: replay the backlog, then mark it delivered as one batch.
	// A failed mark leaves the records undelivered; the device sees them
	// again on its next connect, which it must tolerate.
	backlogIDs := make([]string, 0, len(session.Backlog))
	for _, rec := range session.Backlog {
		if err := writeEvent(w, flusher, "content_update", rec.Event()); err != nil {
			return
		}
		backlogIDs = append(backlogIDs, rec.NotificationID)
	}
	if len(backlogIDs) > 0 {
		if err := h.svc.MarkDelivered(r.Context(), backlogIDs); err != nil {
			logrus.WithField("screen_id", scr.ScreenID).WithError(err).Warn("catch-up mark delivered failed")
		}
	}

	if err := writeEvent(w, flusher, "realtime_ready", map[string]interface{}{
		"replayed": len(backlogIDs),
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	var seq uint64

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			seq++
			if err := writeEvent(w, flusher, "ping", map[string]interface{}{
				"seq":       seq,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		case rec, ok := <-session.Records():
			if !ok {
				// Kicked for falling behind; the device reconnects and
				// catches up from the outbox.
				return
			}
			if err := writeEvent(w, flusher, "content_update", rec.Event()); err != nil {
				return
			}
			h.svc.MarkDeliveredAsync([]string{rec.NotificationID})
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + event + "\n")); err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
