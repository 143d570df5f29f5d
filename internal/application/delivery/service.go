package delivery

import (
	"context"
	"time"

	"github.com/signcast/notify/internal/domain"
	"github.com/signcast/notify/internal/pkg/bus"
	"github.com/sirupsen/logrus"
)

// Service backs the streaming gateway. A Session is one device's open
// stream: the undelivered backlog fetched at connect time plus a live
// channel fed by the hub. All durable state lives in the outbox, so a
// device may reconnect to any gateway instance.
type Service interface {
	// Subscribe registers screenID and snapshots its backlog. The hub
	// subscription is taken before the backlog fetch so nothing enqueued
	// in between is lost (it may appear twice; duplicates are the
	// accepted trade-off).
	Subscribe(ctx context.Context, screenID string) (*Session, error)
	// MarkDeliveredAsync records delivery without blocking the push
	// path. A failure leaves the records undelivered; they are replayed
	// on the next catch-up.
	MarkDeliveredAsync(ids []string)
	// MarkDelivered is the synchronous variant used for the catch-up
	// batch.
	MarkDelivered(ctx context.Context, ids []string) error
	ConnectionCount() int
	ConnectedScreens() []string
}

type outboxStore interface {
	FetchUndelivered(ctx context.Context, screenID string) ([]domain.NotificationRecord, error)
	MarkDelivered(ctx context.Context, ids []string) error
}

// Session is one live device connection.
type Session struct {
	ScreenID string
	// Backlog holds the undelivered records at connect time, already
	// ordered (priority desc, created_at asc).
	Backlog []domain.NotificationRecord

	sub *bus.Subscription
}

// Records is the live stream. The channel closes when the session is
// closed or the subscriber is kicked for falling behind; the handler
// must then end the response and let the device reconnect.
func (s *Session) Records() <-chan domain.NotificationRecord { return s.sub.Records() }

// Close synchronously releases the registry entry and subscription.
func (s *Session) Close() { s.sub.Cancel() }

type service struct {
	outbox     outboxStore
	hub        *bus.Hub
	bufferSize int
}

func NewService(outbox outboxStore, hub *bus.Hub, bufferSize int) Service {
	return &service{outbox: outbox, hub: hub, bufferSize: bufferSize}
}

func (s *service) Subscribe(ctx context.Context, screenID string) (*Session, error) {
	sub := s.hub.Subscribe(screenID, s.bufferSize)
	backlog, err := s.outbox.FetchUndelivered(ctx, screenID)
	if err != nil {
		sub.Cancel()
		return nil, err
	}
	return &Session{ScreenID: screenID, Backlog: backlog, sub: sub}, nil
}

func (s *service) MarkDeliveredAsync(ids []string) {
	if len(ids) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.outbox.MarkDelivered(ctx, ids); err != nil {
			logrus.WithError(err).Warn("async mark delivered failed, records will be replayed")
		}
	}()
}

func (s *service) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.outbox.MarkDelivered(ctx, ids)
}

func (s *service) ConnectionCount() int { return s.hub.ConnectionCount() }

func (s *service) ConnectedScreens() []string { return s.hub.ConnectedScreens() }
