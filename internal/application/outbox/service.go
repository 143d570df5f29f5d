package outbox

import (
	"context"
	"time"

	"github.com/signcast/notify/internal/domain"
	"github.com/signcast/notify/internal/pkg/bus"
	"github.com/signcast/notify/internal/pkg/id"
	"github.com/sirupsen/logrus"
)

// Service is the durable outbox: the single source of truth for
// delivery state. Enqueue both persists the record and announces it on
// the bus so live streams pick it up without polling the table.
type Service interface {
	Enqueue(ctx context.Context, rec *domain.NotificationRecord) (string, error)
	FetchUndelivered(ctx context.Context, screenID string) ([]domain.NotificationRecord, error)
	MarkDelivered(ctx context.Context, ids []string) error
	Acknowledge(ctx context.Context, screenID string, ids []string) error
	GC(ctx context.Context) (int, error)
	// RunGC deletes expired records every interval until ctx is cancelled.
	RunGC(ctx context.Context, interval time.Duration)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.NotificationRecord) error
	QueryUndelivered(ctx context.Context, screenID string) ([]domain.NotificationRecord, error)
	MarkDelivered(ctx context.Context, ids []string, now time.Time) error
	Acknowledge(ctx context.Context, screenID string, ids []string, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type service struct {
	repo      notificationStore
	publisher bus.Publisher
	ttl       time.Duration
}

func NewService(repo notificationStore, publisher bus.Publisher, ttl time.Duration) Service {
	return &service{repo: repo, publisher: publisher, ttl: ttl}
}

// Enqueue persists rec, filling id, created_at and expires_at when
// unset. Duplicates are allowed by design; there is no uniqueness
// constraint and no coalescing of rapid successive edits.
func (s *service) Enqueue(ctx context.Context, rec *domain.NotificationRecord) (string, error) {
	if rec.NotificationID == "" {
		rec.NotificationID = id.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.ExpiresAt == 0 {
		rec.ExpiresAt = rec.CreatedAt.Add(s.ttl).Unix()
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		return "", err
	}
	s.publisher.Publish(rec.TargetScreenID, *rec)
	return rec.NotificationID, nil
}

func (s *service) FetchUndelivered(ctx context.Context, screenID string) ([]domain.NotificationRecord, error) {
	return s.repo.QueryUndelivered(ctx, screenID)
}

func (s *service) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.repo.MarkDelivered(ctx, ids, time.Now().UTC())
}

func (s *service) Acknowledge(ctx context.Context, screenID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.repo.Acknowledge(ctx, screenID, ids, time.Now().UTC())
}

func (s *service) GC(ctx context.Context) (int, error) {
	return s.repo.DeleteExpired(ctx, time.Now().UTC())
}

func (s *service) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.GC(ctx)
			if err != nil {
				logrus.WithError(err).Warn("outbox gc failed")
				continue
			}
			if removed > 0 {
				logrus.WithField("removed", removed).Info("outbox gc")
			}
		}
	}
}
