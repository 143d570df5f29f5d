package screen

import (
	"context"
	"fmt"
	"time"

	"github.com/signcast/notify/internal/domain"
	"github.com/signcast/notify/internal/pkg/id"
	"github.com/signcast/notify/internal/pkg/token"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	// Register creates a screen and returns it with the plaintext device
	// token. The token is returned exactly once; only its hash is stored.
	Register(ctx context.Context, req domain.RegisterScreenRequest) (*domain.Screen, string, error)
	// Authenticate verifies a device token for screenID and touches
	// last_seen_at.
	Authenticate(ctx context.Context, screenID, deviceToken string) (*domain.Screen, error)
	Get(ctx context.Context, screenID string) (*domain.Screen, error)
	ListByOrg(ctx context.Context, orgID string) ([]domain.Screen, error)
	// Delete removes the screen and cascade-deletes its outbox records.
	Delete(ctx context.Context, screenID string) error
}

type screenStore interface {
	Put(ctx context.Context, s *domain.Screen) error
	Get(ctx context.Context, screenID string) (*domain.Screen, error)
	ListByOrg(ctx context.Context, orgID string) ([]domain.Screen, error)
	Update(ctx context.Context, screenID string, updates map[string]interface{}) error
	Delete(ctx context.Context, screenID string) error
}

type notificationStore interface {
	DeleteByScreen(ctx context.Context, screenID string) error
}

type service struct {
	repo      screenStore
	notifRepo notificationStore
}

func NewService(repo screenStore, notifRepo notificationStore) Service {
	return &service{repo: repo, notifRepo: notifRepo}
}

func (s *service) Register(ctx context.Context, req domain.RegisterScreenRequest) (*domain.Screen, string, error) {
	plain, err := token.NewDeviceToken()
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash device token: %w", err)
	}
	now := time.Now().UTC()
	scr := &domain.Screen{
		ScreenID:        id.New(),
		OrgID:           req.OrgID,
		Name:            req.Name,
		Location:        req.Location,
		DeviceTokenHash: string(hash),
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Put(ctx, scr); err != nil {
		return nil, "", err
	}
	return scr, plain, nil
}

func (s *service) Authenticate(ctx context.Context, screenID, deviceToken string) (*domain.Screen, error) {
	scr, err := s.repo.Get(ctx, screenID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown screen", domain.ErrUnauthorized)
	}
	if !scr.Active {
		return nil, fmt.Errorf("%w: screen disabled", domain.ErrForbidden)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(scr.DeviceTokenHash), []byte(deviceToken)); err != nil {
		return nil, fmt.Errorf("%w: bad device token", domain.ErrUnauthorized)
	}

	// Best-effort presence update; auth never fails on it.
	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.Update(touchCtx, screenID, map[string]interface{}{
			"last_seen_at": time.Now().UTC(),
		}); err != nil {
			logrus.WithField("screen_id", screenID).WithError(err).Warn("touch last_seen_at")
		}
	}()

	return scr, nil
}

func (s *service) Get(ctx context.Context, screenID string) (*domain.Screen, error) {
	return s.repo.Get(ctx, screenID)
}

func (s *service) ListByOrg(ctx context.Context, orgID string) ([]domain.Screen, error) {
	return s.repo.ListByOrg(ctx, orgID)
}

func (s *service) Delete(ctx context.Context, screenID string) error {
	if err := s.repo.Delete(ctx, screenID); err != nil {
		return err
	}
	if err := s.notifRepo.DeleteByScreen(ctx, screenID); err != nil {
		return fmt.Errorf("cascade delete notifications: %w", err)
	}
	return nil
}
