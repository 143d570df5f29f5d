package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/signcast/notify/internal/domain"
	"github.com/signcast/notify/internal/infrastructure/sns"
	"github.com/signcast/notify/internal/pkg/validate"
	"github.com/sirupsen/logrus"
)

// Service resolves per-organization polling intervals and manages the
// emergency override. Devices call ResolveInterval on a coarse cadence
// (~30 min); it is the bounded-staleness floor under the streaming
// path, so it must be cheap (one row lookup) and must never reject a
// device.
type Service interface {
	ResolveInterval(ctx context.Context, orgID string, now time.Time) domain.IntervalResolution
	ActivateOverride(ctx context.Context, orgID string, durationHours int) (*domain.EmergencyOverride, error)
	DeactivateOverride(ctx context.Context, orgID string) error
	GetConfig(ctx context.Context, orgID string) (*domain.PollingConfig, error)
	PutConfig(ctx context.Context, cfg *domain.PollingConfig) error
}

type configStore interface {
	Get(ctx context.Context, orgID string) (*domain.PollingConfig, error)
	Put(ctx context.Context, cfg *domain.PollingConfig) error
	SetOverride(ctx context.Context, orgID string, ov domain.EmergencyOverride) error
	ClearOverride(ctx context.Context, orgID string) error
}

// Options carries the tuning knobs from config.
type Options struct {
	DefaultInterval   time.Duration // fallback for gaps and missing config
	EmergencyInterval time.Duration
	DefaultHours      int
}

type service struct {
	repo    configStore
	alerter sns.Alerter // nil when no topic is configured
	opts    Options
}

func NewService(repo configStore, alerter sns.Alerter, opts Options) Service {
	return &service{repo: repo, alerter: alerter, opts: opts}
}

func (s *service) ResolveInterval(ctx context.Context, orgID string, now time.Time) domain.IntervalResolution {
	fallback := domain.IntervalResolution{IntervalSeconds: int(s.opts.DefaultInterval.Seconds())}

	cfg, err := s.repo.Get(ctx, orgID)
	if err != nil {
		logrus.WithField("org_id", orgID).WithError(err).Warn("polling config missing, using default interval")
		return fallback
	}

	if cfg.Override.Active {
		if cfg.Override.ExpiresAt != nil && now.After(*cfg.Override.ExpiresAt) {
			// Lapsed. Clear it out of band; resolution itself stays a
			// single read.
			go func() {
				clearCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.repo.ClearOverride(clearCtx, orgID); err != nil {
					logrus.WithField("org_id", orgID).WithError(err).Warn("clear lapsed override")
				}
			}()
		} else {
			return domain.IntervalResolution{
				IntervalSeconds:    int(s.opts.EmergencyInterval.Seconds()),
				EmergencyActive:    true,
				EmergencyExpiresAt: cfg.Override.ExpiresAt,
			}
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logrus.WithField("org_id", orgID).WithField("timezone", cfg.Timezone).Warn("bad timezone, using default interval")
		return fallback
	}
	local := now.In(loc)
	minutes := local.Hour()*60 + local.Minute()

	for _, w := range cfg.Windows {
		start, err1 := parseClock(w.Start)
		end, err2 := parseClock(w.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if minutes >= start && minutes < end {
			return domain.IntervalResolution{IntervalSeconds: w.IntervalSeconds}
		}
	}

	logrus.WithFields(logrus.Fields{
		"org_id": orgID,
		"local":  local.Format("15:04"),
	}).Warn("no polling window covers current time, using default interval")
	return fallback
}

func (s *service) ActivateOverride(ctx context.Context, orgID string, durationHours int) (*domain.EmergencyOverride, error) {
	if durationHours <= 0 {
		durationHours = s.opts.DefaultHours
	}
	now := time.Now().UTC()
	expires := now.Add(time.Duration(durationHours) * time.Hour)
	ov := domain.EmergencyOverride{
		Active:      true,
		ActivatedAt: &now,
		ExpiresAt:   &expires,
	}
	if err := s.repo.SetOverride(ctx, orgID, ov); err != nil {
		return nil, err
	}
	s.alert(orgID, fmt.Sprintf("Emergency fast polling activated for org %s until %s",
		orgID, expires.Format(time.RFC3339)))
	return &ov, nil
}

func (s *service) DeactivateOverride(ctx context.Context, orgID string) error {
	if err := s.repo.ClearOverride(ctx, orgID); err != nil {
		return err
	}
	s.alert(orgID, fmt.Sprintf("Emergency fast polling deactivated for org %s", orgID))
	return nil
}

func (s *service) GetConfig(ctx context.Context, orgID string) (*domain.PollingConfig, error) {
	return s.repo.Get(ctx, orgID)
}

func (s *service) PutConfig(ctx context.Context, cfg *domain.PollingConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrBadRequest, err)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", domain.ErrBadRequest, cfg.Timezone)
	}
	// Keep any live override across a config rewrite.
	if existing, err := s.repo.Get(ctx, cfg.OrgID); err == nil {
		cfg.Override = existing.Override
	}
	return s.repo.Put(ctx, cfg)
}

// alert publishes to the ops topic, best-effort.
func (s *service) alert(orgID, message string) {
	if s.alerter == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.alerter.Alert(ctx, "polling override", message); err != nil {
			logrus.WithField("org_id", orgID).WithError(err).Warn("ops alert failed")
		}
	}()
}

// parseClock converts "HH:MM" to minutes since midnight. "24:00" is the
// end-of-day bound (1440).
func parseClock(v string) (int, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad clock value %q", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("bad clock value %q", v)
	}
	return h*60 + m, nil
}
