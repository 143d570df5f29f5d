package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/signcast/notify/internal/domain"
	"github.com/sirupsen/logrus"
)

// Service is the change publisher: it turns one committed content
// mutation into one outbox record per affected screen.
//
// OnEntityChanged never returns an error. Fan-out is a best-effort side
// channel of the content write path — a failed resolution or enqueue is
// logged and swallowed so the originating mutation is never rolled back
// or rejected because of it. The polling fallback bounds the staleness
// such a loss can cause.
type Service interface {
	OnEntityChanged(ctx context.Context, ch domain.EntityChange)
	// BroadcastSystemMessage enqueues a system_message for every active
	// screen of the org (the operator-action creation path). Returns
	// the number of screens notified.
	BroadcastSystemMessage(ctx context.Context, orgID, title, message string, priority int) (int, error)
	// BroadcastConfigChange tells every active screen of the org to
	// re-fetch device configuration.
	BroadcastConfigChange(ctx context.Context, orgID string) (int, error)
}

type scheduleStore interface {
	Get(ctx context.Context, scheduleID string) (*domain.Schedule, error)
	ListActiveByPlaylist(ctx context.Context, playlistID string) ([]domain.Schedule, error)
}

type playlistStore interface {
	GetItem(ctx context.Context, itemID string) (*domain.PlaylistItem, error)
	ListItemsByAsset(ctx context.Context, mediaAssetID string) ([]domain.PlaylistItem, error)
}

type screenStore interface {
	ListByOrg(ctx context.Context, orgID string) ([]domain.Screen, error)
}

type outboxSink interface {
	Enqueue(ctx context.Context, rec *domain.NotificationRecord) (string, error)
}

type service struct {
	schedules scheduleStore
	playlists playlistStore
	screens   screenStore
	outbox    outboxSink
}

func NewService(schedules scheduleStore, playlists playlistStore, screens screenStore, outbox outboxSink) Service {
	return &service{schedules: schedules, playlists: playlists, screens: screens, outbox: outbox}
}

func (s *service) OnEntityChanged(ctx context.Context, ch domain.EntityChange) {
	log := logrus.WithFields(logrus.Fields{
		"entity": ch.EntityType,
		"id":     ch.EntityID,
		"op":     ch.Op,
	})

	records, err := s.resolve(ctx, ch)
	if err != nil {
		log.WithError(err).Warn("fan-out resolution failed, mutation unaffected")
		return
	}
	if len(records) == 0 {
		return
	}

	enqueued := 0
	for i := range records {
		if _, err := s.outbox.Enqueue(ctx, &records[i]); err != nil {
			log.WithField("screen_id", records[i].TargetScreenID).WithError(err).Warn("outbox enqueue failed")
			continue
		}
		enqueued++
	}
	log.WithField("screens", enqueued).Debug("fan-out complete")
}

// resolve applies the fan-out rules and returns one record per screen.
func (s *service) resolve(ctx context.Context, ch domain.EntityChange) ([]domain.NotificationRecord, error) {
	switch ch.EntityType {
	case domain.EntitySchedule:
		return s.resolveSchedule(ctx, ch)
	case domain.EntityPlaylist:
		return s.resolvePlaylist(ctx, ch.EntityID, ch.EntityID, ch.Op, nil)
	case domain.EntityPlaylistItem:
		return s.resolvePlaylistItem(ctx, ch)
	case domain.EntityMediaAsset:
		// Asset creation touches nothing until an item references it.
		if ch.Op == domain.OpCreate {
			return nil, nil
		}
		return s.resolveMediaAsset(ctx, ch.EntityID, ch.Op)
	default:
		return nil, fmt.Errorf("unknown entity type %q", ch.EntityType)
	}
}

func (s *service) resolveSchedule(ctx context.Context, ch domain.EntityChange) ([]domain.NotificationRecord, error) {
	screenID, playlistID := ch.ScreenID, ch.PlaylistID
	sched, err := s.schedules.Get(ctx, ch.EntityID)
	switch {
	case err == nil:
		screenID, playlistID = sched.ScreenID, sched.PlaylistID
	case errors.Is(err, domain.ErrNotFound) && screenID != "":
		// Row already deleted; fall through on the caller's snapshot.
	default:
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if screenID == "" {
		return nil, nil
	}
	rec := baseRecord(screenID, domain.TypeScheduleChange, "Schedule updated",
		fmt.Sprintf("A schedule on this screen was %sd", ch.Op),
		map[string]interface{}{
			"action":      ch.Op,
			"entity_type": domain.EntitySchedule,
			"entity_id":   ch.EntityID,
		})
	rec.ScheduleID = &ch.EntityID
	rec.PlaylistID = strPtrOrNil(playlistID)
	return []domain.NotificationRecord{rec}, nil
}

func (s *service) resolvePlaylist(ctx context.Context, playlistID, entityID, op string, extra map[string]interface{}) ([]domain.NotificationRecord, error) {
	schedules, err := s.schedules.ListActiveByPlaylist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list schedules for playlist: %w", err)
	}
	payload := map[string]interface{}{
		"action":      op,
		"entity_type": domain.EntityPlaylist,
		"entity_id":   entityID,
		"playlist_id": playlistID,
	}
	for k, v := range extra {
		payload[k] = v
	}
	var records []domain.NotificationRecord
	for _, screenID := range distinctScreens(schedules) {
		rec := baseRecord(screenID, domain.TypePlaylistChange, "Playlist updated",
			fmt.Sprintf("Playlist content was %sd", op), payload)
		rec.PlaylistID = &playlistID
		records = append(records, rec)
	}
	return records, nil
}

func (s *service) resolvePlaylistItem(ctx context.Context, ch domain.EntityChange) ([]domain.NotificationRecord, error) {
	item, err := s.playlists.GetItem(ctx, ch.EntityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && ch.PlaylistID != "" {
			// Item already deleted; resolve through the snapshot parent.
			extra := map[string]interface{}{
				"entity_type": domain.EntityPlaylistItem,
				"entity_id":   ch.EntityID,
			}
			return s.resolvePlaylist(ctx, ch.PlaylistID, ch.EntityID, ch.Op, extra)
		}
		return nil, fmt.Errorf("load playlist item: %w", err)
	}
	// order_index and duration_override let the device decide between a
	// metadata-only refresh and a full resync.
	extra := map[string]interface{}{
		"entity_type": domain.EntityPlaylistItem,
		"entity_id":   ch.EntityID,
		"order_index": item.OrderIndex,
	}
	if item.DurationOverride != nil {
		extra["duration_override"] = *item.DurationOverride
	}
	return s.resolvePlaylist(ctx, item.PlaylistID, ch.EntityID, ch.Op, extra)
}

func (s *service) resolveMediaAsset(ctx context.Context, assetID, op string) ([]domain.NotificationRecord, error) {
	items, err := s.playlists.ListItemsByAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("list items for asset: %w", err)
	}
	seen := make(map[string]struct{})
	var records []domain.NotificationRecord
	for _, item := range items {
		schedules, err := s.schedules.ListActiveByPlaylist(ctx, item.PlaylistID)
		if err != nil {
			return nil, fmt.Errorf("list schedules for playlist %s: %w", item.PlaylistID, err)
		}
		for _, screenID := range distinctScreens(schedules) {
			if _, dup := seen[screenID]; dup {
				continue
			}
			seen[screenID] = struct{}{}
			rec := baseRecord(screenID, domain.TypeMediaChange, "Media updated",
				fmt.Sprintf("A media asset in rotation was %sd", op),
				map[string]interface{}{
					"action":      op,
					"entity_type": domain.EntityMediaAsset,
					"entity_id":   assetID,
				})
			rec.MediaAssetID = &assetID
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *service) BroadcastSystemMessage(ctx context.Context, orgID, title, message string, priority int) (int, error) {
	return s.broadcast(ctx, orgID, domain.TypeSystemMessage, title, message, priority)
}

func (s *service) BroadcastConfigChange(ctx context.Context, orgID string) (int, error) {
	return s.broadcast(ctx, orgID, domain.TypeConfigChange, "Configuration updated",
		"Device configuration changed, re-fetch polling settings", 1)
}

func (s *service) broadcast(ctx context.Context, orgID, notifType, title, message string, priority int) (int, error) {
	screens, err := s.screens.ListByOrg(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("list screens: %w", err)
	}
	sent := 0
	for _, scr := range screens {
		if !scr.Active {
			continue
		}
		rec := baseRecord(scr.ScreenID, notifType, title, message, map[string]interface{}{
			"org_id": orgID,
		})
		rec.Priority = priority
		if _, err := s.outbox.Enqueue(ctx, &rec); err != nil {
			logrus.WithField("screen_id", scr.ScreenID).WithError(err).Warn("broadcast enqueue failed")
			continue
		}
		sent++
	}
	return sent, nil
}

func baseRecord(screenID, notifType, title, message string, payload map[string]interface{}) domain.NotificationRecord {
	return domain.NotificationRecord{
		TargetScreenID: screenID,
		Type:           notifType,
		Title:          title,
		Message:        message,
		Payload:        payload,
	}
}

func distinctScreens(schedules []domain.Schedule) []string {
	seen := make(map[string]struct{}, len(schedules))
	var ids []string
	for _, sched := range schedules {
		if sched.ScreenID == "" {
			continue
		}
		if _, dup := seen[sched.ScreenID]; dup {
			continue
		}
		seen[sched.ScreenID] = struct{}{}
		ids = append(ids, sched.ScreenID)
	}
	return ids
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
