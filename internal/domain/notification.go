package domain

import "time"

// Notification types. The type tells the device which slice of local
// state is stale; every type is still just a re-sync trigger.
const (
	TypeScheduleChange = "schedule_change"
	TypePlaylistChange = "playlist_change"
	TypeMediaChange    = "media_change"
	TypeConfigChange   = "config_change"
	TypeSystemMessage  = "system_message"
)

// Entity mutation operations reported by the content store.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Entity types accepted by the mutation hook.
const (
	EntitySchedule     = "schedule"
	EntityPlaylist     = "playlist"
	EntityPlaylistItem = "playlist_item"
	EntityMediaAsset   = "media_asset"
)

// EntityChange describes one committed content-store mutation.
//
// ScreenID and PlaylistID are an optional linkage snapshot. The hook
// fires after commit, so for op=delete the row is already gone and the
// resolver can no longer read which screens it pointed at; the caller
// passes the linkage it had before the delete. Without it a deletion
// resolves to zero screens and the polling fallback bounds the
// staleness.
type EntityChange struct {
	EntityType string
	EntityID   string
	Op         string
	ScreenID   string
	PlaylistID string
}

// NotificationRecord is one row of the durable outbox.
//
// DeliveredAt transitions only nil -> timestamp and is never reset.
// ExpiresAt is epoch seconds so it doubles as the DynamoDB TTL
// attribute; rows past it are GC-eligible regardless of delivery state.
type NotificationRecord struct {
	NotificationID string                 `json:"id" dynamodbav:"notification_id"`
	TargetScreenID string                 `json:"target_screen_id" dynamodbav:"target_screen_id"`
	Type           string                 `json:"type" dynamodbav:"type"`
	Title          string                 `json:"title" dynamodbav:"title"`
	Message        string                 `json:"message" dynamodbav:"message"`
	ScheduleID     *string                `json:"schedule_id,omitempty" dynamodbav:"schedule_id"`
	PlaylistID     *string                `json:"playlist_id,omitempty" dynamodbav:"playlist_id"`
	MediaAssetID   *string                `json:"media_asset_id,omitempty" dynamodbav:"media_asset_id"`
	Payload        map[string]interface{} `json:"payload,omitempty" dynamodbav:"payload"`
	Priority       int                    `json:"priority" dynamodbav:"priority"`
	CreatedAt      time.Time              `json:"created" dynamodbav:"created_at"`
	DeliveredAt    *time.Time             `json:"delivered_at,omitempty" dynamodbav:"delivered_at,omitempty"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty" dynamodbav:"acknowledged_at,omitempty"`
	ExpiresAt      int64                  `json:"expires_at" dynamodbav:"expires_at"`
}

// NotificationEvent is the wire shape pushed to devices on the stream.
type NotificationEvent struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Title        string  `json:"title"`
	Message      string  `json:"message"`
	ScheduleID   *string `json:"scheduleId,omitempty"`
	PlaylistID   *string `json:"playlistId,omitempty"`
	MediaAssetID *string `json:"mediaAssetId,omitempty"`
	Priority     int     `json:"priority"`
	Timestamp    string  `json:"timestamp"`
}

// Event converts an outbox record into its device-facing event shape.
func (n *NotificationRecord) Event() NotificationEvent {
	return NotificationEvent{
		ID:           n.NotificationID,
		Type:         n.Type,
		Title:        n.Title,
		Message:      n.Message,
		ScheduleID:   n.ScheduleID,
		PlaylistID:   n.PlaylistID,
		MediaAssetID: n.MediaAssetID,
		Priority:     n.Priority,
		Timestamp:    n.CreatedAt.UTC().Format(time.RFC3339),
	}
}
