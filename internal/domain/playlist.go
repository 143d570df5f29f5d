package domain

import "time"

type Playlist struct {
	PlaylistID string    `json:"id" dynamodbav:"playlist_id"`
	OrgID      string    `json:"org_id" dynamodbav:"org_id"`
	Name       string    `json:"name" dynamodbav:"name"`
	Active     bool      `json:"active" dynamodbav:"active"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt  time.Time `json:"updated" dynamodbav:"updated_at"`
}

// PlaylistItem places a media asset inside a playlist. OrderIndex and
// DurationOverride ride along in notification payloads so devices can
// decide between a metadata-only refresh and a full resync.
type PlaylistItem struct {
	ItemID           string    `json:"id" dynamodbav:"item_id"`
	PlaylistID       string    `json:"playlist_id" dynamodbav:"playlist_id"`
	MediaAssetID     string    `json:"media_asset_id" dynamodbav:"media_asset_id"`
	OrderIndex       int       `json:"order_index" dynamodbav:"order_index"`
	DurationOverride *int      `json:"duration_override,omitempty" dynamodbav:"duration_override"`
	CreatedAt        time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time `json:"updated" dynamodbav:"updated_at"`
}
