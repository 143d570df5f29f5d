package domain

import "time"

// Screen is a registered display endpoint and the addressable target of
// all notifications.
type Screen struct {
	ScreenID        string     `json:"id" dynamodbav:"screen_id"`
	OrgID           string     `json:"org_id" dynamodbav:"org_id"`
	Name            string     `json:"name" dynamodbav:"name"`
	Location        string     `json:"location" dynamodbav:"location"`
	DeviceTokenHash string     `json:"-" dynamodbav:"device_token_hash"`
	Active          bool       `json:"active" dynamodbav:"active"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty" dynamodbav:"last_seen_at"`
	CreatedAt       time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type RegisterScreenRequest struct {
	OrgID    string `json:"org_id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Location string `json:"location"`
}
