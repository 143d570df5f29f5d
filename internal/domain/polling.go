package domain

import "time"

// PollingWindow maps a daily local-time range to a poll interval.
// Start is inclusive, End exclusive; "24:00" is a valid End.
type PollingWindow struct {
	Start           string `json:"start" dynamodbav:"start" validate:"required,clocktime"`
	End             string `json:"end" dynamodbav:"end" validate:"required,clocktime"`
	IntervalSeconds int    `json:"interval_seconds" dynamodbav:"interval_seconds" validate:"required,min=5"`
}

// EmergencyOverride is the fleet-wide fast-poll switch for one org.
// It lapses the first time a resolution observes now past ExpiresAt;
// no timer process is involved.
type EmergencyOverride struct {
	Active      bool       `json:"active" dynamodbav:"active"`
	ActivatedAt *time.Time `json:"activated_at,omitempty" dynamodbav:"activated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" dynamodbav:"expires_at"`
}

// PollingConfig is one row per organization.
type PollingConfig struct {
	OrgID    string            `json:"org_id" dynamodbav:"org_id" validate:"required"`
	Timezone string            `json:"timezone" dynamodbav:"timezone" validate:"required"`
	Windows  []PollingWindow   `json:"windows" dynamodbav:"windows" validate:"required,min=1,dive"`
	Override EmergencyOverride `json:"emergency_override" dynamodbav:"emergency_override"`
}

// IntervalResolution is the polling endpoint response shape.
type IntervalResolution struct {
	IntervalSeconds    int        `json:"interval_seconds"`
	EmergencyActive    bool       `json:"emergency_active"`
	EmergencyExpiresAt *time.Time `json:"emergency_expires_at,omitempty"`
}

type ActivateOverrideRequest struct {
	DurationHours int `json:"duration_hours" validate:"omitempty,min=1,max=24"`
}
