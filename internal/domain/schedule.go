package domain

import "time"

// Schedule links a Screen to a Playlist inside a daily time window.
// Only the linkage matters to the notification path; window conflict
// checking lives in the content dashboard.
type Schedule struct {
	ScheduleID string    `json:"id" dynamodbav:"schedule_id"`
	ScreenID   string    `json:"screen_id" dynamodbav:"screen_id"`
	PlaylistID string    `json:"playlist_id" dynamodbav:"playlist_id"`
	StartTime  string    `json:"start_time" dynamodbav:"start_time"` // HH:MM
	EndTime    string    `json:"end_time" dynamodbav:"end_time"`     // HH:MM
	Days       []string  `json:"days" dynamodbav:"days"`
	Priority   int       `json:"priority" dynamodbav:"priority"`
	Active     bool      `json:"active" dynamodbav:"active"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt  time.Time `json:"updated" dynamodbav:"updated_at"`
}
