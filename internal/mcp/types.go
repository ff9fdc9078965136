package mcp

import (
	"time"

	"github.com/rpggio/studytrack/internal/domain/session"
)

type StartSessionParams struct {
	ActivityType string `json:"activity_type,omitempty"`
}

type RecordActivityParams struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type ListSessionsParams struct {
	SinceDays int `json:"since_days,omitempty"`
	Limit     int `json:"limit,omitempty"`
}

type WindowParams struct {
	WindowDays int `json:"window_days,omitempty"`
}

// SessionResponse describes the tracked session after a tool call. Session
// is nil when the user has nothing in flight.
type SessionResponse struct {
	State             session.State    `json:"state"`
	Session           *session.Session `json:"session"`
	DurationMinutes   int              `json:"duration_minutes"`
	ActiveTimeMs      int64            `json:"active_time_ms"`
	BreakTimeMs       int64            `json:"break_time_ms"`
	ProductivityScore int              `json:"productivity_score"`
	Warnings          []string         `json:"warnings,omitempty"`
}

// SessionSummary is one row of list_sessions.
type SessionSummary struct {
	SessionID         string     `json:"session_id"`
	ActivityType      string     `json:"activity_type"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	IsActive          bool       `json:"is_active"`
	DurationMinutes   int        `json:"duration_minutes"`
	Activities        int        `json:"activities"`
	Breaks            int        `json:"breaks"`
	ProductivityScore int        `json:"productivity_score"`
}
