package repository

import (
	"context"
	"time"

	"github.com/rpggio/studytrack/internal/domain/session"
)

// SessionRepository manages the local session cache. Sessions are keyed by
// id; Upsert replaces an existing entry or inserts a new one.
type SessionRepository interface {
	Upsert(ctx context.Context, sess *session.Session) error
	Get(ctx context.Context, id string) (*session.Session, error)
	// GetActive returns nil, nil when the user has no active session.
	GetActive(ctx context.Context, userID string) (*session.Session, error)
	List(ctx context.Context, userID string, opts ListSessionsOptions) ([]session.Session, error)
}

// ListSessionsOptions provides filtering options for listing sessions.
// Results are ordered by start time ascending.
type ListSessionsOptions struct {
	Since *time.Time
	Limit int
}

// RemoteStore receives summaries of ended sessions. Both calls are upserts
// keyed by session id.
type RemoteStore interface {
	UpsertStudySession(ctx context.Context, rec *StudySessionRecord) error
	UpsertLearningAnalytics(ctx context.Context, rec *LearningAnalyticsRecord) error
}

// StudySessionRecord is the per-session summary row.
type StudySessionRecord struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	ActivityType    string    `json:"activity_type"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationMinutes int       `json:"duration_minutes"`
	AIQueries       int       `json:"ai_queries"`
	NotesCreated    int       `json:"notes_created"`
	FilesUploaded   int       `json:"files_uploaded"`
	WordsWritten    int       `json:"words_written"`
}

// LearningAnalyticsRecord is the long-term analytics row for a session.
type LearningAnalyticsRecord struct {
	SessionID         string             `json:"session_id"`
	UserID            string             `json:"user_id"`
	Activities        []session.Activity `json:"activities"`
	Breaks            []session.Break    `json:"breaks"`
	ProductivityScore int                `json:"productivity_score"`
	KnowledgeAreas    []string           `json:"knowledge_areas"`
	TimeSpentMinutes  int                `json:"time_spent_minutes"`
}
