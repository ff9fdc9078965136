package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rpggio/studytrack/internal/repository"
)

// RemoteRepository implements repository.RemoteStore on local tables, for
// single-host deployments without a hosted backend.
type RemoteRepository struct {
	db *DB
}

// NewRemoteRepository creates a new RemoteRepository
func NewRemoteRepository(db *DB) *RemoteRepository {
	return &RemoteRepository{db: db}
}

// UpsertStudySession inserts or replaces the summary row for a session.
func (r *RemoteRepository) UpsertStudySession(ctx context.Context, rec *repository.StudySessionRecord) error {
	query := `
		INSERT INTO study_sessions (
			session_id, user_id, activity_type, started_at, ended_at,
			duration_minutes, ai_queries, notes_created, files_uploaded, words_written
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			activity_type = excluded.activity_type,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			duration_minutes = excluded.duration_minutes,
			ai_queries = excluded.ai_queries,
			notes_created = excluded.notes_created,
			files_uploaded = excluded.files_uploaded,
			words_written = excluded.words_written,
			synced_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.SessionID,
		rec.UserID,
		rec.ActivityType,
		formatTime(rec.StartedAt),
		formatTime(rec.EndedAt),
		rec.DurationMinutes,
		rec.AIQueries,
		rec.NotesCreated,
		rec.FilesUploaded,
		rec.WordsWritten,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert study session: %w", err)
	}
	return nil
}

// UpsertLearningAnalytics inserts or replaces the analytics row for a
// session. Slice fields are stored as JSON.
func (r *RemoteRepository) UpsertLearningAnalytics(ctx context.Context, rec *repository.LearningAnalyticsRecord) error {
	activities, err := json.Marshal(rec.Activities)
	if err != nil {
		return fmt.Errorf("failed to encode activities: %w", err)
	}
	breaks, err := json.Marshal(rec.Breaks)
	if err != nil {
		return fmt.Errorf("failed to encode breaks: %w", err)
	}
	areas, err := json.Marshal(rec.KnowledgeAreas)
	if err != nil {
		return fmt.Errorf("failed to encode knowledge areas: %w", err)
	}

	query := `
		INSERT INTO learning_analytics (
			session_id, user_id, activities, breaks,
			productivity_score, knowledge_areas, time_spent_minutes
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			activities = excluded.activities,
			breaks = excluded.breaks,
			productivity_score = excluded.productivity_score,
			knowledge_areas = excluded.knowledge_areas,
			time_spent_minutes = excluded.time_spent_minutes,
			synced_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.ExecContext(ctx, query,
		rec.SessionID,
		rec.UserID,
		string(activities),
		string(breaks),
		rec.ProductivityScore,
		string(areas),
		rec.TimeSpentMinutes,
	); err != nil {
		return fmt.Errorf("failed to upsert learning analytics: %w", err)
	}
	return nil
}

// GetStudySession returns the summary row for a session.
func (r *RemoteRepository) GetStudySession(ctx context.Context, sessionID string) (*repository.StudySessionRecord, error) {
	query := `
		SELECT session_id, user_id, activity_type, started_at, ended_at,
		       duration_minutes, ai_queries, notes_created, files_uploaded, words_written
		FROM study_sessions
		WHERE session_id = ?
	`
	var rec repository.StudySessionRecord
	var started, ended string
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID,
		&rec.UserID,
		&rec.ActivityType,
		&started,
		&ended,
		&rec.DurationMinutes,
		&rec.AIQueries,
		&rec.NotesCreated,
		&rec.FilesUploaded,
		&rec.WordsWritten,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get study session: %w", err)
	}
	if rec.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if rec.EndedAt, err = parseTime(ended); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetLearningAnalytics returns the analytics row for a session.
func (r *RemoteRepository) GetLearningAnalytics(ctx context.Context, sessionID string) (*repository.LearningAnalyticsRecord, error) {
	query := `
		SELECT session_id, user_id, activities, breaks,
		       productivity_score, knowledge_areas, time_spent_minutes
		FROM learning_analytics
		WHERE session_id = ?
	`
	var rec repository.LearningAnalyticsRecord
	var activities, breaks, areas string
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID,
		&rec.UserID,
		&activities,
		&breaks,
		&rec.ProductivityScore,
		&areas,
		&rec.TimeSpentMinutes,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learning analytics: %w", err)
	}
	if err := json.Unmarshal([]byte(activities), &rec.Activities); err != nil {
		return nil, fmt.Errorf("invalid stored activities: %w", err)
	}
	if err := json.Unmarshal([]byte(breaks), &rec.Breaks); err != nil {
		return nil, fmt.Errorf("invalid stored breaks: %w", err)
	}
	if err := json.Unmarshal([]byte(areas), &rec.KnowledgeAreas); err != nil {
		return nil, fmt.Errorf("invalid stored knowledge areas: %w", err)
	}
	return &rec, nil
}
