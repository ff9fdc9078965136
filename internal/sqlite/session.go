package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/repository"
)

// SessionRepository implements repository.SessionRepository for SQLite
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert writes the whole session, replacing its activities and breaks.
func (r *SessionRepository) Upsert(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" || sess.UserID == "" {
		return fmt.Errorf("%w: session id and user id are required", repository.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sessions (
			id, user_id, activity_type, start_time, end_time,
			total_time_ms, is_active, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			activity_type = excluded.activity_type,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			total_time_ms = excluded.total_time_ms,
			is_active = excluded.is_active,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := tx.ExecContext(ctx, query,
		sess.ID,
		sess.UserID,
		sess.ActivityType,
		formatTime(sess.StartTime),
		formatTimePtr(sess.EndTime),
		sess.TotalTimeMs,
		sess.IsActive,
	); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_activities WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("failed to clear activities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_breaks WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("failed to clear breaks: %w", err)
	}

	for i, a := range sess.Activities {
		data, err := json.Marshal(a.Data)
		if err != nil {
			return fmt.Errorf("failed to encode activity data: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_activities (session_id, seq, type, timestamp, data) VALUES (?, ?, ?, ?, ?)`,
			sess.ID, i, string(a.Type), formatTime(a.Timestamp), string(data),
		); err != nil {
			return fmt.Errorf("failed to insert activity: %w", err)
		}
	}

	for i, b := range sess.Breaks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_breaks (session_id, seq, start_time, end_time, duration_ms) VALUES (?, ?, ?, ?, ?)`,
			sess.ID, i, formatTime(b.Start), formatTimePtr(b.End), b.DurationMs,
		); err != nil {
			return fmt.Errorf("failed to insert break: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	row := r.db.QueryRowContext(ctx, selectSessions+` WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if err := r.loadChildren(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetActive returns the user's most recently started active session, or
// nil when there is none.
func (r *SessionRepository) GetActive(ctx context.Context, userID string) (*session.Session, error) {
	row := r.db.QueryRowContext(ctx,
		selectSessions+` WHERE user_id = ? AND is_active = 1 ORDER BY start_time DESC LIMIT 1`, userID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	if err := r.loadChildren(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// List returns a user's sessions ordered by start time.
func (r *SessionRepository) List(ctx context.Context, userID string, opts repository.ListSessionsOptions) ([]session.Session, error) {
	query := selectSessions + ` WHERE user_id = ?`
	args := []any{userID}
	if opts.Since != nil {
		query += ` AND start_time >= ?`
		args = append(args, formatTime(*opts.Since))
	}
	query += ` ORDER BY start_time ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	rows.Close()

	for i := range sessions {
		if err := r.loadChildren(ctx, &sessions[i]); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

const selectSessions = `
	SELECT id, user_id, activity_type, start_time, end_time, total_time_ms, is_active
	FROM sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var sess session.Session
	var start string
	var end sql.NullString
	if err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.ActivityType,
		&start,
		&end,
		&sess.TotalTimeMs,
		&sess.IsActive,
	); err != nil {
		return nil, err
	}

	var err error
	if sess.StartTime, err = parseTime(start); err != nil {
		return nil, err
	}
	if sess.EndTime, err = parseNullTime(end); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *SessionRepository) loadChildren(ctx context.Context, sess *session.Session) error {
	activities, err := r.getActivities(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to load activities: %w", err)
	}
	breaks, err := r.getBreaks(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to load breaks: %w", err)
	}
	sess.Activities = activities
	sess.Breaks = breaks
	return nil
}

func (r *SessionRepository) getActivities(ctx context.Context, sessionID string) ([]session.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, timestamp, data FROM session_activities WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := []session.Activity{}
	for rows.Next() {
		var a session.Activity
		var ts, data string
		if err := rows.Scan(&a.Type, &ts, &data); err != nil {
			return nil, err
		}
		if a.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &a.Data); err != nil {
			return nil, fmt.Errorf("invalid activity data: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (r *SessionRepository) getBreaks(ctx context.Context, sessionID string) ([]session.Break, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT start_time, end_time, duration_ms FROM session_breaks WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breaks := []session.Break{}
	for rows.Next() {
		var b session.Break
		var start string
		var end sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&start, &end, &duration); err != nil {
			return nil, err
		}
		if b.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if b.End, err = parseNullTime(end); err != nil {
			return nil, err
		}
		if duration.Valid {
			ms := duration.Int64
			b.DurationMs = &ms
		}
		breaks = append(breaks, b)
	}
	return breaks, rows.Err()
}
