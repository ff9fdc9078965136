package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/studytrack/internal/clock"
)

// Options configures a Machine. Clock and Store are required.
type Options struct {
	Clock    clock.Clock
	Store    Store
	Syncer   Syncer
	Observer Observer
	Policy   Policy
	Logger   *slog.Logger
}

// Machine owns the single in-flight session of one user. Public methods and
// detector callbacks are serialised by mu.
type Machine struct {
	userID   string
	clock    clock.Clock
	store    Store
	syncer   Syncer
	observer Observer
	logger   *slog.Logger

	mu           sync.Mutex
	current      *Session
	lastActivity time.Time
	detector     detector
	dirty        bool
	closed       bool
}

// NewMachine creates an idle machine for userID.
func NewMachine(userID string, opts Options) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	policy := opts.Policy
	if policy.BreakThreshold <= 0 || policy.AutoEndThreshold <= 0 {
		policy = DefaultPolicy()
	}
	return &Machine{
		userID:   userID,
		clock:    opts.Clock,
		store:    opts.Store,
		syncer:   opts.Syncer,
		observer: opts.Observer,
		logger:   logger.With("user_id", userID),
		detector: detector{clock: opts.Clock, policy: policy},
	}
}

// UserID returns the owner of the machine.
func (m *Machine) UserID() string {
	return m.userID
}

// Current returns a snapshot of the tracked session and its state. The
// session is nil when the machine is idle.
func (m *Machine) Current() (*Session, State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, StateIdle
	}
	m.refreshLocked(m.clock.Now())
	return m.current.Clone(), m.current.State()
}

// Restore reloads the user's active session from the store after a
// restart. A session idle past the auto-end threshold is ended at the
// moment it would have auto-ended.
func (m *Machine) Restore(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.IsActive {
		return m.current.Clone(), nil
	}

	sess, err := m.store.GetActive(ctx, m.userID)
	if err != nil {
		return nil, fmt.Errorf("loading active session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}

	m.current = sess.Clone()
	m.lastActivity = m.current.LastActivityTime()

	deadline := m.lastActivity.Add(m.detector.policy.AutoEndThreshold)
	if !m.clock.Now().Before(deadline) {
		m.logger.Info("restored session expired, ending", "session_id", sess.ID)
		err := m.endLocked(ctx, deadline)
		return m.current.Clone(), err
	}

	m.logger.Info("restored active session", "session_id", sess.ID, "state", m.current.State())
	m.armLocked()
	return m.current.Clone(), nil
}

// Start begins a new session. A session still in progress is ended first
// so it is kept in history.
func (m *Machine) Start(ctx context.Context, activityType string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if activityType == "" {
		activityType = DefaultActivityType
	}
	now := m.clock.Now()

	var prevErr error
	if m.current != nil && m.current.IsActive {
		m.logger.Info("ending previous session before start", "session_id", m.current.ID)
		prevErr = m.endLocked(ctx, now)
	}

	m.current = &Session{
		ID:           uuid.NewString(),
		UserID:       m.userID,
		StartTime:    now,
		ActivityType: activityType,
		IsActive:     true,
		Breaks:       []Break{},
		Activities:   []Activity{},
	}
	m.lastActivity = now
	m.armLocked()
	m.logger.Info("session started", "session_id", m.current.ID, "activity_type", activityType)

	if err := m.persistLocked(ctx); err != nil {
		return m.current.Clone(), err
	}
	if prevErr != nil {
		return m.current.Clone(), prevErr
	}
	return m.current.Clone(), nil
}

// RecordActivity appends an activity, closing an open break and resetting
// the inactivity timers.
func (m *Machine) RecordActivity(ctx context.Context, typ ActivityType, data map[string]any) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !typ.Valid() {
		return m.snapshotLocked(), fmt.Errorf("%w: unknown activity type %q", ErrInvalidInput, typ)
	}
	if err := m.requireLocked("record activity", StateActive, StateOnBreak); err != nil {
		return m.snapshotLocked(), err
	}

	now := m.clock.Now()
	if last := m.current.Activities; len(last) > 0 && now.Before(last[len(last)-1].Timestamp) {
		now = last[len(last)-1].Timestamp
	}
	if b := m.current.OpenBreak(); b != nil {
		closeBreak(b, now)
	}

	if data == nil {
		data = map[string]any{}
	}
	m.current.Activities = append(m.current.Activities, Activity{
		Type:      typ,
		Timestamp: now,
		Data:      cloneData(data),
	})
	m.lastActivity = now
	m.refreshLocked(now)
	m.armLocked()
	m.logger.Debug("activity recorded", "session_id", m.current.ID, "type", typ)

	err := m.persistLocked(ctx)
	return m.current.Clone(), err
}

// Pause opens a break.
func (m *Machine) Pause(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauseLocked(ctx, m.clock.Now())
}

// Resume closes the open break.
func (m *Machine) Resume(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLocked("resume", StateOnBreak); err != nil {
		return m.snapshotLocked(), err
	}
	now := m.clock.Now()
	closeBreak(m.current.OpenBreak(), now)
	m.refreshLocked(now)
	m.logger.Debug("break closed", "session_id", m.current.ID)

	err := m.persistLocked(ctx)
	return m.current.Clone(), err
}

// End finalises the session and hands it to the syncer. Ending an idle
// machine is a no-op and returns a nil session.
func (m *Machine) End(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, nil
	}
	if err := m.requireLocked("end", StateActive, StateOnBreak); err != nil {
		return m.snapshotLocked(), err
	}
	err := m.endLocked(ctx, m.clock.Now())
	return m.current.Clone(), err
}

// Close cancels the timers without ending the session, flushing a pending
// write first. The machine accepts no timer callbacks afterwards.
func (m *Machine) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detector.cancel()
	m.closed = true
	if m.dirty && m.current != nil {
		m.refreshLocked(m.clock.Now())
		return m.persistLocked(ctx)
	}
	return nil
}

func (m *Machine) pauseLocked(ctx context.Context, at time.Time) (*Session, error) {
	if err := m.requireLocked("pause", StateActive); err != nil {
		return m.snapshotLocked(), err
	}
	// A restored session can fire an overdue auto-break whose deadline
	// falls inside a break that is already closed.
	if end := m.current.LastBreakEnd(); end != nil && at.Before(*end) {
		at = *end
	}
	m.current.Breaks = append(m.current.Breaks, Break{Start: at})
	m.refreshLocked(m.clock.Now())
	m.logger.Debug("break opened", "session_id", m.current.ID)

	err := m.persistLocked(ctx)
	return m.current.Clone(), err
}

func (m *Machine) endLocked(ctx context.Context, at time.Time) error {
	m.detector.cancel()
	if at.Before(m.current.StartTime) {
		at = m.current.StartTime
	}
	if b := m.current.OpenBreak(); b != nil {
		closeBreak(b, at)
	}
	end := at
	m.current.EndTime = &end
	m.current.IsActive = false
	m.current.TotalTimeMs = end.Sub(m.current.StartTime).Milliseconds()
	m.logger.Info("session ended", "session_id", m.current.ID, "total_ms", m.current.TotalTimeMs,
		"activities", len(m.current.Activities), "breaks", len(m.current.Breaks))

	err := m.persistLocked(ctx)
	if m.syncer != nil {
		m.syncer.Enqueue(m.current.Clone())
	}
	return err
}

func (m *Machine) onBreakDue(sessionID string, gen uint64, deadline time.Time) {
	m.mu.Lock()
	if !m.liveLocked(sessionID, gen) {
		m.mu.Unlock()
		return
	}
	sess, err := m.pauseLocked(context.Background(), deadline)
	m.mu.Unlock()

	if err != nil {
		m.logger.Debug("auto break skipped", "session_id", sessionID, "error", err)
		return
	}
	if m.observer != nil {
		m.observer.OnAutoBreak(sess)
	}
}

func (m *Machine) onEndDue(sessionID string, gen uint64, deadline time.Time) {
	m.mu.Lock()
	if !m.liveLocked(sessionID, gen) {
		m.mu.Unlock()
		return
	}
	m.logger.Info("inactivity threshold reached, ending session", "session_id", sessionID)
	err := m.endLocked(context.Background(), deadline)
	sess := m.current.Clone()
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("auto end not persisted", "session_id", sessionID, "error", err)
	}
	if m.observer != nil {
		m.observer.OnAutoEnd(sess)
	}
}

// liveLocked reports whether a detector callback still refers to the
// current, non-terminal session and the latest arming.
func (m *Machine) liveLocked(sessionID string, gen uint64) bool {
	return !m.closed &&
		m.current != nil &&
		m.current.IsActive &&
		m.current.ID == sessionID &&
		m.detector.generation == gen
}

func (m *Machine) armLocked() {
	if m.closed {
		return
	}
	id := m.current.ID
	m.detector.arm(m.lastActivity,
		func(gen uint64, deadline time.Time) { m.onBreakDue(id, gen, deadline) },
		func(gen uint64, deadline time.Time) { m.onEndDue(id, gen, deadline) },
	)
}

func (m *Machine) requireLocked(op string, allowed ...State) error {
	if m.current == nil {
		m.logger.Debug("ignoring invalid transition", "op", op, "state", StateIdle)
		return fmt.Errorf("%w: %w: cannot %s", ErrInvalidTransition, ErrNoActiveSession, op)
	}
	state := m.current.State()
	for _, s := range allowed {
		if s == state {
			return nil
		}
	}
	m.logger.Debug("ignoring invalid transition", "op", op, "state", state)
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, state)
}

func (m *Machine) refreshLocked(now time.Time) {
	if m.current != nil && m.current.IsActive {
		m.current.TotalTimeMs = m.current.TotalTimeAt(now).Milliseconds()
	}
}

// persistLocked writes the whole session. A failed write leaves the
// in-memory state intact; the next mutation writes it again.
func (m *Machine) persistLocked(ctx context.Context) error {
	if err := m.store.Upsert(ctx, m.current.Clone()); err != nil {
		m.dirty = true
		m.logger.Warn("failed to persist session", "session_id", m.current.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	m.dirty = false
	return nil
}

func (m *Machine) snapshotLocked() *Session {
	if m.current == nil {
		return nil
	}
	m.refreshLocked(m.clock.Now())
	return m.current.Clone()
}
