package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/studytrack/internal/clock"
	"github.com/rpggio/studytrack/internal/domain/productivity"
	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	order    []string
	writes   int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*session.Session)}
}

func (s *memStore) Upsert(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		s.order = append(s.order, sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	s.writes++
	return nil
}

func (s *memStore) GetActive(_ context.Context, userID string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if sess := s.sessions[id]; sess.UserID == userID && sess.IsActive {
			return sess.Clone(), nil
		}
	}
	return nil, nil
}

func (s *memStore) get(id string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id].Clone()
}

type syncRecorder struct {
	mu     sync.Mutex
	synced []*session.Session
}

func (r *syncRecorder) Enqueue(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced = append(r.synced, sess)
}

type observerRecorder struct {
	breaks []*session.Session
	ends   []*session.Session
}

func (o *observerRecorder) OnAutoBreak(sess *session.Session) { o.breaks = append(o.breaks, sess) }
func (o *observerRecorder) OnAutoEnd(sess *session.Session)   { o.ends = append(o.ends, sess) }

type fixture struct {
	clock    *clock.Fake
	store    *memStore
	syncer   *syncRecorder
	observer *observerRecorder
	machine  *session.Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clock.NewFake(t0),
		store:    newMemStore(),
		syncer:   &syncRecorder{},
		observer: &observerRecorder{},
	}
	f.machine = session.NewMachine("user1", session.Options{
		Clock:    f.clock,
		Store:    f.store,
		Syncer:   f.syncer,
		Observer: f.observer,
		Policy:   session.DefaultPolicy(),
	})
	return f
}

func TestMachine_TenMinuteSessionWithoutBreaks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	started, err := f.machine.Start(ctx, "note_editing")
	require.NoError(t, err)
	require.NotEmpty(t, started.ID)
	require.Equal(t, session.StateActive, started.State())

	for i := 0; i < 3; i++ {
		f.clock.Advance(2 * time.Minute)
		_, err := f.machine.RecordActivity(ctx, session.ActivityNoteCreated, map[string]any{"wordCount": 100})
		require.NoError(t, err)
	}
	f.clock.Advance(4 * time.Minute)

	ended, err := f.machine.End(ctx)
	require.NoError(t, err)
	require.Equal(t, session.StateEnded, ended.State())
	require.Equal(t, (10 * time.Minute).Milliseconds(), ended.TotalTimeMs)
	require.Empty(t, ended.Breaks)
	require.Zero(t, productivity.BreakTime(ended, f.clock.Now()))
	require.Equal(t, 71, productivity.Score(ended, f.clock.Now()))

	require.Len(t, f.syncer.synced, 1)
	require.Equal(t, ended.ID, f.syncer.synced[0].ID)
	require.False(t, f.store.get(ended.ID).IsActive)
	require.Zero(t, f.clock.Pending(), "timers must be cancelled on end")
}

func TestMachine_InactivityOpensOneBreak(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Start(ctx, "")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.machine.RecordActivity(ctx, session.ActivityContentViewed, nil)
	require.NoError(t, err)
	lastActivity := f.clock.Now()

	f.clock.Advance(6 * time.Minute)

	sess, state := f.machine.Current()
	require.Equal(t, session.StateOnBreak, state)
	require.Len(t, sess.Breaks, 1)
	require.Equal(t, lastActivity.Add(5*time.Minute), sess.Breaks[0].Start)
	require.Nil(t, sess.Breaks[0].End)
	require.Len(t, f.observer.breaks, 1)
	require.Equal(t, session.DefaultActivityType, sess.ActivityType)
}

func TestMachine_ActivityClosesBreakAndRearms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Start(ctx, "general")
	require.NoError(t, err)
	f.clock.Advance(7 * time.Minute)

	sess, err := f.machine.RecordActivity(ctx, session.ActivityAIQuery, map[string]any{"prompt_length": 40})
	require.NoError(t, err)
	require.Equal(t, session.StateActive, sess.State())
	require.Len(t, sess.Breaks, 1)
	require.NotNil(t, sess.Breaks[0].End)
	require.Equal(t, (2 * time.Minute).Milliseconds(), *sess.Breaks[0].DurationMs)

	// re-armed from the activity: nothing at +4m, a break at +5m
	f.clock.Advance(4 * time.Minute)
	_, state := f.machine.Current()
	require.Equal(t, session.StateActive, state)
	f.clock.Advance(time.Minute)
	sess, state = f.machine.Current()
	require.Equal(t, session.StateOnBreak, state)
	require.Len(t, sess.Breaks, 2)
}

func TestMachine_AutoEndAfterInactivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Start(ctx, "general")
	require.NoError(t, err)
	f.clock.Advance(3 * time.Minute)
	_, err = f.machine.RecordActivity(ctx, session.ActivityFileUploaded, map[string]any{"size": 2048})
	require.NoError(t, err)
	lastActivity := f.clock.Now()

	f.clock.Advance(45 * time.Minute)

	sess, state := f.machine.Current()
	require.Equal(t, session.StateEnded, state)
	require.Equal(t, lastActivity.Add(30*time.Minute), *sess.EndTime)
	require.Equal(t, sess.EndTime.Sub(sess.StartTime).Milliseconds(), sess.TotalTimeMs)
	require.Len(t, sess.Breaks, 1)
	require.NotNil(t, sess.Breaks[0].End, "open break closes on end")
	require.Equal(t, (25 * time.Minute).Milliseconds(), *sess.Breaks[0].DurationMs)
	require.Len(t, f.observer.ends, 1)
	require.Len(t, f.syncer.synced, 1)
	require.Zero(t, f.clock.Pending())
}

func TestMachine_StartWhileActiveEndsPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.machine.Start(ctx, "general")
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)
	_, err = f.machine.Pause(ctx)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	second, err := f.machine.Start(ctx, "quiz")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	prev := f.store.get(first.ID)
	require.False(t, prev.IsActive)
	require.Equal(t, (3 * time.Minute).Milliseconds(), prev.TotalTimeMs)
	require.NotNil(t, prev.Breaks[0].End)
	require.Len(t, f.syncer.synced, 1)
	require.Equal(t, first.ID, f.syncer.synced[0].ID)

	cur, state := f.machine.Current()
	require.Equal(t, session.StateActive, state)
	require.Equal(t, second.ID, cur.ID)
}

func TestMachine_InvalidTransitionsAreNoOps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sess, err := f.machine.RecordActivity(ctx, session.ActivityNoteCreated, nil)
	require.ErrorIs(t, err, session.ErrInvalidTransition)
	require.Nil(t, sess)

	_, err = f.machine.Pause(ctx)
	require.ErrorIs(t, err, session.ErrInvalidTransition)

	ended, err := f.machine.End(ctx)
	require.NoError(t, err)
	require.Nil(t, ended)

	_, err = f.machine.Start(ctx, "general")
	require.NoError(t, err)
	_, err = f.machine.Resume(ctx)
	require.ErrorIs(t, err, session.ErrInvalidTransition)

	_, err = f.machine.Pause(ctx)
	require.NoError(t, err)
	before, _ := f.machine.Current()
	writes := f.store.writes

	_, err = f.machine.Pause(ctx)
	require.ErrorIs(t, err, session.ErrInvalidTransition)
	after, _ := f.machine.Current()
	require.Equal(t, before.Breaks, after.Breaks)
	require.Equal(t, writes, f.store.writes)

	_, err = f.machine.RecordActivity(ctx, session.ActivityType("quiz_taken"), nil)
	require.ErrorIs(t, err, session.ErrInvalidInput)

	_, err = f.machine.End(ctx)
	require.NoError(t, err)
	_, err = f.machine.RecordActivity(ctx, session.ActivityNoteCreated, nil)
	require.ErrorIs(t, err, session.ErrInvalidTransition)
	_, err = f.machine.End(ctx)
	require.ErrorIs(t, err, session.ErrInvalidTransition)
	require.Len(t, f.syncer.synced, 1)
}

func TestMachine_PauseResumeRecordsDuration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Start(ctx, "general")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.machine.Pause(ctx)
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)
	sess, err := f.machine.Resume(ctx)
	require.NoError(t, err)

	require.Equal(t, session.StateActive, sess.State())
	require.Equal(t, int64(90_000), *sess.Breaks[0].DurationMs)
	now := f.clock.Now()
	require.Equal(t, sess.TotalTimeAt(now), productivity.ActiveTime(sess, now)+productivity.BreakTime(sess, now))
}

func TestMachine_AutoBreakWhileManuallyPausedIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Start(ctx, "general")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.machine.Pause(ctx)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	sess, state := f.machine.Current()
	require.Equal(t, session.StateOnBreak, state)
	require.Len(t, sess.Breaks, 1)
	require.Empty(t, f.observer.breaks)
}

func TestMachine_SnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Start(ctx, "general")
	require.NoError(t, err)
	data := map[string]any{"contentId": "c1"}
	sess, err := f.machine.RecordActivity(ctx, session.ActivityContentViewed, data)
	require.NoError(t, err)

	data["contentId"] = "mutated"
	sess.Activities[0].Data["contentId"] = "mutated"
	sess.Activities = nil

	cur, _ := f.machine.Current()
	require.Len(t, cur.Activities, 1)
	require.Equal(t, "c1", cur.Activities[0].Data["contentId"])
}

func TestMachine_SnapshotsCopyNestedPayloads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Start(ctx, "general")
	require.NoError(t, err)
	tags := []any{"algebra"}
	data := map[string]any{"tags": tags, "meta": map[string]any{"page": 3}}
	sess, err := f.machine.RecordActivity(ctx, session.ActivityNoteCreated, data)
	require.NoError(t, err)

	tags[0] = "changed by caller"
	sess.Activities[0].Data["tags"].([]any)[0] = "changed in snapshot"
	sess.Activities[0].Data["meta"].(map[string]any)["page"] = 99

	cur, _ := f.machine.Current()
	require.Equal(t, []any{"algebra"}, cur.Activities[0].Data["tags"])
	require.Equal(t, map[string]any{"page": 3}, cur.Activities[0].Data["meta"])
	require.Equal(t, []any{"algebra"}, f.store.get(cur.ID).Activities[0].Data["tags"])
}

func TestMachine_PersistenceFailureKeepsStateAndRetries(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	store := &mocks.SessionRepository{}
	writeErr := errors.New("disk full")

	store.On("Upsert", ctx, mock.Anything).Return(nil).Once()
	store.On("Upsert", ctx, mock.Anything).Return(writeErr).Once()
	store.On("Upsert", ctx, mock.Anything).Return(nil)

	m := session.NewMachine("user1", session.Options{Clock: clk, Store: store})

	_, err := m.Start(ctx, "general")
	require.NoError(t, err)

	clk.Advance(time.Minute)
	sess, err := m.RecordActivity(ctx, session.ActivityNoteCreated, nil)
	require.ErrorIs(t, err, session.ErrPersistence)
	require.ErrorIs(t, err, writeErr)
	require.Len(t, sess.Activities, 1)

	clk.Advance(time.Minute)
	sess, err = m.RecordActivity(ctx, session.ActivityNoteCreated, nil)
	require.NoError(t, err)
	require.Len(t, sess.Activities, 2)

	last := store.Calls[len(store.Calls)-1].Arguments.Get(1).(*session.Session)
	require.Len(t, last.Activities, 2)
	store.AssertNumberOfCalls(t, "Upsert", 3)
}

func TestMachine_RestoreResumesTracking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	persisted := &session.Session{
		ID:           "restored",
		UserID:       "user1",
		StartTime:    t0.Add(-10 * time.Minute),
		ActivityType: "general",
		IsActive:     true,
		Activities: []session.Activity{
			{Type: session.ActivityNoteCreated, Timestamp: t0.Add(-2 * time.Minute)},
		},
	}
	require.NoError(t, f.store.Upsert(ctx, persisted))

	sess, err := f.machine.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, "restored", sess.ID)
	require.Equal(t, session.StateActive, sess.State())

	f.clock.Advance(3 * time.Minute)
	cur, state := f.machine.Current()
	require.Equal(t, session.StateOnBreak, state)
	require.Equal(t, t0.Add(3*time.Minute), cur.Breaks[0].Start)
}

func TestMachine_RestoreExpiredSessionEndsIt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	lastActivity := t0.Add(-40 * time.Minute)
	require.NoError(t, f.store.Upsert(ctx, &session.Session{
		ID:        "stale",
		UserID:    "user1",
		StartTime: t0.Add(-50 * time.Minute),
		IsActive:  true,
		Activities: []session.Activity{
			{Type: session.ActivityAIQuery, Timestamp: lastActivity},
		},
	}))

	sess, err := f.machine.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, session.StateEnded, sess.State())
	require.Equal(t, lastActivity.Add(30*time.Minute), *sess.EndTime)
	require.Len(t, f.syncer.synced, 1)
	require.Zero(t, f.clock.Pending())
}

func TestMachine_RestoreAfterManualBreakKeepsBreaksDisjoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Start(ctx, "general")
	require.NoError(t, err)
	_, err = f.machine.RecordActivity(ctx, session.ActivityNoteCreated, nil)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.machine.Pause(ctx)
	require.NoError(t, err)
	f.clock.Advance(9 * time.Minute)
	_, err = f.machine.Resume(ctx)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)
	require.NoError(t, f.machine.Close(ctx))

	restarted := session.NewMachine("user1", session.Options{
		Clock:  f.clock,
		Store:  f.store,
		Policy: session.DefaultPolicy(),
	})
	_, err = restarted.Restore(ctx)
	require.NoError(t, err)
	f.clock.Advance(time.Second)

	cur, state := restarted.Current()
	require.Equal(t, session.StateOnBreak, state)
	require.Len(t, cur.Breaks, 2)
	require.Equal(t, t0.Add(10*time.Minute), *cur.Breaks[0].End)
	require.Equal(t, t0.Add(10*time.Minute), cur.Breaks[1].Start)

	now := f.clock.Now()
	total := cur.TotalTimeAt(now)
	require.Equal(t, 12*time.Minute+time.Second, total)
	require.Equal(t, total, productivity.ActiveTime(cur, now)+productivity.BreakTime(cur, now))
	require.Equal(t, time.Minute, productivity.ActiveTime(cur, now))
}

func TestMachine_CloseCancelsTimers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.machine.Start(ctx, "general")
	require.NoError(t, err)
	require.NoError(t, f.machine.Close(ctx))

	f.clock.Advance(time.Hour)
	_, state := f.machine.Current()
	require.Equal(t, session.StateActive, state)
	require.Empty(t, f.syncer.synced)
}

func TestTracker_OneMachinePerUser(t *testing.T) {
	ctx := context.Background()
	tracker := session.NewTracker(session.Options{
		Clock: clock.NewFake(t0),
		Store: newMemStore(),
	})

	a, err := tracker.Machine(ctx, "alice")
	require.NoError(t, err)
	again, err := tracker.Machine(ctx, "alice")
	require.NoError(t, err)
	b, err := tracker.Machine(ctx, "bob")
	require.NoError(t, err)

	require.Same(t, a, again)
	require.NotSame(t, a, b)
	require.Equal(t, "bob", b.UserID())

	_, err = tracker.Machine(ctx, "")
	require.ErrorIs(t, err, session.ErrInvalidInput)
	require.NoError(t, tracker.Close(ctx))
}
