package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/studytrack/internal/repository"
	"github.com/rpggio/studytrack/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWorker_SyncsEnqueuedSession(t *testing.T) {
	remote := &mocks.RemoteStore{}
	remote.On("UpsertStudySession", mock.Anything, mock.MatchedBy(func(rec *repository.StudySessionRecord) bool {
		return rec.SessionID == "s1" && rec.NotesCreated == 3
	})).Return(nil).Once()
	remote.On("UpsertLearningAnalytics", mock.Anything, mock.MatchedBy(func(rec *repository.LearningAnalyticsRecord) bool {
		return rec.SessionID == "s1" && rec.ProductivityScore == 53
	})).Return(nil).Once()

	w := New(remote, Options{QueueSize: 4, Workers: 2})
	w.Enqueue(endedSession())
	require.NoError(t, w.Close(context.Background()))

	remote.AssertExpectations(t)
	require.Equal(t, Stats{Synced: 1}, w.Stats())
}

func TestWorker_FailureIsDropped(t *testing.T) {
	remote := &mocks.RemoteStore{}
	remote.On("UpsertStudySession", mock.Anything, mock.Anything).Return(errors.New("503")).Once()

	w := New(remote, Options{})
	w.Enqueue(endedSession())
	require.NoError(t, w.Close(context.Background()))

	remote.AssertNotCalled(t, "UpsertLearningAnalytics", mock.Anything, mock.Anything)
	require.Equal(t, Stats{Failed: 1}, w.Stats())
}

func TestWorker_SyncWrapsError(t *testing.T) {
	remote := &mocks.RemoteStore{}
	cause := errors.New("conflict")
	remote.On("UpsertStudySession", mock.Anything, mock.Anything).Return(nil)
	remote.On("UpsertLearningAnalytics", mock.Anything, mock.Anything).Return(cause)

	w := New(remote, Options{})
	defer w.Close(context.Background())

	err := w.Sync(context.Background(), endedSession())
	require.ErrorIs(t, err, ErrSync)
	require.ErrorIs(t, err, cause)
}

func TestWorker_FullQueueDropsWithoutBlocking(t *testing.T) {
	remote := &mocks.RemoteStore{}
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	remote.On("UpsertStudySession", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}).Return(nil)
	remote.On("UpsertLearningAnalytics", mock.Anything, mock.Anything).Return(nil)

	w := New(remote, Options{QueueSize: 1, Workers: 1})

	w.Enqueue(endedSession())
	<-started
	require.NoError(t, w.TryEnqueue(endedSession()))
	require.ErrorIs(t, w.TryEnqueue(endedSession()), ErrQueueFull)

	done := make(chan struct{})
	go func() {
		w.Enqueue(endedSession())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	close(release)
	require.NoError(t, w.Close(context.Background()))
	require.Equal(t, Stats{Synced: 2, Dropped: 1}, w.Stats())
}

func TestWorker_CloseRejectsAndHonoursDeadline(t *testing.T) {
	remote := &mocks.RemoteStore{}
	release := make(chan struct{})
	remote.On("UpsertStudySession", mock.Anything, mock.Anything).Run(func(mock.Arguments) { <-release }).Return(nil)
	remote.On("UpsertLearningAnalytics", mock.Anything, mock.Anything).Return(nil)

	w := New(remote, Options{Workers: 1})
	w.Enqueue(endedSession())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, w.Close(ctx), context.DeadlineExceeded)
	require.ErrorIs(t, w.TryEnqueue(endedSession()), ErrClosed)

	close(release)
	require.NoError(t, w.Close(context.Background()))
}
