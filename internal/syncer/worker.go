// Package syncer pushes ended sessions to the remote store on background
// workers.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/repository"
)

var (
	// ErrSync wraps a failed remote write.
	ErrSync = errors.New("sync failed")

	// ErrQueueFull is returned when the queue has no room for a session.
	ErrQueueFull = errors.New("sync queue full")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("syncer closed")
)

// Options configures a Worker.
type Options struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Stats counts what happened to enqueued sessions.
type Stats struct {
	Synced  int64
	Failed  int64
	Dropped int64
}

// Worker is a bounded queue drained by a fixed pool of goroutines.
type Worker struct {
	remote  repository.RemoteStore
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	queue  chan *session.Session
	closed bool
	wg     sync.WaitGroup

	synced  atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// New starts the workers.
func New(remote repository.RemoteStore, opts Options) *Worker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &Worker{
		remote:  remote,
		timeout: opts.Timeout,
		logger:  logger,
		queue:   make(chan *session.Session, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	return w
}

// Enqueue hands a session to the workers without blocking. A full queue
// drops the session with a warning.
func (w *Worker) Enqueue(sess *session.Session) {
	if err := w.TryEnqueue(sess); err != nil {
		w.dropped.Add(1)
		w.logger.Warn("session not queued for sync", "session_id", sess.ID, "error", err)
	}
}

// TryEnqueue is Enqueue reporting why a session was not queued.
func (w *Worker) TryEnqueue(sess *session.Session) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.queue <- sess:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting sessions and waits for queued ones to finish or for
// ctx to end.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining sync queue: %w", ctx.Err())
	}
}

// Stats returns a snapshot of the counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Synced:  w.synced.Load(),
		Failed:  w.failed.Load(),
		Dropped: w.dropped.Load(),
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	for sess := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := w.Sync(ctx, sess)
		cancel()
		if err != nil {
			w.failed.Add(1)
			w.logger.Warn("session sync failed", "session_id", sess.ID, "error", err)
			continue
		}
		w.synced.Add(1)
		w.logger.Debug("session synced", "session_id", sess.ID)
	}
}

// Sync writes both remote rows for sess.
func (w *Worker) Sync(ctx context.Context, sess *session.Session) error {
	study, analytics := BuildRecords(sess)
	if err := w.remote.UpsertStudySession(ctx, study); err != nil {
		return fmt.Errorf("%w: study session: %w", ErrSync, err)
	}
	if err := w.remote.UpsertLearningAnalytics(ctx, analytics); err != nil {
		return fmt.Errorf("%w: learning analytics: %w", ErrSync, err)
	}
	return nil
}
