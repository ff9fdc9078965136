package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Tracker keeps exactly one Machine per user.
type Tracker struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	machines map[string]*Machine
}

// NewTracker creates a tracker whose machines share opts.
func NewTracker(opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{
		opts:     opts,
		logger:   logger,
		machines: make(map[string]*Machine),
	}
}

// Machine returns the user's machine, creating it and restoring any
// persisted active session on first use.
func (t *Tracker) Machine(ctx context.Context, userID string) (*Machine, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if m, ok := t.machines[userID]; ok {
		return m, nil
	}
	m := NewMachine(userID, t.opts)
	if _, err := m.Restore(ctx); err != nil {
		// A failed restore still leaves a usable idle machine.
		t.logger.Warn("failed to restore session", "user_id", userID, "error", err)
	}
	t.machines[userID] = m
	return m, nil
}

// Close tears down every machine.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for id, m := range t.machines {
		if err := m.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing machine for %s: %w", id, err))
		}
	}
	t.machines = make(map[string]*Machine)
	return errors.Join(errs...)
}
