package session

import "context"

// Store is the local session cache the machine writes through on every
// state change.
type Store interface {
	Upsert(ctx context.Context, sess *Session) error
	GetActive(ctx context.Context, userID string) (*Session, error)
}

// Syncer accepts ended sessions for background remote sync. Enqueue must
// not block.
type Syncer interface {
	Enqueue(sess *Session)
}

// Observer is notified of transitions the detector makes on its own.
type Observer interface {
	OnAutoBreak(sess *Session)
	OnAutoEnd(sess *Session)
}
