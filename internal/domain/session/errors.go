package session

import "errors"

var (
	// ErrInvalidTransition indicates a call that is not valid in the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrInvalidInput indicates invalid activity input.
	ErrInvalidInput = errors.New("invalid session input")
	// ErrPersistence indicates the local session cache could not be written.
	ErrPersistence = errors.New("session persistence failed")
	// ErrNoActiveSession indicates there is no session to act on.
	ErrNoActiveSession = errors.New("no active session")
)
