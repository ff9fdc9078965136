// Package clock abstracts wall time and delayed callbacks so timer-driven
// code can be tested deterministically.
package clock

import "time"

// Clock supplies the current time and schedules delayed callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

// Real is a Clock backed by the time package.
type Real struct{}

// NewReal returns the system clock.
func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
