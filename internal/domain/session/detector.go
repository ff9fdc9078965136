package session

import (
	"time"

	"github.com/rpggio/studytrack/internal/clock"
)

// Policy holds the inactivity thresholds enforced by the detector.
type Policy struct {
	BreakThreshold   time.Duration
	AutoEndThreshold time.Duration
}

// DefaultPolicy opens a break after 5 minutes of inactivity and ends the
// session after 30.
func DefaultPolicy() Policy {
	return Policy{
		BreakThreshold:   5 * time.Minute,
		AutoEndThreshold: 30 * time.Minute,
	}
}

// detector owns the two inactivity timers of one machine. Every arm or
// cancel bumps the generation so callbacks from superseded timers can tell
// they are stale.
type detector struct {
	clock      clock.Clock
	policy     Policy
	breakTimer clock.Timer
	endTimer   clock.Timer
	generation uint64
}

// arm schedules both timers relative to lastActivity, replacing any armed
// ones. Deadlines already in the past fire immediately.
func (d *detector) arm(lastActivity time.Time, onBreak, onEnd func(gen uint64, deadline time.Time)) {
	d.stop()
	d.generation++
	gen := d.generation
	now := d.clock.Now()

	breakAt := lastActivity.Add(d.policy.BreakThreshold)
	endAt := lastActivity.Add(d.policy.AutoEndThreshold)

	d.breakTimer = d.clock.AfterFunc(nonNegative(breakAt.Sub(now)), func() { onBreak(gen, breakAt) })
	d.endTimer = d.clock.AfterFunc(nonNegative(endAt.Sub(now)), func() { onEnd(gen, endAt) })
}

// cancel stops both timers and invalidates callbacks already in flight.
func (d *detector) cancel() {
	d.stop()
	d.generation++
}

func (d *detector) stop() {
	if d.breakTimer != nil {
		d.breakTimer.Stop()
		d.breakTimer = nil
	}
	if d.endTimer != nil {
		d.endTimer.Stop()
		d.endTimer = nil
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
