// Package productivity scores study sessions.
package productivity

import (
	"math"
	"time"

	"github.com/rpggio/studytrack/internal/domain/session"
)

const (
	activeWeight  = 0.7
	densityWeight = 0.3
	// densityCeiling is the activities-per-minute rate that earns the full
	// density component.
	densityCeiling = 10.0
)

// BreakTime sums closed break durations plus the elapsed part of an open
// break as of now.
func BreakTime(s *session.Session, now time.Time) time.Duration {
	var total time.Duration
	for _, b := range s.Breaks {
		switch {
		case b.DurationMs != nil:
			total += time.Duration(*b.DurationMs) * time.Millisecond
		case b.End != nil:
			total += b.End.Sub(b.Start)
		default:
			if open := now.Sub(b.Start); open > 0 {
				total += open
			}
		}
	}
	return total
}

// ActiveTime is total time minus break time, never negative.
func ActiveTime(s *session.Session, now time.Time) time.Duration {
	active := s.TotalTimeAt(now) - BreakTime(s, now)
	if active < 0 {
		return 0
	}
	return active
}

// Score blends the active-time ratio and activity density into 0..100.
// It works on live and ended sessions alike and never mutates s.
func Score(s *session.Session, now time.Time) int {
	total := s.TotalTimeAt(now)
	if total <= 0 {
		return 0
	}

	activeRatio := float64(ActiveTime(s, now)) / float64(total)
	density := float64(len(s.Activities)) / total.Minutes()
	normalizedDensity := math.Min(density/densityCeiling, 1)

	score := int(math.Round((activeRatio*activeWeight + normalizedDensity*densityWeight) * 100))
	return max(0, min(100, score))
}
