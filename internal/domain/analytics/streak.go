package analytics

import (
	"sort"
	"time"

	"github.com/rpggio/studytrack/internal/domain/session"
)

// StreakState counts consecutive study days.
type StreakState struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// Streaks computes the current and longest run of study days. A day is the
// local calendar day of a session's start. The current streak is anchored
// on today, or on yesterday when today has no session yet.
func Streaks(sessions []session.Session, now time.Time, loc *time.Location) StreakState {
	loc = location(loc)
	seen := map[time.Time]bool{}
	for _, s := range sessions {
		seen[civil(s.StartTime, loc)] = true
	}
	if len(seen) == 0 {
		return StreakState{}
	}

	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}

	today := civil(now, loc)
	anchor := today
	if !seen[anchor] {
		anchor = today.AddDate(0, 0, -1)
	}
	current := 0
	for d := anchor; seen[d]; d = d.AddDate(0, 0, -1) {
		current++
	}

	return StreakState{Current: current, Longest: longest}
}

// civil maps t to midnight UTC of its calendar date in loc, so day
// arithmetic is unaffected by DST.
func civil(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
