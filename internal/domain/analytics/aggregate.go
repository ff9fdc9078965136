// Package analytics folds stored session history into period aggregates,
// streaks and insights. Everything except Service is a pure function of
// its arguments.
package analytics

import (
	"fmt"
	"time"

	"github.com/rpggio/studytrack/internal/domain/session"
)

// Bucket accumulates the sessions that started in one period.
type Bucket struct {
	Minutes  int `json:"minutes"`
	Sessions int `json:"sessions"`
}

// Aggregates holds sparse buckets keyed by YYYY-MM-DD, YYYY-Www and YYYY-MM.
type Aggregates struct {
	Daily   map[string]Bucket `json:"daily"`
	Weekly  map[string]Bucket `json:"weekly"`
	Monthly map[string]Bucket `json:"monthly"`
}

// Window returns the sessions that started within windowDays before now.
// windowDays <= 0 keeps every session that started at or before now.
func Window(sessions []session.Session, windowDays int, now time.Time) []session.Session {
	out := make([]session.Session, 0, len(sessions))
	var from time.Time
	if windowDays > 0 {
		from = now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	}
	for _, s := range sessions {
		if s.StartTime.After(now) {
			continue
		}
		if windowDays > 0 && s.StartTime.Before(from) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Aggregate buckets the windowed sessions by local day, ISO week and month.
func Aggregate(sessions []session.Session, windowDays int, now time.Time, loc *time.Location) Aggregates {
	agg := Aggregates{
		Daily:   map[string]Bucket{},
		Weekly:  map[string]Bucket{},
		Monthly: map[string]Bucket{},
	}
	for _, s := range Window(sessions, windowDays, now) {
		minutes := session.DurationMinutes(&s, now)
		start := s.StartTime.In(location(loc))
		add(agg.Daily, DayKey(start), minutes)
		add(agg.Weekly, WeekKey(start), minutes)
		add(agg.Monthly, MonthKey(start), minutes)
	}
	return agg
}

func add(buckets map[string]Bucket, key string, minutes int) {
	b := buckets[key]
	b.Minutes += minutes
	b.Sessions++
	buckets[key] = b
}

// DayKey formats t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// WeekKey formats the ISO week of t as YYYY-Www.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
