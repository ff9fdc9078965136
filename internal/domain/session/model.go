package session

import (
	"slices"
	"time"
)

// ActivityType identifies a recorded user action.
type ActivityType string

const (
	ActivityNoteCreated   ActivityType = "note_created"
	ActivityFileUploaded  ActivityType = "file_uploaded"
	ActivityAIQuery       ActivityType = "ai_query"
	ActivityContentViewed ActivityType = "content_viewed"
)

// Valid reports whether the type is one of the known activity kinds.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityNoteCreated, ActivityFileUploaded, ActivityAIQuery, ActivityContentViewed:
		return true
	}
	return false
}

// DefaultActivityType labels sessions started without a category.
const DefaultActivityType = "general"

// State is the lifecycle position of a tracked session.
type State string

const (
	StateIdle    State = "idle"
	StateActive  State = "active"
	StateOnBreak State = "on_break"
	StateEnded   State = "ended"
)

// Activity is a discrete recorded user action.
type Activity struct {
	Type      ActivityType   `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Break is an inactive interval inside a session. End is nil while the
// break is open.
type Break struct {
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end"`
	DurationMs *int64     `json:"duration"`
}

// Open reports whether the break has not been closed yet.
func (b Break) Open() bool {
	return b.End == nil
}

// Session is one continuous study-tracking interval.
type Session struct {
	ID           string     `json:"sessionId"`
	UserID       string     `json:"userId"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	ActivityType string     `json:"activityType"`
	TotalTimeMs  int64      `json:"totalTime"`
	IsActive     bool       `json:"isActive"`
	Breaks       []Break    `json:"breaks"`
	Activities   []Activity `json:"activities"`
}

// State derives the lifecycle state from the session fields.
func (s *Session) State() State {
	if s == nil {
		return StateIdle
	}
	if !s.IsActive {
		return StateEnded
	}
	if s.OpenBreak() != nil {
		return StateOnBreak
	}
	return StateActive
}

// OpenBreak returns the currently open break, if any.
func (s *Session) OpenBreak() *Break {
	if s == nil {
		return nil
	}
	for i := len(s.Breaks) - 1; i >= 0; i-- {
		if s.Breaks[i].Open() {
			return &s.Breaks[i]
		}
	}
	return nil
}

// LastBreakEnd returns the latest end among closed breaks, or nil.
func (s *Session) LastBreakEnd() *time.Time {
	var last *time.Time
	for i := range s.Breaks {
		if end := s.Breaks[i].End; end != nil && (last == nil || end.After(*last)) {
			last = end
		}
	}
	return last
}

// TotalTimeAt returns elapsed time: frozen for ended sessions, now-start
// for active ones.
func (s *Session) TotalTimeAt(now time.Time) time.Duration {
	if !s.IsActive {
		if s.EndTime != nil {
			return s.EndTime.Sub(s.StartTime)
		}
		return time.Duration(s.TotalTimeMs) * time.Millisecond
	}
	if now.Before(s.StartTime) {
		return 0
	}
	return now.Sub(s.StartTime)
}

// LastActivityTime is the latest of the start time and activity timestamps.
func (s *Session) LastActivityTime() time.Time {
	last := s.StartTime
	if n := len(s.Activities); n > 0 && s.Activities[n-1].Timestamp.After(last) {
		last = s.Activities[n-1].Timestamp
	}
	return last
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	out.Breaks = make([]Break, len(s.Breaks))
	for i, b := range s.Breaks {
		out.Breaks[i] = b
		if b.End != nil {
			end := *b.End
			out.Breaks[i].End = &end
		}
		if b.DurationMs != nil {
			d := *b.DurationMs
			out.Breaks[i].DurationMs = &d
		}
	}
	out.Activities = make([]Activity, len(s.Activities))
	for i, a := range s.Activities {
		out.Activities[i] = a
		out.Activities[i].Data = cloneData(a.Data)
	}
	return &out
}

// DurationMinutes is the session length in whole minutes, rounded.
func DurationMinutes(s *Session, now time.Time) int {
	d := s.TotalTimeAt(now)
	return int((d + 30*time.Second) / time.Minute)
}

// cloneData deep-copies the maps and slices a decoded JSON payload can hold.
func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneData(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(v)
	default:
		return v
	}
}

func closeBreak(b *Break, at time.Time) {
	if at.Before(b.Start) {
		at = b.Start
	}
	end := at
	d := end.Sub(b.Start).Milliseconds()
	b.End = &end
	b.DurationMs = &d
}
