package analytics

import (
	"time"

	"github.com/rpggio/studytrack/internal/domain/session"
)

func ended(id string, start time.Time, minutes int, label string, data ...map[string]any) session.Session {
	end := start.Add(time.Duration(minutes) * time.Minute)
	s := session.Session{
		ID:           id,
		UserID:       "user1",
		StartTime:    start,
		EndTime:      &end,
		ActivityType: label,
		TotalTimeMs:  end.Sub(start).Milliseconds(),
		Breaks:       []session.Break{},
		Activities:   []session.Activity{},
	}
	for _, d := range data {
		s.Activities = append(s.Activities, session.Activity{
			Type:      session.ActivityNoteCreated,
			Timestamp: start,
			Data:      d,
		})
	}
	return s
}

func day(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}
