package syncer

import (
	"encoding/json"
	"time"

	"github.com/rpggio/studytrack/internal/domain/analytics"
	"github.com/rpggio/studytrack/internal/domain/productivity"
	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/repository"
)

// BuildRecords derives the two remote rows for an ended session.
func BuildRecords(sess *session.Session) (*repository.StudySessionRecord, *repository.LearningAnalyticsRecord) {
	end := endOf(sess)
	minutes := session.DurationMinutes(sess, end)

	study := &repository.StudySessionRecord{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		ActivityType:    sess.ActivityType,
		StartedAt:       sess.StartTime,
		EndedAt:         end,
		DurationMinutes: minutes,
	}
	for _, a := range sess.Activities {
		switch a.Type {
		case session.ActivityAIQuery:
			study.AIQueries++
		case session.ActivityNoteCreated:
			study.NotesCreated++
			study.WordsWritten += wordCount(a.Data)
		case session.ActivityFileUploaded:
			study.FilesUploaded++
		}
	}

	analytics := &repository.LearningAnalyticsRecord{
		SessionID:         sess.ID,
		UserID:            sess.UserID,
		Activities:        sess.Activities,
		Breaks:            sess.Breaks,
		ProductivityScore: productivity.Score(sess, end),
		KnowledgeAreas:    analytics.Tags(sess),
		TimeSpentMinutes:  minutes,
	}
	if analytics.Activities == nil {
		analytics.Activities = []session.Activity{}
	}
	if analytics.Breaks == nil {
		analytics.Breaks = []session.Break{}
	}
	return study, analytics
}

func wordCount(data map[string]any) int {
	for _, key := range []string{"wordCount", "word_count"} {
		if n, ok := asInt(data[key]); ok {
			return n
		}
	}
	return 0
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func endOf(sess *session.Session) time.Time {
	if sess.EndTime != nil {
		return *sess.EndTime
	}
	return sess.StartTime.Add(time.Duration(sess.TotalTimeMs) * time.Millisecond)
}
