package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestRemoteRepository_StudySessionUpsert(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRemoteRepository(db)

	rec := &repository.StudySessionRecord{
		SessionID:       "s1",
		UserID:          "user1",
		ActivityType:    "general",
		StartedAt:       base,
		EndedAt:         base.Add(25 * time.Minute),
		DurationMinutes: 25,
		AIQueries:       2,
		NotesCreated:    1,
		WordsWritten:    300,
	}
	require.NoError(t, repo.UpsertStudySession(ctx, rec))

	rec.FilesUploaded = 4
	require.NoError(t, repo.UpsertStudySession(ctx, rec))

	loaded, err := repo.GetStudySession(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, rec, loaded)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM study_sessions`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestRemoteRepository_LearningAnalyticsUpsert(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRemoteRepository(db)

	end := base.Add(3 * time.Minute)
	ms := int64(60_000)
	rec := &repository.LearningAnalyticsRecord{
		SessionID: "s1",
		UserID:    "user1",
		Activities: []session.Activity{
			{Type: session.ActivityAIQuery, Timestamp: base.Add(time.Minute), Data: map[string]any{"topic": "algebra"}},
		},
		Breaks:            []session.Break{{Start: base.Add(2 * time.Minute), End: &end, DurationMs: &ms}},
		ProductivityScore: 64,
		KnowledgeAreas:    []string{"algebra", "math"},
		TimeSpentMinutes:  12,
	}
	require.NoError(t, repo.UpsertLearningAnalytics(ctx, rec))

	loaded, err := repo.GetLearningAnalytics(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 64, loaded.ProductivityScore)
	require.Equal(t, []string{"algebra", "math"}, loaded.KnowledgeAreas)
	require.Len(t, loaded.Activities, 1)
	require.Equal(t, "algebra", loaded.Activities[0].Data["topic"])
	require.True(t, loaded.Breaks[0].End.Equal(end))

	_, err = repo.GetLearningAnalytics(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
