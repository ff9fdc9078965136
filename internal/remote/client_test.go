package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpggio/studytrack/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestClient_UpsertStudySession(t *testing.T) {
	var gotPath, gotConflict, gotPrefer, gotKey, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotConflict = r.URL.Query().Get("on_conflict")
		gotPrefer = r.Header.Get("Prefer")
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/rest/v1/", "key123", time.Second)
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	err := client.UpsertStudySession(context.Background(), &repository.StudySessionRecord{
		SessionID:       "s1",
		UserID:          "user1",
		ActivityType:    "general",
		StartedAt:       start,
		EndedAt:         start.Add(30 * time.Minute),
		DurationMinutes: 30,
		NotesCreated:    2,
	})
	require.NoError(t, err)

	require.Equal(t, "/rest/v1/study_sessions", gotPath)
	require.Equal(t, "session_id", gotConflict)
	require.Contains(t, gotPrefer, "resolution=merge-duplicates")
	require.Equal(t, "key123", gotKey)
	require.Equal(t, "Bearer key123", gotAuth)
	require.Equal(t, "s1", gotBody["session_id"])
	require.Equal(t, float64(30), gotBody["duration_minutes"])
	require.Equal(t, float64(2), gotBody["notes_created"])
}

func TestClient_UpsertLearningAnalytics(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	err := client.UpsertLearningAnalytics(context.Background(), &repository.LearningAnalyticsRecord{
		SessionID:         "s1",
		UserID:            "user1",
		ProductivityScore: 71,
		KnowledgeAreas:    []string{"chemistry"},
	})
	require.NoError(t, err)
	require.Equal(t, "/learning_analytics", gotPath)
	require.Equal(t, float64(71), gotBody["productivity_score"])
	require.Equal(t, []any{"chemistry"}, gotBody["knowledge_areas"])
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"duplicate key"}`, http.StatusConflict)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "", time.Second).UpsertStudySession(context.Background(), &repository.StudySessionRecord{SessionID: "s1"})
	require.ErrorIs(t, err, ErrRemote)
	require.Contains(t, err.Error(), "409")
	require.Contains(t, err.Error(), "duplicate key")
}
