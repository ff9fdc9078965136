package analytics

import (
	"testing"
	"time"

	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/stretchr/testify/require"
)

func TestAggregate_Buckets(t *testing.T) {
	now := day(2026, 3, 20, 12)
	sessions := []session.Session{
		ended("a", day(2026, 3, 2, 9), 30, "general"),
		ended("b", day(2026, 3, 2, 20), 15, "general"),
		ended("c", day(2026, 3, 9, 10), 45, "general"),
		ended("d", day(2026, 1, 1, 8), 20, "general"),
		ended("e", day(2025, 12, 29, 8), 10, "general"),
		ended("future", day(2026, 3, 21, 8), 10, "general"),
	}

	agg := Aggregate(sessions, 0, now, time.UTC)

	require.Equal(t, map[string]Bucket{
		"2026-03-02": {Minutes: 45, Sessions: 2},
		"2026-03-09": {Minutes: 45, Sessions: 1},
		"2026-01-01": {Minutes: 20, Sessions: 1},
		"2025-12-29": {Minutes: 10, Sessions: 1},
	}, agg.Daily)
	require.Equal(t, map[string]Bucket{
		"2026-W10": {Minutes: 45, Sessions: 2},
		"2026-W11": {Minutes: 45, Sessions: 1},
		"2026-W01": {Minutes: 30, Sessions: 2},
	}, agg.Weekly)
	require.Equal(t, map[string]Bucket{
		"2026-03": {Minutes: 90, Sessions: 3},
		"2026-01": {Minutes: 20, Sessions: 1},
		"2025-12": {Minutes: 10, Sessions: 1},
	}, agg.Monthly)
}

func TestAggregate_Window(t *testing.T) {
	now := day(2026, 3, 12, 12)
	sessions := []session.Session{
		ended("old", day(2026, 3, 2, 9), 30, "general"),
		ended("edge", now.Add(-7*24*time.Hour), 5, "general"),
		ended("recent", day(2026, 3, 9, 10), 45, "general"),
	}

	agg := Aggregate(sessions, 7, now, time.UTC)
	require.Len(t, agg.Daily, 2)
	require.Equal(t, Bucket{Minutes: 45, Sessions: 1}, agg.Daily["2026-03-09"])
	require.Equal(t, Bucket{Minutes: 5, Sessions: 1}, agg.Daily["2026-03-05"])
}

func TestAggregate_LocalDay(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	sessions := []session.Session{ended("late", day(2026, 3, 3, 2), 30, "general")}

	agg := Aggregate(sessions, 0, day(2026, 3, 10, 0), est)
	require.Contains(t, agg.Daily, "2026-03-02")
}

func TestAggregate_IsIdempotent(t *testing.T) {
	now := day(2026, 3, 20, 12)
	sessions := []session.Session{
		ended("a", day(2026, 3, 2, 9), 30, "general"),
		ended("b", day(2026, 3, 15, 9), 25, "general"),
	}
	before := make([]session.Session, len(sessions))
	copy(before, sessions)

	first := Aggregate(sessions, 30, now, time.UTC)
	second := Aggregate(sessions, 30, now, time.UTC)
	require.Equal(t, first, second)
	require.Equal(t, before, sessions)
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate(nil, 30, day(2026, 3, 20, 12), time.UTC)
	require.Empty(t, agg.Daily)
	require.Empty(t, agg.Weekly)
	require.Empty(t, agg.Monthly)
}

func TestWeekKey_ThursdayRule(t *testing.T) {
	require.Equal(t, "2026-W01", WeekKey(day(2025, 12, 29, 0)))
	require.Equal(t, "2020-W53", WeekKey(day(2021, 1, 3, 0)))
	require.Equal(t, "2021-W01", WeekKey(day(2021, 1, 4, 0)))
}
