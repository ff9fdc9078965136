package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rpggio/studytrack/internal/clock"
	"github.com/rpggio/studytrack/internal/domain/productivity"
	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/repository"
)

// SessionLister is the part of the session store analytics reads from.
type SessionLister interface {
	List(ctx context.Context, userID string, opts repository.ListSessionsOptions) ([]session.Session, error)
}

// Report bundles every analytic for one user.
type Report struct {
	UserID                   string      `json:"userId"`
	WindowDays               int         `json:"windowDays"`
	GeneratedAt              time.Time   `json:"generatedAt"`
	Aggregates               Aggregates  `json:"aggregates"`
	Insights                 Insights    `json:"insights"`
	Streaks                  StreakState `json:"streaks"`
	AverageProductivityScore float64     `json:"averageProductivityScore"`
}

// Service loads history from the session store and runs the analytics
// over it.
type Service struct {
	sessions   SessionLister
	clock      clock.Clock
	loc        *time.Location
	windowDays int
	logger     *slog.Logger
}

// NewService creates a new analytics service. windowDays is used when a
// caller passes 0.
func NewService(sessions SessionLister, clk clock.Clock, loc *time.Location, windowDays int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		sessions:   sessions,
		clock:      clk,
		loc:        location(loc),
		windowDays: windowDays,
		logger:     logger,
	}
}

// Aggregate returns the period buckets for a user.
func (s *Service) Aggregate(ctx context.Context, userID string, windowDays int) (Aggregates, error) {
	history, now, err := s.load(ctx, userID)
	if err != nil {
		return Aggregates{}, err
	}
	return Aggregate(history, s.window(windowDays), now, s.loc), nil
}

// Streaks returns the streak counters over the full history.
func (s *Service) Streaks(ctx context.Context, userID string) (StreakState, error) {
	history, now, err := s.load(ctx, userID)
	if err != nil {
		return StreakState{}, err
	}
	return Streaks(history, now, s.loc), nil
}

// Insights returns the study-habit summary for a user.
func (s *Service) Insights(ctx context.Context, userID string, windowDays int) (Insights, error) {
	history, now, err := s.load(ctx, userID)
	if err != nil {
		return Insights{}, err
	}
	return ComputeInsights(history, s.window(windowDays), now, s.loc), nil
}

// Report computes everything from a single read of the history.
func (s *Service) Report(ctx context.Context, userID string, windowDays int) (*Report, error) {
	history, now, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	days := s.window(windowDays)

	report := &Report{
		UserID:      userID,
		WindowDays:  days,
		GeneratedAt: now,
		Aggregates:  Aggregate(history, days, now, s.loc),
		Insights:    ComputeInsights(history, days, now, s.loc),
		Streaks:     Streaks(history, now, s.loc),
	}

	window := Window(history, days, now)
	if len(window) > 0 {
		total := 0
		for _, sess := range window {
			total += productivity.Score(&sess, now)
		}
		report.AverageProductivityScore = math.Round(float64(total)/float64(len(window))*10) / 10
	}

	s.logger.Debug("analytics report built", "user_id", userID, "window_days", days, "sessions", len(window))
	return report, nil
}

func (s *Service) load(ctx context.Context, userID string) ([]session.Session, time.Time, error) {
	if userID == "" {
		return nil, time.Time{}, fmt.Errorf("%w: user id is required", repository.ErrInvalidInput)
	}
	history, err := s.sessions.List(ctx, userID, repository.ListSessionsOptions{})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loading session history: %w", err)
	}
	return history, s.clock.Now(), nil
}

func (s *Service) window(days int) int {
	if days == 0 {
		return s.windowDays
	}
	return days
}
