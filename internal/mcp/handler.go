package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/studytrack/internal/clock"
	"github.com/rpggio/studytrack/internal/domain/analytics"
	"github.com/rpggio/studytrack/internal/domain/productivity"
	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/repository"
)

// SessionTracker hands out the per-user state machine.
type SessionTracker interface {
	Machine(ctx context.Context, userID string) (*session.Machine, error)
}

// AnalyticsService defines analytics operations needed by MCP.
type AnalyticsService interface {
	Aggregate(ctx context.Context, userID string, windowDays int) (analytics.Aggregates, error)
	Streaks(ctx context.Context, userID string) (analytics.StreakState, error)
	Insights(ctx context.Context, userID string, windowDays int) (analytics.Insights, error)
	Report(ctx context.Context, userID string, windowDays int) (*analytics.Report, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Tracker   SessionTracker
	Analytics AnalyticsService
	History   analytics.SessionLister
	Clock     clock.Clock
}

// Handler dispatches MCP commands.
type Handler struct {
	tracker   SessionTracker
	analytics AnalyticsService
	history   analytics.SessionLister
	clock     clock.Clock
}

// NewHandler creates a new MCP handler.
func NewHandler(svc Services) *Handler {
	clk := svc.Clock
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Handler{
		tracker:   svc.Tracker,
		analytics: svc.Analytics,
		history:   svc.History,
		clock:     clk,
	}
}

// Handle dispatches MCP requests to domain services.
func (h *Handler) Handle(ctx context.Context, userID, method string, params json.RawMessage) (any, error) {
	switch method {
	case "start_session":
		var req StartSessionParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		m, err := h.machine(ctx, userID)
		if err != nil {
			return nil, err
		}
		return h.respond(m.Start(ctx, req.ActivityType))
	case "record_activity":
		var req RecordActivityParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.Type == "" {
			return nil, &APIError{Code: "INVALID_INPUT", Message: "type is required"}
		}
		m, err := h.machine(ctx, userID)
		if err != nil {
			return nil, err
		}
		return h.respond(m.RecordActivity(ctx, session.ActivityType(req.Type), req.Data))
	case "pause_session":
		m, err := h.machine(ctx, userID)
		if err != nil {
			return nil, err
		}
		return h.respond(m.Pause(ctx))
	case "resume_session":
		m, err := h.machine(ctx, userID)
		if err != nil {
			return nil, err
		}
		return h.respond(m.Resume(ctx))
	case "end_session":
		m, err := h.machine(ctx, userID)
		if err != nil {
			return nil, err
		}
		return h.respond(m.End(ctx))
	case "get_current_session":
		m, err := h.machine(ctx, userID)
		if err != nil {
			return nil, err
		}
		sess, _ := m.Current()
		return h.respond(sess, nil)
	case "list_sessions":
		var req ListSessionsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.listSessions(ctx, userID, req)
	case "get_analytics":
		var req WindowParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		agg, err := h.analytics.Aggregate(ctx, userID, req.WindowDays)
		if err != nil {
			return nil, mapError(err)
		}
		return agg, nil
	case "get_streaks":
		streaks, err := h.analytics.Streaks(ctx, userID)
		if err != nil {
			return nil, mapError(err)
		}
		return streaks, nil
	case "get_insights":
		var req WindowParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		insights, err := h.analytics.Insights(ctx, userID, req.WindowDays)
		if err != nil {
			return nil, mapError(err)
		}
		return insights, nil
	case "get_report":
		var req WindowParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		report, err := h.analytics.Report(ctx, userID, req.WindowDays)
		if err != nil {
			return nil, mapError(err)
		}
		return report, nil
	default:
		return nil, fmt.Errorf("unknown method: %s", method)
	}
}

func (h *Handler) machine(ctx context.Context, userID string) (*session.Machine, error) {
	m, err := h.tracker.Machine(ctx, userID)
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

// respond turns a machine result into a response. A persistence failure is
// not an error for the caller: the transition happened, so the session is
// returned with a warning.
func (h *Handler) respond(sess *session.Session, err error) (any, error) {
	var warnings []string
	if err != nil {
		if !errors.Is(err, session.ErrPersistence) {
			return nil, mapError(err)
		}
		warnings = append(warnings, err.Error())
	}

	resp := SessionResponse{State: sess.State(), Session: sess, Warnings: warnings}
	if sess != nil {
		now := h.clock.Now()
		resp.DurationMinutes = session.DurationMinutes(sess, now)
		resp.ActiveTimeMs = productivity.ActiveTime(sess, now).Milliseconds()
		resp.BreakTimeMs = productivity.BreakTime(sess, now).Milliseconds()
		resp.ProductivityScore = productivity.Score(sess, now)
	}
	return resp, nil
}

// listSessions returns the most recent sessions, oldest first.
func (h *Handler) listSessions(ctx context.Context, userID string, req ListSessionsParams) ([]SessionSummary, error) {
	if req.SinceDays < 0 || req.Limit < 0 {
		return nil, &APIError{Code: "INVALID_INPUT", Message: "since_days and limit must not be negative"}
	}
	now := h.clock.Now()
	var opts repository.ListSessionsOptions
	if req.SinceDays > 0 {
		since := now.Add(-time.Duration(req.SinceDays) * 24 * time.Hour)
		opts.Since = &since
	}
	sessions, err := h.history.List(ctx, userID, opts)
	if err != nil {
		return nil, mapError(err)
	}
	if req.Limit > 0 && len(sessions) > req.Limit {
		sessions = sessions[len(sessions)-req.Limit:]
	}

	resp := make([]SessionSummary, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		resp = append(resp, SessionSummary{
			SessionID:         s.ID,
			ActivityType:      s.ActivityType,
			StartTime:         s.StartTime,
			EndTime:           s.EndTime,
			IsActive:          s.IsActive,
			DurationMinutes:   session.DurationMinutes(s, now),
			Activities:        len(s.Activities),
			Breaks:            len(s.Breaks),
			ProductivityScore: productivity.Score(s, now),
		})
	}
	return resp, nil
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return &APIError{Code: "INVALID_INPUT", Message: fmt.Sprintf("invalid arguments: %v", err)}
	}
	return nil
}
