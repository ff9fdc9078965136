package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/repository"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. It returns nil for errors
// with no stable code.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		return &APIError{Code: "NO_ACTIVE_SESSION", Message: err.Error(), RecoveryHint: "Call start_session first"}
	case errors.Is(err, session.ErrInvalidTransition):
		return &APIError{Code: "INVALID_TRANSITION", Message: err.Error(), RecoveryHint: "Call get_current_session to see the state"}
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, repository.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, session.ErrPersistence):
		return &APIError{Code: "PERSISTENCE_FAILURE", Message: err.Error(), RecoveryHint: "The change is kept in memory and saved on the next call"}
	case errors.Is(err, repository.ErrNotFound):
		return &APIError{Code: "NOT_FOUND", Message: err.Error()}
	default:
		return nil
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
