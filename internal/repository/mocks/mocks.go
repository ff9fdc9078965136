package mocks

import (
	"context"

	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/repository"
	"github.com/stretchr/testify/mock"
)

// SessionRepository is a mock for repository.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Upsert(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	args := m.Called(ctx, id)
	if sess, ok := args.Get(0).(*session.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) GetActive(ctx context.Context, userID string) (*session.Session, error) {
	args := m.Called(ctx, userID)
	if sess, ok := args.Get(0).(*session.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) List(ctx context.Context, userID string, opts repository.ListSessionsOptions) ([]session.Session, error) {
	args := m.Called(ctx, userID, opts)
	if list, ok := args.Get(0).([]session.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// RemoteStore is a mock for repository.RemoteStore.
type RemoteStore struct {
	mock.Mock
}

func (m *RemoteStore) UpsertStudySession(ctx context.Context, rec *repository.StudySessionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *RemoteStore) UpsertLearningAnalytics(ctx context.Context, rec *repository.LearningAnalyticsRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
