// Package filestore keeps the local session cache as a single JSON array
// on disk.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rpggio/studytrack/internal/domain/session"
	"github.com/rpggio/studytrack/internal/repository"
)

// SessionStore implements repository.SessionRepository on a JSON file.
// The whole file is rewritten on every upsert.
type SessionStore struct {
	path string
	mu   sync.Mutex
}

// NewSessionStore returns a store backed by path. The file is created on
// first write.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

func (s *SessionStore) Upsert(_ context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" || sess.UserID == "" {
		return fmt.Errorf("%w: session id and user id are required", repository.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range all {
		if all[i].ID == sess.ID {
			all[i] = *sess.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, *sess.Clone())
	}
	return s.save(all)
}

func (s *SessionStore) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *SessionStore) GetActive(_ context.Context, userID string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	var active *session.Session
	for i := range all {
		if all[i].UserID == userID && all[i].IsActive {
			if active == nil || all[i].StartTime.After(active.StartTime) {
				active = &all[i]
			}
		}
	}
	return active, nil
}

func (s *SessionStore) List(_ context.Context, userID string, opts repository.ListSessionsOptions) ([]session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []session.Session
	for _, sess := range all {
		if sess.UserID != userID {
			continue
		}
		if opts.Since != nil && sess.StartTime.Before(*opts.Since) {
			continue
		}
		out = append(out, sess)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *SessionStore) load() ([]session.Session, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	if len(payload) == 0 {
		return nil, nil
	}
	var all []session.Session
	if err := json.Unmarshal(payload, &all); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return all, nil
}

// save writes to a temp file in the same directory and renames it over the
// target so readers never see a partial array.
func (s *SessionStore) save(all []session.Session) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	payload, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write sessions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace sessions file: %w", err)
	}
	return nil
}
