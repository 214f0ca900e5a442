// Package file persists history, profiles and feedback as JSON files.
//
// Layout under the root directory:
//
//	sessions/<id>/history.json
//	sessions/<id>/profile.json
//	feedback.jsonl
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"chatbot/internal/domain"
)

// Store implements the history, profile and feedback stores.
type Store struct {
	mu  sync.Mutex
	dir string
}

var (
	_ domain.HistoryStore  = (*Store)(nil)
	_ domain.ProfileStore  = (*Store)(nil)
	_ domain.FeedbackStore = (*Store)(nil)
)

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) sessionPath(sessionID, name string) (string, error) {
	if sessionID == "" || sessionID != filepath.Base(sessionID) || strings.HasPrefix(sessionID, ".") {
		return "", fmt.Errorf("%w: invalid session id %q", domain.ErrStorage, sessionID)
	}
	return filepath.Join(s.dir, "sessions", sessionID, name), nil
}

func (s *Store) LoadHistory(_ context.Context, sessionID string) (domain.History, error) {
	path, err := s.sessionPath(sessionID, "history.json")
	if err != nil {
		return nil, err
	}
	var h domain.History
	found, err := s.read(path, &h)
	if err != nil || !found {
		return nil, err
	}
	return h, nil
}

func (s *Store) SaveHistory(_ context.Context, sessionID string, history domain.History) error {
	path, err := s.sessionPath(sessionID, "history.json")
	if err != nil {
		return err
	}
	if history == nil {
		history = domain.History{}
	}
	return s.write(path, history)
}

func (s *Store) LoadProfile(_ context.Context, sessionID string) (domain.Profile, bool, error) {
	path, err := s.sessionPath(sessionID, "profile.json")
	if err != nil {
		return domain.Profile{}, false, err
	}
	var p domain.Profile
	found, err := s.read(path, &p)
	return p, found, err
}

func (s *Store) SaveProfile(_ context.Context, sessionID string, profile domain.Profile) error {
	path, err := s.sessionPath(sessionID, "profile.json")
	if err != nil {
		return err
	}
	return s.write(path, profile)
}

// AppendFeedback adds one JSON line to feedback.jsonl.
func (s *Store) AppendFeedback(_ context.Context, fb domain.Feedback) error {
	line, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("%w: marshal feedback: %w", domain.ErrStorage, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("%w: create directories: %w", domain.ErrStorage, err)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, "feedback.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open feedback: %w", domain.ErrStorage, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: write feedback: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) read(path string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %w", domain.ErrStorage, filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %w", domain.ErrStorage, filepath.Base(path), err)
	}
	return true, nil
}

// write replaces path atomically through a temp file.
func (s *Store) write(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", domain.ErrStorage, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("%w: create directories: %w", domain.ErrStorage, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write temp file: %w", domain.ErrStorage, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename temp file: %w", domain.ErrStorage, err)
	}
	return nil
}
