// Package redis persists history, profiles and feedback in Redis.
//
// Keys: <prefix>:history:<session>, <prefix>:profile:<session> (JSON strings)
// and <prefix>:feedback (list of JSON entries).
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"chatbot/internal/domain"
)

// Store implements the history, profile and feedback stores.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var (
	_ domain.HistoryStore  = (*Store)(nil)
	_ domain.ProfileStore  = (*Store)(nil)
	_ domain.FeedbackStore = (*Store)(nil)
)

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "chatbot"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(kind, sessionID string) string {
	return s.prefix + ":" + kind + ":" + sessionID
}

func (s *Store) LoadHistory(ctx context.Context, sessionID string) (domain.History, error) {
	var h domain.History
	if _, err := s.get(ctx, s.key("history", sessionID), &h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Store) SaveHistory(ctx context.Context, sessionID string, history domain.History) error {
	return s.set(ctx, s.key("history", sessionID), history)
}

func (s *Store) LoadProfile(ctx context.Context, sessionID string) (domain.Profile, bool, error) {
	var p domain.Profile
	found, err := s.get(ctx, s.key("profile", sessionID), &p)
	return p, found, err
}

func (s *Store) SaveProfile(ctx context.Context, sessionID string, profile domain.Profile) error {
	return s.set(ctx, s.key("profile", sessionID), profile)
}

func (s *Store) AppendFeedback(ctx context.Context, fb domain.Feedback) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("%w: marshal feedback: %w", domain.ErrStorage, err)
	}
	if err := s.rdb.RPush(ctx, s.prefix+":feedback", data).Err(); err != nil {
		return fmt.Errorf("%w: append feedback: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get %s: %w", domain.ErrStorage, key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %w", domain.ErrStorage, key, err)
	}
	return true, nil
}

func (s *Store) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %w", domain.ErrStorage, key, err)
	}
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %w", domain.ErrStorage, key, err)
	}
	return nil
}
