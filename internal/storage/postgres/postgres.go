// Package postgres persists history, profiles and feedback with gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chatbot/internal/domain"
)

// TurnRecord is one row of conversation history.
type TurnRecord struct {
	ID            uint   `gorm:"primaryKey"`
	SessionID     string `gorm:"index:idx_turn_session_pos,priority:1;not null"`
	Position      int    `gorm:"index:idx_turn_session_pos,priority:2;not null"`
	UserText      string `gorm:"type:text"`
	AssistantText string `gorm:"type:text"`
	CreatedAt     time.Time
}

func (TurnRecord) TableName() string { return "conversation_turns" }

// ProfileRecord is the stored profile of one session.
type ProfileRecord struct {
	SessionID         string `gorm:"primaryKey"`
	Name              string
	PreferredLanguage string
	VoiceEnabled      bool
	UpdatedAt         time.Time
}

func (ProfileRecord) TableName() string { return "user_profiles" }

// FeedbackRecord is one feedback entry.
type FeedbackRecord struct {
	ID        string `gorm:"primaryKey"`
	Text      string `gorm:"type:text"`
	CreatedAt time.Time
}

func (FeedbackRecord) TableName() string { return "feedback" }

// Open connects with the pgx driver and silences gorm's own logger.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// Store implements the history, profile and feedback stores.
type Store struct {
	db *gorm.DB
}

var (
	_ domain.HistoryStore  = (*Store)(nil)
	_ domain.ProfileStore  = (*Store)(nil)
	_ domain.FeedbackStore = (*Store)(nil)
)

// New migrates the tables and returns a store.
func New(ctx context.Context, db *gorm.DB) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(&TurnRecord{}, &ProfileRecord{}, &FeedbackRecord{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %w", domain.ErrStorage, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) LoadHistory(ctx context.Context, sessionID string) (domain.History, error) {
	var rows []TurnRecord
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("position").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %w", domain.ErrStorage, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	h := make(domain.History, len(rows))
	for i, r := range rows {
		h[i] = domain.Turn{UserText: r.UserText, AssistantText: r.AssistantText, CreatedAt: r.CreatedAt}
	}
	return h, nil
}

// SaveHistory replaces the stored history of the session in one transaction.
func (s *Store) SaveHistory(ctx context.Context, sessionID string, history domain.History) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&TurnRecord{}).Error; err != nil {
			return err
		}
		if len(history) == 0 {
			return nil
		}
		rows := make([]TurnRecord, len(history))
		for i, t := range history {
			rows[i] = TurnRecord{
				SessionID:     sessionID,
				Position:      i,
				UserText:      t.UserText,
				AssistantText: t.AssistantText,
				CreatedAt:     t.CreatedAt,
			}
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return fmt.Errorf("%w: save history: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) LoadProfile(ctx context.Context, sessionID string) (domain.Profile, bool, error) {
	var r ProfileRecord
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Profile{}, false, nil
	}
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("%w: load profile: %w", domain.ErrStorage, err)
	}
	return domain.Profile{Name: r.Name, PreferredLanguage: r.PreferredLanguage, VoiceEnabled: r.VoiceEnabled}, true, nil
}

func (s *Store) SaveProfile(ctx context.Context, sessionID string, p domain.Profile) error {
	r := ProfileRecord{
		SessionID:         sessionID,
		Name:              p.Name,
		PreferredLanguage: p.PreferredLanguage,
		VoiceEnabled:      p.VoiceEnabled,
	}
	// Save upserts on the primary key and writes zero values too.
	if err := s.db.WithContext(ctx).Save(&r).Error; err != nil {
		return fmt.Errorf("%w: save profile: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) AppendFeedback(ctx context.Context, fb domain.Feedback) error {
	r := FeedbackRecord{ID: fb.ID, Text: fb.Text, CreatedAt: fb.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return fmt.Errorf("%w: append feedback: %w", domain.ErrStorage, err)
	}
	return nil
}
