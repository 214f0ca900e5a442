// Package pgvector stores chunk embeddings in PostgreSQL with the pgvector
// extension and ranks them by cosine distance.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatbot/internal/domain"
)

// ChunkRecord is the table row for one embedded chunk.
type ChunkRecord struct {
	ChunkID   string          `gorm:"primaryKey"`
	SourceID  string          `gorm:"index;not null"`
	Position  int             `gorm:"not null"`
	Text      string          `gorm:"type:text"`
	Embedding pgvector.Vector `gorm:"type:vector"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (ChunkRecord) TableName() string { return "document_chunks" }

// Storage implements domain.VectorStore on a gorm connection.
type Storage struct {
	db *gorm.DB
}

func NewStorage(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	db := s.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	return db.AutoMigrate(&ChunkRecord{})
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]ChunkRecord, len(chunks))
	for i, c := range chunks {
		rows[i] = ChunkRecord{
			ChunkID:   c.ChunkID,
			SourceID:  c.SourceID,
			Position:  c.Index,
			Text:      c.Text,
			Embedding: pgvector.NewVector(toFloat32(vectors[i])),
		}
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, 100).Error
}

type scoredRecord struct {
	ChunkRecord
	Score float64
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	q := pgvector.NewVector(toFloat32(vector))
	var rows []scoredRecord
	err := s.db.WithContext(ctx).
		Model(&ChunkRecord{}).
		Select("*, 1 - (embedding <=> ?) AS score", q).
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []any{q}}).
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, len(rows))
	for i, r := range rows {
		results[i] = domain.SearchResult{
			Chunk: domain.Chunk{
				SourceID: r.SourceID,
				ChunkID:  r.ChunkID,
				Index:    r.Position,
				Text:     r.Text,
			},
			Score: r.Score,
		}
	}
	return results, nil
}

// List returns every stored chunk ordered by source and position. A missing
// table is empty.
func (s *Storage) List(ctx context.Context) ([]domain.Chunk, [][]float64, error) {
	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(&ChunkRecord{}) {
		return nil, nil, nil
	}
	var rows []ChunkRecord
	if err := db.Order("source_id, position").Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	chunks := make([]domain.Chunk, len(rows))
	vectors := make([][]float64, len(rows))
	for i, r := range rows {
		chunks[i] = domain.Chunk{SourceID: r.SourceID, ChunkID: r.ChunkID, Index: r.Position, Text: r.Text}
		vectors[i] = toFloat64(r.Embedding.Slice())
	}
	return chunks, vectors, nil
}

// Delete removes the rows of the given chunk IDs.
func (s *Storage) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("chunk_id IN ?", chunkIDs).Delete(&ChunkRecord{}).Error
}

// Clear removes every chunk row. The table survives so Init stays cheap.
func (s *Storage) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ChunkRecord{}).Error
	if err != nil && !s.db.Migrator().HasTable(&ChunkRecord{}) {
		return nil
	}
	return err
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
