package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"chatbot/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	norms     []float64
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{} }

// Init sets the vector dimension. Changing it drops the stored vectors.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if dimension == s.dimension {
		return nil
	}
	s.dimension = dimension
	s.vectors = nil
	s.norms = nil
	s.chunks = nil
	return nil
}

// Upsert adds chunks, replacing any stored chunk with the same ChunkID.
func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	pos := make(map[string]int, len(s.chunks))
	for i, c := range s.chunks {
		pos[c.ChunkID] = i
	}
	for i, c := range chunks {
		if j, ok := pos[c.ChunkID]; ok {
			s.chunks[j] = c
			s.vectors[j] = vectors[i]
			s.norms[j] = l2(vectors[i])
			continue
		}
		pos[c.ChunkID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
		s.vectors = append(s.vectors, vectors[i])
		s.norms = append(s.norms, l2(vectors[i]))
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	qn := l2(vector)
	idxs := make([]int, len(s.vectors))
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		idxs[i] = i
		if qn > 0 && s.norms[i] > 0 {
			scores[i] = dot(s.vectors[i], vector) / (qn * s.norms[i])
		}
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.SearchResult{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results, nil
}

// List returns copies of the stored chunks and vectors in insertion order.
func (s *Storage) List(_ context.Context) ([]domain.Chunk, [][]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := append([]domain.Chunk(nil), s.chunks...)
	vectors := make([][]float64, len(s.vectors))
	for i, v := range s.vectors {
		vectors[i] = append([]float64(nil), v...)
	}
	return chunks, vectors, nil
}

// Delete removes the chunks with the given IDs. Unknown IDs are ignored.
func (s *Storage) Delete(_ context.Context, chunkIDs []string) error {
	drop := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		drop[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i, c := range s.chunks {
		if _, ok := drop[c.ChunkID]; ok {
			continue
		}
		s.chunks[n], s.vectors[n], s.norms[n] = c, s.vectors[i], s.norms[i]
		n++
	}
	s.chunks, s.vectors, s.norms = s.chunks[:n], s.vectors[:n], s.norms[:n]
	return nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.norms = nil
	s.chunks = nil
	return nil
}

// Len returns the number of stored chunks.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func l2(v []float64) float64 { return math.Sqrt(dot(v, v)) }
