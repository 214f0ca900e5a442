package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"chatbot/internal/domain"
	"chatbot/internal/logger"
)

// corpusDependent is implemented by embedders whose vectors change with the
// prepared corpus; cached vectors cannot be reused across rebuilds for them.
type corpusDependent interface {
	CorpusDependent() bool
}

// RAGServiceImpl is the vector index: it chunks documents, embeds chunks and
// answers top-K queries. Uploading a document with a known ID replaces the
// chunks of that document.
type RAGServiceImpl struct {
	mu       sync.RWMutex
	chunker  domain.Chunker
	embedder domain.Embedder
	store    domain.VectorStore
	sources  []string
	chunks   map[string][]domain.Chunk
	vectors  map[string][]float64
}

var _ domain.Index = (*RAGServiceImpl)(nil)

func NewRAGService(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore) *RAGServiceImpl {
	return &RAGServiceImpl{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		chunks:   make(map[string][]domain.Chunk),
		vectors:  make(map[string][]float64),
	}
}

// Load restores the index from the vector store so documents indexed by an
// earlier process stay searchable.
func (s *RAGServiceImpl) Load(ctx context.Context) error {
	chunks, vectors, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: load: %w", domain.ErrIndex, err)
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: load: %d chunks but %d vectors", domain.ErrIndex, len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = nil
	s.chunks = make(map[string][]domain.Chunk)
	s.vectors = make(map[string][]float64, len(chunks))
	texts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		if _, ok := s.chunks[c.SourceID]; !ok {
			s.sources = append(s.sources, c.SourceID)
		}
		s.chunks[c.SourceID] = append(s.chunks[c.SourceID], c)
		s.vectors[c.ChunkID] = vectors[i]
		texts = append(texts, c.Text)
	}
	for _, id := range s.sources {
		cs := s.chunks[id]
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].Index < cs[j].Index })
	}
	if len(texts) > 0 {
		if err := s.embedder.Prepare(texts); err != nil {
			return fmt.Errorf("%w: load: %w", domain.ErrIndex, err)
		}
	}
	logger.Debug("Index restored", "sources", len(s.sources), "chunks", len(chunks))
	return nil
}

// Insert chunks and indexes the document and returns the number of chunks
// stored for it. On failure the index keeps its previous contents.
func (s *RAGServiceImpl) Insert(ctx context.Context, document domain.Document) (int, error) {
	chunks, err := s.chunker.Chunk(document)
	if err != nil {
		return 0, fmt.Errorf("%w: chunk %s: %w", domain.ErrIndex, document.Name, err)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: %s has no indexable text", domain.ErrIndex, document.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sources := s.sources
	if _, ok := s.chunks[document.ID]; !ok {
		sources = append(append([]string(nil), s.sources...), document.ID)
	}
	next := make(map[string][]domain.Chunk, len(s.chunks)+1)
	for id, cs := range s.chunks {
		next[id] = cs
	}
	next[document.ID] = chunks

	vectors, err := s.write(ctx, document.ID, sources, next)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	s.sources = sources
	s.chunks = next
	s.vectors = vectors
	logger.Debug("Document indexed", "source", document.ID, "name", document.Name, "chunks", len(chunks), "total", s.countLocked())
	return len(chunks), nil
}

// write stores the chunks of sourceID and removes the ones it replaced. Only
// that source is re-embedded unless the embedder is corpus dependent, in
// which case every chunk is. New vectors are upserted before anything is
// deleted, and a failed write is rolled back. It returns the vectors of
// every indexed chunk.
func (s *RAGServiceImpl) write(ctx context.Context, sourceID string, sources []string, chunks map[string][]domain.Chunk) (map[string][]float64, error) {
	var all []domain.Chunk
	var texts []string
	for _, id := range sources {
		for _, c := range chunks[id] {
			all = append(all, c)
			texts = append(texts, c.Text)
		}
	}
	full := false
	if cd, ok := s.embedder.(corpusDependent); ok && cd.CorpusDependent() {
		full = true
	}
	changed := chunks[sourceID]
	if full {
		changed = all
	}

	if err := s.embedder.Prepare(texts); err != nil {
		s.rollback(ctx, nil, false)
		return nil, err
	}
	vectors := make([][]float64, len(changed))
	for i, c := range changed {
		if v, ok := s.vectors[c.ChunkID]; ok && !full && !s.isStale(c) {
			vectors[i] = v
			continue
		}
		v, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			s.rollback(ctx, nil, false)
			return nil, err
		}
		vectors[i] = v
	}
	dim := s.embedder.Dimension()
	if dim == 0 && len(vectors) > 0 {
		dim = len(vectors[0])
	}
	if err := s.store.Init(ctx, dim); err != nil {
		s.rollback(ctx, nil, full)
		return nil, err
	}
	if err := s.store.Upsert(ctx, changed, vectors); err != nil {
		s.rollback(ctx, changed, full)
		return nil, err
	}

	keep := make(map[string]struct{}, len(chunks[sourceID]))
	for _, c := range chunks[sourceID] {
		keep[c.ChunkID] = struct{}{}
	}
	var stale []string
	for _, c := range s.chunks[sourceID] {
		if _, ok := keep[c.ChunkID]; !ok {
			stale = append(stale, c.ChunkID)
		}
	}
	if err := s.store.Delete(ctx, stale); err != nil {
		// Query ignores chunks the index does not know.
		logger.Warn("Replaced chunks left in vector store", "source", sourceID, "chunks", len(stale), "error", err)
	}

	fresh := make(map[string][]float64, len(all))
	for _, c := range all {
		fresh[c.ChunkID] = s.vectors[c.ChunkID]
	}
	for i, c := range changed {
		fresh[c.ChunkID] = vectors[i]
	}
	return fresh, nil
}

// rollback puts the embedder and the store back to the committed contents.
// written are the chunks a failed upsert may have touched; full restores
// every committed chunk because the store may have been reset.
func (s *RAGServiceImpl) rollback(ctx context.Context, written []domain.Chunk, full bool) {
	var (
		texts   []string
		old     []domain.Chunk
		vectors [][]float64
		prev    = make(map[string]struct{})
	)
	for _, id := range s.sources {
		for _, c := range s.chunks[id] {
			texts = append(texts, c.Text)
			prev[c.ChunkID] = struct{}{}
			if full {
				old = append(old, c)
				vectors = append(vectors, s.vectors[c.ChunkID])
			}
		}
	}
	if len(texts) > 0 {
		if err := s.embedder.Prepare(texts); err != nil {
			logger.Warn("Restoring embedder failed", "error", err)
		}
	}
	if !full && written == nil {
		return
	}

	var added []string
	for _, c := range written {
		if _, ok := prev[c.ChunkID]; !ok {
			added = append(added, c.ChunkID)
			continue
		}
		if !full {
			old = append(old, s.lookup(c))
			vectors = append(vectors, s.vectors[c.ChunkID])
		}
	}
	if len(old) > 0 {
		if err := s.store.Init(ctx, len(vectors[0])); err != nil {
			logger.Warn("Restoring vector store failed", "error", err)
			return
		}
		if err := s.store.Upsert(ctx, old, vectors); err != nil {
			logger.Warn("Restoring vector store failed", "error", err)
			return
		}
	}
	if err := s.store.Delete(ctx, added); err != nil {
		logger.Warn("Restoring vector store failed", "error", err)
	}
}

// lookup returns the committed version of the chunk with c's ID.
func (s *RAGServiceImpl) lookup(c domain.Chunk) domain.Chunk {
	for _, old := range s.chunks[c.SourceID] {
		if old.ChunkID == c.ChunkID {
			return old
		}
	}
	return c
}

// isStale reports whether the cached vector for c belongs to different text.
func (s *RAGServiceImpl) isStale(c domain.Chunk) bool {
	for _, old := range s.chunks[c.SourceID] {
		if old.ChunkID == c.ChunkID {
			return old.Text != c.Text
		}
	}
	return true
}

// Query returns the topK chunks most similar to text. When the embedder
// cannot represent the query (all-zero vector or scores) it falls back to
// lexical overlap ranking.
func (s *RAGServiceImpl) Query(ctx context.Context, text string, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.countLocked() == 0 {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrIndex, err)
	}
	if isZero(vec) {
		return s.lexicalSearch(text, topK), nil
	}
	found, err := s.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", domain.ErrIndex, err)
	}
	res := found[:0]
	for _, r := range found {
		if _, ok := s.vectors[r.Chunk.ChunkID]; ok {
			res = append(res, r)
		}
	}
	allZero := true
	for _, r := range res {
		if r.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero {
		return s.lexicalSearch(text, topK), nil
	}
	return res, nil
}

// Count returns the number of indexed chunks.
func (s *RAGServiceImpl) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked()
}

func (s *RAGServiceImpl) countLocked() int {
	n := 0
	for _, cs := range s.chunks {
		n += len(cs)
	}
	return n
}

var unicodeWordRe = regexp.MustCompile(`[\p{L}\p{M}]+(?:['’][\p{L}\p{M}]+)*`)

func (s *RAGServiceImpl) lexicalSearch(query string, topK int) []domain.SearchResult {
	qset := toTokenSet(query)
	var scored []domain.SearchResult
	for _, id := range s.sources {
		for _, c := range s.chunks[id] {
			if score := overlapOchiai(qset, c.Text); score > 0 {
				scored = append(scored, domain.SearchResult{Chunk: c, Score: score})
			}
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK <= 0 {
		topK = 5
	}
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai is |A∩B| / sqrt(|A||B|) over distinct tokens.
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	tset := toTokenSet(text)
	if len(qset) == 0 || len(tset) == 0 {
		return 0
	}
	inter := 0
	for t := range tset {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(tset)))
}

func isZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
