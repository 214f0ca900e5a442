// Package mock provides test doubles for domain interfaces using function fields.
package mock

import (
	"context"

	"chatbot/internal/domain"
)

// Interface compliance checks.
var (
	_ domain.Translator    = (*Translator)(nil)
	_ domain.Transcriber   = (*Transcriber)(nil)
	_ domain.Synthesizer   = (*Synthesizer)(nil)
	_ domain.SpeechQueue   = (*SpeechQueue)(nil)
	_ domain.Generator     = (*Generator)(nil)
	_ domain.Index         = (*Index)(nil)
	_ domain.Summarizer    = (*Summarizer)(nil)
	_ domain.HistoryStore  = (*HistoryStore)(nil)
	_ domain.ProfileStore  = (*ProfileStore)(nil)
	_ domain.FeedbackStore = (*FeedbackStore)(nil)
	_ domain.WebSearcher   = (*WebSearcher)(nil)
	_ domain.Embedder      = (*Embedder)(nil)
)

// Translator is a test double for domain.Translator.
type Translator struct {
	TranslateFn func(ctx context.Context, text, lang string) (string, error)
}

// Translate delegates to TranslateFn.
func (t *Translator) Translate(ctx context.Context, text, lang string) (string, error) {
	return t.TranslateFn(ctx, text, lang)
}

// Transcriber is a test double for domain.Transcriber.
type Transcriber struct {
	TranscribeFn func(ctx context.Context, audio domain.Audio, lang string) (string, error)
}

// Transcribe delegates to TranscribeFn.
func (t *Transcriber) Transcribe(ctx context.Context, audio domain.Audio, lang string) (string, error) {
	return t.TranscribeFn(ctx, audio, lang)
}

// Synthesizer is a test double for domain.Synthesizer.
type Synthesizer struct {
	SpeakFn func(ctx context.Context, text string) (domain.Audio, error)
}

// Speak delegates to SpeakFn.
func (s *Synthesizer) Speak(ctx context.Context, text string) (domain.Audio, error) {
	return s.SpeakFn(ctx, text)
}

// SpeechQueue is a test double for domain.SpeechQueue.
type SpeechQueue struct {
	EnqueueFn func(ctx context.Context, text string) error
}

// Enqueue delegates to EnqueueFn.
func (q *SpeechQueue) Enqueue(ctx context.Context, text string) error {
	return q.EnqueueFn(ctx, text)
}

// Generator is a test double for domain.Generator.
type Generator struct {
	GenerateFn func(ctx context.Context, req domain.GenerateRequest) (string, error)
}

// Generate delegates to GenerateFn.
func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	return g.GenerateFn(ctx, req)
}

// Index is a test double for domain.Index.
// Set the function fields for the methods you need.
type Index struct {
	InsertFn func(ctx context.Context, document domain.Document) (int, error)
	QueryFn  func(ctx context.Context, text string, topK int) ([]domain.SearchResult, error)
	CountFn  func() int
}

// Insert delegates to InsertFn.
func (i *Index) Insert(ctx context.Context, document domain.Document) (int, error) {
	return i.InsertFn(ctx, document)
}

// Query delegates to QueryFn.
func (i *Index) Query(ctx context.Context, text string, topK int) ([]domain.SearchResult, error) {
	return i.QueryFn(ctx, text, topK)
}

// Count delegates to CountFn.
func (i *Index) Count() int {
	return i.CountFn()
}

// Summarizer is a test double for domain.Summarizer.
type Summarizer struct {
	SummarizeFn func(ctx context.Context, text string) (string, error)
}

// Summarize delegates to SummarizeFn.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	return s.SummarizeFn(ctx, text)
}

// HistoryStore is a test double for domain.HistoryStore.
type HistoryStore struct {
	LoadHistoryFn func(ctx context.Context, sessionID string) (domain.History, error)
	SaveHistoryFn func(ctx context.Context, sessionID string, history domain.History) error
}

// LoadHistory delegates to LoadHistoryFn.
func (s *HistoryStore) LoadHistory(ctx context.Context, sessionID string) (domain.History, error) {
	return s.LoadHistoryFn(ctx, sessionID)
}

// SaveHistory delegates to SaveHistoryFn.
func (s *HistoryStore) SaveHistory(ctx context.Context, sessionID string, history domain.History) error {
	return s.SaveHistoryFn(ctx, sessionID, history)
}

// ProfileStore is a test double for domain.ProfileStore.
type ProfileStore struct {
	LoadProfileFn func(ctx context.Context, sessionID string) (domain.Profile, bool, error)
	SaveProfileFn func(ctx context.Context, sessionID string, profile domain.Profile) error
}

// LoadProfile delegates to LoadProfileFn.
func (s *ProfileStore) LoadProfile(ctx context.Context, sessionID string) (domain.Profile, bool, error) {
	return s.LoadProfileFn(ctx, sessionID)
}

// SaveProfile delegates to SaveProfileFn.
func (s *ProfileStore) SaveProfile(ctx context.Context, sessionID string, profile domain.Profile) error {
	return s.SaveProfileFn(ctx, sessionID, profile)
}

// FeedbackStore is a test double for domain.FeedbackStore.
type FeedbackStore struct {
	AppendFeedbackFn func(ctx context.Context, feedback domain.Feedback) error
}

// AppendFeedback delegates to AppendFeedbackFn.
func (s *FeedbackStore) AppendFeedback(ctx context.Context, feedback domain.Feedback) error {
	return s.AppendFeedbackFn(ctx, feedback)
}

// WebSearcher is a test double for domain.WebSearcher.
type WebSearcher struct {
	SearchFn func(ctx context.Context, query string) ([]domain.SearchHit, error)
}

// Search delegates to SearchFn.
func (w *WebSearcher) Search(ctx context.Context, query string) ([]domain.SearchHit, error) {
	return w.SearchFn(ctx, query)
}

// Embedder is a test double for domain.Embedder.
// Set the function fields for the methods you need.
type Embedder struct {
	NameFn      func() string
	PrepareFn   func(corpus []string) error
	DimensionFn func() int
	EmbedFn     func(ctx context.Context, text string) ([]float64, error)
}

// Name delegates to NameFn.
func (e *Embedder) Name() string { return e.NameFn() }

// Prepare delegates to PrepareFn.
func (e *Embedder) Prepare(corpus []string) error { return e.PrepareFn(corpus) }

// Dimension delegates to DimensionFn.
func (e *Embedder) Dimension() int { return e.DimensionFn() }

// Embed delegates to EmbedFn.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return e.EmbedFn(ctx, text)
}
