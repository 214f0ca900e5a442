package domain

import (
	"context"
	"time"
)

// Document is an uploaded file after text extraction.
type Document struct {
	ID      string
	Name    string
	Content string
}

// Chunk is a bounded span of a document used for indexing.
type Chunk struct {
	SourceID string
	ChunkID  string
	Text     string
	Index    int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Turn is one user input and the assistant output the user saw.
type Turn struct {
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	CreatedAt     time.Time `json:"created_at"`
}

// History is the chronological list of turns of a session.
type History []Turn

// Profile holds user preferences.
type Profile struct {
	Name              string `json:"name" validate:"max=64"`
	PreferredLanguage string `json:"preferred_language" validate:"required"`
	VoiceEnabled      bool   `json:"voice_enabled"`
}

// Feedback is a free-form note or verdict left by the user.
type Feedback struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Audio is mono PCM audio as float32 samples in [-1, 1].
type Audio struct {
	SampleRate int
	Samples    []float32
}

// Duration returns the length of the audio.
func (a Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(a.Samples)) * time.Second / time.Duration(a.SampleRate)
}

// GenerateRequest is a single prompt for a language model, optionally grounded
// on retrieved chunks.
type GenerateRequest struct {
	Prompt  string
	ModelID string
	System  string
	Context []Chunk
}

// SearchHit is a single web search result.
type SearchHit struct {
	Title   string
	URL     string
	Snippet string
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorStore persists vectors and supports similarity search. Init keeps
// existing contents when the dimension is unchanged. List returns every
// stored chunk with its vector so an index can be restored after a restart.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	List(ctx context.Context) ([]Chunk, [][]float64, error)
	Delete(ctx context.Context, chunkIDs []string) error
	Clear(ctx context.Context) error
}

// Index embeds chunks of documents and answers nearest-neighbour queries.
type Index interface {
	Insert(ctx context.Context, document Document) (int, error)
	Query(ctx context.Context, text string, topK int) ([]SearchResult, error)
	Count() int
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Translator translates text into the language identified by lang.
type Translator interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

// Transcriber turns captured speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio, lang string) (string, error)
}

// Synthesizer turns text into speech.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (Audio, error)
}

// SpeechQueue accepts text to be spoken without waiting for playback.
type SpeechQueue interface {
	Enqueue(ctx context.Context, text string) error
}

// Generator produces a model response for a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// HistoryStore persists conversation history per session.
type HistoryStore interface {
	LoadHistory(ctx context.Context, sessionID string) (History, error)
	SaveHistory(ctx context.Context, sessionID string, history History) error
}

// ProfileStore persists the user profile per session. LoadProfile reports
// found=false when nothing was saved yet.
type ProfileStore interface {
	LoadProfile(ctx context.Context, sessionID string) (profile Profile, found bool, err error)
	SaveProfile(ctx context.Context, sessionID string, profile Profile) error
}

// FeedbackStore appends feedback records.
type FeedbackStore interface {
	AppendFeedback(ctx context.Context, feedback Feedback) error
}

// WebSearcher looks up a query on the web.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}
