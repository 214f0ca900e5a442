package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chatbot/internal/domain"
	"chatbot/internal/ingest"
	"chatbot/internal/logger"
	"chatbot/internal/retry"
	"chatbot/internal/session"
	"chatbot/internal/summarizer"
)

// TurnRequest is one user input. Empty Language and ModelID fall back to the
// session's current selection.
type TurnRequest struct {
	Input        string
	Language     string
	ModelID      string
	UseDocuments bool
}

// TurnResult is what the user sees after a turn. Warning carries a non-fatal
// persistence failure; the turn itself succeeded.
type TurnResult struct {
	Response string
	Turn     domain.Turn
	Sources  []domain.SearchResult
	Warning  error
}

// Ingester adds uploaded files to the index.
type Ingester interface {
	Ingest(ctx context.Context, name string, data []byte) (ingest.Result, error)
	IngestFile(ctx context.Context, path string) (ingest.Result, error)
}

// Deps are the collaborators of ChatService. Transcriber, Speech and
// Searcher are optional.
type Deps struct {
	Translator  domain.Translator
	Generator   domain.Generator
	Index       domain.Index
	Ingester    Ingester
	History     domain.HistoryStore
	Profiles    domain.ProfileStore
	Feedback    domain.FeedbackStore
	Summarizer  domain.Summarizer
	Transcriber domain.Transcriber
	Speech      domain.SpeechQueue
	Searcher    domain.WebSearcher
}

// ChatConfig holds the pipeline settings.
type ChatConfig struct {
	PivotLanguage string
	Languages     []string
	RetrievalK    int
	Retry         retry.Policy
}

// ChatService orchestrates a conversation turn and the side flows around it.
type ChatService struct {
	deps     Deps
	cfg      ChatConfig
	validate *validator.Validate
	now      func() time.Time
}

func NewChatService(deps Deps, cfg ChatConfig) *ChatService {
	if cfg.PivotLanguage == "" {
		cfg.PivotLanguage = "en"
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = 4
	}
	return &ChatService{deps: deps, cfg: cfg, validate: validator.New(), now: time.Now}
}

// HandleTurn runs one turn: translate to the pivot language, optionally
// retrieve document context, generate, translate back, then append and
// persist the turn. Only a model failure aborts the turn.
func (s *ChatService) HandleTurn(ctx context.Context, sess *session.Session, req TurnRequest) (TurnResult, error) {
	if strings.TrimSpace(req.Input) == "" {
		return TurnResult{}, nil
	}
	var res TurnResult
	err := sess.Do(func(st *session.State) error {
		lang := firstNonEmpty(req.Language, st.Language, s.cfg.PivotLanguage)
		modelID := firstNonEmpty(req.ModelID, st.ModelID)

		pivotText := s.translate(ctx, req.Input, lang, s.cfg.PivotLanguage)

		var chunks []domain.Chunk
		if req.UseDocuments {
			results, err := s.deps.Index.Query(ctx, pivotText, s.cfg.RetrievalK)
			if err != nil {
				logger.Warn("Document lookup failed, answering without context", "error", err)
			}
			chunks = make([]domain.Chunk, 0, len(results))
			for _, r := range results {
				chunks = append(chunks, r.Chunk)
			}
			res.Sources = results
		}

		answer, err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) (string, error) {
			return s.deps.Generator.Generate(ctx, domain.GenerateRequest{Prompt: pivotText, ModelID: modelID, Context: chunks})
		})
		if err != nil {
			if !errors.Is(err, domain.ErrModel) {
				err = fmt.Errorf("%w: %w", domain.ErrModel, err)
			}
			logger.Error("Model call failed", "model", modelID, "error", err)
			return err
		}

		out := s.translate(ctx, answer, s.cfg.PivotLanguage, lang)
		turn := domain.Turn{UserText: req.Input, AssistantText: out, CreatedAt: s.now()}
		st.History = append(st.History, turn)
		if err := s.deps.History.SaveHistory(ctx, sess.ID, st.History); err != nil {
			if !errors.Is(err, domain.ErrStorage) {
				err = fmt.Errorf("%w: %w", domain.ErrStorage, err)
			}
			logger.Warn("History not saved", "session", sess.ID, "error", err)
			res.Warning = err
		}
		res.Response = out
		res.Turn = turn

		if st.Profile.VoiceEnabled && s.deps.Speech != nil {
			if err := s.deps.Speech.Enqueue(ctx, out); err != nil {
				logger.Warn("Speech request dropped", "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return TurnResult{}, err
	}
	return res, nil
}

// translate returns text in language to, or text unchanged when from and to
// match or the translator keeps failing.
func (s *ChatService) translate(ctx context.Context, text, from, to string) string {
	if from == to {
		return text
	}
	out, err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) (string, error) {
		return s.deps.Translator.Translate(ctx, text, to)
	})
	if err != nil {
		logger.Warn("Translation failed, using original text", "from", from, "to", to, "error", err)
		return text
	}
	return out
}

// HandleVoiceTurn transcribes audio and runs the transcript as a turn. The
// transcript is returned even when the turn fails.
func (s *ChatService) HandleVoiceTurn(ctx context.Context, sess *session.Session, audio domain.Audio, req TurnRequest) (string, TurnResult, error) {
	if s.deps.Transcriber == nil {
		return "", TurnResult{}, fmt.Errorf("%w: voice input is not configured", domain.ErrRecognition)
	}
	if audio.Duration() == 0 {
		return "", TurnResult{}, fmt.Errorf("%w: no audio captured", domain.ErrRecognition)
	}
	lang := firstNonEmpty(req.Language, sess.Snapshot().Language, s.cfg.PivotLanguage)
	logger.Debug("Transcribing", "duration", audio.Duration(), "language", lang)
	text, err := s.deps.Transcriber.Transcribe(ctx, audio, lang)
	if err != nil {
		if !errors.Is(err, domain.ErrRecognition) {
			err = fmt.Errorf("%w: %w", domain.ErrRecognition, err)
		}
		return "", TurnResult{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", TurnResult{}, fmt.Errorf("%w: no speech recognized", domain.ErrRecognition)
	}
	req.Input = text
	res, err := s.HandleTurn(ctx, sess, req)
	return text, res, err
}

// Ingest adds an uploaded document to the index.
func (s *ChatService) Ingest(ctx context.Context, name string, data []byte) (ingest.Result, error) {
	return s.deps.Ingester.Ingest(ctx, name, data)
}

// IngestFile adds a document from disk to the index.
func (s *ChatService) IngestFile(ctx context.Context, path string) (ingest.Result, error) {
	return s.deps.Ingester.IngestFile(ctx, path)
}

// DocumentCount returns the number of indexed chunks.
func (s *ChatService) DocumentCount() int {
	return s.deps.Index.Count()
}

// Summarize condenses the session history. An empty history yields "".
func (s *ChatService) Summarize(ctx context.Context, sess *session.Session) (string, error) {
	history := sess.Snapshot().History
	if len(history) == 0 {
		return "", nil
	}
	out, err := s.deps.Summarizer.Summarize(ctx, summarizer.Transcript(history))
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

// RecordFeedback stores a non-empty feedback note.
func (s *ChatService) RecordFeedback(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: feedback is empty", domain.ErrValidation)
	}
	fb := domain.Feedback{ID: uuid.NewString(), Text: text, CreatedAt: s.now()}
	if err := s.deps.Feedback.AppendFeedback(ctx, fb); err != nil {
		if !errors.Is(err, domain.ErrStorage) {
			err = fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		return err
	}
	return nil
}

// UpdateProfile replaces the session profile, switches the display language
// to the preferred one and persists the profile.
func (s *ChatService) UpdateProfile(ctx context.Context, sess *session.Session, p domain.Profile) error {
	p.Name = strings.TrimSpace(p.Name)
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if !slices.Contains(s.cfg.Languages, p.PreferredLanguage) {
		return fmt.Errorf("%w: unknown language %q (known: %s)",
			domain.ErrValidation, p.PreferredLanguage, strings.Join(s.cfg.Languages, ", "))
	}
	return sess.Do(func(st *session.State) error {
		st.Profile = p
		st.Language = p.PreferredLanguage
		if err := s.deps.Profiles.SaveProfile(ctx, sess.ID, p); err != nil {
			if !errors.Is(err, domain.ErrStorage) {
				err = fmt.Errorf("%w: %w", domain.ErrStorage, err)
			}
			return err
		}
		return nil
	})
}

// Search looks the query up on the web.
func (s *ChatService) Search(ctx context.Context, query string) ([]domain.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is empty", domain.ErrValidation)
	}
	if s.deps.Searcher == nil {
		return nil, errors.New("web search is not configured")
	}
	return s.deps.Searcher.Search(ctx, query)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
