package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"chatbot/internal/audio"
	"chatbot/internal/chunker"
	"chatbot/internal/config"
	"chatbot/internal/domain"
	embgemini "chatbot/internal/embedding/gemini"
	embopenai "chatbot/internal/embedding/openai"
	"chatbot/internal/embedding/tfidf"
	"chatbot/internal/ingest"
	"chatbot/internal/logger"
	"chatbot/internal/model"
	"chatbot/internal/model/anthropic"
	"chatbot/internal/model/gemini"
	"chatbot/internal/model/ollama"
	"chatbot/internal/model/openai"
	"chatbot/internal/retry"
	"chatbot/internal/search"
	"chatbot/internal/service"
	"chatbot/internal/session"
	"chatbot/internal/speech"
	"chatbot/internal/storage/file"
	"chatbot/internal/storage/postgres"
	"chatbot/internal/storage/redis"
	"chatbot/internal/summarizer"
	"chatbot/internal/translate"
	"chatbot/internal/vectorstore/memory"
	"chatbot/internal/vectorstore/pgvector"
	"chatbot/internal/vectorstore/qdrant"
)

// stores bundles the three persistence ports, which every backend serves
// from one value.
type stores interface {
	domain.HistoryStore
	domain.ProfileStore
	domain.FeedbackStore
}

// app is the assembled object graph.
type app struct {
	cfg      *config.AppConfig
	chat     *service.ChatService
	sessions *session.Manager
	speaker  *speech.Speaker
	voice    *speech.OpenAI
	closers  []func() error
}

// Close releases connections and stops the speech worker.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// buildApp assembles the service from cfg. withAudio opens the audio device
// for spoken replies.
func buildApp(ctx context.Context, cfg *config.AppConfig, withAudio bool) (*app, error) {
	a := &app{cfg: cfg}
	dbs := map[string]*gorm.DB{}
	openDB := func(pc *config.PostgresConfig) (*gorm.DB, error) {
		dsn, err := pc.Resolve()
		if err != nil {
			return nil, err
		}
		if db, ok := dbs[dsn]; ok {
			return db, nil
		}
		db, err := postgres.Open(dsn)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		dbs[dsn] = db
		return db, nil
	}

	router, err := buildRouter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	translator, err := buildTranslator(cfg, router)
	if err != nil {
		return nil, err
	}

	emb, err := buildEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	chk, splitter, err := buildChunker(cfg)
	if err != nil {
		return nil, err
	}
	var vs domain.VectorStore
	switch cfg.VectorStore.Type {
	case "memory":
		vs = memory.NewStorage()
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		vs = qdrant.NewStorage(qdrant.Config{URL: q.URL, APIKey: q.APIKey, Collection: q.Collection, Timeout: secs(q.TimeoutSecs)})
	case "pgvector":
		db, err := openDB(cfg.VectorStore.PGVector)
		if err != nil {
			return nil, fmt.Errorf("pgvector: %w", err)
		}
		vs = pgvector.NewStorage(db)
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
	index := service.NewRAGService(chk, emb, vs)
	if err := index.Load(ctx); err != nil {
		return nil, err
	}

	var st stores
	switch cfg.Storage.Type {
	case "file":
		st = file.New(cfg.Storage.Dir)
	case "postgres":
		db, err := openDB(cfg.Storage.Postgres)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		if st, err = postgres.New(ctx, db); err != nil {
			return nil, err
		}
	case "redis":
		url, err := cfg.Storage.Redis.Resolve()
		if err != nil {
			return nil, err
		}
		rdb, err := redis.Connect(ctx, url)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		st = redis.New(rdb, cfg.Storage.Redis.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Storage.Type)
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency":
		sum = summarizer.NewFrequencySummarizer(cfg.Summarizer.MaxSentences)
	case "llm":
		modelID := cfg.Summarizer.Model
		if modelID == "" {
			modelID = cfg.Model.Default
		}
		sum = summarizer.NewLLMSummarizer(router, splitter, modelID)
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	deps := service.Deps{
		Translator: translator,
		Generator:  router,
		Index:      index,
		Ingester:   ingest.New(index),
		History:    st,
		Profiles:   st,
		Feedback:   st,
		Summarizer: sum,
		Searcher: search.NewDuckDuckGo(search.Config{
			URL:        cfg.Search.URL,
			MaxResults: cfg.Search.MaxResults,
			Timeout:    secs(cfg.Search.TimeoutSecs),
		}),
	}

	voice, err := speech.NewOpenAI(speech.Config{
		BaseURL:         cfg.Voice.BaseURL,
		APIKeyEnv:       cfg.Voice.APIKeyEnv,
		TranscribeModel: cfg.Voice.TranscribeModel,
		SpeechModel:     cfg.Voice.SpeechModel,
		Voice:           cfg.Voice.Voice,
	})
	if err != nil {
		logger.Warn("Voice disabled", "error", err)
	} else {
		a.voice = voice
		deps.Transcriber = voice
	}
	if withAudio && a.voice != nil {
		if err := audio.Initialize(); err != nil {
			logger.Warn("Audio device unavailable", "error", err)
		} else {
			a.closers = append(a.closers, audio.Terminate)
			a.speaker = speech.NewSpeaker(a.voice, audio.NewPlayer())
			if err := a.speaker.Start(ctx); err != nil {
				return nil, err
			}
			a.closers = append(a.closers, a.speaker.Close)
			deps.Speech = a.speaker
		}
	}

	a.chat = service.NewChatService(deps, service.ChatConfig{
		PivotLanguage: cfg.Translation.PivotLanguage,
		Languages:     cfg.Translation.Languages,
		RetrievalK:    cfg.Retrieval.K,
		Retry:         retry.DefaultPolicy(cfg.Retry.MaxAttempts),
	})
	a.sessions = session.NewManager(st, st,
		session.Defaults{Language: cfg.Translation.PivotLanguage, ModelID: cfg.Model.Default},
		time.Duration(cfg.Session.TTLMin)*time.Minute)
	return a, nil
}

// buildRouter registers every backend whose credentials are present. Model
// IDs routed to a missing backend fail at generation time.
func buildRouter(ctx context.Context, cfg *config.AppConfig) (*model.Router, error) {
	mc := cfg.Model
	router := model.NewRouter(mc.Backend, mc.System)
	for _, r := range mc.Models {
		router.Route(r.ID, r.Backend)
	}

	if c, err := openai.New(openai.Config{
		BaseURL:   mc.OpenAI.BaseURL,
		APIKeyEnv: mc.OpenAI.APIKeyEnv,
		Timeout:   secs(mc.OpenAI.TimeoutSecs),
	}); err == nil {
		router.Register(c)
	} else {
		logger.Debug("OpenAI backend skipped", "error", err)
	}
	if c, err := anthropic.New(anthropic.Config{
		APIKeyEnv: mc.Anthropic.APIKeyEnv,
		MaxTokens: mc.Anthropic.MaxTokens,
	}); err == nil {
		router.Register(c)
	} else {
		logger.Debug("Anthropic backend skipped", "error", err)
	}
	if key := os.Getenv(mc.Gemini.APIKeyEnv); key != "" {
		c, err := gemini.New(ctx, key)
		if err != nil {
			return nil, err
		}
		router.Register(c)
	}
	c, err := ollama.New(ollama.Config{URL: mc.Ollama.URL, Timeout: secs(mc.Ollama.TimeoutSecs)})
	if err != nil {
		return nil, err
	}
	router.Register(c)
	return router, nil
}

func buildTranslator(cfg *config.AppConfig, gen domain.Generator) (domain.Translator, error) {
	tc := cfg.Translation
	var backend domain.Translator
	switch tc.Backend {
	case "none":
		return translate.Passthrough{}, nil
	case "llm":
		modelID := tc.Model
		if modelID == "" {
			modelID = cfg.Model.Default
		}
		backend = translate.NewLLM(gen, modelID)
	case "libretranslate":
		lt := tc.LibreTranslate
		backend = translate.NewLibreTranslate(lt.URL, os.Getenv(lt.APIKeyEnv), secs(lt.TimeoutSecs))
	default:
		return nil, fmt.Errorf("unknown translation backend: %s", tc.Backend)
	}
	return translate.NewService(backend, secs(tc.CacheTTLSecs)), nil
}

func buildEmbedder(ctx context.Context, cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf":
		return tfidf.NewEmbedder(), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		c, err := embopenai.NewClient(embopenai.Config{
			BaseURL:    o.BaseURL,
			APIKeyEnv:  o.APIKeyEnv,
			Model:      o.Model,
			Timeout:    secs(o.TimeoutSecs),
			MaxRetries: o.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		return c, nil
	case "gemini":
		g := cfg.Embedder.Gemini
		c, err := embgemini.New(ctx, os.Getenv(g.APIKeyEnv), g.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini embedder: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
}

// buildChunker returns the document chunker and a character splitter for
// the model summarizer.
func buildChunker(cfg *config.AppConfig) (domain.Chunker, summarizer.Splitter, error) {
	cc := cfg.Chunker
	splitter := chunker.NewCharacterChunker(cc.ChunkSize, cc.ChunkOverlap)
	switch cc.Type {
	case "character":
		return splitter, splitter, nil
	case "sentence":
		return chunker.NewSentenceChunker(cc.SentencesPerChunk, cc.OverlapSentences), splitter, nil
	}
	return nil, nil, fmt.Errorf("unknown chunker: %s", cc.Type)
}
