package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ModelRoute maps a model identifier to the backend that serves it.
type ModelRoute struct {
	ID      string `yaml:"id" validate:"required"`
	Backend string `yaml:"backend" validate:"oneof=openai anthropic gemini ollama"`
}

// OpenAIModelConfig configures chat completions on an OpenAI-compatible API.
type OpenAIModelConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AnthropicModelConfig configures the Anthropic messages API.
type AnthropicModelConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	MaxTokens int    `yaml:"max_tokens"`
}

// GeminiModelConfig configures the Gemini API.
type GeminiModelConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
}

// OllamaModelConfig configures a local Ollama server.
type OllamaModelConfig struct {
	URL         string `yaml:"url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ModelConfig selects the language model backends.
type ModelConfig struct {
	// Backend serves model IDs that have no explicit route.
	Backend   string                `yaml:"backend" validate:"oneof=openai anthropic gemini ollama"`
	Default   string                `yaml:"default" validate:"required"`
	System    string                `yaml:"system"`
	Models    []ModelRoute          `yaml:"models" validate:"dive"`
	OpenAI    *OpenAIModelConfig    `yaml:"openai,omitempty"`
	Anthropic *AnthropicModelConfig `yaml:"anthropic,omitempty"`
	Gemini    *GeminiModelConfig    `yaml:"gemini,omitempty"`
	Ollama    *OllamaModelConfig    `yaml:"ollama,omitempty"`
}

// LibreTranslateConfig contains connection details for a LibreTranslate server.
type LibreTranslateConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// TranslationConfig selects the translator and the language set.
type TranslationConfig struct {
	Backend        string                `yaml:"backend" validate:"oneof=none llm libretranslate"`
	Model          string                `yaml:"model"`
	PivotLanguage  string                `yaml:"pivot_language" validate:"required"`
	Languages      []string              `yaml:"languages" validate:"min=1"`
	CacheTTLSecs   int                   `yaml:"cache_ttl_secs"`
	LibreTranslate *LibreTranslateConfig `yaml:"libretranslate,omitempty"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// GeminiEmbedderConfig configures Gemini embeddings.
type GeminiEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type" validate:"oneof=tfidf openai gemini"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type" validate:"oneof=character sentence"`
	ChunkSize         int    `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap      int    `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type" validate:"oneof=memory qdrant pgvector"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	PGVector *PostgresConfig `yaml:"pgvector,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PostgresConfig contains a PostgreSQL connection string, or the name of an
// env var holding one.
type PostgresConfig struct {
	DSN    string `yaml:"dsn"`
	DSNEnv string `yaml:"dsn_env"`
}

// RetrievalConfig controls document context lookup.
type RetrievalConfig struct {
	K int `yaml:"k" validate:"gt=0"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type" validate:"oneof=frequency llm"`
	MaxSentences int    `yaml:"max_sentences"`
	Model        string `yaml:"model"`
}

// RedisConfig contains a redis URL, or the name of an env var holding one.
type RedisConfig struct {
	URL    string `yaml:"url"`
	URLEnv string `yaml:"url_env"`
	Prefix string `yaml:"prefix"`
}

// StorageConfig selects where history, profile and feedback are persisted.
type StorageConfig struct {
	Type     string          `yaml:"type" validate:"oneof=file postgres redis"`
	Dir      string          `yaml:"dir"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
	Redis    *RedisConfig    `yaml:"redis,omitempty"`
}

// VoiceConfig configures speech recognition and synthesis.
type VoiceConfig struct {
	APIKeyEnv        string `yaml:"api_key_env"`
	BaseURL          string `yaml:"base_url"`
	TranscribeModel  string `yaml:"transcribe_model"`
	SpeechModel      string `yaml:"speech_model"`
	Voice            string `yaml:"voice"`
	MaxRecordingSecs int    `yaml:"max_recording_secs"`
}

// SearchConfig configures web search.
type SearchConfig struct {
	URL         string `yaml:"url"`
	MaxResults  int    `yaml:"max_results"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetryConfig bounds retries of transient adapter failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" validate:"gte=1"`
}

// SessionConfig names the session restored at startup.
type SessionConfig struct {
	ID     string `yaml:"id" validate:"required"`
	TTLMin int    `yaml:"ttl_minutes"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Model       ModelConfig       `yaml:"model"`
	Translation TranslationConfig `yaml:"translation"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Storage     StorageConfig     `yaml:"storage"`
	Voice       VoiceConfig       `yaml:"voice"`
	Search      SearchConfig      `yaml:"search"`
	Retry       RetryConfig       `yaml:"retry"`
	Session     SessionConfig     `yaml:"session"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/chatbot/config.yaml.
// If neither exists, it writes defaults to ~/.config/chatbot/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that every language code parses.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, code := range append([]string{c.Translation.PivotLanguage}, c.Translation.Languages...) {
		if _, err := language.Parse(code); err != nil {
			return fmt.Errorf("invalid config: language %q: %w", code, err)
		}
	}
	if !c.KnownLanguage(c.Translation.PivotLanguage) {
		return fmt.Errorf("invalid config: pivot language %q is not in languages", c.Translation.PivotLanguage)
	}
	// tfidf vectors depend on the whole corpus and are rebuilt on every upload
	if c.Embedder.Type == "tfidf" && c.VectorStore.Type != "memory" {
		return fmt.Errorf("invalid config: the tfidf embedder needs the memory vector store, not %s", c.VectorStore.Type)
	}
	return nil
}

// KnownLanguage reports whether code is one of the configured languages.
func (c *AppConfig) KnownLanguage(code string) bool {
	for _, l := range c.Translation.Languages {
		if l == code {
			return true
		}
	}
	return false
}

// ModelIDs returns the selectable model identifiers, default first.
func (c *AppConfig) ModelIDs() []string {
	ids := []string{c.Model.Default}
	for _, r := range c.Model.Models {
		if r.ID != c.Model.Default {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chatbot", "config.yaml"), nil
}

// Default returns the built-in configuration: OpenAI models, LLM
// translation, TF-IDF retrieval in memory and file storage.
func Default() *AppConfig {
	cfg := &AppConfig{
		Model: ModelConfig{
			Backend: "openai",
			Default: "gpt-3.5-turbo",
			Models: []ModelRoute{
				{ID: "gpt-3.5-turbo", Backend: "openai"},
				{ID: "gpt-4", Backend: "openai"},
				{ID: "claude-3-5-haiku-latest", Backend: "anthropic"},
				{ID: "gemini-2.0-flash", Backend: "gemini"},
				{ID: "llama3", Backend: "ollama"},
			},
		},
		Translation: TranslationConfig{Backend: "llm"},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		Chunker:     ChunkerConfig{Type: "character"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Summarizer:  SummarizerConfig{Type: "frequency"},
		Storage:     StorageConfig{Type: "file"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Model.Backend == "" {
		cfg.Model.Backend = "openai"
	}
	if cfg.Model.Default == "" {
		cfg.Model.Default = "gpt-3.5-turbo"
	}
	if cfg.Model.System == "" {
		cfg.Model.System = "You are a helpful assistant. Answer clearly and concisely."
	}
	if cfg.Model.OpenAI == nil {
		cfg.Model.OpenAI = &OpenAIModelConfig{}
	}
	if cfg.Model.OpenAI.BaseURL == "" {
		cfg.Model.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model.OpenAI.APIKeyEnv == "" {
		cfg.Model.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Model.OpenAI.TimeoutSecs == 0 {
		cfg.Model.OpenAI.TimeoutSecs = 60
	}
	if cfg.Model.Anthropic == nil {
		cfg.Model.Anthropic = &AnthropicModelConfig{}
	}
	if cfg.Model.Anthropic.APIKeyEnv == "" {
		cfg.Model.Anthropic.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if cfg.Model.Anthropic.MaxTokens == 0 {
		cfg.Model.Anthropic.MaxTokens = 1024
	}
	if cfg.Model.Gemini == nil {
		cfg.Model.Gemini = &GeminiModelConfig{}
	}
	if cfg.Model.Gemini.APIKeyEnv == "" {
		cfg.Model.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Model.Ollama == nil {
		cfg.Model.Ollama = &OllamaModelConfig{}
	}
	if cfg.Model.Ollama.URL == "" {
		cfg.Model.Ollama.URL = "http://localhost:11434"
	}
	if cfg.Model.Ollama.TimeoutSecs == 0 {
		cfg.Model.Ollama.TimeoutSecs = 120
	}

	if cfg.Translation.Backend == "" {
		cfg.Translation.Backend = "llm"
	}
	if cfg.Translation.PivotLanguage == "" {
		cfg.Translation.PivotLanguage = "en"
	}
	if len(cfg.Translation.Languages) == 0 {
		cfg.Translation.Languages = []string{"en", "hi", "mr"}
	}
	if cfg.Translation.CacheTTLSecs == 0 {
		cfg.Translation.CacheTTLSecs = 3600
	}
	if cfg.Translation.Backend == "libretranslate" {
		if cfg.Translation.LibreTranslate == nil {
			cfg.Translation.LibreTranslate = &LibreTranslateConfig{}
		}
		if cfg.Translation.LibreTranslate.URL == "" {
			cfg.Translation.LibreTranslate.URL = "http://localhost:5000"
		}
		if cfg.Translation.LibreTranslate.APIKeyEnv == "" {
			cfg.Translation.LibreTranslate.APIKeyEnv = "LIBRETRANSLATE_API_KEY"
		}
		if cfg.Translation.LibreTranslate.TimeoutSecs == 0 {
			cfg.Translation.LibreTranslate.TimeoutSecs = 15
		}
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "gemini" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiEmbedderConfig{}
		}
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "character"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = min(200, cfg.Chunker.ChunkSize/5)
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "chatbot_documents"
		}
	}
	if cfg.VectorStore.Type == "pgvector" && cfg.VectorStore.PGVector == nil {
		cfg.VectorStore.PGVector = &PostgresConfig{DSNEnv: "CHATBOT_POSTGRES_DSN"}
	}

	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 4
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "file"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = defaultDataDir()
	}
	if cfg.Storage.Type == "postgres" && cfg.Storage.Postgres == nil {
		cfg.Storage.Postgres = &PostgresConfig{DSNEnv: "CHATBOT_POSTGRES_DSN"}
	}
	if cfg.Storage.Type == "redis" {
		if cfg.Storage.Redis == nil {
			cfg.Storage.Redis = &RedisConfig{}
		}
		if cfg.Storage.Redis.URL == "" && cfg.Storage.Redis.URLEnv == "" {
			cfg.Storage.Redis.URL = "redis://localhost:6379/0"
		}
		if cfg.Storage.Redis.Prefix == "" {
			cfg.Storage.Redis.Prefix = "chatbot"
		}
	}

	if cfg.Voice.APIKeyEnv == "" {
		cfg.Voice.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Voice.TranscribeModel == "" {
		cfg.Voice.TranscribeModel = "whisper-1"
	}
	if cfg.Voice.SpeechModel == "" {
		cfg.Voice.SpeechModel = "tts-1"
	}
	if cfg.Voice.Voice == "" {
		cfg.Voice.Voice = "alloy"
	}
	if cfg.Voice.MaxRecordingSecs == 0 {
		cfg.Voice.MaxRecordingSecs = 30
	}

	if cfg.Search.URL == "" {
		cfg.Search.URL = "https://api.duckduckgo.com/"
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 5
	}
	if cfg.Search.TimeoutSecs == 0 {
		cfg.Search.TimeoutSecs = 10
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Session.ID == "" {
		cfg.Session.ID = "default"
	}
	if cfg.Session.TTLMin == 0 {
		cfg.Session.TTLMin = 60
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "chatbot", "data")
	}
	return ".chatbot"
}

// Resolve returns the configured connection string, reading DSNEnv when DSN is empty.
func (p *PostgresConfig) Resolve() (string, error) {
	if p == nil {
		return "", errors.New("postgres is not configured")
	}
	if p.DSN != "" {
		return p.DSN, nil
	}
	if v := os.Getenv(p.DSNEnv); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("missing postgres DSN in env %s", p.DSNEnv)
}

// Resolve returns the configured redis URL, reading URLEnv when URL is empty.
func (r *RedisConfig) Resolve() (string, error) {
	if r == nil {
		return "", errors.New("redis is not configured")
	}
	if r.URL != "" {
		return r.URL, nil
	}
	if v := os.Getenv(r.URLEnv); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("missing redis URL in env %s", r.URLEnv)
}
