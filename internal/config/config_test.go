package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Model.Backend)
	assert.Equal(t, "en", cfg.Translation.PivotLanguage)
	assert.Equal(t, []string{"en", "hi", "mr"}, cfg.Translation.Languages)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 4, cfg.Retrieval.K)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_AppliesDefaultsToPartialFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  default: claude-3-5-haiku-latest
  backend: anthropic
chunker:
  chunk_size: 100
embedder:
  type: openai
vector_store:
  type: qdrant
storage:
  type: redis
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Model.Default)
	assert.Equal(t, 20, cfg.Chunker.ChunkOverlap)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.Qdrant.URL)
	require.NotNil(t, cfg.Storage.Redis)
	url, err := cfg.Storage.Redis.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", url)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"unknown vector store": "vector_store:\n  type: faiss\n",
		"overlap too large":    "chunker:\n  chunk_size: 10\n  chunk_overlap: 10\n",
		"pivot not known":      "translation:\n  pivot_language: fr\n",
		"bad language code":    "translation:\n  languages: [en, '!!']\n",
		"tfidf with qdrant":    "vector_store:\n  type: qdrant\n",
		"tfidf with pgvector":  "embedder:\n  type: tfidf\nvector_store:\n  type: pgvector\n",
		"malformed yaml":       "model: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := config.Default()
	cfg.Retrieval.K = 7
	require.NoError(t, config.Save(path, cfg))

	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Retrieval.K)
	assert.Equal(t, cfg.ModelIDs(), got.ModelIDs())
}

func TestAppConfig_KnownLanguage(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	assert.True(t, cfg.KnownLanguage("hi"))
	assert.False(t, cfg.KnownLanguage("de"))
}

func TestAppConfig_ModelIDs(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	ids := cfg.ModelIDs()
	require.NotEmpty(t, ids)
	assert.Equal(t, cfg.Model.Default, ids[0])
	assert.Contains(t, ids, "gpt-4")
}

func TestPostgresConfig_Resolve(t *testing.T) {
	t.Setenv("TEST_CHATBOT_DSN", "postgres://u@h/db")
	dsn, err := (&config.PostgresConfig{DSNEnv: "TEST_CHATBOT_DSN"}).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u@h/db", dsn)

	_, err = (&config.PostgresConfig{DSNEnv: "TEST_CHATBOT_DSN_UNSET"}).Resolve()
	assert.Error(t, err)

	var nilCfg *config.PostgresConfig
	_, err = nilCfg.Resolve()
	assert.Error(t, err)
}
