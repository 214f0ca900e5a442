package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/model/ollama"
)

func TestClient_Complete(t *testing.T) {
	t.Parallel()

	t.Run("returns response text", func(t *testing.T) {
		t.Parallel()
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/generate", r.URL.Path)
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = w.Write([]byte(`{"response":"Namaste","done":true}`))
		}))
		t.Cleanup(srv.Close)

		c, err := ollama.New(ollama.Config{URL: srv.URL})
		require.NoError(t, err)
		out, err := c.Complete(context.Background(), "llama3", "sys", "hello")
		require.NoError(t, err)
		assert.Equal(t, "Namaste", out)
		assert.Equal(t, "llama3", got["model"])
		assert.Equal(t, "sys", got["system"])
		assert.Equal(t, false, got["stream"])
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model \"x\" not found"}`))
		}))
		t.Cleanup(srv.Close)

		c, err := ollama.New(ollama.Config{URL: srv.URL})
		require.NoError(t, err)
		_, err = c.Complete(context.Background(), "x", "", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("error field in body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":"out of memory"}`))
		}))
		t.Cleanup(srv.Close)

		c, err := ollama.New(ollama.Config{URL: srv.URL})
		require.NoError(t, err)
		_, err = c.Complete(context.Background(), "x", "", "hello")
		assert.ErrorContains(t, err, "out of memory")
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()
		_, err := ollama.New(ollama.Config{URL: "://nope"})
		assert.Error(t, err)
	})
}
