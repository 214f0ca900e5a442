package tfidf_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/embedding/tfidf"
)

func TestEmbedder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("embed before prepare fails", func(t *testing.T) {
		t.Parallel()
		_, err := tfidf.NewEmbedder().Embed(ctx, "anything")
		assert.Error(t, err)
	})

	t.Run("empty corpus fails", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, tfidf.NewEmbedder().Prepare(nil))
		assert.Error(t, tfidf.NewEmbedder().Prepare([]string{"the and of"}))
	})

	t.Run("vectors are normalised and similar texts score higher", func(t *testing.T) {
		t.Parallel()
		e := tfidf.NewEmbedder()
		require.NoError(t, e.Prepare([]string{
			"cats purr and chase mice",
			"rockets launch satellites into orbit",
		}))
		assert.Equal(t, 8, e.Dimension())

		cat, err := e.Embed(ctx, "cats chase mice")
		require.NoError(t, err)
		rocket, err := e.Embed(ctx, "rockets orbit")
		require.NoError(t, err)
		query, err := e.Embed(ctx, "why do cats chase mice")
		require.NoError(t, err)

		assert.InDelta(t, 1.0, norm(cat), 1e-9)
		assert.Greater(t, dot(query, cat), dot(query, rocket))
	})

	t.Run("unknown tokens give zero vector", func(t *testing.T) {
		t.Parallel()
		e := tfidf.NewEmbedder()
		require.NoError(t, e.Prepare([]string{"alpha beta"}))
		v, err := e.Embed(ctx, "gamma")
		require.NoError(t, err)
		assert.Zero(t, norm(v))
	})

	t.Run("devanagari words keep their vowel signs", func(t *testing.T) {
		t.Parallel()
		e := tfidf.NewEmbedder()
		require.NoError(t, e.Prepare([]string{"नमस्ते दुनिया"}))
		assert.Equal(t, 2, e.Dimension())
	})
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm(v []float64) float64 { return math.Sqrt(dot(v, v)) }
