package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/domain"
	"chatbot/internal/vectorstore/memory"
)

func TestStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects invalid dimension", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, memory.NewStorage().Init(ctx, 0))
	})

	t.Run("ranks by cosine similarity", func(t *testing.T) {
		t.Parallel()
		s := memory.NewStorage()
		require.NoError(t, s.Init(ctx, 2))
		chunks := []domain.Chunk{{ChunkID: "a"}, {ChunkID: "b"}, {ChunkID: "c"}}
		vectors := [][]float64{{1, 0}, {0, 3}, {2, 2}}
		require.NoError(t, s.Upsert(ctx, chunks, vectors))

		res, err := s.Search(ctx, []float64{0, 1}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "b", res[0].Chunk.ChunkID)
		assert.InDelta(t, 1.0, res[0].Score, 1e-9)
		assert.Equal(t, "c", res[1].Chunk.ChunkID)
	})

	t.Run("upsert replaces by chunk id", func(t *testing.T) {
		t.Parallel()
		s := memory.NewStorage()
		require.NoError(t, s.Init(ctx, 1))
		require.NoError(t, s.Upsert(ctx, []domain.Chunk{{ChunkID: "x", Text: "old"}}, [][]float64{{1}}))
		require.NoError(t, s.Upsert(ctx, []domain.Chunk{{ChunkID: "x", Text: "new"}}, [][]float64{{1}}))
		assert.Equal(t, 1, s.Len())
		res, err := s.Search(ctx, []float64{1}, 5)
		require.NoError(t, err)
		assert.Equal(t, "new", res[0].Chunk.Text)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		t.Parallel()
		s := memory.NewStorage()
		require.NoError(t, s.Init(ctx, 2))
		assert.Error(t, s.Upsert(ctx, []domain.Chunk{{ChunkID: "x"}}, [][]float64{{1}}))
		assert.Error(t, s.Upsert(ctx, []domain.Chunk{{ChunkID: "x"}}, nil))
	})

	t.Run("empty store returns nothing", func(t *testing.T) {
		t.Parallel()
		s := memory.NewStorage()
		require.NoError(t, s.Init(ctx, 2))
		res, err := s.Search(ctx, []float64{1, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, res)
		require.NoError(t, s.Clear(ctx))
		assert.Zero(t, s.Len())
	})
	t.Run("init keeps contents for the same dimension", func(t *testing.T) {
		t.Parallel()
		s := memory.NewStorage()
		require.NoError(t, s.Init(ctx, 2))
		require.NoError(t, s.Upsert(ctx, []domain.Chunk{{ChunkID: "a"}}, [][]float64{{1, 0}}))
		require.NoError(t, s.Init(ctx, 2))
		assert.Equal(t, 1, s.Len())
		require.NoError(t, s.Init(ctx, 3))
		assert.Zero(t, s.Len())
	})

	t.Run("list and delete", func(t *testing.T) {
		t.Parallel()
		s := memory.NewStorage()
		require.NoError(t, s.Init(ctx, 2))
		chunks := []domain.Chunk{{SourceID: "d", ChunkID: "d:0"}, {SourceID: "d", ChunkID: "d:1"}, {SourceID: "e", ChunkID: "e:0"}}
		require.NoError(t, s.Upsert(ctx, chunks, [][]float64{{1, 0}, {0, 1}, {1, 1}}))

		require.NoError(t, s.Delete(ctx, []string{"d:1", "missing"}))
		got, vectors, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.Chunk{chunks[0], chunks[2]}, got)
		assert.Equal(t, [][]float64{{1, 0}, {1, 1}}, vectors)

		res, err := s.Search(ctx, []float64{0, 1}, 5)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "e:0", res[0].Chunk.ChunkID)
	})
}
