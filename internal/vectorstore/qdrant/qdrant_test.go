package qdrant_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/domain"
	"chatbot/internal/vectorstore/qdrant"
)

type recorded struct {
	method, path, apiKey string
	body                 map[string]any
}

func newServer(t *testing.T, searchResponse string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, apiKey: r.Header.Get("api-key")}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/collections/docs/points/search":
			_, _ = w.Write([]byte(searchResponse))
		default:
			_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv, calls := newServer(t, `{"result":[{"id":"x","score":0.9,"payload":{"source_id":"s","chunk_id":"s:1","index":1,"text":"hello"}}]}`)
	s := qdrant.NewStorage(qdrant.Config{URL: srv.URL, APIKey: "secret", Collection: "docs"})

	require.NoError(t, s.Clear(ctx), "404 on delete is tolerated")
	require.NoError(t, s.Init(ctx, 3))
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{{SourceID: "s", ChunkID: "s:1", Index: 1, Text: "hello"}}, [][]float64{{1, 2, 3}}))

	res, err := s.Search(ctx, []float64{1, 2, 3}, 4)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, domain.Chunk{SourceID: "s", ChunkID: "s:1", Index: 1, Text: "hello"}, res[0].Chunk)
	assert.InDelta(t, 0.9, res[0].Score, 1e-9)

	require.Len(t, *calls, 4)
	for _, c := range *calls {
		assert.Equal(t, "secret", c.apiKey)
	}
	upsert := (*calls)[2]
	assert.Equal(t, "/collections/docs/points", upsert.path)
	points := upsert.body["points"].([]any)
	id := points[0].(map[string]any)["id"].(string)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, qdrant.PointID("s:1"), id)
	assert.EqualValues(t, 4, (*calls)[3].body["limit"])
}

func TestStorage_UpsertMismatch(t *testing.T) {
	t.Parallel()
	s := qdrant.NewStorage(qdrant.Config{URL: "http://unused", Collection: "docs"})
	assert.Error(t, s.Upsert(context.Background(), []domain.Chunk{{}}, nil))
	assert.Error(t, s.Init(context.Background(), 0))
}

func TestStorage_ListAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var mu sync.Mutex
	var offsets []any
	var deleted []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/collections/docs":
			w.WriteHeader(http.StatusConflict)
		case "/collections/docs/points/scroll":
			offsets = append(offsets, body["offset"])
			if body["offset"] == nil {
				_, _ = w.Write([]byte(`{"result":{"points":[{"id":"p1","payload":{"source_id":"a","chunk_id":"a:0","index":0,"text":"one"},"vector":[1,0]}],"next_page_offset":"p2"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"result":{"points":[{"id":"p2","payload":{"source_id":"b","chunk_id":"b:0","index":0,"text":"two"},"vector":[0,1]}],"next_page_offset":null}}`))
		case "/collections/docs/points/delete":
			deleted = body["points"].([]any)
			_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	s := qdrant.NewStorage(qdrant.Config{URL: srv.URL, Collection: "docs"})

	require.NoError(t, s.Init(ctx, 2), "existing collection is kept")

	chunks, vectors, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Chunk{
		{SourceID: "a", ChunkID: "a:0", Index: 0, Text: "one"},
		{SourceID: "b", ChunkID: "b:0", Index: 0, Text: "two"},
	}, chunks)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, []any{nil, "p2"}, offsets)

	require.NoError(t, s.Delete(ctx, []string{"a:0"}))
	assert.Equal(t, []any{qdrant.PointID("a:0")}, deleted)
	require.NoError(t, s.Delete(ctx, nil))
}

func TestStorage_ListMissingCollection(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	s := qdrant.NewStorage(qdrant.Config{URL: srv.URL, Collection: "docs"})

	chunks, vectors, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Empty(t, vectors)
	assert.NoError(t, s.Delete(context.Background(), []string{"x"}))
}
