package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"baliance.com/gooxml/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/domain"
	"chatbot/internal/ingest"
	"chatbot/internal/mock"
)

// fakeIndex records inserted documents.
func fakeIndex(docs *[]domain.Document, insertErr error) *mock.Index {
	return &mock.Index{
		InsertFn: func(ctx context.Context, d domain.Document) (int, error) {
			if insertErr != nil {
				return 0, insertErr
			}
			*docs = append(*docs, d)
			return 2, nil
		},
		CountFn: func() int { return len(*docs) },
	}
}

func makeDOCX(t *testing.T, paragraphs, cells []string) []byte {
	t.Helper()
	doc := document.New()
	for _, text := range paragraphs {
		doc.AddParagraph().AddRun().AddText(text)
	}
	if len(cells) > 0 {
		row := doc.AddTable().AddRow()
		for _, text := range cells {
			row.AddCell().AddParagraph().AddRun().AddText(text)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Save(&buf))
	return buf.Bytes()
}

func TestIngester_Ingest(t *testing.T) {
	t.Parallel()

	t.Run("plain text", func(t *testing.T) {
		t.Parallel()
		var docs []domain.Document
		ing := ingest.New(fakeIndex(&docs, nil))
		res, err := ing.Ingest(context.Background(), "dir/notes.TXT", []byte("\ufeffHello world."))
		require.NoError(t, err)
		assert.Equal(t, 2, res.Chunks)
		assert.Equal(t, "notes.TXT", res.Name)
		require.Len(t, docs, 1)
		assert.Equal(t, "Hello world.", docs[0].Content)
		assert.Equal(t, ingest.SourceID("notes.TXT"), docs[0].ID)
	})

	t.Run("docx paragraphs", func(t *testing.T) {
		t.Parallel()
		var docs []domain.Document
		ing := ingest.New(fakeIndex(&docs, nil))
		data := makeDOCX(t, []string{"First line", "Second"}, []string{"Revenue", "42"})
		_, err := ing.Ingest(context.Background(), "report.docx", data)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Contains(t, docs[0].Content, "First line\nSecond\n")
		assert.Contains(t, docs[0].Content, "Revenue\n42\n")
	})

	failures := map[string]struct {
		name string
		data []byte
	}{
		"unsupported extension": {"image.png", []byte{0x89, 'P', 'N', 'G'}},
		"corrupt docx":          {"broken.docx", []byte("not a zip")},
		"corrupt pdf":           {"broken.pdf", []byte("definitely not a pdf")},
		"empty text":            {"blank.md", []byte("  \n\t ")},
		"invalid utf-8":         {"bin.txt", []byte{0xff, 0xfe, 0xfd}},
	}
	for name, tc := range failures {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var docs []domain.Document
			idx := fakeIndex(&docs, nil)
			_, err := ingest.New(idx).Ingest(context.Background(), tc.name, tc.data)
			assert.ErrorIs(t, err, domain.ErrIngestion)
			assert.Zero(t, idx.Count())
		})
	}

	t.Run("index failure", func(t *testing.T) {
		t.Parallel()
		var docs []domain.Document
		cause := errors.New("embedder down")
		_, err := ingest.New(fakeIndex(&docs, cause)).Ingest(context.Background(), "a.txt", []byte("text"))
		assert.ErrorIs(t, err, domain.ErrIngestion)
		assert.ErrorIs(t, err, cause)
	})
}

func TestIngester_IngestFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "faq.md")
	require.NoError(t, os.WriteFile(path, []byte("# FAQ\nAnswers."), 0o644))

	var docs []domain.Document
	res, err := ingest.New(fakeIndex(&docs, nil)).IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "faq.md", res.Name)

	_, err = ingest.New(fakeIndex(&docs, nil)).IngestFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, domain.ErrIngestion)
}

func TestSourceID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ingest.SourceID("a/b/report.pdf"), ingest.SourceID("report.pdf"))
	assert.NotEqual(t, ingest.SourceID("report.pdf"), ingest.SourceID("other.pdf"))
}
