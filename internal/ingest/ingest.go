// Package ingest extracts text from uploaded files and adds it to the index.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"chatbot/internal/domain"
	"chatbot/internal/logger"
)

// Result describes an indexed upload.
type Result struct {
	SourceID string
	Name     string
	Chunks   int
}

// Ingester dispatches on file extension.
type Ingester struct {
	index      domain.Index
	extractors map[string]Extractor
}

func New(index domain.Index) *Ingester {
	return &Ingester{
		index: index,
		extractors: map[string]Extractor{
			".txt":  extractText,
			".md":   extractText,
			".pdf":  extractPDF,
			".docx": extractDOCX,
		},
	}
}

// Supported returns the accepted extensions.
func (i *Ingester) Supported() []string {
	return []string{".pdf", ".txt", ".md", ".docx"}
}

// SourceID derives a stable ID from the upload name, so uploading a file with
// the same name again replaces its chunks.
func SourceID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("chatbot:document:"+filepath.Base(name))).String()
}

// Ingest extracts text from data and inserts it into the index. Errors wrap
// domain.ErrIngestion and leave the index untouched.
func (i *Ingester) Ingest(ctx context.Context, name string, data []byte) (Result, error) {
	ext := strings.ToLower(filepath.Ext(name))
	extract, ok := i.extractors[ext]
	if !ok {
		return Result{}, fmt.Errorf("%w: unsupported file type %q (want one of %s)",
			domain.ErrIngestion, ext, strings.Join(i.Supported(), ", "))
	}
	text, err := extract(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", domain.ErrIngestion, name, err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: %s contains no text", domain.ErrIngestion, name)
	}
	doc := domain.Document{ID: SourceID(name), Name: filepath.Base(name), Content: text}
	n, err := i.index.Insert(ctx, doc)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", domain.ErrIngestion, name, err)
	}
	logger.Info("Document ingested", "name", doc.Name, "source", doc.ID, "chunks", n)
	return Result{SourceID: doc.ID, Name: doc.Name, Chunks: n}, nil
}

// IngestFile reads path and ingests it.
func (i *Ingester) IngestFile(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrIngestion, err)
	}
	return i.Ingest(ctx, path, data)
}
