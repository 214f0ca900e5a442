package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"baliance.com/gooxml/document"
	"github.com/gen2brain/go-fitz"
)

// Extractor turns raw file bytes into plain text.
type Extractor func(data []byte) (string, error)

func extractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text file is not valid UTF-8")
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

func extractPDF(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		_ = doc.Close()
	}()
	var b strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// extractDOCX returns the body paragraphs followed by the table cells, one
// paragraph per line.
func extractDOCX(data []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var b strings.Builder
	writeParagraphs(&b, doc.Paragraphs())
	for _, t := range doc.Tables() {
		for _, row := range t.Rows() {
			for _, cell := range row.Cells() {
				writeParagraphs(&b, cell.Paragraphs())
			}
		}
	}
	return b.String(), nil
}

func writeParagraphs(b *strings.Builder, paragraphs []document.Paragraph) {
	for _, p := range paragraphs {
		for _, r := range p.Runs() {
			b.WriteString(r.Text())
		}
		b.WriteByte('\n')
	}
}
