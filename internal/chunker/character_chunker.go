package chunker

import (
	"strings"
	"unicode"

	"chatbot/internal/domain"
)

// CharacterChunker splits text into windows of at most chunkSize runes, each
// window starting chunkSize-overlap runes after the previous one.
type CharacterChunker struct {
	chunkSize int
	overlap   int
}

func NewCharacterChunker(chunkSize, overlap int) *CharacterChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &CharacterChunker{chunkSize: chunkSize, overlap: overlap}
}

func (c *CharacterChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	parts := c.Split(document.Content)
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, newChunk(document.ID, i, p))
	}
	return chunks, nil
}

// Split returns the overlapping windows of text. Whitespace runs are
// collapsed first so that extracted PDF layout does not waste the budget.
func (c *CharacterChunker) Split(text string) []string {
	runes := []rune(strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " "))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.chunkSize {
		return []string{string(runes)}
	}
	step := c.chunkSize - c.overlap
	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, strings.TrimSpace(string(runes[i:end])))
		if end == len(runes) {
			break
		}
	}
	return out
}
