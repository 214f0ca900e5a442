package model

import (
	"fmt"
	"strings"

	"chatbot/internal/domain"
)

// BuildPrompt returns question unchanged when there is no context, otherwise
// a retrieval-augmented prompt listing the chunks in rank order.
func BuildPrompt(question string, chunks []domain.Chunk) string {
	if len(chunks) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString("Answer the question using the document excerpts below. ")
	b.WriteString("If they do not contain the answer, say so and answer from general knowledge.\n\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(c.Text))
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
