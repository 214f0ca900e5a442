// Package summarizer condenses conversation transcripts.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"chatbot/internal/domain"
	"chatbot/internal/logger"
)

const (
	mapPrompt    = "Summarize this part of a conversation in a few sentences. Keep facts, names and decisions.\n\n%s"
	reducePrompt = "Combine these partial summaries of one conversation into a single concise summary.\n\n%s"
	llmSystem    = "You write concise, factual summaries."
)

// Splitter cuts long text into model-sized pieces.
type Splitter interface {
	Split(text string) []string
}

// LLMSummarizer summarizes with a language model. Text that does not fit one
// chunk is summarized piecewise and the partial summaries are combined.
type LLMSummarizer struct {
	generator domain.Generator
	splitter  Splitter
	modelID   string
}

func NewLLMSummarizer(generator domain.Generator, splitter Splitter, modelID string) *LLMSummarizer {
	return &LLMSummarizer{generator: generator, splitter: splitter, modelID: modelID}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	parts := s.splitter.Split(text)
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return s.generate(ctx, fmt.Sprintf(mapPrompt, parts[0]))
	}
	partials := make([]string, 0, len(parts))
	for i, p := range parts {
		out, err := s.generate(ctx, fmt.Sprintf(mapPrompt, p))
		if err != nil {
			return "", fmt.Errorf("summarize part %d/%d: %w", i+1, len(parts), err)
		}
		partials = append(partials, out)
	}
	logger.Debug("Reducing partial summaries", "parts", len(partials))
	return s.generate(ctx, fmt.Sprintf(reducePrompt, strings.Join(partials, "\n\n")))
}

func (s *LLMSummarizer) generate(ctx context.Context, prompt string) (string, error) {
	return s.generator.Generate(ctx, domain.GenerateRequest{Prompt: prompt, ModelID: s.modelID, System: llmSystem})
}

// Transcript renders history as alternating "User:" and "Assistant:" lines.
func Transcript(history domain.History) string {
	var b strings.Builder
	for _, t := range history {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.UserText, t.AssistantText)
	}
	return b.String()
}
