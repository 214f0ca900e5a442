package translate

import (
	"context"
	"fmt"

	"chatbot/internal/domain"
)

const llmSystem = "You are a translation engine. Reply with the translation only, " +
	"without quotes, notes or explanations. Keep names, numbers and formatting."

// LLM translates by prompting a language model.
type LLM struct {
	generator domain.Generator
	modelID   string
}

func NewLLM(generator domain.Generator, modelID string) *LLM {
	return &LLM{generator: generator, modelID: modelID}
}

func (t *LLM) Translate(ctx context.Context, text, lang string) (string, error) {
	return t.generator.Generate(ctx, domain.GenerateRequest{
		Prompt:  fmt.Sprintf("Translate the following text to %s:\n\n%s", LanguageName(lang), text),
		ModelID: t.modelID,
		System:  llmSystem,
	})
}
