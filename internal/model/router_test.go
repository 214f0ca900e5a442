package model_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/domain"
	"chatbot/internal/model"
	"chatbot/internal/retry"
)

type fakeBackend struct {
	name  string
	reply string
	err   error
	got   struct{ model, system, prompt string }
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Complete(_ context.Context, m, system, prompt string) (string, error) {
	f.got.model, f.got.system, f.got.prompt = m, system, prompt
	return f.reply, f.err
}

func TestRouter_Generate(t *testing.T) {
	t.Parallel()

	t.Run("routes by model id", func(t *testing.T) {
		t.Parallel()
		oa := &fakeBackend{name: "openai", reply: "from openai"}
		an := &fakeBackend{name: "anthropic", reply: " from anthropic \n"}
		r := model.NewRouter("openai", "be nice")
		r.Register(oa)
		r.Register(an)
		r.Route("claude-3-5-haiku-latest", "anthropic")

		got, err := r.Generate(context.Background(), domain.GenerateRequest{Prompt: "hi", ModelID: "claude-3-5-haiku-latest"})
		require.NoError(t, err)
		assert.Equal(t, "from anthropic", got)
		assert.Equal(t, "be nice", an.got.system)
		assert.Equal(t, "hi", an.got.prompt)

		got, err = r.Generate(context.Background(), domain.GenerateRequest{Prompt: "hi", ModelID: "gpt-4", System: "custom"})
		require.NoError(t, err)
		assert.Equal(t, "from openai", got)
		assert.Equal(t, "custom", oa.got.system)
		assert.Equal(t, "gpt-4", oa.got.model)
	})

	t.Run("context chunks reach the prompt", func(t *testing.T) {
		t.Parallel()
		b := &fakeBackend{name: "openai", reply: "ok"}
		r := model.NewRouter("openai", "")
		r.Register(b)
		_, err := r.Generate(context.Background(), domain.GenerateRequest{
			Prompt:  "Who wrote it?",
			ModelID: "gpt-4",
			Context: []domain.Chunk{{Text: "Written by Ada."}},
		})
		require.NoError(t, err)
		assert.Contains(t, b.got.prompt, "[1] Written by Ada.")
		assert.Contains(t, b.got.prompt, "Question: Who wrote it?")
	})

	t.Run("backend failure wraps ErrModel", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("quota")
		r := model.NewRouter("openai", "")
		r.Register(&fakeBackend{name: "openai", err: cause})
		_, err := r.Generate(context.Background(), domain.GenerateRequest{Prompt: "x"})
		assert.ErrorIs(t, err, domain.ErrModel)
		assert.ErrorIs(t, err, cause)
		assert.False(t, retry.IsPermanent(err))
	})

	t.Run("empty reply is an error", func(t *testing.T) {
		t.Parallel()
		r := model.NewRouter("openai", "")
		r.Register(&fakeBackend{name: "openai", reply: "  "})
		_, err := r.Generate(context.Background(), domain.GenerateRequest{Prompt: "x"})
		assert.ErrorIs(t, err, domain.ErrModel)
		assert.ErrorIs(t, err, model.ErrEmptyResponse)
		assert.True(t, retry.IsPermanent(err))
	})

	t.Run("unconfigured backend", func(t *testing.T) {
		t.Parallel()
		r := model.NewRouter("ollama", "")
		_, err := r.Generate(context.Background(), domain.GenerateRequest{Prompt: "x", ModelID: "llama3"})
		assert.ErrorIs(t, err, domain.ErrModel)
		assert.True(t, retry.IsPermanent(err))
	})
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "plain", model.BuildPrompt("plain", nil))

	got := model.BuildPrompt("q?", []domain.Chunk{{Text: " first "}, {Text: "second"}})
	assert.Contains(t, got, "[1] first\n")
	assert.Contains(t, got, "[2] second\n")
	assert.Less(t, len("Question: q?"), len(got))
}
