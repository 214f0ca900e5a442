package translate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/domain"
	"chatbot/internal/mock"
	"chatbot/internal/retry"
	"chatbot/internal/translate"
)

func TestService_Translate(t *testing.T) {
	t.Parallel()

	t.Run("caches results per language", func(t *testing.T) {
		t.Parallel()
		calls := 0
		svc := translate.NewService(&mock.Translator{
			TranslateFn: func(ctx context.Context, text, lang string) (string, error) {
				calls++
				return lang + ":" + text, nil
			},
		}, time.Minute)

		for i := 0; i < 3; i++ {
			got, err := svc.Translate(context.Background(), "Hello", "hi")
			require.NoError(t, err)
			assert.Equal(t, "hi:Hello", got)
		}
		_, err := svc.Translate(context.Background(), "Hello", "mr")
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("wraps backend failures", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("unreachable")
		svc := translate.NewService(&mock.Translator{
			TranslateFn: func(ctx context.Context, text, lang string) (string, error) { return "", cause },
		}, time.Minute)
		_, err := svc.Translate(context.Background(), "Bonjour", "en")
		assert.ErrorIs(t, err, domain.ErrTranslation)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("rejects malformed language", func(t *testing.T) {
		t.Parallel()
		svc := translate.NewService(&mock.Translator{}, time.Minute)
		_, err := svc.Translate(context.Background(), "x", "not a code")
		assert.ErrorIs(t, err, domain.ErrTranslation)
		assert.True(t, retry.IsPermanent(err))

		calls := 0
		_, err = retry.Do(context.Background(), retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond}, func(ctx context.Context) (string, error) {
			calls++
			return svc.Translate(ctx, "x", "not a code")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("blank text skips backend", func(t *testing.T) {
		t.Parallel()
		svc := translate.NewService(&mock.Translator{}, time.Minute)
		got, err := svc.Translate(context.Background(), "  ", "hi")
		require.NoError(t, err)
		assert.Equal(t, "  ", got)
	})
}

func TestLanguageName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Hindi", translate.LanguageName("hi"))
	assert.Equal(t, "Marathi", translate.LanguageName("mr"))
	assert.Equal(t, "English", translate.LanguageName("en"))
	assert.Equal(t, "??", translate.LanguageName("??"))
}

func TestLLM_Translate(t *testing.T) {
	t.Parallel()
	var req domain.GenerateRequest
	tr := translate.NewLLM(&mock.Generator{
		GenerateFn: func(ctx context.Context, r domain.GenerateRequest) (string, error) {
			req = r
			return "नमस्ते", nil
		},
	}, "gpt-3.5-turbo")

	got, err := tr.Translate(context.Background(), "Hi there", "hi")
	require.NoError(t, err)
	assert.Equal(t, "नमस्ते", got)
	assert.Equal(t, "gpt-3.5-turbo", req.ModelID)
	assert.Contains(t, req.Prompt, "Hindi")
	assert.Contains(t, req.Prompt, "Hi there")
	assert.NotEmpty(t, req.System)
	assert.Empty(t, req.Context)
}

func TestLibreTranslate_Translate(t *testing.T) {
	t.Parallel()

	t.Run("posts text and target", func(t *testing.T) {
		t.Parallel()
		var body map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/translate", r.URL.Path)
			_ = json.NewDecoder(r.Body).Decode(&body)
			_, _ = w.Write([]byte(`{"translatedText":"नमस्कार"}`))
		}))
		t.Cleanup(srv.Close)

		got, err := translate.NewLibreTranslate(srv.URL, "k", 0).Translate(context.Background(), "Hello", "mr")
		require.NoError(t, err)
		assert.Equal(t, "नमस्कार", got)
		assert.Equal(t, "mr", body["target"])
		assert.Equal(t, "auto", body["source"])
		assert.Equal(t, "k", body["api_key"])
	})

	t.Run("reports server error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"zz is not supported"}`))
		}))
		t.Cleanup(srv.Close)

		_, err := translate.NewLibreTranslate(srv.URL, "", 0).Translate(context.Background(), "Hello", "zz")
		assert.ErrorContains(t, err, "zz is not supported")
	})
}

func TestPassthrough(t *testing.T) {
	t.Parallel()
	got, err := translate.Passthrough{}.Translate(context.Background(), "same", "hi")
	require.NoError(t, err)
	assert.Equal(t, "same", got)
}
