// Package translate provides the translation adapters and a caching wrapper.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"chatbot/internal/domain"
	"chatbot/internal/retry"
)

// Service validates the target language, caches results and wraps backend
// failures in domain.ErrTranslation.
type Service struct {
	backend domain.Translator
	cache   *cache.Cache
}

var _ domain.Translator = (*Service)(nil)

func NewService(backend domain.Translator, ttl time.Duration) *Service {
	return &Service{backend: backend, cache: cache.New(ttl, 2*ttl)}
}

func (s *Service) Translate(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if _, err := language.Parse(lang); err != nil {
		return "", fmt.Errorf("%w: language %q: %w", domain.ErrTranslation, lang, retry.Permanent(err))
	}
	key := lang + "\x00" + text
	if v, ok := s.cache.Get(key); ok {
		return v.(string), nil
	}
	out, err := s.backend.Translate(ctx, text, lang)
	if err != nil {
		return "", fmt.Errorf("%w: to %s: %w", domain.ErrTranslation, lang, err)
	}
	s.cache.SetDefault(key, out)
	return out, nil
}

// LanguageName returns the English name of a language code, or the code
// itself when it does not parse.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// Passthrough returns text unchanged. It backs translation.backend=none.
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}
