package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LibreTranslate is a client for the LibreTranslate /translate endpoint.
type LibreTranslate struct {
	url    string
	apiKey string
	client *http.Client
}

func NewLibreTranslate(url, apiKey string, timeout time.Duration) *LibreTranslate {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &LibreTranslate{url: url, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

func (t *LibreTranslate) Translate(ctx context.Context, text, lang string) (string, error) {
	body, err := json.Marshal(libreRequest{Q: text, Source: "auto", Target: lang, Format: "text", APIKey: t.apiKey})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out libreResponse
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(b, &out) == nil && out.Error != "" {
			return "", fmt.Errorf("libretranslate status %d: %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("libretranslate status %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.TranslatedText, nil
}
