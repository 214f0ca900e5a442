// Package ollama completes prompts with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultURL     = "http://localhost:11434"
	DefaultTimeout = 120 * time.Second
)

// Config configures the Ollama client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client implements model.Backend on the generate endpoint.
type Client struct {
	api *api.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ollama url: %w", err)
	}
	return &Client{api: api.NewClient(base, &http.Client{Timeout: cfg.Timeout})}, nil
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	stream := false
	var out strings.Builder
	err := c.api.Generate(ctx, &api.GenerateRequest{
		Model:  model,
		System: system,
		Prompt: prompt,
		Stream: &stream,
	}, func(r api.GenerateResponse) error {
		out.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out.String(), nil
}
