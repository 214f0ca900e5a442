// Package gemini embeds text with the Gemini embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

const defaultModel = "text-embedding-004"

// Client implements the Embedder interface on top of genai.
type Client struct {
	client    *genai.Client
	model     string
	mu        sync.Mutex
	dimension int
}

// New creates an embeddings client for the given API key.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: missing API key")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{client: gc, model: model}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Prepare(corpus []string) error { return nil }

func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.Models.EmbedContent(ctx, c.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("no embedding returned")
	}
	values := resp.Embeddings[0].Values
	v := make([]float64, len(values))
	for i, f := range values {
		v[i] = float64(f)
	}
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = len(v)
	}
	c.mu.Unlock()
	return v, nil
}
