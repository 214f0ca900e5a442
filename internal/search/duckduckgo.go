// Package search looks queries up with the DuckDuckGo Instant Answer API.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatbot/internal/domain"
)

const (
	DefaultURL        = "https://api.duckduckgo.com/"
	DefaultMaxResults = 5
	DefaultTimeout    = 15 * time.Second
)

// Config configures the DuckDuckGo client.
type Config struct {
	URL        string
	MaxResults int
	Timeout    time.Duration
}

// DuckDuckGo implements domain.WebSearcher.
type DuckDuckGo struct {
	baseURL    string
	maxResults int
	httpClient *http.Client
}

func NewDuckDuckGo(cfg Config) *DuckDuckGo {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &DuckDuckGo{baseURL: cfg.URL, maxResults: cfg.MaxResults, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type topic struct {
	Text     string  `json:"Text"`
	FirstURL string  `json:"FirstURL"`
	Name     string  `json:"Name"`
	Topics   []topic `json:"Topics"`
}

type instantAnswer struct {
	Heading       string  `json:"Heading"`
	AbstractText  string  `json:"AbstractText"`
	AbstractURL   string  `json:"AbstractURL"`
	Answer        string  `json:"Answer"`
	RelatedTopics []topic `json:"RelatedTopics"`
}

// Search returns the abstract followed by related topics, at most
// maxResults hits.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]domain.SearchHit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("duckduckgo error %d: %s", resp.StatusCode, string(b))
	}
	var ia instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&ia); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return d.hits(ia), nil
}

func (d *DuckDuckGo) hits(ia instantAnswer) []domain.SearchHit {
	var out []domain.SearchHit
	if ia.AbstractText != "" {
		out = append(out, domain.SearchHit{Title: ia.Heading, URL: ia.AbstractURL, Snippet: ia.AbstractText})
	} else if ia.Answer != "" {
		out = append(out, domain.SearchHit{Title: ia.Heading, Snippet: ia.Answer})
	}
	var walk func(ts []topic)
	walk = func(ts []topic) {
		for _, t := range ts {
			if len(out) >= d.maxResults {
				return
			}
			if len(t.Topics) > 0 {
				walk(t.Topics)
				continue
			}
			if t.Text == "" {
				continue
			}
			out = append(out, domain.SearchHit{Title: title(t.Text), URL: t.FirstURL, Snippet: t.Text})
		}
	}
	walk(ia.RelatedTopics)
	if len(out) > d.maxResults {
		out = out[:d.maxResults]
	}
	return out
}

// title takes the leading phrase of a topic text, which DuckDuckGo separates
// from the description with " - ".
func title(text string) string {
	if i := strings.Index(text, " - "); i > 0 {
		return text[:i]
	}
	return text
}
