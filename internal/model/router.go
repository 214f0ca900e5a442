// Package model routes generation requests to language model backends by
// model identifier.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chatbot/internal/domain"
	"chatbot/internal/logger"
	"chatbot/internal/retry"
)

// Backend completes a single prompt on one provider.
type Backend interface {
	Name() string
	Complete(ctx context.Context, model, system, prompt string) (string, error)
}

// Router implements domain.Generator over several backends. Model IDs
// without an explicit route go to the fallback backend.
type Router struct {
	mu       sync.RWMutex
	backends map[string]Backend
	routes   map[string]string
	fallback string
	system   string
}

var _ domain.Generator = (*Router)(nil)

func NewRouter(fallback, system string) *Router {
	return &Router{
		backends: make(map[string]Backend),
		routes:   make(map[string]string),
		fallback: fallback,
		system:   system,
	}
}

// Register adds a backend under its Name.
func (r *Router) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Route sends modelID to the named backend.
func (r *Router) Route(modelID, backend string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[modelID] = backend
}

// Backend returns the backend serving modelID.
func (r *Router) Backend(modelID string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.routes[modelID]
	if !ok {
		name = r.fallback
	}
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("no %q backend configured for model %q", name, modelID)
	}
	return b, nil
}

func (r *Router) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	b, err := r.Backend(req.ModelID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrModel, retry.Permanent(err))
	}
	system := req.System
	if system == "" {
		system = r.system
	}
	logger.Debug("Generating", "backend", b.Name(), "model", req.ModelID, "context_chunks", len(req.Context))
	out, err := b.Complete(ctx, req.ModelID, system, BuildPrompt(req.Prompt, req.Context))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrModel, b.Name(), err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrModel, b.Name(), retry.Permanent(ErrEmptyResponse))
	}
	return out, nil
}

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("empty response")
