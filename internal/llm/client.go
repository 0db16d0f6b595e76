// Package llm talks to the commit-message generation service. Clients make
// exactly one attempt per call and classify failures via the faults package;
// retry and backoff decisions belong to the caller.
package llm

import (
	"context"
	"strings"

	"gitsmart/internal/config"
	"gitsmart/internal/faults"
)

// Request is one generation call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Client is the generation service interface. Complete returns the model's
// text or a classified fault. Implementations never retry internally.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// New builds a Client from the API configuration.
func New(cfg config.APIConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai", "openai-compatible":
		return NewOpenAIClient(cfg)
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, faults.Validation("unknown api provider: %s", cfg.Provider)
	}
}
