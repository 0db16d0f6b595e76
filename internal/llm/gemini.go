package llm

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"

	"gitsmart/internal/config"
	"gitsmart/internal/faults"
	"gitsmart/internal/logging"
)

// GeminiClient talks to the Gemini API through the official SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a client from the API configuration.
func NewGeminiClient(cfg config.APIConfig) (*GeminiClient, error) {
	if cfg.AuthToken == "" {
		return nil, faults.New(faults.KindAuthentication, "api auth token not configured")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.AuthToken,
	})
	if err != nil {
		return nil, faults.Wrap(faults.KindNetwork, err, "failed to create gemini client")
	}
	timeout, terr := time.ParseDuration(cfg.Timeout)
	if terr != nil || timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		client:  client,
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Complete makes a single generation attempt. SDK errors are classified by
// message: quota or rate wording becomes KindRateLimit, the rest KindNetwork.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	logging.LLMDebug("gemini request: model=%s system_len=%d user_len=%d", c.model, len(req.System), len(req.User))

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.User, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return "", faults.Wrap(faults.KindTimeout, err, "generation request timed out")
		}
		return "", classifyGeminiErr(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", faults.New(faults.KindMalformedResponse, "empty completion returned")
	}
	logging.LLMDebug("gemini response: %d bytes in %v", len(text), time.Since(start))
	return text, nil
}

func classifyGeminiErr(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate"):
		return faults.RateLimited(0, "rate limit exceeded: %v", err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api key"):
		return faults.Wrap(faults.KindAuthentication, err, "api rejected credentials")
	default:
		return faults.Wrap(faults.KindNetwork, err, "generation request failed")
	}
}
