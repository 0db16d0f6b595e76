package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gitsmart/internal/config"
	"gitsmart/internal/faults"
	"gitsmart/internal/logging"
)

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates a client from the API configuration.
func NewOpenAIClient(cfg config.APIConfig) (*OpenAIClient, error) {
	if cfg.AuthToken == "" {
		return nil, faults.New(faults.KindAuthentication, "api auth token not configured")
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		apiKey:  cfg.AuthToken,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete makes a single chat completion attempt. Failures are classified:
// connection errors are KindNetwork, 429 is KindRateLimit carrying the
// server's Retry-After, 401/403 are KindAuthentication, and an unparseable
// body is KindMalformedResponse.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()
	logging.LLMDebug("openai request: model=%s system_len=%d user_len=%d", c.model, len(req.System), len(req.User))

	messages := []openAIMessage{
		{Role: "system", Content: req.System},
		{Role: "user", Content: req.User},
	}
	body := openAIRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", faults.Wrap(faults.KindTimeout, err, "generation request timed out")
		}
		return "", faults.Wrap(faults.KindNetwork, err, "generation request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", faults.Wrap(faults.KindNetwork, err, "failed to read response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", faults.RateLimited(parseRetryAfter(resp), "rate limit exceeded")
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", faults.New(faults.KindAuthentication, "api rejected credentials (status %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return "", faults.New(faults.KindNetwork, "api returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	case resp.StatusCode != http.StatusOK:
		return "", faults.New(faults.KindValidation, "api request failed with status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", faults.Wrap(faults.KindMalformedResponse, err, "failed to parse response")
	}
	if parsed.Error != nil {
		return "", faults.New(faults.KindMalformedResponse, "api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", faults.New(faults.KindMalformedResponse, "no completion returned")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	logging.LLMDebug("openai response: %d bytes in %v", len(text), time.Since(start))
	return text, nil
}

// parseRetryAfter reads the Retry-After header as seconds. HTTP-date values
// are ignored; the retry policy falls back to its own backoff.
func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
