package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gitsmart/internal/config"
	"gitsmart/internal/faults"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewOpenAIClient(config.APIConfig{
		AuthToken: "test-token",
		BaseURL:   ts.URL,
		Model:     "test-model",
		Timeout:   "5s",
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestCompleteSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header = %q", got)
		}

		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  the reply  "}},
			},
		})
	})

	out, err := client.Complete(context.Background(), Request{System: "sys", User: "usr", MaxTokens: 100})
	if err != nil {
		t.Fatal(err)
	}
	if out != "the reply" {
		t.Errorf("out = %q", out)
	}
}

func TestCompleteRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), Request{User: "u"})
	if !faults.Is(err, faults.KindRateLimit) {
		t.Fatalf("err = %v, want rate limit fault", err)
	}
	if got := faults.RetryAfterOf(err); got != 7*time.Second {
		t.Errorf("retry after = %v, want 7s", got)
	}
}

func TestCompleteAuthRejected(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})
		_, err := client.Complete(context.Background(), Request{User: "u"})
		if !faults.Is(err, faults.KindAuthentication) {
			t.Errorf("status %d: err = %v, want authentication fault", code, err)
		}
	}
}

func TestCompleteServerErrorIsNetwork(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.Complete(context.Background(), Request{User: "u"})
	if !faults.Is(err, faults.KindNetwork) {
		t.Fatalf("err = %v, want network fault", err)
	}
}

func TestCompleteMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	})
	_, err := client.Complete(context.Background(), Request{User: "u"})
	if !faults.Is(err, faults.KindMalformedResponse) {
		t.Fatalf("err = %v, want malformed response fault", err)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})
	_, err := client.Complete(context.Background(), Request{User: "u"})
	if !faults.Is(err, faults.KindMalformedResponse) {
		t.Fatalf("err = %v, want malformed response fault", err)
	}
}

func TestCompleteConnectionRefused(t *testing.T) {
	client, err := NewOpenAIClient(config.APIConfig{
		AuthToken: "tok",
		BaseURL:   "http://127.0.0.1:1",
		Model:     "m",
		Timeout:   "1s",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Complete(context.Background(), Request{User: "u"})
	if !faults.Is(err, faults.KindNetwork) {
		t.Fatalf("err = %v, want network fault", err)
	}
}

func TestNewOpenAIClientRequiresToken(t *testing.T) {
	_, err := NewOpenAIClient(config.APIConfig{})
	if !faults.Is(err, faults.KindAuthentication) {
		t.Fatalf("err = %v, want authentication fault", err)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.APIConfig{Provider: "martian", AuthToken: "tok"})
	if !faults.Is(err, faults.KindValidation) {
		t.Fatalf("err = %v, want validation fault", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	if got := parseRetryAfter(resp); got != 0 {
		t.Errorf("empty header: %v", got)
	}
	resp.Header.Set("Retry-After", "30")
	if got := parseRetryAfter(resp); got != 30*time.Second {
		t.Errorf("got %v, want 30s", got)
	}
	resp.Header.Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
	if got := parseRetryAfter(resp); got != 0 {
		t.Errorf("http-date: %v, want 0", got)
	}
}
