package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
)

// Generator produces text for a prompt. Every provider client, the caching
// wrapper and the test mock satisfy it.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Config holds the settings shared by all providers.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	RateLimit   int
	CacheTTL    time.Duration
	Timeout     time.Duration
	Temperature float64
}

const defaultTimeout = 30 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// statusError converts a non-200 provider response into an error. Rate limits
// and server errors are retryable, everything else is not.
func statusError(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrRateLimit, err), Retryable: true}
	case status >= http.StatusInternalServerError:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}
