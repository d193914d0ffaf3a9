package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Client wraps a provider with rate limiting and an in-memory response cache.
type Client struct {
	provider Generator
	limiter  *rateLimiter
	cache    *responseCache
	logger   *slog.Logger
	name     string
}

// NewClient builds the provider named by cfg.Provider.
func NewClient(cfg Config) (*Client, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = ProviderAnthropic
	}

	var (
		provider Generator
		err      error
	)
	switch name {
	case ProviderAnthropic:
		provider, err = newAnthropicClient(cfg)
	case ProviderOpenAI:
		provider, err = newOpenAIClient(cfg)
	case ProviderOllama:
		provider = newOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return Wrap(name, provider, cfg), nil
}

// Wrap layers rate limiting and caching over an existing generator.
func Wrap(name string, provider Generator, cfg Config) *Client {
	return &Client{
		provider: provider,
		limiter:  newRateLimiter(cfg.RateLimit),
		cache:    newResponseCache(cfg.CacheTTL),
		logger:   slog.Default().With("component", "llm", "provider", name),
		name:     name,
	}
}

// Provider returns the provider name.
func (c *Client) Provider() string { return c.name }

// Generate returns a cached response when the same prompt was answered
// recently, otherwise it waits for a rate-limit token and calls the provider.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	key := cacheKey(prompt, maxTokens)
	if text, ok := c.cache.get(key); ok {
		c.logger.Debug("Using cached response", "max_tokens", maxTokens)
		return text, nil
	}

	if err := c.limiter.wait(ctx); err != nil {
		return "", err
	}

	text, err := c.provider.Generate(ctx, prompt, maxTokens)
	if err != nil {
		c.logger.Warn("Generation failed", "error", err)
		return "", err
	}
	c.cache.set(key, text)
	return text, nil
}
