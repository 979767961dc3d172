package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	api        *goopenai.Client
	model      string
	dimension  int
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	// MaxRetries bounds retries of transient failures. Zero selects the
	// default, a negative value disables retries.
	MaxRetries int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = string(goopenai.SmallEmbedding3)
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = 5
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: t}
	return &Client{
		api:        goopenai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		baseDelay:  200 * time.Millisecond,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the dimensionality of the produced embedding vectors.
// It is known after the first successful call.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text. Rate limits and server
// errors are retried with exponential backoff; other failures are returned.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(c.model),
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := c.api.CreateEmbeddings(ctx, req)
		if err == nil {
			if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
				return nil, errors.New("no embedding returned")
			}
			v := resp.Data[0].Embedding
			if c.dimension == 0 {
				c.dimension = len(v)
			}
			return v, nil
		}
		lastErr = err
		wait, retry := c.retryAfter(err, attempt)
		if !retry || attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("openai embeddings failed: %w", lastErr)
}

// retryAfter decides whether err is transient and how long to wait.
func (c *Client) retryAfter(err error, attempt int) (time.Duration, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return retryDelay(c.baseDelay, attempt), true
		}
		return 0, false
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500 {
			return retryDelay(c.baseDelay, attempt), true
		}
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	// transport failure
	return retryDelay(c.baseDelay, attempt), true
}

const maxRetryDelay = 5 * time.Second

// retryDelay is an exponential backoff capped at maxRetryDelay.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}
