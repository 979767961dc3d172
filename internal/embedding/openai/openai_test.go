package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const embeddingBody = `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.6,0.8,0]}],"model":"m","usage":{"prompt_tokens":1,"total_tokens":1}}`

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url, APIKey: "test", Model: "m", MaxRetries: 2})
	require.NoError(t, err)
	c.baseDelay = time.Millisecond
	return c
}

func TestEmbed_ReturnsVectorAndLearnsDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(embeddingBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	assert.Equal(t, 0, c.Dimension())
	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8, 0}, v)
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbed_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(embeddingBody))
	}))
	defer srv.Close()

	v, err := newTestClient(t, srv.URL).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, v, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbed_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestRetryDelay_Capped(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(200*time.Millisecond, 0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(200*time.Millisecond, 1))
	assert.Equal(t, 5*time.Second, retryDelay(200*time.Millisecond, 10))
	assert.Equal(t, 200*time.Millisecond, retryDelay(200*time.Millisecond, -1))
	for _, attempt := range []int{36, 63, 64, 1000} {
		assert.Equal(t, 5*time.Second, retryDelay(200*time.Millisecond, attempt), attempt)
	}
}

func TestEmbed_NegativeMaxRetriesDisablesRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "test", MaxRetries: -1})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
