package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingServer answers /embeddings with vectors whose first element
// is the input position, in reverse order to exercise index mapping.
func fakeEmbeddingServer(t *testing.T, dims int, status *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := status.Swap(0); code != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(int(code))
			_, _ = w.Write([]byte(`{"error":{"message":"fake failure","type":"test"}}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float64, dims)
			vec[0] = float64(i)
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": vec})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  "text-embedding-3-small",
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func newTestEmbedder(t *testing.T, server *httptest.Server, opts ...Option) *Embedder {
	t.Helper()
	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: server.URL + "/"})
	require.NoError(t, err)
	return NewEmbedder(client, opts...)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.ErrorIs(t, err, ErrAPIKeyRequired)

	_, err = NewClient(ClientConfig{AzureEndpoint: "https://example.openai.azure.com"})
	assert.ErrorIs(t, err, ErrAPIKeyRequired)

	client, err := NewClient(ClientConfig{AzureEndpoint: "https://example.openai.azure.com", AzureAPIKey: "k"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestEmbed(t *testing.T) {
	var status atomic.Int32
	server := fakeEmbeddingServer(t, 8, &status)
	defer server.Close()

	embedder := newTestEmbedder(t, server, WithDimension(8))

	vec, err := embedder.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, 8, embedder.Dimension())
}

// TestEmbedRequest_Order verifies vectors follow input order even when the
// response lists them out of order.
func TestEmbedRequest_Order(t *testing.T) {
	var status atomic.Int32
	server := fakeEmbeddingServer(t, 4, &status)
	defer server.Close()

	embedder := newTestEmbedder(t, server, WithDimension(4))

	vectors, err := embedder.embedBatchWithRetry(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	// The fake server stamps each vector with its input position
	assert.Equal(t, float32(0), vectors[0][0])
	assert.Equal(t, float32(1), vectors[1][0])
	assert.Equal(t, float32(2), vectors[2][0])
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	var status atomic.Int32
	server := fakeEmbeddingServer(t, 4, &status)
	defer server.Close()

	embedder := newTestEmbedder(t, server)

	_, err := embedder.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

// TestEmbed_RetriesRateLimit verifies a 429 is retried and then succeeds.
func TestEmbed_RetriesRateLimit(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusTooManyRequests)
	server := fakeEmbeddingServer(t, 4, &status)
	defer server.Close()

	embedder := newTestEmbedder(t, server, WithDimension(4), WithRequestsPerMinute(6000))

	vec, err := embedder.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestEmbed_PermanentError(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	server := fakeEmbeddingServer(t, 4, &status)
	defer server.Close()

	embedder := newTestEmbedder(t, server, WithDimension(4))

	_, err := embedder.Embed(context.Background(), "hello")
	assert.Error(t, err)
	assert.False(t, isRateLimitError(err))
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1, 2}, toFloat32([]float64{0.5, -1, 2}))
}
