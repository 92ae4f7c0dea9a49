package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"golang.org/x/time/rate"
)

const (
	// DefaultModel is the embedding model (or Azure deployment) name.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimension is the vector size of text-embedding-3-small and
	// text-embedding-ada-002. It must match the search index schema.
	DefaultDimension = 1536
)

// Embedder generates embedding vectors for text.
// Requests are paced by an optional rate limiter and retried with
// exponential backoff on rate limit errors.
type Embedder struct {
	client    *Client
	model     string
	dimension int
	limiter   *rate.Limiter
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithModel sets the model, or the deployment name on Azure.
func WithModel(model string) Option {
	return func(e *Embedder) {
		if model != "" {
			e.model = model
		}
	}
}

// WithDimension sets the expected vector size.
func WithDimension(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.dimension = n
		}
	}
}

// WithRequestsPerMinute paces requests. Zero disables pacing.
func WithRequestsPerMinute(rpm int) Option {
	return func(e *Embedder) {
		if rpm > 0 {
			e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		} else {
			e.limiter = nil
		}
	}
}

// NewEmbedder creates a new Embedder with the given client.
func NewEmbedder(client *Client, opts ...Option) *Embedder {
	e := &Embedder{
		client:    client,
		model:     DefaultModel,
		dimension: DefaultDimension,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension returns the vector size this embedder produces.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.embedBatchWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// embedBatchWithRetry generates embeddings for a single request, in input order.
// Retries with exponential backoff on rate limit errors (HTTP 429).
// Other errors are treated as permanent and fail immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("%w: got %d for %d inputs", ErrEmptyResponse, len(resp.Data), len(texts)))
		}

		// Responses carry an index; keep input order regardless of arrival order
		embeddings = make([][]float32, len(texts))
		for _, data := range resp.Data {
			if len(data.Embedding) != e.dimension {
				return backoff.Permanent(fmt.Errorf("%w: got %d, expected %d",
					ErrDimensionMismatch, len(data.Embedding), e.dimension))
			}
			if data.Index < 0 || int(data.Index) >= len(texts) {
				return backoff.Permanent(fmt.Errorf("embedding index %d out of range", data.Index))
			}
			embeddings[data.Index] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
