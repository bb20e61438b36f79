// Package embedder converts chunk and query text into fixed-dimension
// vectors via an OpenAI-compatible embeddings API. There is deliberately
// no fallback provider: stored vectors and query vectors must share one
// model's vector space, so a provider failure surfaces as an
// *docrag.EmbeddingError rather than silently switching spaces.
package embedder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/log"
)

const (
	defaultModel     = "text-embedding-3-small"
	defaultDimension = 1536
	defaultMaxBatch  = 100
)

// Options configures the OpenAI embedder.
type Options struct {
	APIKey string
	// BaseURL overrides the API endpoint for OpenAI-compatible gateways.
	BaseURL string
	// Model defaults to text-embedding-3-small.
	Model string
	// Dimension is the expected vector length, validated against every
	// response. Defaults to 1536 to match the default model.
	Dimension int
	// MaxBatch caps how many inputs go into one provider request.
	MaxBatch int
	Logger   log.Logger
}

// OpenAI is the production Embedder implementation.
type OpenAI struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
	maxBatch  int
	logger    log.Logger
}

var _ docrag.Embedder = (*OpenAI)(nil)

// NewOpenAI creates an embedder backed by go-openai.
func NewOpenAI(opts Options) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("embedder: API key is required")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = defaultDimension
	}
	maxBatch := opts.MaxBatch
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     openai.EmbeddingModel(model),
		dimension: dimension,
		maxBatch:  maxBatch,
		logger:    logger,
	}, nil
}

// Dimension implements docrag.Embedder.
func (e *OpenAI) Dimension() int {
	return e.dimension
}

// GenerateEmbedding implements docrag.Embedder.
func (e *OpenAI) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// GenerateEmbeddings implements docrag.Embedder. Inputs are sent in
// batches of at most MaxBatch; output order matches input order.
func (e *OpenAI) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.maxBatch {
		end := start + e.maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: e.model,
		})
		if err != nil {
			e.logger.Error("embedder: batch %d-%d failed: %v", start, end, err)
			return nil, &docrag.EmbeddingError{Provider: string(e.model), Err: err}
		}
		if len(resp.Data) != end-start {
			return nil, &docrag.EmbeddingError{
				Provider: string(e.model),
				Err:      fmt.Errorf("expected %d embeddings, got %d", end-start, len(resp.Data)),
			}
		}

		for _, d := range resp.Data {
			if len(d.Embedding) != e.dimension {
				return nil, &docrag.EmbeddingError{
					Provider: string(e.model),
					Err:      fmt.Errorf("expected dimension %d, got %d", e.dimension, len(d.Embedding)),
				}
			}
			out = append(out, d.Embedding)
		}
	}

	return out, nil
}
