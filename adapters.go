package docrag

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
)

// LangChainEmbedder adapts a langchaingo embeddings.Embedder to the
// docrag Embedder interface, so deployments already holding a langchaingo
// client (Ollama, VertexAI, ...) can plug it straight into the retriever.
type LangChainEmbedder struct {
	embedder  embeddings.Embedder
	dimension int
}

// NewLangChainEmbedder wraps a langchaingo embedder. dimension is the
// vector length the underlying model produces; it is checked against every
// response.
func NewLangChainEmbedder(embedder embeddings.Embedder, dimension int) *LangChainEmbedder {
	return &LangChainEmbedder{
		embedder:  embedder,
		dimension: dimension,
	}
}

var _ Embedder = (*LangChainEmbedder)(nil)

// GenerateEmbedding embeds a single text via the underlying langchaingo
// embedder.
func (l *LangChainEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embedding, err := l.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Provider: "langchain", Err: err}
	}

	result := make([]float32, len(embedding))
	for i, val := range embedding {
		result[i] = float32(val)
	}
	if err := l.checkDimension(len(result)); err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateEmbeddings embeds a batch of texts via the underlying langchaingo
// embedder.
func (l *LangChainEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := l.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Provider: "langchain", Err: err}
	}

	result := make([][]float32, len(vecs))
	for i, vec := range vecs {
		result[i] = make([]float32, len(vec))
		for j, val := range vec {
			result[i][j] = float32(val)
		}
		if err := l.checkDimension(len(result[i])); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Dimension returns the configured vector length.
func (l *LangChainEmbedder) Dimension() int {
	return l.dimension
}

func (l *LangChainEmbedder) checkDimension(got int) error {
	if l.dimension > 0 && got != l.dimension {
		return &EmbeddingError{
			Provider: "langchain",
			Err:      fmt.Errorf("expected dimension %d, got %d", l.dimension, got),
		}
	}
	return nil
}
