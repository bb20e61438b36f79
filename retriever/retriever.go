// Package retriever orchestrates one retrieval pass: embed the query,
// fetch candidate chunks by cosine similarity, rerank them, expand
// parent context, and filter by relevance threshold.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/log"
)

const (
	defaultTopK             = 30
	defaultRerankTopK       = 10
	defaultBatchConcurrency = 4
)

// Score sources reported in docrag.RetrievalResult.
const (
	SourceRerank     = "rerank"
	SourceSimilarity = "similarity"
)

// Config wires the retriever's collaborators.
type Config struct {
	Embedder docrag.Embedder
	Store    docrag.VectorStore
	Reranker docrag.Reranker
	// BatchConcurrency bounds concurrent queries in BatchRetrieve,
	// default 4.
	BatchConcurrency int
	Logger           log.Logger
}

// Options configures a single retrieve call.
type Options struct {
	// DocumentIDs restricts the candidate pool. Empty searches all
	// documents.
	DocumentIDs []string
	// TopK is the candidate count fetched from the vector store before
	// reranking, default 30.
	TopK int
	// RerankTopK is the result count requested from the reranker,
	// default 10.
	RerankTopK int
	// IncludeParentContext substitutes each winning child chunk's
	// content with its parent chunk's full text.
	IncludeParentContext bool
	// MinRelevanceScore drops results scoring below it after reranking.
	MinRelevanceScore float64
	// AllowDegraded falls back to similarity order when every rerank
	// provider fails, marking results Source "similarity". Off by
	// default: silently unranked results would degrade answer quality
	// without signal.
	AllowDegraded bool
}

// Retriever is the retrieval orchestrator.
type Retriever struct {
	embedder         docrag.Embedder
	store            docrag.VectorStore
	reranker         docrag.Reranker
	batchConcurrency int
	logger           log.Logger
}

// New creates a Retriever. Embedder, Store, and Reranker are required.
func New(cfg Config) (*Retriever, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Reranker == nil {
		return nil, fmt.Errorf("reranker is required")
	}

	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	return &Retriever{
		embedder:         cfg.Embedder,
		store:            cfg.Store,
		reranker:         cfg.Reranker,
		batchConcurrency: concurrency,
		logger:           logger,
	}, nil
}

// Retrieve runs one retrieval pass and returns results in descending
// relevance order. An empty candidate set returns an empty slice and no
// error.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]docrag.RetrievalResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	rerankTopK := opts.RerankTopK
	if rerankTopK <= 0 {
		rerankTopK = defaultRerankTopK
	}

	queryVec, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := r.store.Search(ctx, queryVec, topK, opts.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("candidate search failed: %w", err)
	}
	if len(candidates) == 0 {
		return []docrag.RetrievalResult{}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Content
	}

	ranked, err := r.reranker.Rerank(ctx, query, texts, rerankTopK)
	if err != nil {
		if opts.AllowDegraded && errors.Is(err, docrag.ErrRerankerUnavailable) {
			r.logger.Warn("retriever: reranker unavailable for query %q, returning similarity order: %v", query, err)
			return r.finish(ctx, degradedResults(candidates, rerankTopK), opts)
		}
		return nil, err
	}

	rankedChunks := make([]rankedChunk, 0, len(ranked))
	for _, rr := range ranked {
		chunk := candidates[rr.Index].Chunk
		rankedChunks = append(rankedChunks, rankedChunk{
			result: docrag.RetrievalResult{
				ChunkID:      chunk.ID,
				DocumentID:   chunk.DocumentID,
				Content:      chunk.Content,
				SectionTitle: chunk.SectionTitle,
				Score:        rr.Score,
				Source:       SourceRerank,
			},
			chunk: chunk,
		})
	}
	return r.finish(ctx, rankedChunks, opts)
}

// rankedChunk pairs a retrieval result with the chunk it came from so
// parent expansion can follow the ParentID reference.
type rankedChunk struct {
	result docrag.RetrievalResult
	chunk  docrag.Chunk
}

// degradedResults maps raw similarity candidates onto retrieval results.
// Cosine scores in [-1, 1] are shifted onto [0, 1] so threshold filtering
// keeps working on the same scale.
func degradedResults(candidates []docrag.ChunkSearchResult, rerankTopK int) []rankedChunk {
	if len(candidates) > rerankTopK {
		candidates = candidates[:rerankTopK]
	}
	out := make([]rankedChunk, len(candidates))
	for i, c := range candidates {
		out[i] = rankedChunk{
			result: docrag.RetrievalResult{
				ChunkID:      c.Chunk.ID,
				DocumentID:   c.Chunk.DocumentID,
				Content:      c.Chunk.Content,
				SectionTitle: c.Chunk.SectionTitle,
				Score:        (c.Score + 1) / 2,
				Source:       SourceSimilarity,
			},
			chunk: c.Chunk,
		}
	}
	return out
}

// finish applies parent expansion and the relevance threshold. Input is
// already in descending score order and stays that way.
func (r *Retriever) finish(ctx context.Context, ranked []rankedChunk, opts Options) ([]docrag.RetrievalResult, error) {
	results := make([]docrag.RetrievalResult, 0, len(ranked))
	for _, rc := range ranked {
		if rc.result.Score < opts.MinRelevanceScore {
			continue
		}

		result := rc.result
		if opts.IncludeParentContext && rc.chunk.ParentID != "" {
			parent, err := r.store.GetChunk(ctx, rc.chunk.ParentID)
			if err != nil {
				r.logger.Warn("retriever: parent chunk %s not found for %s, keeping child content: %v",
					rc.chunk.ParentID, rc.chunk.ID, err)
			} else {
				result.Content = parent.Content
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// BatchRetrieve runs multiple queries concurrently and returns one result
// list per query, aligned by index. All-or-nothing: the first query error
// cancels the rest and is returned.
func (r *Retriever) BatchRetrieve(ctx context.Context, queries []string, opts Options) ([][]docrag.RetrievalResult, error) {
	results := make([][]docrag.RetrievalResult, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchConcurrency)
	for i, query := range queries {
		i, query := i, query
		g.Go(func() error {
			res, err := r.Retrieve(ctx, query, opts)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
