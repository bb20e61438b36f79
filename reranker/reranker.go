// Package reranker re-scores candidate chunks against a query with
// cross-encoder style providers. Providers form a fallback cascade: the
// primary runs under a strict short timeout, the secondary has none of
// its own and relies on the caller's deadline. Only when every provider
// fails does Rerank return docrag.ErrRerankerUnavailable — the package
// never silently degrades to keyword scoring; callers that prefer
// degraded ranking over an error use SimpleRelevanceScore themselves.
package reranker

import (
	"context"
	"errors"
	"sort"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/log"
)

// Provider is one reranking backend in the cascade.
type Provider interface {
	Name() string
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]docrag.RerankResult, error)
}

// Options configures a Reranker.
type Options struct {
	// Primary enables the cross-encoder provider when non-nil.
	Primary *CrossEncoderOptions
	// Secondary enables the hosted provider when non-nil.
	Secondary *HostedOptions
	// Providers overrides the cascade entirely. When set, Primary and
	// Secondary are ignored.
	Providers []Provider
	Logger    log.Logger
}

// Reranker walks an ordered provider list until one succeeds.
type Reranker struct {
	providers []Provider
	logger    log.Logger
}

var _ docrag.Reranker = (*Reranker)(nil)

// New creates a Reranker from the configured providers.
func New(opts Options) *Reranker {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	providers := opts.Providers
	if providers == nil {
		if opts.Primary != nil {
			providers = append(providers, NewCrossEncoder(*opts.Primary))
		}
		if opts.Secondary != nil {
			providers = append(providers, NewHosted(*opts.Secondary))
		}
	}

	return &Reranker{
		providers: providers,
		logger:    logger,
	}
}

// Rerank implements docrag.Reranker. Results are ordered by descending
// score and capped at min(topK, len(documents)); scores are normalized to
// [0, 1] by each provider.
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]docrag.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > len(documents) {
		topK = len(documents)
	}

	errs := []error{docrag.ErrRerankerUnavailable}
	for _, p := range r.providers {
		results, err := p.Rerank(ctx, query, documents, topK)
		if err != nil {
			r.logger.Warn("reranker: provider %s failed for query %q: %v", p.Name(), query, err)
			errs = append(errs, err)
			continue
		}

		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
		if len(results) > topK {
			results = results[:topK]
		}
		return results, nil
	}

	return nil, errors.Join(errs...)
}
