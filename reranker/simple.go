package reranker

import "strings"

// SimpleRelevanceScore is a dependency-free relevance estimate: the share
// of distinct query terms appearing in the document, in [0, 1]. Callers
// that would rather accept degraded ranking than surface
// ErrRerankerUnavailable can score candidates with it; the cascade itself
// never falls back here.
func SimpleRelevanceScore(query, document string) float64 {
	queryTerms := map[string]bool{}
	for _, term := range strings.Fields(strings.ToLower(query)) {
		queryTerms[term] = true
	}
	if len(queryTerms) == 0 {
		return 0
	}

	docTerms := map[string]bool{}
	for _, term := range strings.Fields(strings.ToLower(document)) {
		docTerms[term] = true
	}

	matched := 0
	for term := range queryTerms {
		if docTerms[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}
