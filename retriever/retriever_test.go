package retriever

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/store"
)

type mockEmbedder struct {
	vec   []float32
	err   error
	calls atomic.Int64
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	return m.vec, m.err
}

func (m *mockEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vec
	}
	return out, m.err
}

func (m *mockEmbedder) Dimension() int { return len(m.vec) }

type mockReranker struct {
	mu      sync.Mutex
	results []docrag.RerankResult
	err     error
	queries []string
}

func (m *mockReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]docrag.RerankResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	results := m.results
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	s := store.NewMemory()

	chunks := []docrag.Chunk{
		{ID: "doc1_parent_0", DocumentID: "doc1", Content: "full waterproofing section with membrane details and inspection holds"},
		{ID: "doc1_child_0", DocumentID: "doc1", Content: "membrane details", SectionTitle: "Waterproofing", ParentID: "doc1_parent_0"},
		{ID: "doc1_child_1", DocumentID: "doc1", Content: "inspection holds", SectionTitle: "Waterproofing", ParentID: "doc1_parent_0"},
		{ID: "doc2_child_0", DocumentID: "doc2", Content: "landscaping scope"},
	}
	embeddings := [][]float32{
		nil,
		{1, 0},
		{0.8, 0.2},
		{0, 1},
	}
	require.NoError(t, s.AddChunks(context.Background(), chunks, embeddings))
	return s
}

func newRetriever(t *testing.T, rr docrag.Reranker) *Retriever {
	t.Helper()
	r, err := New(Config{
		Embedder: &mockEmbedder{vec: []float32{1, 0}},
		Store:    seedStore(t),
		Reranker: rr,
	})
	require.NoError(t, err)
	return r
}

func TestRetrieveRanksAndFilters(t *testing.T) {
	rr := &mockReranker{results: []docrag.RerankResult{
		{Index: 0, Score: 0.95},
		{Index: 1, Score: 0.4},
		{Index: 2, Score: 0.1},
	}}
	r := newRetriever(t, rr)

	results, err := r.Retrieve(context.Background(), "membrane", Options{MinRelevanceScore: 0.3})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "doc1_child_0", results[0].ChunkID)
	assert.Equal(t, 0.95, results[0].Score)
	assert.Equal(t, SourceRerank, results[0].Source)
	assert.Equal(t, "Waterproofing", results[0].SectionTitle)
	assert.Equal(t, 0.4, results[1].Score)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestRetrieveEmptyCandidates(t *testing.T) {
	rr := &mockReranker{}
	r := newRetriever(t, rr)

	results, err := r.Retrieve(context.Background(), "anything", Options{DocumentIDs: []string{"doc-unknown"}})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, rr.queries)
}

func TestRetrieveParentContext(t *testing.T) {
	rr := &mockReranker{results: []docrag.RerankResult{{Index: 0, Score: 0.9}}}
	r := newRetriever(t, rr)

	results, err := r.Retrieve(context.Background(), "membrane", Options{IncludeParentContext: true})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "doc1_child_0", results[0].ChunkID)
	assert.Equal(t, "full waterproofing section with membrane details and inspection holds", results[0].Content)
	assert.Contains(t, results[0].Content, "membrane details")
}

func TestRetrieveParentContextChunkWithoutParent(t *testing.T) {
	rr := &mockReranker{results: []docrag.RerankResult{{Index: 0, Score: 0.9}}}
	r := newRetriever(t, rr)

	results, err := r.Retrieve(context.Background(), "landscaping", Options{
		DocumentIDs:          []string{"doc2"},
		IncludeParentContext: true,
	})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "landscaping scope", results[0].Content)
}

func TestRetrieveRerankerUnavailablePropagates(t *testing.T) {
	rr := &mockReranker{err: errors.Join(docrag.ErrRerankerUnavailable, errors.New("both providers down"))}
	r := newRetriever(t, rr)

	_, err := r.Retrieve(context.Background(), "membrane", Options{})
	require.ErrorIs(t, err, docrag.ErrRerankerUnavailable)
}

func TestRetrieveDegradedSimilarityOrder(t *testing.T) {
	rr := &mockReranker{err: errors.Join(docrag.ErrRerankerUnavailable, errors.New("both providers down"))}
	r := newRetriever(t, rr)

	results, err := r.Retrieve(context.Background(), "membrane", Options{AllowDegraded: true})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "doc1_child_0", results[0].ChunkID)
	for _, res := range results {
		assert.Equal(t, SourceSimilarity, res.Source)
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
	}
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestRetrieveRerankTopKLimit(t *testing.T) {
	rr := &mockReranker{results: []docrag.RerankResult{
		{Index: 0, Score: 0.9},
		{Index: 1, Score: 0.8},
		{Index: 2, Score: 0.7},
	}}
	r := newRetriever(t, rr)

	results, err := r.Retrieve(context.Background(), "membrane", Options{RerankTopK: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestBatchRetrieve(t *testing.T) {
	rr := &mockReranker{results: []docrag.RerankResult{{Index: 0, Score: 0.9}}}
	r := newRetriever(t, rr)

	queries := []string{"membrane", "inspection", "landscaping"}
	results, err := r.BatchRetrieve(context.Background(), queries, Options{})
	require.NoError(t, err)

	require.Len(t, results, 3)
	for i := range queries {
		require.Len(t, results[i], 1, "query %d", i)
	}
	assert.ElementsMatch(t, queries, rr.queries)
}

func TestBatchRetrieveAllOrNothing(t *testing.T) {
	embedder := &mockEmbedder{vec: nil, err: errors.New("embedding provider down")}
	r, err := New(Config{
		Embedder: embedder,
		Store:    seedStore(t),
		Reranker: &mockReranker{},
	})
	require.NoError(t, err)

	_, err = r.BatchRetrieve(context.Background(), []string{"a", "b"}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding provider down")
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
