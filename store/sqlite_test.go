package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildgrid/docrag"
)

func newSqliteStore(t *testing.T) *Sqlite {
	t.Helper()
	s, err := NewSqlite(SqliteOptions{Path: filepath.Join(t.TempDir(), "chunks.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSqliteRoundTrip(t *testing.T) {
	s := newSqliteStore(t)
	ctx := context.Background()

	chunks := []docrag.Chunk{
		{ID: "doc1_parent_0", DocumentID: "doc1", Index: 0, Content: "parent text", SectionTitle: "Scope of Works"},
		{ID: "doc1_child_0", DocumentID: "doc1", Index: 0, Content: "child text", SectionTitle: "Scope of Works", ParentID: "doc1_parent_0", TokenEstimate: 3},
	}
	require.NoError(t, s.AddChunks(ctx, chunks, [][]float32{nil, {0.6, 0.8}}))

	chunk, err := s.GetChunk(ctx, "doc1_child_0")
	require.NoError(t, err)
	assert.Equal(t, "child text", chunk.Content)
	assert.Equal(t, "Scope of Works", chunk.SectionTitle)
	assert.Equal(t, "doc1_parent_0", chunk.ParentID)
	assert.Equal(t, 3, chunk.TokenEstimate)

	results, err := s.Search(ctx, []float32{0.6, 0.8}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1_child_0", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestSqliteSearchFilterAndOrder(t *testing.T) {
	s := newSqliteStore(t)
	ctx := context.Background()

	chunks := []docrag.Chunk{
		{ID: "doc1_child_0", DocumentID: "doc1", Content: "a"},
		{ID: "doc1_child_1", DocumentID: "doc1", Content: "b"},
		{ID: "doc2_child_0", DocumentID: "doc2", Content: "c"},
	}
	embeddings := [][]float32{{1, 0}, {0.5, 0.5}, {0, 1}}
	require.NoError(t, s.AddChunks(ctx, chunks, embeddings))

	results, err := s.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "doc1_child_0", results[0].Chunk.ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	results, err = s.Search(ctx, []float32{1, 0}, 10, []string{"doc2"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc2_child_0", results[0].Chunk.ID)
}

func TestSqliteUpsertReplacesChunk(t *testing.T) {
	s := newSqliteStore(t)
	ctx := context.Background()

	chunk := docrag.Chunk{ID: "doc1_child_0", DocumentID: "doc1", Content: "v1"}
	require.NoError(t, s.AddChunks(ctx, []docrag.Chunk{chunk}, [][]float32{{1, 0}}))

	chunk.Content = "v2"
	require.NoError(t, s.AddChunks(ctx, []docrag.Chunk{chunk}, [][]float32{{1, 0}}))

	got, err := s.GetChunk(ctx, "doc1_child_0")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
}

func TestSqliteDeleteDocument(t *testing.T) {
	s := newSqliteStore(t)
	ctx := context.Background()

	chunks := []docrag.Chunk{
		{ID: "doc1_child_0", DocumentID: "doc1", Content: "a"},
		{ID: "doc2_child_0", DocumentID: "doc2", Content: "b"},
	}
	require.NoError(t, s.AddChunks(ctx, chunks, [][]float32{{1, 0}, {0, 1}}))

	require.NoError(t, s.DeleteDocument(ctx, "doc1"))

	_, err := s.GetChunk(ctx, "doc1_child_0")
	assert.Error(t, err)

	results, err := s.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc2", results[0].Chunk.DocumentID)
}

func TestSqliteSyncStatus(t *testing.T) {
	s := newSqliteStore(t)
	ctx := context.Background()

	status, err := s.GetSyncStatus(ctx, "doc1")
	require.NoError(t, err)
	assert.Nil(t, status)

	require.NoError(t, s.SetSyncStatus(ctx, docrag.SyncStatus{
		DocumentID: "doc1",
		State:      docrag.SyncFailed,
		Error:      "embedding provider returned 429",
		UpdatedAt:  time.Now().UTC(),
	}))

	status, err = s.GetSyncStatus(ctx, "doc1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, docrag.SyncFailed, status.State)
	assert.Equal(t, "embedding provider returned 429", status.Error)
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0.25, -1.5, 0, 3.75}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Empty(t, decodeVector(nil))
}
