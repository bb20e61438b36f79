package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildgrid/docrag"
)

func newRedisStore(t *testing.T) *Redis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewRedis(RedisOptions{Addr: mr.Addr()})
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisRoundTrip(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	chunks := []docrag.Chunk{
		{ID: "doc1_parent_0", DocumentID: "doc1", Index: 0, Content: "parent text", SectionTitle: "Defects"},
		{ID: "doc1_child_0", DocumentID: "doc1", Index: 0, Content: "child text", SectionTitle: "Defects", ParentID: "doc1_parent_0", TokenEstimate: 3},
		{ID: "doc2_child_0", DocumentID: "doc2", Index: 0, Content: "other doc"},
	}
	embeddings := [][]float32{nil, {1, 0}, {0, 1}}
	require.NoError(t, s.AddChunks(ctx, chunks, embeddings))

	chunk, err := s.GetChunk(ctx, "doc1_child_0")
	require.NoError(t, err)
	assert.Equal(t, "child text", chunk.Content)
	assert.Equal(t, "doc1_parent_0", chunk.ParentID)

	// Parents are fetchable but never returned by Search.
	results, err := s.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc1_child_0", results[0].Chunk.ID)
	assert.Equal(t, "doc2_child_0", results[1].Chunk.ID)

	results, err = s.Search(ctx, []float32{1, 0}, 10, []string{"doc2"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc2_child_0", results[0].Chunk.ID)
}

func TestRedisSearchEmptyStore(t *testing.T) {
	s := newRedisStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRedisDeleteDocument(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	chunks := []docrag.Chunk{
		{ID: "doc1_child_0", DocumentID: "doc1", Content: "a"},
		{ID: "doc1_child_1", DocumentID: "doc1", Content: "b"},
		{ID: "doc2_child_0", DocumentID: "doc2", Content: "c"},
	}
	require.NoError(t, s.AddChunks(ctx, chunks, [][]float32{{1, 0}, {0.5, 0.5}, {0, 1}}))

	require.NoError(t, s.DeleteDocument(ctx, "doc1"))

	_, err := s.GetChunk(ctx, "doc1_child_0")
	assert.Error(t, err)

	results, err := s.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc2", results[0].Chunk.DocumentID)
}

func TestRedisSyncStatus(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	status, err := s.GetSyncStatus(ctx, "doc1")
	require.NoError(t, err)
	assert.Nil(t, status)

	require.NoError(t, s.SetSyncStatus(ctx, docrag.SyncStatus{
		DocumentID: "doc1",
		State:      docrag.SyncPending,
		UpdatedAt:  time.Now().UTC(),
	}))
	require.NoError(t, s.SetSyncStatus(ctx, docrag.SyncStatus{
		DocumentID: "doc1",
		State:      docrag.SyncSynced,
		ChunkCount: 7,
		UpdatedAt:  time.Now().UTC(),
	}))

	status, err = s.GetSyncStatus(ctx, "doc1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, docrag.SyncSynced, status.State)
	assert.Equal(t, 7, status.ChunkCount)
}
