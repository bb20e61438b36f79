package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildgrid/docrag"
)

func TestPostgresAddChunks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock)

	chunk := docrag.Chunk{
		ID:            "doc1_child_0",
		DocumentID:    "doc1",
		Index:         0,
		Content:       "waterproofing membrane inspection",
		SectionTitle:  "Wet Areas",
		ParentID:      "doc1_parent_0",
		TokenEstimate: 8,
	}
	emb := []float32{0.1, 0.2, 0.3}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chunks")).
		WithArgs(
			chunk.ID,
			chunk.DocumentID,
			chunk.Index,
			chunk.Content,
			chunk.SectionTitle,
			chunk.ParentID,
			chunk.TokenEstimate,
			emb,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.AddChunks(context.Background(), []docrag.Chunk{chunk}, [][]float32{emb})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSearch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock)

	rows := pgxmock.NewRows([]string{"id", "document_id", "idx", "content", "section_title", "parent_id", "token_estimate", "embedding"}).
		AddRow("doc1_child_1", "doc1", 1, "far", "", "doc1_parent_0", 1, []float32{0, 1}).
		AddRow("doc1_child_0", "doc1", 0, "near", "", "doc1_parent_0", 1, []float32{1, 0})

	mock.ExpectQuery(regexp.QuoteMeta("AND document_id = ANY($1)")).
		WithArgs([]string{"doc1"}).
		WillReturnRows(rows)

	results, err := s.Search(context.Background(), []float32{1, 0}, 10, []string{"doc1"})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "doc1_child_0", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "doc1_child_1", results[1].Chunk.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetChunk(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock)

	rows := pgxmock.NewRows([]string{"id", "document_id", "idx", "content", "section_title", "parent_id", "token_estimate"}).
		AddRow("doc1_parent_0", "doc1", 0, "full section text", "Wet Areas", "", 120)

	mock.ExpectQuery(regexp.QuoteMeta("FROM chunks")).
		WithArgs("doc1_parent_0").
		WillReturnRows(rows)

	chunk, err := s.GetChunk(context.Background(), "doc1_parent_0")
	require.NoError(t, err)
	assert.Equal(t, "full section text", chunk.Content)
	assert.True(t, chunk.IsParent())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteDocument(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chunks WHERE document_id = $1")).
		WithArgs("doc1").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	assert.NoError(t, s.DeleteDocument(context.Background(), "doc1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSyncStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithPool(mock)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sync_status")).
		WithArgs("doc1", "synced", 9, "", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.SetSyncStatus(context.Background(), docrag.SyncStatus{
		DocumentID: "doc1",
		State:      docrag.SyncSynced,
		ChunkCount: 9,
		UpdatedAt:  now,
	})
	assert.NoError(t, err)

	rows := pgxmock.NewRows([]string{"document_id", "state", "chunk_count", "error", "updated_at"}).
		AddRow("doc1", "synced", 9, "", now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sync_status")).
		WithArgs("doc1").
		WillReturnRows(rows)

	status, err := s.GetSyncStatus(context.Background(), "doc1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, docrag.SyncSynced, status.State)
	assert.Equal(t, 9, status.ChunkCount)

	assert.NoError(t, mock.ExpectationsWereMet())
}
