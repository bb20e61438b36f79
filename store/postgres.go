package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/embedder"
)

// DBPool is the subset of pgxpool.Pool the store needs, extracted so
// tests can substitute a mock.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres persists chunks in PostgreSQL with embeddings as float4[].
// Similarity is computed in-process; no vector extension is required.
type Postgres struct {
	pool DBPool
}

// PostgresOptions configuration for the Postgres store.
type PostgresOptions struct {
	ConnString string
}

var _ docrag.VectorStore = (*Postgres)(nil)

// NewPostgres creates a Postgres-backed store with its own pool.
func NewPostgres(ctx context.Context, opts PostgresOptions) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresWithPool creates a store over an existing pool.
// Useful for testing with mocks.
func NewPostgresWithPool(pool DBPool) *Postgres {
	return &Postgres{pool: pool}
}

// InitSchema creates the necessary tables if they don't exist.
func (s *Postgres) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			content TEXT NOT NULL,
			section_title TEXT,
			parent_id TEXT,
			token_estimate INTEGER NOT NULL,
			embedding FLOAT4[]
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks (document_id);
		CREATE TABLE IF NOT EXISTS sync_status (
			document_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			chunk_count INTEGER NOT NULL,
			error TEXT,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`
	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// AddChunks implements docrag.VectorStore.
func (s *Postgres) AddChunks(ctx context.Context, chunks []docrag.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks and embeddings must have same length: %d != %d", len(chunks), len(embeddings))
	}

	query := `
		INSERT INTO chunks (id, document_id, idx, content, section_title, parent_id, token_estimate, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			idx = EXCLUDED.idx,
			content = EXCLUDED.content,
			section_title = EXCLUDED.section_title,
			parent_id = EXCLUDED.parent_id,
			token_estimate = EXCLUDED.token_estimate,
			embedding = EXCLUDED.embedding
	`
	for i, chunk := range chunks {
		var emb []float32
		if len(embeddings[i]) > 0 {
			emb = embeddings[i]
		}
		_, err := s.pool.Exec(ctx, query,
			chunk.ID,
			chunk.DocumentID,
			chunk.Index,
			chunk.Content,
			chunk.SectionTitle,
			chunk.ParentID,
			chunk.TokenEstimate,
			emb,
		)
		if err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

// Search implements docrag.VectorStore. Candidate rows are scored
// in-process, so the query only narrows by document and embedding
// presence.
func (s *Postgres) Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]docrag.ChunkSearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	sqlQuery := `
		SELECT id, document_id, idx, content, section_title, parent_id, token_estimate, embedding
		FROM chunks
		WHERE embedding IS NOT NULL
	`
	var args []any
	if len(documentIDs) > 0 {
		sqlQuery += " AND document_id = ANY($1)"
		args = append(args, documentIDs)
	}

	rows, err := s.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []docrag.ChunkSearchResult
	for rows.Next() {
		var chunk docrag.Chunk
		var emb []float32

		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Index,
			&chunk.Content,
			&chunk.SectionTitle,
			&chunk.ParentID,
			&chunk.TokenEstimate,
			&emb,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}

		results = append(results, docrag.ChunkSearchResult{
			Chunk: chunk,
			Score: embedder.CosineSimilarity(query, emb),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// GetChunk implements docrag.VectorStore.
func (s *Postgres) GetChunk(ctx context.Context, id string) (*docrag.Chunk, error) {
	query := `
		SELECT id, document_id, idx, content, section_title, parent_id, token_estimate
		FROM chunks
		WHERE id = $1
	`
	var chunk docrag.Chunk
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.Index,
		&chunk.Content,
		&chunk.SectionTitle,
		&chunk.ParentID,
		&chunk.TokenEstimate,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("chunk not found: %s", id)
		}
		return nil, fmt.Errorf("failed to load chunk: %w", err)
	}
	return &chunk, nil
}

// DeleteDocument implements docrag.VectorStore.
func (s *Postgres) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM chunks WHERE document_id = $1", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// GetSyncStatus implements docrag.VectorStore.
func (s *Postgres) GetSyncStatus(ctx context.Context, documentID string) (*docrag.SyncStatus, error) {
	query := `
		SELECT document_id, state, chunk_count, error, updated_at
		FROM sync_status
		WHERE document_id = $1
	`
	var status docrag.SyncStatus
	var state string

	err := s.pool.QueryRow(ctx, query, documentID).Scan(
		&status.DocumentID,
		&state,
		&status.ChunkCount,
		&status.Error,
		&status.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load sync status: %w", err)
	}
	status.State = docrag.SyncState(state)
	return &status, nil
}

// SetSyncStatus implements docrag.VectorStore.
func (s *Postgres) SetSyncStatus(ctx context.Context, status docrag.SyncStatus) error {
	query := `
		INSERT INTO sync_status (document_id, state, chunk_count, error, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id) DO UPDATE SET
			state = EXCLUDED.state,
			chunk_count = EXCLUDED.chunk_count,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, query,
		status.DocumentID,
		string(status.State),
		status.ChunkCount,
		status.Error,
		status.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync status: %w", err)
	}
	return nil
}
