package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/embedder"
)

// Sqlite persists chunks and embeddings in SQLite. Embeddings are stored
// as little-endian float32 blobs; similarity is computed in-process.
type Sqlite struct {
	db *sql.DB
}

// SqliteOptions configuration for the SQLite store.
type SqliteOptions struct {
	// Path is the database file path, ":memory:" for an in-memory DB.
	Path string
}

var _ docrag.VectorStore = (*Sqlite)(nil)

// NewSqlite opens the database and creates the schema if needed.
func NewSqlite(opts SqliteOptions) (*Sqlite, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	s := &Sqlite{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sqlite) initSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			content TEXT NOT NULL,
			section_title TEXT,
			parent_id TEXT,
			token_estimate INTEGER NOT NULL,
			embedding BLOB
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks (document_id);
		CREATE TABLE IF NOT EXISTS sync_status (
			document_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			chunk_count INTEGER NOT NULL,
			error TEXT,
			updated_at DATETIME NOT NULL
		);
	`
	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Sqlite) Close() error {
	return s.db.Close()
}

// AddChunks implements docrag.VectorStore.
func (s *Sqlite) AddChunks(ctx context.Context, chunks []docrag.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks and embeddings must have same length: %d != %d", len(chunks), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO chunks (id, document_id, idx, content, section_title, parent_id, token_estimate, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			idx = excluded.idx,
			content = excluded.content,
			section_title = excluded.section_title,
			parent_id = excluded.parent_id,
			token_estimate = excluded.token_estimate,
			embedding = excluded.embedding
	`
	for i, chunk := range chunks {
		var blob []byte
		if len(embeddings[i]) > 0 {
			blob = encodeVector(embeddings[i])
		}
		_, err := tx.ExecContext(ctx, query,
			chunk.ID,
			chunk.DocumentID,
			chunk.Index,
			chunk.Content,
			chunk.SectionTitle,
			chunk.ParentID,
			chunk.TokenEstimate,
			blob,
		)
		if err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// Search implements docrag.VectorStore. Candidate rows (embedding not
// null, optionally filtered by document) are scored in-process.
func (s *Sqlite) Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]docrag.ChunkSearchResult, error) {
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
		sqlQuery += " AND document_id IN (?" // at least one placeholder
		for range documentIDs[1:] {
			sqlQuery += ", ?"
		}
		sqlQuery += ")"
		for _, id := range documentIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []docrag.ChunkSearchResult
	for rows.Next() {
		var chunk docrag.Chunk
		var sectionTitle, parentID sql.NullString
		var blob []byte

		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Index,
			&chunk.Content,
			&sectionTitle,
			&parentID,
			&chunk.TokenEstimate,
			&blob,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunk.SectionTitle = sectionTitle.String
		chunk.ParentID = parentID.String

		results = append(results, docrag.ChunkSearchResult{
			Chunk: chunk,
			Score: embedder.CosineSimilarity(query, decodeVector(blob)),
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
func (s *Sqlite) GetChunk(ctx context.Context, id string) (*docrag.Chunk, error) {
	query := `
		SELECT id, document_id, idx, content, section_title, parent_id, token_estimate
		FROM chunks
		WHERE id = ?
	`
	var chunk docrag.Chunk
	var sectionTitle, parentID sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.Index,
		&chunk.Content,
		&sectionTitle,
		&parentID,
		&chunk.TokenEstimate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("chunk not found: %s", id)
		}
		return nil, fmt.Errorf("failed to load chunk: %w", err)
	}
	chunk.SectionTitle = sectionTitle.String
	chunk.ParentID = parentID.String
	return &chunk, nil
}

// DeleteDocument implements docrag.VectorStore.
func (s *Sqlite) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// GetSyncStatus implements docrag.VectorStore.
func (s *Sqlite) GetSyncStatus(ctx context.Context, documentID string) (*docrag.SyncStatus, error) {
	query := `
		SELECT document_id, state, chunk_count, error, updated_at
		FROM sync_status
		WHERE document_id = ?
	`
	var status docrag.SyncStatus
	var state string
	var errMsg sql.NullString

	err := s.db.QueryRowContext(ctx, query, documentID).Scan(
		&status.DocumentID,
		&state,
		&status.ChunkCount,
		&errMsg,
		&status.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load sync status: %w", err)
	}
	status.State = docrag.SyncState(state)
	status.Error = errMsg.String
	return &status, nil
}

// SetSyncStatus implements docrag.VectorStore.
func (s *Sqlite) SetSyncStatus(ctx context.Context, status docrag.SyncStatus) error {
	query := `
		INSERT INTO sync_status (document_id, state, chunk_count, error, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			state = excluded.state,
			chunk_count = excluded.chunk_count,
			error = excluded.error,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
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

// encodeVector packs a float32 vector as a little-endian blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
