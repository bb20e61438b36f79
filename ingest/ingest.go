// Package ingest runs the document ingestion flow: parse, chunk, embed,
// store. Each document carries a sync status the UI polls; ingestion
// moves it processing → synced, or failed with the terminal error
// recorded.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/log"
)

// DocumentParser turns raw bytes into normalized text.
type DocumentParser interface {
	Parse(ctx context.Context, data []byte, filename string) (*docrag.ParsedDocument, error)
}

// Chunker splits a parsed document into parent and child chunks.
type Chunker interface {
	ChunkDocument(parsed *docrag.ParsedDocument, docID string) []docrag.Chunk
}

// Config wires the pipeline's collaborators.
type Config struct {
	Parser   DocumentParser
	Chunker  Chunker
	Embedder docrag.Embedder
	Store    docrag.VectorStore
	Logger   log.Logger
}

// Pipeline ingests documents into the vector store.
type Pipeline struct {
	parser   DocumentParser
	chunker  Chunker
	embedder docrag.Embedder
	store    docrag.VectorStore
	logger   log.Logger
	now      func() time.Time
}

// Report summarizes a completed ingestion.
type Report struct {
	DocumentID  string
	Filename    string
	Parser      string
	Title       string
	Pages       int
	ChunkCount  int
	ChildCount  int
	ParentCount int
}

// New creates a Pipeline. All collaborators are required.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if cfg.Chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	return &Pipeline{
		parser:   cfg.Parser,
		chunker:  cfg.Chunker,
		embedder: cfg.Embedder,
		store:    cfg.Store,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// IngestDocument parses, chunks, embeds, and stores one document. An
// empty docID gets a generated one (returned in the Report). Re-ingesting
// an existing docID deletes its previous chunks first. On failure the
// document's sync status is set to failed with the error message; the
// error is also returned.
func (p *Pipeline) IngestDocument(ctx context.Context, data []byte, filename, docID string) (*Report, error) {
	if docID == "" {
		docID = uuid.NewString()
	}

	if err := p.setStatus(ctx, docID, docrag.SyncProcessing, 0, ""); err != nil {
		return nil, err
	}

	// Re-sync: previous chunks would otherwise linger next to the new
	// set under different IDs.
	if err := p.store.DeleteDocument(ctx, docID); err != nil {
		return nil, p.fail(ctx, docID, fmt.Errorf("failed to delete previous chunks: %w", err))
	}

	parsed, err := p.parser.Parse(ctx, data, filename)
	if err != nil {
		return nil, p.fail(ctx, docID, err)
	}
	p.logger.Info("ingest: parsed %s with %s parser", filename, parsed.Metadata.Parser)

	chunks := p.chunker.ChunkDocument(parsed, docID)

	report := &Report{
		DocumentID: docID,
		Filename:   filename,
		Parser:     parsed.Metadata.Parser,
		Title:      parsed.Metadata.Title,
		Pages:      parsed.Metadata.Pages,
		ChunkCount: len(chunks),
	}

	if len(chunks) == 0 {
		if err := p.setStatus(ctx, docID, docrag.SyncSynced, 0, ""); err != nil {
			return nil, err
		}
		return report, nil
	}

	// Only child chunks are embedded; parents are stored for context
	// expansion and keep a nil embedding slot.
	var childTexts []string
	var childPositions []int
	for i, chunk := range chunks {
		if chunk.IsParent() {
			report.ParentCount++
			continue
		}
		report.ChildCount++
		childTexts = append(childTexts, chunk.Content)
		childPositions = append(childPositions, i)
	}

	embeddings := make([][]float32, len(chunks))
	if len(childTexts) > 0 {
		vectors, err := p.embedder.GenerateEmbeddings(ctx, childTexts)
		if err != nil {
			return nil, p.fail(ctx, docID, err)
		}
		for i, pos := range childPositions {
			embeddings[pos] = vectors[i]
		}
	}

	if err := p.store.AddChunks(ctx, chunks, embeddings); err != nil {
		return nil, p.fail(ctx, docID, fmt.Errorf("failed to store chunks: %w", err))
	}

	if err := p.setStatus(ctx, docID, docrag.SyncSynced, len(chunks), ""); err != nil {
		return nil, err
	}
	p.logger.Info("ingest: synced %s as %s (%d chunks, %d embedded)", filename, docID, len(chunks), report.ChildCount)
	return report, nil
}

// fail records the failed status and returns the original error. A status
// write failure is logged, not returned: the ingestion error is the one
// the caller needs.
func (p *Pipeline) fail(ctx context.Context, docID string, cause error) error {
	p.logger.Error("ingest: document %s failed: %v", docID, cause)
	if err := p.setStatus(ctx, docID, docrag.SyncFailed, 0, cause.Error()); err != nil {
		p.logger.Error("ingest: failed to record failed status for %s: %v", docID, err)
	}
	return cause
}

func (p *Pipeline) setStatus(ctx context.Context, docID string, state docrag.SyncState, chunkCount int, errMsg string) error {
	return p.store.SetSyncStatus(ctx, docrag.SyncStatus{
		DocumentID: docID,
		State:      state,
		ChunkCount: chunkCount,
		Error:      errMsg,
		UpdatedAt:  p.now(),
	})
}
