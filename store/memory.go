package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/embedder"
)

// Memory is an in-memory vector store. It is the reference implementation
// the persistent stores are tested against, and is useful on its own for
// tests and small corpora.
type Memory struct {
	mu         sync.RWMutex
	chunks     map[string]docrag.Chunk
	embeddings map[string][]float32
	byDocument map[string][]string
	statuses   map[string]docrag.SyncStatus
}

var _ docrag.VectorStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		chunks:     make(map[string]docrag.Chunk),
		embeddings: make(map[string][]float32),
		byDocument: make(map[string][]string),
		statuses:   make(map[string]docrag.SyncStatus),
	}
}

// AddChunks implements docrag.VectorStore. Parent chunks are stored with a
// nil embedding and never participate in Search.
func (s *Memory) AddChunks(ctx context.Context, chunks []docrag.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks and embeddings must have same length: %d != %d", len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, chunk := range chunks {
		if _, exists := s.chunks[chunk.ID]; !exists {
			s.byDocument[chunk.DocumentID] = append(s.byDocument[chunk.DocumentID], chunk.ID)
		}
		s.chunks[chunk.ID] = chunk
		if len(embeddings[i]) > 0 {
			s.embeddings[chunk.ID] = embeddings[i]
		} else {
			delete(s.embeddings, chunk.ID)
		}
	}
	return nil
}

// Search implements docrag.VectorStore. Only chunks stored with an
// embedding are candidates; an empty documentIDs slice searches every
// document.
func (s *Memory) Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]docrag.ChunkSearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	var docFilter map[string]bool
	if len(documentIDs) > 0 {
		docFilter = make(map[string]bool, len(documentIDs))
		for _, id := range documentIDs {
			docFilter[id] = true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []docrag.ChunkSearchResult
	for id, emb := range s.embeddings {
		chunk := s.chunks[id]
		if docFilter != nil && !docFilter[chunk.DocumentID] {
			continue
		}
		results = append(results, docrag.ChunkSearchResult{
			Chunk: chunk,
			Score: embedder.CosineSimilarity(query, emb),
		})
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
func (s *Memory) GetChunk(ctx context.Context, id string) (*docrag.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunk, ok := s.chunks[id]
	if !ok {
		return nil, fmt.Errorf("chunk not found: %s", id)
	}
	return &chunk, nil
}

// DeleteDocument implements docrag.VectorStore.
func (s *Memory) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byDocument[documentID] {
		delete(s.chunks, id)
		delete(s.embeddings, id)
	}
	delete(s.byDocument, documentID)
	return nil
}

// GetSyncStatus implements docrag.VectorStore. A document that was never
// ingested has no status and returns (nil, nil).
func (s *Memory) GetSyncStatus(ctx context.Context, documentID string) (*docrag.SyncStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[documentID]
	if !ok {
		return nil, nil
	}
	return &status, nil
}

// SetSyncStatus implements docrag.VectorStore.
func (s *Memory) SetSyncStatus(ctx context.Context, status docrag.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[status.DocumentID] = status
	return nil
}
