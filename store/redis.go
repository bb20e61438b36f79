package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/embedder"
)

// Redis persists chunks in Redis: one JSON value per chunk, a set per
// document indexing its chunk IDs, and a JSON sync-status record per
// document. Writes go through pipelines.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisOptions configuration for the Redis store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces all keys, default "docrag:".
	Prefix string
}

var _ docrag.VectorStore = (*Redis)(nil)

// NewRedis creates a Redis-backed store.
func NewRedis(opts RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "docrag:"
	}

	return &Redis{client: client, prefix: prefix}
}

// Close releases the underlying client.
func (s *Redis) Close() error {
	return s.client.Close()
}

func (s *Redis) chunkKey(id string) string {
	return fmt.Sprintf("%schunk:%s", s.prefix, id)
}

func (s *Redis) documentKey(id string) string {
	return fmt.Sprintf("%sdoc:%s:chunks", s.prefix, id)
}

func (s *Redis) documentsKey() string {
	return s.prefix + "documents"
}

func (s *Redis) syncKey(id string) string {
	return fmt.Sprintf("%ssync:%s", s.prefix, id)
}

// chunkRecord is the stored form of a chunk. Parent chunks have a nil
// Embedding and are skipped by Search.
type chunkRecord struct {
	Chunk     docrag.Chunk `json:"chunk"`
	Embedding []float32    `json:"embedding,omitempty"`
}

// AddChunks implements docrag.VectorStore.
func (s *Redis) AddChunks(ctx context.Context, chunks []docrag.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks and embeddings must have same length: %d != %d", len(chunks), len(embeddings))
	}

	pipe := s.client.Pipeline()
	for i, chunk := range chunks {
		data, err := json.Marshal(chunkRecord{Chunk: chunk, Embedding: embeddings[i]})
		if err != nil {
			return fmt.Errorf("failed to marshal chunk %s: %w", chunk.ID, err)
		}
		pipe.Set(ctx, s.chunkKey(chunk.ID), data, 0)
		pipe.SAdd(ctx, s.documentKey(chunk.DocumentID), chunk.ID)
		pipe.SAdd(ctx, s.documentsKey(), chunk.DocumentID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save chunks to redis: %w", err)
	}
	return nil
}

// Search implements docrag.VectorStore. Candidate IDs come from the
// per-document sets; an empty documentIDs slice searches every document.
func (s *Redis) Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]docrag.ChunkSearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	docIDs := documentIDs
	if len(docIDs) == 0 {
		var err error
		docIDs, err = s.client.SMembers(ctx, s.documentsKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
	}

	var keys []string
	for _, docID := range docIDs {
		chunkIDs, err := s.client.SMembers(ctx, s.documentKey(docID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list chunks for document %s: %w", docID, err)
		}
		for _, id := range chunkIDs {
			keys = append(keys, s.chunkKey(id))
		}
	}
	if len(keys) == 0 {
		return []docrag.ChunkSearchResult{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}

	var results []docrag.ChunkSearchResult
	for _, value := range values {
		strData, ok := value.(string)
		if !ok {
			continue
		}

		var record chunkRecord
		if err := json.Unmarshal([]byte(strData), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk: %w", err)
		}
		if len(record.Embedding) == 0 {
			continue
		}

		results = append(results, docrag.ChunkSearchResult{
			Chunk: record.Chunk,
			Score: embedder.CosineSimilarity(query, record.Embedding),
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
func (s *Redis) GetChunk(ctx context.Context, id string) (*docrag.Chunk, error) {
	data, err := s.client.Get(ctx, s.chunkKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("chunk not found: %s", id)
		}
		return nil, fmt.Errorf("failed to load chunk from redis: %w", err)
	}

	var record chunkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chunk: %w", err)
	}
	return &record.Chunk, nil
}

// DeleteDocument implements docrag.VectorStore.
func (s *Redis) DeleteDocument(ctx context.Context, documentID string) error {
	chunkIDs, err := s.client.SMembers(ctx, s.documentKey(documentID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list chunks for deletion: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, id := range chunkIDs {
		pipe.Del(ctx, s.chunkKey(id))
	}
	pipe.Del(ctx, s.documentKey(documentID))
	pipe.SRem(ctx, s.documentsKey(), documentID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}
	return nil
}

// GetSyncStatus implements docrag.VectorStore.
func (s *Redis) GetSyncStatus(ctx context.Context, documentID string) (*docrag.SyncStatus, error) {
	data, err := s.client.Get(ctx, s.syncKey(documentID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load sync status from redis: %w", err)
	}

	var status docrag.SyncStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync status: %w", err)
	}
	return &status, nil
}

// SetSyncStatus implements docrag.VectorStore.
func (s *Redis) SetSyncStatus(ctx context.Context, status docrag.SyncStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal sync status: %w", err)
	}
	if err := s.client.Set(ctx, s.syncKey(status.DocumentID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save sync status to redis: %w", err)
	}
	return nil
}
