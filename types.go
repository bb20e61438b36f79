package docrag

import (
	"context"
	"time"
)

// Document is an uploaded file. Content bytes live in external storage;
// the pipeline only ever sees them at parse time.
type Document struct {
	ID       string
	Filename string
	MIMEType string
}

// ParseMetadata describes how a document was parsed.
type ParseMetadata struct {
	// Parser is the identifier of the strategy that produced the text
	// ("text", "cloudparse", "elements", "html", "pdf").
	Parser string
	// Pages is the page count when the source format has pages, 0 otherwise.
	Pages int
	// Title is the document title when the parser could recover one.
	Title string
}

// ParsedDocument is the normalized markdown-like output of parsing.
// It is transient: held in memory between parse and chunk, never persisted
// verbatim.
type ParsedDocument struct {
	Content  string
	Metadata ParseMetadata
}

// Chunk is a bounded span of a parsed document's text, the unit of
// retrieval. Child chunks are embedded and searched; parent chunks wrap
// several children and are substituted in when callers ask for expanded
// context.
type Chunk struct {
	ID         string
	DocumentID string
	// Index is the chunk's ordinal within its document and tier.
	Index int
	Content string
	// SectionTitle is the nearest enclosing markdown heading, if any.
	SectionTitle string
	// ParentID references the enclosing parent chunk. Empty for parent
	// chunks themselves; every child chunk has one.
	ParentID string
	// TokenEstimate is the heuristic token count used for sizing
	// (roughly len(content)/4, not a real tokenizer count).
	TokenEstimate int
}

// IsParent reports whether the chunk belongs to the parent tier.
func (c Chunk) IsParent() bool {
	return c.ParentID == ""
}

// ChunkSearchResult pairs a chunk with its similarity score from the
// initial vector search. Scores are raw cosine similarity in [-1, 1].
type ChunkSearchResult struct {
	Chunk Chunk
	Score float64
}

// RetrievalResult is one ranked entry of a retrieve call. Transient,
// produced per query.
type RetrievalResult struct {
	ChunkID      string
	DocumentID   string
	Content      string
	SectionTitle string
	// Score is the relevance score on a normalized [0, 1] scale.
	Score float64
	// Source records which stage produced the score: "rerank" for
	// cross-encoder scores, "similarity" when the caller accepted the
	// degraded similarity-only order.
	Source string
}

// RerankResult is one entry of a reranker response. Index refers to the
// position of the document in the input slice.
type RerankResult struct {
	Index int
	// Score is normalized to [0, 1] regardless of the provider's native
	// scale.
	Score float64
}

// SyncState is the per-document ingestion status polled by the UI.
type SyncState string

const (
	SyncPending    SyncState = "pending"
	SyncProcessing SyncState = "processing"
	SyncSynced     SyncState = "synced"
	SyncFailed     SyncState = "failed"
)

// SyncStatus records where a document sits in the ingestion flow.
type SyncStatus struct {
	DocumentID string
	State      SyncState
	ChunkCount int
	Error      string
	UpdatedAt  time.Time
}

// Embedder converts text into fixed-dimension vectors. Implementations
// have no local fallback: embeddings must stay in the vector space of the
// previously stored vectors, so a failed provider call surfaces as an
// *EmbeddingError after the client's own retries.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the expected vector length, used to validate provider
	// responses defensively.
	Dimension() int
}

// VectorStore persists chunks with their embeddings and answers
// cosine-similarity searches. The store is shared and externally managed;
// the pipeline treats it as read-mostly and makes no transactional
// guarantees across multiple chunk writes.
type VectorStore interface {
	// AddChunks stores chunks with their embeddings. len(chunks) must
	// equal len(embeddings); parent chunks are stored with a nil
	// embedding slot and excluded from search.
	AddChunks(ctx context.Context, chunks []Chunk, embeddings [][]float32) error
	// Search returns up to k child chunks ranked by cosine similarity,
	// restricted to documentIDs when non-empty.
	Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]ChunkSearchResult, error)
	// GetChunk fetches a single chunk by ID, used for parent context
	// expansion.
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	// DeleteDocument removes every chunk of a document.
	DeleteDocument(ctx context.Context, documentID string) error
	GetSyncStatus(ctx context.Context, documentID string) (*SyncStatus, error)
	SetSyncStatus(ctx context.Context, status SyncStatus) error
}

// Reranker re-scores candidate texts against a query with a cross-encoder
// style provider. Results are ordered by descending score and capped at
// topK.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)
}
