// Package store provides docrag.VectorStore implementations backed by
// memory, SQLite, Redis, and PostgreSQL.
//
// All four stores share the same contract: chunks are persisted together
// with their embeddings, similarity search runs over child chunks only
// (parent chunks carry no embedding and are fetched by ID for context
// expansion), and each document has a sync-status record tracking its
// place in the ingestion flow.
//
// None of the backends assumes a vector extension. Embeddings are stored
// as plain data (blob, float4[], JSON) and cosine similarity is computed
// in-process, which is adequate at per-project corpus sizes.
package store
