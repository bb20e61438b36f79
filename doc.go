// Package docrag implements the document retrieval pipeline used to ground
// AI-generated project reports in uploaded construction documents.
//
// The pipeline runs in five stages, each owned by a subpackage:
//
//   - parser: raw bytes -> normalized markdown text, via a fallback cascade
//     of parsing strategies (plain text, cloud parse jobs, element
//     extraction, HTML, local PDF)
//   - chunker: normalized text -> two tiers of bounded chunks, fine-grained
//     children for search and coarse parents for context expansion
//   - embedder: chunk text -> fixed-dimension vectors via an
//     OpenAI-compatible embeddings API
//   - reranker: second-pass cross-encoder scoring of candidate chunks, with
//     provider fallback
//   - retriever: the orchestrator composing embed -> search -> rerank ->
//     parent expansion -> threshold filter
//
// This root package holds the shared data model (Document, ParsedDocument,
// Chunk, RetrievalResult), the component interfaces wired between
// subpackages, and the error taxonomy. The ingest package composes the
// write path (parse -> chunk -> embed -> store) and tracks per-document
// sync status.
//
// # Quick start
//
//	emb, _ := embedder.NewOpenAI(embedder.Options{APIKey: key})
//	vs := store.NewMemory()
//	rr := reranker.New(reranker.Options{Primary: &reranker.CrossEncoderOptions{BaseURL: url, APIKey: key}})
//
//	pipe, _ := ingest.New(ingest.Config{
//		Parser:   parser.New(parser.Options{}),
//		Chunker:  chunker.New(),
//		Embedder: emb,
//		Store:    vs,
//	})
//	report, _ := pipe.IngestDocument(ctx, fileBytes, "tender-brief.pdf", "")
//
//	ret, _ := retriever.New(retriever.Config{Embedder: emb, Store: vs, Reranker: rr})
//	results, err := ret.Retrieve(ctx, "fire safety requirements", retriever.Options{
//		DocumentIDs:          []string{report.DocumentID},
//		TopK:                 30,
//		RerankTopK:           8,
//		IncludeParentContext: true,
//		MinRelevanceScore:    0.3,
//	})
//
// Callers concatenate the returned chunk content into an LLM prompt; the
// pipeline itself never calls a generation model.
package docrag // import "github.com/buildgrid/docrag"
