// Package chunker splits parsed documents into two tiers of bounded
// chunks: fine-grained children that get embedded and searched, and
// coarser parents that wrap several children and are substituted in when
// a caller asks for expanded context.
//
// Sizing uses a character heuristic (roughly four characters per token),
// not a real tokenizer, so the configured bounds are approximate by
// design. Boundaries prefer paragraphs, then fall back to hard cuts that
// avoid splitting mid-word.
package chunker

import (
	"fmt"
	"strings"

	"github.com/buildgrid/docrag"
)

const charsPerToken = 4

// Chunker produces a deterministic chunk set for a document. It has no
// side effects and never fails on well-formed input.
type Chunker struct {
	childTokens   int
	parentTokens  int
	overlapTokens int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChildTokens sets the target size of search chunks.
func WithChildTokens(tokens int) Option {
	return func(c *Chunker) {
		c.childTokens = tokens
	}
}

// WithParentTokens sets the target size of context-expansion chunks.
func WithParentTokens(tokens int) Option {
	return func(c *Chunker) {
		c.parentTokens = tokens
	}
}

// WithOverlapTokens sets the overlap applied when an oversized paragraph
// forces hard character cuts.
func WithOverlapTokens(tokens int) Option {
	return func(c *Chunker) {
		c.overlapTokens = tokens
	}
}

// New creates a Chunker. Defaults: 300-token children, 1200-token
// parents, 40-token overlap on hard cuts.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		childTokens:   300,
		parentTokens:  1200,
		overlapTokens: 40,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EstimateTokens is the sizing heuristic shared across the pipeline.
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// ChunkDocument splits a parsed document. Parent chunks come first in the
// returned slice, followed by their children in document order; every
// child's ParentID references its enclosing parent and every child's
// content is a substring of that parent's content.
func (c *Chunker) ChunkDocument(parsed *docrag.ParsedDocument, docID string) []docrag.Chunk {
	paragraphs := splitParagraphs(parsed.Content)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []docrag.Chunk
	var children []docrag.Chunk
	parentIdx, childIdx := 0, 0

	for _, group := range c.groupParagraphs(paragraphs, c.parentTokens) {
		parentContent := joinParagraphs(group)
		parent := docrag.Chunk{
			ID:            fmt.Sprintf("%s_parent_%d", docID, parentIdx),
			DocumentID:    docID,
			Index:         parentIdx,
			Content:       parentContent,
			SectionTitle:  group[0].section,
			TokenEstimate: EstimateTokens(parentContent),
		}
		chunks = append(chunks, parent)
		parentIdx++

		for _, childGroup := range c.groupParagraphs(group, c.childTokens) {
			for _, content := range c.boundChild(joinParagraphs(childGroup)) {
				children = append(children, docrag.Chunk{
					ID:            fmt.Sprintf("%s_child_%d", docID, childIdx),
					DocumentID:    docID,
					Index:         childIdx,
					Content:       content,
					SectionTitle:  childGroup[0].section,
					ParentID:      parent.ID,
					TokenEstimate: EstimateTokens(content),
				})
				childIdx++
			}
		}
	}

	return append(chunks, children...)
}

// paragraph is a text block annotated with its enclosing section title.
type paragraph struct {
	text    string
	section string
}

// splitParagraphs breaks content on blank lines and tracks the nearest
// preceding markdown heading as each block's section title.
func splitParagraphs(content string) []paragraph {
	var out []paragraph
	section := ""

	for _, block := range strings.Split(content, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if title, ok := headingTitle(block); ok {
			section = title
		}
		out = append(out, paragraph{text: block, section: section})
	}
	return out
}

// headingTitle reports whether a block starts with a markdown heading and
// returns its text.
func headingTitle(block string) (string, bool) {
	line, _, _ := strings.Cut(block, "\n")
	trimmed := strings.TrimLeft(line, "#")
	if trimmed == line || !strings.HasPrefix(trimmed, " ") {
		return "", false
	}
	return strings.TrimSpace(trimmed), true
}

// groupParagraphs greedily merges consecutive paragraphs while the joined
// estimate stays within targetTokens. A paragraph that alone exceeds the
// target forms its own group; boundChild cuts it down later.
func (c *Chunker) groupParagraphs(paragraphs []paragraph, targetTokens int) [][]paragraph {
	var groups [][]paragraph
	var current []paragraph
	currentTokens := 0

	for _, p := range paragraphs {
		pTokens := EstimateTokens(p.text)
		if len(current) > 0 && currentTokens+pTokens > targetTokens {
			groups = append(groups, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, p)
		currentTokens += pTokens
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func joinParagraphs(group []paragraph) string {
	parts := make([]string, len(group))
	for i, p := range group {
		parts[i] = p.text
	}
	return strings.Join(parts, "\n\n")
}

// boundChild enforces the child size bound. Text within the bound passes
// through; oversized text is cut into overlapping windows that end on a
// word boundary where one exists.
func (c *Chunker) boundChild(text string) []string {
	maxChars := c.childTokens * charsPerToken
	if len(text) <= maxChars {
		return []string{text}
	}

	overlapChars := c.overlapTokens * charsPerToken

	var cuts []string
	for start := 0; start < len(text); {
		end := start + maxChars
		if end >= len(text) {
			cuts = append(cuts, text[start:])
			break
		}

		// Prefer ending the window on a word boundary.
		cut := end
		if idx := strings.LastIndexByte(text[start:end], ' '); idx > 0 {
			cut = start + idx
		}
		cuts = append(cuts, text[start:cut])

		next := cut - overlapChars
		if next <= start {
			next = cut
		}
		// Do not restart mid-word: slide forward to the next boundary
		// inside the overlap region.
		if sp := strings.IndexByte(text[next:cut], ' '); sp >= 0 {
			next += sp + 1
		}
		start = next
	}
	return cuts
}
