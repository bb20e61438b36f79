package parser

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/buildgrid/docrag"
)

// textExtensions are the formats decoded directly without an external
// call.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
}

// TextStrategy decodes plain-text formats as UTF-8. It never makes a
// network call and only degrades (never fails) on malformed encoding:
// invalid bytes are replaced rather than rejected, matching best-effort
// decoding.
type TextStrategy struct{}

// NewTextStrategy creates the plain-text strategy.
func NewTextStrategy() *TextStrategy {
	return &TextStrategy{}
}

// Name implements Strategy.
func (s *TextStrategy) Name() string { return "text" }

// CanHandle implements Strategy.
func (s *TextStrategy) CanHandle(filename string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Parse implements Strategy.
func (s *TextStrategy) Parse(ctx context.Context, data []byte, filename string) (*docrag.ParsedDocument, error) {
	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "�")
	}

	return &docrag.ParsedDocument{
		Content: content,
		Metadata: docrag.ParseMetadata{
			Parser: s.Name(),
			Title:  titleFromMarkdown(content),
		},
	}, nil
}
