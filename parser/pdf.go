package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/log"
)

// PDFStrategy extracts PDF text in-process with no external dependency.
// It is the last resort of the cascade: output quality is below the cloud
// providers, but it needs no credential and cannot be rate limited.
type PDFStrategy struct {
	logger log.Logger
}

// NewPDFStrategy creates the local PDF extraction strategy.
func NewPDFStrategy(logger log.Logger) *PDFStrategy {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &PDFStrategy{logger: logger}
}

// Name implements Strategy.
func (s *PDFStrategy) Name() string { return "pdf" }

// CanHandle implements Strategy.
func (s *PDFStrategy) CanHandle(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}

// Parse implements Strategy.
func (s *PDFStrategy) Parse(ctx context.Context, data []byte, filename string) (*docrag.ParsedDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf open: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("pdf extract: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return nil, fmt.Errorf("pdf read: %w", err)
	}

	content := strings.TrimSpace(buf.String())
	if content == "" {
		// Likely a scanned/image-only PDF. Non-fatal: an empty document
		// simply produces no chunks.
		s.logger.Warn("parser: extracted zero characters from %s, likely a scanned PDF", filename)
	}

	return &docrag.ParsedDocument{
		Content: content,
		Metadata: docrag.ParseMetadata{
			Parser: s.Name(),
			Pages:  reader.NumPage(),
		},
	}, nil
}
