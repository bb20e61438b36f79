// Package parser converts raw document bytes into normalized
// markdown-like text. Parsing is a fallback cascade: an ordered list of
// strategies is attempted until one succeeds, so a best-effort result is
// always preferred over total failure. Only when every applicable
// strategy fails does Parse return a *docrag.ParseError naming the
// attempts.
package parser

import (
	"context"

	"github.com/buildgrid/docrag"
	"github.com/buildgrid/docrag/log"
)

// Strategy is one entry of the parse cascade. Strategies are attempted in
// order; a strategy that cannot handle the file is skipped, a strategy
// that fails is logged and the cascade moves on.
type Strategy interface {
	// Name identifies the strategy in ParsedDocument.Metadata.Parser and
	// in ParseError.Attempts.
	Name() string
	// CanHandle reports whether the strategy applies to this file.
	CanHandle(filename string) bool
	Parse(ctx context.Context, data []byte, filename string) (*docrag.ParsedDocument, error)
}

// Options configures a Parser.
type Options struct {
	// CloudParse enables the primary cloud parse-job strategy when
	// non-nil.
	CloudParse *CloudParseOptions
	// Elements enables the secondary element-extraction strategy when
	// non-nil.
	Elements *ElementsOptions
	// Strategies overrides the default cascade entirely. When set, the
	// CloudParse and Elements fields are ignored.
	Strategies []Strategy
	Logger     log.Logger
}

// Parser walks an ordered strategy list until one produces text.
type Parser struct {
	strategies []Strategy
	logger     log.Logger
}

// New creates a Parser. With zero options the cascade is plain text ->
// HTML -> local PDF; configuring CloudParse and/or Elements inserts the
// external providers between the text and local stages, mirroring their
// priority in production.
func New(opts Options) *Parser {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	strategies := opts.Strategies
	if strategies == nil {
		strategies = append(strategies, NewTextStrategy())
		if opts.CloudParse != nil {
			strategies = append(strategies, NewCloudParseStrategy(*opts.CloudParse))
		}
		if opts.Elements != nil {
			strategies = append(strategies, NewElementsStrategy(*opts.Elements))
		}
		strategies = append(strategies, NewHTMLStrategy(), NewPDFStrategy(logger))
	}

	return &Parser{
		strategies: strategies,
		logger:     logger,
	}
}

// Parse runs the cascade for one document. The returned document's
// Metadata.Parser names the strategy that produced it.
func (p *Parser) Parse(ctx context.Context, data []byte, filename string) (*docrag.ParsedDocument, error) {
	var attempts []string
	var errs []error

	for _, s := range p.strategies {
		if !s.CanHandle(filename) {
			continue
		}

		attempts = append(attempts, s.Name())
		parsed, err := s.Parse(ctx, data, filename)
		if err != nil {
			p.logger.Warn("parser: strategy %s failed for %s: %v", s.Name(), filename, err)
			errs = append(errs, err)
			continue
		}

		p.logger.Info("parser: parsed %s via %s (%d chars)", filename, s.Name(), len(parsed.Content))
		return parsed, nil
	}

	return nil, &docrag.ParseError{
		Filename: filename,
		Attempts: attempts,
		Errs:     errs,
	}
}
