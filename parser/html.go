package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/buildgrid/docrag"
)

// HTMLStrategy extracts text from exported web pages locally. Markup is
// sanitized first so script/style bodies never leak into chunk text, then
// block elements are walked in document order and rendered as markdown.
type HTMLStrategy struct {
	policy *bluemonday.Policy
}

// NewHTMLStrategy creates the HTML extraction strategy.
func NewHTMLStrategy() *HTMLStrategy {
	return &HTMLStrategy{
		policy: bluemonday.UGCPolicy(),
	}
}

// Name implements Strategy.
func (s *HTMLStrategy) Name() string { return "html" }

// CanHandle implements Strategy.
func (s *HTMLStrategy) CanHandle(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".html" || ext == ".htm"
}

// Parse implements Strategy.
func (s *HTMLStrategy) Parse(ctx context.Context, data []byte, filename string) (*docrag.ParsedDocument, error) {
	sanitized := s.policy.SanitizeBytes(data)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(sanitized)))
	if err != nil {
		return nil, fmt.Errorf("html parse: %w", err)
	}

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(sel) {
		case "h1":
			blocks = append(blocks, "# "+text)
		case "h2":
			blocks = append(blocks, "## "+text)
		case "h3", "h4", "h5", "h6":
			blocks = append(blocks, "### "+text)
		case "li":
			blocks = append(blocks, "- "+text)
		default:
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		return nil, fmt.Errorf("html parse: no text content in %s", filename)
	}

	content := strings.Join(blocks, "\n\n")

	// The sanitizer drops <head>, so recover the title from the raw markup.
	title := ""
	if raw, err := goquery.NewDocumentFromReader(strings.NewReader(string(data))); err == nil {
		title = strings.TrimSpace(raw.Find("title").First().Text())
	}
	if title == "" {
		title = titleFromMarkdown(content)
	}

	return &docrag.ParsedDocument{
		Content: content,
		Metadata: docrag.ParseMetadata{
			Parser: s.Name(),
			Title:  title,
		},
	}, nil
}
