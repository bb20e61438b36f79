package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/buildgrid/docrag"
)

// ElementsOptions configures the secondary element-extraction provider.
// Unlike the cloud parse job it answers synchronously with a list of
// typed layout elements which are then linearized into markdown.
type ElementsOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// element is one typed span returned by the provider.
type element struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Metadata struct {
		PageNumber int `json:"page_number"`
	} `json:"metadata"`
}

// ElementsStrategy is the secondary external parsing path.
type ElementsStrategy struct {
	opts ElementsOptions
}

// NewElementsStrategy creates the element-extraction strategy.
func NewElementsStrategy(opts ElementsOptions) *ElementsStrategy {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &ElementsStrategy{opts: opts}
}

// Name implements Strategy.
func (s *ElementsStrategy) Name() string { return "elements" }

// CanHandle implements Strategy.
func (s *ElementsStrategy) CanHandle(filename string) bool { return true }

// Parse implements Strategy.
func (s *ElementsStrategy) Parse(ctx context.Context, data []byte, filename string) (*docrag.ParsedDocument, error) {
	elements, err := s.extract(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("elements extract: %w", err)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("elements extract: provider returned no elements for %s", filename)
	}

	content, pages := linearize(elements)

	return &docrag.ParsedDocument{
		Content: content,
		Metadata: docrag.ParseMetadata{
			Parser: s.Name(),
			Pages:  pages,
			Title:  titleFromMarkdown(content),
		},
	}, nil
}

func (s *ElementsStrategy) extract(ctx context.Context, data []byte, filename string) ([]element, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.BaseURL+"/general/v0/general", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("unstructured-api-key", s.opts.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var elements []element
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, err
	}
	return elements, nil
}

// linearize renders typed elements as markdown, one block per element.
// Titles become level-1 headings, section headers level-2, list items
// bullets; tables and narrative text pass through as-is.
func linearize(elements []element) (content string, pages int) {
	var blocks []string
	for _, el := range elements {
		text := strings.TrimSpace(el.Text)
		if text == "" {
			continue
		}

		switch strings.ToLower(el.Type) {
		case "title":
			blocks = append(blocks, "# "+text)
		case "header", "section-header", "sectionheader":
			blocks = append(blocks, "## "+text)
		case "listitem", "list-item":
			blocks = append(blocks, "- "+text)
		default:
			// table, narrativetext, figurecaption, ...
			blocks = append(blocks, text)
		}

		if el.Metadata.PageNumber > pages {
			pages = el.Metadata.PageNumber
		}
	}
	return strings.Join(blocks, "\n\n"), pages
}
