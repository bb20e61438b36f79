package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/buildgrid/docrag"
)

// HostedOptions configures the secondary reranking provider, a hosted
// rerank API with native [0, 1] relevance scores. No local timeout is
// applied: by the time the cascade reaches it the primary has already
// burned its budget, so the caller's deadline governs.
type HostedOptions struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Hosted is the secondary rerank provider.
type Hosted struct {
	opts HostedOptions
}

// NewHosted creates the secondary provider.
func NewHosted(opts HostedOptions) *Hosted {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Model == "" {
		opts.Model = "rerank-multilingual-v3"
	}
	return &Hosted{opts: opts}
}

// Name implements Provider.
func (h *Hosted) Name() string { return "hosted" }

// Rerank implements Provider.
func (h *Hosted) Rerank(ctx context.Context, query string, documents []string, topK int) ([]docrag.RerankResult, error) {
	payload, err := json.Marshal(map[string]any{
		"model":     h.opts.Model,
		"query":     query,
		"documents": documents,
		"top_n":     topK,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.opts.BaseURL+"/v1/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hosted rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hosted rerank status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var body struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("hosted rerank decode: %w", err)
	}

	results := make([]docrag.RerankResult, len(body.Results))
	for i, r := range body.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("hosted rerank returned out-of-range index %d", r.Index)
		}
		results[i] = docrag.RerankResult{
			Index: r.Index,
			Score: r.RelevanceScore,
		}
	}
	return results, nil
}
