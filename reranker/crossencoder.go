package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/buildgrid/docrag"
)

// CrossEncoderOptions configures the primary reranking provider, a
// self-hosted cross-encoder scoring service.
type CrossEncoderOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// Timeout bounds the whole request. The cross-encoder sits on the
	// hot path of every retrieve call, so the default is a strict 3s:
	// better to fall back than stall generation.
	Timeout time.Duration
}

// CrossEncoder is the primary rerank provider.
type CrossEncoder struct {
	opts CrossEncoderOptions
}

// NewCrossEncoder creates the primary provider.
func NewCrossEncoder(opts CrossEncoderOptions) *CrossEncoder {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &CrossEncoder{opts: opts}
}

// Name implements Provider.
func (c *CrossEncoder) Name() string { return "crossencoder" }

// Rerank implements Provider. The provider returns raw logits; they are
// mapped through a sigmoid so downstream threshold filtering sees [0, 1].
func (c *CrossEncoder) Rerank(ctx context.Context, query string, documents []string, topK int) ([]docrag.RerankResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"documents": documents,
		"top_k":     topK,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crossencoder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("crossencoder status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var body struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("crossencoder decode: %w", err)
	}

	results := make([]docrag.RerankResult, len(body.Results))
	for i, r := range body.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("crossencoder returned out-of-range index %d", r.Index)
		}
		results[i] = docrag.RerankResult{
			Index: r.Index,
			Score: sigmoid(r.Score),
		}
	}
	return results, nil
}

// sigmoid maps a cross-encoder logit onto [0, 1].
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
