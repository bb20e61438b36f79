package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/buildgrid/docrag"
)

// CloudParseOptions configures the primary cloud parsing provider. The
// provider runs parsing as an asynchronous job: upload the file, poll the
// job until it settles, then fetch the normalized markdown output.
type CloudParseOptions struct {
	BaseURL string
	APIKey  string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// PollInterval between job status checks. Default 5s.
	PollInterval time.Duration
	// MaxPolls bounds the polling loop. Default 60, a 5-minute ceiling at
	// the default interval.
	MaxPolls int
	// Sleep is injectable so tests can simulate time. Defaults to a
	// context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// jobState tracks the polling state machine:
// submitted -> polling -> succeeded | failed | timedOut.
type jobState int

const (
	jobSubmitted jobState = iota
	jobPolling
	jobSucceeded
	jobFailed
	jobTimedOut
)

// CloudParseStrategy is the primary external parsing path.
type CloudParseStrategy struct {
	opts CloudParseOptions
}

// NewCloudParseStrategy creates the cloud parse-job strategy.
func NewCloudParseStrategy(opts CloudParseOptions) *CloudParseStrategy {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 60
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &CloudParseStrategy{opts: opts}
}

// Name implements Strategy.
func (s *CloudParseStrategy) Name() string { return "cloudparse" }

// CanHandle implements Strategy. The provider accepts any format; plain
// text files normally never reach it because the text strategy sits ahead
// in the cascade.
func (s *CloudParseStrategy) CanHandle(filename string) bool { return true }

// Parse implements Strategy.
func (s *CloudParseStrategy) Parse(ctx context.Context, data []byte, filename string) (*docrag.ParsedDocument, error) {
	jobID, err := s.upload(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("cloudparse upload: %w", err)
	}

	state := jobSubmitted
	for attempt := 0; ; attempt++ {
		if attempt >= s.opts.MaxPolls {
			state = jobTimedOut
			break
		}
		if err := s.opts.Sleep(ctx, s.opts.PollInterval); err != nil {
			return nil, err
		}

		state = jobPolling
		status, errMsg, err := s.jobStatus(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("cloudparse poll: %w", err)
		}

		switch status {
		case "SUCCESS":
			state = jobSucceeded
		case "ERROR":
			state = jobFailed
			return nil, &docrag.ParseJobError{Provider: s.Name(), JobID: jobID, Message: errMsg}
		default:
			continue
		}
		break
	}

	if state == jobTimedOut {
		return nil, fmt.Errorf("%w: job %s still pending after %d polls",
			docrag.ErrParseTimeout, jobID, s.opts.MaxPolls)
	}

	return s.fetchResult(ctx, jobID)
}

func (s *CloudParseStrategy) upload(ctx context.Context, data []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.BaseURL+"/api/v1/parsing/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		ID string `json:"id"`
	}
	if err := s.doJSON(req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("upload response missing job id")
	}
	return resp.ID, nil
}

func (s *CloudParseStrategy) jobStatus(ctx context.Context, jobID string) (status, errMsg string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.BaseURL+"/api/v1/parsing/job/"+jobID, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)

	var resp struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := s.doJSON(req, &resp); err != nil {
		return "", "", err
	}
	return resp.Status, resp.Error, nil
}

func (s *CloudParseStrategy) fetchResult(ctx context.Context, jobID string) (*docrag.ParsedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.opts.BaseURL+"/api/v1/parsing/job/"+jobID+"/result/markdown", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)

	var resp struct {
		Markdown    string `json:"markdown"`
		JobMetadata struct {
			JobPages int `json:"job_pages"`
		} `json:"job_metadata"`
	}
	if err := s.doJSON(req, &resp); err != nil {
		return nil, fmt.Errorf("cloudparse result: %w", err)
	}

	return &docrag.ParsedDocument{
		Content: resp.Markdown,
		Metadata: docrag.ParseMetadata{
			Parser: s.Name(),
			Pages:  resp.JobMetadata.JobPages,
			Title:  titleFromMarkdown(resp.Markdown),
		},
	}, nil
}

func (s *CloudParseStrategy) doJSON(req *http.Request, out any) error {
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
