package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildgrid/docrag"
)

// noSleep advances instantly so polling tests run without real delays.
func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newCloudParseServer(t *testing.T, pollsUntilDone int, finalStatus string) (*httptest.Server, *int) {
	t.Helper()
	polls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/parsing/upload", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		json.NewEncoder(w).Encode(map[string]string{"id": "job-42"})
	})
	mux.HandleFunc("/api/v1/parsing/job/job-42", func(w http.ResponseWriter, r *http.Request) {
		polls++
		status := "PENDING"
		if polls >= pollsUntilDone {
			status = finalStatus
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status, "error": "ocr backend crashed"})
	})
	mux.HandleFunc("/api/v1/parsing/job/job-42/result/markdown", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"markdown":     "# Structural Report\n\nFootings are adequate.",
			"job_metadata": map[string]int{"job_pages": 12},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestCloudParseSuccessAfterPolling(t *testing.T) {
	srv, polls := newCloudParseServer(t, 3, "SUCCESS")

	s := NewCloudParseStrategy(CloudParseOptions{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Sleep:   noSleep,
	})

	parsed, err := s.Parse(context.Background(), []byte("%PDF-1.7"), "report.pdf")
	require.NoError(t, err)

	assert.Equal(t, "cloudparse", parsed.Metadata.Parser)
	assert.Equal(t, 12, parsed.Metadata.Pages)
	assert.Equal(t, "Structural Report", parsed.Metadata.Title)
	assert.Contains(t, parsed.Content, "Footings are adequate.")
	assert.Equal(t, 3, *polls)
}

func TestCloudParseJobError(t *testing.T) {
	srv, _ := newCloudParseServer(t, 1, "ERROR")

	s := NewCloudParseStrategy(CloudParseOptions{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Sleep:   noSleep,
	})

	_, err := s.Parse(context.Background(), []byte("%PDF-1.7"), "report.pdf")
	require.Error(t, err)

	var jobErr *docrag.ParseJobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "job-42", jobErr.JobID)
	assert.Equal(t, "ocr backend crashed", jobErr.Message)
}

func TestCloudParseTimeout(t *testing.T) {
	// Job never leaves PENDING.
	srv, polls := newCloudParseServer(t, 1000, "SUCCESS")

	s := NewCloudParseStrategy(CloudParseOptions{
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		MaxPolls: 5,
		Sleep:    noSleep,
	})

	_, err := s.Parse(context.Background(), []byte("%PDF-1.7"), "report.pdf")
	require.ErrorIs(t, err, docrag.ErrParseTimeout)
	assert.Equal(t, 5, *polls)
}

func TestCloudParseCancelledDuringSleep(t *testing.T) {
	srv, _ := newCloudParseServer(t, 1000, "SUCCESS")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewCloudParseStrategy(CloudParseOptions{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		// Real context-aware sleep: the cancelled context returns at once.
	})

	_, err := s.Parse(ctx, []byte("%PDF-1.7"), "report.pdf")
	require.Error(t, err)
}
