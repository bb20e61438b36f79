package docrag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParseTimeout is returned when a cloud parse job exceeds its polling
// budget.
var ErrParseTimeout = errors.New("docrag: parse job timed out")

// ErrRerankerUnavailable is returned when every configured rerank provider
// failed. The retriever propagates it unless the caller opted into the
// degraded similarity-only order.
var ErrRerankerUnavailable = errors.New("docrag: all rerank providers failed")

// ParseError is returned when every parsing strategy was exhausted. It
// names the file and the strategies attempted.
type ParseError struct {
	Filename string
	Attempts []string
	Errs     []error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("docrag: failed to parse %q after attempting [%s]",
		e.Filename, strings.Join(e.Attempts, ", "))
}

func (e *ParseError) Unwrap() []error {
	return e.Errs
}

// ParseJobError is returned when a cloud parse job reports a terminal
// error state.
type ParseJobError struct {
	Provider string
	JobID    string
	Message  string
}

func (e *ParseJobError) Error() string {
	return fmt.Sprintf("docrag: %s parse job %s failed: %s", e.Provider, e.JobID, e.Message)
}

// EmbeddingError wraps a failed embedding provider call. There is no
// fallback provider: the affected chunks stay un-embedded until retried.
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("docrag: embedding via %s failed: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
