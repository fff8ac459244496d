// Package fetcher defines the page and resource fetching boundary.
// Implement the Fetcher interface to plug in a different renderer; the
// resolution engine only depends on Content, never on how it was produced.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type (e.g., "static", "dynamic").
	Type() string
}

// Options controls fetching behavior.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	WaitDuration time.Duration // settle time after load (dynamic fetchers)
	Headers      map[string]string

	// Raw skips HTML parsing; used for scripts, datafiles and API calls.
	Raw bool

	// Screenshot asks rendering fetchers to capture the viewport.
	Screenshot bool
}

// Content represents fetched page data.
type Content struct {
	URL         string
	HTML        string
	Body        []byte
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time

	// Populated by rendering fetchers only.
	Runtime    *Runtime
	Requests   []NetworkRequest
	Screenshot []byte
}

// NetworkRequest is an outgoing request observed while rendering a page.
type NetworkRequest struct {
	URL    string `json:"url" yaml:"url"`
	Method string `json:"method" yaml:"method"`
}

// ErrTimeout indicates the fetch exceeded its time budget.
// Check with errors.Is(err, fetcher.ErrTimeout).
var ErrTimeout = errors.New("fetch timeout")

// StatusError is returned when the server answered with a non-success status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// StatusCode extracts the HTTP status from a StatusError chain, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
