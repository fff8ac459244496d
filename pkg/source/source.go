// Package source retrieves raw configuration payloads for a project identifier.
//
// Each Source is an I/O boundary with its own timeout. Sources never panic past
// Fetch and never return anything but a *FetchError on failure, so the caller
// can record the failure and move on to the next candidate.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jmylchreest/optiscope/pkg/fetcher"
	"github.com/jmylchreest/optiscope/pkg/schema"
)

// Error types for distinguishing failure reasons.
// Check with errors.Is(err, source.ErrUnauthorized).
var (
	// ErrSkipped means the source does not apply to the request. It is not recorded.
	ErrSkipped = errors.New("source not applicable")
	// ErrUnauthorized means the credential was rejected (401/403).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTimeout means the source exceeded its time budget.
	ErrTimeout = fetcher.ErrTimeout
	// ErrEmptyBody means the endpoint answered 2xx with nothing in it.
	ErrEmptyBody = errors.New("empty response body")
)

// Request carries everything a source may need for one identifier.
type Request struct {
	Identifier string
	Runtime    *fetcher.Runtime
	Credential string
}

// Payload is the raw, unparsed output of a source.
type Payload struct {
	Kind       schema.SourceKind
	Identifier string
	URL        string

	// Body holds single-document payloads (snippet, datafile).
	Body []byte

	// Parts holds multi-document payloads keyed by name: REST listings
	// ("experiments", "audiences", ...) or runtime namespaces ("state", "data", "visitor").
	Parts map[string][]byte

	// PartErrors are failures of individual parts that did not fail the whole payload.
	PartErrors []*FetchError

	// NamespaceErrors are capture errors reported by the browser probe, keyed like Parts.
	NamespaceErrors map[string]string
}

// Source is one retrieval strategy.
type Source interface {
	Kind() schema.SourceKind
	Fetch(ctx context.Context, req Request) (Payload, error)
}

// FetchError describes a failed retrieval.
type FetchError struct {
	Source     schema.SourceKind
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.URL, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetch runs src and converts a panic into a FetchError.
func Fetch(ctx context.Context, src Source, req Request) (p Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = Payload{}
			err = &FetchError{Source: src.Kind(), Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return src.Fetch(ctx, req)
}

func skipped(kind schema.SourceKind, reason string) *FetchError {
	return &FetchError{Source: kind, Reason: reason, Err: ErrSkipped}
}

// classify turns a fetcher error into a FetchError with the matching sentinel.
func classify(kind schema.SourceKind, target string, err error) *FetchError {
	fe := &FetchError{Source: kind, URL: target, StatusCode: fetcher.StatusCode(err), Err: err}
	switch {
	case fe.StatusCode == http.StatusUnauthorized || fe.StatusCode == http.StatusForbidden:
		fe.Reason = fmt.Sprintf("unauthorized (status %d)", fe.StatusCode)
		fe.Err = fmt.Errorf("%w: %w", ErrUnauthorized, err)
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		fe.Reason = "timeout"
		if !errors.Is(err, ErrTimeout) {
			fe.Err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
	case fe.StatusCode != 0:
		fe.Reason = fmt.Sprintf("status %d", fe.StatusCode)
	default:
		fe.Reason = err.Error()
	}
	return fe
}

func emptyBody(kind schema.SourceKind, target string) *FetchError {
	return &FetchError{Source: kind, URL: target, Reason: "empty body", Err: ErrEmptyBody}
}

// expand substitutes the identifier into a URL template's {id} placeholder.
func expand(template, identifier string) string {
	return strings.ReplaceAll(template, "{id}", url.PathEscape(identifier))
}
