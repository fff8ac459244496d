// Package parser turns raw source payloads into schema Fragments.
//
// Structured payloads (runtime namespaces, datafiles, REST listings) are read
// with gjson. Script text goes through a chain of heuristic strategies. No
// parser panics past its boundary and no parser executes payload text.
package parser

import (
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by ParseError when a payload is not valid JSON.
var ErrMalformed = errors.New("malformed payload")

// ParseError means a structured payload could not be read at all.
// The caller can recover by running the heuristic text parser over it.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractionError means one field, namespace or strategy failed. Everything
// else extracted from the same payload is still valid.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// guard runs fn and converts a panic into an ExtractionError for source.
func guard(source string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExtractionError{Source: source, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn()
}
