// Package output writes inspection reports in the CLI's output formats.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jmylchreest/optiscope/pkg/inspector"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatText  Format = "text"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatJSONL, FormatYAML, FormatText}

// ParseFormat maps a flag value onto a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Writer serializes reports.
type Writer interface {
	// Write outputs or buffers a single report.
	Write(r *inspector.Report) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	compact bool
}

// WithCompact disables indentation in JSON output.
func WithCompact(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.compact = enabled
	}
}

// NewWriter creates a writer for the given format. JSON is indented with
// two spaces unless WithCompact is set.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	var cfg writerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	switch format {
	case FormatJSON:
		return NewJSONWriter(w, !cfg.compact, "  "), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatText:
		return NewTextWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
