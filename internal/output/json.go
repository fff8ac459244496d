package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/jmylchreest/optiscope/pkg/inspector"
)

// JSONWriter buffers reports and writes them as one JSON document.
type JSONWriter struct {
	w       *bufio.Writer
	pretty  bool
	indent  string
	reports []*inspector.Report
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

// Write buffers a report.
func (w *JSONWriter) Write(r *inspector.Report) error {
	w.reports = append(w.reports, r)
	return nil
}

// Flush writes a single report as an object, several as an array.
// Nothing is written when no report was buffered.
func (w *JSONWriter) Flush() error {
	if len(w.reports) == 0 {
		return w.w.Flush()
	}

	var v any = w.reports
	if len(w.reports) == 1 {
		v = w.reports[0]
	}

	var output []byte
	var err error
	if w.pretty {
		output, err = json.MarshalIndent(v, "", w.indent)
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	w.reports = nil

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter writes one report per line as soon as it arrives.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Write writes a single report as a JSON line.
func (w *JSONLWriter) Write(r *inspector.Report) error {
	output, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
