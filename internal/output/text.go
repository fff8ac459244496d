package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/optiscope/pkg/inspector"
	"github.com/jmylchreest/optiscope/pkg/platform"
	"github.com/jmylchreest/optiscope/pkg/schema"
)

// TextWriter writes a human-readable summary of each report.
type TextWriter struct {
	w       *bufio.Writer
	written int
}

// NewTextWriter creates a text summary writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write prints one report.
func (t *TextWriter) Write(r *inspector.Report) error {
	if t.written > 0 {
		t.line("")
	}
	t.written++

	if r.URL != "" {
		t.line("URL:      %s", r.URL)
	}
	if r.Error != nil {
		t.line("Error:    %v", r.Error)
		return t.w.Flush()
	}
	if r.Title != "" {
		t.line("Title:    %s", r.Title)
	}
	if !r.FetchedAt.IsZero() {
		t.line("Fetched:  %s", humanize.Time(r.FetchedAt))
	}

	t.optimizely(r.Optimizely)
	t.shopify(r.Shopify)

	if r.GA4.Detected {
		t.line("GA4:      measurement %s | containers %s",
			orNone(r.GA4.MeasurementIDs), orNone(r.GA4.GTMContainers))
	} else {
		t.line("GA4:      not detected")
	}
	if n := len(r.NetworkRequests); n > 0 {
		t.line("Requests: %s analytics request(s)", humanize.Comma(int64(n)))
	}
	if r.Screenshot != "" {
		t.line("Screenshot: %s data URL", humanize.Bytes(uint64(len(r.Screenshot))))
	}
	return t.w.Flush()
}

func (t *TextWriter) optimizely(cfg *schema.Configuration) {
	if cfg == nil {
		t.line("Optimizely: not detected")
		return
	}

	project := cfg.PrimaryIdentifier
	if project == "" {
		project = "(unknown project)"
	}
	header := fmt.Sprintf("Optimizely: %s via %s", project, cfg.LoadedVia)
	if cfg.Source != "" {
		header += fmt.Sprintf(", from %s", cfg.Source)
	}
	if cfg.IsKnownProject {
		header += " [known project]"
	}
	t.line("%s", header)

	t.line("  Experiments (%d):", len(cfg.Experiments))
	for _, e := range cfg.Experiments {
		line := fmt.Sprintf("    - %s %s [%s]", e.ID, e.Name, e.Status)
		if e.TrafficPercent != nil {
			line += fmt.Sprintf(" traffic %s%%", humanize.Ftoa(*e.TrafficPercent))
		}
		if e.IsActive {
			line += " active"
		}
		t.line("%s", line)
		for _, v := range e.Variations {
			vl := fmt.Sprintf("        * %s %s", v.ID, v.Name)
			if v.Weight != nil {
				vl += fmt.Sprintf(" %s%%", humanize.Ftoa(*v.Weight))
			}
			if v.IsCurrent {
				vl += " (current)"
			}
			t.line("%s", vl)
		}
	}
	t.line("  Audiences: %d  Pages: %d  Events: %d  Features: %d",
		len(cfg.Audiences), len(cfg.Pages), len(cfg.Events), len(cfg.Features))
	if len(cfg.Errors) > 0 {
		t.line("  Errors (%d):", len(cfg.Errors))
		for _, e := range cfg.Errors {
			t.line("    - [%s] %s: %s", e.Kind, e.Source, e.Message)
		}
	}
}

func (t *TextWriter) shopify(s *platform.Shopify) {
	if s == nil {
		return
	}
	parts := []string{}
	if s.Shop != nil {
		parts = append(parts, s.Shop.Name)
		if s.Shop.Currency != "" {
			parts = append(parts, s.Shop.Currency)
		}
	}
	if s.Theme != nil && s.Theme.Name != "" {
		parts = append(parts, "theme "+s.Theme.Name)
	}
	if s.Page != nil && s.Page.Type != "" {
		parts = append(parts, "page "+s.Page.Type)
	}
	if s.Customer != nil && s.Customer.LoggedIn {
		parts = append(parts, "customer logged in")
	}
	t.line("Shopify:  %s", orNone(parts))
}

func (t *TextWriter) line(format string, args ...any) {
	_, _ = fmt.Fprintf(t.w, format+"\n", args...)
}

// Flush flushes the buffer.
func (t *TextWriter) Flush() error {
	return t.w.Flush()
}

// Close flushes the writer.
func (t *TextWriter) Close() error {
	return t.Flush()
}

func orNone(list []string) string {
	if len(list) == 0 {
		return "none"
	}
	return strings.Join(list, ", ")
}
