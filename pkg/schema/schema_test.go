package schema

import (
	"strings"
	"testing"
)

func ptr(v float64) *float64 { return &v }

// --- NormalizeStatus Tests ---

func TestNormalizeStatus_CaseInsensitive(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"Running", StatusRunning},
		{"running", StatusRunning},
		{" RUNNING ", StatusRunning},
		{"paused", StatusPaused},
		{"Active", StatusActive},
		{"not_started", StatusUnknown},
		{"", StatusUnknown},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.raw); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestStatus_Live(t *testing.T) {
	if !StatusRunning.Live() || !StatusActive.Live() {
		t.Error("Running and Active should be live")
	}
	if StatusPaused.Live() || StatusUnknown.Live() {
		t.Error("Paused and Unknown should not be live")
	}
}

// --- Configuration Tests ---

func TestNewConfiguration_NonNilCollections(t *testing.T) {
	c := NewConfiguration()

	if c.Experiments == nil || c.Audiences == nil || c.Pages == nil || c.Events == nil || c.Features == nil {
		t.Error("expected all collections to be non-nil")
	}
	if c.LoadedVia != LoadedViaUnknown {
		t.Errorf("expected LoadedVia unknown, got %q", c.LoadedVia)
	}
	if !c.Empty() {
		t.Error("new configuration should be empty")
	}
}

func TestConfiguration_ExperimentLookup(t *testing.T) {
	c := NewConfiguration()
	c.Experiments = append(c.Experiments, Experiment{ID: "1", Name: "A"}, Experiment{ID: "2", Name: "B"})

	e := c.Experiment("2")
	if e == nil || e.Name != "B" {
		t.Fatalf("expected experiment 2, got %+v", e)
	}

	e.Name = "changed"
	if c.Experiments[1].Name != "changed" {
		t.Error("Experiment() should return a pointer into the collection")
	}

	if c.Experiment("missing") != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestConfiguration_HasErrorKind(t *testing.T) {
	c := NewConfiguration()
	c.AddError("rest_api", ErrorKindUnauthorized, "403")

	if !c.HasErrorKind(ErrorKindUnauthorized) {
		t.Error("expected unauthorized error to be found")
	}
	if c.HasErrorKind(ErrorKindParse) {
		t.Error("did not expect parse error")
	}
}

// --- Validate Tests ---

func TestValidate_ValidConfiguration(t *testing.T) {
	c := NewConfiguration()
	c.Experiments = append(c.Experiments, Experiment{
		ID:             "1",
		TrafficPercent: ptr(50),
		Variations:     []Variation{{ID: "10", Weight: ptr(100)}},
	})
	c.Audiences = append(c.Audiences, Audience{ID: "a1"})

	if errs := Validate(c); len(errs) != 0 {
		t.Errorf("expected no validation errors, got %v", errs)
	}
}

func TestValidate_OutOfRangePercent(t *testing.T) {
	c := NewConfiguration()
	c.Experiments = append(c.Experiments, Experiment{
		ID:             "1",
		TrafficPercent: ptr(250),
	})

	errs := Validate(c)
	if len(errs) != 1 {
		t.Fatalf("expected 1 validation error, got %d: %v", len(errs), errs)
	}
	if errs[0].Kind != ErrorKindValidation {
		t.Errorf("expected validation kind, got %q", errs[0].Kind)
	}
	if !strings.Contains(errs[0].Message, "at most 100") {
		t.Errorf("unexpected message: %s", errs[0].Message)
	}
}

func TestValidate_MissingVariationID(t *testing.T) {
	c := NewConfiguration()
	c.Experiments = append(c.Experiments, Experiment{
		ID:         "1",
		Variations: []Variation{{Name: "no id"}},
	})

	errs := Validate(c)
	if len(errs) != 1 {
		t.Fatalf("expected 1 validation error, got %d: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Message, "is required") {
		t.Errorf("unexpected message: %s", errs[0].Message)
	}
}

func TestValidate_NilConfiguration(t *testing.T) {
	if errs := Validate(nil); errs != nil {
		t.Errorf("expected nil for nil configuration, got %v", errs)
	}
}

// --- Fragment Tests ---

func TestFragment_IDs(t *testing.T) {
	f := Fragment{
		Experiments: []Experiment{{ID: "1"}},
		Pages:       []Page{{ID: "p"}},
	}

	ids := f.IDs()
	if !ids["experiments"]["1"] || !ids["pages"]["p"] {
		t.Errorf("unexpected ids: %v", ids)
	}
	if f.Empty() {
		t.Error("fragment with entities should not be empty")
	}
	if !(Fragment{Identifier: "x"}).Empty() {
		t.Error("fragment with only scalars should be empty")
	}
}
