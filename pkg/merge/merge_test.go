package merge

import (
	"reflect"
	"testing"

	"github.com/jmylchreest/optiscope/pkg/schema"
)

func ptr(v float64) *float64 { return &v }

func sampleFragment() schema.Fragment {
	return schema.Fragment{
		Identifier: "42",
		Revision:   "7",
		Experiments: []schema.Experiment{
			{
				ID:     "1",
				Name:   "Test",
				Status: schema.StatusRunning,
				Variations: []schema.Variation{
					{ID: "10", Name: "Ctrl", Weight: ptr(5000)},
					{ID: "11", Name: "Var", Weight: ptr(5000)},
				},
			},
		},
		Audiences: []schema.Audience{{ID: "a"}},
		Pages:     []schema.Page{{ID: "p", Name: "Home"}},
		Events:    []schema.Event{{ID: "e"}},
		Features:  []schema.Feature{{ID: "f", Key: "flag"}},
	}
}

// --- NormalizePercent Tests ---

func TestNormalizePercent(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{5000, 50},
		{50, 50},
		{100, 100},
		{10000, 100},
		{0, 0},
	}
	for _, tt := range tests {
		if got := NormalizePercent(tt.in); got != tt.want {
			t.Errorf("NormalizePercent(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// --- Merge Tests ---

func TestMerge_Idempotent(t *testing.T) {
	once := schema.NewConfiguration()
	Merge(once, sampleFragment(), schema.SourceSnippet)

	twice := schema.NewConfiguration()
	Merge(twice, sampleFragment(), schema.SourceSnippet)
	Merge(twice, sampleFragment(), schema.SourceSnippet)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merging the same fragment twice changed the result:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestMerge_FillNeverOverwrites(t *testing.T) {
	cfg := schema.NewConfiguration()
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{ID: "1", Name: "A"}}}, schema.SourceRuntime)
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{
		ID:     "1",
		Name:   "B",
		Status: schema.StatusPaused,
	}}}, schema.SourceSnippet)

	if len(cfg.Experiments) != 1 {
		t.Fatalf("expected 1 experiment, got %d", len(cfg.Experiments))
	}
	e := cfg.Experiments[0]
	if e.Name != "A" {
		t.Errorf("expected first name to win, got %q", e.Name)
	}
	if e.Status != schema.StatusPaused {
		t.Errorf("expected empty status to be filled, got %q", e.Status)
	}
	want := []schema.SourceKind{schema.SourceRuntime, schema.SourceSnippet}
	if !reflect.DeepEqual(e.Sources, want) {
		t.Errorf("expected provenance %v, got %v", want, e.Sources)
	}
}

func TestMerge_UnknownStatusIsFillable(t *testing.T) {
	cfg := schema.NewConfiguration()
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{ID: "1", Status: schema.StatusUnknown}}}, schema.SourceSnippet)
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{ID: "1", Status: schema.StatusRunning, RawStatus: "running"}}}, schema.SourceDatafile)

	if cfg.Experiments[0].Status != schema.StatusRunning {
		t.Errorf("expected Unknown to be replaced, got %q", cfg.Experiments[0].Status)
	}
}

func TestMerge_RawStatusFollowsStatus(t *testing.T) {
	cfg := schema.NewConfiguration()
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{ID: "1", Status: schema.StatusUnknown, RawStatus: "draft"}}}, schema.SourceSnippet)
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{ID: "1", Status: schema.StatusRunning, RawStatus: "running"}}}, schema.SourceDatafile)
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{ID: "1", Status: schema.StatusPaused, RawStatus: "paused"}}}, schema.SourceRESTAPI)

	e := cfg.Experiments[0]
	if e.Status != schema.StatusRunning || e.RawStatus != "running" {
		t.Errorf("expected running / running, got %q / %q", e.Status, e.RawStatus)
	}
}

func TestMerge_VariationsFilledAndAppended(t *testing.T) {
	cfg := schema.NewConfiguration()
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{
		ID:         "1",
		Variations: []schema.Variation{{ID: "10"}},
	}}}, schema.SourceRuntime)
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{
		ID: "1",
		Variations: []schema.Variation{
			{ID: "10", Name: "Control", Weight: ptr(2500)},
			{ID: "11", Name: "B"},
		},
	}}}, schema.SourceRESTAPI)

	vs := cfg.Experiments[0].Variations
	if len(vs) != 2 {
		t.Fatalf("expected 2 variations, got %d", len(vs))
	}
	if vs[0].Name != "Control" || vs[0].Weight == nil || *vs[0].Weight != 25 {
		t.Errorf("expected variation 10 filled with normalized weight, got %+v", vs[0])
	}
}

func TestMerge_DuplicateVariationIDsCollapsed(t *testing.T) {
	cfg := schema.NewConfiguration()
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{
		ID:         "1",
		Variations: []schema.Variation{{ID: "10"}, {ID: "10", Name: "dup"}},
	}}}, schema.SourceSnippet)

	vs := cfg.Experiments[0].Variations
	if len(vs) != 1 || vs[0].Name != "dup" {
		t.Errorf("expected one variation with filled name, got %+v", vs)
	}
}

func TestMerge_NormalizesPercentages(t *testing.T) {
	cfg := schema.NewConfiguration()
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{
		ID:              "1",
		TrafficPercent:  ptr(10000),
		HoldbackPercent: ptr(5),
	}}}, schema.SourceRESTAPI)

	e := cfg.Experiments[0]
	if *e.TrafficPercent != 100 || *e.HoldbackPercent != 5 {
		t.Errorf("unexpected percentages %v / %v", *e.TrafficPercent, *e.HoldbackPercent)
	}
}

func TestMerge_ScalarsAndIdentifiers(t *testing.T) {
	cfg := schema.NewConfiguration()
	Merge(cfg, schema.Fragment{Identifier: "1", AccountID: "acc"}, schema.SourceRuntime)
	Merge(cfg, schema.Fragment{Identifier: "1", AccountID: "other", Revision: "9"}, schema.SourceSnippet)
	Merge(cfg, schema.Fragment{Identifier: "2"}, schema.SourceSnippet)

	if cfg.AccountID != "acc" || cfg.Revision != "9" {
		t.Errorf("unexpected scalars %q %q", cfg.AccountID, cfg.Revision)
	}
	if !reflect.DeepEqual(cfg.Identifiers, []string{"1", "2"}) {
		t.Errorf("unexpected identifiers %v", cfg.Identifiers)
	}
}

func TestMerge_OtherCollectionsDedup(t *testing.T) {
	cfg := schema.NewConfiguration()
	Merge(cfg, sampleFragment(), schema.SourceSnippet)
	Merge(cfg, schema.Fragment{
		Pages:    []schema.Page{{ID: "p", Name: "Other", APIName: "home"}, {ID: "q"}},
		Features: []schema.Feature{{ID: "f", Name: "Flag"}},
	}, schema.SourceDatafile)

	if len(cfg.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(cfg.Pages))
	}
	if cfg.Pages[0].Name != "Home" || cfg.Pages[0].APIName != "home" {
		t.Errorf("expected page filled not overwritten, got %+v", cfg.Pages[0])
	}
	if cfg.Features[0].Name != "Flag" || cfg.Features[0].Key != "flag" {
		t.Errorf("unexpected feature %+v", cfg.Features[0])
	}
}

func TestMerge_NilConfiguration(t *testing.T) {
	Merge(nil, sampleFragment(), schema.SourceSnippet)
}

// --- ApplyAssignments Tests ---

func TestApplyAssignments(t *testing.T) {
	cfg := schema.NewConfiguration()
	Merge(cfg, sampleFragment(), schema.SourceRuntime)
	Merge(cfg, schema.Fragment{Experiments: []schema.Experiment{{ID: "2"}}}, schema.SourceRuntime)

	state := schema.NewAssignmentState()
	state.ActiveExperimentIDs["1"] = true
	state.VariationMap["1"] = "10"

	ApplyAssignments(cfg, state)

	e := cfg.Experiment("1")
	if !e.IsActive || e.CurrentVariationID != "10" {
		t.Errorf("expected experiment 1 active on variation 10, got %+v", e)
	}
	if !e.Variation("10").IsCurrent || e.Variation("11").IsCurrent {
		t.Errorf("expected only variation 10 current, got %+v", e.Variations)
	}
	if *e.Variation("10").Weight != 50 || *e.Variation("11").Weight != 50 {
		t.Errorf("expected weights normalized to 50, got %+v", e.Variations)
	}
	if other := cfg.Experiment("2"); other.IsActive || other.CurrentVariationID != "" {
		t.Errorf("expected experiment 2 inactive, got %+v", other)
	}
}

func TestApplyAssignments_NilState(t *testing.T) {
	cfg := schema.NewConfiguration()
	Merge(cfg, sampleFragment(), schema.SourceSnippet)

	ApplyAssignments(cfg, nil)

	if cfg.Experiments[0].IsActive {
		t.Error("nil state should leave flags unset")
	}
}
