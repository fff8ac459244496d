// Package merge folds parser fragments into a single Configuration.
//
// Entities are keyed by id. A new id is appended; a known id only has its
// empty fields filled, so the first source to provide a value keeps it.
// Provenance is the union of every source that contributed an entity.
package merge

import (
	"github.com/jmylchreest/optiscope/pkg/schema"
)

// NormalizePercent maps a weight or traffic share onto 0-100. Values above
// 100 are taken to be basis points and divided by 100.
func NormalizePercent(v float64) float64 {
	if v > 100 {
		return v / 100
	}
	return v
}

func normalized(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := NormalizePercent(*p)
	return &v
}

// Merge folds frag from src into cfg.
func Merge(cfg *schema.Configuration, frag schema.Fragment, src schema.SourceKind) {
	if cfg == nil {
		return
	}

	if frag.Identifier != "" && !contains(cfg.Identifiers, frag.Identifier) {
		cfg.Identifiers = append(cfg.Identifiers, frag.Identifier)
	}
	fillString(&cfg.AccountID, frag.AccountID)
	fillString(&cfg.Revision, frag.Revision)
	if cfg.Visitor == nil && frag.Visitor != nil {
		v := *frag.Visitor
		cfg.Visitor = &v
	}

	for _, in := range frag.Experiments {
		in = normalizeExperiment(in)
		if existing := cfg.Experiment(in.ID); existing != nil {
			fillExperiment(existing, in)
			existing.Sources = addSource(existing.Sources, src)
			continue
		}
		in.Sources = []schema.SourceKind{src}
		cfg.Experiments = append(cfg.Experiments, in)
	}

	for _, in := range frag.Audiences {
		if i := indexOf(len(cfg.Audiences), func(i int) bool { return cfg.Audiences[i].ID == in.ID }); i >= 0 {
			a := &cfg.Audiences[i]
			fillString(&a.Name, in.Name)
			if a.Conditions == nil {
				a.Conditions = in.Conditions
			}
			continue
		}
		cfg.Audiences = append(cfg.Audiences, in)
	}

	for _, in := range frag.Pages {
		if i := indexOf(len(cfg.Pages), func(i int) bool { return cfg.Pages[i].ID == in.ID }); i >= 0 {
			p := &cfg.Pages[i]
			fillString(&p.Name, in.Name)
			fillString(&p.APIName, in.APIName)
			fillString(&p.Category, in.Category)
			fillString(&p.EditURL, in.EditURL)
			continue
		}
		cfg.Pages = append(cfg.Pages, in)
	}

	for _, in := range frag.Events {
		if i := indexOf(len(cfg.Events), func(i int) bool { return cfg.Events[i].ID == in.ID }); i >= 0 {
			e := &cfg.Events[i]
			fillString(&e.Name, in.Name)
			fillString(&e.Key, in.Key)
			fillString(&e.APIName, in.APIName)
			fillString(&e.Category, in.Category)
			fillString(&e.EventType, in.EventType)
			continue
		}
		cfg.Events = append(cfg.Events, in)
	}

	for _, in := range frag.Features {
		if i := indexOf(len(cfg.Features), func(i int) bool { return cfg.Features[i].ID == in.ID }); i >= 0 {
			f := &cfg.Features[i]
			fillString(&f.Key, in.Key)
			fillString(&f.Name, in.Name)
			if len(f.ExperimentIDs) == 0 {
				f.ExperimentIDs = in.ExperimentIDs
			}
			if len(f.Variables) == 0 {
				f.Variables = in.Variables
			}
			continue
		}
		cfg.Features = append(cfg.Features, in)
	}
}

// normalizeExperiment returns a copy with percentages normalized and
// duplicate variation ids collapsed.
func normalizeExperiment(e schema.Experiment) schema.Experiment {
	e.TrafficPercent = normalized(e.TrafficPercent)
	e.HoldbackPercent = normalized(e.HoldbackPercent)

	variations := make([]schema.Variation, 0, len(e.Variations))
	for _, v := range e.Variations {
		v.Weight = normalized(v.Weight)
		if i := indexOf(len(variations), func(i int) bool { return variations[i].ID == v.ID }); i >= 0 {
			fillVariation(&variations[i], v)
			continue
		}
		variations = append(variations, v)
	}
	e.Variations = variations
	e.Sources = nil
	return e
}

func fillExperiment(dst *schema.Experiment, src schema.Experiment) {
	fillString(&dst.Name, src.Name)
	fillString(&dst.Key, src.Key)
	fillString(&dst.Description, src.Description)
	// RawStatus travels with Status so the pair always agrees.
	if (dst.Status == "" || dst.Status == schema.StatusUnknown) && src.Status != "" && src.Status != schema.StatusUnknown {
		dst.Status = src.Status
		dst.RawStatus = src.RawStatus
	} else if dst.Status == src.Status {
		fillString(&dst.RawStatus, src.RawStatus)
	}
	if dst.Kind == "" {
		dst.Kind = src.Kind
	}
	if dst.TrafficPercent == nil {
		dst.TrafficPercent = src.TrafficPercent
	}
	if dst.HoldbackPercent == nil {
		dst.HoldbackPercent = src.HoldbackPercent
	}
	if len(dst.AudienceIDs) == 0 {
		dst.AudienceIDs = src.AudienceIDs
	}
	if len(dst.Metrics) == 0 {
		dst.Metrics = src.Metrics
	}
	if len(dst.Variables) == 0 {
		dst.Variables = src.Variables
	}
	if dst.URLTargeting == nil {
		dst.URLTargeting = src.URLTargeting
	}
	for _, v := range src.Variations {
		if existing := dst.Variation(v.ID); existing != nil {
			fillVariation(existing, v)
			continue
		}
		dst.Variations = append(dst.Variations, v)
	}
}

func fillVariation(dst *schema.Variation, src schema.Variation) {
	fillString(&dst.Name, src.Name)
	fillString(&dst.Key, src.Key)
	if dst.Weight == nil {
		dst.Weight = src.Weight
	}
	if !dst.IsControl {
		dst.IsControl = src.IsControl
	}
}

// ApplyAssignments derives IsActive, CurrentVariationID and IsCurrent from
// the live runtime state. A nil state leaves cfg untouched.
func ApplyAssignments(cfg *schema.Configuration, state *schema.AssignmentState) {
	if cfg == nil || state == nil {
		return
	}
	for i := range cfg.Experiments {
		e := &cfg.Experiments[i]
		e.IsActive = state.ActiveExperimentIDs[e.ID]
		e.CurrentVariationID = state.VariationMap[e.ID]
		for j := range e.Variations {
			e.Variations[j].IsCurrent = e.CurrentVariationID != "" && e.Variations[j].ID == e.CurrentVariationID
		}
	}
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func addSource(sources []schema.SourceKind, src schema.SourceKind) []schema.SourceKind {
	for _, s := range sources {
		if s == src {
			return sources
		}
	}
	return append(sources, src)
}

func indexOf(n int, match func(i int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
