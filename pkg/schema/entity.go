package schema

import "strings"

// Status is the normalized lifecycle state of an experiment.
type Status string

const (
	StatusRunning Status = "Running"
	StatusPaused  Status = "Paused"
	StatusActive  Status = "Active"
	StatusUnknown Status = "Unknown"
)

// NormalizeStatus maps a raw source status onto Status, ignoring case.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "running":
		return StatusRunning
	case "paused":
		return StatusPaused
	case "active":
		return StatusActive
	default:
		return StatusUnknown
	}
}

// Live reports whether the status means the experiment can currently bucket visitors.
func (s Status) Live() bool {
	return s == StatusRunning || s == StatusActive
}

// Kind distinguishes the experiment flavours the platform exposes.
type Kind string

const (
	KindABTest      Kind = "ab_test"
	KindCampaign    Kind = "campaign"
	KindFeatureFlag Kind = "feature_flag"
)

// Experiment is a single test, personalization campaign or feature flag rule.
type Experiment struct {
	ID                 string       `json:"id" yaml:"id" validate:"required"`
	Name               string       `json:"name,omitempty" yaml:"name,omitempty"`
	Key                string       `json:"key,omitempty" yaml:"key,omitempty"`
	Status             Status       `json:"status,omitempty" yaml:"status,omitempty"`
	RawStatus          string       `json:"rawStatus,omitempty" yaml:"rawStatus,omitempty"`
	Kind               Kind         `json:"type,omitempty" yaml:"type,omitempty"`
	Description        string       `json:"description,omitempty" yaml:"description,omitempty"`
	TrafficPercent     *float64     `json:"trafficPercent,omitempty" yaml:"trafficPercent,omitempty" validate:"omitempty,min=0,max=100"`
	HoldbackPercent    *float64     `json:"holdbackPercent,omitempty" yaml:"holdbackPercent,omitempty" validate:"omitempty,min=0,max=100"`
	AudienceIDs        []string     `json:"audienceIds,omitempty" yaml:"audienceIds,omitempty"`
	Variations         []Variation  `json:"variations" yaml:"variations" validate:"dive"`
	Metrics            []Metric     `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	URLTargeting       any          `json:"urlTargeting,omitempty" yaml:"urlTargeting,omitempty"`
	Variables          []string     `json:"variables,omitempty" yaml:"variables,omitempty"`
	IsActive           bool         `json:"isActive" yaml:"isActive"`
	CurrentVariationID string       `json:"currentVariation,omitempty" yaml:"currentVariation,omitempty"`
	Sources            []SourceKind `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// Variation returns the variation with the given id, or nil.
func (e *Experiment) Variation(id string) *Variation {
	for i := range e.Variations {
		if e.Variations[i].ID == id {
			return &e.Variations[i]
		}
	}
	return nil
}

// Variation is one arm of an experiment.
type Variation struct {
	ID        string   `json:"id" yaml:"id" validate:"required"`
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Key       string   `json:"key,omitempty" yaml:"key,omitempty"`
	Weight    *float64 `json:"weight,omitempty" yaml:"weight,omitempty" validate:"omitempty,min=0,max=100"`
	IsControl bool     `json:"isControl" yaml:"isControl"`
	IsCurrent bool     `json:"isCurrent" yaml:"isCurrent"`
}

// Metric is a success metric attached to an experiment.
type Metric struct {
	EventID          string `json:"eventId,omitempty" yaml:"eventId,omitempty"`
	Aggregator       string `json:"aggregator,omitempty" yaml:"aggregator,omitempty"`
	Field            string `json:"field,omitempty" yaml:"field,omitempty"`
	Scope            string `json:"scope,omitempty" yaml:"scope,omitempty"`
	WinningDirection string `json:"winningDirection,omitempty" yaml:"winningDirection,omitempty"`
}

// Audience is a targeting segment.
type Audience struct {
	ID         string `json:"id" yaml:"id" validate:"required"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Conditions any    `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Page is a URL-targeted page definition.
type Page struct {
	ID       string `json:"id" yaml:"id" validate:"required"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	APIName  string `json:"apiName,omitempty" yaml:"apiName,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	EditURL  string `json:"editUrl,omitempty" yaml:"editUrl,omitempty"`
}

// Event is a tracked conversion event.
type Event struct {
	ID        string `json:"id" yaml:"id" validate:"required"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Key       string `json:"key,omitempty" yaml:"key,omitempty"`
	APIName   string `json:"apiName,omitempty" yaml:"apiName,omitempty"`
	Category  string `json:"category,omitempty" yaml:"category,omitempty"`
	EventType string `json:"eventType,omitempty" yaml:"eventType,omitempty"`
}

// Feature is a feature flag definition from a datafile.
type Feature struct {
	ID            string   `json:"id" yaml:"id" validate:"required"`
	Key           string   `json:"key,omitempty" yaml:"key,omitempty"`
	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
	ExperimentIDs []string `json:"experimentIds,omitempty" yaml:"experimentIds,omitempty"`
	Variables     []string `json:"variables,omitempty" yaml:"variables,omitempty"`
}
