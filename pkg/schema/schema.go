// Package schema defines the canonical records produced by configuration resolution.
//
// Every collection on a Configuration is keyed by entity ID. Parsers emit
// Fragments; the merge engine folds Fragments into a Configuration.
package schema

// SourceKind identifies where a piece of configuration came from.
type SourceKind string

const (
	SourceRuntime  SourceKind = "runtime"
	SourceRESTAPI  SourceKind = "rest_api"
	SourceSnippet  SourceKind = "snippet"
	SourceDatafile SourceKind = "datafile"
)

// LoadedVia describes how the project identifier reached the page.
type LoadedVia string

const (
	LoadedViaDirect          LoadedVia = "direct"
	LoadedViaTagManager      LoadedVia = "gtm"
	LoadedViaKnownIdentifier LoadedVia = "known_project"
	LoadedViaRESTAPI         LoadedVia = "rest_api"
	LoadedViaUnknown         LoadedVia = "unknown"
)

// ErrorKind classifies a non-fatal resolution error.
type ErrorKind string

const (
	ErrorKindFetch        ErrorKind = "fetch"
	ErrorKindUnauthorized ErrorKind = "unauthorized"
	ErrorKindParse        ErrorKind = "parse"
	ErrorKindExtraction   ErrorKind = "extraction"
	ErrorKindValidation   ErrorKind = "validation"
)

// ResolutionError is a recorded, non-fatal failure of a single source or strategy.
type ResolutionError struct {
	Source  string    `json:"source" yaml:"source"`
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

// Visitor is the current visitor as reported by the live runtime.
type Visitor struct {
	ID         string         `json:"visitorId,omitempty" yaml:"visitorId,omitempty"`
	Attributes map[string]any `json:"customAttributes,omitempty" yaml:"customAttributes,omitempty"`
}

// Configuration is the root record of one resolution.
type Configuration struct {
	PrimaryIdentifier string            `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	Identifiers       []string          `json:"projectIds,omitempty" yaml:"projectIds,omitempty"`
	IsKnownProject    bool              `json:"isMyProject" yaml:"isMyProject"`
	LoadedVia         LoadedVia         `json:"loadedVia" yaml:"loadedVia"`
	Source            SourceKind        `json:"source,omitempty" yaml:"source,omitempty"`
	AccountID         string            `json:"accountId,omitempty" yaml:"accountId,omitempty"`
	Revision          string            `json:"revision,omitempty" yaml:"revision,omitempty"`
	SnippetURLs       []string          `json:"snippetUrls,omitempty" yaml:"snippetUrls,omitempty"`
	DatafileURL       string            `json:"datafileUrl,omitempty" yaml:"datafileUrl,omitempty"`
	Visitor           *Visitor          `json:"visitor,omitempty" yaml:"visitor,omitempty"`
	Experiments       []Experiment      `json:"experiments" yaml:"experiments"`
	Audiences         []Audience        `json:"audiences" yaml:"audiences"`
	Pages             []Page            `json:"pages" yaml:"pages"`
	Events            []Event           `json:"events" yaml:"events"`
	Features          []Feature         `json:"features" yaml:"features"`
	Errors            []ResolutionError `json:"errors" yaml:"errors"`
}

// NewConfiguration returns an empty Configuration with non-nil collections,
// so consumers always see arrays rather than nulls.
func NewConfiguration() *Configuration {
	return &Configuration{
		LoadedVia:   LoadedViaUnknown,
		Experiments: []Experiment{},
		Audiences:   []Audience{},
		Pages:       []Page{},
		Events:      []Event{},
		Features:    []Feature{},
		Errors:      []ResolutionError{},
	}
}

// AddError records a non-fatal error.
func (c *Configuration) AddError(source string, kind ErrorKind, message string) {
	c.Errors = append(c.Errors, ResolutionError{Source: source, Kind: kind, Message: message})
}

// HasErrorKind reports whether an error of the given kind was recorded.
func (c *Configuration) HasErrorKind(kind ErrorKind) bool {
	for _, e := range c.Errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Experiment returns the experiment with the given id, or nil.
func (c *Configuration) Experiment(id string) *Experiment {
	for i := range c.Experiments {
		if c.Experiments[i].ID == id {
			return &c.Experiments[i]
		}
	}
	return nil
}

// Empty reports whether no entity of any kind was resolved.
func (c *Configuration) Empty() bool {
	return len(c.Experiments) == 0 && len(c.Audiences) == 0 && len(c.Pages) == 0 &&
		len(c.Events) == 0 && len(c.Features) == 0
}

// Fragment is what a single parser run yields from a single payload.
type Fragment struct {
	Identifier  string
	AccountID   string
	Revision    string
	Visitor     *Visitor
	Experiments []Experiment
	Audiences   []Audience
	Pages       []Page
	Events      []Event
	Features    []Feature
}

// Empty reports whether the fragment carries no entities.
func (f Fragment) Empty() bool {
	return len(f.Experiments) == 0 && len(f.Audiences) == 0 && len(f.Pages) == 0 &&
		len(f.Events) == 0 && len(f.Features) == 0
}

// IDs returns the set of every entity id in the fragment, by collection name.
func (f Fragment) IDs() map[string]map[string]bool {
	ids := map[string]map[string]bool{
		"experiments": {},
		"audiences":   {},
		"pages":       {},
		"events":      {},
		"features":    {},
	}
	for _, e := range f.Experiments {
		ids["experiments"][e.ID] = true
	}
	for _, a := range f.Audiences {
		ids["audiences"][a.ID] = true
	}
	for _, p := range f.Pages {
		ids["pages"][p.ID] = true
	}
	for _, e := range f.Events {
		ids["events"][e.ID] = true
	}
	for _, ft := range f.Features {
		ids["features"][ft.ID] = true
	}
	return ids
}

// AssignmentState is the live runtime's view of which experiments are active
// and which variation the current visitor was bucketed into. It belongs to a
// single resolution and is applied to a Configuration, never merged into one.
type AssignmentState struct {
	ActiveExperimentIDs map[string]bool
	VariationMap        map[string]string // experiment id -> variation id
}

// NewAssignmentState returns an empty state with non-nil maps.
func NewAssignmentState() *AssignmentState {
	return &AssignmentState{
		ActiveExperimentIDs: map[string]bool{},
		VariationMap:        map[string]string{},
	}
}
