package resolver

import (
	"time"

	"github.com/jmylchreest/optiscope/pkg/source"
)

// DefaultKnownIdentifier is the project always probed for presence.
const DefaultKnownIdentifier = "30018331732"

// Config holds resolver configuration.
type Config struct {
	// KnownIdentifier is always probed, so its presence is reported even
	// when another project yielded experiments first. Empty disables it.
	KnownIdentifier string `validate:"omitempty,numeric"`

	// Concurrency caps identifiers probed at once.
	Concurrency int `validate:"min=1,max=32"`

	REST     source.RESTConfig
	Snippet  source.TemplateConfig
	Datafile source.TemplateConfig

	// Sources overrides the default source chain when non-empty.
	Sources []source.Source
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		KnownIdentifier: DefaultKnownIdentifier,
		Concurrency:     4,
		REST:            source.DefaultRESTConfig(),
		Snippet:         source.DefaultSnippetConfig(),
		Datafile:        source.DefaultDatafileConfig(),
	}
}

// Option configures the resolver.
type Option func(*Config)

// WithKnownIdentifier sets the identifier that is always probed.
func WithKnownIdentifier(id string) Option {
	return func(c *Config) {
		c.KnownIdentifier = id
	}
}

// WithConcurrency sets how many identifiers are probed at once.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithRESTBaseURL points the REST source at a different API root.
func WithRESTBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.REST.BaseURL = baseURL
	}
}

// WithSnippetTemplates sets the snippet URL templates ({id} placeholder).
func WithSnippetTemplates(templates ...string) Option {
	return func(c *Config) {
		c.Snippet.Templates = templates
	}
}

// WithDatafileTemplates sets the datafile URL templates, tried in order.
func WithDatafileTemplates(templates ...string) Option {
	return func(c *Config) {
		c.Datafile.Templates = templates
	}
}

// WithTimeouts sets the per-source time budgets. Zero keeps the default.
func WithTimeouts(rest, snippet, datafile time.Duration) Option {
	return func(c *Config) {
		if rest > 0 {
			c.REST.Timeout = rest
		}
		if snippet > 0 {
			c.Snippet.Timeout = snippet
		}
		if datafile > 0 {
			c.Datafile.Timeout = datafile
		}
	}
}

// WithSources replaces the source chain. Order is priority order.
func WithSources(sources ...source.Source) Option {
	return func(c *Config) {
		c.Sources = sources
	}
}
