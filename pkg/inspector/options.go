package inspector

import (
	"time"

	"github.com/jmylchreest/optiscope/pkg/fetcher"
	"github.com/jmylchreest/optiscope/pkg/resolver"
)

// Config holds all Inspector configuration.
type Config struct {
	// Page fetching
	Fetcher fetcher.Fetcher

	// SourceFetcher retrieves snippets, datafiles and REST listings.
	// It defaults to a static fetcher even when Fetcher renders pages.
	SourceFetcher fetcher.Fetcher

	UserAgent   string
	MaxBodySize int           `validate:"min=0"`
	Timeout     time.Duration `validate:"min=0"`
	Settle      time.Duration `validate:"min=0"`
	Headers     map[string]string

	// Screenshot asks the fetcher for a viewport capture.
	Screenshot bool

	// Credential for the management REST API.
	Credential string

	// Concurrency for InspectMany.
	Concurrency int `validate:"min=1,max=64"`

	// ResolverOptions are passed through to resolver.New.
	ResolverOptions []resolver.Option
}

// Chrome user agent; snippet CDNs and storefronts serve differently to bare clients.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   defaultUserAgent,
		Timeout:     30 * time.Second,
		Concurrency: 4,
	}
}

// Option configures an Inspector.
type Option func(*Config)

// WithFetcher sets the page fetcher. A rendering fetcher is needed for
// runtime state, network requests and screenshots.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Config) {
		c.Fetcher = f
	}
}

// WithSourceFetcher sets the fetcher used for configuration sources.
func WithSourceFetcher(f fetcher.Fetcher) Option {
	return func(c *Config) {
		c.SourceFetcher = f
	}
}

// WithMaxBodySize caps response bodies read by the default static fetchers.
func WithMaxBodySize(n int) Option {
	return func(c *Config) {
		c.MaxBodySize = n
	}
}

// WithUserAgent sets the HTTP user agent.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithTimeout sets the page fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithSettle sets how long a rendering fetcher waits after load.
func WithSettle(d time.Duration) Option {
	return func(c *Config) {
		c.Settle = d
	}
}

// WithHeaders sets extra request headers for the page fetch.
func WithHeaders(h map[string]string) Option {
	return func(c *Config) {
		c.Headers = h
	}
}

// WithScreenshot enables viewport capture.
func WithScreenshot(enabled bool) Option {
	return func(c *Config) {
		c.Screenshot = enabled
	}
}

// WithCredential sets the management API token.
func WithCredential(token string) Option {
	return func(c *Config) {
		c.Credential = token
	}
}

// WithConcurrency sets how many pages InspectMany fetches at once.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithResolverOptions configures the underlying resolver.
func WithResolverOptions(opts ...resolver.Option) Option {
	return func(c *Config) {
		c.ResolverOptions = append(c.ResolverOptions, opts...)
	}
}
