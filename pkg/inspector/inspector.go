// Package inspector is the public API: it fetches a page and reports the
// experimentation and analytics configuration active on it.
package inspector

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/optiscope/internal/logger"
	"github.com/jmylchreest/optiscope/pkg/discovery"
	"github.com/jmylchreest/optiscope/pkg/fetcher"
	"github.com/jmylchreest/optiscope/pkg/platform"
	"github.com/jmylchreest/optiscope/pkg/resolver"
	"github.com/jmylchreest/optiscope/pkg/schema"
	"github.com/jmylchreest/optiscope/pkg/source"
)

// Errors returned before any fetch is attempted.
var (
	ErrInvalidURL         = errors.New("invalid URL")
	ErrProtocolNotAllowed = errors.New("only http and https URLs are allowed")
)

// Report is everything found on one page.
type Report struct {
	URL             string                   `json:"url" yaml:"url"`
	Title           string                   `json:"title" yaml:"title"`
	FetchedAt       time.Time                `json:"fetchedAt" yaml:"fetchedAt"`
	Optimizely      *schema.Configuration    `json:"optimizely" yaml:"optimizely"`
	Shopify         *platform.Shopify        `json:"shopify" yaml:"shopify"`
	GA4             platform.GA4             `json:"ga4" yaml:"ga4"`
	NetworkRequests []fetcher.NetworkRequest `json:"networkRequests" yaml:"networkRequests"`
	Screenshot      string                   `json:"-" yaml:"-"`
	ResolutionID    string                   `json:"resolutionId,omitempty" yaml:"resolutionId,omitempty"`
	FetchDuration   time.Duration            `json:"-" yaml:"-"`
	Error           error                    `json:"-" yaml:"-"`
}

// Inspector fetches pages and resolves their configuration.
type Inspector struct {
	fetcher  fetcher.Fetcher
	sources  fetcher.Fetcher
	resolver *resolver.Resolver
	config   Config
}

// New creates an Inspector. Without WithFetcher a static fetcher is used,
// which sees markup only. Configuration sources always go through a static
// fetcher unless WithSourceFetcher says otherwise.
func New(opts ...Option) (*Inspector, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := schema.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid inspector config: %w", err)
	}

	static := func() fetcher.Fetcher {
		return fetcher.NewStatic(fetcher.StaticConfig{
			UserAgent:   cfg.UserAgent,
			Timeout:     cfg.Timeout,
			MaxBodySize: cfg.MaxBodySize,
		})
	}
	f := cfg.Fetcher
	if f == nil {
		f = static()
	}
	sf := cfg.SourceFetcher
	if sf == nil {
		if f.Type() == "static" {
			sf = f
		} else {
			sf = static()
		}
	}

	r, err := resolver.New(sf, cfg.ResolverOptions...)
	if err != nil {
		return nil, err
	}

	return &Inspector{fetcher: f, sources: sf, resolver: r, config: cfg}, nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%w: %s", ErrProtocolNotAllowed, u.Scheme)
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrProtocolNotAllowed, u.Scheme)
	}
	return u, nil
}

// Inspect fetches a page and reports what it runs. Only an invalid URL or a
// failed page fetch is an error; a page with nothing on it is a report with
// empty collections.
func (i *Inspector) Inspect(ctx context.Context, rawURL string) (*Report, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	fetchStart := time.Now()
	content, err := i.fetcher.Fetch(ctx, u.String(), fetcher.Options{
		UserAgent:    i.config.UserAgent,
		Timeout:      i.config.Timeout,
		WaitDuration: i.config.Settle,
		Headers:      i.config.Headers,
		Screenshot:   i.config.Screenshot,
	})
	fetchDuration := time.Since(fetchStart)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	pageURL := content.URL
	if pageURL == "" {
		pageURL = u.String()
	}

	observed, err := discovery.FromHTML(content.HTML, pageURL)
	if err != nil {
		logger.Debug("identifier discovery failed", "url", pageURL, "error", err)
	}

	ga4 := platform.DetectGA4(content.HTML, content.Runtime)
	observed = discovery.WithRuntime(observed, source.RuntimeProjectID(content.Runtime), ga4.TagManagerPresent())

	res := i.resolver.Resolve(ctx, resolver.Input{
		Observed:   observed,
		Runtime:    content.Runtime,
		Credential: i.config.Credential,
	})

	report := &Report{
		URL:             pageURL,
		Title:           content.Title,
		FetchedAt:       content.FetchedAt,
		Shopify:         platform.DetectShopify(content.Runtime),
		GA4:             ga4,
		NetworkRequests: content.Requests,
		ResolutionID:    res.ID,
		FetchDuration:   fetchDuration,
	}
	if report.NetworkRequests == nil {
		report.NetworkRequests = []fetcher.NetworkRequest{}
	}
	if len(res.Passes) > 0 {
		report.Optimizely = res.Configuration
	}
	if len(content.Screenshot) > 0 {
		report.Screenshot = "data:image/png;base64," + base64.StdEncoding.EncodeToString(content.Screenshot)
	}

	logger.Debug("page inspected",
		"url", pageURL,
		"observed", len(observed),
		"fetch_duration", fetchDuration,
		"resolution_id", res.ID)
	return report, nil
}

// InspectMany inspects URLs concurrently. Failed pages are reported with
// Error set.
func (i *Inspector) InspectMany(ctx context.Context, urls []string) <-chan *Report {
	results := make(chan *Report, len(urls))
	sem := make(chan struct{}, i.config.Concurrency)
	var wg sync.WaitGroup

	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			report, err := i.Inspect(ctx, u)
			if err != nil {
				results <- &Report{URL: u, Error: err}
				return
			}
			results <- report
		}(u)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// Resolve resolves a project identifier without fetching a page.
func (i *Inspector) Resolve(ctx context.Context, identifiers ...string) *resolver.Result {
	return i.resolver.Resolve(ctx, resolver.Input{
		Identifiers: identifiers,
		Credential:  i.config.Credential,
	})
}

// Close releases fetcher resources.
func (i *Inspector) Close() error {
	err := i.fetcher.Close()
	if i.sources != i.fetcher {
		if serr := i.sources.Close(); err == nil {
			err = serr
		}
	}
	return err
}
