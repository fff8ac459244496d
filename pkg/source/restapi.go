package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/optiscope/internal/logger"
	"github.com/jmylchreest/optiscope/pkg/fetcher"
	"github.com/jmylchreest/optiscope/pkg/schema"
)

// DefaultRESTBaseURL is the public management API.
const DefaultRESTBaseURL = "https://api.optimizely.com/v2"

// RESTListings are the collections requested per identifier, in report order.
var RESTListings = []string{"experiments", "audiences", "pages", "events"}

// RESTConfig configures the REST source.
type RESTConfig struct {
	BaseURL string
	PerPage int
	Timeout time.Duration
}

// DefaultRESTConfig returns sensible defaults.
func DefaultRESTConfig() RESTConfig {
	return RESTConfig{
		BaseURL: DefaultRESTBaseURL,
		PerPage: 100,
		Timeout: 15 * time.Second,
	}
}

// RESTSource lists project entities through the management API.
type RESTSource struct {
	fetcher fetcher.Fetcher
	config  RESTConfig
}

// NewREST creates a REST source that issues requests through f.
func NewREST(f fetcher.Fetcher, cfg RESTConfig) *RESTSource {
	defaults := DefaultRESTConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.PerPage == 0 {
		cfg.PerPage = defaults.PerPage
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &RESTSource{fetcher: f, config: cfg}
}

// Kind returns schema.SourceRESTAPI.
func (s *RESTSource) Kind() schema.SourceKind {
	return schema.SourceRESTAPI
}

// Fetch requests every listing concurrently. Failed listings are reported in
// PartErrors; the payload only fails when every listing failed.
func (s *RESTSource) Fetch(ctx context.Context, req Request) (Payload, error) {
	if req.Credential == "" {
		return Payload{}, skipped(s.Kind(), "no credential")
	}
	if req.Identifier == "" {
		return Payload{}, skipped(s.Kind(), "no identifier")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	opts := fetcher.Options{
		Raw:     true,
		Timeout: s.config.Timeout,
		Headers: map[string]string{
			"Authorization": "Bearer " + req.Credential,
			"Accept":        "application/json",
		},
	}

	bodies := make([][]byte, len(RESTListings))
	failures := make([]*FetchError, len(RESTListings))

	// Listing failures are collected, not returned, so one bad listing never
	// cancels its siblings.
	var g errgroup.Group
	for i, listing := range RESTListings {
		target := s.listingURL(listing, req.Identifier)
		g.Go(func() error {
			content, err := s.fetcher.Fetch(ctx, target, opts)
			switch {
			case err != nil:
				failures[i] = classify(s.Kind(), target, err)
			case len(content.Body) == 0:
				failures[i] = emptyBody(s.Kind(), target)
			default:
				bodies[i] = content.Body
			}
			return nil
		})
	}
	_ = g.Wait()

	p := Payload{
		Kind:       s.Kind(),
		Identifier: req.Identifier,
		URL:        s.config.BaseURL,
		Parts:      map[string][]byte{},
	}
	unauthorized := false
	for i, listing := range RESTListings {
		if bodies[i] != nil {
			p.Parts[listing] = bodies[i]
			continue
		}
		p.PartErrors = append(p.PartErrors, failures[i])
		if errors.Is(failures[i], ErrUnauthorized) {
			unauthorized = true
		}
	}

	if len(p.Parts) == 0 {
		logger.DebugContext(ctx, "rest api: all listings failed", "identifier", req.Identifier, "unauthorized", unauthorized)
		if unauthorized {
			return Payload{}, &FetchError{
				Source:     s.Kind(),
				URL:        s.config.BaseURL,
				StatusCode: p.PartErrors[0].StatusCode,
				Reason:     "credential rejected for every listing",
				Err:        ErrUnauthorized,
			}
		}
		first := p.PartErrors[0]
		return Payload{}, &FetchError{
			Source:     s.Kind(),
			URL:        s.config.BaseURL,
			StatusCode: first.StatusCode,
			Reason:     fmt.Sprintf("all %d listings failed: %s", len(RESTListings), first.Reason),
			Err:        first,
		}
	}
	return p, nil
}

func (s *RESTSource) listingURL(listing, identifier string) string {
	q := url.Values{}
	q.Set("project_id", identifier)
	q.Set("per_page", fmt.Sprint(s.config.PerPage))
	return fmt.Sprintf("%s/%s?%s", s.config.BaseURL, listing, q.Encode())
}
