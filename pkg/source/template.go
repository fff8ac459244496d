package source

import (
	"bytes"
	"context"
	"time"

	"github.com/jmylchreest/optiscope/internal/logger"
	"github.com/jmylchreest/optiscope/pkg/fetcher"
	"github.com/jmylchreest/optiscope/pkg/schema"
)

// TemplateConfig configures a source that tries URL templates in order.
// Each template contains an {id} placeholder.
type TemplateConfig struct {
	Templates []string
	Timeout   time.Duration
}

// DefaultSnippetConfig returns the snippet CDN template.
func DefaultSnippetConfig() TemplateConfig {
	return TemplateConfig{
		Templates: []string{"https://cdn.optimizely.com/js/{id}.js"},
		Timeout:   10 * time.Second,
	}
}

// DefaultDatafileConfig returns the datafile CDN templates, newest layout first.
func DefaultDatafileConfig() TemplateConfig {
	return TemplateConfig{
		Templates: []string{
			"https://cdn.optimizely.com/datafiles/{id}.json",
			"https://cdn.optimizely.com/json/{id}.json",
		},
		Timeout: 5 * time.Second,
	}
}

// TemplateSource fetches a single document from the first template that
// answers 2xx with a non-empty body. Snippet and datafile sources are both
// TemplateSources with different kinds and templates.
type TemplateSource struct {
	kind    schema.SourceKind
	fetcher fetcher.Fetcher
	config  TemplateConfig
}

// NewSnippet creates the snippet script source.
func NewSnippet(f fetcher.Fetcher, cfg TemplateConfig) *TemplateSource {
	return newTemplateSource(schema.SourceSnippet, f, cfg, DefaultSnippetConfig())
}

// NewDatafile creates the JSON datafile source.
func NewDatafile(f fetcher.Fetcher, cfg TemplateConfig) *TemplateSource {
	return newTemplateSource(schema.SourceDatafile, f, cfg, DefaultDatafileConfig())
}

func newTemplateSource(kind schema.SourceKind, f fetcher.Fetcher, cfg, defaults TemplateConfig) *TemplateSource {
	if len(cfg.Templates) == 0 {
		cfg.Templates = defaults.Templates
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &TemplateSource{kind: kind, fetcher: f, config: cfg}
}

// Kind returns the source kind.
func (s *TemplateSource) Kind() schema.SourceKind {
	return s.kind
}

// Fetch tries each template in order within one shared time budget.
func (s *TemplateSource) Fetch(ctx context.Context, req Request) (Payload, error) {
	if req.Identifier == "" {
		return Payload{}, skipped(s.kind, "no identifier")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var lastErr *FetchError
	for _, tmpl := range s.config.Templates {
		target := expand(tmpl, req.Identifier)
		content, err := s.fetcher.Fetch(ctx, target, fetcher.Options{Raw: true, Timeout: s.config.Timeout})
		if err != nil {
			lastErr = classify(s.kind, target, err)
			logger.DebugContext(ctx, "template source attempt failed", "source", s.kind, "url", target, "error", lastErr)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(bytes.TrimSpace(content.Body)) == 0 {
			lastErr = emptyBody(s.kind, target)
			continue
		}
		return Payload{
			Kind:       s.kind,
			Identifier: req.Identifier,
			URL:        target,
			Body:       content.Body,
		}, nil
	}
	if lastErr == nil {
		return Payload{}, skipped(s.kind, "no templates")
	}
	return Payload{}, lastErr
}
