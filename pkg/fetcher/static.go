package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/gocolly/colly/v2"
	"github.com/jmylchreest/optiscope/internal/logger"
)

// StaticConfig holds configuration for the static fetcher.
type StaticConfig struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int // bytes; 0 keeps the default
}

// DefaultStaticConfig returns sensible defaults.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		UserAgent:   defaultUserAgent,
		Timeout:     30 * time.Second,
		MaxBodySize: 10 * humanize.MiByte,
	}
}

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StaticFetcher uses Colly for plain HTTP fetching of pages, scripts and API
// responses. It implements the Fetcher interface.
type StaticFetcher struct {
	config StaticConfig
}

// NewStatic creates a new static fetcher.
func NewStatic(cfg StaticConfig) *StaticFetcher {
	defaults := DefaultStaticConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = defaults.MaxBodySize
	}
	return &StaticFetcher{config: cfg}
}

// Fetch retrieves content using Colly. Non-2xx responses return a
// *StatusError; exceeding the timeout returns an error wrapping ErrTimeout.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	logger.Debug("static fetch starting", "url", targetURL, "raw", opts.Raw)

	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Create a new collector for each request
	userAgent := coalesce(opts.UserAgent, f.config.UserAgent)
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
		colly.MaxBodySize(f.config.MaxBodySize),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)
	logger.Debug("static fetch configured",
		"user_agent", userAgent,
		"timeout", timeout,
		"max_body", humanize.IBytes(uint64(f.config.MaxBodySize)))

	if len(opts.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range opts.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.Body = r.Body
		logger.Debug("static fetch response received",
			"status", r.StatusCode,
			"content_type", result.ContentType,
			"body_size", humanize.IBytes(uint64(len(r.Body))))
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.StatusCode = r.StatusCode
			result.Body = r.Body
			fetchErr = &StatusError{URL: targetURL, StatusCode: r.StatusCode}
		} else {
			fetchErr = err
		}
		logger.Debug("static fetch error", "status", result.StatusCode, "error", err)
	})

	if err := c.Visit(targetURL); err != nil && fetchErr == nil {
		fetchErr = err
	}

	if fetchErr != nil {
		if isTimeout(ctx, fetchErr) {
			return result, fmt.Errorf("%w: %s after %s", ErrTimeout, targetURL, timeout)
		}
		var se *StatusError
		if errors.As(fetchErr, &se) {
			return result, se
		}
		return result, fmt.Errorf("fetch %s: %w", targetURL, fetchErr)
	}

	if result.StatusCode < 200 || result.StatusCode > 299 {
		return result, &StatusError{URL: targetURL, StatusCode: result.StatusCode}
	}

	if !opts.Raw {
		result.HTML = string(result.Body)
		if err := f.parseContent(&result); err != nil {
			logger.Debug("static fetch parse failed", "error", err)
			return result, fmt.Errorf("failed to parse content: %w", err)
		}
	}

	logger.Debug("static fetch complete", "url", targetURL, "title", result.Title)
	return result, nil
}

// parseContent extracts page metadata from HTML.
func (f *StaticFetcher) parseContent(content *Content) error {
	if content.HTML == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return err
	}
	content.Title = strings.TrimSpace(doc.Find("title").First().Text())
	return nil
}

// Close releases resources.
func (f *StaticFetcher) Close() error {
	return nil
}

// Type returns the fetcher type.
func (f *StaticFetcher) Type() string {
	return "static"
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
