// Package fetcher provides the browser-backed fetcher used by the CLI.
// It renders pages with chromedp, reads the live testing runtime, records
// analytics requests and optionally captures a screenshot.
package fetcher

import (
	"time"
)

// Config holds configuration for the dynamic fetcher.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	Settle      time.Duration // wait after load before reading the runtime
	MaxRequests int           // cap on recorded analytics requests
	Headless    bool
	ChromePath  string // overrides FindChromePath when set
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   defaultUserAgent,
		Timeout:     30 * time.Second,
		Settle:      1500 * time.Millisecond,
		MaxRequests: 10,
		Headless:    true,
	}
}

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
