package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/optiscope/internal/logger"
	"github.com/jmylchreest/optiscope/pkg/fetcher"
)

// DynamicFetcher renders pages in headless Chrome via chromedp.
// One browser process is shared; every Fetch gets its own tab.
type DynamicFetcher struct {
	config    Config
	allocCtx  context.Context
	cancelCtx context.CancelFunc
}

// NewDynamicFetcher creates a new dynamic fetcher with a browser allocator.
// The browser itself starts lazily on the first Fetch.
func NewDynamicFetcher(cfg Config) (*DynamicFetcher, error) {
	defaults := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaults.MaxRequests
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)

	chromePath := cfg.ChromePath
	if chromePath == "" {
		chromePath = FindChromePath()
	}
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Debug("dynamic fetcher created",
		"headless", cfg.Headless,
		"timeout", cfg.Timeout,
		"settle", cfg.Settle)

	return &DynamicFetcher{
		config:    cfg,
		allocCtx:  allocCtx,
		cancelCtx: cancelAlloc,
	}, nil
}

// Fetch navigates to the URL, waits for the page to settle, then reads the
// rendered HTML and the in-page runtime snapshot.
func (f *DynamicFetcher) Fetch(ctx context.Context, targetURL string, opts fetcher.Options) (fetcher.Content, error) {
	result := fetcher.Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	browserCtx, cancelBrowser := chromedp.NewContext(f.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)
	defer cancelBrowser()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	// Propagate caller cancellation into the browser tab.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	recorder := newRequestRecorder(f.config.MaxRequests)
	var documentStatus atomic.Int64
	chromedp.ListenTarget(browserCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			recorder.observe(e.Request.URL, e.Request.Method)
		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument && e.Response.URL == targetURL {
				documentStatus.CompareAndSwap(0, e.Response.Status)
			}
		}
	})

	settle := opts.WaitDuration
	if settle == 0 {
		settle = f.config.Settle
	}

	var (
		html     string
		title    string
		snapshot string
		shot     []byte
	)
	actions := []chromedp.Action{
		network.Enable(),
	}
	if len(opts.Headers) > 0 {
		headers := network.Headers{}
		for k, v := range opts.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	actions = append(actions,
		chromedp.Navigate(targetURL),
		// WaitVisible polls forever on some pages; WaitReady does not.
		chromedp.WaitReady("body"),
	)
	if settle > 0 {
		actions = append(actions, chromedp.Sleep(settle))
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
		chromedp.Evaluate(runtimeProbe, &snapshot),
	)
	if opts.Screenshot {
		actions = append(actions, chromedp.CaptureScreenshot(&shot))
	}

	logger.Debug("chromedp executing actions",
		"url", targetURL,
		"action_count", len(actions),
		"timeout", timeout)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		result.Requests = recorder.list()
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: %s after %s", fetcher.ErrTimeout, targetURL, timeout)
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("browser automation failed: %w", err)
	}

	result.HTML = html
	result.Body = []byte(html)
	result.Title = title
	result.Screenshot = shot
	result.Requests = recorder.list()
	result.StatusCode = int(documentStatus.Load())
	if result.StatusCode == 0 {
		result.StatusCode = 200
	}

	rt, err := fetcher.DecodeRuntime([]byte(snapshot))
	if err != nil {
		// The page still rendered; an unreadable snapshot only loses runtime data.
		logger.Warn("runtime snapshot unreadable", "url", targetURL, "error", err)
	} else {
		result.Runtime = rt
	}

	logger.Debug("dynamic fetch complete",
		"url", targetURL,
		"title", title,
		"status", result.StatusCode,
		"requests", len(result.Requests),
		"screenshot", len(shot) > 0)

	return result, nil
}

// Close releases browser resources.
func (f *DynamicFetcher) Close() error {
	if f.cancelCtx != nil {
		f.cancelCtx()
	}
	return nil
}

// Type returns the fetcher type.
func (f *DynamicFetcher) Type() string {
	return "dynamic"
}
