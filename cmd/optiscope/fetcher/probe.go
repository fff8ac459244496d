package fetcher

import (
	"net/url"
	"strings"
	"sync"

	"github.com/jmylchreest/optiscope/pkg/fetcher"
)

// runtimeProbe reads each namespace in its own try block and returns a JSON
// string shaped like fetcher.Runtime. Values are round-tripped through
// JSON.stringify so cyclic or host objects become capture errors.
const runtimeProbe = `(function() {
  var out = { namespaces: {}, errors: {} };
  function capture(name, read) {
    try {
      var v = read();
      if (v === undefined) { return; }
      out.namespaces[name] = JSON.parse(JSON.stringify(v));
    } catch (e) {
      out.errors[name] = String(e && e.message ? e.message : e);
    }
  }
  var opt = window.optimizely;
  if (opt && typeof opt.get === 'function') {
    capture('optimizely.state', function() {
      var s = opt.get('state');
      if (!s) { return undefined; }
      return {
        activeExperimentIds: s.getActiveExperimentIds ? s.getActiveExperimentIds() : s.activeExperimentIds,
        variationMap: s.getVariationMap ? s.getVariationMap() : s.variationMap
      };
    });
    capture('optimizely.data', function() { return opt.get('data'); });
    capture('optimizely.visitor', function() { return opt.get('visitor'); });
  }
  capture('shopify', function() { return window.Shopify; });
  capture('shopifyAnalytics', function() {
    var sa = window.ShopifyAnalytics;
    return sa ? { meta: sa.meta } : undefined;
  });
  capture('st', function() { return window.__st; });
  capture('dataLayer', function() {
    return Array.isArray(window.dataLayer) ? window.dataLayer.slice(0, 20) : undefined;
  });
  capture('gtag', function() { return typeof window.gtag === 'function'; });
  return JSON.stringify(out);
})()`

// analyticsHosts are the hosts whose requests are recorded during a render.
var analyticsHosts = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"analytics.google.com",
}

// isAnalyticsRequest reports whether rawURL targets a known analytics host.
func isAnalyticsRequest(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range analyticsHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// requestRecorder collects analytics requests up to a fixed cap.
// Target listeners run on chromedp's event goroutine, hence the lock.
type requestRecorder struct {
	mu       sync.Mutex
	max      int
	requests []fetcher.NetworkRequest
}

func newRequestRecorder(max int) *requestRecorder {
	return &requestRecorder{max: max}
}

func (r *requestRecorder) observe(rawURL, method string) {
	if !isAnalyticsRequest(rawURL) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) >= r.max {
		return
	}
	r.requests = append(r.requests, fetcher.NetworkRequest{URL: rawURL, Method: method})
}

func (r *requestRecorder) list() []fetcher.NetworkRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]fetcher.NetworkRequest, len(r.requests))
	copy(out, r.requests)
	return out
}
