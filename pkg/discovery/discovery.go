// Package discovery finds project identifiers referenced by a page.
package discovery

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/optiscope/pkg/schema"
)

// Observation is one identifier seen on the page and how it got there.
type Observation struct {
	Identifier string           `json:"identifier" yaml:"identifier"`
	Via        schema.LoadedVia `json:"via" yaml:"via"`
	ScriptURL  string           `json:"scriptUrl,omitempty" yaml:"scriptUrl,omitempty"`
}

// SnippetPattern matches snippet URLs on any optimizely CDN host.
var SnippetPattern = regexp.MustCompile(`(?i)(?:https?:)?//[a-z0-9.-]*optimizely\.com/js/(\d+)\.js`)

var tagManagerContext = regexp.MustCompile(`(?i)googletagmanager|gtm\.js|gtm\.start|google_tag_manager`)

// Selector finds snippet references in HTML.
type Selector struct {
	Pattern *regexp.Regexp
}

// NewSelector creates a selector; a nil pattern uses SnippetPattern.
func NewSelector(pattern *regexp.Regexp) *Selector {
	if pattern == nil {
		pattern = SnippetPattern
	}
	return &Selector{Pattern: pattern}
}

// FromHTML returns identifiers in document order, first sighting wins.
// Snippet script tags and preload links are direct loads; snippet URLs
// written by inline script next to tag manager code are tag-manager loads.
func (s *Selector) FromHTML(html string, pageURL string) ([]Observation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	var out []Observation
	seen := make(map[string]bool)
	add := func(id string, via schema.LoadedVia, script string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, Observation{Identifier: id, Via: via, ScriptURL: resolve(base, script)})
	}

	doc.Find("script[src], link[href]").Each(func(_ int, sel *goquery.Selection) {
		ref := sel.AttrOr("src", sel.AttrOr("href", ""))
		if m := s.Pattern.FindStringSubmatch(ref); m != nil {
			add(m[1], schema.LoadedViaDirect, ref)
		}
	})

	doc.Find("script:not([src])").Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		via := schema.LoadedViaDirect
		if tagManagerContext.MatchString(text) {
			via = schema.LoadedViaTagManager
		}
		for _, m := range s.Pattern.FindAllStringSubmatch(text, -1) {
			add(m[1], via, m[0])
		}
	})

	return out, nil
}

// FromHTML runs the default selector.
func FromHTML(html, pageURL string) ([]Observation, error) {
	return NewSelector(nil).FromHTML(html, pageURL)
}

// WithRuntime adds the runtime's project id when no markup referenced it.
// A runtime that appeared without a snippet tag on a page running a tag
// manager was injected by the tag manager. Otherwise Via is left empty and
// the load path is decided during resolution.
func WithRuntime(observations []Observation, runtimeProjectID string, tagManager bool) []Observation {
	if runtimeProjectID == "" {
		return observations
	}
	for _, o := range observations {
		if o.Identifier == runtimeProjectID {
			return observations
		}
	}
	var via schema.LoadedVia
	if tagManager {
		via = schema.LoadedViaTagManager
	}
	return append(observations, Observation{Identifier: runtimeProjectID, Via: via})
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.Scheme == "" && base != nil && base.Scheme != "" {
		u = base.ResolveReference(u)
		if u.Scheme == "" {
			u.Scheme = base.Scheme
		}
	}
	return u.String()
}
