// Package platform detects third-party platforms present on a page: Google
// Analytics 4 / Google Tag Manager and Shopify storefronts.
//
// Detectors read the page markup and the runtime snapshot captured by a
// rendering fetcher. They never fail; anything unreadable is reported on the
// result's Error field.
package platform

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/jmylchreest/optiscope/pkg/fetcher"
)

// MaxDataLayerEntries caps how many dataLayer entries are kept.
const MaxDataLayerEntries = 20

var (
	srcMeasurementID  = regexp.MustCompile(`[?&]id=(G-[A-Z0-9]+)`)
	srcContainerID    = regexp.MustCompile(`[?&]id=(GTM-[A-Z0-9]+)`)
	inlineMeasurement = regexp.MustCompile(`G-[A-Z0-9]{10,}`)
	inlineContainer   = regexp.MustCompile(`GTM-[A-Z0-9]+`)
)

// GA4 describes Google Analytics 4 and Tag Manager usage.
type GA4 struct {
	Detected       bool              `json:"detected" yaml:"detected"`
	MeasurementIDs []string          `json:"measurementIds" yaml:"measurementIds"`
	GTMContainers  []string          `json:"gtmContainers" yaml:"gtmContainers"`
	DataLayer      []json.RawMessage `json:"dataLayerContents,omitempty" yaml:"-"`
	Error          string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// DetectGA4 collects measurement ids and container ids from tag manager
// script URLs and inline script text, and the first dataLayer entries from rt.
func DetectGA4(html string, rt *fetcher.Runtime) GA4 {
	g := GA4{MeasurementIDs: []string{}, GTMContainers: []string{}}

	if _, ok := rt.Namespace(fetcher.NamespaceDataLayer); ok {
		g.Detected = true
	}
	if raw, ok := rt.Namespace(fetcher.NamespaceGtag); ok && gjson.ParseBytes(raw).Bool() {
		g.Detected = true
	}

	if html != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			g.Error = err.Error()
		} else {
			doc.Find(`script[src*="googletagmanager"]`).Each(func(_ int, s *goquery.Selection) {
				src, _ := s.Attr("src")
				if m := srcMeasurementID.FindStringSubmatch(src); m != nil {
					g.MeasurementIDs = appendUnique(g.MeasurementIDs, m[1])
				}
				if m := srcContainerID.FindStringSubmatch(src); m != nil {
					g.GTMContainers = appendUnique(g.GTMContainers, m[1])
				}
			})
			doc.Find("script:not([src])").Each(func(_ int, s *goquery.Selection) {
				text := s.Text()
				for _, id := range inlineMeasurement.FindAllString(text, -1) {
					g.MeasurementIDs = appendUnique(g.MeasurementIDs, id)
				}
				for _, id := range inlineContainer.FindAllString(text, -1) {
					g.GTMContainers = appendUnique(g.GTMContainers, id)
				}
			})
		}
	}
	if len(g.MeasurementIDs) > 0 || len(g.GTMContainers) > 0 {
		g.Detected = true
	}

	if raw, ok := rt.Namespace(fetcher.NamespaceDataLayer); ok {
		for i, entry := range gjson.ParseBytes(raw).Array() {
			if i == MaxDataLayerEntries {
				break
			}
			g.DataLayer = append(g.DataLayer, json.RawMessage(entry.Raw))
		}
	}
	if msg := rt.Err(fetcher.NamespaceDataLayer); msg != "" && g.Error == "" {
		g.Error = msg
	}
	return g
}

// TagManagerPresent reports whether a tag manager container was found.
func (g GA4) TagManagerPresent() bool {
	return len(g.GTMContainers) > 0
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
