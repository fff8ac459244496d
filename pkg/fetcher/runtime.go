package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Runtime namespace names captured by rendering fetchers.
const (
	NamespaceOptimizelyState   = "optimizely.state"
	NamespaceOptimizelyData    = "optimizely.data"
	NamespaceOptimizelyVisitor = "optimizely.visitor"
	NamespaceShopify           = "shopify"
	NamespaceShopifyAnalytics  = "shopifyAnalytics"
	NamespaceShopifyST         = "st"
	NamespaceDataLayer         = "dataLayer"
	NamespaceGtag              = "gtag"
)

// Runtime is a snapshot of in-page state read by a rendering fetcher.
// Each namespace is captured independently; a namespace that could not be
// read has an entry in Errors instead of Namespaces.
type Runtime struct {
	Namespaces map[string]json.RawMessage `json:"namespaces"`
	Errors     map[string]string          `json:"errors,omitempty"`
}

// DecodeRuntime parses the JSON document produced by the in-page probe.
func DecodeRuntime(data []byte) (*Runtime, error) {
	var rt Runtime
	if err := json.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("decode runtime snapshot: %w", err)
	}
	if rt.Namespaces == nil {
		rt.Namespaces = map[string]json.RawMessage{}
	}
	return &rt, nil
}

// Namespace returns the raw JSON for a namespace. Missing and null
// namespaces both report false.
func (r *Runtime) Namespace(name string) (json.RawMessage, bool) {
	if r == nil {
		return nil, false
	}
	raw, ok := r.Namespaces[name]
	if !ok {
		return nil, false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}
	return raw, true
}

// Err returns the capture error recorded for a namespace.
func (r *Runtime) Err(name string) string {
	if r == nil {
		return ""
	}
	return r.Errors[name]
}

// Has reports whether any namespace (or namespace error) starts with prefix.
func (r *Runtime) Has(prefix string) bool {
	if r == nil {
		return false
	}
	for name := range r.Namespaces {
		if strings.HasPrefix(name, prefix) {
			if _, ok := r.Namespace(name); ok {
				return true
			}
		}
	}
	for name := range r.Errors {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
