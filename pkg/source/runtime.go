package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/optiscope/pkg/fetcher"
	"github.com/jmylchreest/optiscope/pkg/schema"
)

// Runtime part names.
const (
	PartState   = "state"
	PartData    = "data"
	PartVisitor = "visitor"
)

var runtimeNamespaces = map[string]string{
	PartState:   fetcher.NamespaceOptimizelyState,
	PartData:    fetcher.NamespaceOptimizelyData,
	PartVisitor: fetcher.NamespaceOptimizelyVisitor,
}

// RuntimeSource reads the live runtime captured by a rendering fetcher.
// It needs no network access.
type RuntimeSource struct{}

// NewRuntime creates a runtime source.
func NewRuntime() *RuntimeSource {
	return &RuntimeSource{}
}

// Kind returns schema.SourceRuntime.
func (s *RuntimeSource) Kind() schema.SourceKind {
	return schema.SourceRuntime
}

// Fetch returns the runtime namespaces when the runtime belongs to the
// requested identifier. A runtime with no project id answers only the
// anonymous identifier "".
func (s *RuntimeSource) Fetch(_ context.Context, req Request) (Payload, error) {
	if req.Runtime == nil || !req.Runtime.Has("optimizely.") {
		return Payload{}, skipped(s.Kind(), "no runtime")
	}

	pid := RuntimeProjectID(req.Runtime)
	if pid != req.Identifier {
		return Payload{}, skipped(s.Kind(), fmt.Sprintf("runtime belongs to %q", pid))
	}

	p := Payload{
		Kind:            s.Kind(),
		Identifier:      req.Identifier,
		URL:             "window.optimizely",
		Parts:           map[string][]byte{},
		NamespaceErrors: map[string]string{},
	}
	for part, ns := range runtimeNamespaces {
		if raw, ok := req.Runtime.Namespace(ns); ok {
			p.Parts[part] = raw
		}
		if msg := req.Runtime.Err(ns); msg != "" {
			p.NamespaceErrors[part] = msg
		}
	}
	return p, nil
}

// RuntimeProjectID returns the project id exposed by the runtime data namespace, or "".
func RuntimeProjectID(rt *fetcher.Runtime) string {
	raw, ok := rt.Namespace(fetcher.NamespaceOptimizelyData)
	if !ok {
		return ""
	}
	for _, path := range []string{"projectId", "project_id"} {
		if v := gjson.GetBytes(raw, path); v.Exists() {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}
