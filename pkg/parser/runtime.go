package parser

import (
	"errors"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/optiscope/pkg/schema"
)

// Runtime part names, matching the keys the runtime source uses.
const (
	partState   = "state"
	partData    = "data"
	partVisitor = "visitor"
)

// RuntimeResult is everything read from the live runtime namespaces.
type RuntimeResult struct {
	Fragment    schema.Fragment
	Assignments *schema.AssignmentState
	Errors      []error
}

// ParseRuntime reads the state, data and visitor namespaces independently.
// Capture errors reported by the browser and failures while reading a
// namespace become ExtractionErrors tagged runtime:<namespace>; whatever the
// other namespaces yielded is kept.
func ParseRuntime(parts map[string][]byte, namespaceErrors map[string]string) RuntimeResult {
	res := RuntimeResult{}

	names := make([]string, 0, len(namespaceErrors))
	for name := range namespaceErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res.Errors = append(res.Errors, &ExtractionError{
			Source: "runtime:" + name,
			Err:    errors.New(namespaceErrors[name]),
		})
	}

	if raw, ok := parts[partData]; ok {
		err := guard("runtime:"+partData, func() error {
			v, err := object(raw)
			if err != nil {
				return &ExtractionError{Source: "runtime:" + partData, Err: err}
			}
			res.Fragment = keyedData(v)
			return nil
		})
		if err != nil {
			res.Errors = append(res.Errors, err)
		}
	}

	if raw, ok := parts[partState]; ok {
		err := guard("runtime:"+partState, func() error {
			state, err := ParseAssignmentState(raw)
			if err != nil {
				return &ExtractionError{Source: "runtime:" + partState, Err: err}
			}
			res.Assignments = state
			return nil
		})
		if err != nil {
			res.Errors = append(res.Errors, err)
		}
	}

	if raw, ok := parts[partVisitor]; ok {
		err := guard("runtime:"+partVisitor, func() error {
			v, err := object(raw)
			if err != nil {
				return &ExtractionError{Source: "runtime:" + partVisitor, Err: err}
			}
			visitor := &schema.Visitor{ID: str(v, "visitorId", "visitor_id", "id")}
			if attrs, ok := value(first(v, "customAttributes", "custom", "attributes")).(map[string]any); ok {
				visitor.Attributes = attrs
			}
			res.Fragment.Visitor = visitor
			return nil
		})
		if err != nil {
			res.Errors = append(res.Errors, err)
		}
	}

	return res
}

// ParseAssignmentState reads the runtime state namespace. variationMap values
// may be objects carrying an id or bare ids.
func ParseAssignmentState(raw []byte) (*schema.AssignmentState, error) {
	v, err := object(raw)
	if err != nil {
		return nil, err
	}

	state := schema.NewAssignmentState()
	for _, id := range first(v, "activeExperimentIds", "activeExperiments").Array() {
		if s := id.String(); s != "" {
			state.ActiveExperimentIDs[s] = true
		}
	}
	first(v, "variationMap").ForEach(func(key, val gjson.Result) bool {
		vid := ""
		if val.IsObject() {
			vid = str(val, "id")
		} else if val.Type == gjson.String || val.Type == gjson.Number {
			vid = val.String()
		}
		if vid != "" {
			state.VariationMap[key.String()] = vid
		}
		return true
	})
	return state, nil
}

func object(raw []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, ErrMalformed
	}
	v := gjson.ParseBytes(raw)
	if !v.IsObject() {
		return gjson.Result{}, errors.New("namespace is not an object")
	}
	return v, nil
}
