package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/optiscope/pkg/schema"
)

// first returns the first path of v that exists.
func first(v gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := v.Get(p); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// str returns the first existing path as a trimmed string.
func str(v gjson.Result, paths ...string) string {
	r := first(v, paths...)
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	return strings.TrimSpace(r.String())
}

// number returns the first existing path as a float, accepting numeric strings.
func number(v gjson.Result, paths ...string) *float64 {
	r := first(v, paths...)
	switch r.Type {
	case gjson.Number:
		n := r.Num
		return &n
	case gjson.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// stringList returns the first existing path as a list of strings.
func stringList(v gjson.Result, paths ...string) []string {
	r := first(v, paths...)
	if !r.IsArray() {
		return nil
	}
	var out []string
	for _, item := range r.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// value decodes a JSON value, also unwrapping JSON documents stored as strings.
func value(r gjson.Result) any {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	if r.Type == gjson.String && gjson.Valid(r.Str) {
		if inner := gjson.Parse(r.Str); inner.IsObject() || inner.IsArray() {
			return inner.Value()
		}
	}
	return r.Value()
}

// eachEntity visits an id-keyed object or an array of objects carrying an id.
func eachEntity(r gjson.Result, idPaths []string, fn func(id string, v gjson.Result)) {
	switch {
	case r.IsObject():
		r.ForEach(func(key, v gjson.Result) bool {
			id := key.String()
			if s := str(v, idPaths...); s != "" {
				id = s
			}
			if id != "" {
				fn(id, v)
			}
			return true
		})
	case r.IsArray():
		for _, v := range r.Array() {
			if id := str(v, idPaths...); id != "" {
				fn(id, v)
			}
		}
	}
}

var idPaths = []string{"id"}

// experimentFromJSON reads the experiment fields every structured shape shares.
func experimentFromJSON(id string, v gjson.Result, kind schema.Kind) schema.Experiment {
	raw := str(v, "status", "state")
	e := schema.Experiment{
		ID:              id,
		Name:            str(v, "name"),
		Key:             str(v, "key"),
		RawStatus:       raw,
		Status:          schema.NormalizeStatus(raw),
		Kind:            kind,
		Description:     str(v, "description"),
		TrafficPercent:  number(v, "percentageIncluded", "traffic_allocation", "trafficAllocation"),
		HoldbackPercent: number(v, "holdback"),
		AudienceIDs:     stringList(v, "audienceIds", "audience_ids"),
		URLTargeting:    value(first(v, "url_targeting", "urlTargeting")),
	}
	if e.AudienceIDs == nil {
		e.AudienceIDs = audienceIDsFromConditions(str(v, "audience_conditions"))
	}
	eachEntity(first(v, "variations"), []string{"id", "variation_id", "variationId"}, func(vid string, vv gjson.Result) {
		e.Variations = append(e.Variations, variationFromJSON(vid, vv))
	})
	for _, m := range first(v, "metrics").Array() {
		e.Metrics = append(e.Metrics, schema.Metric{
			EventID:          str(m, "event_id", "eventId"),
			Aggregator:       str(m, "aggregator"),
			Field:            str(m, "field"),
			Scope:            str(m, "scope"),
			WinningDirection: str(m, "winning_direction", "winningDirection"),
		})
	}
	return e
}

func variationFromJSON(id string, v gjson.Result) schema.Variation {
	return schema.Variation{
		ID:        id,
		Name:      str(v, "name"),
		Key:       str(v, "key"),
		Weight:    number(v, "weight"),
		IsControl: first(v, "isControl", "is_control").Bool(),
	}
}

var audienceIDPattern = regexp.MustCompile(`"audience_id"\s*:\s*"?(\d+)`)

// audienceIDsFromConditions pulls audience ids out of a serialized
// condition tree such as ["and", {"audience_id": 123}].
func audienceIDsFromConditions(conditions string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range audienceIDPattern.FindAllStringSubmatch(conditions, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func audienceFromJSON(id string, v gjson.Result) schema.Audience {
	return schema.Audience{
		ID:         id,
		Name:       str(v, "name"),
		Conditions: value(first(v, "conditions")),
	}
}

func pageFromJSON(id string, v gjson.Result) schema.Page {
	return schema.Page{
		ID:       id,
		Name:     str(v, "name"),
		APIName:  str(v, "apiName", "api_name"),
		Category: str(v, "category"),
		EditURL:  str(v, "editUrl", "edit_url"),
	}
}

func eventFromJSON(id string, v gjson.Result) schema.Event {
	return schema.Event{
		ID:        id,
		Name:      str(v, "name"),
		Key:       str(v, "key"),
		APIName:   str(v, "apiName", "api_name"),
		Category:  str(v, "category"),
		EventType: str(v, "eventType", "event_type"),
	}
}

// keyedData reads the runtime "data" layout: scalars plus id-keyed maps of
// experiments, campaigns, audiences, pages and events.
func keyedData(v gjson.Result) schema.Fragment {
	f := schema.Fragment{
		Identifier: str(v, "projectId", "project_id"),
		AccountID:  str(v, "accountId", "account_id"),
		Revision:   str(v, "revision"),
	}
	eachEntity(v.Get("experiments"), idPaths, func(id string, e gjson.Result) {
		f.Experiments = append(f.Experiments, experimentFromJSON(id, e, schema.KindABTest))
	})
	eachEntity(v.Get("campaigns"), idPaths, func(id string, e gjson.Result) {
		f.Experiments = append(f.Experiments, experimentFromJSON(id, e, schema.KindCampaign))
	})
	eachEntity(v.Get("audiences"), idPaths, func(id string, a gjson.Result) {
		f.Audiences = append(f.Audiences, audienceFromJSON(id, a))
	})
	eachEntity(v.Get("pages"), idPaths, func(id string, p gjson.Result) {
		f.Pages = append(f.Pages, pageFromJSON(id, p))
	})
	eachEntity(v.Get("events"), idPaths, func(id string, e gjson.Result) {
		f.Events = append(f.Events, eventFromJSON(id, e))
	})
	return f
}
