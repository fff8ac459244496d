package parser

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/optiscope/pkg/schema"
)

// ParseDatafile reads a JSON datafile. Both the SDK layout (arrays with
// trafficAllocation ranges) and the keyed web layout are accepted. A body
// that is not a JSON object yields a *ParseError.
func ParseDatafile(body []byte) (frag schema.Fragment, err error) {
	if !gjson.ValidBytes(body) {
		return schema.Fragment{}, &ParseError{Source: string(schema.SourceDatafile), Err: ErrMalformed}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return schema.Fragment{}, &ParseError{Source: string(schema.SourceDatafile), Err: fmt.Errorf("%w: top level is not an object", ErrMalformed)}
	}

	err = guard(string(schema.SourceDatafile), func() error {
		if root.Get("experiments").IsObject() || root.Get("campaigns").IsObject() {
			frag = keyedData(root)
			return nil
		}
		frag = sdkDatafile(root)
		return nil
	})
	return frag, err
}

// sdkDatafile reads the array-based SDK datafile layout.
func sdkDatafile(root gjson.Result) schema.Fragment {
	f := schema.Fragment{
		Identifier: str(root, "projectId"),
		AccountID:  str(root, "accountId"),
		Revision:   str(root, "revision"),
	}

	seen := map[string]bool{}
	addExperiment := func(v gjson.Result, kind schema.Kind) {
		id := str(v, "id")
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		f.Experiments = append(f.Experiments, datafileExperiment(id, v, kind))
	}

	for _, e := range root.Get("experiments").Array() {
		addExperiment(e, schema.KindABTest)
	}
	for _, g := range root.Get("groups").Array() {
		for _, e := range g.Get("experiments").Array() {
			addExperiment(e, schema.KindABTest)
		}
	}
	for _, r := range root.Get("rollouts").Array() {
		for _, e := range r.Get("experiments").Array() {
			addExperiment(e, schema.KindFeatureFlag)
		}
	}

	audienceSeen := map[string]bool{}
	for _, list := range []string{"typedAudiences", "audiences"} {
		for _, a := range root.Get(list).Array() {
			id := str(a, "id")
			if id == "" || audienceSeen[id] {
				continue
			}
			audienceSeen[id] = true
			f.Audiences = append(f.Audiences, audienceFromJSON(id, a))
		}
	}

	for _, e := range root.Get("events").Array() {
		if id := str(e, "id"); id != "" {
			f.Events = append(f.Events, eventFromJSON(id, e))
		}
	}

	for _, ff := range root.Get("featureFlags").Array() {
		id := str(ff, "id")
		if id == "" {
			continue
		}
		feature := schema.Feature{
			ID:            id,
			Key:           str(ff, "key"),
			Name:          str(ff, "name"),
			ExperimentIDs: stringList(ff, "experimentIds"),
		}
		for _, v := range ff.Get("variables").Array() {
			if k := str(v, "key"); k != "" {
				feature.Variables = append(feature.Variables, k)
			}
		}
		f.Features = append(f.Features, feature)
	}
	return f
}

// datafileExperiment reads an SDK experiment. Variation weights and the
// traffic share come from trafficAllocation, whose endOfRange values are
// cumulative basis points (0-10000); they are converted to percentages here.
func datafileExperiment(id string, v gjson.Result, kind schema.Kind) schema.Experiment {
	e := experimentFromJSON(id, v, kind)

	weights := map[string]float64{}
	var prev, allocated float64
	for _, slot := range v.Get("trafficAllocation").Array() {
		end := slot.Get("endOfRange").Float()
		span := end - prev
		prev = end
		if span <= 0 {
			continue
		}
		entity := str(slot, "entityId")
		if entity == "" {
			continue
		}
		weights[entity] += span
		allocated += span
	}
	if len(weights) > 0 {
		traffic := allocated / 100
		e.TrafficPercent = &traffic
	}
	for i := range e.Variations {
		if w, ok := weights[e.Variations[i].ID]; ok {
			pct := w / 100
			e.Variations[i].Weight = &pct
		}
	}
	for _, vv := range v.Get("variations").Array() {
		for _, variable := range vv.Get("variables").Array() {
			if vid := str(variable, "id"); vid != "" && !contains(e.Variables, vid) {
				e.Variables = append(e.Variables, vid)
			}
		}
	}
	return e
}

// ParseREST reads the management API listings. A listing that is not a JSON
// array is reported as a *ParseError and the other listings are still read.
func ParseREST(parts map[string][]byte) (schema.Fragment, []error) {
	var f schema.Fragment
	var errs []error

	for _, listing := range []string{"experiments", "audiences", "pages", "events"} {
		body, ok := parts[listing]
		if !ok {
			continue
		}
		src := string(schema.SourceRESTAPI) + ":" + listing
		if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
			errs = append(errs, &ParseError{Source: src, Err: ErrMalformed})
			continue
		}
		items := gjson.ParseBytes(body).Array()

		err := guard(src, func() error {
			for _, item := range items {
				id := str(item, "id")
				if id == "" {
					continue
				}
				switch listing {
				case "experiments":
					f.Experiments = append(f.Experiments, experimentFromJSON(id, item, restKind(str(item, "type"))))
				case "audiences":
					f.Audiences = append(f.Audiences, audienceFromJSON(id, item))
				case "pages":
					f.Pages = append(f.Pages, pageFromJSON(id, item))
				case "events":
					f.Events = append(f.Events, eventFromJSON(id, item))
				}
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return f, errs
}

func restKind(t string) schema.Kind {
	switch t {
	case "personalization":
		return schema.KindCampaign
	case "feature", "feature_test", "feature_rollout":
		return schema.KindFeatureFlag
	default:
		return schema.KindABTest
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
