package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/optiscope/pkg/schema"
)

// idSet tracks ids already collected, by Fragment.IDs collection name.
type idSet map[string]map[string]bool

func (s idSet) has(collection, id string) bool {
	return s[collection][id]
}

// Strategy is one heuristic pass over script text. Strategies are pure: they
// read the text and the ids collected so far, and return what they found.
type Strategy struct {
	Name string
	Run  func(text string, seen idSet) (schema.Fragment, error)
}

// Strategies is the heuristic chain, tried in order on the original text.
var Strategies = []Strategy{
	{Name: "scalars", Run: scanScalars},
	{Name: "experiment_array", Run: scanExperimentArrays},
	{Name: "triples", Run: scanTriples},
	{Name: "keyed_sections", Run: scanKeyedSections},
	{Name: "generic", Run: scanGeneric},
}

// ParseText runs every strategy over text. A panicking or failing strategy
// is recorded and the chain continues. Results are deduplicated by id with
// the earliest strategy winning.
func ParseText(text string) (schema.Fragment, []error) {
	var out schema.Fragment
	var errs []error
	seen := idSet(out.IDs())
	seen["variations"] = map[string]bool{}

	for _, s := range Strategies {
		var frag schema.Fragment
		err := guard("heuristic:"+s.Name, func() error {
			var err error
			frag, err = s.Run(text, seen)
			return err
		})
		if err != nil {
			errs = append(errs, err)
		}
		absorb(&out, frag, seen)
	}
	return out, errs
}

// absorb appends entities whose ids are not yet in seen and fills empty scalars.
func absorb(dst *schema.Fragment, src schema.Fragment, seen idSet) {
	if dst.Identifier == "" {
		dst.Identifier = src.Identifier
	}
	if dst.AccountID == "" {
		dst.AccountID = src.AccountID
	}
	if dst.Revision == "" {
		dst.Revision = src.Revision
	}
	for _, e := range src.Experiments {
		if !seen["experiments"][e.ID] {
			seen["experiments"][e.ID] = true
			dst.Experiments = append(dst.Experiments, e)
			for _, v := range e.Variations {
				seen["variations"][v.ID] = true
			}
		}
	}
	for _, a := range src.Audiences {
		if !seen["audiences"][a.ID] {
			seen["audiences"][a.ID] = true
			dst.Audiences = append(dst.Audiences, a)
		}
	}
	for _, p := range src.Pages {
		if !seen["pages"][p.ID] {
			seen["pages"][p.ID] = true
			dst.Pages = append(dst.Pages, p)
		}
	}
	for _, e := range src.Events {
		if !seen["events"][e.ID] {
			seen["events"][e.ID] = true
			dst.Events = append(dst.Events, e)
		}
	}
}

// quotedValue matches a double-quoted JSON string body of bounded length.
const quotedValue = `"((?:[^"\\]|\\.){0,200})"`

var (
	projectIDPattern = regexp.MustCompile(`["']?projectId["']?\s*[:=]\s*["']?(\d+)`)
	accountIDPattern = regexp.MustCompile(`["']?accountId["']?\s*[:=]\s*["']?(\d+)`)
	revisionPattern  = regexp.MustCompile(`["']?revision["']?\s*[:=]\s*["']?(\d+)`)
)

func scanScalars(text string, _ idSet) (schema.Fragment, error) {
	var f schema.Fragment
	if m := projectIDPattern.FindStringSubmatch(text); m != nil {
		f.Identifier = m[1]
	}
	if m := accountIDPattern.FindStringSubmatch(text); m != nil {
		f.AccountID = m[1]
	}
	if m := revisionPattern.FindStringSubmatch(text); m != nil {
		f.Revision = m[1]
	}
	return f, nil
}

var experimentArrayAnchor = regexp.MustCompile(`["']?experiments["']?\s*:\s*\[`)

// scanExperimentArrays cuts every experiments:[...] span by bracket matching
// and parses it strictly. A span that is not valid JSON is reported as a
// ParseError; later strategies still see the text.
func scanExperimentArrays(text string, _ idSet) (schema.Fragment, error) {
	var f schema.Fragment
	var parseErr error

	for _, loc := range experimentArrayAnchor.FindAllStringIndex(text, -1) {
		open := loc[1] - 1
		end := matchBalanced(text, open)
		if end < 0 {
			parseErr = &ParseError{Source: "heuristic:experiment_array", Err: ErrMalformed}
			continue
		}
		span := text[open : end+1]
		if !gjson.Valid(span) {
			parseErr = &ParseError{Source: "heuristic:experiment_array", Err: ErrMalformed}
			continue
		}
		for _, item := range gjson.Parse(span).Array() {
			if id := str(item, "id"); id != "" {
				f.Experiments = append(f.Experiments, experimentFromJSON(id, item, schema.KindABTest))
			}
		}
	}
	return f, parseErr
}

// tripleObject is an object body up to its first nested brace. Keys are
// matched inside it in any order.
var (
	tripleObject = regexp.MustCompile(`\{[^{}]{1,600}`)
	tripleID     = regexp.MustCompile(`[{,]\s*["']?id["']?\s*:\s*["']?(\d+)`)
	tripleName   = regexp.MustCompile(`[{,]\s*["']?name["']?\s*:\s*` + quotedValue)
	tripleStatus = regexp.MustCompile(`[{,]\s*["']?status["']?\s*:\s*"(\w{1,40})"`)
)

// scanTriples finds objects carrying id, name and status anywhere in the text.
func scanTriples(text string, seen idSet) (schema.Fragment, error) {
	var f schema.Fragment
	local := map[string]bool{}
	for _, span := range tripleObject.FindAllString(text, -1) {
		id := tripleID.FindStringSubmatch(span)
		name := tripleName.FindStringSubmatch(span)
		status := tripleStatus.FindStringSubmatch(span)
		if id == nil || name == nil || status == nil {
			continue
		}
		if seen.has("experiments", id[1]) || local[id[1]] {
			continue
		}
		local[id[1]] = true
		f.Experiments = append(f.Experiments, schema.Experiment{
			ID:        id[1],
			Name:      unescape(name[1]),
			RawStatus: status[1],
			Status:    schema.NormalizeStatus(status[1]),
			Kind:      schema.KindABTest,
		})
	}
	return f, nil
}

var sectionNames = []string{"campaigns", "audiences", "pages", "events"}

var sectionAnchors = func() map[string]*regexp.Regexp {
	out := map[string]*regexp.Regexp{}
	for _, name := range sectionNames {
		out[name] = regexp.MustCompile(`["']?` + name + `["']?\s*:\s*\{`)
	}
	return out
}()

var sectionEntryPattern = regexp.MustCompile(`"(\d+)"\s*:\s*\{[^{}]{0,500}?"name"\s*:\s*` + quotedValue)

// scanKeyedSections locates id-keyed sections, cuts each by balanced braces
// and reads it strictly when possible, otherwise with the entry pattern
// applied to that span only.
func scanKeyedSections(text string, _ idSet) (schema.Fragment, error) {
	var f schema.Fragment
	for _, name := range sectionNames {
		for _, loc := range sectionAnchors[name].FindAllStringIndex(text, -1) {
			open := loc[1] - 1
			end := matchBalanced(text, open)
			if end < 0 {
				continue
			}
			span := text[open : end+1]

			if gjson.Valid(span) {
				section := keyedData(gjson.Parse(`{"` + name + `":` + span + `}`))
				f.Experiments = append(f.Experiments, section.Experiments...)
				f.Audiences = append(f.Audiences, section.Audiences...)
				f.Pages = append(f.Pages, section.Pages...)
				f.Events = append(f.Events, section.Events...)
				continue
			}

			for _, m := range sectionEntryPattern.FindAllStringSubmatch(span, -1) {
				id, entityName := m[1], unescape(m[2])
				switch name {
				case "campaigns":
					f.Experiments = append(f.Experiments, schema.Experiment{
						ID: id, Name: entityName, Kind: schema.KindCampaign, Status: schema.StatusUnknown,
					})
				case "audiences":
					f.Audiences = append(f.Audiences, schema.Audience{ID: id, Name: entityName})
				case "pages":
					f.Pages = append(f.Pages, schema.Page{ID: id, Name: entityName})
				case "events":
					f.Events = append(f.Events, schema.Event{ID: id, Name: entityName})
				}
			}
		}
	}
	return f, nil
}

var (
	genericKeyedPattern = regexp.MustCompile(`"(\d{8,})"\s*:\s*\{\s*"name"\s*:\s*` + quotedValue)
	genericIDPattern    = regexp.MustCompile(`\{\s*"?id"?\s*:\s*"?(\d{8,})"?\s*,\s*"?name"?\s*:\s*` + quotedValue)
	genericContext      = regexp.MustCompile(`(?i)\b(experiment|variation|campaign|test)`)
)

// genericContextWindow is how far back the generic strategy looks for an
// experiment-related word before accepting an id/name pair. Words must start
// on a word boundary, so "latest" does not count as "test".
const genericContextWindow = 100

// scanGeneric accepts long numeric id + name pairs only when experiment-
// related vocabulary appears just before them. Ids already known as any
// entity or variation are never reused.
func scanGeneric(text string, seen idSet) (schema.Fragment, error) {
	var f schema.Fragment
	local := map[string]bool{}

	for _, pattern := range []*regexp.Regexp{genericKeyedPattern, genericIDPattern} {
		for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
			start := m[0]
			id := text[m[2]:m[3]]
			name := unescape(text[m[4]:m[5]])

			if local[id] || seen.has("experiments", id) || seen.has("variations", id) ||
				seen.has("pages", id) || seen.has("events", id) || seen.has("audiences", id) {
				continue
			}
			from := start - genericContextWindow
			if from < 0 {
				from = 0
			}
			if !genericContext.MatchString(text[from:start]) {
				continue
			}
			local[id] = true
			f.Experiments = append(f.Experiments, schema.Experiment{
				ID:     id,
				Name:   name,
				Kind:   schema.KindABTest,
				Status: schema.StatusUnknown,
			})
		}
	}
	return f, nil
}

// unescape decodes JSON string escapes, returning the input unchanged when
// it is not a valid quoted body.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}
