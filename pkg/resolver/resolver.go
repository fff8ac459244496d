// Package resolver drives configuration resolution: it decides which project
// identifiers to probe, runs the source chain for each, parses what comes back
// and merges everything into one schema.Configuration.
//
// Resolution never fails. Every fetch or parse problem is recorded on the
// Configuration's Errors and the next candidate is tried.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/optiscope/internal/logger"
	"github.com/jmylchreest/optiscope/pkg/discovery"
	"github.com/jmylchreest/optiscope/pkg/fetcher"
	"github.com/jmylchreest/optiscope/pkg/merge"
	"github.com/jmylchreest/optiscope/pkg/parser"
	"github.com/jmylchreest/optiscope/pkg/schema"
	"github.com/jmylchreest/optiscope/pkg/source"
)

// ErrNoFetcher is returned by New when neither a fetcher nor explicit sources are given.
var ErrNoFetcher = errors.New("resolver needs a fetcher or explicit sources")

// State is a step of the resolution state machine.
type State string

const (
	StateInit             State = "init"
	StateProbeIdentifiers State = "probe_identifiers"
	StateFetchCandidate   State = "fetch_candidate"
	StateParseCandidate   State = "parse_candidate"
	StateMergeResult      State = "merge_result"
	StateDone             State = "done"
)

// Attempt is one source tried for one identifier.
type Attempt struct {
	Source      schema.SourceKind
	URL         string
	Experiments int
	Err         error
}

// Pass is the trace of probing one candidate identifier.
type Pass struct {
	Candidate Candidate
	Attempts  []Attempt
	States    []State
	// Yielded is the first source that produced experiments, or "".
	Yielded schema.SourceKind

	fragments   []sourcedFragment
	errors      []schema.ResolutionError
	assignments *schema.AssignmentState
	payloadURLs map[schema.SourceKind]string
}

type sourcedFragment struct {
	fragment schema.Fragment
	source   schema.SourceKind
}

func (p *Pass) enter(s State) {
	p.States = append(p.States, s)
}

// productive reports whether the pass yielded any entity at all.
func (p *Pass) productive() bool {
	for _, f := range p.fragments {
		if !f.fragment.Empty() {
			return true
		}
	}
	return false
}

// Input is everything known about a page before resolution.
type Input struct {
	// Observed identifiers from page markup, in document order.
	Observed []discovery.Observation
	// Identifiers requested explicitly, probed after observed ones.
	Identifiers []string
	// Runtime captured by a rendering fetcher, or nil.
	Runtime *fetcher.Runtime
	// Credential for the management REST API. Empty skips that source.
	Credential string
}

// Result is the outcome of one resolution.
type Result struct {
	ID            string
	Configuration *schema.Configuration
	Passes        []Pass
	States        []State
}

// Resolver resolves experiment configuration. It holds no per-resolution
// state and is safe for concurrent use.
type Resolver struct {
	config  Config
	sources []source.Source
}

// New creates a Resolver. Network sources fetch through f; f may be nil only
// when WithSources supplies the whole chain.
func New(f fetcher.Fetcher, opts ...Option) (*Resolver, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := schema.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid resolver config: %w", err)
	}

	sources := cfg.Sources
	if len(sources) == 0 {
		if f == nil {
			return nil, ErrNoFetcher
		}
		sources = []source.Source{
			source.NewRuntime(),
			source.NewREST(f, cfg.REST),
			source.NewSnippet(f, cfg.Snippet),
			source.NewDatafile(f, cfg.Datafile),
		}
	}

	return &Resolver{config: cfg, sources: sources}, nil
}

// Config returns the resolver configuration.
func (r *Resolver) Config() Config {
	return r.config
}

// Resolve probes every candidate identifier and merges the results.
func (r *Resolver) Resolve(ctx context.Context, in Input) *Result {
	res := &Result{ID: uuid.NewString()}
	log := logger.FromContext(ctx).With("resolution_id", res.ID)
	ctx = logger.NewContext(ctx, log)
	res.States = append(res.States, StateInit)

	hasRuntime := in.Runtime.Has("optimizely.")
	runtimeID := source.RuntimeProjectID(in.Runtime)

	observed := make([]string, 0, len(in.Observed))
	for _, o := range in.Observed {
		observed = append(observed, o.Identifier)
	}
	candidates := BuildCandidates(runtimeID, hasRuntime, observed, in.Identifiers, r.config.KnownIdentifier)

	res.States = append(res.States, StateProbeIdentifiers)
	items := candidates.Items()
	log.Debug("probing identifiers", "candidates", len(items), "runtime", hasRuntime)

	res.Passes = make([]Pass, len(items))
	var g errgroup.Group
	g.SetLimit(r.config.Concurrency)
	for i, c := range items {
		g.Go(func() error {
			res.Passes[i] = r.probe(ctx, c, in)
			return nil
		})
	}
	_ = g.Wait()

	res.States = append(res.States, StateMergeResult)
	res.Configuration = r.assemble(in, res.Passes)
	res.States = append(res.States, StateDone)

	log.Info("resolution complete",
		"identifier", res.Configuration.PrimaryIdentifier,
		"experiments", len(res.Configuration.Experiments),
		"errors", len(res.Configuration.Errors))
	return res
}

// probe runs the source chain for one identifier in priority order, stopping
// after the first source whose fragment contains an experiment.
func (r *Resolver) probe(ctx context.Context, c Candidate, in Input) Pass {
	log := logger.FromContext(ctx).With("identifier", c.Identifier)
	pass := Pass{Candidate: c, payloadURLs: map[schema.SourceKind]string{}}
	req := source.Request{Identifier: c.Identifier, Runtime: in.Runtime, Credential: in.Credential}

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			pass.record(src.Kind(), schema.ErrorKindFetch, err)
			break
		}

		pass.enter(StateFetchCandidate)
		payload, err := source.Fetch(ctx, src, req)
		attempt := Attempt{Source: src.Kind(), URL: payload.URL, Err: err}
		if err != nil {
			if !errors.Is(err, source.ErrSkipped) {
				log.Debug("source failed", "source", src.Kind(), "error", err)
				pass.recordFetch(src.Kind(), err)
				pass.Attempts = append(pass.Attempts, attempt)
			}
			continue
		}
		for _, pe := range payload.PartErrors {
			pass.recordFetch(src.Kind(), pe)
		}
		if payload.URL != "" {
			pass.payloadURLs[src.Kind()] = payload.URL
		}

		pass.enter(StateParseCandidate)
		frag := r.parse(&pass, payload)
		// The runtime vouches for its own project id even when it carries no entities.
		switch {
		case frag.Empty() && src.Kind() != schema.SourceRuntime:
			frag.Identifier = ""
		case c.Identifier != "":
			frag.Identifier = c.Identifier
		}
		attempt.Experiments = len(frag.Experiments)
		pass.Attempts = append(pass.Attempts, attempt)
		pass.fragments = append(pass.fragments, sourcedFragment{fragment: frag, source: src.Kind()})

		if len(frag.Experiments) > 0 {
			pass.Yielded = src.Kind()
			log.Debug("source yielded experiments", "source", src.Kind(), "experiments", len(frag.Experiments))
			break
		}
	}
	return pass
}

// parse dispatches a payload to its parser and records parser errors on the pass.
func (r *Resolver) parse(pass *Pass, p source.Payload) schema.Fragment {
	switch p.Kind {
	case schema.SourceRuntime:
		rr := parser.ParseRuntime(p.Parts, p.NamespaceErrors)
		for _, err := range rr.Errors {
			pass.recordParse(p.Kind, err)
		}
		if rr.Assignments != nil {
			pass.assignments = rr.Assignments
		}
		return rr.Fragment

	case schema.SourceRESTAPI:
		frag, errs := parser.ParseREST(p.Parts)
		for _, err := range errs {
			pass.recordParse(p.Kind, err)
		}
		return frag

	case schema.SourceDatafile:
		frag, err := parser.ParseDatafile(p.Body)
		if err == nil {
			return frag
		}
		pass.recordParse(p.Kind, err)
		var pe *parser.ParseError
		if !errors.As(err, &pe) {
			return frag
		}
		frag, errs := parser.ParseText(string(p.Body))
		for _, err := range errs {
			pass.recordParse(p.Kind, err)
		}
		return frag

	default:
		frag, errs := parser.ParseText(string(p.Body))
		for _, err := range errs {
			pass.recordParse(p.Kind, err)
		}
		return frag
	}
}

func (p *Pass) recordFetch(kind schema.SourceKind, err error) {
	if errors.Is(err, source.ErrUnauthorized) {
		p.record(kind, schema.ErrorKindUnauthorized, err)
		return
	}
	p.record(kind, schema.ErrorKindFetch, err)
}

func (p *Pass) recordParse(kind schema.SourceKind, err error) {
	var ee *parser.ExtractionError
	if errors.As(err, &ee) {
		p.errors = append(p.errors, schema.ResolutionError{Source: ee.Source, Kind: schema.ErrorKindExtraction, Message: err.Error()})
		return
	}
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		p.errors = append(p.errors, schema.ResolutionError{Source: pe.Source, Kind: schema.ErrorKindParse, Message: err.Error()})
		return
	}
	p.record(kind, schema.ErrorKindParse, err)
}

func (p *Pass) record(kind schema.SourceKind, ek schema.ErrorKind, err error) {
	p.errors = append(p.errors, schema.ResolutionError{Source: string(kind), Kind: ek, Message: err.Error()})
}

// assemble merges every pass in candidate order and derives the
// configuration-level fields.
func (r *Resolver) assemble(in Input, passes []Pass) *schema.Configuration {
	cfg := schema.NewConfiguration()

	var assignments *schema.AssignmentState
	for i := range passes {
		p := &passes[i]
		for _, sf := range p.fragments {
			merge.Merge(cfg, sf.fragment, sf.source)
		}
		cfg.Errors = append(cfg.Errors, p.errors...)
		if assignments == nil && p.assignments != nil {
			assignments = p.assignments
		}
	}
	merge.ApplyAssignments(cfg, assignments)

	primary := primaryPass(passes)
	if primary != nil {
		cfg.PrimaryIdentifier = primary.Candidate.Identifier
		cfg.Source = primary.Yielded
		if cfg.Source == "" && len(primary.fragments) > 0 {
			cfg.Source = primary.fragments[0].source
		}
		cfg.DatafileURL = primary.payloadURLs[schema.SourceDatafile]
	}
	cfg.LoadedVia = loadedVia(primary, in.Observed)

	k := r.config.KnownIdentifier
	cfg.IsKnownProject = k != "" && contains(cfg.Identifiers, k)

	for _, o := range in.Observed {
		if o.ScriptURL != "" && !contains(cfg.SnippetURLs, o.ScriptURL) {
			cfg.SnippetURLs = append(cfg.SnippetURLs, o.ScriptURL)
		}
	}
	if len(cfg.SnippetURLs) == 0 && primary != nil {
		if u := primary.payloadURLs[schema.SourceSnippet]; u != "" {
			cfg.SnippetURLs = []string{u}
		}
	}

	cfg.Errors = append(cfg.Errors, schema.Validate(cfg)...)
	return cfg
}

// primaryPass picks the first pass that yielded experiments, then the first
// that yielded anything, then the first page-sourced candidate.
func primaryPass(passes []Pass) *Pass {
	for i := range passes {
		if passes[i].Yielded != "" {
			return &passes[i]
		}
	}
	for i := range passes {
		if passes[i].productive() {
			return &passes[i]
		}
	}
	for i := range passes {
		if passes[i].Candidate.Origin != OriginKnown && passes[i].Candidate.Identifier != "" {
			return &passes[i]
		}
	}
	return nil
}

func loadedVia(primary *Pass, observed []discovery.Observation) schema.LoadedVia {
	if primary == nil {
		return schema.LoadedViaUnknown
	}
	for _, o := range observed {
		if o.Identifier == primary.Candidate.Identifier && o.Via != "" {
			return o.Via
		}
	}
	switch {
	case primary.Candidate.Origin == OriginKnown:
		return schema.LoadedViaKnownIdentifier
	case primary.Yielded == schema.SourceRESTAPI:
		return schema.LoadedViaRESTAPI
	case primary.Candidate.Origin == OriginRuntime:
		return schema.LoadedViaDirect
	default:
		return schema.LoadedViaUnknown
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
