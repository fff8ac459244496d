package resolver

import (
	"strings"
)

// Origin records why an identifier is a candidate.
type Origin string

const (
	OriginRuntime  Origin = "runtime"
	OriginObserved Origin = "observed"
	OriginExplicit Origin = "explicit"
	OriginKnown    Origin = "known"
)

// Candidate is an identifier queued for probing.
type Candidate struct {
	Identifier string
	Origin     Origin
}

// Candidates is an ordered, deduplicating candidate list.
type Candidates struct {
	items []Candidate
	seen  map[string]bool
}

// NewCandidates creates an empty candidate list.
func NewCandidates() *Candidates {
	return &Candidates{seen: make(map[string]bool)}
}

// Add appends an identifier unless it is already present. The anonymous
// identifier "" is accepted only from the runtime, which can answer it.
func (c *Candidates) Add(identifier string, origin Origin) bool {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" && origin != OriginRuntime {
		return false
	}
	if c.seen[identifier] {
		return false
	}
	c.seen[identifier] = true
	c.items = append(c.items, Candidate{Identifier: identifier, Origin: origin})
	return true
}

// Contains reports whether identifier is queued.
func (c *Candidates) Contains(identifier string) bool {
	return c.seen[strings.TrimSpace(identifier)]
}

// Items returns the candidates in priority order.
func (c *Candidates) Items() []Candidate {
	out := make([]Candidate, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of candidates.
func (c *Candidates) Len() int {
	return len(c.items)
}

// BuildCandidates orders identifiers: the runtime's own project (or the
// anonymous identifier when it exposes none), observed identifiers, explicit
// identifiers, then the known identifier if still absent.
func BuildCandidates(runtimeID string, hasRuntime bool, observed, explicit []string, known string) *Candidates {
	c := NewCandidates()
	if hasRuntime {
		c.Add(runtimeID, OriginRuntime)
	}
	for _, id := range observed {
		c.Add(id, OriginObserved)
	}
	for _, id := range explicit {
		c.Add(id, OriginExplicit)
	}
	if known != "" {
		c.Add(known, OriginKnown)
	}
	return c
}
