package query

import (
	"slices"
	"strings"
)

// Entity retention policies across conversation turns.
const (
	// PolicyAccumulate keeps every entity mentioned so far.
	PolicyAccumulate = "accumulate"

	// PolicyReplace keeps only the most recent turn that mentioned any
	// entity. Turns without mentions never clear the state.
	PolicyReplace = "replace"
)

// Entities is one turn's extraction outcome.
type Entities struct {
	Brands []string
	Models []string
}

// Empty reports whether the turn mentioned nothing.
func (e Entities) Empty() bool {
	return len(e.Brands) == 0 && len(e.Models) == 0
}

// Session tracks which products a conversation is about. It is not safe
// for concurrent use; each conversation owns one Session.
type Session struct {
	policy string
	brands []string
	models []string
}

// NewSession creates a Session with the given retention policy.
func NewSession(policy string) *Session {
	if policy != PolicyReplace {
		policy = PolicyAccumulate
	}
	return &Session{policy: policy}
}

// Observe folds one turn's extracted entities into the session state.
// An empty extraction leaves the state untouched under either policy, so
// follow-up questions keep the products already under discussion.
func (s *Session) Observe(e Entities) {
	if e.Empty() {
		return
	}
	if s.policy == PolicyReplace {
		s.brands = nil
		s.models = nil
	}
	s.brands = mergeLower(s.brands, e.Brands)
	s.models = mergeLower(s.models, e.Models)
}

// Filter returns the retrieval filter for the current state.
func (s *Session) Filter() Filter {
	return Filter{
		Brands: slices.Clone(s.brands),
		Models: slices.Clone(s.models),
	}
}

// Empty reports whether no entity has ever been mentioned.
func (s *Session) Empty() bool {
	return len(s.brands) == 0 && len(s.models) == 0
}

func mergeLower(existing, incoming []string) []string {
	for _, v := range incoming {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || slices.Contains(existing, v) {
			continue
		}
		existing = append(existing, v)
	}
	return existing
}
