package entity

import "strings"

// ElementQuery describes one logical element through an ordered list of
// candidate selectors. Earlier candidates win over later ones.
type ElementQuery struct {
	Name       string
	Candidates []Selector
	Scope      *ElementQuery
	Index      int
}

func Query(name string, candidates ...Selector) ElementQuery {
	return ElementQuery{Name: name, Candidates: candidates}
}

// MustQuery panics on a malformed query. Use it for queries declared at
// package level or in page adapter constructors.
func MustQuery(name string, candidates ...Selector) ElementQuery {
	q := Query(name, candidates...)
	if err := q.Validate(); err != nil {
		panic(err)
	}
	return q
}

func (q ElementQuery) Within(scope ElementQuery) ElementQuery {
	q.Scope = &scope
	return q
}

func (q ElementQuery) Nth(i int) ElementQuery {
	q.Index = i
	return q
}

func (q ElementQuery) Validate() error {
	if len(q.Candidates) == 0 {
		return NewProgrammerError("query %q has no candidates", q.Label())
	}
	if q.Index < 0 {
		return NewProgrammerError("query %q has negative index %d", q.Label(), q.Index)
	}
	for _, c := range q.Candidates {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if q.Scope != nil {
		if err := q.Scope.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (q ElementQuery) Label() string {
	if q.Name != "" {
		return q.Name
	}
	if len(q.Candidates) > 0 {
		return q.Candidates[0].String()
	}
	return "<empty query>"
}

func (q ElementQuery) String() string {
	parts := make([]string, len(q.Candidates))
	for i, c := range q.Candidates {
		parts[i] = c.String()
	}
	s := q.Label() + " [" + strings.Join(parts, " | ") + "]"
	if q.Scope != nil {
		s += " within " + q.Scope.Label()
	}
	return s
}

// ElementHandle is a provider-owned reference to a DOM node.
type ElementHandle interface {
	String() string
}

// ResolvedElement is valid only until the next DOM mutation. Resolve again
// before every action instead of holding on to it.
type ResolvedElement struct {
	Handle         ElementHandle
	CandidateIndex int
	Selector       Selector
	Query          string
}
