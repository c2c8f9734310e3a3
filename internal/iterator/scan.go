package iterator

import (
	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/pkg/rdf"
)

// Scan matches one triple pattern against a backend cursor. Its entire
// resumable state is the backend's opaque continuation token plus an
// exhausted flag — the cursor itself is never serialized, only reopened
// against the backend with that token.
type Scan struct {
	backend   ScanBackend
	pattern   algebra.TriplePattern
	cursor    Cursor
	cont      []byte
	exhausted bool
}

// NewScan builds a fresh Scan over pattern.
func NewScan(backend ScanBackend, pattern algebra.TriplePattern) *Scan {
	return &Scan{backend: backend, pattern: pattern}
}

func (s *Scan) Kind() Kind { return KindScan }

func (s *Scan) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	if s.exhausted {
		return nil, Done, nil
	}
	if budget.Exceeded() {
		return nil, Suspended, nil
	}
	if s.cursor == nil {
		cur, err := s.backend.Search(patternTerm(s.pattern.Subject), patternTerm(s.pattern.Predicate), patternTerm(s.pattern.Object), s.cont)
		if err != nil {
			return nil, Done, err
		}
		s.cursor = cur
	}
	for {
		triple, ok, err := s.cursor.Next()
		if err != nil {
			_ = s.cursor.Close()
			return nil, Done, err
		}
		if !ok {
			_ = s.cursor.Close()
			s.exhausted = true
			return nil, Done, nil
		}
		s.cont = s.cursor.Continuation()
		binding, ok := unify(s.pattern, triple)
		if !ok {
			continue
		}
		return binding, Emitted, nil
	}
}

// patternTerm returns nil (the "unbound" wildcard) for a variable position.
func patternTerm(t rdf.Term) rdf.Term {
	if _, ok := t.(*rdf.Variable); ok {
		return nil
	}
	return t
}

// unify binds pattern's variables against triple, rejecting a match if a
// variable repeated within the pattern (e.g. ?x <p> ?x) is bound to two
// different terms.
func unify(pattern algebra.TriplePattern, triple rdf.Triple) (*rdf.Binding, bool) {
	b := rdf.NewBinding()
	pairs := [][2]rdf.Term{
		{pattern.Subject, triple.Subject},
		{pattern.Predicate, triple.Predicate},
		{pattern.Object, triple.Object},
	}
	for _, pair := range pairs {
		v, ok := pair[0].(*rdf.Variable)
		if !ok {
			continue
		}
		if existing, bound := b.Vars[v.Name]; bound {
			if !existing.Equals(pair[1]) {
				return nil, false
			}
			continue
		}
		b.Set(v.Name, pair[1])
	}
	return b, true
}

func (s *Scan) Dump() *PlanNode {
	sw := &writer{}
	encodeTriplePattern(sw, s.pattern)

	mw := &writer{}
	mw.bool(s.cont != nil)
	mw.bytes(s.cont)
	mw.bool(s.exhausted)

	return &PlanNode{Kind: KindScan, Static: sw.buf, Mutable: mw.buf}
}

func loadScan(b *Builder, node *PlanNode) (Operator, error) {
	sr := newReader(node.Static)
	pattern, err := decodeTriplePattern(sr)
	if err != nil {
		return nil, err
	}
	mr := newReader(node.Mutable)
	hasCont, err := mr.boolean()
	if err != nil {
		return nil, err
	}
	cont, err := mr.bytes()
	if err != nil {
		return nil, err
	}
	exhausted, err := mr.boolean()
	if err != nil {
		return nil, err
	}
	s := &Scan{backend: b.Backend, pattern: pattern, exhausted: exhausted}
	if hasCont {
		s.cont = append([]byte(nil), cont...)
	}
	return s, nil
}
