package iterator

import (
	"github.com/webpreempt/sage/internal/sparqlerr"
	"github.com/webpreempt/sage/pkg/rdf"
)

// maxDistinctSeen bounds the in-memory seen-set Distinct keeps, per the
// distinct-overflow abort reason: an unbounded set would defeat the whole
// point of bounding one execution's memory footprint.
const maxDistinctSeen = 1_000_000

// Distinct removes rows already seen, keyed on Variables (all of the row's
// bound variables if Variables is empty). The seen set is itself resumable
// mutable state; its size is capped so one query can't grow it without
// bound.
type Distinct struct {
	input     Operator
	variables []string
	seen      map[string]struct{}
}

// NewDistinct wraps input, suppressing rows already seen on variables.
func NewDistinct(input Operator, variables []string) *Distinct {
	return &Distinct{input: input, variables: variables, seen: make(map[string]struct{})}
}

func (d *Distinct) Kind() Kind { return KindDistinct }

func (d *Distinct) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	for {
		if budget.Exceeded() {
			return nil, Suspended, nil
		}
		b, sig, err := d.input.Next(budget)
		if err != nil || sig != Emitted {
			return nil, sig, err
		}
		key := b.Key(d.variables)
		if _, ok := d.seen[key]; ok {
			continue
		}
		if len(d.seen) >= maxDistinctSeen {
			return nil, Done, sparqlerr.New(sparqlerr.DistinctOverflow, "distinct-overflow: seen-set exceeded %d rows", maxDistinctSeen)
		}
		d.seen[key] = struct{}{}
		return b, Emitted, nil
	}
}

func (d *Distinct) Dump() *PlanNode {
	sw := &writer{}
	sw.u64(uint64(len(d.variables)))
	for _, name := range d.variables {
		sw.str(name)
	}

	mw := &writer{}
	mw.u64(uint64(len(d.seen)))
	for key := range d.seen {
		mw.str(key)
	}

	return &PlanNode{Kind: KindDistinct, Static: sw.buf, Mutable: mw.buf, Children: []*PlanNode{d.input.Dump()}}
}

func loadDistinct(node *PlanNode, children []Operator) (Operator, error) {
	sr := newReader(node.Static)
	n, err := sr.u64()
	if err != nil {
		return nil, err
	}
	vars := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		name, err := sr.str()
		if err != nil {
			return nil, err
		}
		vars = append(vars, name)
	}

	mr := newReader(node.Mutable)
	m, err := mr.u64()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, m)
	for i := uint64(0); i < m; i++ {
		key, err := mr.str()
		if err != nil {
			return nil, err
		}
		seen[key] = struct{}{}
	}

	return &Distinct{input: children[0], variables: vars, seen: seen}, nil
}
