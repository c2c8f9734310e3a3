package iterator

import "github.com/webpreempt/sage/pkg/rdf"

// Unit emits exactly one empty binding, then Done. It is the physical form
// of an empty BGP (the pattern `{ }`), which SPARQL defines as matching
// with one solution that binds nothing.
type Unit struct {
	done bool
}

// NewUnit returns a fresh Unit operator.
func NewUnit() *Unit { return &Unit{} }

func (u *Unit) Kind() Kind { return kindUnit }

func (u *Unit) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	if u.done {
		return nil, Done, nil
	}
	if budget.Exceeded() {
		return nil, Suspended, nil
	}
	u.done = true
	return rdf.NewBinding(), Emitted, nil
}

func (u *Unit) Dump() *PlanNode {
	mw := &writer{}
	mw.bool(u.done)
	return &PlanNode{Kind: kindUnit, Mutable: mw.buf}
}

func loadUnit(node *PlanNode) (Operator, error) {
	mr := newReader(node.Mutable)
	done, err := mr.boolean()
	if err != nil {
		return nil, err
	}
	return &Unit{done: done}, nil
}
