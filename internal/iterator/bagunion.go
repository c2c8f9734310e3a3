package iterator

import "github.com/webpreempt/sage/pkg/rdf"

// BagUnion implements SPARQL UNION with bag (not set) semantics: results
// from Left are emitted first, then results from Right, duplicates kept.
// The "which branch am I draining" state the teacher would otherwise track
// with a plain bool local is externalized as the onRight field so it
// survives a suspend between Left and Right.
type BagUnion struct {
	left    Operator
	right   Operator
	onRight bool
}

// NewBagUnion builds a union of left and right.
func NewBagUnion(left, right Operator) *BagUnion {
	return &BagUnion{left: left, right: right}
}

func (u *BagUnion) Kind() Kind { return KindBagUnion }

func (u *BagUnion) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	if budget.Exceeded() {
		return nil, Suspended, nil
	}
	if !u.onRight {
		b, sig, err := u.left.Next(budget)
		if err != nil {
			return nil, Done, err
		}
		switch sig {
		case Emitted:
			return b, Emitted, nil
		case Suspended:
			return nil, Suspended, nil
		default: // Done
			u.onRight = true
		}
	}
	if budget.Exceeded() {
		return nil, Suspended, nil
	}
	b, sig, err := u.right.Next(budget)
	if err != nil {
		return nil, Done, err
	}
	return b, sig, nil
}

func (u *BagUnion) Dump() *PlanNode {
	mw := &writer{}
	mw.bool(u.onRight)
	return &PlanNode{Kind: KindBagUnion, Mutable: mw.buf, Children: []*PlanNode{u.left.Dump(), u.right.Dump()}}
}

func loadBagUnion(node *PlanNode, children []Operator) (Operator, error) {
	mr := newReader(node.Mutable)
	onRight, err := mr.boolean()
	if err != nil {
		return nil, err
	}
	return &BagUnion{left: children[0], right: children[1], onRight: onRight}, nil
}
