package iterator

import (
	"fmt"

	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/pkg/rdf"
)

// IndexJoin is a left-deep index-nested-loop join: for each Left binding,
// the Right triple pattern is re-bound with Left's values and scanned
// fresh. The "for each left row, scan right" loop the teacher's
// nestedLoopJoinIterator hides inside nested Go closures is externalized
// here as two fields (currentLeft, currentRight) so the join can suspend
// between any two emitted bindings and resume exactly where it left off.
type IndexJoin struct {
	backend      ScanBackend
	left         Operator
	rightPattern algebra.TriplePattern
	currentLeft  *rdf.Binding
	currentRight Operator
}

// NewIndexJoin builds a join of left against one triple pattern on the
// right, re-scanned per left row.
func NewIndexJoin(backend ScanBackend, left Operator, rightPattern algebra.TriplePattern) *IndexJoin {
	return &IndexJoin{backend: backend, left: left, rightPattern: rightPattern}
}

func (j *IndexJoin) Kind() Kind { return KindIndexJoin }

func (j *IndexJoin) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	for {
		if budget.Exceeded() {
			return nil, Suspended, nil
		}
		if j.currentRight != nil {
			b, sig, err := j.currentRight.Next(budget)
			if err != nil {
				return nil, Done, err
			}
			switch sig {
			case Suspended:
				return nil, Suspended, nil
			case Emitted:
				return j.currentLeft.Merge(b), Emitted, nil
			default: // Done
				j.currentRight = nil
				continue
			}
		}

		lb, sig, err := j.left.Next(budget)
		if err != nil {
			return nil, Done, err
		}
		switch sig {
		case Suspended:
			return nil, Suspended, nil
		case Done:
			return nil, Done, nil
		default:
			j.currentLeft = lb
			j.currentRight = NewScan(j.backend, substitute(j.rightPattern, lb))
		}
	}
}

// substitute replaces pattern's variables with their bound values from b,
// leaving unbound variables untouched.
func substitute(pattern algebra.TriplePattern, b *rdf.Binding) algebra.TriplePattern {
	return algebra.TriplePattern{
		Subject:   substituteTerm(pattern.Subject, b),
		Predicate: substituteTerm(pattern.Predicate, b),
		Object:    substituteTerm(pattern.Object, b),
	}
}

func substituteTerm(t rdf.Term, b *rdf.Binding) rdf.Term {
	v, ok := t.(*rdf.Variable)
	if !ok {
		return t
	}
	if bound := b.Get(v.Name); bound != nil {
		return bound
	}
	return t
}

func (j *IndexJoin) Dump() *PlanNode {
	sw := &writer{}
	encodeTriplePattern(sw, j.rightPattern)

	mw := &writer{}
	encodeBinding(mw, j.currentLeft)
	mw.bool(j.currentRight != nil)

	children := []*PlanNode{j.left.Dump()}
	if j.currentRight != nil {
		children = append(children, j.currentRight.Dump())
	}
	return &PlanNode{Kind: KindIndexJoin, Static: sw.buf, Mutable: mw.buf, Children: children}
}

func loadIndexJoin(b *Builder, node *PlanNode, children []Operator) (Operator, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("IndexJoin: missing left child")
	}
	sr := newReader(node.Static)
	pattern, err := decodeTriplePattern(sr)
	if err != nil {
		return nil, err
	}
	mr := newReader(node.Mutable)
	left, err := decodeBinding(mr)
	if err != nil {
		return nil, err
	}
	hasRight, err := mr.boolean()
	if err != nil {
		return nil, err
	}
	ij := &IndexJoin{backend: b.Backend, left: children[0], rightPattern: pattern, currentLeft: left}
	if hasRight {
		if len(children) < 2 {
			return nil, fmt.Errorf("IndexJoin: missing right child")
		}
		ij.currentRight = children[1]
	}
	return ij, nil
}
