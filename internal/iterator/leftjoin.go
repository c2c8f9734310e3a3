package iterator

import (
	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/pkg/rdf"
)

// LeftJoin implements SPARQL OPTIONAL: every Left row is preserved even
// when no Right row is compatible with it. Structured like HashJoin (the
// right branch is materialized once, by pulling the live right operator
// with the caller's own budget so a large right side can suspend
// mid-drain) but additionally tracks whether the current left row has
// already produced a matched output, so it can fall back to emitting the
// left row alone exactly once when it has none. Filter, if set, is the
// OPTIONAL's ON-condition: a right row counts as a match only when it is
// variable-compatible with the left row AND Filter evaluates true on the
// merged row, so a filtered-out candidate leaves the left row free to fall
// back to its unmatched form.
type LeftJoin struct {
	evaluator    *Evaluator
	left         Operator
	right        Operator // live until materialized, then nil
	filter       algebra.Expression
	materialized bool
	rightRows    []*rdf.Binding
	currentLeft  *rdf.Binding
	matches      []*rdf.Binding
	matchPos     int
	matchedAny   bool
}

// NewLeftJoin builds an OPTIONAL join of left against right, filtered by the
// optional ON-condition filter (nil if OPTIONAL carried no extra FILTER).
func NewLeftJoin(evaluator *Evaluator, left, right Operator, filter algebra.Expression) *LeftJoin {
	return &LeftJoin{evaluator: evaluator, left: left, right: right, filter: filter}
}

func (j *LeftJoin) matchCandidate(left, right *rdf.Binding) (*rdf.Binding, bool) {
	if !left.Compatible(right) {
		return nil, false
	}
	merged := left.Merge(right)
	if j.filter == nil {
		return merged, true
	}
	v, err := j.evaluator.Evaluate(j.filter, merged)
	if err != nil {
		return nil, false
	}
	ok, err := j.evaluator.EffectiveBooleanValue(v)
	if err != nil || !ok {
		return nil, false
	}
	return merged, true
}

func (j *LeftJoin) Kind() Kind { return KindLeftJoin }

func (j *LeftJoin) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	if budget.Exceeded() {
		return nil, Suspended, nil
	}
	if !j.materialized {
		for {
			if budget.Exceeded() {
				return nil, Suspended, nil
			}
			b, sig, err := j.right.Next(budget)
			if err != nil {
				return nil, Done, err
			}
			switch sig {
			case Suspended:
				return nil, Suspended, nil
			case Emitted:
				j.rightRows = append(j.rightRows, b)
				continue
			case Done:
				j.materialized = true
				j.right = nil
			}
			break
		}
	}

	for {
		if budget.Exceeded() {
			return nil, Suspended, nil
		}
		if j.matchPos < len(j.matches) {
			m := j.matches[j.matchPos]
			j.matchPos++
			j.matchedAny = true
			return m, Emitted, nil
		}
		if j.currentLeft != nil && !j.matchedAny {
			out := j.currentLeft
			j.currentLeft = nil
			return out, Emitted, nil
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
		}
		j.currentLeft = lb
		j.matchedAny = false
		j.matches = j.matches[:0]
		for _, r := range j.rightRows {
			if m, ok := j.matchCandidate(lb, r); ok {
				j.matches = append(j.matches, m)
			}
		}
		j.matchPos = 0
	}
}

func (j *LeftJoin) Dump() *PlanNode {
	sw := &writer{}
	encodeExpression(sw, j.filter)

	mw := &writer{}
	mw.bool(j.materialized)
	encodeBindingList(mw, j.rightRows)
	encodeBinding(mw, j.currentLeft)
	mw.bool(j.matchedAny)
	encodeBindingList(mw, j.matches)
	mw.u64(uint64(j.matchPos))

	children := []*PlanNode{j.left.Dump()}
	if !j.materialized {
		children = append(children, j.right.Dump())
	}
	return &PlanNode{Kind: KindLeftJoin, Static: sw.buf, Mutable: mw.buf, Children: children}
}

func loadLeftJoin(b *Builder, node *PlanNode, children []Operator) (Operator, error) {
	sr := newReader(node.Static)
	filter, err := decodeExpression(sr)
	if err != nil {
		return nil, err
	}
	mr := newReader(node.Mutable)
	materialized, err := mr.boolean()
	if err != nil {
		return nil, err
	}
	rows, err := decodeBindingList(mr)
	if err != nil {
		return nil, err
	}
	cur, err := decodeBinding(mr)
	if err != nil {
		return nil, err
	}
	matchedAny, err := mr.boolean()
	if err != nil {
		return nil, err
	}
	matches, err := decodeBindingList(mr)
	if err != nil {
		return nil, err
	}
	pos, err := mr.u64()
	if err != nil {
		return nil, err
	}
	j := &LeftJoin{
		evaluator:    b.Evaluator,
		left:         children[0],
		filter:       filter,
		materialized: materialized,
		rightRows:    rows,
		currentLeft:  cur,
		matchedAny:   matchedAny,
		matches:      matches,
		matchPos:     int(pos),
	}
	if !materialized {
		j.right = children[1]
	}
	return j, nil
}
