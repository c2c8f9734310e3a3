package iterator

import "github.com/webpreempt/sage/pkg/rdf"

// HashJoin is the general-purpose join of two arbitrary physical subtrees
// (used whenever the right side does not reduce to a single triple
// pattern an IndexJoin can push bound values into, e.g. the right side of
// a join is itself a Union or a LeftJoin). The right branch is drained once
// into rightRows, but that drain pulls from the live right operator with
// the caller's own budget one row at a time, exactly like the left-side
// pull loop below, so a large or slow right side can suspend mid-drain
// instead of running unbounded inside a single Next() call.
type HashJoin struct {
	left         Operator
	right        Operator // live until materialized, then nil
	materialized bool
	rightRows    []*rdf.Binding
	currentLeft  *rdf.Binding
	matches      []*rdf.Binding
	matchPos     int
}

// NewHashJoin builds a join of left against right, materializing right on
// first use.
func NewHashJoin(left, right Operator) *HashJoin {
	return &HashJoin{left: left, right: right}
}

func (j *HashJoin) Kind() Kind { return kindHashJoin }

func (j *HashJoin) Next(budget *Budget) (*rdf.Binding, Signal, error) {
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
			return j.currentLeft.Merge(m), Emitted, nil
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
		j.matches = j.matches[:0]
		for _, r := range j.rightRows {
			if lb.Compatible(r) {
				j.matches = append(j.matches, r)
			}
		}
		j.matchPos = 0
	}
}

func (j *HashJoin) Dump() *PlanNode {
	mw := &writer{}
	mw.bool(j.materialized)
	encodeBindingList(mw, j.rightRows)
	encodeBinding(mw, j.currentLeft)
	encodeBindingList(mw, j.matches)
	mw.u64(uint64(j.matchPos))

	children := []*PlanNode{j.left.Dump()}
	if !j.materialized {
		children = append(children, j.right.Dump())
	}
	return &PlanNode{Kind: kindHashJoin, Mutable: mw.buf, Children: children}
}

func loadHashJoin(node *PlanNode, children []Operator) (Operator, error) {
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
	matches, err := decodeBindingList(mr)
	if err != nil {
		return nil, err
	}
	pos, err := mr.u64()
	if err != nil {
		return nil, err
	}
	j := &HashJoin{
		left:         children[0],
		materialized: materialized,
		rightRows:    rows,
		currentLeft:  cur,
		matches:      matches,
		matchPos:     int(pos),
	}
	if !materialized {
		j.right = children[1]
	}
	return j, nil
}
