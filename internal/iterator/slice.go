package iterator

import "github.com/webpreempt/sage/pkg/rdf"

// Slice applies OFFSET/LIMIT: skips the first Offset rows from Input, then
// emits at most Limit rows (Limit < 0 means unbounded). Skipped/emitted
// counters are its own resumable mutable state.
type Slice struct {
	input   Operator
	offset  int64
	limit   int64
	skipped int64
	emitted int64
}

// NewSlice wraps input, skipping offset rows then emitting at most limit
// (limit < 0 for unbounded).
func NewSlice(input Operator, offset, limit int64) *Slice {
	return &Slice{input: input, offset: offset, limit: limit}
}

func (s *Slice) Kind() Kind { return KindSlice }

func (s *Slice) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	if s.limit >= 0 && s.emitted >= s.limit {
		return nil, Done, nil
	}
	for s.skipped < s.offset {
		if budget.Exceeded() {
			return nil, Suspended, nil
		}
		_, sig, err := s.input.Next(budget)
		if err != nil {
			return nil, Done, err
		}
		switch sig {
		case Suspended:
			return nil, Suspended, nil
		case Done:
			return nil, Done, nil
		}
		s.skipped++
	}
	if budget.Exceeded() {
		return nil, Suspended, nil
	}
	b, sig, err := s.input.Next(budget)
	if err != nil || sig != Emitted {
		return nil, sig, err
	}
	s.emitted++
	return b, Emitted, nil
}

func (s *Slice) Dump() *PlanNode {
	sw := &writer{}
	sw.i64(s.offset)
	sw.i64(s.limit)

	mw := &writer{}
	mw.i64(s.skipped)
	mw.i64(s.emitted)

	return &PlanNode{Kind: KindSlice, Static: sw.buf, Mutable: mw.buf, Children: []*PlanNode{s.input.Dump()}}
}

func loadSlice(node *PlanNode, children []Operator) (Operator, error) {
	sr := newReader(node.Static)
	offset, err := sr.i64()
	if err != nil {
		return nil, err
	}
	limit, err := sr.i64()
	if err != nil {
		return nil, err
	}
	mr := newReader(node.Mutable)
	skipped, err := mr.i64()
	if err != nil {
		return nil, err
	}
	emitted, err := mr.i64()
	if err != nil {
		return nil, err
	}
	return &Slice{input: children[0], offset: offset, limit: limit, skipped: skipped, emitted: emitted}, nil
}
