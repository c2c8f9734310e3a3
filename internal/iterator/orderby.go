package iterator

import (
	"sort"

	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/pkg/rdf"
)

// OrderBy sorts Input's rows by a sequence of expressions. Not part of the
// base pattern the triple-pattern-pushdown operators follow: sorting
// inherently needs every row before it can emit the first one. Materializing
// pulls Input with the caller's own budget one row at a time, so a large
// Input observes the same cooperative preemption as any other operator and
// a continuation taken mid-materialization resumes the drain instead of
// restarting it. Once materialized, OrderBy resumes like any other
// operator, one row per call.
type OrderBy struct {
	input        Operator
	conditions   []algebra.OrderCondition
	evaluator    *Evaluator
	materialized bool
	rows         []*rdf.Binding
	pos          int
}

// NewOrderBy wraps input, sorting its full result set by conditions before
// emitting the first row.
func NewOrderBy(evaluator *Evaluator, input Operator, conditions []algebra.OrderCondition) *OrderBy {
	return &OrderBy{input: input, conditions: conditions, evaluator: evaluator}
}

func (o *OrderBy) Kind() Kind { return kindOrderBy }

func (o *OrderBy) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	if budget.Exceeded() {
		return nil, Suspended, nil
	}
	if !o.materialized {
		for {
			if budget.Exceeded() {
				return nil, Suspended, nil
			}
			b, sig, err := o.input.Next(budget)
			if err != nil {
				return nil, Done, err
			}
			switch sig {
			case Suspended:
				return nil, Suspended, nil
			case Emitted:
				o.rows = append(o.rows, b)
				continue
			case Done:
				o.materialized = true
			}
			break
		}
		sort.SliceStable(o.rows, func(i, j int) bool {
			return o.less(o.rows[i], o.rows[j])
		})
	}
	if o.pos >= len(o.rows) {
		return nil, Done, nil
	}
	b := o.rows[o.pos]
	o.pos++
	return b, Emitted, nil
}

func (o *OrderBy) less(a, b *rdf.Binding) bool {
	for _, cond := range o.conditions {
		av, aerr := o.evaluator.Evaluate(cond.Expression, a)
		bv, berr := o.evaluator.Evaluate(cond.Expression, b)
		if aerr != nil {
			av = nil
		}
		if berr != nil {
			bv = nil
		}
		c := rdf.Compare(av, bv)
		if c == 0 {
			continue
		}
		if cond.Ascending {
			return c < 0
		}
		return c > 0
	}
	return false
}

func (o *OrderBy) Dump() *PlanNode {
	sw := &writer{}
	sw.u64(uint64(len(o.conditions)))
	for _, c := range o.conditions {
		encodeExpression(sw, c.Expression)
		sw.bool(c.Ascending)
	}

	mw := &writer{}
	mw.bool(o.materialized)
	encodeBindingList(mw, o.rows)
	mw.u64(uint64(o.pos))

	return &PlanNode{Kind: kindOrderBy, Static: sw.buf, Mutable: mw.buf, Children: []*PlanNode{o.input.Dump()}}
}

func loadOrderBy(b *Builder, node *PlanNode, children []Operator) (Operator, error) {
	sr := newReader(node.Static)
	n, err := sr.u64()
	if err != nil {
		return nil, err
	}
	conds := make([]algebra.OrderCondition, 0, n)
	for i := uint64(0); i < n; i++ {
		expr, err := decodeExpression(sr)
		if err != nil {
			return nil, err
		}
		asc, err := sr.boolean()
		if err != nil {
			return nil, err
		}
		conds = append(conds, algebra.OrderCondition{Expression: expr, Ascending: asc})
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
	ob := &OrderBy{input: children[0], conditions: conds, evaluator: b.Evaluator, materialized: materialized, rows: rows}
	pos, err := mr.u64()
	if err != nil {
		return nil, err
	}
	ob.pos = int(pos)
	return ob, nil
}
