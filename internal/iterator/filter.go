package iterator

import (
	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/pkg/rdf"
)

// Filter drops rows from Input whose Expression does not have effective
// boolean value true. Stateless beyond its child: no mutable field of its
// own to dump.
type Filter struct {
	evaluator  *Evaluator
	input      Operator
	expression algebra.Expression
}

// NewFilter wraps input, keeping only rows expression evaluates true for.
func NewFilter(evaluator *Evaluator, input Operator, expression algebra.Expression) *Filter {
	return &Filter{evaluator: evaluator, input: input, expression: expression}
}

func (f *Filter) Kind() Kind { return KindFilter }

func (f *Filter) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	for {
		if budget.Exceeded() {
			return nil, Suspended, nil
		}
		b, sig, err := f.input.Next(budget)
		if err != nil {
			return nil, Done, err
		}
		if sig != Emitted {
			return nil, sig, nil
		}
		v, err := f.evaluator.Evaluate(f.expression, b)
		if err != nil {
			// An erroring FILTER expression excludes the row rather than
			// aborting the query, per SPARQL's error-as-false semantics.
			continue
		}
		ok, err := f.evaluator.EffectiveBooleanValue(v)
		if err != nil {
			continue
		}
		if ok {
			return b, Emitted, nil
		}
	}
}

func (f *Filter) Dump() *PlanNode {
	sw := &writer{}
	encodeExpression(sw, f.expression)
	return &PlanNode{Kind: KindFilter, Static: sw.buf, Children: []*PlanNode{f.input.Dump()}}
}

func loadFilter(b *Builder, node *PlanNode, children []Operator) (Operator, error) {
	sr := newReader(node.Static)
	expr, err := decodeExpression(sr)
	if err != nil {
		return nil, err
	}
	return &Filter{evaluator: b.Evaluator, input: children[0], expression: expr}, nil
}
