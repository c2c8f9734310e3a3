package iterator

import (
	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/pkg/rdf"
)

// Extend implements SPARQL BIND: each row from Input gains a new variable
// computed from Expression. Per SPARQL semantics, a row whose Expression
// errors is still emitted, just without the new variable bound.
type Extend struct {
	evaluator  *Evaluator
	input      Operator
	variable   string
	expression algebra.Expression
}

// NewExtend wraps input, binding variable to expression's value on each row.
func NewExtend(evaluator *Evaluator, input Operator, variable string, expression algebra.Expression) *Extend {
	return &Extend{evaluator: evaluator, input: input, variable: variable, expression: expression}
}

func (e *Extend) Kind() Kind { return KindExtend }

func (e *Extend) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	if budget.Exceeded() {
		return nil, Suspended, nil
	}
	b, sig, err := e.input.Next(budget)
	if err != nil || sig != Emitted {
		return nil, sig, err
	}
	out := b.Clone()
	if v, err := e.evaluator.Evaluate(e.expression, b); err == nil && v != nil {
		out.Set(e.variable, v)
	}
	return out, Emitted, nil
}

func (e *Extend) Dump() *PlanNode {
	sw := &writer{}
	sw.str(e.variable)
	encodeExpression(sw, e.expression)
	return &PlanNode{Kind: KindExtend, Static: sw.buf, Children: []*PlanNode{e.input.Dump()}}
}

func loadExtend(b *Builder, node *PlanNode, children []Operator) (Operator, error) {
	sr := newReader(node.Static)
	variable, err := sr.str()
	if err != nil {
		return nil, err
	}
	expr, err := decodeExpression(sr)
	if err != nil {
		return nil, err
	}
	return &Extend{evaluator: b.Evaluator, input: children[0], variable: variable, expression: expr}, nil
}
