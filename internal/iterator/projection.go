package iterator

import "github.com/webpreempt/sage/pkg/rdf"

// Projection restricts each row from Input to Variables, in order.
// Stateless beyond its child.
type Projection struct {
	input     Operator
	variables []string
}

// NewProjection wraps input, keeping only variables in each emitted row.
func NewProjection(input Operator, variables []string) *Projection {
	return &Projection{input: input, variables: variables}
}

func (p *Projection) Kind() Kind { return KindProjection }

func (p *Projection) Next(budget *Budget) (*rdf.Binding, Signal, error) {
	if budget.Exceeded() {
		return nil, Suspended, nil
	}
	b, sig, err := p.input.Next(budget)
	if err != nil || sig != Emitted {
		return nil, sig, err
	}
	if len(p.variables) == 0 {
		return b, Emitted, nil
	}
	out := rdf.NewBinding()
	for _, name := range p.variables {
		if v := b.Get(name); v != nil {
			out.Set(name, v)
		}
	}
	return out, Emitted, nil
}

func (p *Projection) Dump() *PlanNode {
	sw := &writer{}
	sw.u64(uint64(len(p.variables)))
	for _, name := range p.variables {
		sw.str(name)
	}
	return &PlanNode{Kind: KindProjection, Static: sw.buf, Children: []*PlanNode{p.input.Dump()}}
}

func loadProjection(node *PlanNode, children []Operator) (Operator, error) {
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
	return &Projection{input: children[0], variables: vars}, nil
}
