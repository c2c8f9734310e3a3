package planner

import (
	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/internal/iterator"
)

// compileFilter implements the base spec's filter push-down responsibility
// for the one shape where it matters most and can be done soundly without a
// general rewrite pass: a Filter directly over a Join. AND-conjuncts whose
// variables are entirely produced by one side are compiled into a Filter
// wrapping that side before the join runs, instead of after. Pushing into
// the right side is limited to when that side is itself a BGP (the common
// `{ pattern . pattern FILTER(...) }` shape) since reasoning about a
// conjunct's safety against an arbitrary compiled subtree is not attempted
// here. Everything else stays as a Filter applied to the join's output,
// which is always correct, just sometimes less selective early.
func (p *Planner) compileFilter(f *algebra.Filter, card CardinalityEstimates) (iterator.Operator, error) {
	join, ok := f.Input.(*algebra.Join)
	if !ok {
		input, err := p.compile(f.Input, card)
		if err != nil {
			return nil, err
		}
		return iterator.NewFilter(p.evaluator, input, f.Expression), nil
	}

	leftVars := producedVars(join.Left)
	_, rightIsBGP := join.Right.(*algebra.BGP)
	rightVars := producedVars(join.Right)

	left := join.Left
	right := join.Right
	var remaining []algebra.Expression
	for _, conjunct := range splitConjuncts(f.Expression) {
		vars, ok := freeVars(conjunct)
		switch {
		case ok && subset(vars, leftVars):
			left = &algebra.Filter{Input: left, Expression: conjunct}
		case ok && rightIsBGP && subset(vars, rightVars):
			right = &algebra.Filter{Input: right, Expression: conjunct}
		default:
			remaining = append(remaining, conjunct)
		}
	}

	op, err := p.compileJoin(&algebra.Join{Left: left, Right: right}, card)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		return op, nil
	}
	return iterator.NewFilter(p.evaluator, op, joinConjuncts(remaining)), nil
}

// splitConjuncts flattens nested `a && b && c` into [a, b, c]; any other
// expression shape is returned as a single-element slice.
func splitConjuncts(e algebra.Expression) []algebra.Expression {
	bin, ok := e.(*algebra.BinaryExpression)
	if !ok || bin.Operator != algebra.OpAnd {
		return []algebra.Expression{e}
	}
	return append(splitConjuncts(bin.Left), splitConjuncts(bin.Right)...)
}

// joinConjuncts is splitConjuncts' inverse, folding a non-empty slice back
// into a right-associative chain of && expressions.
func joinConjuncts(cs []algebra.Expression) algebra.Expression {
	out := cs[len(cs)-1]
	for i := len(cs) - 2; i >= 0; i-- {
		out = &algebra.BinaryExpression{Operator: algebra.OpAnd, Left: cs[i], Right: out}
	}
	return out
}

// freeVars reports the variable names an expression reads, and whether that
// set is known exactly. EXISTS is treated as opaque (ok=false): it can read
// any variable bound by an enclosing scope via substitution, not just the
// ones syntactically inside its own pattern, so it is never a safe
// push-down candidate.
func freeVars(e algebra.Expression) (map[string]bool, bool) {
	switch v := e.(type) {
	case *algebra.VariableExpression:
		return map[string]bool{v.Name: true}, true
	case *algebra.LiteralExpression:
		return map[string]bool{}, true
	case *algebra.UnaryExpression:
		return freeVars(v.Operand)
	case *algebra.BinaryExpression:
		lv, lok := freeVars(v.Left)
		rv, rok := freeVars(v.Right)
		if !lok || !rok {
			return nil, false
		}
		out := map[string]bool{}
		addAll(out, lv)
		addAll(out, rv)
		return out, true
	case *algebra.FunctionCallExpression:
		out := map[string]bool{}
		for _, a := range v.Args {
			vars, ok := freeVars(a)
			if !ok {
				return nil, false
			}
			for k := range vars {
				out[k] = true
			}
		}
		return out, true
	case *algebra.InExpression:
		out := map[string]bool{}
		vars, ok := freeVars(v.Expression)
		if !ok {
			return nil, false
		}
		for k := range vars {
			out[k] = true
		}
		for _, val := range v.Values {
			vv, ok := freeVars(val)
			if !ok {
				return nil, false
			}
			for k := range vv {
				out[k] = true
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func subset(a, b map[string]bool) bool {
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// producedVars returns the variables a logical algebra node produces,
// before compilation, used only to judge where a filter conjunct is safe to
// push to.
func producedVars(n algebra.Node) map[string]bool {
	out := map[string]bool{}
	switch v := n.(type) {
	case *algebra.BGP:
		for _, pat := range v.Patterns {
			for _, name := range pat.Variables() {
				out[name] = true
			}
		}
	case *algebra.Join:
		addAll(out, producedVars(v.Left))
		addAll(out, producedVars(v.Right))
	case *algebra.LeftJoin:
		addAll(out, producedVars(v.Left))
		addAll(out, producedVars(v.Right))
	case *algebra.Union:
		addAll(out, producedVars(v.Left))
		addAll(out, producedVars(v.Right))
	case *algebra.Filter:
		addAll(out, producedVars(v.Input))
	case *algebra.Extend:
		addAll(out, producedVars(v.Input))
		out[v.Variable] = true
	case *algebra.Project:
		addAll(out, producedVars(v.Input))
	case *algebra.Distinct:
		addAll(out, producedVars(v.Input))
	case *algebra.Slice:
		addAll(out, producedVars(v.Input))
	case *algebra.OrderBy:
		addAll(out, producedVars(v.Input))
	}
	return out
}

func addAll(dst, src map[string]bool) {
	for k := range src {
		dst[k] = true
	}
}
