package planner

import (
	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/pkg/rdf"
)

// substituteNode replaces pattern's free variables already bound in outer
// with their concrete values, the logical-algebra equivalent of
// iterator.substitute, needed so EXISTS/NOT EXISTS checks the actual row
// under consideration rather than any arbitrary solution to the bare
// pattern.
func substituteNode(n algebra.Node, outer *rdf.Binding) algebra.Node {
	switch v := n.(type) {
	case *algebra.BGP:
		patterns := make([]algebra.TriplePattern, len(v.Patterns))
		for i, pat := range v.Patterns {
			patterns[i] = algebra.TriplePattern{
				Subject:   substituteTerm(pat.Subject, outer),
				Predicate: substituteTerm(pat.Predicate, outer),
				Object:    substituteTerm(pat.Object, outer),
			}
		}
		return &algebra.BGP{Patterns: patterns}
	case *algebra.Join:
		return &algebra.Join{Left: substituteNode(v.Left, outer), Right: substituteNode(v.Right, outer)}
	case *algebra.LeftJoin:
		return &algebra.LeftJoin{
			Left:   substituteNode(v.Left, outer),
			Right:  substituteNode(v.Right, outer),
			Filter: substituteExpr(v.Filter, outer),
		}
	case *algebra.Union:
		return &algebra.Union{Left: substituteNode(v.Left, outer), Right: substituteNode(v.Right, outer)}
	case *algebra.Filter:
		return &algebra.Filter{Input: substituteNode(v.Input, outer), Expression: substituteExpr(v.Expression, outer)}
	case *algebra.Extend:
		return &algebra.Extend{Input: substituteNode(v.Input, outer), Variable: v.Variable, Expression: substituteExpr(v.Expression, outer)}
	case *algebra.Project:
		return &algebra.Project{Input: substituteNode(v.Input, outer), Variables: v.Variables}
	case *algebra.Distinct:
		return &algebra.Distinct{Input: substituteNode(v.Input, outer), Variables: v.Variables}
	case *algebra.Slice:
		return &algebra.Slice{Input: substituteNode(v.Input, outer), Offset: v.Offset, Limit: v.Limit}
	case *algebra.OrderBy:
		conds := make([]algebra.OrderCondition, len(v.Conditions))
		for i, c := range v.Conditions {
			conds[i] = algebra.OrderCondition{Expression: substituteExpr(c.Expression, outer), Ascending: c.Ascending}
		}
		return &algebra.OrderBy{Input: substituteNode(v.Input, outer), Conditions: conds}
	default:
		return n
	}
}

func substituteTerm(t rdf.Term, outer *rdf.Binding) rdf.Term {
	v, ok := t.(*rdf.Variable)
	if !ok {
		return t
	}
	if bound := outer.Get(v.Name); bound != nil {
		return bound
	}
	return t
}

func substituteExpr(e algebra.Expression, outer *rdf.Binding) algebra.Expression {
	if e == nil {
		return nil
	}
	switch v := e.(type) {
	case *algebra.VariableExpression:
		if bound := outer.Get(v.Name); bound != nil {
			return &algebra.LiteralExpression{Term: bound}
		}
		return v
	case *algebra.LiteralExpression:
		return v
	case *algebra.BinaryExpression:
		return &algebra.BinaryExpression{Operator: v.Operator, Left: substituteExpr(v.Left, outer), Right: substituteExpr(v.Right, outer)}
	case *algebra.UnaryExpression:
		return &algebra.UnaryExpression{Operator: v.Operator, Operand: substituteExpr(v.Operand, outer)}
	case *algebra.FunctionCallExpression:
		args := make([]algebra.Expression, len(v.Args))
		for i, a := range v.Args {
			args[i] = substituteExpr(a, outer)
		}
		return &algebra.FunctionCallExpression{Name: v.Name, Args: args}
	case *algebra.InExpression:
		values := make([]algebra.Expression, len(v.Values))
		for i, val := range v.Values {
			values[i] = substituteExpr(val, outer)
		}
		return &algebra.InExpression{Not: v.Not, Expression: substituteExpr(v.Expression, outer), Values: values}
	case *algebra.ExistsExpression:
		return &algebra.ExistsExpression{Not: v.Not, Pattern: substituteNode(v.Pattern, outer)}
	default:
		return e
	}
}
