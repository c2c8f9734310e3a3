package iterator

import (
	"fmt"

	"github.com/webpreempt/sage/internal/algebra"
)

// Tags for algebra.Expression's concrete types, and for algebra.Node's,
// needed because ExistsExpression carries a nested Node (the EXISTS
// sub-pattern) that must itself round-trip through Filter/Extend's Static
// config.
const (
	exprBinary byte = iota + 1
	exprUnary
	exprVariable
	exprLiteral
	exprFunctionCall
	exprExists
	exprIn
)

const (
	nodeBGP byte = iota + 1
	nodeJoin
	nodeLeftJoin
	nodeUnion
	nodeFilter
	nodeExtend
	nodeProject
	nodeDistinct
	nodeSlice
	nodeOrderBy
)

func encodeExpression(w *writer, e algebra.Expression) {
	if e == nil {
		w.u8(0)
		return
	}
	switch v := e.(type) {
	case *algebra.BinaryExpression:
		w.u8(exprBinary)
		w.u64(uint64(v.Operator))
		encodeExpression(w, v.Left)
		encodeExpression(w, v.Right)
	case *algebra.UnaryExpression:
		w.u8(exprUnary)
		w.u64(uint64(v.Operator))
		encodeExpression(w, v.Operand)
	case *algebra.VariableExpression:
		w.u8(exprVariable)
		w.str(v.Name)
	case *algebra.LiteralExpression:
		w.u8(exprLiteral)
		encodeTerm(w, v.Term)
	case *algebra.FunctionCallExpression:
		w.u8(exprFunctionCall)
		w.str(v.Name)
		w.u64(uint64(len(v.Args)))
		for _, a := range v.Args {
			encodeExpression(w, a)
		}
	case *algebra.ExistsExpression:
		w.u8(exprExists)
		w.bool(v.Not)
		encodeAlgebraNode(w, v.Pattern)
	case *algebra.InExpression:
		w.u8(exprIn)
		w.bool(v.Not)
		encodeExpression(w, v.Expression)
		w.u64(uint64(len(v.Values)))
		for _, val := range v.Values {
			encodeExpression(w, val)
		}
	default:
		w.u8(0)
	}
}

func decodeExpression(r *reader) (algebra.Expression, error) {
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case exprBinary:
		op, err := r.u64()
		if err != nil {
			return nil, err
		}
		left, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		return &algebra.BinaryExpression{Operator: algebra.Operator(op), Left: left, Right: right}, nil
	case exprUnary:
		op, err := r.u64()
		if err != nil {
			return nil, err
		}
		operand, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		return &algebra.UnaryExpression{Operator: algebra.Operator(op), Operand: operand}, nil
	case exprVariable:
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		return &algebra.VariableExpression{Name: name}, nil
	case exprLiteral:
		t, err := decodeTerm(r)
		if err != nil {
			return nil, err
		}
		return &algebra.LiteralExpression{Term: t}, nil
	case exprFunctionCall:
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		n, err := r.u64()
		if err != nil {
			return nil, err
		}
		args := make([]algebra.Expression, 0, n)
		for i := uint64(0); i < n; i++ {
			a, err := decodeExpression(r)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return &algebra.FunctionCallExpression{Name: name, Args: args}, nil
	case exprExists:
		not, err := r.boolean()
		if err != nil {
			return nil, err
		}
		pattern, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		return &algebra.ExistsExpression{Not: not, Pattern: pattern}, nil
	case exprIn:
		not, err := r.boolean()
		if err != nil {
			return nil, err
		}
		expr, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		n, err := r.u64()
		if err != nil {
			return nil, err
		}
		values := make([]algebra.Expression, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := decodeExpression(r)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return &algebra.InExpression{Not: not, Expression: expr, Values: values}, nil
	default:
		return nil, fmt.Errorf("iterator codec: unknown expression tag %d", tag)
	}
}

// encodeAlgebraNode/decodeAlgebraNode serialize a logical algebra.Node tree.
// Needed only to carry an EXISTS sub-pattern across a continuation boundary
// inside Filter's Static config; EXISTS is evaluated eagerly against the
// backend each time so no execution state needs to survive, only the
// pattern to re-evaluate.
func encodeAlgebraNode(w *writer, n algebra.Node) {
	if n == nil {
		w.u8(0)
		return
	}
	switch v := n.(type) {
	case *algebra.BGP:
		w.u8(nodeBGP)
		w.u64(uint64(len(v.Patterns)))
		for _, p := range v.Patterns {
			encodeTriplePattern(w, p)
		}
	case *algebra.Join:
		w.u8(nodeJoin)
		encodeAlgebraNode(w, v.Left)
		encodeAlgebraNode(w, v.Right)
	case *algebra.LeftJoin:
		w.u8(nodeLeftJoin)
		encodeAlgebraNode(w, v.Left)
		encodeAlgebraNode(w, v.Right)
		encodeExpression(w, v.Filter)
	case *algebra.Union:
		w.u8(nodeUnion)
		encodeAlgebraNode(w, v.Left)
		encodeAlgebraNode(w, v.Right)
	case *algebra.Filter:
		w.u8(nodeFilter)
		encodeAlgebraNode(w, v.Input)
		encodeExpression(w, v.Expression)
	case *algebra.Extend:
		w.u8(nodeExtend)
		encodeAlgebraNode(w, v.Input)
		w.str(v.Variable)
		encodeExpression(w, v.Expression)
	case *algebra.Project:
		w.u8(nodeProject)
		encodeAlgebraNode(w, v.Input)
		w.u64(uint64(len(v.Variables)))
		for _, name := range v.Variables {
			w.str(name)
		}
	case *algebra.Distinct:
		w.u8(nodeDistinct)
		encodeAlgebraNode(w, v.Input)
		w.u64(uint64(len(v.Variables)))
		for _, name := range v.Variables {
			w.str(name)
		}
	case *algebra.Slice:
		w.u8(nodeSlice)
		encodeAlgebraNode(w, v.Input)
		w.i64(v.Offset)
		w.i64(v.Limit)
	case *algebra.OrderBy:
		w.u8(nodeOrderBy)
		encodeAlgebraNode(w, v.Input)
		w.u64(uint64(len(v.Conditions)))
		for _, c := range v.Conditions {
			encodeExpression(w, c.Expression)
			w.bool(c.Ascending)
		}
	default:
		w.u8(0)
	}
}

func decodeAlgebraNode(r *reader) (algebra.Node, error) {
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case nodeBGP:
		n, err := r.u64()
		if err != nil {
			return nil, err
		}
		patterns := make([]algebra.TriplePattern, 0, n)
		for i := uint64(0); i < n; i++ {
			p, err := decodeTriplePattern(r)
			if err != nil {
				return nil, err
			}
			patterns = append(patterns, p)
		}
		return &algebra.BGP{Patterns: patterns}, nil
	case nodeJoin:
		left, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		right, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		return &algebra.Join{Left: left, Right: right}, nil
	case nodeLeftJoin:
		left, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		right, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		filter, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		return &algebra.LeftJoin{Left: left, Right: right, Filter: filter}, nil
	case nodeUnion:
		left, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		right, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		return &algebra.Union{Left: left, Right: right}, nil
	case nodeFilter:
		input, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		expr, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		return &algebra.Filter{Input: input, Expression: expr}, nil
	case nodeExtend:
		input, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		variable, err := r.str()
		if err != nil {
			return nil, err
		}
		expr, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		return &algebra.Extend{Input: input, Variable: variable, Expression: expr}, nil
	case nodeProject:
		input, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		n, err := r.u64()
		if err != nil {
			return nil, err
		}
		vars := make([]string, 0, n)
		for i := uint64(0); i < n; i++ {
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			vars = append(vars, name)
		}
		return &algebra.Project{Input: input, Variables: vars}, nil
	case nodeDistinct:
		input, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		n, err := r.u64()
		if err != nil {
			return nil, err
		}
		vars := make([]string, 0, n)
		for i := uint64(0); i < n; i++ {
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			vars = append(vars, name)
		}
		return &algebra.Distinct{Input: input, Variables: vars}, nil
	case nodeSlice:
		input, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		offset, err := r.i64()
		if err != nil {
			return nil, err
		}
		limit, err := r.i64()
		if err != nil {
			return nil, err
		}
		return &algebra.Slice{Input: input, Offset: offset, Limit: limit}, nil
	case nodeOrderBy:
		input, err := decodeAlgebraNode(r)
		if err != nil {
			return nil, err
		}
		n, err := r.u64()
		if err != nil {
			return nil, err
		}
		conds := make([]algebra.OrderCondition, 0, n)
		for i := uint64(0); i < n; i++ {
			expr, err := decodeExpression(r)
			if err != nil {
				return nil, err
			}
			asc, err := r.boolean()
			if err != nil {
				return nil, err
			}
			conds = append(conds, algebra.OrderCondition{Expression: expr, Ascending: asc})
		}
		return &algebra.OrderBy{Input: input, Conditions: conds}, nil
	default:
		return nil, fmt.Errorf("iterator codec: unknown algebra node tag %d", tag)
	}
}
