package iterator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/pkg/rdf"
)

// ExistsFunc runs an EXISTS/NOT EXISTS sub-pattern to completion against the
// current binding and reports whether it has at least one solution. EXISTS
// sub-patterns are evaluated eagerly rather than as resumable operators —
// they gate one row's inclusion and never themselves survive a suspend, so
// there is nothing to dump.
type ExistsFunc func(pattern algebra.Node, outer *rdf.Binding) (bool, error)

// Evaluator evaluates FILTER/BIND expressions against one binding,
// grounded on the teacher's pkg/sparql/evaluator dispatch shape.
type Evaluator struct {
	Exists ExistsFunc
}

// Evaluate computes the value of expr under binding.
func (e *Evaluator) Evaluate(expr algebra.Expression, binding *rdf.Binding) (rdf.Term, error) {
	switch ex := expr.(type) {
	case *algebra.LiteralExpression:
		return ex.Term, nil
	case *algebra.VariableExpression:
		return binding.Get(ex.Name), nil
	case *algebra.BinaryExpression:
		return e.evalBinary(ex, binding)
	case *algebra.UnaryExpression:
		return e.evalUnary(ex, binding)
	case *algebra.FunctionCallExpression:
		return e.evalFunction(ex, binding)
	case *algebra.InExpression:
		return e.evalIn(ex, binding)
	case *algebra.ExistsExpression:
		if e.Exists == nil {
			return nil, fmt.Errorf("EXISTS evaluation not wired")
		}
		ok, err := e.Exists(ex.Pattern, binding)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(ok != ex.Not), nil
	default:
		return nil, fmt.Errorf("unsupported expression type %T", expr)
	}
}

// EffectiveBooleanValue implements the SPARQL EBV coercion used by FILTER,
// && and ||.
func (e *Evaluator) EffectiveBooleanValue(t rdf.Term) (bool, error) {
	if t == nil {
		return false, fmt.Errorf("unbound term has no effective boolean value")
	}
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return false, fmt.Errorf("term %s has no effective boolean value", t)
	}
	if lit.Datatype != nil && lit.Datatype.IRI == rdf.XSDBoolean.IRI {
		return lit.Value == "true" || lit.Value == "1", nil
	}
	if lit.IsNumeric() {
		v, err := lit.NumericValue()
		return err == nil && v != 0, nil
	}
	if lit.Language == "" && lit.Datatype == nil {
		return lit.Value != "", nil
	}
	return false, fmt.Errorf("term %s has no effective boolean value", t)
}

func (e *Evaluator) evalBinary(ex *algebra.BinaryExpression, binding *rdf.Binding) (rdf.Term, error) {
	if ex.Operator == algebra.OpAnd || ex.Operator == algebra.OpOr {
		left, err := e.Evaluate(ex.Left, binding)
		if err != nil {
			return nil, err
		}
		lb, err := e.EffectiveBooleanValue(left)
		if err != nil {
			return nil, err
		}
		if ex.Operator == algebra.OpAnd && !lb {
			return rdf.NewBooleanLiteral(false), nil
		}
		if ex.Operator == algebra.OpOr && lb {
			return rdf.NewBooleanLiteral(true), nil
		}
		right, err := e.Evaluate(ex.Right, binding)
		if err != nil {
			return nil, err
		}
		rb, err := e.EffectiveBooleanValue(right)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(rb), nil
	}

	left, err := e.Evaluate(ex.Left, binding)
	if err != nil {
		return nil, err
	}
	right, err := e.Evaluate(ex.Right, binding)
	if err != nil {
		return nil, err
	}

	switch ex.Operator {
	case algebra.OpEqual:
		return rdf.NewBooleanLiteral(termsEqual(left, right)), nil
	case algebra.OpNotEqual:
		return rdf.NewBooleanLiteral(!termsEqual(left, right)), nil
	case algebra.OpLessThan, algebra.OpLessThanOrEqual, algebra.OpGreaterThan, algebra.OpGreaterThanOrEqual:
		c, err := compareNumericOrLexical(left, right)
		if err != nil {
			return nil, err
		}
		switch ex.Operator {
		case algebra.OpLessThan:
			return rdf.NewBooleanLiteral(c < 0), nil
		case algebra.OpLessThanOrEqual:
			return rdf.NewBooleanLiteral(c <= 0), nil
		case algebra.OpGreaterThan:
			return rdf.NewBooleanLiteral(c > 0), nil
		default:
			return rdf.NewBooleanLiteral(c >= 0), nil
		}
	case algebra.OpAdd, algebra.OpSubtract, algebra.OpMultiply, algebra.OpDivide:
		a, err := numericValue(left)
		if err != nil {
			return nil, err
		}
		b, err := numericValue(right)
		if err != nil {
			return nil, err
		}
		switch ex.Operator {
		case algebra.OpAdd:
			return rdf.NewDoubleLiteral(a + b), nil
		case algebra.OpSubtract:
			return rdf.NewDoubleLiteral(a - b), nil
		case algebra.OpMultiply:
			return rdf.NewDoubleLiteral(a * b), nil
		default:
			if b == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return rdf.NewDoubleLiteral(a / b), nil
		}
	default:
		return nil, fmt.Errorf("unsupported binary operator %v", ex.Operator)
	}
}

func (e *Evaluator) evalUnary(ex *algebra.UnaryExpression, binding *rdf.Binding) (rdf.Term, error) {
	v, err := e.Evaluate(ex.Operand, binding)
	if err != nil {
		return nil, err
	}
	if ex.Operator != algebra.OpNot {
		return nil, fmt.Errorf("unsupported unary operator %v", ex.Operator)
	}
	b, err := e.EffectiveBooleanValue(v)
	if err != nil {
		return nil, err
	}
	return rdf.NewBooleanLiteral(!b), nil
}

func (e *Evaluator) evalIn(ex *algebra.InExpression, binding *rdf.Binding) (rdf.Term, error) {
	left, err := e.Evaluate(ex.Expression, binding)
	if err != nil {
		return nil, err
	}
	found := false
	for _, v := range ex.Values {
		val, err := e.Evaluate(v, binding)
		if err != nil {
			return nil, err
		}
		if termsEqual(left, val) {
			found = true
			break
		}
	}
	return rdf.NewBooleanLiteral(found != ex.Not), nil
}

func (e *Evaluator) evalFunction(ex *algebra.FunctionCallExpression, binding *rdf.Binding) (rdf.Term, error) {
	arg := func(i int) (rdf.Term, error) {
		if i >= len(ex.Args) {
			return nil, fmt.Errorf("%s: missing argument %d", ex.Name, i)
		}
		return e.Evaluate(ex.Args[i], binding)
	}
	switch ex.Name {
	case "BOUND":
		if len(ex.Args) != 1 {
			return nil, fmt.Errorf("BOUND takes one argument")
		}
		ve, ok := ex.Args[0].(*algebra.VariableExpression)
		if !ok {
			return nil, fmt.Errorf("BOUND argument must be a variable")
		}
		return rdf.NewBooleanLiteral(binding.Get(ve.Name) != nil), nil
	case "ISIRI", "ISURI":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		_, ok := v.(*rdf.NamedNode)
		return rdf.NewBooleanLiteral(ok), nil
	case "ISBLANK":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		_, ok := v.(*rdf.BlankNode)
		return rdf.NewBooleanLiteral(ok), nil
	case "ISLITERAL":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		_, ok := v.(*rdf.Literal)
		return rdf.NewBooleanLiteral(ok), nil
	case "ISNUMERIC":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		lit, ok := v.(*rdf.Literal)
		return rdf.NewBooleanLiteral(ok && lit.IsNumeric()), nil
	case "STR":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		switch t := v.(type) {
		case *rdf.NamedNode:
			return rdf.NewLiteral(t.IRI), nil
		case *rdf.Literal:
			return rdf.NewLiteral(t.Value), nil
		default:
			return rdf.NewLiteral(v.String()), nil
		}
	case "LANG":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		lit, ok := v.(*rdf.Literal)
		if !ok {
			return rdf.NewLiteral(""), nil
		}
		return rdf.NewLiteral(lit.Language), nil
	case "DATATYPE":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		lit, ok := v.(*rdf.Literal)
		if !ok {
			return nil, fmt.Errorf("DATATYPE argument must be a literal")
		}
		if lit.Datatype != nil {
			return lit.Datatype, nil
		}
		return rdf.XSDString, nil
	case "STRLEN":
		s, err := e.strArg(arg, 0)
		if err != nil {
			return nil, err
		}
		return rdf.NewIntegerLiteral(int64(len(s))), nil
	case "UCASE":
		s, err := e.strArg(arg, 0)
		if err != nil {
			return nil, err
		}
		return rdf.NewLiteral(strings.ToUpper(s)), nil
	case "LCASE":
		s, err := e.strArg(arg, 0)
		if err != nil {
			return nil, err
		}
		return rdf.NewLiteral(strings.ToLower(s)), nil
	case "CONCAT":
		var sb strings.Builder
		for i := range ex.Args {
			s, err := e.strArg(arg, i)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s)
		}
		return rdf.NewLiteral(sb.String()), nil
	case "CONTAINS":
		a, err := e.strArg(arg, 0)
		if err != nil {
			return nil, err
		}
		b, err := e.strArg(arg, 1)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(strings.Contains(a, b)), nil
	case "STRSTARTS":
		a, err := e.strArg(arg, 0)
		if err != nil {
			return nil, err
		}
		b, err := e.strArg(arg, 1)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(strings.HasPrefix(a, b)), nil
	case "STRENDS":
		a, err := e.strArg(arg, 0)
		if err != nil {
			return nil, err
		}
		b, err := e.strArg(arg, 1)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(strings.HasSuffix(a, b)), nil
	case "REGEX":
		s, err := e.strArg(arg, 0)
		if err != nil {
			return nil, err
		}
		pattern, err := e.strArg(arg, 1)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("REGEX: invalid pattern: %w", err)
		}
		return rdf.NewBooleanLiteral(re.MatchString(s)), nil
	case "SAMETERM":
		a, err := arg(0)
		if err != nil {
			return nil, err
		}
		b, err := arg(1)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(a != nil && b != nil && a.Equals(b)), nil
	case "ABS", "CEIL", "FLOOR", "ROUND":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		n, err := numericValue(v)
		if err != nil {
			return nil, err
		}
		return rdf.NewDoubleLiteral(applyRounding(ex.Name, n)), nil
	default:
		return nil, fmt.Errorf("unsupported function %s", ex.Name)
	}
}

func (e *Evaluator) strArg(arg func(int) (rdf.Term, error), i int) (string, error) {
	v, err := arg(i)
	if err != nil {
		return "", err
	}
	return extractString(v)
}

func extractString(term rdf.Term) (string, error) {
	switch t := term.(type) {
	case *rdf.Literal:
		return t.Value, nil
	case *rdf.NamedNode:
		return t.IRI, nil
	default:
		return "", fmt.Errorf("expected string-like term, got %T", term)
	}
}

func numericValue(t rdf.Term) (float64, error) {
	lit, ok := t.(*rdf.Literal)
	if !ok || !lit.IsNumeric() {
		return 0, fmt.Errorf("expected numeric literal, got %v", t)
	}
	return lit.NumericValue()
}

func applyRounding(name string, v float64) float64 {
	switch name {
	case "ABS":
		if v < 0 {
			return -v
		}
		return v
	case "CEIL":
		if v == float64(int64(v)) {
			return v
		}
		if v > 0 {
			return float64(int64(v)) + 1
		}
		return float64(int64(v))
	case "FLOOR":
		if v == float64(int64(v)) {
			return v
		}
		if v < 0 {
			return float64(int64(v)) - 1
		}
		return float64(int64(v))
	default: // ROUND
		if v >= 0 {
			return float64(int64(v + 0.5))
		}
		return -float64(int64(-v + 0.5))
	}
}

func termsEqual(a, b rdf.Term) bool {
	if a == nil || b == nil {
		return a == b
	}
	if al, ok := a.(*rdf.Literal); ok {
		if bl, ok := b.(*rdf.Literal); ok && al.IsNumeric() && bl.IsNumeric() {
			av, errA := al.NumericValue()
			bv, errB := bl.NumericValue()
			if errA == nil && errB == nil {
				return av == bv
			}
		}
	}
	return a.Equals(b)
}

func compareNumericOrLexical(a, b rdf.Term) (int, error) {
	al, aok := a.(*rdf.Literal)
	bl, bok := b.(*rdf.Literal)
	if aok && bok && al.IsNumeric() && bl.IsNumeric() {
		av, err := al.NumericValue()
		if err != nil {
			return 0, err
		}
		bv, err := bl.NumericValue()
		if err != nil {
			return 0, err
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return rdf.Compare(a, b), nil
}
