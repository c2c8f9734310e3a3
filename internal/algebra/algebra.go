// Package algebra defines the logical query algebra the parser produces and
// the optimizer consumes: BGP, Join, LeftJoin, Union, Filter, Extend,
// Project, Distinct and Slice, plus the scalar expression tree used by
// FILTER and BIND. Grounded on the teacher's internal/sparql/parser/ast.go
// shapes, flattened from a generic GraphPattern tree into one node type per
// operator so the optimizer can pattern-match with a type switch instead of
// branching on a GraphPatternType tag.
package algebra

import "github.com/webpreempt/sage/pkg/rdf"

// Node is a logical algebra node.
type Node interface {
	algebraNode()
}

// TriplePattern is one (subject, predicate, object) pattern; any position
// may hold an rdf.Variable.
type TriplePattern struct {
	Subject, Predicate, Object rdf.Term
}

// BGP is a basic graph pattern: a conjunction of triple patterns evaluated
// against one named graph.
type BGP struct {
	Patterns []TriplePattern
}

func (*BGP) algebraNode() {}

// Join is an inner join of Left and Right on shared variables.
type Join struct {
	Left, Right Node
}

func (*Join) algebraNode() {}

// LeftJoin is SPARQL OPTIONAL: every Left row is preserved even without a
// compatible Right row, with Filter applied as the join's ON condition.
type LeftJoin struct {
	Left, Right Node
	Filter      Expression // nil if OPTIONAL carried no extra FILTER
}

func (*LeftJoin) algebraNode() {}

// Union is SPARQL UNION: the bag union of Left's and Right's solutions.
type Union struct {
	Left, Right Node
}

func (*Union) algebraNode() {}

// Filter keeps only rows where Expression has effective boolean value true.
type Filter struct {
	Input      Node
	Expression Expression
}

func (*Filter) algebraNode() {}

// Extend is SPARQL BIND: adds a new variable computed from Expression.
type Extend struct {
	Input      Node
	Variable   string
	Expression Expression
}

func (*Extend) algebraNode() {}

// Project restricts a row to the named variables, in order, for SELECT.
type Project struct {
	Input     Node
	Variables []string
}

func (*Project) algebraNode() {}

// Distinct removes duplicate rows, comparing on Variables (all bound
// variables if Variables is nil).
type Distinct struct {
	Input     Node
	Variables []string
}

func (*Distinct) algebraNode() {}

// Slice applies OFFSET/LIMIT; Limit < 0 means unbounded.
type Slice struct {
	Input  Node
	Offset int64
	Limit  int64
}

func (*Slice) algebraNode() {}

// OrderBy sorts rows by a sequence of expressions.
type OrderBy struct {
	Input      Node
	Conditions []OrderCondition
}

func (*OrderBy) algebraNode() {}

// OrderCondition is one ORDER BY key.
type OrderCondition struct {
	Expression Expression
	Ascending  bool
}

// Query is the parser's top-level output: a logical algebra tree plus the
// query's shape (SELECT projection and DISTINCT, or ASK).
type Query struct {
	Ask       bool
	Distinct  bool
	Variables []string // SELECT projection order; empty means SELECT *
	Pattern   Node
}

// Expression is a scalar expression evaluated against one binding, used by
// FILTER, BIND and ORDER BY.
type Expression interface {
	expressionNode()
}

// Operator enumerates the operators BinaryExpression and UnaryExpression
// carry, grounded on the teacher's internal/sparql/parser.Operator enum.
type Operator int

const (
	OpAnd Operator = iota
	OpOr
	OpNot
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
)

// BinaryExpression is a two-operand logical, comparison or arithmetic
// expression.
type BinaryExpression struct {
	Operator    Operator
	Left, Right Expression
}

func (*BinaryExpression) expressionNode() {}

// UnaryExpression is a one-operand expression (!, unary -, unary +).
type UnaryExpression struct {
	Operator Operator
	Operand  Expression
}

func (*UnaryExpression) expressionNode() {}

// VariableExpression references a bound (or unbound) variable by name.
type VariableExpression struct {
	Name string
}

func (*VariableExpression) expressionNode() {}

// LiteralExpression is a constant term (literal, IRI).
type LiteralExpression struct {
	Term rdf.Term
}

func (*LiteralExpression) expressionNode() {}

// FunctionCallExpression is a built-in function application, e.g. STR(?x),
// REGEX(?x, "^a"), BOUND(?x).
type FunctionCallExpression struct {
	Name string
	Args []Expression
}

func (*FunctionCallExpression) expressionNode() {}

// ExistsExpression is EXISTS/NOT EXISTS { pattern }.
type ExistsExpression struct {
	Not     bool
	Pattern Node
}

func (*ExistsExpression) expressionNode() {}

// InExpression is `expr IN (values...)` / `expr NOT IN (values...)`.
type InExpression struct {
	Not        bool
	Expression Expression
	Values     []Expression
}

func (*InExpression) expressionNode() {}

// Variables returns the set of variable names a triple pattern binds.
func (p TriplePattern) Variables() []string {
	var out []string
	for _, t := range []rdf.Term{p.Subject, p.Predicate, p.Object} {
		if v, ok := t.(*rdf.Variable); ok {
			out = append(out, v.Name)
		}
	}
	return out
}
