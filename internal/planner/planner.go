// Package planner compiles the parser's logical algebra tree into a
// physical iterator.Operator tree, grounded on the optimizer responsibilities
// the base spec names: BGP ordering by ascending cardinality estimate,
// left-deep index-nested-loop join shape, and a bounded filter push-down
// pass. It is a pure function of (logical algebra, backend cardinality
// table): no execution happens here, only plan construction.
package planner

import (
	"fmt"
	"sort"

	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/internal/iterator"
	"github.com/webpreempt/sage/pkg/rdf"
)

// CardinalityEstimates maps each leaf triple pattern (by its canonical
// string form) to the backend's cardinality estimate for it, returned
// alongside the plan for monitoring, per the base spec's optimizer
// responsibilities. It is informational only; the engine never consumes it.
type CardinalityEstimates map[string]int64

// Plan is the optimizer's output: a physical operator tree ready to execute,
// plus the cardinality estimates collected while building it.
type Plan struct {
	Operator      iterator.Operator
	Cardinalities CardinalityEstimates
}

// Planner builds physical plans against one backend.
type Planner struct {
	backend   iterator.ScanBackend
	builder   *iterator.Builder
	evaluator *iterator.Evaluator
}

// New returns a Planner bound to backend. The returned Planner's Evaluator
// (exposed for reuse by the engine when rebuilding a resumed plan) wires
// EXISTS/NOT EXISTS evaluation back into the planner itself: each EXISTS
// sub-pattern is compiled fresh, with outer-bound variables substituted in,
// and driven to its first solution (or exhaustion) under an unbounded
// budget, since EXISTS is evaluated eagerly rather than as a resumable
// operator.
func New(backend iterator.ScanBackend) *Planner {
	p := &Planner{backend: backend}
	p.evaluator = &iterator.Evaluator{Exists: p.evalExists}
	p.builder = &iterator.Builder{Backend: backend, Evaluator: p.evaluator}
	return p
}

// Evaluator returns the planner's expression evaluator, shared with
// iterator.Builder so a resumed continuation evaluates FILTER/BIND/EXISTS
// identically to a freshly planned query.
func (p *Planner) Evaluator() *iterator.Evaluator { return p.evaluator }

// Builder returns the planner's operator builder, used by the engine to
// reload a PlanNode from a continuation.
func (p *Planner) Builder() *iterator.Builder { return p.builder }

// Build compiles query into a physical plan.
func (p *Planner) Build(query *algebra.Query) (*Plan, error) {
	card := CardinalityEstimates{}
	op, err := p.compile(query.Pattern, card)
	if err != nil {
		return nil, err
	}
	return &Plan{Operator: op, Cardinalities: card}, nil
}

func (p *Planner) compile(node algebra.Node, card CardinalityEstimates) (iterator.Operator, error) {
	switch v := node.(type) {
	case *algebra.BGP:
		return p.compileBGP(v, card)
	case *algebra.Join:
		return p.compileJoin(v, card)
	case *algebra.LeftJoin:
		left, err := p.compile(v.Left, card)
		if err != nil {
			return nil, err
		}
		right, err := p.compile(v.Right, card)
		if err != nil {
			return nil, err
		}
		return iterator.NewLeftJoin(p.evaluator, left, right, v.Filter), nil
	case *algebra.Union:
		left, err := p.compile(v.Left, card)
		if err != nil {
			return nil, err
		}
		right, err := p.compile(v.Right, card)
		if err != nil {
			return nil, err
		}
		return iterator.NewBagUnion(left, right), nil
	case *algebra.Filter:
		return p.compileFilter(v, card)
	case *algebra.Extend:
		input, err := p.compile(v.Input, card)
		if err != nil {
			return nil, err
		}
		return iterator.NewExtend(p.evaluator, input, v.Variable, v.Expression), nil
	case *algebra.Project:
		input, err := p.compile(v.Input, card)
		if err != nil {
			return nil, err
		}
		return iterator.NewProjection(input, v.Variables), nil
	case *algebra.Distinct:
		input, err := p.compile(v.Input, card)
		if err != nil {
			return nil, err
		}
		return iterator.NewDistinct(input, v.Variables), nil
	case *algebra.Slice:
		input, err := p.compile(v.Input, card)
		if err != nil {
			return nil, err
		}
		return iterator.NewSlice(input, v.Offset, v.Limit), nil
	case *algebra.OrderBy:
		input, err := p.compile(v.Input, card)
		if err != nil {
			return nil, err
		}
		return iterator.NewOrderBy(p.evaluator, input, v.Conditions), nil
	default:
		return nil, fmt.Errorf("planner: unsupported algebra node %T", node)
	}
}

// compileBGP orders patterns by ascending cardinality estimate (probed from
// the backend), ties broken by descending bound-term count then by original
// textual order, and builds the left-deep index-nested-loop join chain the
// base spec's optimizer section calls for.
func (p *Planner) compileBGP(bgp *algebra.BGP, card CardinalityEstimates) (iterator.Operator, error) {
	if len(bgp.Patterns) == 0 {
		return iterator.NewUnit(), nil
	}
	ordered, err := p.orderPatterns(bgp.Patterns, card)
	if err != nil {
		return nil, err
	}
	op := iterator.Operator(iterator.NewScan(p.backend, ordered[0]))
	for _, pattern := range ordered[1:] {
		op = iterator.NewIndexJoin(p.backend, op, pattern)
	}
	return op, nil
}

type patternEntry struct {
	pattern     algebra.TriplePattern
	cardinality int64
	bound       int
	index       int
}

func (p *Planner) orderPatterns(patterns []algebra.TriplePattern, card CardinalityEstimates) ([]algebra.TriplePattern, error) {
	entries := make([]patternEntry, len(patterns))
	for i, pat := range patterns {
		c, err := p.probeCardinality(pat)
		if err != nil {
			return nil, err
		}
		card[patternKey(pat)] = c
		entries[i] = patternEntry{pattern: pat, cardinality: c, bound: boundTermCount(pat), index: i}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].cardinality != entries[j].cardinality {
			return entries[i].cardinality < entries[j].cardinality
		}
		if entries[i].bound != entries[j].bound {
			return entries[i].bound > entries[j].bound
		}
		return entries[i].index < entries[j].index
	})
	out := make([]algebra.TriplePattern, len(entries))
	for i, e := range entries {
		out[i] = e.pattern
	}
	return out, nil
}

func (p *Planner) probeCardinality(pattern algebra.TriplePattern) (int64, error) {
	cur, err := p.backend.Search(patternTerm(pattern.Subject), patternTerm(pattern.Predicate), patternTerm(pattern.Object), nil)
	if err != nil {
		return 0, err
	}
	defer cur.Close()
	return cur.Cardinality(), nil
}

func patternTerm(t rdf.Term) rdf.Term {
	if _, ok := t.(*rdf.Variable); ok {
		return nil
	}
	return t
}

func boundTermCount(p algebra.TriplePattern) int {
	n := 0
	for _, t := range []rdf.Term{p.Subject, p.Predicate, p.Object} {
		if _, ok := t.(*rdf.Variable); !ok {
			n++
		}
	}
	return n
}

func patternKey(p algebra.TriplePattern) string {
	return fmt.Sprintf("%s %s %s", p.Subject, p.Predicate, p.Object)
}

// compileJoin compiles a generic Join node. When Right reduces to a BGP, its
// patterns are folded into the same left-deep IndexJoin chain as Left (the
// common case: a BGP joined against another BGP-shaped group, e.g. across a
// nested `{ }` the parser introduced). Otherwise Right is compiled
// independently and joined with a HashJoin, since IndexJoin only knows how
// to re-parameterize a single triple pattern, not an arbitrary subtree (e.g.
// the right side of a join is itself a Union or LeftJoin).
func (p *Planner) compileJoin(join *algebra.Join, card CardinalityEstimates) (iterator.Operator, error) {
	left, err := p.compile(join.Left, card)
	if err != nil {
		return nil, err
	}
	if rightBGP, ok := join.Right.(*algebra.BGP); ok {
		if len(rightBGP.Patterns) == 0 {
			return left, nil
		}
		ordered, err := p.orderPatterns(rightBGP.Patterns, card)
		if err != nil {
			return nil, err
		}
		op := left
		for _, pattern := range ordered {
			op = iterator.NewIndexJoin(p.backend, op, pattern)
		}
		return op, nil
	}
	right, err := p.compile(join.Right, card)
	if err != nil {
		return nil, err
	}
	return iterator.NewHashJoin(left, right), nil
}

// evalExists implements the Evaluator's EXISTS callback: substitute outer's
// bound variables into pattern, compile it fresh, and run it to its first
// solution under an unbounded budget.
func (p *Planner) evalExists(pattern algebra.Node, outer *rdf.Binding) (bool, error) {
	substituted := substituteNode(pattern, outer)
	op, err := p.compile(substituted, CardinalityEstimates{})
	if err != nil {
		return false, err
	}
	_, sig, err := op.Next(&iterator.Budget{})
	if err != nil {
		return false, err
	}
	return sig == iterator.Emitted, nil
}
