// Package iterator implements the physical operator algebra: Scan,
// IndexJoin, HashJoin, BagUnion, LeftJoin, Filter, Extend, Projection,
// Distinct, Slice, OrderBy and Unit (the empty basic graph pattern). Every
// operator is a closed Go type dispatched by a Kind byte tag
// (the REDESIGN FLAGS direction the base spec calls for) and exposes
// Dump(), so any control flow a "for each" loop would otherwise hide stays
// externalized as explicit state a caller can serialize between any two
// emitted bindings — never mid-tuple.
package iterator

import (
	"fmt"

	"github.com/webpreempt/sage/pkg/rdf"
)

// Kind tags a physical operator's concrete type for the plan codec.
type Kind byte

const (
	KindScan Kind = iota + 1
	KindIndexJoin
	KindBagUnion
	KindLeftJoin
	KindFilter
	KindExtend
	KindProjection
	KindDistinct
	KindSlice
	kindHashJoin
	kindOrderBy
	kindUnit
)

// Signal reports what Next did.
type Signal int

const (
	// Emitted means Next returned a valid binding.
	Emitted Signal = iota
	// Done means the operator is exhausted; no more bindings will ever
	// come from it.
	Done
	// Suspended means the budget ran out before a binding was produced;
	// the operator's state is safe to Dump and resume later.
	Suspended
)

// Budget is the engine's cooperative preemption signal, consulted by
// operators only between emitted bindings, never mid-tuple.
type Budget struct {
	// Preempt becomes true once the engine's quota has elapsed. The
	// max-results limit does not set it; the engine stops pulling instead.
	Preempt bool
}

// Exceeded reports whether the operator should stop and return Suspended.
func (b *Budget) Exceeded() bool { return b != nil && b.Preempt }

// Operator is one node of the physical plan tree.
type Operator interface {
	Kind() Kind
	// Next advances the operator by one binding. On Suspended or Done,
	// the returned binding is nil.
	Next(budget *Budget) (*rdf.Binding, Signal, error)
	// Dump serializes this operator's static configuration and resumable
	// mutable state (and recursively its children) into a PlanNode.
	Dump() *PlanNode
}

// PlanNode is the serializable shape of one operator, consumed by
// internal/continuation's binary codec.
type PlanNode struct {
	Kind     Kind
	Static   []byte
	Mutable  []byte
	Children []*PlanNode
}

// Builder resolves the collaborators an operator needs to rehydrate from a
// PlanNode: a backend to re-open scans against, and an evaluator for
// Filter/Extend expressions.
type Builder struct {
	Backend   ScanBackend
	Evaluator *Evaluator
}

// ScanBackend is the subset of graph.Backend the Scan operator needs. Kept
// narrow here so internal/iterator does not import internal/graph, the
// pattern the teacher uses to keep its executor decoupled from its storage
// package (internal/sparql/executor takes a *store.TripleStore by
// interface-shaped usage rather than binding to storage internals).
type ScanBackend interface {
	Search(s, p, o rdf.Term, cont []byte) (Cursor, error)
}

// Cursor is the subset of graph.Cursor the Scan operator needs.
type Cursor interface {
	Next() (rdf.Triple, bool, error)
	Continuation() []byte
	Cardinality() int64
	Close() error
}

// Build reconstructs an Operator tree from a PlanNode, the inverse of
// Dump(), used when resuming a continuation.
func (b *Builder) Build(node *PlanNode) (Operator, error) {
	if node == nil {
		return nil, fmt.Errorf("iterator: nil plan node")
	}
	children := make([]Operator, 0, len(node.Children))
	for _, c := range node.Children {
		child, err := b.Build(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	switch node.Kind {
	case KindScan:
		return loadScan(b, node)
	case KindIndexJoin:
		return loadIndexJoin(b, node, children)
	case KindBagUnion:
		return loadBagUnion(node, children)
	case KindLeftJoin:
		return loadLeftJoin(b, node, children)
	case kindHashJoin:
		return loadHashJoin(node, children)
	case kindOrderBy:
		return loadOrderBy(b, node, children)
	case kindUnit:
		return loadUnit(node)
	case KindFilter:
		return loadFilter(b, node, children)
	case KindExtend:
		return loadExtend(b, node, children)
	case KindProjection:
		return loadProjection(node, children)
	case KindDistinct:
		return loadDistinct(node, children)
	case KindSlice:
		return loadSlice(node, children)
	default:
		return nil, fmt.Errorf("iterator: unknown plan kind %d", node.Kind)
	}
}
