package iterator_test

import (
	"sort"
	"testing"

	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/internal/graph/memgraph"
	"github.com/webpreempt/sage/internal/iterator"
	"github.com/webpreempt/sage/pkg/rdf"
)

// preemptAfter wraps an Operator and flips the shared budget's Preempt flag
// once it has let n calls through, standing in for the engine's real
// elapsed-time check (internal/engine.Engine.Execute) so a unit test can
// force preemption to land between two specific rows of a right-hand scan
// instead of only at a Next call boundary. Its Dump() is the wrapped
// operator's own dump, so a continuation built from a suspended join
// carries only real operator state, never this test-only shim.
type preemptAfter struct {
	inner iterator.Operator
	n     int
}

func (p *preemptAfter) Kind() iterator.Kind { return p.inner.Kind() }
func (p *preemptAfter) Dump() *iterator.PlanNode {
	return p.inner.Dump()
}
func (p *preemptAfter) Next(budget *iterator.Budget) (*rdf.Binding, iterator.Signal, error) {
	if p.n <= 0 {
		budget.Preempt = true
	}
	p.n--
	return p.inner.Next(budget)
}

// seedPeople builds a graph with n people, each with a name and an age
// triple, so a right-side scan over one of the two predicates has several
// rows to pull — enough for a forced mid-drain preemption to land with some
// rows already materialized and some not.
func seedPeople(n int) *memgraph.Graph {
	g := memgraph.New(60_000, 100)
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	age := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/age")
	for i := 0; i < n; i++ {
		s := rdf.NewNamedNode(personIRI(i))
		g.Insert(*rdf.NewTriple(s, name, rdf.NewLiteral(personName(i))))
		g.Insert(*rdf.NewTriple(s, age, rdf.NewLiteral("30")))
	}
	return g
}

func personIRI(i int) string  { return "http://example.org/p" + string(rune('a'+i)) }
func personName(i int) string { return string(rune('A' + i)) }

func nameScan(g *memgraph.Graph) iterator.Operator {
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	return iterator.NewScan(memScan{g}, algebra.TriplePattern{
		Subject:   rdf.NewVariable("s"),
		Predicate: name,
		Object:    rdf.NewVariable("name"),
	})
}

func ageScan(g *memgraph.Graph) iterator.Operator {
	age := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/age")
	return iterator.NewScan(memScan{g}, algebra.TriplePattern{
		Subject:   rdf.NewVariable("s2"),
		Predicate: age,
		Object:    rdf.NewVariable("age"),
	})
}

func drainHashJoin(t *testing.T, op iterator.Operator) []string {
	t.Helper()
	var names []string
	budget := &iterator.Budget{}
	for {
		b, sig, err := op.Next(budget)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		switch sig {
		case iterator.Emitted:
			names = append(names, b.Get("name").(*rdf.Literal).Value)
		case iterator.Done:
			sort.Strings(names)
			return names
		case iterator.Suspended:
			t.Fatal("unexpected suspension under an unbounded budget")
		}
	}
}

// TestHashJoin_PreemptsDuringRightMaterialization exercises the bug the
// maintainer flagged: materializing the right side of a non-index-driven
// join must observe the engine's real budget, not a locally-constructed
// unbounded one, so a quota that expires partway through a large right-hand
// scan is honored instead of ignored until the whole scan is drained.
func TestHashJoin_PreemptsDuringRightMaterialization(t *testing.T) {
	g := seedPeople(5)
	builder := &iterator.Builder{Backend: memScan{g}}
	right := &preemptAfter{inner: ageScan(g), n: 2}
	j := iterator.NewHashJoin(nameScan(g), right)

	budget := &iterator.Budget{}
	_, sig, err := j.Next(budget)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if sig != iterator.Suspended {
		t.Fatalf("got signal %v, want Suspended after the right scan's quota ran out mid-drain", sig)
	}

	node := j.Dump()
	if len(node.Children) != 2 {
		t.Fatalf("expected Dump to carry both left and in-progress right children, got %d", len(node.Children))
	}

	resumed, err := builder.Build(node)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fresh := iterator.NewHashJoin(nameScan(g), ageScan(g))
	want := drainHashJoin(t, fresh)
	got := drainHashJoin(t, resumed)
	if len(got) != len(want) {
		t.Fatalf("resumed join produced %d rows, want %d (uninterrupted reference)", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("resumed join = %v, want %v", got, want)
		}
	}
}

func TestLeftJoin_PreemptsDuringRightMaterialization(t *testing.T) {
	g := seedPeople(5)
	builder := &iterator.Builder{Backend: memScan{g}}
	evaluator := &iterator.Evaluator{}
	right := &preemptAfter{inner: ageScan(g), n: 2}
	j := iterator.NewLeftJoin(evaluator, nameScan(g), right, nil)

	budget := &iterator.Budget{}
	_, sig, err := j.Next(budget)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if sig != iterator.Suspended {
		t.Fatalf("got signal %v, want Suspended after the right scan's quota ran out mid-drain", sig)
	}

	node := j.Dump()
	if len(node.Children) != 2 {
		t.Fatalf("expected Dump to carry both left and in-progress right children, got %d", len(node.Children))
	}

	resumed, err := builder.Build(node)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var total int
	resumeBudget := &iterator.Budget{}
	for {
		_, sig, err := resumed.Next(resumeBudget)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if sig == iterator.Done {
			break
		}
		if sig == iterator.Emitted {
			total++
		}
	}
	// Every left row is a cross-product match against every right row
	// (both scans' Subject variables differ, s vs s2, so Compatible never
	// rejects a pairing): 5 left rows * 5 right rows.
	if total != 25 {
		t.Fatalf("resumed OPTIONAL produced %d rows, want 25", total)
	}
}
