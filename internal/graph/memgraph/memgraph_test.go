package memgraph

import (
	"testing"

	"github.com/webpreempt/sage/pkg/rdf"
)

func sample() []rdf.Triple {
	alice := rdf.NewNamedNode("http://example.org/alice")
	bob := rdf.NewNamedNode("http://example.org/bob")
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	return []rdf.Triple{
		*rdf.NewTriple(alice, name, rdf.NewLiteral("Alice")),
		*rdf.NewTriple(bob, name, rdf.NewLiteral("Bob")),
	}
}

func TestInsertAndCount(t *testing.T) {
	g := New(1000, 10)
	for _, tr := range sample() {
		g.Insert(tr)
	}
	if g.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", g.Count())
	}
}

func TestSearch_Unbound(t *testing.T) {
	g := New(1000, 10)
	for _, tr := range sample() {
		g.Insert(tr)
	}
	v1, v2, v3 := rdf.NewVariable("s"), rdf.NewVariable("p"), rdf.NewVariable("o")
	cur, err := g.Search(v1, v2, v3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	defer cur.Close()
	if cur.Cardinality() != 2 {
		t.Fatalf("Cardinality() = %d, want 2", cur.Cardinality())
	}
	count := 0
	for {
		_, ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("iterated %d triples, want 2", count)
	}
}

func TestSearch_BoundPredicate(t *testing.T) {
	g := New(1000, 10)
	for _, tr := range sample() {
		g.Insert(tr)
	}
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	v1, v3 := rdf.NewVariable("s"), rdf.NewVariable("o")
	cur, err := g.Search(v1, name, v3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	defer cur.Close()
	if cur.Cardinality() != 2 {
		t.Fatalf("Cardinality() = %d, want 2", cur.Cardinality())
	}
}

func TestSearch_ResumeFromContinuation(t *testing.T) {
	g := New(1000, 10)
	for _, tr := range sample() {
		g.Insert(tr)
	}
	v1, v2, v3 := rdf.NewVariable("s"), rdf.NewVariable("p"), rdf.NewVariable("o")

	cur, err := g.Search(v1, v2, v3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	first, ok, err := cur.Next()
	if err != nil || !ok {
		t.Fatalf("first Next: triple=%v ok=%v err=%v", first, ok, err)
	}
	cont := cur.Continuation()
	cur.Close()

	resumed, err := g.Search(v1, v2, v3, cont)
	if err != nil {
		t.Fatalf("resumed Search: %v", err)
	}
	defer resumed.Close()
	second, ok, err := resumed.Next()
	if err != nil || !ok {
		t.Fatalf("resumed Next: triple=%v ok=%v err=%v", second, ok, err)
	}
	if first.Equals(&second) {
		t.Fatal("resumed scan re-returned the already-consumed triple")
	}
	_, ok, err = resumed.Next()
	if err != nil {
		t.Fatalf("final Next: %v", err)
	}
	if ok {
		t.Fatal("expected the resumed scan to be exhausted after its one remaining triple")
	}
}

func TestCommitAbort_AreNoOps(t *testing.T) {
	g := New(1000, 10)
	if err := g.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := g.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
}
