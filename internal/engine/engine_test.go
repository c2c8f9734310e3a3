package engine

import (
	"testing"

	"github.com/webpreempt/sage/internal/graph/memgraph"
	"github.com/webpreempt/sage/internal/parser"
	"github.com/webpreempt/sage/pkg/rdf"
)

func sampleGraph() *memgraph.Graph {
	g := memgraph.New(60_000, 100)
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	for _, pair := range [][2]string{
		{"http://example.org/alice", "Alice"},
		{"http://example.org/bob", "Bob"},
		{"http://example.org/carol", "Carol"},
	} {
		s := rdf.NewNamedNode(pair[0])
		o := rdf.NewLiteral(pair[1])
		g.Insert(*rdf.NewTriple(s, name, o))
	}
	return g
}

func TestExecute_RunsToCompletion(t *testing.T) {
	g := sampleGraph()
	eng := New(g, nil)

	q, err := parser.Parse(`SELECT ?name WHERE { ?s <http://xmlns.com/foaf/0.1/name> ?name }`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	plan, err := eng.Plan(q)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	result, err := eng.Execute(plan.Operator, 60_000, 100)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Done {
		t.Fatalf("expected Done, got Continuation of %d bytes", len(result.Continuation))
	}
	if len(result.Bindings) != 3 {
		t.Fatalf("got %d bindings, want 3", len(result.Bindings))
	}
}

func TestExecute_SuspendAndResumeReassemblesAllBindings(t *testing.T) {
	g := sampleGraph()
	eng := New(g, nil)

	q, err := parser.Parse(`SELECT ?name WHERE { ?s <http://xmlns.com/foaf/0.1/name> ?name }`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	plan, err := eng.Plan(q)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	// max_results = 1 forces a suspend after the first binding even though
	// the quota is generous, exercising the result-count budget.
	first, err := eng.Execute(plan.Operator, 60_000, 1)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if first.Done {
		t.Fatal("expected the first page to suspend, not finish")
	}
	if len(first.Continuation) == 0 {
		t.Fatal("suspended result carries no continuation token")
	}
	if len(first.Bindings) != 1 {
		t.Fatalf("first page = %d bindings, want 1", len(first.Bindings))
	}

	total := len(first.Bindings)
	token := first.Continuation
	for {
		op, err := eng.Resume(token)
		if err != nil {
			t.Fatalf("Resume: %v", err)
		}
		page, err := eng.Execute(op, 60_000, 1)
		if err != nil {
			t.Fatalf("Execute resumed page: %v", err)
		}
		total += len(page.Bindings)
		if page.Done {
			break
		}
		if len(page.Continuation) == 0 {
			t.Fatal("non-final page carries no continuation")
		}
		token = page.Continuation
	}
	if total != 3 {
		t.Fatalf("reassembled %d bindings across pages, want 3", total)
	}
}

func TestExecute_AskQueryReportsSingleBinding(t *testing.T) {
	g := sampleGraph()
	eng := New(g, nil)

	q, err := parser.Parse(`ASK { ?s <http://xmlns.com/foaf/0.1/name> "Alice" }`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !q.Ask {
		t.Fatal("expected Ask to be true")
	}
	plan, err := eng.Plan(q)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	result, err := eng.Execute(plan.Operator, 60_000, 100)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Done {
		t.Fatal("ASK's Slice{Limit:1} should always finish in one page")
	}
	if len(result.Bindings) != 1 {
		t.Fatalf("got %d bindings, want exactly 1 (ASK is true)", len(result.Bindings))
	}
}

func TestExecute_AskQueryFalse(t *testing.T) {
	g := sampleGraph()
	eng := New(g, nil)

	q, err := parser.Parse(`ASK { ?s <http://xmlns.com/foaf/0.1/name> "Nobody" }`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	plan, err := eng.Plan(q)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	result, err := eng.Execute(plan.Operator, 60_000, 100)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Done || len(result.Bindings) != 0 {
		t.Fatalf("got Done=%v bindings=%d, want Done=true bindings=0", result.Done, len(result.Bindings))
	}
}
