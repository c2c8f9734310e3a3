package service

import (
	"testing"

	"github.com/webpreempt/sage/internal/config"
	"github.com/webpreempt/sage/internal/graph/memgraph"
	"github.com/webpreempt/sage/pkg/rdf"
)

func newRegistry(t *testing.T, stateful bool, quotaMS int64, maxResults int) *config.Registry {
	t.Helper()
	m := &config.Manifest{
		Stateful: stateful,
		Datasets: []config.Dataset{
			{Name: "demo", Backend: config.BackendMemory, QuotaMS: quotaMS, MaxResults: maxResults},
		},
	}
	r, err := config.NewRegistry(m)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

// seedDemo inserts three foaf:name triples into the "demo" dataset's
// already-opened memory backend.
func seedDemo(t *testing.T, r *config.Registry) {
	t.Helper()
	backend, ok := r.Backend("demo")
	if !ok {
		t.Fatal("missing demo backend")
	}
	g, ok := backend.(*memgraph.Graph)
	if !ok {
		t.Fatalf("expected *memgraph.Graph, got %T", backend)
	}
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
}

func TestQuery_UnknownDataset(t *testing.T) {
	r := newRegistry(t, false, 1000, 10)
	svc := New(r, nil)
	_, err := svc.Query(Request{Dataset: "missing", Query: "SELECT ?x WHERE { ?x ?p ?o }"})
	if err == nil {
		t.Fatal("expected an error for an unknown dataset")
	}
}

func TestQuery_NoQueryOrContinuation(t *testing.T) {
	r := newRegistry(t, false, 1000, 10)
	svc := New(r, nil)
	_, err := svc.Query(Request{Dataset: "demo"})
	if err == nil {
		t.Fatal("expected an error when neither Query nor a continuation is set")
	}
}

func TestQuery_StatelessRoundTripsRawContinuation(t *testing.T) {
	r := newRegistry(t, false, 60_000, 1)
	seedDemo(t, r)
	svc := New(r, nil)

	resp, err := svc.Query(Request{Dataset: "demo", Query: `SELECT ?name WHERE { ?s <http://xmlns.com/foaf/0.1/name> ?name }`})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Done {
		t.Fatal("expected the first page to suspend with max_results=1")
	}
	if resp.ContinuationID != "" {
		t.Fatal("stateless manifest should never set ContinuationID")
	}
	if len(resp.Continuation) == 0 {
		t.Fatal("stateless manifest should set a raw Continuation token")
	}

	resp2, err := svc.Query(Request{Dataset: "demo", Continuation: resp.Continuation})
	if err != nil {
		t.Fatalf("resuming Query: %v", err)
	}
	if len(resp2.Bindings) != 1 {
		t.Fatalf("resumed page got %d bindings, want 1", len(resp2.Bindings))
	}
}

func TestQuery_StatefulAddressesTokenByID(t *testing.T) {
	r := newRegistry(t, true, 60_000, 1)
	seedDemo(t, r)
	svc := New(r, nil)

	resp, err := svc.Query(Request{Dataset: "demo", Query: `SELECT ?name WHERE { ?s <http://xmlns.com/foaf/0.1/name> ?name }`})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Done {
		t.Fatal("expected the first page to suspend")
	}
	if resp.Continuation != nil {
		t.Fatal("stateful manifest should never hand back a raw Continuation")
	}
	if resp.ContinuationID == "" {
		t.Fatal("stateful manifest should set ContinuationID")
	}

	id := resp.ContinuationID
	resp2, err := svc.Query(Request{Dataset: "demo", ContinuationID: id})
	if err != nil {
		t.Fatalf("resuming by id: %v", err)
	}
	if len(resp2.Bindings) != 1 {
		t.Fatalf("resumed page got %d bindings, want 1", len(resp2.Bindings))
	}

	// The id is single-use: taking it again (without the engine saving a
	// new token under it first) must miss.
	if _, err := svc.Query(Request{Dataset: "demo", ContinuationID: id}); err == nil {
		t.Fatal("expected re-using a consumed continuation id to fail")
	}
}

func TestQuery_StatefulDeletesIDOnCompletion(t *testing.T) {
	r := newRegistry(t, true, 60_000, 1)
	seedDemo(t, r)
	svc := New(r, nil)

	resp, err := svc.Query(Request{Dataset: "demo", Query: `SELECT ?name WHERE { ?s <http://xmlns.com/foaf/0.1/name> ?name }`})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	id := resp.ContinuationID

	resp2, err := svc.Query(Request{Dataset: "demo", ContinuationID: id})
	if err != nil {
		t.Fatalf("resume 1: %v", err)
	}
	if resp2.Done {
		t.Fatal("expected one more page before completion (3 triples, max_results=1)")
	}
	id2 := resp2.ContinuationID
	if id2 == "" {
		t.Fatal("expected a continuation id for the still-unfinished lineage")
	}

	resp3, err := svc.Query(Request{Dataset: "demo", ContinuationID: id2})
	if err != nil {
		t.Fatalf("resume 2: %v", err)
	}
	if !resp3.Done {
		t.Fatal("expected the lineage to finish on its third page")
	}
	if resp3.ContinuationID != "" {
		t.Fatal("a Done response must not carry a continuation id")
	}

	if _, ok := r.Plans.Take(id2); ok {
		t.Fatal("completed lineage's continuation id should have been deleted from the plan store")
	}
}

func TestQuery_AskSuppressesBindings(t *testing.T) {
	r := newRegistry(t, false, 60_000, 100)
	seedDemo(t, r)
	svc := New(r, nil)

	resp, err := svc.Query(Request{Dataset: "demo", Query: `ASK { ?s <http://xmlns.com/foaf/0.1/name> "Alice" }`})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.AskResult == nil {
		t.Fatal("expected AskResult to be set")
	}
	if !*resp.AskResult {
		t.Fatal("expected AskResult true for an existing name")
	}
	if len(resp.Bindings) != 0 {
		t.Fatalf("ASK response should not carry bindings, got %d", len(resp.Bindings))
	}
}
