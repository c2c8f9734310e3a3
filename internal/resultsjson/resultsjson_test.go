package resultsjson

import (
	"encoding/json"
	"testing"

	"github.com/webpreempt/sage/internal/service"
	"github.com/webpreempt/sage/pkg/rdf"
)

func TestEncode_SelectBindings(t *testing.T) {
	alice := rdf.NewNamedNode("http://example.org/alice")
	nameLit := rdf.NewLiteral("Alice")
	b := rdf.NewBinding()
	b.Set("s", alice)
	b.Set("name", nameLit)

	resp := &service.Response{
		Bindings: []*rdf.Binding{b},
		Done:     true,
	}

	out, err := Encode(resp, []string{"s", "name"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(doc.Head.Vars) != 2 || doc.Head.Vars[0] != "s" || doc.Head.Vars[1] != "name" {
		t.Fatalf("Head.Vars = %v, want [s name]", doc.Head.Vars)
	}
	if doc.Results == nil || len(doc.Results.Bindings) != 1 {
		t.Fatalf("Results = %+v, want one binding row", doc.Results)
	}
	row := doc.Results.Bindings[0]
	if row["s"].Type != "uri" || row["s"].Value != "http://example.org/alice" {
		t.Fatalf("row[s] = %+v", row["s"])
	}
	if row["name"].Type != "literal" || row["name"].Value != "Alice" {
		t.Fatalf("row[name] = %+v", row["name"])
	}
	if !doc.Page.Done {
		t.Fatal("Page.Done should be true")
	}
}

func TestEncode_AskTrue(t *testing.T) {
	found := true
	resp := &service.Response{AskResult: &found, Done: true}
	out, err := Encode(resp, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc.Boolean == nil || !*doc.Boolean {
		t.Fatal("expected Boolean=true")
	}
	if doc.Results != nil {
		t.Fatal("ASK response should not carry a results object")
	}
}

func TestEncode_ContinuationIsBase64(t *testing.T) {
	resp := &service.Response{Continuation: []byte{0xDE, 0xAD, 0xBE, 0xEF}, Done: false}
	out, err := Encode(resp, []string{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc.Page.Continuation == nil {
		t.Fatal("expected a base64 continuation field")
	}
	if *doc.Page.Continuation != "3q2+7w==" {
		t.Fatalf("continuation = %q, want base64 of deadbeef", *doc.Page.Continuation)
	}
	if doc.Page.Done {
		t.Fatal("Page.Done should be false")
	}
}

func TestEncode_CollectsVarsWhenNil(t *testing.T) {
	b := rdf.NewBinding()
	b.Set("x", rdf.NewLiteral("1"))
	resp := &service.Response{Bindings: []*rdf.Binding{b}, Done: true}
	out, err := Encode(resp, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(doc.Head.Vars) != 1 || doc.Head.Vars[0] != "x" {
		t.Fatalf("Head.Vars = %v, want [x]", doc.Head.Vars)
	}
}

func TestEncode_AbortReasonSurfaces(t *testing.T) {
	resp := &service.Response{Done: false, AbortReason: "backend unavailable"}
	out, err := Encode(resp, []string{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc.Page.AbortReason != "backend unavailable" {
		t.Fatalf("AbortReason = %q", doc.Page.AbortReason)
	}
}
