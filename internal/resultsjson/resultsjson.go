// Package resultsjson encodes a service.Response in the W3C SPARQL 1.1
// Query Results JSON Format (https://www.w3.org/TR/sparql11-results-json/).
// Grounded on the teacher's internal/server/results.go FormatSelectResultsJSON
// and FormatAskResultJSON, adapted to one rdf.Binding/service.Response shape
// instead of separate executor.SelectResult/AskResult types, and extended
// with the page/continuation fields spec.md §10 adds to the wire payload.
// XML and HTML result encodings are an explicit non-goal; JSON is the one
// format this module ships.
package resultsjson

import (
	"encoding/base64"
	"encoding/json"

	"github.com/webpreempt/sage/internal/service"
	"github.com/webpreempt/sage/pkg/rdf"
)

// Document is the top-level SPARQL results JSON object, extended with the
// paging metadata a preemptable query needs to hand back to the client.
type Document struct {
	Head    Head     `json:"head"`
	Results *Results `json:"results,omitempty"`
	Boolean *bool    `json:"boolean,omitempty"`

	Page PageInfo `json:"page"`
}

// Head carries the projected variable names, in SELECT order (empty for
// SELECT * until bindings are inspected, and always empty for ASK).
type Head struct {
	Vars []string `json:"vars"`
}

// Results wraps the list of solution bindings.
type Results struct {
	Bindings []map[string]Value `json:"bindings"`
}

// Value is one bound term in SPARQL JSON results shape: a type tag plus the
// lexical value, with datatype/language set only for typed or tagged
// literals.
type Value struct {
	Type     string  `json:"type"`
	Value    string  `json:"value"`
	Datatype *string `json:"datatype,omitempty"`
	XMLLang  *string `json:"xml:lang,omitempty"`
}

// PageInfo reports whether more results remain and, if so, how to ask for
// the next page: a base64-encoded raw continuation token when the dataset's
// manifest is stateless, or a short id when it is stateful.
type PageInfo struct {
	Done           bool    `json:"done"`
	AbortReason    string  `json:"abortReason,omitempty"`
	Continuation   *string `json:"continuation,omitempty"`
	ContinuationID string  `json:"continuationId,omitempty"`
}

// Encode renders resp as a SPARQL results JSON document. vars, if non-nil,
// fixes the head's variable order (the SELECT projection list); if nil, the
// variable set is collected from the first page's bindings, matching the
// teacher's SELECT * fallback.
func Encode(resp *service.Response, vars []string) ([]byte, error) {
	doc := Document{
		Page: PageInfo{
			Done:        resp.Done,
			AbortReason: resp.AbortReason,
		},
	}
	if resp.Continuation != nil {
		enc := base64.StdEncoding.EncodeToString(resp.Continuation)
		doc.Page.Continuation = &enc
	}
	doc.Page.ContinuationID = resp.ContinuationID

	if resp.AskResult != nil {
		doc.Head = Head{Vars: []string{}}
		doc.Boolean = resp.AskResult
		return json.MarshalIndent(doc, "", "  ")
	}

	varNames := vars
	if varNames == nil {
		varNames = collectVars(resp.Bindings)
	}
	doc.Head = Head{Vars: varNames}
	doc.Results = &Results{Bindings: encodeBindings(resp.Bindings)}
	return json.MarshalIndent(doc, "", "  ")
}

func collectVars(bindings []*rdf.Binding) []string {
	seen := make(map[string]bool)
	var names []string
	for _, b := range bindings {
		for name := range b.Vars {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

func encodeBindings(bindings []*rdf.Binding) []map[string]Value {
	out := make([]map[string]Value, 0, len(bindings))
	for _, b := range bindings {
		row := make(map[string]Value, len(b.Vars))
		for name, term := range b.Vars {
			row[name] = encodeTerm(term)
		}
		out = append(out, row)
	}
	return out
}

func encodeTerm(term rdf.Term) Value {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return Value{Type: "uri", Value: t.IRI}
	case *rdf.BlankNode:
		return Value{Type: "bnode", Value: t.ID}
	case *rdf.Literal:
		v := Value{Type: "literal", Value: t.Value}
		switch {
		case t.Language != "":
			lang := t.Language
			v.XMLLang = &lang
		case t.Datatype != nil:
			dt := t.Datatype.IRI
			v.Datatype = &dt
		}
		return v
	default:
		return Value{Type: "literal", Value: term.String()}
	}
}
