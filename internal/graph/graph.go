// Package graph defines the triple backend interface (C1) the planner and
// iterator algebra run against. Two reference implementations ship in this
// module: internal/graph/memgraph (in-memory) and internal/graph/badgergraph
// (persistent, adapting the teacher's storage layer).
package graph

import "github.com/webpreempt/sage/pkg/rdf"

// Backend is one queryable, transactional RDF graph. Every Search opens a
// new read inside the backend's current transaction; Commit/Abort close
// that transaction exactly once per query execution, per the transaction
// pairing invariant.
type Backend interface {
	// Search returns a Cursor over triples matching s, p, o (nil meaning
	// unbound in that position). cont, when non-nil, resumes a cursor
	// previously suspended via Cursor.Continuation.
	Search(s, p, o rdf.Term, cont []byte) (Cursor, error)
	Commit() error
	Abort() error
	Describe(url string) Description
	QuotaMS() int64
	MaxResults() int
}

// Cursor iterates matching triples in a stable, resumable order.
type Cursor interface {
	Next() (rdf.Triple, bool, error)
	// Continuation returns an opaque token identifying where to resume
	// after the triple most recently returned by Next. Valid to call at
	// any point; the token reflects the cursor's current position.
	Continuation() []byte
	// Cardinality is an estimate of the cursor's total result count, used
	// by the planner for BGP ordering.
	Cardinality() int64
	Close() error
}

// Description is a human-oriented summary of a backend, used by the
// dataset registry / CLI `demo` output.
type Description struct {
	URL         string
	TripleCount int64
	QuotaMS     int64
	MaxResults  int
}
