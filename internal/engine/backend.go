package engine

import (
	"github.com/webpreempt/sage/internal/graph"
	"github.com/webpreempt/sage/internal/iterator"
	"github.com/webpreempt/sage/pkg/rdf"
)

// scanBackend adapts a graph.Backend to iterator.ScanBackend. The two
// interfaces are structurally identical in the methods iterator actually
// calls, but Go interface satisfaction is nominal on the declared return
// type, so Scan/IndexJoin (which only know about iterator.Cursor) cannot
// take a graph.Cursor directly without this adapter — the same seam the
// teacher keeps between its executor and storage packages, made explicit
// here as a named type instead of an implicit structural match.
type scanBackend struct {
	inner graph.Backend
}

func newScanBackend(b graph.Backend) *scanBackend { return &scanBackend{inner: b} }

func (b *scanBackend) Search(s, p, o rdf.Term, cont []byte) (iterator.Cursor, error) {
	cur, err := b.inner.Search(s, p, o, cont)
	if err != nil {
		return nil, err
	}
	return cursorAdapter{cur}, nil
}

type cursorAdapter struct {
	inner graph.Cursor
}

func (c cursorAdapter) Next() (rdf.Triple, bool, error) { return c.inner.Next() }
func (c cursorAdapter) Continuation() []byte            { return c.inner.Continuation() }
func (c cursorAdapter) Cardinality() int64              { return c.inner.Cardinality() }
func (c cursorAdapter) Close() error                    { return c.inner.Close() }
