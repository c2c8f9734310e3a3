// Package memgraph is an in-memory Backend, grounded on the indexing
// approach of google-badwolf's storage/memory package: triples held in one
// slice (no per-position indices), filtered and re-sorted deterministically
// on every Search so that a Cursor's Continuation (a plain row offset) stays
// valid across a suspend/resume cycle as long as the dataset is unchanged.
package memgraph

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/webpreempt/sage/internal/graph"
	"github.com/webpreempt/sage/pkg/rdf"
)

// Graph is an in-memory, single-writer-many-readers triple store.
type Graph struct {
	mu       sync.RWMutex
	triples  []rdf.Triple
	quotaMS  int64
	maxRes   int
	url      string
	inTxn    bool
	txnMu    sync.Mutex
	txnError bool
}

// New returns an empty in-memory graph with the given resource limits.
func New(quotaMS int64, maxResults int) *Graph {
	return &Graph{quotaMS: quotaMS, maxRes: maxResults}
}

// Insert adds a triple to the graph. Not part of the Backend interface;
// used by demo/test setup before queries run.
func (g *Graph) Insert(t rdf.Triple) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.triples = append(g.triples, t)
}

// Count returns the number of triples currently stored.
func (g *Graph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.triples)
}

func (g *Graph) QuotaMS() int64    { return g.quotaMS }
func (g *Graph) MaxResults() int   { return g.maxRes }
func (g *Graph) Describe(url string) graph.Description {
	return graph.Description{URL: url, TripleCount: int64(g.Count()), QuotaMS: g.quotaMS, MaxResults: g.maxRes}
}

// Search begins or resumes a scan matching s, p, o (nil = unbound).
func (g *Graph) Search(s, p, o rdf.Term, cont []byte) (graph.Cursor, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	matches := make([]rdf.Triple, 0, len(g.triples))
	for _, t := range g.triples {
		if termMatches(s, t.Subject) && termMatches(p, t.Predicate) && termMatches(o, t.Object) {
			matches = append(matches, t)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return tripleKey(matches[i]) < tripleKey(matches[j])
	})

	offset := 0
	if len(cont) == 8 {
		offset = int(binary.BigEndian.Uint64(cont))
	}
	if offset > len(matches) {
		offset = len(matches)
	}
	return &cursor{matches: matches, pos: offset}, nil
}

// Commit/Abort are no-ops for the in-memory backend: there is no underlying
// transaction to release, but the engine still calls exactly one of them
// per execution, per the transaction pairing invariant.
func (g *Graph) Commit() error { return nil }
func (g *Graph) Abort() error  { return nil }

func termMatches(pattern, actual rdf.Term) bool {
	if pattern == nil {
		return true
	}
	if _, ok := pattern.(*rdf.Variable); ok {
		return true
	}
	return pattern.Equals(actual)
}

func tripleKey(t rdf.Triple) string {
	return t.Subject.String() + "\x00" + t.Predicate.String() + "\x00" + t.Object.String()
}

type cursor struct {
	matches []rdf.Triple
	pos     int
}

func (c *cursor) Next() (rdf.Triple, bool, error) {
	if c.pos >= len(c.matches) {
		return rdf.Triple{}, false, nil
	}
	t := c.matches[c.pos]
	c.pos++
	return t, true, nil
}

func (c *cursor) Continuation() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(c.pos))
	return buf
}

func (c *cursor) Cardinality() int64 { return int64(len(c.matches)) }
func (c *cursor) Close() error       { return nil }
