// Package badgergraph is the persistent Backend (C1): a BadgerDB-backed
// triple store adapting the teacher's internal/storage (BadgerDB transaction
// wrapper) and internal/encoding (xxh3 term codec) to the three default-
// graph index permutations a triple pattern search needs, with continuations
// implemented as opaque Badger row-key seek positions.
package badgergraph

import (
	"fmt"
	"sync"

	"github.com/webpreempt/sage/internal/encoding"
	"github.com/webpreempt/sage/internal/graph"
	"github.com/webpreempt/sage/internal/storage"
	"github.com/webpreempt/sage/pkg/rdf"
	"github.com/webpreempt/sage/pkg/store"
)

// Graph is a BadgerDB-backed, transactional RDF triple store.
type Graph struct {
	storage *storage.BadgerStorage
	encoder *encoding.TermEncoder
	decoder *encoding.TermDecoder
	quotaMS int64
	maxRes  int

	// execMu is held from the first Search of a query execution until that
	// execution's Commit or Abort, serializing executions against this
	// backend one at a time. The spec's concurrency model runs one query's
	// physical plan to completion on a single goroutine; it does not call
	// for concurrent executions sharing one backend instance, so a full
	// connection-pool design is left as an open question (see DESIGN.md)
	// rather than built speculatively.
	execMu sync.Mutex
	txn    store.Transaction
}

// Open opens (creating if absent) a Badger database at path.
func Open(path string, quotaMS int64, maxResults int) (*Graph, error) {
	s, err := storage.NewBadgerStorage(path)
	if err != nil {
		return nil, err
	}
	return &Graph{
		storage: s,
		encoder: encoding.NewTermEncoder(),
		decoder: encoding.NewTermDecoder(),
		quotaMS: quotaMS,
		maxRes:  maxResults,
	}, nil
}

// Close releases the underlying database handle.
func (g *Graph) Close() error { return g.storage.Close() }

func (g *Graph) QuotaMS() int64  { return g.quotaMS }
func (g *Graph) MaxResults() int { return g.maxRes }

func (g *Graph) Describe(url string) graph.Description {
	count, _ := g.Count()
	return graph.Description{URL: url, TripleCount: count, QuotaMS: g.quotaMS, MaxResults: g.maxRes}
}

// Count scans the SPO index fully, the same approach the teacher's
// TripleStore.Count used for its primary index.
func (g *Graph) Count() (int64, error) {
	txn, err := g.storage.Begin(false)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	it, err := txn.Scan(store.TableSPO, nil, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var n int64
	for it.Next() {
		n++
	}
	return n, nil
}

// Insert adds one triple, outside of any query execution's transaction.
// Not part of the Backend interface; used by demo/test setup.
func (g *Graph) Insert(t rdf.Triple) error {
	txn, err := g.storage.Begin(true)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	sEnc, sLex, err := g.encoder.EncodeTerm(t.Subject)
	if err != nil {
		return fmt.Errorf("badgergraph: encoding subject: %w", err)
	}
	pEnc, pLex, err := g.encoder.EncodeTerm(t.Predicate)
	if err != nil {
		return fmt.Errorf("badgergraph: encoding predicate: %w", err)
	}
	oEnc, oLex, err := g.encoder.EncodeTerm(t.Object)
	if err != nil {
		return fmt.Errorf("badgergraph: encoding object: %w", err)
	}

	for _, pair := range []struct {
		enc store.EncodedTerm
		lex string
	}{{sEnc, sLex}, {pEnc, pLex}, {oEnc, oLex}} {
		if err := txn.Set(store.TableID2Str, pair.enc[1:], []byte(pair.lex)); err != nil {
			return err
		}
	}

	empty := []byte{}
	if err := txn.Set(store.TableSPO, g.encoder.EncodeTermKey(sEnc, pEnc, oEnc), empty); err != nil {
		return err
	}
	if err := txn.Set(store.TablePOS, g.encoder.EncodeTermKey(pEnc, oEnc, sEnc), empty); err != nil {
		return err
	}
	if err := txn.Set(store.TableOSP, g.encoder.EncodeTermKey(oEnc, sEnc, pEnc), empty); err != nil {
		return err
	}
	return txn.Commit()
}

// ensureTxn lazily opens the read transaction shared by every Search call in
// the current query execution, acquiring execMu on the first call.
func (g *Graph) ensureTxn() (store.Transaction, error) {
	if g.txn != nil {
		return g.txn, nil
	}
	g.execMu.Lock()
	txn, err := g.storage.Begin(false)
	if err != nil {
		g.execMu.Unlock()
		return nil, err
	}
	g.txn = txn
	return g.txn, nil
}

// Commit closes the execution's read transaction and releases execMu.
func (g *Graph) Commit() error { return g.endTxn(true) }

// Abort closes the execution's read transaction and releases execMu. A read
// transaction has nothing to roll back; discarding it is enough.
func (g *Graph) Abort() error { return g.endTxn(false) }

func (g *Graph) endTxn(commit bool) error {
	if g.txn == nil {
		return nil
	}
	var err error
	if commit {
		err = g.txn.Commit()
	} else {
		err = g.txn.Rollback()
	}
	g.txn = nil
	g.execMu.Unlock()
	return err
}

// Search opens a cursor over the index permutation that best matches which
// of s, p, o are bound, as internal/store/query.go's selectIndex did before
// this package folded triple-level operations directly into the Backend.
func (g *Graph) Search(s, p, o rdf.Term, cont []byte) (graph.Cursor, error) {
	txn, err := g.ensureTxn()
	if err != nil {
		return nil, err
	}

	table, order := selectIndex(s, p, o)
	prefix, err := g.buildPrefix(order, s, p, o)
	if err != nil {
		return nil, err
	}

	total, err := g.countMatches(txn, table, prefix)
	if err != nil {
		return nil, err
	}

	seek := []byte(nil)
	if cont != nil {
		seek = append(append([]byte(nil), cont...), 0x00)
	}
	it, err := txn.Scan(table, prefix, seek)
	if err != nil {
		return nil, err
	}
	return &cursor{g: g, txn: txn, it: it, order: order, cardinality: total}, nil
}

func (g *Graph) countMatches(txn store.Transaction, table store.Table, prefix []byte) (int64, error) {
	it, err := txn.Scan(table, prefix, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var n int64
	for it.Next() {
		n++
	}
	return n, nil
}

// selectIndex picks the index permutation whose key prefix covers the most
// bound positions, preferring a composite prefix over a single-term one.
func selectIndex(s, p, o rdf.Term) (store.Table, [3]int) {
	sBound, pBound, oBound := s != nil, p != nil, o != nil
	switch {
	case sBound && pBound:
		return store.TableSPO, [3]int{0, 1, 2}
	case pBound && oBound:
		return store.TablePOS, [3]int{1, 2, 0}
	case oBound && sBound:
		return store.TableOSP, [3]int{2, 0, 1}
	case sBound:
		return store.TableSPO, [3]int{0, 1, 2}
	case pBound:
		return store.TablePOS, [3]int{1, 2, 0}
	case oBound:
		return store.TableOSP, [3]int{2, 0, 1}
	default:
		return store.TableSPO, [3]int{0, 1, 2}
	}
}

// buildPrefix encodes the leading run of bound terms in order's key layout,
// stopping at the first unbound position.
func (g *Graph) buildPrefix(order [3]int, s, p, o rdf.Term) ([]byte, error) {
	terms := [3]rdf.Term{s, p, o}
	var prefix []byte
	for _, role := range order {
		t := terms[role]
		if t == nil {
			break
		}
		enc, _, err := g.encoder.EncodeTerm(t)
		if err != nil {
			return nil, err
		}
		prefix = append(prefix, enc[:]...)
	}
	return prefix, nil
}

// lookupString resolves an encoded term's hash back to its stored lexical
// form via the id2str table.
func (g *Graph) lookupString(txn store.Transaction, enc store.EncodedTerm) (string, error) {
	v, err := txn.Get(store.TableID2Str, enc[1:])
	if err != nil {
		return "", fmt.Errorf("badgergraph: resolving term: %w", err)
	}
	return string(v), nil
}

type cursor struct {
	g           *Graph
	txn         store.Transaction
	it          store.Iterator
	order       [3]int
	cardinality int64
	lastKey     []byte
}

func (c *cursor) Next() (rdf.Triple, bool, error) {
	if !c.it.Next() {
		return rdf.Triple{}, false, nil
	}
	key := c.it.Key()
	c.lastKey = append([]byte(nil), key...)

	terms, err := c.decodeRowKey(key)
	if err != nil {
		return rdf.Triple{}, false, err
	}
	return rdf.Triple{Subject: terms[0], Predicate: terms[1], Object: terms[2]}, true, nil
}

// decodeRowKey splits key into its three encoded terms (laid out per
// c.order) and resolves each back to an rdf.Term, in subject/predicate/
// object order regardless of which index produced the row.
func (c *cursor) decodeRowKey(key []byte) ([3]rdf.Term, error) {
	var result [3]rdf.Term
	for i, role := range c.order {
		offset := i * encoding.EncodedTermSize
		if offset+encoding.EncodedTermSize > len(key) {
			return result, fmt.Errorf("badgergraph: truncated row key")
		}
		var enc store.EncodedTerm
		copy(enc[:], key[offset:offset+encoding.EncodedTermSize])

		lexical, err := c.g.lookupString(c.txn, enc)
		if err != nil {
			return result, err
		}
		term, err := c.g.decoder.DecodeTerm(enc, lexical)
		if err != nil {
			return result, err
		}
		result[role] = term
	}
	return result, nil
}

func (c *cursor) Continuation() []byte { return c.lastKey }
func (c *cursor) Cardinality() int64   { return c.cardinality }
func (c *cursor) Close() error         { return c.it.Close() }
