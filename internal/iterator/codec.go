package iterator

import (
	"encoding/binary"
	"fmt"

	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/pkg/rdf"
)

// writer accumulates a static-config or mutable-state byte string for one
// operator node. Kept deliberately simple (length-prefixed fields) rather
// than gob/JSON: the continuation format needs a small, audited, finite set
// of encodings, not a general-purpose serializer.
type writer struct{ buf []byte }

func (w *writer) u8(v byte)    { w.buf = append(w.buf, v) }
func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *writer) i64(v int64) { w.u64(uint64(v)) }
func (w *writer) bytes(b []byte) {
	w.u64(uint64(len(b)))
	w.buf = append(w.buf, b...)
}
func (w *writer) str(s string) { w.bytes([]byte(s)) }
func (w *writer) bool(b bool) {
	if b {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) u8() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("iterator codec: truncated u8")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("iterator codec: truncated u64")
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)-r.pos) {
		return nil, fmt.Errorf("iterator codec: truncated bytes field")
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytes()
	return string(b), err
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) done() bool { return r.pos >= len(r.buf) }

// Term kinds for the codec's own tagging, independent of rdf.TermType so the
// wire format doesn't break if rdf's enum is reordered.
const (
	termNil byte = iota
	termNamedNode
	termBlankNode
	termLiteral
	termVariable
)

func encodeTerm(w *writer, t rdf.Term) {
	switch v := t.(type) {
	case nil:
		w.u8(termNil)
	case *rdf.NamedNode:
		w.u8(termNamedNode)
		w.str(v.IRI)
	case *rdf.BlankNode:
		w.u8(termBlankNode)
		w.str(v.ID)
	case *rdf.Literal:
		w.u8(termLiteral)
		w.str(v.Value)
		w.str(v.Language)
		if v.Datatype != nil {
			w.bool(true)
			w.str(v.Datatype.IRI)
		} else {
			w.bool(false)
		}
	case *rdf.Variable:
		w.u8(termVariable)
		w.str(v.Name)
	default:
		w.u8(termNil)
	}
}

func decodeTerm(r *reader) (rdf.Term, error) {
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case termNil:
		return nil, nil
	case termNamedNode:
		s, err := r.str()
		return rdf.NewNamedNode(s), err
	case termBlankNode:
		s, err := r.str()
		return rdf.NewBlankNode(s), err
	case termLiteral:
		value, err := r.str()
		if err != nil {
			return nil, err
		}
		lang, err := r.str()
		if err != nil {
			return nil, err
		}
		hasDt, err := r.boolean()
		if err != nil {
			return nil, err
		}
		if hasDt {
			dt, err := r.str()
			if err != nil {
				return nil, err
			}
			return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(dt)), nil
		}
		if lang != "" {
			return rdf.NewLiteralWithLanguage(value, lang), nil
		}
		return rdf.NewLiteral(value), nil
	case termVariable:
		s, err := r.str()
		return rdf.NewVariable(s), err
	default:
		return nil, fmt.Errorf("iterator codec: unknown term tag %d", tag)
	}
}

func encodeTriplePattern(w *writer, p algebra.TriplePattern) {
	encodeTerm(w, p.Subject)
	encodeTerm(w, p.Predicate)
	encodeTerm(w, p.Object)
}

func decodeTriplePattern(r *reader) (algebra.TriplePattern, error) {
	s, err := decodeTerm(r)
	if err != nil {
		return algebra.TriplePattern{}, err
	}
	p, err := decodeTerm(r)
	if err != nil {
		return algebra.TriplePattern{}, err
	}
	o, err := decodeTerm(r)
	if err != nil {
		return algebra.TriplePattern{}, err
	}
	return algebra.TriplePattern{Subject: s, Predicate: p, Object: o}, nil
}

// encodePlanNode/decodePlanNode serialize a whole PlanNode (recursively).
// EncodePlanNode/DecodePlanNode below are the only callers; every operator's
// own Dump()/load pair represents its subtree via PlanNode.Children instead
// of embedding an encoded node inside Static.
func encodePlanNode(w *writer, n *PlanNode) {
	if n == nil {
		w.bool(false)
		return
	}
	w.bool(true)
	w.u8(byte(n.Kind))
	w.bytes(n.Static)
	w.bytes(n.Mutable)
	w.u64(uint64(len(n.Children)))
	for _, c := range n.Children {
		encodePlanNode(w, c)
	}
}

func decodePlanNode(r *reader) (*PlanNode, error) {
	present, err := r.boolean()
	if err != nil || !present {
		return nil, err
	}
	kindByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	static, err := r.bytes()
	if err != nil {
		return nil, err
	}
	mutable, err := r.bytes()
	if err != nil {
		return nil, err
	}
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	children := make([]*PlanNode, 0, n)
	for i := uint64(0); i < n; i++ {
		c, err := decodePlanNode(r)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return &PlanNode{
		Kind:     Kind(kindByte),
		Static:   append([]byte(nil), static...),
		Mutable:  append([]byte(nil), mutable...),
		Children: children,
	}, nil
}

// EncodePlanNode serializes a whole plan tree to bytes, the payload
// internal/continuation wraps with a version header and CRC32 trailer to
// produce an opaque continuation token.
func EncodePlanNode(n *PlanNode) []byte {
	w := &writer{}
	encodePlanNode(w, n)
	return w.buf
}

// DecodePlanNode is EncodePlanNode's inverse.
func DecodePlanNode(b []byte) (*PlanNode, error) {
	return decodePlanNode(newReader(b))
}

// encodeBindingList/decodeBindingList serialize a materialized row set, used
// by HashJoin/LeftJoin for their right-branch rows (complete, or partial when
// a drain was suspended) and pending matches, and by OrderBy for its rows.
func encodeBindingList(w *writer, rows []*rdf.Binding) {
	w.u64(uint64(len(rows)))
	for _, b := range rows {
		encodeBinding(w, b)
	}
}

func decodeBindingList(r *reader) ([]*rdf.Binding, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	rows := make([]*rdf.Binding, 0, n)
	for i := uint64(0); i < n; i++ {
		b, err := decodeBinding(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, b)
	}
	return rows, nil
}

// encodeBinding/decodeBinding serialize a binding snapshot, used by
// operators whose mutable state includes a held row (LeftJoin's current
// left binding, IndexJoin's current left binding).
func encodeBinding(w *writer, b *rdf.Binding) {
	if b == nil {
		w.bool(false)
		return
	}
	w.bool(true)
	w.u64(uint64(len(b.Vars)))
	for k, v := range b.Vars {
		w.str(k)
		encodeTerm(w, v)
	}
}

func decodeBinding(r *reader) (*rdf.Binding, error) {
	present, err := r.boolean()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	b := rdf.NewBinding()
	for i := uint64(0); i < n; i++ {
		k, err := r.str()
		if err != nil {
			return nil, err
		}
		v, err := decodeTerm(r)
		if err != nil {
			return nil, err
		}
		b.Vars[k] = v
	}
	return b, nil
}
