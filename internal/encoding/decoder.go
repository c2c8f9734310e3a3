package encoding

import (
	"fmt"
	"strings"

	"github.com/webpreempt/sage/pkg/rdf"
	"github.com/webpreempt/sage/pkg/store"
)

// TermDecoder reconstructs rdf.Term values from an encoded key plus the
// lexical string recovered from the id2str table.
type TermDecoder struct{}

func NewTermDecoder() *TermDecoder { return &TermDecoder{} }

// DecodeTerm rebuilds the term encoded by EncodeTerm. lexical is the string
// stored under encoded's key in the id2str table.
func (d *TermDecoder) DecodeTerm(encoded store.EncodedTerm, lexical string) (rdf.Term, error) {
	switch GetTermType(encoded) {
	case rdf.TermTypeNamedNode:
		return rdf.NewNamedNode(lexical), nil
	case rdf.TermTypeBlankNode:
		return rdf.NewBlankNode(lexical), nil
	case rdf.TermTypeLiteral:
		return decodeLiteralLexical(lexical)
	default:
		return nil, fmt.Errorf("encoding: unknown term type %d", GetTermType(encoded))
	}
}

func decodeLiteralLexical(lexical string) (rdf.Term, error) {
	parts := strings.SplitN(lexical, "\x00", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("encoding: malformed literal lexical %q", lexical)
	}
	value, lang, dt := parts[0], parts[1], parts[2]
	switch {
	case lang != "":
		return rdf.NewLiteralWithLanguage(value, lang), nil
	case dt != "":
		return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(dt)), nil
	default:
		return rdf.NewLiteral(value), nil
	}
}
