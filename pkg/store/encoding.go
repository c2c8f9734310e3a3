package store

// EncodedTerm is a term encoded as a type byte followed by up to 16 bytes of
// hash or inline data. Defined here, rather than in internal/encoding, so
// any future alternative encoder can share the same key shape without an
// import cycle back to this package.
type EncodedTerm [17]byte
