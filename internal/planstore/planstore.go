// Package planstore implements the saved-plan store (C7) used in stateful
// mode: continuation tokens are kept server-side, addressed by a
// google/uuid id instead of being round-tripped through the client in full.
package planstore

import (
	"sync"

	"github.com/google/uuid"
)

// Store holds at most one token per continuation id, enforcing
// exclusive take-on-resume: Take locks out every other caller for the
// duration of its own lookup-and-delete, so exactly one concurrent Take on
// a given id observes the token and every other one observes a miss, never
// a racing double-resume of the same execution lineage.
type Store struct {
	mu     sync.Mutex
	tokens map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{tokens: make(map[string][]byte)}
}

// NewID mints a fresh continuation id for a lineage's first suspension.
func NewID() string {
	return uuid.NewString()
}

// Save stores token under id, overwriting any previous value — the
// lifecycle the original SaGe engine uses: reuse the same id across a
// lineage's repeated suspensions, replacing the token each time.
func (s *Store) Save(id string, token []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[id] = token
}

// Take atomically removes and returns the token saved under id. The lookup
// and delete happen under the same lock, so of any number of concurrent
// Take calls racing on the same id, exactly one observes the token and
// deletes it; every other one finds the map entry already gone.
func (s *Store) Take(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, false
	}
	delete(s.tokens, id)
	return token, true
}

// Delete removes id's token without returning it, used once an execution
// lineage reports done.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
}
