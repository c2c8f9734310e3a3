package planstore

import (
	"sync"
	"testing"
)

func TestSaveTake(t *testing.T) {
	s := New()
	id := NewID()
	s.Save(id, []byte("token-1"))

	token, ok := s.Take(id)
	if !ok {
		t.Fatal("Take reported a miss for a saved id")
	}
	if string(token) != "token-1" {
		t.Fatalf("Take returned %q, want %q", token, "token-1")
	}
}

func TestTake_ExclusiveOnSecondCall(t *testing.T) {
	s := New()
	id := NewID()
	s.Save(id, []byte("token-1"))

	if _, ok := s.Take(id); !ok {
		t.Fatal("first Take should succeed")
	}
	if _, ok := s.Take(id); ok {
		t.Fatal("second Take on an already-taken id should miss")
	}
}

func TestTake_UnknownID(t *testing.T) {
	s := New()
	if _, ok := s.Take("does-not-exist"); ok {
		t.Fatal("Take on an unknown id should miss")
	}
}

func TestTake_ConcurrentExclusivity(t *testing.T) {
	s := New()
	id := NewID()
	s.Save(id, []byte("token-1"))

	const n = 32
	var wg sync.WaitGroup
	var hits int32
	var mu sync.Mutex
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, ok := s.Take(id); ok {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if hits != 1 {
		t.Fatalf("exactly one concurrent Take should succeed, got %d", hits)
	}
}

func TestDelete(t *testing.T) {
	s := New()
	id := NewID()
	s.Save(id, []byte("token-1"))
	s.Delete(id)
	if _, ok := s.Take(id); ok {
		t.Fatal("Take should miss after Delete")
	}
}

func TestSave_OverwritesPreviousToken(t *testing.T) {
	s := New()
	id := NewID()
	s.Save(id, []byte("first"))
	s.Save(id, []byte("second"))
	token, ok := s.Take(id)
	if !ok || string(token) != "second" {
		t.Fatalf("Take = (%q, %v), want (\"second\", true)", token, ok)
	}
}
