// Package storage adapts BadgerDB to the pkg/store key/value interfaces,
// grounded on the teacher's original badger.go but with Scan split into a
// filter prefix and an independent seek position, which internal/graph/
// badgergraph needs to resume a suspended scan without widening it past its
// original bound positions.
package storage

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/webpreempt/sage/pkg/store"
)

// BadgerStorage implements store.Storage using BadgerDB.
type BadgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage opens (creating if absent) a BadgerDB database at path.
func NewBadgerStorage(path string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: opening badger db: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

func (s *BadgerStorage) Begin(writable bool) (store.Transaction, error) {
	txn := s.db.NewTransaction(writable)
	return &BadgerTransaction{txn: txn, writable: writable}, nil
}

func (s *BadgerStorage) Close() error { return s.db.Close() }
func (s *BadgerStorage) Sync() error  { return s.db.Sync() }

// BadgerTransaction implements store.Transaction using a *badger.Txn.
type BadgerTransaction struct {
	txn      *badger.Txn
	writable bool
}

func (t *BadgerTransaction) Get(table store.Table, key []byte) ([]byte, error) {
	item, err := t.txn.Get(store.PrefixKey(table, key))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var value []byte
	err = item.Value(func(val []byte) error {
		value = append([]byte{}, val...)
		return nil
	})
	return value, err
}

func (t *BadgerTransaction) Set(table store.Table, key, value []byte) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	return t.txn.Set(store.PrefixKey(table, key), value)
}

func (t *BadgerTransaction) Delete(table store.Table, key []byte) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	return t.txn.Delete(store.PrefixKey(table, key))
}

// Scan iterates table's keys under prefix, starting at seek (or at prefix
// itself when seek is nil).
func (t *BadgerTransaction) Scan(table store.Table, prefix, seek []byte) (store.Iterator, error) {
	scanPrefix := store.PrefixKey(table, prefix)
	seekKey := scanPrefix
	if seek != nil {
		seekKey = store.PrefixKey(table, seek)
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = scanPrefix
	it := t.txn.NewIterator(opts)

	return &BadgerIterator{
		it:             it,
		tablePrefixLen: len(store.TablePrefix(table)),
		seekKey:        seekKey,
	}, nil
}

func (t *BadgerTransaction) Commit() error { return t.txn.Commit() }
func (t *BadgerTransaction) Rollback() error {
	t.txn.Discard()
	return nil
}

// BadgerIterator implements store.Iterator using a *badger.Iterator.
type BadgerIterator struct {
	it             *badger.Iterator
	tablePrefixLen int
	seekKey        []byte
	started        bool
	hasValue       bool
}

func (i *BadgerIterator) Next() bool {
	if !i.started {
		i.it.Seek(i.seekKey)
		i.started = true
	} else {
		i.it.Next()
	}
	i.hasValue = i.it.Valid()
	return i.hasValue
}

func (i *BadgerIterator) Key() []byte {
	if !i.hasValue {
		return nil
	}
	key := i.it.Item().KeyCopy(nil)
	if len(key) > i.tablePrefixLen {
		return key[i.tablePrefixLen:]
	}
	return nil
}

func (i *BadgerIterator) Value() ([]byte, error) {
	if !i.hasValue {
		return nil, store.ErrNotFound
	}
	var value []byte
	err := i.it.Item().Value(func(val []byte) error {
		value = append([]byte{}, val...)
		return nil
	})
	return value, err
}

func (i *BadgerIterator) Close() error {
	i.it.Close()
	return nil
}
