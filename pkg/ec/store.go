package ec

import (
	"bytes"
	"strings"
	"sync"

	"go.etcd.io/bbolt"
)

// Store persists a Producer's flattened (path, value) entries so a
// restarted producer can reload its state. Adapted from the teacher's
// storage.Store interface, narrowed to EC's flat path/value shape.
type Store interface {
	// LoadAll returns every persisted (path, value) pair.
	LoadAll() map[string]any
	// Save persists value at path.
	Save(path string, value any) error
	// Delete removes path (and, if path is a root key, its whole subtree).
	Delete(path string) error
}

// MemoryStore is the default no-op-persistence Store.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]any
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]any)}
}

func (s *MemoryStore) LoadAll() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) Save(path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = value
	return nil
}

func (s *MemoryStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, path)
	prefix := path + "."
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
		}
	}
	return nil
}

var ecBucket = []byte("ec_state")

// BoltStore persists EC state to a go.etcd.io/bbolt database file, the
// way the teacher's pkg/storage/boltdb.go persists types.* records,
// repurposed for an EC Producer that must survive a process restart.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (creating if absent) a bolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ecBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) LoadAll() map[string]any {
	out := make(map[string]any)
	_ = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ecBucket)
		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out
}

func (s *BoltStore) Save(path string, value any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(ecBucket).Put([]byte(path), []byte(scalarToken(value)))
	})
}

func (s *BoltStore) Delete(path string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ecBucket)
		keys := [][]byte{[]byte(path)}
		prefix := []byte(path + ".")
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
