package localDB

import (
	"context"

	bolt "go.etcd.io/bbolt"
)

// The store doubles as the page registry, so a restart without Redis still
// skips pages that are already indexed.

func (s *Store) pageBucket() []byte { return []byte(s.collection + "_pages") }

func (s *Store) Seen(ctx context.Context, key string, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return false, ErrNotOpen
	}

	seen := false
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(s.pageBucket()); b != nil {
			seen = string(b.Get([]byte(key))) == hash
		}
		return nil
	})
	return seen, err
}

func (s *Store) Record(ctx context.Context, key string, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrNotOpen
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.pageBucket())
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(hash))
	})
}
