package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/akolanti/FinBot/internal/data/redisStore"
	"github.com/akolanti/FinBot/pkg/logger_i"
)

// DocumentRegistry remembers which document pages are already indexed and
// with which content.
type DocumentRegistry interface {
	// Seen reports whether key was recorded with exactly this hash.
	Seen(ctx context.Context, key string, hash string) (bool, error)
	Record(ctx context.Context, key string, hash string) error
}

// PageKey identifies one page of one document inside a collection.
func PageKey(collection string, name string, page int) string {
	return fmt.Sprintf("%s:%s#%d", collection, name, page)
}

func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type InMemoryRegistry struct {
	mu     sync.RWMutex
	hashes map[string]string
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{hashes: make(map[string]string)}
}

func (r *InMemoryRegistry) Seen(ctx context.Context, key string, hash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hashes[key] == hash, nil
}

func (r *InMemoryRegistry) Record(ctx context.Context, key string, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes[key] = hash
	return nil
}

const registryHashKey = "finbot:registry"

// RedisRegistry keeps every page hash in one Redis hash so it outlives restarts.
type RedisRegistry struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisRegistry(store *redisStore.Store) *RedisRegistry {
	return &RedisRegistry{
		store:  store,
		logger: logger_i.NewLogger("Document Registry"),
	}
}

func (r *RedisRegistry) Seen(ctx context.Context, key string, hash string) (bool, error) {
	val, err := r.store.HGet(ctx, registryHashKey, key)
	if r.store.IsNil(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == hash, nil
}

func (r *RedisRegistry) Record(ctx context.Context, key string, hash string) error {
	if err := r.store.HSet(ctx, registryHashKey, key, hash); err != nil {
		r.logger.WithTrace(ctx).Error("recording page failed", "key", key, "error", err)
		return err
	}
	return nil
}
