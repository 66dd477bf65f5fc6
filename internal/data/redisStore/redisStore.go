package redisStore

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout   = 3 * time.Second
	clientTimeout = 30 * time.Second
)

// Store is one Redis logical database.
type Store struct {
	client *redis.Client
	DB     int
	logger *logger_i.Logger
}

// New connects to db and pings it. The caller decides what to do when Redis is offline.
func New(ctx context.Context, cfg config.RedisConfig, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:                  cfg.Addr,
		Password:              cfg.Password,
		DB:                    db,
		ContextTimeoutEnabled: true,
		ReadTimeout:           clientTimeout,
		WriteTimeout:          clientTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s db %d is offline: %w", cfg.Addr, db, err)
	}

	s := NewTestStore(client)
	s.DB = db
	s.logger.Info("Redis store ready", "addr", cfg.Addr, "db", db)
	return s, nil
}

// NewTestStore wraps an existing client, e.g. one pointed at miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		logger: logger_i.NewLogger("Redis Store"),
	}
}

func (s *Store) Close() error {
	s.logger.Info("Closing Redis store", "db", s.DB)
	return s.client.Close()
}
