// Package redis keeps document blobs in Redis. Each key is stored as two
// strings: the body under <prefix><key> and its version counter under
// <prefix><key>:version.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"heristone/internal/store"
)

const dialTimeout = 5 * time.Second

// Config holds the connection settings.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type Store struct {
	client *goredis.Client
	prefix string
}

// New connects to Redis and checks the connection with a PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("missing REDIS_ADDR")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &Store{client: client, prefix: cfg.KeyPrefix}, nil
}

func (s *Store) bodyKey(key string) string    { return s.prefix + key }
func (s *Store) versionKey(key string) string { return s.prefix + key + ":version" }

// Get implements store.BlobStore
func (s *Store) Get(ctx context.Context, key string) ([]byte, int64, error) {
	vals, err := s.client.MGet(ctx, s.bodyKey(key), s.versionKey(key)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("get %q: %w", key, err)
	}
	body, ok := vals[0].(string)
	if !ok {
		return nil, 0, fmt.Errorf("key %q: %w", key, store.ErrNotFound)
	}

	var version int64
	if v, ok := vals[1].(string); ok {
		version, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("parse version of %q: %w", key, err)
		}
	}
	return []byte(body), version, nil
}

// Put implements store.BlobStore. The body write and the version bump run
// in one MULTI/EXEC transaction.
func (s *Store) Put(ctx context.Context, key string, body []byte) (int64, error) {
	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.bodyKey(key), body, 0)
		incr = pipe.Incr(ctx, s.versionKey(key))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("put %q: %w", key, err)
	}
	return incr.Val(), nil
}

// Delete implements store.BlobStore. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.bodyKey(key), s.versionKey(key)).Err(); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Ping implements store.Pinger
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
