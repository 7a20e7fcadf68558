package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"maml/internal/config"
	"maml/internal/logging"
)

// RedisStore keeps each document collection in a hash and each list in a
// Redis list, all under a key prefix.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "maml"
	}
	logging.Store("Connected to Redis at %s (prefix %s)", cfg.Addr, prefix)
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisStore) docKey(collection string) string {
	return s.prefix + ":doc:" + collection
}

func (s *RedisStore) listKey(collection, key string) string {
	return s.prefix + ":list:" + collection + ":" + key
}

// Get implements DocumentStore.
func (s *RedisStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	v, err := s.rdb.HGet(ctx, s.docKey(collection), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	return v, nil
}

// Put implements DocumentStore.
func (s *RedisStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	if err := checkJSON(doc); err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, s.docKey(collection), key, doc).Err(); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, key, err)
	}
	logging.StoreDebug("redis: put %s/%s", collection, key)
	return nil
}

// Delete implements DocumentStore.
func (s *RedisStore) Delete(ctx context.Context, collection, key string) error {
	return s.rdb.HDel(ctx, s.docKey(collection), key).Err()
}

// Keys implements DocumentStore.
func (s *RedisStore) Keys(ctx context.Context, collection string) ([]string, error) {
	keys, err := s.rdb.HKeys(ctx, s.docKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Append implements DocumentStore.
func (s *RedisStore) Append(ctx context.Context, collection, key string, item []byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	if err := checkJSON(item); err != nil {
		return err
	}
	if err := s.rdb.RPush(ctx, s.listKey(collection, key), item).Err(); err != nil {
		return fmt.Errorf("failed to append %s/%s: %w", collection, key, err)
	}
	return nil
}

// List implements DocumentStore.
func (s *RedisStore) List(ctx context.Context, collection, key string) ([][]byte, error) {
	vals, err := s.rdb.LRange(ctx, s.listKey(collection, key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", collection, key, err)
	}
	items := make([][]byte, 0, len(vals))
	for _, v := range vals {
		items = append(items, []byte(v))
	}
	return items, nil
}

// SetList implements DocumentStore.
func (s *RedisStore) SetList(ctx context.Context, collection, key string, items [][]byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	args := make([]interface{}, 0, len(items))
	for _, it := range items {
		if err := checkJSON(it); err != nil {
			return err
		}
		args = append(args, it)
	}

	lk := s.listKey(collection, key)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, lk)
		if len(args) > 0 {
			pipe.RPush(ctx, lk, args...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace %s/%s: %w", collection, key, err)
	}
	return nil
}

// Close implements DocumentStore.
func (s *RedisStore) Close() error { return s.rdb.Close() }
