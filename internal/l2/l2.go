// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// l2.go - Redis adapter for serialized payloads: keyed payload storage with
// TTLs, pipelined batch reads, FIFO payload queues on Redis lists, and the
// ErrMiss sentinel that callers map to their own not-found errors.

// Package l2 provides the Redis payload adapter.
package l2

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AndrewDonelson/ormpack/internal/codec"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key or queue is empty. Callers use
// errors.Is(err, l2.ErrMiss) to tell a miss from a Redis error.
var ErrMiss = errors.New("l2: miss")

// setArgsPool pools the argument slice of SET commands, avoiding the
// allocation go-redis cmdable.Set makes on every write.
var setArgsPool = sync.Pool{
	New: func() any {
		s := make([]any, 0, 6) // "set", key, value, "ex"/"px", ttl, (spare)
		return &s
	},
}

// Store is the Redis payload adapter.
type Store struct {
	client    redis.UniversalClient
	codec     codec.Codec
	keyPrefix string
	hits      atomic.Int64
	misses    atomic.Int64
}

// Options configures a new Store.
type Options struct {
	Client    redis.UniversalClient
	Codec     codec.Codec
	KeyPrefix string
}

// New creates a new Store.
func New(opts Options) *Store {
	if opts.Codec == nil {
		opts.Codec = codec.MsgPack{}
	}
	return &Store{client: opts.Client, codec: opts.Codec, keyPrefix: opts.KeyPrefix}
}

// Key joins parts under the store's prefix with ":".
func (s *Store) Key(parts ...string) string {
	if s.keyPrefix != "" {
		return s.keyPrefix + ":" + strings.Join(parts, ":")
	}
	return strings.Join(parts, ":")
}

// set sends a SET command using a pooled args slice.
//   - ttl < 1s  → PX (millisecond precision)
//   - ttl >= 1s → EX (second precision)
//   - ttl <= 0  → no expiry
func (s *Store) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ap := setArgsPool.Get().(*[]any)
	args := (*ap)[:0]
	switch {
	case ttl > 0 && ttl < time.Second:
		args = append(args, "set", key, value, "px", ttl.Milliseconds())
	case ttl > 0:
		args = append(args, "set", key, value, "ex", int64(ttl.Seconds()))
	default:
		args = append(args, "set", key, value)
	}
	err := s.client.Do(ctx, args...).Err()
	for i := range args {
		args[i] = nil
	}
	*ap = args[:0]
	setArgsPool.Put(ap)
	return err
}

// Set encodes value and stores it under key.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := s.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("l2 marshal: %w", err)
	}
	if err := s.set(ctx, key, b, ttl); err != nil {
		return fmt.Errorf("l2 set %s: %w", key, err)
	}
	return nil
}

// Get decodes the value stored under key into dest.
func (s *Store) Get(ctx context.Context, key string, dest any) error {
	b, err := s.GetRaw(ctx, key)
	if err != nil {
		return err
	}
	if err := s.codec.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("l2 unmarshal %s: %w", key, err)
	}
	return nil
}

// GetRaw returns the bytes stored under key.
func (s *Store) GetRaw(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.misses.Add(1)
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("l2 get %s: %w", key, err)
	}
	s.hits.Add(1)
	return b, nil
}

// Exists checks whether key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("l2 exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("l2 delete %s: %w", key, err)
	}
	return nil
}

// GetMany reads keys in one pipeline. Missing keys are absent from the map.
func (s *Store) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Get(ctx, k)
	}
	_, _ = pipe.Exec(ctx)
	result := make(map[string][]byte, len(keys))
	for i, cmd := range cmds {
		b, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				s.misses.Add(1)
				continue
			}
			return nil, fmt.Errorf("l2 get-many %s: %w", keys[i], err)
		}
		s.hits.Add(1)
		result[keys[i]] = b
	}
	return result, nil
}

// Push appends encoded values to the tail of a list.
func (s *Store) Push(ctx context.Context, list string, values ...any) error {
	if len(values) == 0 {
		return nil
	}
	payloads := make([]any, len(values))
	for i, v := range values {
		b, err := s.codec.Marshal(v)
		if err != nil {
			return fmt.Errorf("l2 marshal: %w", err)
		}
		payloads[i] = b
	}
	if err := s.client.RPush(ctx, list, payloads...).Err(); err != nil {
		return fmt.Errorf("l2 push %s: %w", list, err)
	}
	return nil
}

// Pop removes the head of a list and decodes it into dest.
func (s *Store) Pop(ctx context.Context, list string, dest any) error {
	b, err := s.client.LPop(ctx, list).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("l2 pop %s: %w", list, err)
	}
	if err := s.codec.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("l2 unmarshal %s: %w", list, err)
	}
	return nil
}

// Len returns the length of a list.
func (s *Store) Len(ctx context.Context, list string) (int64, error) {
	n, err := s.client.LLen(ctx, list).Result()
	if err != nil {
		return 0, fmt.Errorf("l2 llen %s: %w", list, err)
	}
	return n, nil
}

// Ping checks that Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Stats holds hit and miss counts.
type Stats struct {
	Hits   int64
	Misses int64
}

// Stats returns current statistics.
func (s *Store) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}
