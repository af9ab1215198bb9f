// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// redis.go - RedisStore: keeps serialized records in Redis under
// <prefix>:<type>:<primary key> and moves tagged payloads through FIFO
// queues, with the Codec as the wire format of both.

package ormpack

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AndrewDonelson/ormpack/internal/l2"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	KeyPrefix string        // prepended to every key; default "ormpack"
	TTL       time.Duration // default record TTL; 0 persists
}

// RedisStore saves records and queue payloads in Redis.
type RedisStore struct {
	c   *Codec
	l2  *l2.Store
	ttl time.Duration
}

// NewRedisStore returns a store writing through client.
func NewRedisStore(client redis.UniversalClient, c *Codec, opts RedisOptions) *RedisStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "ormpack"
	}
	return &RedisStore{
		c:   c,
		l2:  l2.New(l2.Options{Client: client, Codec: c, KeyPrefix: opts.KeyPrefix}),
		ttl: opts.TTL,
	}
}

// Key returns the Redis key of the record of model's type with primary key id.
func (s *RedisStore) Key(model any, id any) (string, error) {
	t, err := modelType(model)
	if err != nil {
		return "", err
	}
	return s.l2.Key(s.typeKey(t), idString(id)), nil
}

func (s *RedisStore) typeKey(t reflect.Type) string {
	return storeTypeKey(s.c, t)
}

// storeTypeKey is the registry id of t when it is registered, else its
// qualified name.
func storeTypeKey(c *Codec, t reflect.Type) string {
	if id, ok := c.registry.ID(t); ok {
		return strconv.FormatUint(uint64(id), 10)
	}
	return QualifiedName(t)
}

// Save stores records under their primary keys with the default TTL.
func (s *RedisStore) Save(ctx context.Context, records ...any) error {
	return s.SaveTTL(ctx, s.ttl, records...)
}

// SaveTTL stores records with an explicit TTL. Records decoded through a
// partial schema are refused, since saving them would drop fields.
func (s *RedisStore) SaveTTL(ctx context.Context, ttl time.Duration, records ...any) error {
	for _, r := range records {
		schema, err := s.c.Schema(r)
		if err != nil {
			return err
		}
		if schema.Partial() {
			return fmt.Errorf("%w: %s serializes a subset of its fields", ErrInvalidOptions, schema.Name)
		}
		id, err := schema.ID(r)
		if err != nil {
			return err
		}
		key := s.l2.Key(s.typeKey(schema.Type), idString(id))
		if err := s.l2.Set(ctx, key, r, ttl); err != nil {
			s.c.metrics.RecordError("redis_save", schema.Name)
			return err
		}
	}
	return nil
}

// Load reads the record with primary key id into dst, a pointer to a record.
func (s *RedisStore) Load(ctx context.Context, dst any, id any) error {
	key, err := s.Key(dst, id)
	if err != nil {
		return err
	}
	if err := s.l2.Get(ctx, key, dst); err != nil {
		if errors.Is(err, l2.ErrMiss) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return err
	}
	return nil
}

// LoadMany reads records of model's type in one round trip. Missing ids are
// skipped; the result holds *T values in the order of ids.
func (s *RedisStore) LoadMany(ctx context.Context, model any, ids ...any) ([]any, error) {
	t, err := modelType(model)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.l2.Key(s.typeKey(t), idString(id))
	}
	raw, err := s.l2.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(raw))
	for _, k := range keys {
		b, ok := raw[k]
		if !ok {
			continue
		}
		v, err := s.c.Deserialize(b)
		if err != nil {
			return nil, err
		}
		if reflect.TypeOf(v) != reflect.PointerTo(t) {
			return nil, fmt.Errorf("%w: %s holds %T", ErrUnsupportedValue, k, v)
		}
		out = append(out, v)
	}
	return out, nil
}

// Exists reports whether a record of model's type with primary key id is
// stored.
func (s *RedisStore) Exists(ctx context.Context, model any, id any) (bool, error) {
	key, err := s.Key(model, id)
	if err != nil {
		return false, err
	}
	return s.l2.Exists(ctx, key)
}

// Delete removes the record of model's type with primary key id.
func (s *RedisStore) Delete(ctx context.Context, model any, id any) error {
	key, err := s.Key(model, id)
	if err != nil {
		return err
	}
	return s.l2.Delete(ctx, key)
}

// Enqueue appends serialized values to a queue.
func (s *RedisStore) Enqueue(ctx context.Context, queue string, values ...any) error {
	return s.l2.Push(ctx, s.l2.Key("queue", queue), values...)
}

// Dequeue removes and deserializes the oldest value of a queue. An empty
// queue returns ErrNotFound.
func (s *RedisStore) Dequeue(ctx context.Context, queue string) (any, error) {
	var v any
	if err := s.l2.Pop(ctx, s.l2.Key("queue", queue), &v); err != nil {
		if errors.Is(err, l2.ErrMiss) {
			return nil, fmt.Errorf("%w: queue %s is empty", ErrNotFound, queue)
		}
		return nil, err
	}
	return v, nil
}

// QueueLen returns the number of values waiting in a queue.
func (s *RedisStore) QueueLen(ctx context.Context, queue string) (int64, error) {
	return s.l2.Len(ctx, s.l2.Key("queue", queue))
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.l2.Ping(ctx)
}

// idString renders a primary key for use in a key.
func idString(id any) string {
	rv := reflect.ValueOf(id)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return ""
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.String:
		return fmt.Sprint(normalizeBasic(rv))
	}
	return fmt.Sprint(rv.Interface())
}
