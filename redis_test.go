package ormpack_test

import (
	"context"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewDonelson/ormpack"
)

func newRedisStore(t *testing.T, opts ormpack.RedisOptions) (*ormpack.RedisStore, *ormpack.Codec, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := ormpack.New(ormpack.Config{})
	_, err := c.Register(&Payment{})
	require.NoError(t, err)
	return ormpack.NewRedisStore(client, c, opts), c, mr
}

func TestRedisStore_SaveLoad(t *testing.T) {
	s, _, mr := newRedisStore(t, ormpack.RedisOptions{})
	ctx := context.Background()
	p := scenarioPayment()

	require.NoError(t, s.Save(ctx, p))

	key, err := s.Key(&Payment{}, p.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))
	assert.Contains(t, key, "ormpack:")
	assert.Contains(t, key, p.ID.String())

	var got Payment
	require.NoError(t, s.Load(ctx, &got, p.ID))
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, p.Amount.Equal(got.Amount))
	assert.True(t, p.When.Equal(got.When))

	ok, err := s.Exists(ctx, &Payment{}, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, &Payment{}, p.ID))
	assert.ErrorIs(t, s.Load(ctx, &got, p.ID), ormpack.ErrNotFound)

	ok, err = s.Exists(ctx, &Payment{}, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Exists(ctx, 5, p.ID)
	assert.ErrorIs(t, err, ormpack.ErrInvalidModel)
}

func TestRedisStore_KeyNames(t *testing.T) {
	s, c, _ := newRedisStore(t, ormpack.RedisOptions{KeyPrefix: "app"})

	id, ok := c.Registry().ID(reflect.TypeOf(Payment{}))
	require.True(t, ok)
	key, err := s.Key(&Payment{}, "x")
	require.NoError(t, err)
	assert.Equal(t, "app:"+strconv.FormatUint(uint64(id), 10)+":x", key)

	key, err = s.Key(&Author{}, int8(5))
	require.NoError(t, err)
	assert.Equal(t, "app:github.com/AndrewDonelson/ormpack_test.Author:5", key)

	_, err = s.Key(5, 5)
	assert.ErrorIs(t, err, ormpack.ErrInvalidModel)
}

func TestRedisStore_TTL(t *testing.T) {
	s, _, mr := newRedisStore(t, ormpack.RedisOptions{TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Author{ID: 1, Name: "a"}))
	key, _ := s.Key(&Author{}, 1)
	assert.Equal(t, time.Minute, mr.TTL(key))

	require.NoError(t, s.SaveTTL(ctx, 0, &Author{ID: 2, Name: "b"}))
	key, _ = s.Key(&Author{}, 2)
	assert.Zero(t, mr.TTL(key))

	mr.FastForward(2 * time.Minute)
	var got Author
	assert.ErrorIs(t, s.Load(ctx, &got, 1), ormpack.ErrNotFound)
	require.NoError(t, s.Load(ctx, &got, 2))
	assert.Equal(t, "b", got.Name)
}

func TestRedisStore_RefusesPartial(t *testing.T) {
	s, _, _ := newRedisStore(t, ormpack.RedisOptions{})
	err := s.Save(context.Background(), &Draft{ID: 1})
	assert.ErrorIs(t, err, ormpack.ErrInvalidOptions)
}

func TestRedisStore_LoadMany(t *testing.T) {
	s, _, _ := newRedisStore(t, ormpack.RedisOptions{})
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &Author{ID: 1, Name: "a"}, &Author{ID: 3, Name: "c"}))

	got, err := s.LoadMany(ctx, &Author{}, 3, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{&Author{ID: 3, Name: "c"}, &Author{ID: 1, Name: "a"}}, got)
}

func TestRedisStore_Queue(t *testing.T) {
	s, _, _ := newRedisStore(t, ormpack.RedisOptions{})
	ctx := context.Background()
	p := scenarioPayment()

	require.NoError(t, s.Enqueue(ctx, "jobs", p, "second", map[string]any{"n": 3}))
	n, err := s.QueueLen(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	v, err := s.Dequeue(ctx, "jobs")
	require.NoError(t, err)
	got, ok := v.(*Payment)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, p.ID, got.ID)

	v, err = s.Dequeue(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	v, err = s.Dequeue(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": int64(3)}, v)

	_, err = s.Dequeue(ctx, "jobs")
	assert.ErrorIs(t, err, ormpack.ErrNotFound)
}

func TestRedisStore_Ping(t *testing.T) {
	s, _, _ := newRedisStore(t, ormpack.RedisOptions{})
	assert.NoError(t, s.Ping(context.Background()))
}
