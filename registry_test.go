package ormpack_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewDonelson/ormpack"
)

// Tdc and Ubd share an adler32 checksum.
type Tdc struct{ ID int64 }
type Ubd struct{ ID int64 }

func TestTypeID_Deterministic(t *testing.T) {
	assert.Equal(t, ormpack.TypeID("a.B"), ormpack.TypeID("a.B"))
	assert.NotEqual(t, ormpack.TypeID("a.B"), ormpack.TypeID("a.C"))
	// adler32("Wikipedia")
	assert.Equal(t, uint32(0x11E60398), ormpack.TypeID("Wikipedia"))
}

func TestRegistry_Register(t *testing.T) {
	r := ormpack.NewRegistry()

	id, err := r.Register(&Author{})
	require.NoError(t, err)
	assert.Equal(t, ormpack.TypeID("github.com/AndrewDonelson/ormpack_test.Author"), id)

	again, err := r.Register(Author{})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	byType, err := r.Register(reflect.TypeOf(Author{}))
	require.NoError(t, err)
	assert.Equal(t, id, byType)

	got, ok := r.ID(reflect.TypeOf(&Author{}))
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, err = r.Register(nil)
	assert.ErrorIs(t, err, ormpack.ErrInvalidModel)
	_, err = r.Register(42)
	assert.ErrorIs(t, err, ormpack.ErrInvalidModel)
}

func TestRegistry_Collision(t *testing.T) {
	require.Equal(t,
		ormpack.TypeID(ormpack.QualifiedName(reflect.TypeOf(Tdc{}))),
		ormpack.TypeID(ormpack.QualifiedName(reflect.TypeOf(Ubd{}))))

	r := ormpack.NewRegistry()
	_, err := r.Register(&Tdc{})
	require.NoError(t, err)
	_, err = r.Register(&Ubd{})
	assert.ErrorIs(t, err, ormpack.ErrTypeIDCollision)

	c := ormpack.New(ormpack.Config{Registry: r})
	_, err = c.Register(&Ubd{})
	assert.ErrorIs(t, err, ormpack.ErrTypeIDCollision)

	// The first registration stands.
	tdc, err := r.Resolve(ormpack.TypeID(ormpack.QualifiedName(reflect.TypeOf(Tdc{}))))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(Tdc{}), tdc)
}

func TestRegistry_Resolve(t *testing.T) {
	r := ormpack.NewRegistry()
	id, err := r.Register(&Author{})
	require.NoError(t, err)
	want := reflect.TypeOf(Author{})

	for _, key := range []any{id, int64(id), uint64(id), int(id), "github.com/AndrewDonelson/ormpack_test.Author"} {
		got, err := r.Resolve(key)
		require.NoError(t, err, "%T", key)
		assert.Equal(t, want, got)
	}

	_, err = r.Resolve(int64(-1))
	assert.ErrorIs(t, err, ormpack.ErrUnknownType)
	_, err = r.Resolve(id + 1)
	assert.ErrorIs(t, err, ormpack.ErrUnknownType)
	_, err = r.Resolve("nope.Type")
	assert.ErrorIs(t, err, ormpack.ErrUnknownType)
	_, err = r.Resolve(1.5)
	assert.ErrorIs(t, err, ormpack.ErrUnknownType)
}

func TestRegistry_Types(t *testing.T) {
	r := ormpack.NewRegistry()
	for _, m := range []any{&Book{}, &Author{}, &Payment{}} {
		_, err := r.Register(m)
		require.NoError(t, err)
	}
	assert.Equal(t, []reflect.Type{
		reflect.TypeOf(Author{}), reflect.TypeOf(Book{}), reflect.TypeOf(Payment{}),
	}, r.Types())
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "github.com/AndrewDonelson/ormpack_test.Author", ormpack.QualifiedName(reflect.TypeOf(&Author{})))
	assert.Equal(t, "int", ormpack.QualifiedName(reflect.TypeOf(0)))
}
