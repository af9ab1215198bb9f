package ormpack

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Sentinel(t *testing.T) {
	errs := []error{
		ErrMissingSchemaConfiguration,
		ErrNoPrimaryKey,
		ErrInvalidModel,
		ErrUnknownField,
		ErrInvalidOptions,
		ErrUnknownType,
		ErrTypeIDCollision,
		ErrSerialization,
		ErrUnsupportedValue,
		ErrRelationNotLoaded,
		ErrMalformedTuple,
		ErrNotFound,
	}
	seen := map[string]bool{}
	for _, e := range errs {
		assert.NotNil(t, e)
		assert.Contains(t, e.Error(), "ormpack: ")
		assert.False(t, seen[e.Error()], e.Error())
		seen[e.Error()] = true
	}
}

func TestSerializationError(t *testing.T) {
	cause := fmt.Errorf("%w: field %q", ErrMalformedTuple, "name")
	err := serializationError("app.User", "decode", cause)

	assert.Equal(t, `ormpack: decode app.User: ormpack: malformed tuple: field "name"`, err.Error())
	assert.ErrorIs(t, err, ErrSerialization)
	assert.ErrorIs(t, err, ErrMalformedTuple)
	assert.False(t, errors.Is(err, ErrUnknownType))

	var se *SerializationError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "app.User", se.Type)
	assert.Equal(t, "decode", se.Op)

	// Already wrapped errors keep the innermost type.
	outer := serializationError("app.Order", "encode", fmt.Errorf("field %q: %w", "user", err))
	assert.True(t, errors.As(outer, &se))
	assert.Equal(t, "app.User", se.Type)

	assert.Equal(t, "ormpack: compile", (&SerializationError{Op: "compile"}).Error())
}
