// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// errors.go - sentinel error variables returned by the public ormpack API,
// covering schema configuration, type registration, value encoding, and the
// SerializationError wrapper raised when a type's compiled codec fails.

// Package ormpack is a schema-driven binary serialization engine for Go
// record structs. It compiles a positional encoder/decoder pair per record
// type, packs the resulting tuples with MessagePack, and escapes extension
// values (decimals, zoned timestamps, 128-bit identifiers, nested records)
// through a small tagged-tuple protocol.
package ormpack

import (
	"errors"
	"strings"
)

// Schema errors
var (
	ErrMissingSchemaConfiguration = errors.New("ormpack: type declares no serialization options")
	ErrNoPrimaryKey               = errors.New("ormpack: struct has no primary_key field")
	ErrInvalidModel               = errors.New("ormpack: model must be a struct or a pointer to a struct")
	ErrUnknownField               = errors.New("ormpack: options name an unknown field")
	ErrInvalidOptions             = errors.New("ormpack: invalid serialization options")
)

// Registry errors
var (
	ErrUnknownType     = errors.New("ormpack: unknown record type")
	ErrTypeIDCollision = errors.New("ormpack: registry id collision")
)

// Codec errors
var (
	ErrSerialization     = errors.New("ormpack: serialization failed")
	ErrUnsupportedValue  = errors.New("ormpack: unsupported value")
	ErrRelationNotLoaded = errors.New("ormpack: relation not loaded")
	ErrMalformedTuple    = errors.New("ormpack: malformed tuple")
)

// Storage errors
var (
	ErrNotFound = errors.New("ormpack: record not found")
)

// SerializationError reports a failure while compiling or running the codec of
// one record type. errors.Is matches both ErrSerialization and the cause.
type SerializationError struct {
	Type string
	Op   string
	Err  error
}

func (e *SerializationError) Error() string {
	var b strings.Builder
	b.WriteString("ormpack: ")
	b.WriteString(e.Op)
	if e.Type != "" {
		b.WriteString(" ")
		b.WriteString(e.Type)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *SerializationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSerialization.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

func serializationError(typeName, op string, err error) error {
	var se *SerializationError
	if errors.As(err, &se) {
		return err
	}
	return &SerializationError{Type: typeName, Op: op, Err: err}
}
