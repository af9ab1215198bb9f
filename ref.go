// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// ref.go - Ref[T], the relation field type. A Ref is null, identifier-only
// (the related primary key is known but the record is not loaded), or
// materialized (the related record is held in memory).

package ormpack

import (
	"reflect"
)

// Ref is a reference to a related record of type T.
type Ref[T any] struct {
	id  any
	obj *T
}

// RefTo returns a materialized reference to obj. A nil obj yields a null Ref.
func RefTo[T any](obj *T) Ref[T] {
	return Ref[T]{obj: obj}
}

// RefID returns an identifier-only reference.
func RefID[T any](id any) Ref[T] {
	return Ref[T]{id: id}
}

// ID returns the related primary key, reading it from the loaded record when
// the reference was built with RefTo. It returns nil for a null Ref.
func (r Ref[T]) ID() any {
	if r.id != nil {
		return r.id
	}
	if r.obj == nil {
		return nil
	}
	v := reflect.ValueOf(r.obj).Elem()
	if v.Kind() != reflect.Struct {
		return nil
	}
	fields, pk, err := structFields(v.Type())
	if err != nil {
		return nil
	}
	return v.FieldByIndex(fields[pk].index).Interface()
}

// Get returns the related record when it is loaded.
func (r Ref[T]) Get() (*T, bool) {
	return r.obj, r.obj != nil
}

// Loaded reports whether the related record is materialized.
func (r Ref[T]) Loaded() bool { return r.obj != nil }

// IsZero reports whether r is a null reference.
func (r Ref[T]) IsZero() bool { return r.id == nil && r.obj == nil }

// relation is the type-erased view of Ref[T] used by the compiled steps.
type relation interface {
	refTarget() reflect.Type
	refID() any
	refObject() any
}

// relationSetter is implemented by *Ref[T].
type relationSetter interface {
	setRef(id, obj any)
}

func (r Ref[T]) refTarget() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (r Ref[T]) refID() any { return r.id }

func (r Ref[T]) refObject() any {
	if r.obj == nil {
		return nil
	}
	return r.obj
}

func (r *Ref[T]) setRef(id, obj any) {
	r.id = id
	r.obj = nil
	if p, ok := obj.(*T); ok {
		r.obj = p
	}
}
