// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// registry.go - the type registry: a bidirectional map between record types
// and the adler32 checksum of their qualified names, which MODEL tags carry
// on the wire in place of the full name. Duplicate ids are rejected.

package ormpack

import (
	"fmt"
	"hash/adler32"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps record types to compact numeric ids and back.
// Lookups are lock-free; registration is serialized.
type Registry struct {
	mu     sync.Mutex
	byID   *xsync.MapOf[uint32, reflect.Type]
	byName *xsync.MapOf[string, reflect.Type]
	ids    *xsync.MapOf[reflect.Type, uint32]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   xsync.NewMapOf[uint32, reflect.Type](),
		byName: xsync.NewMapOf[string, reflect.Type](),
		ids:    xsync.NewMapOf[reflect.Type, uint32](),
	}
}

// QualifiedName returns the import-path qualified name of a record type,
// e.g. "github.com/acme/billing.Invoice".
func QualifiedName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// TypeID returns the wire id for a qualified type name.
func TypeID(qualifiedName string) uint32 {
	return adler32.Checksum([]byte(qualifiedName))
}

// Register records model's type and returns its id. model may be a struct
// value, a pointer to one, or a reflect.Type. Registering the same type again
// returns the same id; a different type with the same id fails with
// ErrTypeIDCollision.
func (r *Registry) Register(model any) (uint32, error) {
	t, err := modelType(model)
	if err != nil {
		return 0, err
	}
	name := QualifiedName(t)
	id := TypeID(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID.Load(id); ok {
		if existing == t {
			return id, nil
		}
		return 0, fmt.Errorf("%w: %s and %s both hash to %d",
			ErrTypeIDCollision, QualifiedName(existing), name, id)
	}
	r.byID.Store(id, t)
	r.byName.Store(name, t)
	r.ids.Store(t, id)
	return id, nil
}

// ID returns the registered id of t.
func (r *Registry) ID(t reflect.Type) (uint32, bool) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return r.ids.Load(t)
}

// Resolve returns the record type for a numeric id or a qualified name.
// Names resolved through the Codec's fallbacks are cached here too.
func (r *Registry) Resolve(key any) (reflect.Type, error) {
	switch k := key.(type) {
	case string:
		if t, ok := r.byName.Load(k); ok {
			return t, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, k)
	default:
		id, ok := wireID(key)
		if !ok {
			return nil, fmt.Errorf("%w: key %v (%T)", ErrUnknownType, key, key)
		}
		if t, ok := r.byID.Load(id); ok {
			return t, nil
		}
		return nil, fmt.Errorf("%w: id %d", ErrUnknownType, id)
	}
}

// alias caches a dynamically resolved name.
func (r *Registry) alias(name string, t reflect.Type) {
	r.byName.LoadOrStore(name, t)
}

// Types returns every registered type ordered by qualified name.
func (r *Registry) Types() []reflect.Type {
	var out []reflect.Type
	r.byID.Range(func(_ uint32, t reflect.Type) bool {
		out = append(out, t)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return QualifiedName(out[i]) < QualifiedName(out[j])
	})
	return out
}

// wireID converts an unpacked integer (or a numeric string) to a registry id.
func wireID(key any) (uint32, bool) {
	switch k := key.(type) {
	case uint32:
		return k, true
	case string:
		n, err := strconv.ParseUint(k, 10, 32)
		return uint32(n), err == nil
	}
	n, ok := toInt64(key)
	if !ok || n < 0 || n > int64(^uint32(0)) {
		return 0, false
	}
	return uint32(n), true
}
