// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// loader.go - MemoryLoader, an in-memory identity map of records keyed by
// (type, primary key). It serves as the RelationLoader that always-inline
// relations fall back on when the related record is not materialized.

package ormpack

import (
	"fmt"
	"reflect"
	"time"

	"github.com/AndrewDonelson/ormpack/internal/l1"
)

// MemoryLoaderOptions configures a MemoryLoader.
type MemoryLoaderOptions struct {
	TTL        time.Duration // 0 keeps records until evicted or forgotten
	MaxEntries int           // per shard; 0 is unbounded
	Clock      Clock
}

// MemoryLoader is a RelationLoader backed by an in-memory identity map.
type MemoryLoader struct {
	records *l1.Map[any]
}

var _ RelationLoader = (*MemoryLoader)(nil)

// NewMemoryLoader returns an empty loader.
func NewMemoryLoader(opts MemoryLoaderOptions) *MemoryLoader {
	return &MemoryLoader{records: l1.New[any](l1.Options{
		TTL:        opts.TTL,
		MaxEntries: opts.MaxEntries,
		Eviction:   l1.LRU,
		Clock:      opts.Clock,
	})}
}

// Put stores records (pointers to structs) under their primary keys.
func (m *MemoryLoader) Put(records ...any) error {
	for _, r := range records {
		rv := reflect.ValueOf(r)
		if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: MemoryLoader.Put needs a pointer to a struct, got %T", ErrInvalidModel, r)
		}
		t := rv.Elem().Type()
		fields, pk, err := structFields(t)
		if err != nil {
			return err
		}
		id := rv.Elem().FieldByIndex(fields[pk].index).Interface()
		m.records.Put(identityKey(t, id), r)
	}
	return nil
}

// Load implements RelationLoader.
func (m *MemoryLoader) Load(related reflect.Type, id any) (any, bool, error) {
	obj, ok := m.records.Get(identityKey(related, id))
	return obj, ok, nil
}

// Forget drops one record.
func (m *MemoryLoader) Forget(model any, id any) {
	if t, err := modelType(model); err == nil {
		m.records.Delete(identityKey(t, id))
	}
}

// ForgetType drops every record of model's type.
func (m *MemoryLoader) ForgetType(model any) {
	if t, err := modelType(model); err == nil {
		m.records.DeletePrefix(QualifiedName(t) + "#")
	}
}

// Len returns the number of records held.
func (m *MemoryLoader) Len() int {
	return int(m.records.Stats().Entries)
}

// identityKey renders (type, id) so that equal ids of different integer
// widths share a key.
func identityKey(t reflect.Type, id any) string {
	return QualifiedName(t) + "#" + idString(id)
}
