// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// composite.go - slices, arrays, maps and plain structs inside record fields.
// Encoding turns them into a generic tree, leaving decimals, uuids, times and
// records in place for the tag protocol; decoding walks the field's type and
// assigns the unwrapped tree into it.

package ormpack

import (
	"fmt"
	"reflect"
	"strings"
)

func encodeComposite(c *Codec, fv reflect.Value) (any, error) {
	return c.plainTree(fv)
}

// plainTree converts rv into nil, basic values, []byte, []any,
// map[string]any and map[any]any. Plain structs become maps keyed by field
// name (or msgpack tag name).
func (c *Codec) plainTree(rv reflect.Value) (any, error) {
	if !rv.IsValid() {
		return nil, nil
	}
	t := rv.Type()
	if t == uuidType || isExtensionType(t) || c.isRecord(t) {
		return rv.Interface(), nil
	}
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return c.plainTree(rv.Elem())
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return normalizeBasic(rv), nil
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			v, err := c.plainTree(rv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		iter := rv.MapRange()
		if t.Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			for iter.Next() {
				v, err := c.plainTree(iter.Value())
				if err != nil {
					return nil, err
				}
				out[iter.Key().String()] = v
			}
			return out, nil
		}
		out := make(map[any]any, rv.Len())
		for iter.Next() {
			k, err := c.plainTree(iter.Key())
			if err != nil {
				return nil, err
			}
			if k != nil && !reflect.TypeOf(k).Comparable() {
				return nil, fmt.Errorf("%w: map key %s", ErrUnsupportedValue, t.Key())
			}
			v, err := c.plainTree(iter.Value())
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case reflect.Struct:
		fields := plainFields(t)
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			v, err := c.plainTree(rv.FieldByIndex(f.index))
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", t.Name(), f.name, err)
			}
			out[f.name] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, t)
}

// assignTree stores the unwrapped tree v in fv, converting along fv's type.
func (c *Codec) assignTree(fv reflect.Value, v any) error {
	t := fv.Type()
	if v == nil {
		fv.Set(reflect.Zero(t))
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		fv.Set(rv)
		return nil
	}
	switch t {
	case decimalType:
		return decodeDecimal(c, fv, v)
	case uuidType:
		return decodeUUID(c, fv, v)
	case timeType:
		return decodeTimestamp(c, fv, v)
	}

	switch t.Kind() {
	case reflect.Ptr:
		p := reflect.New(t.Elem())
		if err := c.assignTree(p.Elem(), v); err != nil {
			return err
		}
		fv.Set(p)
		return nil
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return scalarDecoder(t)(c, fv, v)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return scalarDecoder(t)(c, fv, v)
		}
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%w: %s from %T", ErrMalformedTuple, t, v)
		}
		out := reflect.MakeSlice(t, len(items), len(items))
		for i, item := range items {
			if err := c.assignTree(out.Index(i), item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		fv.Set(out)
		return nil
	case reflect.Array:
		out := reflect.New(t).Elem()
		switch x := v.(type) {
		case []byte:
			if t.Elem().Kind() != reflect.Uint8 || len(x) != t.Len() {
				return fmt.Errorf("%w: %s from %d bytes", ErrMalformedTuple, t, len(x))
			}
			reflect.Copy(out, reflect.ValueOf(x))
		case []any:
			if len(x) != t.Len() {
				return fmt.Errorf("%w: %s from %d values", ErrMalformedTuple, t, len(x))
			}
			for i, item := range x {
				if err := c.assignTree(out.Index(i), item); err != nil {
					return fmt.Errorf("[%d]: %w", i, err)
				}
			}
		default:
			return fmt.Errorf("%w: %s from %T", ErrMalformedTuple, t, v)
		}
		fv.Set(out)
		return nil
	case reflect.Map:
		out := reflect.MakeMap(t)
		put := func(k, e any) error {
			kv := reflect.New(t.Key()).Elem()
			if err := c.assignTree(kv, k); err != nil {
				return fmt.Errorf("key %v: %w", k, err)
			}
			ev := reflect.New(t.Elem()).Elem()
			if err := c.assignTree(ev, e); err != nil {
				return fmt.Errorf("[%v]: %w", k, err)
			}
			out.SetMapIndex(kv, ev)
			return nil
		}
		switch x := v.(type) {
		case map[string]any:
			for k, e := range x {
				if err := put(k, e); err != nil {
					return err
				}
			}
		case map[any]any:
			for k, e := range x {
				if err := put(k, e); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: %s from %T", ErrMalformedTuple, t, v)
		}
		fv.Set(out)
		return nil
	case reflect.Struct:
		if rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Type() == t {
			fv.Set(rv.Elem())
			return nil
		}
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s from %T", ErrMalformedTuple, t, v)
		}
		out := reflect.New(t).Elem()
		for _, f := range plainFields(t) {
			e, ok := m[f.name]
			if !ok {
				continue
			}
			if err := c.assignTree(out.FieldByIndex(f.index), e); err != nil {
				return fmt.Errorf("%s.%s: %w", t.Name(), f.name, err)
			}
		}
		fv.Set(out)
		return nil
	}
	return fmt.Errorf("%w: %s from %T", ErrMalformedTuple, t, v)
}

type plainField struct {
	name  string
	index []int
}

// plainFields lists the exported fields of a plain struct. Embedded structs
// without a msgpack name are inlined.
func plainFields(t reflect.Type) []plainField {
	var out []plainField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("msgpack"), ",")
		if name == "-" {
			continue
		}
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct && !isExtensionType(f.Type) {
			for _, sub := range plainFields(f.Type) {
				sub.index = append([]int{i}, sub.index...)
				out = append(out, sub)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out = append(out, plainField{name: name, index: []int{i}})
	}
	return out
}
