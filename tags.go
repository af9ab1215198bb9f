// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// tags.go - the value tag protocol. Before packing, wrap walks a value tree
// and rewrites extension values (decimals, uuids, zoned times, records) into
// msgpack-native shapes; after unpacking, unwrap walks the tree back and
// resolves UUID, TZDT and MODEL tagged tuples.

package ormpack

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tag markers. A sequence is only a tagged value when its first element is
// one of these and the rest of it has the tag's shape.
const (
	TagUUID  = "UUID"
	TagTZDT  = "TZDT"
	TagModel = "MODEL"
)

// RawRecord is a MODEL tag left unresolved by DeserializeRaw. Serialize
// writes it back as the same tag.
type RawRecord struct {
	TypeID   uint32 `json:"type_id,omitempty"`
	TypeName string `json:"type,omitempty"`
	Fields   []any  `json:"fields"`
}

// wrap rewrites v into a tree of nil, bool, int64, uint64, float64, string,
// []byte, []any, map[string]any and map[any]any.
func (c *Codec) wrap(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, []byte, int64, uint64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case decimal.Decimal:
		return x.String(), nil
	case uuid.UUID:
		b := make([]byte, 16)
		copy(b, x[:])
		return []any{TagUUID, b}, nil
	case time.Time:
		idx, secs, err := zonedTime(x)
		if err != nil {
			return nil, err
		}
		return []any{TagTZDT, int64(idx), secs}, nil
	case RawRecord:
		fields, err := c.wrap(x.Fields)
		if err != nil {
			return nil, err
		}
		var key any = x.TypeName
		if x.TypeID != 0 {
			key = int64(x.TypeID)
		}
		return []any{TagModel, key, fields}, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			w, err := c.wrap(e)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			w, err := c.wrap(e)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	}
	return c.wrapReflect(reflect.ValueOf(v))
}

func (c *Codec) wrapReflect(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Elem().Kind() == reflect.Struct && c.isRecord(rv.Elem().Type()) {
			return c.wrapRecord(rv.Elem())
		}
		return c.wrap(rv.Elem().Interface())
	case reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return c.wrap(rv.Elem().Interface())
	case reflect.Struct:
		if c.isRecord(rv.Type()) {
			return c.wrapRecord(rv)
		}
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			w, err := c.wrap(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				w, err := c.wrap(iter.Value().Interface())
				if err != nil {
					return nil, err
				}
				out[iter.Key().String()] = w
			}
			return out, nil
		}
		out := make(map[any]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := c.wrap(iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			if k != nil && !reflect.TypeOf(k).Comparable() {
				return nil, fmt.Errorf("%w: map key %T", ErrUnsupportedValue, iter.Key().Interface())
			}
			w, err := c.wrap(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return normalizeBasic(rv), nil
	}
	if !rv.IsValid() {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, rv.Type())
}

// wrapRecord encodes a record through its compiled encoder and tags it.
func (c *Codec) wrapRecord(rv reflect.Value) (any, error) {
	cc, err := c.compiled(rv.Type())
	if err != nil {
		return nil, err
	}
	tuple, err := cc.encodeValue(c, rv)
	if err != nil {
		return nil, err
	}
	fields, err := c.wrap(tuple)
	if err != nil {
		return nil, serializationError(cc.schema.Name, "encode", err)
	}
	var key any = cc.schema.Name
	if id, ok := c.registry.ID(rv.Type()); ok {
		key = int64(id)
	}
	return []any{TagModel, key, fields}, nil
}

// unwrap resolves tagged tuples in an unpacked, normalized tree. With raw set,
// MODEL tags become RawRecord values instead of decoded records.
func (c *Codec) unwrap(v any, raw bool) (any, error) {
	switch x := v.(type) {
	case []any:
		if len(x) > 0 {
			if tag, ok := x[0].(string); ok {
				if out, ok, err := c.untag(tag, x, raw); ok || err != nil {
					return out, err
				}
			}
		}
		out := make([]any, len(x))
		for i, e := range x {
			u, err := c.unwrap(e, raw)
			if err != nil {
				return nil, err
			}
			out[i] = u
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			u, err := c.unwrap(e, raw)
			if err != nil {
				return nil, err
			}
			out[k] = u
		}
		return out, nil
	case map[any]any:
		out := make(map[any]any, len(x))
		for k, e := range x {
			u, err := c.unwrap(e, raw)
			if err != nil {
				return nil, err
			}
			out[k] = u
		}
		return out, nil
	default:
		return v, nil
	}
}

// untag decodes x when it has the shape of the tag it starts with.
func (c *Codec) untag(tag string, x []any, raw bool) (any, bool, error) {
	switch tag {
	case TagUUID:
		if len(x) != 2 {
			return nil, false, nil
		}
		b, ok := x[1].([]byte)
		if !ok || len(b) != 16 {
			return nil, false, nil
		}
		id, _ := uuid.FromBytes(b)
		return id, true, nil
	case TagTZDT:
		if len(x) != 3 {
			return nil, false, nil
		}
		idx, ok := toInt64(x[1])
		if !ok {
			return nil, false, nil
		}
		secs, ok := toFloat64(x[2])
		if !ok {
			return nil, false, nil
		}
		t, err := zonedTimeFrom(idx, secs)
		return t, true, err
	case TagModel:
		if len(x) != 3 {
			return nil, false, nil
		}
		fields, ok := x[2].([]any)
		if !ok {
			return nil, false, nil
		}
		switch x[1].(type) {
		case string, int64, uint64:
		default:
			return nil, false, nil
		}
		if raw {
			rec, err := c.rawRecord(x[1], fields)
			return rec, true, err
		}
		t, err := c.resolve(x[1])
		if err != nil {
			return nil, true, err
		}
		obj, err := c.decodeRecord(t, fields)
		return obj, true, err
	}
	return nil, false, nil
}

func (c *Codec) rawRecord(key any, fields []any) (RawRecord, error) {
	// A record tuple is positional; only its elements can be tags.
	inner := make([]any, len(fields))
	for i, f := range fields {
		u, err := c.unwrap(f, true)
		if err != nil {
			return RawRecord{}, err
		}
		inner[i] = u
	}
	rec := RawRecord{Fields: inner}
	if name, ok := key.(string); ok {
		rec.TypeName = name
		return rec, nil
	}
	id, ok := wireID(key)
	if !ok {
		return RawRecord{}, fmt.Errorf("%w: MODEL key %v", ErrMalformedTuple, key)
	}
	rec.TypeID = id
	if t, err := c.registry.Resolve(id); err == nil {
		rec.TypeName = QualifiedName(t)
	}
	return rec, nil
}

// zonedTime returns the zone index and microsecond-truncated epoch seconds.
func zonedTime(t time.Time) (int, float64, error) {
	name := t.Location().String()
	idx, ok := ZoneIndex(name)
	if !ok {
		return 0, 0, fmt.Errorf("%w: time zone %q is not in the zone table", ErrUnsupportedValue, name)
	}
	us := t.UnixMicro()
	sec, frac := us/1_000_000, us%1_000_000
	if frac < 0 {
		sec--
		frac += 1_000_000
	}
	return idx, float64(sec) + float64(frac)/1e6, nil
}

// zonedTimeFrom rebuilds a time from a zone index and epoch seconds, rounded
// to the nearest microsecond.
func zonedTimeFrom(idx int64, secs float64) (time.Time, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("%w: epoch seconds %v", ErrMalformedTuple, secs)
	}
	loc, err := zoneLocation(int(idx))
	if err != nil {
		return time.Time{}, err
	}
	whole := math.Floor(secs)
	micros := int64(math.Round((secs - whole) * 1e6))
	return time.UnixMicro(int64(whole)*1e6 + micros).In(loc), nil
}

// normalize converts an unpacked tree to canonical Go types: integers become
// int64 (uint64 above MaxInt64), float32 becomes float64, and maps whose keys
// are all strings become map[string]any.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, string, []byte, int64, float64, time.Time:
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case map[any]any:
		allStrings := true
		for k := range x {
			if _, ok := k.(string); !ok {
				allStrings = false
				break
			}
		}
		if allStrings {
			out := make(map[string]any, len(x))
			for k, e := range x {
				out[k.(string)] = normalize(e)
			}
			return out
		}
		out := make(map[any]any, len(x))
		for k, e := range x {
			out[normalize(k)] = normalize(e)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32:
		return normalizeBasic(rv)
	}
	return v
}

// normalizeBasic maps a bool, string or numeric value of any named type onto
// bool, string, int64, uint64 or float64.
func normalizeBasic(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return int64(u)
		}
		return u
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return rv.Interface()
}

// toInt64 reports the integer value of any integer kind that fits in int64.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

// toFloat64 reports the value of any integer or float kind as a float64.
func toFloat64(v any) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
