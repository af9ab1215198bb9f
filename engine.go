// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// engine.go - the codec compiler. The first time a record type is seen its
// schema is turned into a vector of per-field encode/decode steps, chosen
// once by field kind and cached by reflect.Type. Encoding and decoding then
// run the steps in a tight loop with no per-field dispatch on kind.

package ormpack

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AndrewDonelson/ormpack/internal/clock"
)

// EncodeFunc turns a record (*T or T) into its positional tuple.
type EncodeFunc func(record any) ([]any, error)

// DecodeFunc rebuilds a record from a positional tuple. It returns a *T.
type DecodeFunc func(tuple []any) (any, error)

type valueEncoder func(c *Codec, fv reflect.Value) (any, error)
type valueDecoder func(c *Codec, fv reflect.Value, slot any) error

// fieldStep is the compiled form of one FieldPlan.
type fieldStep struct {
	plan  *FieldPlan
	index []int
	enc   valueEncoder
	dec   valueDecoder
}

// compiledCodec is the cached codec of one record type.
type compiledCodec struct {
	schema      *Schema
	opts        Options
	steps       []fieldStep
	marshaler   bool // *T implements TupleMarshaler
	unmarshaler bool // *T implements TupleUnmarshaler
}

var (
	tupleMarshalerType   = reflect.TypeOf((*TupleMarshaler)(nil)).Elem()
	tupleUnmarshalerType = reflect.TypeOf((*TupleUnmarshaler)(nil)).Elem()
)

// compiled returns the cached codec of t, compiling it on a miss. Failures are
// not cached; the next call compiles again.
func (c *Codec) compiled(t reflect.Type) (*compiledCodec, error) {
	if cc, ok := c.codecs.Load(t); ok {
		c.metrics.RecordHit("codec", cc.schema.Name)
		return cc, nil
	}
	name := QualifiedName(t)
	c.metrics.RecordMiss("codec", name)
	start := c.clock.Now()
	opts, _ := c.optionsFor(t)

	schema, err := c.introspect(t)
	if err != nil {
		c.metrics.RecordError("compile", name)
		c.logger.Error("ormpack: compile failed", "type", name, "error", err)
		return nil, serializationError(name, "compile", err)
	}
	cc := &compiledCodec{
		schema: schema,
		opts:   opts,
		steps:  make([]fieldStep, len(schema.Fields)),
	}
	for i := range schema.Fields {
		f := &schema.Fields[i]
		enc, dec, err := c.stepsFor(f)
		if err != nil {
			c.metrics.RecordError("compile", name)
			c.logger.Error("ormpack: compile failed", "type", name, "field", f.Name, "error", err)
			return nil, serializationError(name, "compile", fmt.Errorf("field %q: %w", f.Name, err))
		}
		cc.steps[i] = fieldStep{plan: f, index: f.index, enc: enc, dec: dec}
	}
	pt := reflect.PointerTo(t)
	cc.marshaler = pt.Implements(tupleMarshalerType)
	cc.unmarshaler = pt.Implements(tupleUnmarshalerType)

	actual, _ := c.codecs.LoadOrStore(t, cc)
	if current, _ := c.optionsFor(t); !reflect.DeepEqual(actual.opts, current) {
		// RegisterWithOptions ran during a compile; drop the stale codec and
		// compile against the new options.
		c.codecs.Compute(t, func(old *compiledCodec, loaded bool) (*compiledCodec, bool) {
			return old, !loaded || old == actual
		})
		return c.compiled(t)
	}
	c.metrics.RecordLatency("compile", name, clock.Since(c.clock, start))
	c.logger.Debug("ormpack: compiled codec", "type", name,
		"fields", len(cc.steps), "partial", schema.partial, "generated", cc.marshaler)
	return actual, nil
}

// encodeValue runs the encoder of the record held in v.
func (cc *compiledCodec) encodeValue(c *Codec, v reflect.Value) ([]any, error) {
	if cc.marshaler {
		p := v
		if v.CanAddr() {
			p = v.Addr()
		} else {
			p = reflect.New(v.Type())
			p.Elem().Set(v)
		}
		tuple, err := p.Interface().(TupleMarshaler).MarshalTuple(c)
		if err != nil {
			return nil, serializationError(cc.schema.Name, "encode", err)
		}
		return tuple, nil
	}
	out := make([]any, len(cc.steps))
	for i := range cc.steps {
		s := &cc.steps[i]
		val, err := s.enc(c, v.FieldByIndex(s.index))
		if err != nil {
			return nil, serializationError(cc.schema.Name, "encode", fmt.Errorf("field %q: %w", s.plan.Name, err))
		}
		out[i] = val
	}
	return out, nil
}

// decodeValue builds a new *T from tuple.
func (cc *compiledCodec) decodeValue(c *Codec, tuple []any) (reflect.Value, error) {
	if len(tuple) != len(cc.steps) {
		return reflect.Value{}, serializationError(cc.schema.Name, "decode",
			fmt.Errorf("%w: %d values for %d fields", ErrMalformedTuple, len(tuple), len(cc.steps)))
	}
	p := reflect.New(cc.schema.Type)
	if cc.unmarshaler {
		if err := p.Interface().(TupleUnmarshaler).UnmarshalTuple(c, tuple); err != nil {
			return reflect.Value{}, serializationError(cc.schema.Name, "decode", err)
		}
		return p, nil
	}
	v := p.Elem()
	for i := range cc.steps {
		s := &cc.steps[i]
		if err := s.dec(c, v.FieldByIndex(s.index), tuple[i]); err != nil {
			return reflect.Value{}, serializationError(cc.schema.Name, "decode", fmt.Errorf("field %q: %w", s.plan.Name, err))
		}
	}
	return p, nil
}

// decodeRecord decodes fields as a record of type t and returns a *T.
func (c *Codec) decodeRecord(t reflect.Type, fields []any) (any, error) {
	cc, err := c.compiled(t)
	if err != nil {
		return nil, err
	}
	p, err := cc.decodeValue(c, fields)
	if err != nil {
		return nil, err
	}
	return p.Interface(), nil
}

// stepsFor selects the encode and decode steps of one field.
func (c *Codec) stepsFor(f *FieldPlan) (valueEncoder, valueDecoder, error) {
	if f.Kind == KindRelation {
		return c.relationSteps(f)
	}
	t := f.Type
	if f.Nullable {
		t = t.Elem()
	}
	var (
		enc valueEncoder
		dec valueDecoder
	)
	switch f.Kind {
	case KindDecimal:
		enc, dec = encodeDecimal, decodeDecimal
	case KindIdentifier128:
		enc, dec = encodeUUID, decodeUUID
	case KindTimestamp:
		enc, dec = encodeTimestamp, decodeTimestamp
	default:
		enc, dec = c.scalarEncoder(t), scalarDecoder(t)
	}
	if f.Nullable {
		return nullableEncoder(enc), nullableDecoder(dec), nil
	}
	return enc, dec, nil
}

func nullableEncoder(enc valueEncoder) valueEncoder {
	return func(c *Codec, fv reflect.Value) (any, error) {
		if fv.IsNil() {
			return nil, nil
		}
		return enc(c, fv.Elem())
	}
}

func nullableDecoder(dec valueDecoder) valueDecoder {
	return func(c *Codec, fv reflect.Value, slot any) error {
		if slot == nil {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		p := reflect.New(fv.Type().Elem())
		if err := dec(c, p.Elem(), slot); err != nil {
			return err
		}
		fv.Set(p)
		return nil
	}
}

// ── decimal ──────────────────────────────────────────────────────────────────

func encodeDecimal(_ *Codec, fv reflect.Value) (any, error) {
	return fv.Interface().(decimal.Decimal).String(), nil
}

func decodeDecimal(_ *Codec, fv reflect.Value, slot any) error {
	var d decimal.Decimal
	switch x := slot.(type) {
	case nil:
	case string:
		var err error
		if d, err = decimal.NewFromString(x); err != nil {
			return fmt.Errorf("%w: decimal %q", ErrMalformedTuple, x)
		}
	case decimal.Decimal:
		d = x
	case float64:
		d = decimal.NewFromFloat(x)
	default:
		n, ok := toInt64(slot)
		if !ok {
			return fmt.Errorf("%w: decimal from %T", ErrMalformedTuple, slot)
		}
		d = decimal.NewFromInt(n)
	}
	fv.Set(reflect.ValueOf(d))
	return nil
}

// ── identifier128 ────────────────────────────────────────────────────────────

func encodeUUID(_ *Codec, fv reflect.Value) (any, error) {
	id := fv.Interface().(uuid.UUID)
	b := make([]byte, 16)
	copy(b, id[:])
	return b, nil
}

func decodeUUID(_ *Codec, fv reflect.Value, slot any) error {
	var id uuid.UUID
	switch x := slot.(type) {
	case nil:
	case []byte:
		var err error
		if id, err = uuid.FromBytes(x); err != nil {
			return fmt.Errorf("%w: identifier of %d bytes", ErrMalformedTuple, len(x))
		}
	case uuid.UUID:
		id = x
	case string:
		var err error
		if id, err = uuid.Parse(x); err != nil {
			return fmt.Errorf("%w: identifier %q", ErrMalformedTuple, x)
		}
	default:
		return fmt.Errorf("%w: identifier from %T", ErrMalformedTuple, slot)
	}
	fv.Set(reflect.ValueOf(id))
	return nil
}

// ── timestamp ────────────────────────────────────────────────────────────────

func encodeTimestamp(_ *Codec, fv reflect.Value) (any, error) {
	idx, secs, err := zonedTime(fv.Interface().(time.Time))
	if err != nil {
		return nil, err
	}
	return []any{int64(idx), secs}, nil
}

func decodeTimestamp(_ *Codec, fv reflect.Value, slot any) error {
	switch x := slot.(type) {
	case nil:
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	case time.Time:
		fv.Set(reflect.ValueOf(x))
		return nil
	case []any:
		if len(x) == 2 {
			idx, okIdx := toInt64(x[0])
			secs, okSecs := toFloat64(x[1])
			if okIdx && okSecs {
				t, err := zonedTimeFrom(idx, secs)
				if err != nil {
					return err
				}
				fv.Set(reflect.ValueOf(t))
				return nil
			}
		}
	}
	return fmt.Errorf("%w: timestamp from %T", ErrMalformedTuple, slot)
}

// ── scalar ───────────────────────────────────────────────────────────────────

// scalarEncoder picks the encoding of a msgpack-native field type. Records
// embedded by value pass through so Serialize tags them; slices, arrays, maps
// and plain structs become a generic tree.
func (c *Codec) scalarEncoder(t reflect.Type) valueEncoder {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return func(_ *Codec, fv reflect.Value) (any, error) {
			return normalizeBasic(fv), nil
		}
	case reflect.Slice, reflect.Array, reflect.Map:
		return encodeComposite
	case reflect.Struct:
		if !c.isRecord(t) {
			return encodeComposite
		}
	}
	return func(_ *Codec, fv reflect.Value) (any, error) {
		return fv.Interface(), nil
	}
}

func scalarDecoder(t reflect.Type) valueDecoder {
	switch t.Kind() {
	case reflect.Bool:
		return func(_ *Codec, fv reflect.Value, slot any) error {
			switch x := slot.(type) {
			case nil:
				fv.SetBool(false)
			case bool:
				fv.SetBool(x)
			default:
				return fmt.Errorf("%w: bool from %T", ErrMalformedTuple, slot)
			}
			return nil
		}
	case reflect.String:
		return func(_ *Codec, fv reflect.Value, slot any) error {
			switch x := slot.(type) {
			case nil:
				fv.SetString("")
			case string:
				fv.SetString(x)
			case []byte:
				fv.SetString(string(x))
			default:
				return fmt.Errorf("%w: string from %T", ErrMalformedTuple, slot)
			}
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(_ *Codec, fv reflect.Value, slot any) error {
			if slot == nil {
				fv.SetInt(0)
				return nil
			}
			n, ok := toInt64(slot)
			if !ok || fv.OverflowInt(n) {
				return fmt.Errorf("%w: %v does not fit %s", ErrMalformedTuple, slot, fv.Type())
			}
			fv.SetInt(n)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(_ *Codec, fv reflect.Value, slot any) error {
			if slot == nil {
				fv.SetUint(0)
				return nil
			}
			u, ok := toUint64(slot)
			if !ok || fv.OverflowUint(u) {
				return fmt.Errorf("%w: %v does not fit %s", ErrMalformedTuple, slot, fv.Type())
			}
			fv.SetUint(u)
			return nil
		}
	case reflect.Float32, reflect.Float64:
		return func(_ *Codec, fv reflect.Value, slot any) error {
			if slot == nil {
				fv.SetFloat(0)
				return nil
			}
			f, ok := toFloat64(slot)
			if !ok {
				return fmt.Errorf("%w: float from %T", ErrMalformedTuple, slot)
			}
			fv.SetFloat(f)
			return nil
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return func(_ *Codec, fv reflect.Value, slot any) error {
				switch x := slot.(type) {
				case nil:
					fv.SetBytes(nil)
				case []byte:
					fv.SetBytes(append([]byte(nil), x...))
				case string:
					fv.SetBytes([]byte(x))
				default:
					return fmt.Errorf("%w: bytes from %T", ErrMalformedTuple, slot)
				}
				return nil
			}
		}
	}
	return decodeComposite
}

// decodeComposite resolves tags inside slot and assigns the tree to the field.
func decodeComposite(c *Codec, fv reflect.Value, slot any) error {
	u, err := c.unwrap(slot, false)
	if err != nil {
		return err
	}
	return c.assignTree(fv, u)
}
