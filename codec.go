// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// codec.go - the public Codec: registration, per-type encoders and decoders,
// the tuple surface (ToTuple/FromTuple), and the wire entry points that pack
// and unpack tagged value trees with MessagePack.

package ormpack

import (
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/AndrewDonelson/ormpack/internal/clock"
	"github.com/AndrewDonelson/ormpack/internal/codec"
)

// Codec serializes record structs and value trees. A Codec is safe for
// concurrent use; compiled per-type codecs are shared by all callers.
type Codec struct {
	registry *Registry
	loader   RelationLoader
	resolver TypeResolver
	logger   Logger
	metrics  MetricsRecorder
	clock    Clock

	codecs  *xsync.MapOf[reflect.Type, *compiledCodec]
	options *xsync.MapOf[reflect.Type, Options]
}

var _ codec.Codec = (*Codec)(nil)

// New creates a Codec.
func New(cfg Config) *Codec {
	cfg.defaults()
	return &Codec{
		registry: cfg.Registry,
		loader:   cfg.Loader,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
		codecs:   xsync.NewMapOf[reflect.Type, *compiledCodec](),
		options:  xsync.NewMapOf[reflect.Type, Options](),
	}
}

// Registry returns the registry MODEL tags are resolved against.
func (c *Codec) Registry() *Registry { return c.registry }

// Register assigns model's type its wire id.
func (c *Codec) Register(model any) (uint32, error) {
	id, err := c.registry.Register(model)
	if err != nil {
		c.logger.Error("ormpack: register failed", "error", err)
		return 0, err
	}
	c.logger.Debug("ormpack: registered type", "id", id)
	return id, nil
}

// RegisterWithOptions registers model and sets its serialization options,
// taking precedence over a SerializeOptions method. Any cached codec of the
// type is dropped.
func (c *Codec) RegisterWithOptions(model any, opts Options) (uint32, error) {
	t, err := modelType(model)
	if err != nil {
		return 0, err
	}
	c.options.Store(t, opts)
	c.codecs.Delete(t)
	return c.Register(t)
}

// Invalidate drops the cached schema and codec of model's type.
func (c *Codec) Invalidate(model any) {
	if t, err := modelType(model); err == nil {
		c.codecs.Delete(t)
	}
}

// Schema returns the field plan of model's type.
func (c *Codec) Schema(model any) (*Schema, error) {
	t, err := modelType(model)
	if err != nil {
		return nil, err
	}
	cc, err := c.compiled(t)
	if err != nil {
		return nil, err
	}
	return cc.schema, nil
}

// Encoder returns the compiled encoder of model's type.
func (c *Codec) Encoder(model any) (EncodeFunc, error) {
	t, err := modelType(model)
	if err != nil {
		return nil, err
	}
	cc, err := c.compiled(t)
	if err != nil {
		return nil, err
	}
	return func(record any) ([]any, error) {
		rv, err := recordValue(record, t)
		if err != nil {
			return nil, err
		}
		return cc.encodeValue(c, rv)
	}, nil
}

// Decoder returns the compiled decoder of model's type.
func (c *Codec) Decoder(model any) (DecodeFunc, error) {
	t, err := modelType(model)
	if err != nil {
		return nil, err
	}
	cc, err := c.compiled(t)
	if err != nil {
		return nil, err
	}
	return func(tuple []any) (any, error) {
		p, err := cc.decodeValue(c, tuple)
		if err != nil {
			return nil, err
		}
		return p.Interface(), nil
	}, nil
}

// ToTuple returns the positional tuple of record.
func (c *Codec) ToTuple(record any) ([]any, error) {
	t, err := modelType(record)
	if err != nil {
		return nil, err
	}
	rv, err := recordValue(record, t)
	if err != nil {
		return nil, err
	}
	cc, err := c.compiled(t)
	if err != nil {
		return nil, err
	}
	return cc.encodeValue(c, rv)
}

// FromTuple decodes tuple into dst, a pointer to a record. Fields left out of
// the schema are reset to their zero values.
func (c *Codec) FromTuple(dst any, tuple []any) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() || dv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: FromTuple needs a non-nil pointer to a struct, got %T", ErrInvalidModel, dst)
	}
	cc, err := c.compiled(dv.Elem().Type())
	if err != nil {
		return err
	}
	p, err := cc.decodeValue(c, tuple)
	if err != nil {
		return err
	}
	dv.Elem().Set(p.Elem())
	return nil
}

// FromTuple decodes tuple into a new *T.
func FromTuple[T any](c *Codec, tuple []any) (*T, error) {
	out := new(T)
	if err := c.FromTuple(out, tuple); err != nil {
		return nil, err
	}
	return out, nil
}

// Serialize packs v. Records anywhere in v are written as MODEL tags.
func (c *Codec) Serialize(v any) ([]byte, error) {
	start := c.clock.Now()
	label := typeLabel(v)
	tree, err := c.wrap(v)
	if err != nil {
		c.metrics.RecordError("serialize", label)
		return nil, err
	}
	b, err := codec.Pack(tree)
	if err != nil {
		c.metrics.RecordError("serialize", label)
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	c.metrics.RecordLatency("serialize", label, clock.Since(c.clock, start))
	return b, nil
}

// Deserialize unpacks data and resolves every tagged value in it. Records
// come back as *T.
func (c *Codec) Deserialize(data []byte) (any, error) {
	return c.deserialize(data, false)
}

// DeserializeRaw is Deserialize with MODEL tags left as RawRecord values, so
// payloads can be inspected without the record types.
func (c *Codec) DeserializeRaw(data []byte) (any, error) {
	return c.deserialize(data, true)
}

func (c *Codec) deserialize(data []byte, raw bool) (any, error) {
	start := c.clock.Now()
	tree, err := codec.Unpack(data)
	if err != nil {
		c.metrics.RecordError("deserialize", "")
		return nil, fmt.Errorf("%w: %v", ErrMalformedTuple, err)
	}
	v, err := c.unwrap(normalize(tree), raw)
	if err != nil {
		c.metrics.RecordError("deserialize", "")
		return nil, err
	}
	c.metrics.RecordLatency("deserialize", typeLabel(v), clock.Since(c.clock, start))
	return v, nil
}

// MarshalRecord packs the bare tuple of record, without the MODEL envelope.
// The reader must know the type.
func (c *Codec) MarshalRecord(record any) ([]byte, error) {
	tuple, err := c.ToTuple(record)
	if err != nil {
		return nil, err
	}
	return c.Serialize(tuple)
}

// UnmarshalRecord decodes a MarshalRecord payload into dst.
func (c *Codec) UnmarshalRecord(data []byte, dst any) error {
	tree, err := codec.Unpack(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTuple, err)
	}
	tuple, ok := normalize(tree).([]any)
	if !ok {
		return fmt.Errorf("%w: record payload is %T, not a tuple", ErrMalformedTuple, tree)
	}
	return c.FromTuple(dst, tuple)
}

// Marshal implements the codec interface used by the storage adapters.
func (c *Codec) Marshal(v any) ([]byte, error) { return c.Serialize(v) }

// Unmarshal deserializes data and stores the result in dst, which must be a
// pointer to the decoded value's type (or to the record a *T points to).
func (c *Codec) Unmarshal(data []byte, dst any) error {
	v, err := c.Deserialize(data)
	if err != nil {
		return err
	}
	return assign(dst, v)
}

// Name returns "ormpack".
func (c *Codec) Name() string { return "ormpack" }

// resolve maps a MODEL key to a record type. Unknown names go to the
// configured resolver, then to the types this codec has compiled or been
// given options for; hits are cached in the registry.
func (c *Codec) resolve(key any) (reflect.Type, error) {
	t, err := c.registry.Resolve(key)
	if err == nil {
		return t, nil
	}
	name, ok := key.(string)
	if !ok {
		return nil, err
	}
	if c.resolver != nil {
		if rt, ok := c.resolver(name); ok {
			if rt, rerr := modelType(rt); rerr == nil {
				c.registry.alias(name, rt)
				return rt, nil
			}
		}
	}
	var found reflect.Type
	c.codecs.Range(func(t reflect.Type, cc *compiledCodec) bool {
		if cc.schema.Name == name {
			found = t
			return false
		}
		return true
	})
	if found == nil {
		c.options.Range(func(t reflect.Type, _ Options) bool {
			if QualifiedName(t) == name {
				found = t
				return false
			}
			return true
		})
	}
	if found == nil {
		return nil, err
	}
	c.registry.alias(name, found)
	return found, nil
}

// recordValue returns the struct value of record, checking it is a t.
func recordValue(record any, t reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(record)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %s", ErrInvalidModel, t)
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Type() != t {
		return reflect.Value{}, fmt.Errorf("%w: %T is not %s", ErrInvalidModel, record, t)
	}
	return rv, nil
}

// assign stores v in the value dst points to.
func assign(dst any, v any) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("%w: destination must be a non-nil pointer, got %T", ErrUnsupportedValue, dst)
	}
	target := dv.Elem()
	if v == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(target.Type()):
		target.Set(rv)
	case rv.Kind() == reflect.Ptr && rv.Elem().Type().AssignableTo(target.Type()):
		target.Set(rv.Elem())
	default:
		return fmt.Errorf("%w: cannot store %T in %s", ErrUnsupportedValue, v, target.Type())
	}
	return nil
}

// typeLabel names a value for metrics: the qualified name of records, empty
// for everything else.
func typeLabel(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t.PkgPath() == "" {
		return ""
	}
	return QualifiedName(t)
}
