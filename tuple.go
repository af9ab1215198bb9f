// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// tuple.go - the hooks used by generated code. Types with generated
// MarshalTuple/UnmarshalTuple methods skip the reflective field walk and
// drive the compiled per-field steps directly through TupleWriter and
// TupleReader.

package ormpack

import (
	"fmt"
	"reflect"
	"strings"
)

// TupleMarshaler is implemented by records with generated encoders.
type TupleMarshaler interface {
	MarshalTuple(c *Codec) ([]any, error)
}

// TupleUnmarshaler is implemented by records with generated decoders.
type TupleUnmarshaler interface {
	UnmarshalTuple(c *Codec, tuple []any) error
}

// TupleWriter builds the tuple of one record, one field at a time.
type TupleWriter struct {
	c   *Codec
	cc  *compiledCodec
	out []any
	err error
}

// TupleWriter returns a writer for record's type. Generated code passes the
// field names it was generated for; the writer refuses a schema whose fields
// differ.
func (c *Codec) TupleWriter(record any, fields ...string) (*TupleWriter, error) {
	t, err := modelType(record)
	if err != nil {
		return nil, err
	}
	cc, err := c.compiled(t)
	if err != nil {
		return nil, err
	}
	if err := cc.checkFields(fields); err != nil {
		return nil, err
	}
	return &TupleWriter{c: c, cc: cc, out: make([]any, len(cc.steps))}, nil
}

// Field encodes value into slot i. The first error is kept and later calls
// are ignored.
func (w *TupleWriter) Field(i int, value any) {
	if w.err != nil {
		return
	}
	if i < 0 || i >= len(w.cc.steps) {
		w.err = fmt.Errorf("%w: slot %d of %d", ErrMalformedTuple, i, len(w.cc.steps))
		return
	}
	s := &w.cc.steps[i]
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		rv = reflect.Zero(s.plan.Type)
	}
	if rv.Type() != s.plan.Type {
		w.err = fmt.Errorf("%w: field %q is %s, got %T", ErrInvalidModel, s.plan.Name, s.plan.Type, value)
		return
	}
	v, err := s.enc(w.c, rv)
	if err != nil {
		w.err = serializationError(w.cc.schema.Name, "encode", fmt.Errorf("field %q: %w", s.plan.Name, err))
		return
	}
	w.out[i] = v
}

// Tuple returns the finished tuple or the first error.
func (w *TupleWriter) Tuple() ([]any, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.out, nil
}

// TupleReader decodes the slots of one tuple into record fields.
type TupleReader struct {
	c     *Codec
	cc    *compiledCodec
	tuple []any
	err   error
}

// TupleReader returns a reader of tuple for record's type. fields is
// checked as in TupleWriter.
func (c *Codec) TupleReader(record any, tuple []any, fields ...string) (*TupleReader, error) {
	t, err := modelType(record)
	if err != nil {
		return nil, err
	}
	cc, err := c.compiled(t)
	if err != nil {
		return nil, err
	}
	if err := cc.checkFields(fields); err != nil {
		return nil, err
	}
	if len(tuple) != len(cc.steps) {
		return nil, serializationError(cc.schema.Name, "decode",
			fmt.Errorf("%w: %d values for %d fields", ErrMalformedTuple, len(tuple), len(cc.steps)))
	}
	return &TupleReader{c: c, cc: cc, tuple: tuple}, nil
}

// Field decodes slot i into dst, a pointer to the field.
func (r *TupleReader) Field(i int, dst any) {
	if r.err != nil {
		return
	}
	if i < 0 || i >= len(r.cc.steps) {
		r.err = fmt.Errorf("%w: slot %d of %d", ErrMalformedTuple, i, len(r.cc.steps))
		return
	}
	s := &r.cc.steps[i]
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() || dv.Elem().Type() != s.plan.Type {
		r.err = fmt.Errorf("%w: field %q needs *%s, got %T", ErrInvalidModel, s.plan.Name, s.plan.Type, dst)
		return
	}
	if err := s.dec(r.c, dv.Elem(), r.tuple[i]); err != nil {
		r.err = serializationError(r.cc.schema.Name, "decode", fmt.Errorf("field %q: %w", s.plan.Name, err))
	}
}

// Err returns the first decode error.
func (r *TupleReader) Err() error { return r.err }

// checkFields compares the field names of generated code with the schema.
// An empty list skips the check.
func (cc *compiledCodec) checkFields(fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	same := len(fields) == len(cc.schema.Fields)
	for i := 0; same && i < len(fields); i++ {
		same = fields[i] == cc.schema.Fields[i].Name
	}
	if !same {
		return serializationError(cc.schema.Name, "generated",
			fmt.Errorf("%w: generated for (%s), schema is (%s); regenerate",
				ErrInvalidOptions, strings.Join(fields, ", "), strings.Join(cc.schema.FieldNames(), ", ")))
	}
	return nil
}
