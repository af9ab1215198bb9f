// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// relation.go - encode/decode steps for Ref[T] fields, following the field's
// expansion mode, plus the RelationLoader hook consulted when an always-inline
// relation is not materialized.

package ormpack

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// RelationLoader fetches a related record by primary key. It returns a *T (or
// T) of the requested type, or false when no such record exists.
type RelationLoader interface {
	Load(related reflect.Type, id any) (any, bool, error)
}

// relationSteps builds the steps of a relation field. The related codec is
// looked up on each call rather than captured, so types may refer to each
// other in cycles.
func (c *Codec) relationSteps(f *FieldPlan) (valueEncoder, valueDecoder, error) {
	idPlan := &FieldPlan{
		Name:     f.Name,
		Type:     f.relatedPKType,
		Kind:     f.RelatedPKKind,
		Nullable: f.relatedPKType.Kind() == reflect.Ptr,
	}
	idEnc, idDec, err := c.stepsFor(idPlan)
	if err != nil {
		return nil, nil, err
	}
	related := f.RelatedType
	mode := f.Expansion
	pkIndex := f.relatedPK

	encodeID := func(c *Codec, id any) (any, error) {
		rv, err := coerceID(id, f.relatedPKType)
		if err != nil {
			return nil, err
		}
		return idEnc(c, rv)
	}

	enc := func(c *Codec, fv reflect.Value) (any, error) {
		rel := fv.Interface().(relation)
		obj, id := rel.refObject(), rel.refID()
		if obj == nil && id == nil {
			return nil, nil
		}
		switch mode {
		case IdentifierOnly:
			if id == nil {
				id = reflect.ValueOf(obj).Elem().FieldByIndex(pkIndex).Interface()
			}
			return encodeID(c, id)
		case AlwaysInline:
			if obj == nil {
				loaded, err := c.loadRelated(related, id)
				if err != nil {
					return nil, err
				}
				obj = loaded
			}
			return c.inlineRelated(related, obj)
		default:
			if obj != nil {
				return c.inlineRelated(related, obj)
			}
			return encodeID(c, id)
		}
	}

	dec := func(c *Codec, fv reflect.Value, slot any) error {
		if slot == nil {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		setter := fv.Addr().Interface().(relationSetter)
		if nested, ok := slot.([]any); ok && mode != IdentifierOnly {
			obj, err := c.decodeRecord(related, nested)
			if err != nil {
				return err
			}
			id := reflect.ValueOf(obj).Elem().FieldByIndex(pkIndex).Interface()
			setter.setRef(id, obj)
			return nil
		}
		idv := reflect.New(f.relatedPKType).Elem()
		if err := idDec(c, idv, slot); err != nil {
			return err
		}
		setter.setRef(idv.Interface(), nil)
		return nil
	}
	return enc, dec, nil
}

// inlineRelated encodes a materialized related record as its nested tuple.
func (c *Codec) inlineRelated(related reflect.Type, obj any) (any, error) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || rv.Type() != related {
		return nil, fmt.Errorf("%w: related value %T is not %s", ErrInvalidModel, obj, related)
	}
	cc, err := c.compiled(related)
	if err != nil {
		return nil, err
	}
	return cc.encodeValue(c, rv)
}

// loadRelated asks the configured loader for a relation that must be inlined.
func (c *Codec) loadRelated(related reflect.Type, id any) (any, error) {
	name := QualifiedName(related)
	if c.loader == nil {
		return nil, fmt.Errorf("%w: %s %v (no loader configured)", ErrRelationNotLoaded, name, id)
	}
	obj, ok, err := c.loader.Load(related, id)
	if err != nil {
		return nil, fmt.Errorf("load %s %v: %w", name, id, err)
	}
	if !ok || obj == nil {
		return nil, fmt.Errorf("%w: %s %v", ErrRelationNotLoaded, name, id)
	}
	c.logger.Debug("ormpack: loaded relation", "type", name, "id", id)
	return obj, nil
}

// coerceID converts a Ref id to the related primary key's Go type.
func coerceID(id any, t reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(id)
	if rv.Type() == t {
		return rv, nil
	}
	base := t
	if base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Type() == base {
		rv = rv.Elem()
	} else if s, ok := id.(string); ok && base == uuidType {
		u, err := uuid.Parse(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: identifier %q", ErrUnsupportedValue, s)
		}
		rv = reflect.ValueOf(u)
	} else if rv.Type().ConvertibleTo(base) && convertibleKind(rv.Kind(), base.Kind()) {
		rv = rv.Convert(base)
	} else {
		return reflect.Value{}, fmt.Errorf("%w: id %T for key of type %s", ErrUnsupportedValue, id, t)
	}
	if t.Kind() == reflect.Ptr {
		p := reflect.New(base)
		p.Elem().Set(rv)
		return p, nil
	}
	return rv, nil
}

// convertibleKind excludes conversions reflect allows but that change
// meaning, such as int to string.
func convertibleKind(from, to reflect.Kind) bool {
	numeric := func(k reflect.Kind) bool {
		return k >= reflect.Int && k <= reflect.Float64
	}
	if numeric(from) || numeric(to) {
		return numeric(from) && numeric(to)
	}
	return true
}
