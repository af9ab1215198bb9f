// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// schema.go - the schema introspector: derives a record type's ordered field
// plan from its struct layout and serialization options. Embedded structs are
// flattened, `ormpack` struct tags mark the primary key, renames and
// exclusions, and each field is classified into one of five encode kinds.

package ormpack

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Options is the declarative serialization configuration of a record type.
type Options struct {
	// Fields selects the serialized fields by name, in wire order. nil means
	// every field in declaration order. The primary key is always included.
	Fields []string

	// LoadRelated inlines every relation, loading it when necessary.
	LoadRelated bool

	// PKOnly names relation fields that are always written as bare ids.
	PKOnly []string
}

// Serializable is implemented by record types that declare their options.
type Serializable interface {
	SerializeOptions() Options
}

// FieldKind selects the encode rule of a field.
type FieldKind int

const (
	KindScalar        FieldKind = iota // msgpack-native value
	KindDecimal                        // shopspring decimal.Decimal
	KindTimestamp                      // time.Time in a tabled zone
	KindIdentifier128                  // uuid.UUID
	KindRelation                       // Ref[T]
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindDecimal:
		return "decimal"
	case KindTimestamp:
		return "timestamp"
	case KindIdentifier128:
		return "identifier128"
	case KindRelation:
		return "relation"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// ExpansionMode controls how a relation field is written.
type ExpansionMode int

const (
	ExpandNone     ExpansionMode = iota // not a relation
	InlineIfLoaded                      // nested tuple when materialized, else the id
	IdentifierOnly                      // always the id
	AlwaysInline                        // always the nested tuple
)

func (m ExpansionMode) String() string {
	switch m {
	case ExpandNone:
		return "none"
	case InlineIfLoaded:
		return "inline-if-loaded"
	case IdentifierOnly:
		return "identifier-only"
	case AlwaysInline:
		return "always-inline"
	default:
		return fmt.Sprintf("ExpansionMode(%d)", int(m))
	}
}

// FieldPlan describes one serialized field.
type FieldPlan struct {
	Name     string
	GoPath   []string // Go field names from the record down to the field
	Type     reflect.Type
	Kind     FieldKind
	Nullable bool
	PK       bool

	// Relation fields only.
	RelatedType   reflect.Type
	RelatedPKKind FieldKind
	Expansion     ExpansionMode

	index         []int
	relatedPK     []int
	relatedPKType reflect.Type
}

// Schema is the ordered field plan of one record type.
type Schema struct {
	Type    reflect.Type
	Name    string // qualified name
	Options Options
	Fields  []FieldPlan

	pk      int // position of the primary key in Fields
	pkIndex []int
	partial bool
}

// FieldNames returns the serialized field names in wire order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Partial reports whether the options leave some fields out. Records decoded
// through a partial schema are incomplete copies.
func (s *Schema) Partial() bool { return s.partial }

// PrimaryKey returns the plan of the primary key field.
func (s *Schema) PrimaryKey() FieldPlan { return s.Fields[s.pk] }

// ID returns the primary key value of record, a *T or T of the schema's type.
func (s *Schema) ID(record any) (any, error) {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil %s", ErrInvalidModel, s.Name)
		}
		v = v.Elem()
	}
	if v.Type() != s.Type {
		return nil, fmt.Errorf("%w: %s is not %s", ErrInvalidModel, v.Type(), s.Name)
	}
	return v.FieldByIndex(s.pkIndex).Interface(), nil
}

var (
	decimalType      = reflect.TypeOf(decimal.Decimal{})
	uuidType         = reflect.TypeOf(uuid.UUID{})
	timeType         = reflect.TypeOf(time.Time{})
	relationType     = reflect.TypeOf((*relation)(nil)).Elem()
	serializableType = reflect.TypeOf((*Serializable)(nil)).Elem()
)

// modelType returns the struct type behind a value, pointer or reflect.Type.
func modelType(model any) (reflect.Type, error) {
	if model == nil {
		return nil, ErrInvalidModel
	}
	t, ok := model.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(model)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidModel, t)
	}
	return t, nil
}

// structField is one flattened exported field of a record struct.
type structField struct {
	name   string
	goPath []string
	index  []int
	typ    reflect.Type
	pk     bool
}

// structFields flattens t the same way every time: embedded non-pointer
// structs first-to-last in declaration order, unexported and `ormpack:"-"`
// fields dropped. The primary key is the tagged field, else a field named ID.
func structFields(t reflect.Type) ([]structField, int, error) {
	var fields []structField
	flattenStruct(t, nil, nil, &fields)

	pk := -1
	for i, f := range fields {
		if f.pk {
			if pk >= 0 {
				return nil, -1, fmt.Errorf("%w: %s has more than one primary_key field", ErrInvalidModel, t)
			}
			pk = i
		}
	}
	if pk < 0 {
		for i, f := range fields {
			if len(f.goPath) > 0 && f.goPath[len(f.goPath)-1] == "ID" {
				fields[i].pk = true
				pk = i
				break
			}
		}
	}
	if pk < 0 {
		return nil, -1, fmt.Errorf("%w: %s", ErrNoPrimaryKey, t)
	}
	return fields, pk, nil
}

func flattenStruct(t reflect.Type, index []int, path []string, out *[]structField) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		idx := append(append([]int(nil), index...), i)
		goPath := append(append([]string(nil), path...), f.Name)

		tag := f.Tag.Get("ormpack")
		if tag == "-" {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && !isExtensionType(f.Type) {
			flattenStruct(f.Type, idx, goPath, out)
			continue
		}
		if !f.IsExported() {
			continue
		}
		sf := structField{
			name:   ToSnakeCase(f.Name),
			goPath: goPath,
			index:  idx,
			typ:    f.Type,
		}
		for _, part := range strings.Split(tag, ",") {
			part = strings.TrimSpace(part)
			switch {
			case part == "primary_key", part == "pk":
				sf.pk = true
			case strings.HasPrefix(part, "name:"):
				sf.name = strings.TrimPrefix(part, "name:")
			}
		}
		*out = append(*out, sf)
	}
}

func isExtensionType(t reflect.Type) bool {
	return t == decimalType || t == timeType || t.Implements(relationType)
}

// classify returns the encode kind of a field type. Pointers make a field
// nullable; relations are always nullable.
func classify(t reflect.Type) (FieldKind, bool, error) {
	nullable := false
	if t.Kind() == reflect.Ptr {
		nullable = true
		t = t.Elem()
		if t.Kind() == reflect.Ptr {
			return 0, false, fmt.Errorf("%w: pointer to pointer %s", ErrUnsupportedValue, t)
		}
		if t.Implements(relationType) {
			return 0, false, fmt.Errorf("%w: relation fields are declared as Ref[T], not *Ref[T]", ErrUnsupportedValue)
		}
	}
	switch {
	case t == decimalType:
		return KindDecimal, nullable, nil
	case t == uuidType:
		return KindIdentifier128, nullable, nil
	case t == timeType:
		return KindTimestamp, nullable, nil
	case t.Implements(relationType):
		return KindRelation, true, nil
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Interface:
		return KindScalar, nullable, nil
	default:
		return 0, false, fmt.Errorf("%w: kind of %s cannot be determined", ErrUnsupportedValue, t)
	}
}

// optionsFor returns the options of t: the ones given to RegisterWithOptions,
// else the type's SerializeOptions method.
func (c *Codec) optionsFor(t reflect.Type) (Options, bool) {
	if o, ok := c.options.Load(t); ok {
		return o, true
	}
	if reflect.PointerTo(t).Implements(serializableType) {
		return reflect.New(t).Interface().(Serializable).SerializeOptions(), true
	}
	return Options{}, false
}

// isRecord reports whether values of t are serialized as MODEL tags: the
// type declares options or was registered.
func (c *Codec) isRecord(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	if _, ok := c.optionsFor(t); ok {
		return true
	}
	_, ok := c.registry.ID(t)
	return ok
}

// introspect computes the field plan of t.
func (c *Codec) introspect(t reflect.Type) (*Schema, error) {
	opts, ok := c.optionsFor(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingSchemaConfiguration, t)
	}
	fields, pk, err := structFields(t)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int, len(fields))
	for i, f := range fields {
		if _, dup := byName[f.name]; dup {
			return nil, fmt.Errorf("%w: %s declares field %q twice", ErrInvalidModel, t, f.name)
		}
		byName[f.name] = i
	}

	order := make([]int, 0, len(fields))
	if opts.Fields == nil {
		for i := range fields {
			order = append(order, i)
		}
	} else {
		seen := make(map[int]bool, len(opts.Fields)+1)
		pkListed := false
		for _, name := range opts.Fields {
			if i, ok := byName[name]; ok && i == pk {
				pkListed = true
			}
		}
		if !pkListed {
			order = append(order, pk)
			seen[pk] = true
		}
		for _, name := range opts.Fields {
			i, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, t, name)
			}
			if seen[i] {
				continue
			}
			seen[i] = true
			order = append(order, i)
		}
	}

	pkOnly := make(map[string]bool, len(opts.PKOnly))
	for _, name := range opts.PKOnly {
		i, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, t, name)
		}
		if !fields[i].typ.Implements(relationType) {
			return nil, fmt.Errorf("%w: pk_only field %q of %s is not a relation", ErrInvalidOptions, name, t)
		}
		pkOnly[name] = true
	}

	s := &Schema{
		Type:    t,
		Name:    QualifiedName(t),
		Options: opts,
		Fields:  make([]FieldPlan, 0, len(order)),
		pkIndex: fields[pk].index,
		partial: len(order) < len(fields),
	}
	for _, i := range order {
		f := fields[i]
		kind, nullable, err := classify(f.typ)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		fp := FieldPlan{
			Name:     f.name,
			GoPath:   f.goPath,
			Type:     f.typ,
			Kind:     kind,
			Nullable: nullable,
			PK:       f.pk,
			index:    f.index,
		}
		if kind == KindRelation {
			if err := c.planRelation(&fp, pkOnly[f.name], opts.LoadRelated); err != nil {
				return nil, fmt.Errorf("field %q: %w", f.name, err)
			}
		}
		if f.pk {
			s.pk = len(s.Fields)
		}
		s.Fields = append(s.Fields, fp)
	}
	return s, nil
}

// planRelation picks the expansion mode of a relation field. It inspects only
// the related type's layout, never its full schema, so cyclic relations plan
// without recursion.
func (c *Codec) planRelation(fp *FieldPlan, pkOnly, loadRelated bool) error {
	rel := reflect.Zero(fp.Type).Interface().(relation)
	related := rel.refTarget()
	if related.Kind() != reflect.Struct {
		return fmt.Errorf("%w: Ref target %s is not a struct", ErrInvalidModel, related)
	}
	fp.RelatedType = related

	fields, pk, err := structFields(related)
	if err != nil {
		return err
	}
	pkKind, _, err := classify(fields[pk].typ)
	if err != nil {
		return err
	}
	if pkKind == KindRelation {
		return fmt.Errorf("%w: primary key of %s is a relation", ErrInvalidModel, related)
	}
	fp.RelatedPKKind = pkKind
	fp.relatedPK = fields[pk].index
	fp.relatedPKType = fields[pk].typ

	_, serializable := c.optionsFor(related)
	switch {
	case pkOnly || !serializable:
		fp.Expansion = IdentifierOnly
	case loadRelated:
		fp.Expansion = AlwaysInline
	default:
		fp.Expansion = InlineIfLoaded
	}
	// A timestamp id is itself a pair and cannot be told apart from a nested
	// tuple, so such relations must be written as ids only.
	if pkKind == KindTimestamp && fp.Expansion != IdentifierOnly {
		return fmt.Errorf("%w: %s has a timestamp primary key; list the field in PKOnly", ErrInvalidOptions, related)
	}
	return nil
}

// ToSnakeCase converts CamelCase to snake_case. Runs of capitals are kept
// together, so "ID" becomes "id" and "HTTPStatus" becomes "http_status".
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') || ((prev >= 'A' && prev <= 'Z') && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r + 32)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
