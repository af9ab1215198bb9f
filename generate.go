// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// generate.go - compile-time specialization: emits MarshalTuple and
// UnmarshalTuple methods for record types so the encoder and decoder read
// and write fields directly instead of walking them through reflection.

package ormpack

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/AndrewDonelson/ormpack/internal/codetext"
)

const importPath = "github.com/AndrewDonelson/ormpack"

// Generate returns gofmt-formatted Go source declaring MarshalTuple and
// UnmarshalTuple for each model. All models must live in one package; pkg
// names it, defaulting to the last element of the import path.
func (c *Codec) Generate(pkg string, models ...any) ([]byte, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no models to generate", ErrInvalidModel)
	}
	var (
		pkgPath string
		bodies  []*codetext.Builder
	)
	for _, m := range models {
		t, err := modelType(m)
		if err != nil {
			return nil, err
		}
		if pkgPath == "" {
			pkgPath = t.PkgPath()
		} else if t.PkgPath() != pkgPath {
			return nil, fmt.Errorf("%w: %s is not in package %s", ErrInvalidModel, t, pkgPath)
		}
		s, err := c.Schema(t)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, generateMethods(s))
	}
	if pkg == "" {
		pkg = path.Base(pkgPath)
	}

	b := codetext.New()
	b.Add("// Code generated by ormpack. DO NOT EDIT.", "")
	b.Addf("package %s", pkg)
	b.Add("")
	b.Addf("import %q", importPath)
	for _, body := range bodies {
		b.Add("", body)
	}

	var out []byte
	err := b.Exec(func(src []byte, env codetext.Bindings) error {
		*env["out"].(*[]byte) = src
		return nil
	}, codetext.Bindings{"out": &out})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("ormpack: generated tuple methods", "package", pkg, "types", len(models))
	return out, nil
}

func generateMethods(s *Schema) *codetext.Builder {
	name := s.Type.Name()
	b := codetext.New().Bind(name, s)
	quoted := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		quoted[i] = strconv.Quote(f.Name)
	}
	fields := strings.Join(quoted, ", ")

	b.Addf("// MarshalTuple encodes %s as (%s).", name, strings.Join(s.FieldNames(), ", "))
	b.Addf("func (m *%s) MarshalTuple(c *ormpack.Codec) ([]any, error) {", name)
	b.Addf("w, err := c.TupleWriter(m, %s)", fields)
	b.Add("if err != nil {", "return nil, err", "}")
	for i, f := range s.Fields {
		b.Addf("w.Field(%d, m.%s)", i, strings.Join(f.GoPath, "."))
	}
	b.Add("return w.Tuple()", "}", "")

	b.Addf("// UnmarshalTuple decodes a tuple written by MarshalTuple into m.")
	b.Addf("func (m *%s) UnmarshalTuple(c *ormpack.Codec, tuple []any) error {", name)
	b.Addf("r, err := c.TupleReader(m, tuple, %s)", fields)
	b.Add("if err != nil {", "return err", "}")
	for i, f := range s.Fields {
		b.Addf("r.Field(%d, &m.%s)", i, strings.Join(f.GoPath, "."))
	}
	b.Add("return r.Err()", "}")
	return b
}
