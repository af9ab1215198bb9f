package ormpack_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewDonelson/ormpack"
)

func TestGenerate(t *testing.T) {
	c := ormpack.New(ormpack.Config{})
	src, err := c.Generate("", &Payment{}, &Book{}, &Customer{})
	require.NoError(t, err)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "gen.go", src, parser.ParseComments)
	require.NoError(t, err, string(src))
	assert.Equal(t, "ormpack_test", f.Name.Name)
	require.Len(t, f.Imports, 1)
	assert.Equal(t, `"github.com/AndrewDonelson/ormpack"`, f.Imports[0].Path.Value)

	var methods []string
	for _, d := range f.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if !ok || fn.Recv == nil {
			continue
		}
		recv := fn.Recv.List[0].Type.(*ast.StarExpr).X.(*ast.Ident).Name
		methods = append(methods, recv+"."+fn.Name.Name)
	}
	assert.Equal(t, []string{
		"Payment.MarshalTuple", "Payment.UnmarshalTuple",
		"Book.MarshalTuple", "Book.UnmarshalTuple",
		"Customer.MarshalTuple", "Customer.UnmarshalTuple",
	}, methods)

	text := string(src)
	assert.True(t, strings.HasPrefix(text, "// Code generated by ormpack. DO NOT EDIT."))
	assert.Contains(t, text, "// MarshalTuple encodes Payment as (id, name, amount, when).")
	assert.Contains(t, text, "\tw.Field(0, m.Base.ID)\n")
	assert.Contains(t, text, "\tr.Field(2, &m.Email)\n")
	assert.Contains(t, text, `w, err := c.TupleWriter(m, "id", "name", "amount", "when")`)
	assert.Contains(t, text, `r, err := c.TupleReader(m, tuple, "id", "name", "amount", "when")`)
	assert.NotContains(t, text, "Password")
}

func TestGenerate_PackageName(t *testing.T) {
	c := ormpack.New(ormpack.Config{})
	src, err := c.Generate("models", &Author{})
	require.NoError(t, err)
	assert.Contains(t, string(src), "package models\n")
}

func TestGenerate_Errors(t *testing.T) {
	c := ormpack.New(ormpack.Config{})

	_, err := c.Generate("")
	assert.ErrorIs(t, err, ormpack.ErrInvalidModel)

	_, err = c.Generate("", &Author{}, ormpack.RawRecord{})
	assert.ErrorIs(t, err, ormpack.ErrInvalidModel)

	_, err = c.Generate("", &Plain{})
	assert.ErrorIs(t, err, ormpack.ErrMissingSchemaConfiguration)

	_, err = c.Generate("", 3)
	assert.ErrorIs(t, err, ormpack.ErrInvalidModel)
}
