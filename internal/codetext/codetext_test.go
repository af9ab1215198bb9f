package codetext_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewDonelson/ormpack/internal/codetext"
)

func TestRender_BraceDepth(t *testing.T) {
	b := codetext.New()
	b.Add("func f(x int) int {", "if x > 0 {", "return x", "} else {", "return -x", "}", "}")

	assert.Equal(t, "func f(x int) int {\n\tif x > 0 {\n\t\treturn x\n\t} else {\n\t\treturn -x\n\t}\n}\n", b.Render())
	assert.Equal(t, 0, b.Depth())
}

func TestRender_ParenBlock(t *testing.T) {
	b := codetext.New()
	b.Add("import (", `"fmt"`, `"os"`, ")")
	assert.Equal(t, "import (\n\t\"fmt\"\n\t\"os\"\n)\n", b.Render())
}

func TestRender_BlankLinesUnindented(t *testing.T) {
	b := codetext.New()
	b.Add("{", "a", "", "b", "}")
	assert.Equal(t, "{\n\ta\n\n\tb\n}\n", b.Render())
}

func TestEnterExitClose(t *testing.T) {
	b := codetext.New()
	b.Enter().Enter()
	assert.Equal(t, 2, b.Depth())
	b.Exit()
	assert.Equal(t, 1, b.Depth())
	b.Close()
	assert.Equal(t, 0, b.Depth())
	b.Exit()
	assert.Equal(t, 0, b.Depth(), "depth never goes negative")
}

func TestNestedBuilder(t *testing.T) {
	inner := codetext.New().Add("x := 1", "_ = x")
	outer := codetext.New()
	outer.Add("func f() {", inner, "}")
	assert.Equal(t, "func f() {\n\tx := 1\n\t_ = x\n}\n", outer.Render())
}

func TestAddf(t *testing.T) {
	b := codetext.New().Addf("var %s = %d", "n", 3)
	assert.Equal(t, "var n = 3\n", b.Render())
}

func TestBindings_Merged(t *testing.T) {
	inner := codetext.New().Bind("a", 1).Bind("b", 2)
	outer := codetext.New().Bind("b", 3)
	outer.Add(inner)

	assert.Equal(t, codetext.Bindings{"a": 1, "b": 3}, outer.Bindings())
}

func TestSource_Formats(t *testing.T) {
	b := codetext.New()
	b.Add("package p", "", "func f() int {", "return   1", "}")
	src, err := b.Source()
	require.NoError(t, err)
	assert.Equal(t, "package p\n\nfunc f() int {\n\treturn 1\n}\n", string(src))
}

func TestSource_Invalid(t *testing.T) {
	b := codetext.New().Add("package p", "func {")
	_, err := b.Source()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "codetext:")
}

func TestExec_RunsOnceWithBindings(t *testing.T) {
	b := codetext.New().Bind("name", "inner").Bind("shadowed", 1)
	b.Add("package p")

	calls := 0
	err := b.Exec(func(src []byte, env codetext.Bindings) error {
		calls++
		assert.Equal(t, "package p\n", string(src))
		assert.Equal(t, codetext.Bindings{"name": "inner", "shadowed": 2, "extra": true}, env)
		return nil
	}, codetext.Bindings{"shadowed": 2, "extra": true})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExec_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	err := codetext.New().Add("package p").Exec(func([]byte, codetext.Bindings) error { return boom }, nil)
	assert.ErrorIs(t, err, boom)

	called := false
	err = codetext.New().Add("package").Exec(func([]byte, codetext.Bindings) error {
		called = true
		return nil
	}, nil)
	assert.Error(t, err)
	assert.False(t, called)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.go")
	require.NoError(t, codetext.New().Add("package p").WriteFile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package p\n", string(b))
}
