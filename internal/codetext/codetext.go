// Package codetext assembles indented Go source from lines and nested
// builders, and runs the formatted result once against an explicit set of
// bindings.
package codetext

import (
	"fmt"
	"go/format"
	"os"
	"strings"
)

// Bindings are the only values a Run callback receives from a Builder.
type Bindings map[string]any

// entry is one line, or one nested builder, at the depth it was added.
type entry struct {
	depth int
	line  string
	child *Builder
}

// Builder accumulates source lines. A line ending in "{" opens a block and a
// line starting with "}" closes one, so depth tracks Go braces on its own;
// Enter, Exit and Close adjust it by hand.
type Builder struct {
	entries  []entry
	depth    int
	indent   string
	bindings Bindings
}

// New returns an empty Builder indenting with tabs.
func New() *Builder {
	return &Builder{indent: "\t", bindings: Bindings{}}
}

// Add appends lines. Each argument is a string or a *Builder; a nested
// builder renders at the current depth.
func (b *Builder) Add(lines ...any) *Builder {
	for _, l := range lines {
		switch v := l.(type) {
		case *Builder:
			b.entries = append(b.entries, entry{depth: b.depth, child: v})
		case string:
			b.addLine(v)
		default:
			b.addLine(fmt.Sprint(v))
		}
	}
	return b
}

// Addf appends one formatted line.
func (b *Builder) Addf(format string, args ...any) *Builder {
	b.addLine(fmt.Sprintf(format, args...))
	return b
}

func (b *Builder) addLine(line string) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "}") || strings.HasPrefix(trimmed, ")") {
		b.Exit()
	}
	b.entries = append(b.entries, entry{depth: b.depth, line: line})
	if strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, "(") {
		b.Enter()
	}
}

// Enter opens a block.
func (b *Builder) Enter() *Builder {
	b.depth++
	return b
}

// Exit closes the innermost block. Depth never drops below zero.
func (b *Builder) Exit() *Builder {
	if b.depth > 0 {
		b.depth--
	}
	return b
}

// Close returns to depth zero.
func (b *Builder) Close() *Builder {
	b.depth = 0
	return b
}

// Depth returns the current block depth.
func (b *Builder) Depth() int { return b.depth }

// Bind makes value visible to Run under name.
func (b *Builder) Bind(name string, value any) *Builder {
	b.bindings[name] = value
	return b
}

// Bindings returns the bindings of b merged over those of every nested
// builder, in the order they were added.
func (b *Builder) Bindings() Bindings {
	out := Bindings{}
	for _, e := range b.entries {
		if e.child != nil {
			for k, v := range e.child.Bindings() {
				out[k] = v
			}
		}
	}
	for k, v := range b.bindings {
		out[k] = v
	}
	return out
}

// Render returns the assembled source.
func (b *Builder) Render() string {
	var sb strings.Builder
	b.render(&sb, 0)
	return sb.String()
}

func (b *Builder) render(sb *strings.Builder, base int) {
	for _, e := range b.entries {
		if e.child != nil {
			e.child.render(sb, base+e.depth)
			continue
		}
		if e.line != "" {
			sb.WriteString(strings.Repeat(b.indent, base+e.depth))
			sb.WriteString(e.line)
		}
		sb.WriteByte('\n')
	}
}

// Source renders and gofmt-formats the assembled code.
func (b *Builder) Source() ([]byte, error) {
	src, err := format.Source([]byte(b.Render()))
	if err != nil {
		return nil, fmt.Errorf("codetext: %w", err)
	}
	return src, nil
}

// Exec formats the source and calls run exactly once with it and the merged
// bindings, extra taking precedence. run sees nothing else of the caller.
func (b *Builder) Exec(run func(src []byte, env Bindings) error, extra Bindings) error {
	src, err := b.Source()
	if err != nil {
		return err
	}
	env := b.Bindings()
	for k, v := range extra {
		env[k] = v
	}
	return run(src, env)
}

// WriteFile writes the formatted source to path.
func (b *Builder) WriteFile(path string) error {
	src, err := b.Source()
	if err != nil {
		return err
	}
	return os.WriteFile(path, src, 0o644)
}
