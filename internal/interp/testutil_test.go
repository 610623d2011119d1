package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/compiler"
	"github.com/erkao-lang/erkao/internal/config"
	"github.com/erkao-lang/erkao/internal/lexer"
	"github.com/erkao-lang/erkao/internal/value"
)

// compile lexes and compiles src into a top-level Function, the same
// path a host wires together from internal/lexer and internal/compiler
// before handing the result to Interpret.
func compile(t *testing.T, in *value.Interner, src string) *chunk.Function {
	t.Helper()
	toks := lexer.Tokenize(src)
	c := compiler.New(toks, in, "<test>", false)
	ch, errs := c.Compile()
	require.Empty(t, errs, "compile errors for %q", src)
	return chunk.NewFunction(nil, nil, 0, ch)
}

// run compiles and interprets src against a fresh VM, returning the
// script's final value (the operand an explicit top-level `return`
// leaves behind).
func run(t *testing.T, src string) (value.Value, *VM) {
	t.Helper()
	in := value.NewInterner()
	fn := compile(t, in, src)
	vm := New(in, config.Default(), nil, nil)
	result, err := Interpret(vm, fn)
	require.NoError(t, err)
	return result, vm
}

// runErr compiles and interprets src, expecting an uncaught exception.
func runErr(t *testing.T, src string) *ThrownValue {
	t.Helper()
	in := value.NewInterner()
	fn := compile(t, in, src)
	vm := New(in, config.Default(), nil, nil)
	_, err := Interpret(vm, fn)
	require.Error(t, err)
	tv, ok := err.(*ThrownValue)
	require.True(t, ok, "expected a *ThrownValue, got %T", err)
	return tv
}
