package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvironmentChainedResolution(t *testing.T) {
	outer := NewEnvironment(nil)
	outer.Define("x", Number(1), false)
	inner := NewEnvironment(outer)

	v, ok := inner.Get("x")
	require.True(t, ok, "lookups walk outward through enclosing scopes")
	require.Equal(t, float64(1), v.AsNumber())

	inner.Define("x", Number(2), false)
	v, _ = inner.Get("x")
	require.Equal(t, float64(2), v.AsNumber(), "inner definition shadows outer")

	outerV, _ := outer.Get("x")
	require.Equal(t, float64(1), outerV.AsNumber(), "shadowing does not mutate the outer binding")
}

func TestEnvironmentAssignRespectsConst(t *testing.T) {
	env := NewEnvironment(nil)
	env.Define("c", Number(1), true)

	ok, isConst := env.Assign("c", Number(2))
	require.True(t, ok)
	require.True(t, isConst, "assigning to a const binding is reported, not silently applied")

	v, _ := env.Get("c")
	require.Equal(t, float64(1), v.AsNumber(), "const value is unchanged")

	ok, _ = env.Assign("missing", Number(1))
	require.False(t, ok)
}
