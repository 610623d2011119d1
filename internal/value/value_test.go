package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null(), false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero", Number(0), true},
		{"negative", Number(-1), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.v.Truthy())
		})
	}
}

func TestValueEqual(t *testing.T) {
	in := NewInterner()
	a := FromObject(in.Intern("hi"))
	b := FromObject(in.Intern("hi"))
	require.True(t, a.Equal(b), "interned strings with equal content must compare equal")
	require.Same(t, a.AsObject(), b.AsObject(), "interning must return the same pointer for equal content")

	require.True(t, Number(1).Equal(Number(1)))
	require.False(t, Number(1).Equal(Number(2)))
	require.False(t, Number(1).Equal(Bool(true)), "cross-tag comparisons are never equal")
	require.True(t, Null().Equal(Null()))
}

func TestValueInspect(t *testing.T) {
	require.Equal(t, "null", Null().Inspect())
	require.Equal(t, "true", Bool(true).Inspect())
	require.Equal(t, "3", Number(3).Inspect())
	require.Equal(t, "3.5", Number(3.5).Inspect())
}
