package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type dummyMethod struct{ hdr GCHeader }

func (d *dummyMethod) Kind() Kind                   { return KindNative }
func (d *dummyMethod) Header() *GCHeader            { return &d.hdr }
func (d *dummyMethod) Inspect() string              { return "<dummy>" }
func (d *dummyMethod) Children(dst []Value) []Value { return dst }

func TestClassFindMethodWalksSuperchain(t *testing.T) {
	in := NewInterner()
	base := NewClass(in.Intern("Base"), nil)
	baseMethod := &dummyMethod{}
	base.Methods["greet"] = baseMethod

	derived := NewClass(in.Intern("Derived"), base)

	m, ok := derived.FindMethod("greet")
	require.True(t, ok)
	require.Same(t, baseMethod, m)

	_, ok = derived.FindMethod("missing")
	require.False(t, ok)
}

func TestInstanceFieldsAreIndependentPerInstance(t *testing.T) {
	in := NewInterner()
	class := NewClass(in.Intern("Point"), nil)
	a := NewInstance(nil, class)
	b := NewInstance(nil, class)

	a.Fields.Set(in.Intern("x"), Number(1))
	require.False(t, b.Fields.Has(in.Intern("x")), "instances of the same class do not share field storage")
}

func TestEnumCtorInspect(t *testing.T) {
	in := NewInterner()
	ctor := NewEnumCtor(in.Intern("Option"), in.Intern("Some"), 1)
	require.Equal(t, "<Option.Some>", ctor.Inspect())
}
