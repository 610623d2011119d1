package gc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erkao-lang/erkao/internal/value"
)

func noRoots(dst []value.Value) []value.Value { return dst }

func TestMinorCycleFreesUnreachableYoung(t *testing.T) {
	in := value.NewInterner()
	c := New(in, noRoots, Config{MinThreshold: 1})

	arr := value.NewArray(c, nil)
	c.Register(arr)
	require.Len(t, c.young, 1)

	c.MinorCycle()
	require.Empty(t, c.young, "an array unreachable from roots is freed on the next minor cycle")
	require.Equal(t, 1, c.Stats.Freed)
}

func TestMinorCyclePromotesAfterSurvivingTwice(t *testing.T) {
	in := value.NewInterner()
	arr := value.NewArray(nil, nil)
	roots := func(dst []value.Value) []value.Value {
		return append(dst, value.FromObject(arr))
	}
	c := New(in, roots, Config{MinThreshold: 1, PromotionAge: 2})
	c.Register(arr)

	c.MinorCycle()
	require.Equal(t, value.Young, arr.Header().Generation)
	require.Equal(t, uint8(1), arr.Header().Age)

	c.MinorCycle()
	require.Equal(t, value.Old, arr.Header().Generation, "age reaching the promotion threshold moves the object to old")
	require.Equal(t, 1, c.Stats.Promoted)
}

func TestWriteBarrierRemembersOldToYoungEdge(t *testing.T) {
	in := value.NewInterner()
	c := New(in, noRoots, Config{MinThreshold: 1})

	parent := value.NewArray(c, []value.Value{value.Number(0)})
	parent.Header().Generation = value.Old
	child := value.NewArray(c, nil)

	c.Barrier(parent, value.FromObject(child))
	require.True(t, parent.Header().Remembered)
	require.Contains(t, c.Remembered(), value.Object(parent))
}

func TestMajorCycleSweepsUnreachableAcrossBothGenerations(t *testing.T) {
	in := value.NewInterner()
	live := value.NewArray(nil, nil)
	roots := func(dst []value.Value) []value.Value {
		return append(dst, value.FromObject(live))
	}
	c := New(in, roots, Config{MinThreshold: 1})

	dead := value.NewArray(nil, nil)
	dead.Header().Generation = value.Old
	c.Register(live)
	c.Register(dead)

	c.MajorCycle()
	require.Len(t, c.old, 0, "dead old object is swept")
	require.Len(t, c.young, 1, "live young object survives")
}

func TestMajorCycleSweepsUnreferencedInternedString(t *testing.T) {
	in := value.NewInterner()
	c := New(in, noRoots, Config{MinThreshold: 1})
	s := in.Intern("orphan")
	c.Register(s)
	require.Equal(t, 1, in.Len())

	c.MajorCycle()
	require.Equal(t, 0, in.Len(), "a string reachable only from the intern table is reclaimed")
}
