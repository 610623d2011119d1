package value

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapSetGetHasDelete(t *testing.T) {
	in := NewInterner()
	m := NewMap(nil)

	k1 := in.Intern("a")
	m.Set(k1, Number(1))
	v, ok := m.Get(k1)
	require.True(t, ok)
	require.Equal(t, float64(1), v.AsNumber())
	require.True(t, m.Has(k1))
	require.Equal(t, 1, m.Len())

	require.True(t, m.Delete(k1))
	require.False(t, m.Has(k1))
	require.Equal(t, 0, m.Len())
	require.False(t, m.Delete(k1), "deleting an absent key reports false")
}

func TestMapGrowsAndStaysPowerOfTwo(t *testing.T) {
	in := NewInterner()
	m := NewMap(nil)
	for i := 0; i < 100; i++ {
		m.Set(in.Intern(fmt.Sprintf("k%d", i)), Number(float64(i)))
	}
	require.Equal(t, 100, m.Len())
	require.True(t, isPowerOfTwo(len(m.entries)))
	require.LessOrEqual(t, float64(m.used), float64(len(m.entries))*mapMaxLoad+1)

	for i := 0; i < 100; i++ {
		v, ok := m.Get(in.Intern(fmt.Sprintf("k%d", i)))
		require.True(t, ok)
		require.Equal(t, float64(i), v.AsNumber())
	}
}

func TestMapTombstoneReuse(t *testing.T) {
	in := NewInterner()
	m := NewMap(nil)
	k := in.Intern("x")
	m.Set(k, Number(1))
	m.Delete(k)
	m.Set(k, Number(2))
	v, ok := m.Get(k)
	require.True(t, ok)
	require.Equal(t, float64(2), v.AsNumber())
	require.Equal(t, 1, m.Len())
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }
