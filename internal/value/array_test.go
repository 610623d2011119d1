package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingMutator struct {
	barriers []Value
	bytes    int
}

func (r *recordingMutator) Barrier(holder Object, v Value) { r.barriers = append(r.barriers, v) }
func (r *recordingMutator) AccountBytes(delta int)         { r.bytes += delta }

func TestArrayAppendAndBarrier(t *testing.T) {
	mu := &recordingMutator{}
	a := NewArray(mu, nil)
	a.Append(Number(1))
	a.Append(Number(2))
	require.Equal(t, 2, a.Len())
	require.Len(t, mu.barriers, 2, "every append fires the write barrier once")

	v, err := a.Get(0)
	require.NoError(t, err)
	require.Equal(t, float64(1), v.AsNumber())

	_, err = a.Get(5)
	require.Error(t, err)
}

func TestArraySetOutOfBounds(t *testing.T) {
	a := NewArray(nil, []Value{Number(1)})
	require.NoError(t, a.Set(0, Number(9)))
	require.Error(t, a.Set(1, Number(9)))
}
