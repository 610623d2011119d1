package chunk

import (
	"testing"

	"github.com/erkao-lang/erkao/internal/token"
	"github.com/erkao-lang/erkao/internal/value"
	"github.com/stretchr/testify/require"
)

func tok(line int) token.Token { return token.Token{Line: line} }

func TestChunkWriteAndReadU16(t *testing.T) {
	c := New("test")
	off := c.WriteOp(OP_CONSTANT, tok(1))
	c.WriteU16(0x1234, tok(1))
	require.Equal(t, byte(OP_CONSTANT), c.Code[off])
	require.Equal(t, uint16(0x1234), c.ReadU16(off+1))
}

func TestChunkPatchU16(t *testing.T) {
	c := New("test")
	c.WriteOp(OP_JUMP, tok(1))
	patchAt := c.WriteU16(0xFFFF, tok(1))
	c.PatchU16(patchAt, 42)
	require.Equal(t, uint16(42), c.ReadU16(patchAt))
}

func TestChunkAddConstant(t *testing.T) {
	c := New("test")
	idx, err := c.AddConstant(value.Number(3))
	require.NoError(t, err)
	require.Equal(t, uint16(0), idx)
	idx2, err := c.AddConstant(value.Number(4))
	require.NoError(t, err)
	require.Equal(t, uint16(1), idx2)
	require.Len(t, c.Constants, 2)
}

func TestChunkConstantPoolOverflow(t *testing.T) {
	c := New("test")
	c.Constants = make([]value.Value, MaxConstants)
	_, err := c.AddConstant(value.Null())
	require.Error(t, err)
}

func TestInlineCacheSlotLifecycle(t *testing.T) {
	c := New("test")
	slot := c.NewInlineCacheSlot()
	require.Equal(t, CacheNone, c.Cache(slot).Kind)
	c.Cache(slot).Kind = CacheField
	require.Equal(t, CacheField, c.Cache(slot).Kind)
	c.Cache(slot).Reset()
	require.Equal(t, CacheNone, c.Cache(slot).Kind)
}

func TestDisassembleRendersOperands(t *testing.T) {
	c := New("test")
	idx, _ := c.AddConstant(value.Number(1))
	c.WriteOp(OP_CONSTANT, tok(1))
	c.WriteU16(idx, tok(1))
	c.WriteOp(OP_RETURN, tok(1))

	out := Disassemble(c, "main")
	require.Contains(t, out, "CONSTANT")
	require.Contains(t, out, "RETURN")
}
