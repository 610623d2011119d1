// Package chunk implements Erkao's bytecode container: the Opcode set,
// per-instruction inline-cache slots, the Chunk itself, and the Function
// object that owns a Chunk. It depends on internal/value for the Value
// union and Object interface but internal/value never depends back on it
// (see DESIGN.md "Package layout").
package chunk

import (
	"encoding/binary"
	"fmt"

	"github.com/erkao-lang/erkao/internal/token"
	"github.com/erkao-lang/erkao/internal/value"
)

// CacheKind identifies what an InlineCache slot memoizes.
type CacheKind uint8

const (
	CacheNone CacheKind = iota
	CacheField
	CacheMethod
	CacheMap
)

// InlineCache is a monomorphic memo attached to one call site (one
// GET_PROPERTY/SET_PROPERTY/INVOKE instruction). A cache hit
// requires the receiver's Class (or, for CacheMap, the Map's identity) to
// match exactly what was last seen; anything else is a miss that falls
// back to the general lookup path and rewrites the cache.
type InlineCache struct {
	Kind  CacheKind
	Class *value.Class // receiver class last seen, for CacheField/CacheMethod
	Slot  int          // map-entry index for CacheField; unused for CacheMethod
	Map   *value.Map   // map identity last seen, for CacheMap
}

func (c *InlineCache) Reset() { *c = InlineCache{} }

const MaxConstants = 1 << 16

// Chunk is one compiled unit of bytecode: a function body or the
// top-level program. Every byte in Code has a matching entry in Tokens so
// diagnostics can always point at a source location.
type Chunk struct {
	Code        []byte
	Tokens      []token.Token
	Constants   []value.Value
	InlineCaches []InlineCache
	File        string
}

func New(file string) *Chunk {
	return &Chunk{File: file}
}

// Write appends a single byte, tagged with the token that produced it.
func (c *Chunk) Write(b byte, tok token.Token) int {
	c.Code = append(c.Code, b)
	c.Tokens = append(c.Tokens, tok)
	return len(c.Code) - 1
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op Opcode, tok token.Token) int {
	return c.Write(byte(op), tok)
}

// WriteU16 appends a big-endian two-byte operand.
func (c *Chunk) WriteU16(v uint16, tok token.Token) int {
	start := c.Write(byte(v>>8), tok)
	c.Write(byte(v), tok)
	return start
}

// PatchU16 overwrites the two bytes at offset with v, used to back-patch
// forward jump targets once their destination is known.
func (c *Chunk) PatchU16(offset int, v uint16) {
	c.Code[offset] = byte(v >> 8)
	c.Code[offset+1] = byte(v)
}

func (c *Chunk) ReadU16(offset int) uint16 {
	return binary.BigEndian.Uint16(c.Code[offset : offset+2])
}

// AddConstant interns val into the constant pool, returning its index.
// The pool is capped at 65536 entries because every reference to it is a
// u16 operand.
func (c *Chunk) AddConstant(val value.Value) (uint16, error) {
	if len(c.Constants) >= MaxConstants {
		return 0, fmt.Errorf("chunk %s: constant pool exhausted (max %d)", c.File, MaxConstants)
	}
	c.Constants = append(c.Constants, val)
	return uint16(len(c.Constants) - 1), nil
}

// NewInlineCacheSlot reserves and returns the index of a fresh, empty
// inline-cache slot for the compiler to reference from an instruction
// operand.
func (c *Chunk) NewInlineCacheSlot() uint16 {
	c.InlineCaches = append(c.InlineCaches, InlineCache{})
	return uint16(len(c.InlineCaches) - 1)
}

func (c *Chunk) Cache(slot uint16) *InlineCache {
	return &c.InlineCaches[slot]
}

// Len reports the current instruction-stream length, used by the compiler
// to compute jump offsets.
func (c *Chunk) Len() int { return len(c.Code) }

// TruncateTo discards every byte from offset onward, used by the
// compiler's constant-folding peephole to retract a pair of CONSTANT
// pushes and a binary op once they have been reduced to a single folded
// constant. Constants already added to the pool are left in place —
// an unreferenced pool entry is harmless, just unused.
func (c *Chunk) TruncateTo(offset int) {
	c.Code = c.Code[:offset]
	c.Tokens = c.Tokens[:offset]
}

// Clone produces a deep-enough copy that shares no backing array with its
// owner, used when a Function is duplicated (spec.md §3: "cloning a
// function clones the Chunk").
func (c *Chunk) Clone() *Chunk {
	n := &Chunk{File: c.File}
	n.Code = append(n.Code, c.Code...)
	n.Tokens = append(n.Tokens, c.Tokens...)
	n.Constants = append(n.Constants, c.Constants...)
	n.InlineCaches = append(n.InlineCaches, c.InlineCaches...)
	return n
}
