package interp

import (
	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/value"
)

// tryHandler is one open OP_TRY block: if a throw reaches runFrame while
// this handler is on frame.tries, execution resumes at catchIP in the
// environment active when the try was entered (mirroring the scope
// OP_BEGIN_SCOPE/OP_END_SCOPE would have unwound on a normal exit).
type tryHandler struct {
	catchIP int
	env     *value.Environment
	stackLo int // frame.stack length to truncate back to before resuming
}

// frame is one call's private execution state: its own operand stack,
// its own instruction pointer into fn.Chunk, and the chain of try
// handlers currently open within this call (never across calls — a
// callee's throw that nothing inside it catches propagates to the
// caller as a Go error, per runFrame's recursive design).
type frame struct {
	fn    *chunk.Function
	env   *value.Environment
	ip    int
	stack []value.Value
	tries []tryHandler

	this    value.Value
	hasThis bool

	argCount int
}

func (f *frame) push(v value.Value) { f.stack = append(f.stack, v) }

func (f *frame) pop() value.Value {
	n := len(f.stack)
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v
}

func (f *frame) peek(distance int) value.Value {
	return f.stack[len(f.stack)-1-distance]
}

func (f *frame) popN(n int) []value.Value {
	lo := len(f.stack) - n
	out := make([]value.Value, n)
	copy(out, f.stack[lo:])
	f.stack = f.stack[:lo]
	return out
}

func (f *frame) readU8(c *chunk.Chunk) byte {
	b := c.Code[f.ip]
	f.ip++
	return b
}

func (f *frame) readU16(c *chunk.Chunk) uint16 {
	v := c.ReadU16(f.ip)
	f.ip += 2
	return v
}

// readName reads a u16 constant-pool index and resolves it to the Go
// string backing the interned *value.String there, the form every name
// reference (GET_VAR/SET_VAR/DEFINE_VAR/GET_PROPERTY/...) carries.
func (f *frame) readName(c *chunk.Chunk) string {
	idx := f.readU16(c)
	return c.Constants[idx].AsObject().(*value.String).Inspect()
}
