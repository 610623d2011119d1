package chunk

import (
	"fmt"

	"github.com/erkao-lang/erkao/internal/value"
)

// Function is a compiled function: its parameter names, the Chunk holding
// its body, and the lexical Environment it closed over at CLOSURE time
// (nil for the top-level script and for functions not yet closed over).
// It implements value.Object directly so it can sit in a Value, a Chunk's
// constant pool, or a Class's method table without value needing to
// import this package.
type Function struct {
	hdr           value.GCHeader
	Name          *value.String // nil for anonymous functions
	Params        []*value.String
	Arity         int
	MinArity      int // arity minus trailing parameters with defaults
	IsInitializer bool
	Chunk         *Chunk
	Env           *value.Environment
}

func NewFunction(name *value.String, params []*value.String, minArity int, body *Chunk) *Function {
	return &Function{
		Name:     name,
		Params:   params,
		Arity:    len(params),
		MinArity: minArity,
		Chunk:    body,
		hdr:      value.GCHeader{Size: 96},
	}
}

func (f *Function) Kind() value.Kind        { return value.KindFunction }
func (f *Function) Header() *value.GCHeader { return &f.hdr }

func (f *Function) Inspect() string {
	if f.Name == nil {
		return "<fn>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Inspect())
}

// Children reports the function's own identity edges: its name, its
// parameter names, and every constant in its chunk that is itself a heap
// reference (nested function prototypes for closures, string constants);
// number, bool and null constants are not heap references.
// The captured Env, when present, is walked by the collector separately
// since it is shared, mutable state rather than owned by one Function.
func (f *Function) Children(dst []value.Value) []value.Value {
	if f.Name != nil {
		dst = append(dst, value.FromObject(f.Name))
	}
	for _, p := range f.Params {
		dst = append(dst, value.FromObject(p))
	}
	for _, c := range f.Chunk.Constants {
		if c.IsObject() {
			dst = append(dst, c)
		}
	}
	return dst
}

// Closure binds env as the function's captured lexical scope, producing
// the object the CLOSURE opcode pushes. Erkao functions are single-shot
// objects with an Env slot rather than a separate closure wrapper type,
// since every function is compiled once but may be closed over many
// times with different environments (one Function prototype, many
// closure instances) — callers that need distinct captures clone the
// prototype via WithEnv instead of mutating Env in place.
func (f *Function) WithEnv(env *value.Environment) *Function {
	clone := *f
	clone.Env = env
	clone.hdr = value.GCHeader{Size: f.hdr.Size}
	return &clone
}
