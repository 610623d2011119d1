// Package pattern lowers Erkao's structural patterns into the same
// equality/type-check bytecode sequences a hand-written compiler would
// emit, shared as an inlined sub-emitter by internal/compiler (spec.md
// §4.3 describes it as "core-within-core": the pattern compiler walks a
// transient pattern tree and writes into the enclosing compiler's chunk
// directly, rather than producing its own intermediate chunk).
package pattern

import (
	"fmt"
	"strings"

	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/value"
)

// Kind identifies a pattern tree node's shape.
type Kind int

const (
	Wildcard Kind = iota
	Binding
	Pin
	Literal
	Array
	Map
	Enum
)

// MapEntry is one key/pattern pair inside a MAP pattern. Key is the
// literal map key (identifiers and string keys are equivalent per
// spec.md §4.3).
type MapEntry struct {
	Key     string
	Pattern *Node
}

// Node is one pattern tree node. Only the fields relevant to Kind are
// populated; the rest are zero.
type Node struct {
	Kind Kind

	Name    string // Binding / Pin
	Literal value.Value

	Elems    []*Node // Array
	ArrayRest *string

	Entries []MapEntry // Map
	MapRest  *string

	EnumName    string // Enum
	VariantName string
	Args        []*Node
}

// step is one hop of a replay path from the pattern's root scrutinee:
// either an array index or a map/instance property name.
type step struct {
	isIndex bool
	index   int
	key     string
}

// pathString renders a replay path for the exception Map: `$` followed
// by `[i]` for each index and a bracketed, quoted, escaped key for each
// property, e.g. `$["a"][0]["k"]`. Keys never use the `.a` form.
func pathString(path []step) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, s := range path {
		if s.isIndex {
			fmt.Fprintf(&sb, "[%d]", s.index)
		} else {
			fmt.Fprintf(&sb, "[%q]", s.key)
		}
	}
	return sb.String()
}

// Target is the narrow slice of the enclosing compiler's emission API
// the pattern lowering needs. internal/compiler.Compiler implements it.
type Target interface {
	EmitOp(op chunk.Opcode)
	EmitU8(b byte)
	EmitU16(v uint16)
	MakeConstant(v value.Value) uint16
	Intern(s string) *value.String
	EmitJump(op chunk.Opcode) int
	PatchJump(offset int)
	DefineVar(name string, isConst bool)
	GetVar(name string)
	NewInlineCacheSlot() uint16
	FreshTemp() string
	Error(message string)
}

// Mode selects how a failed check is handled.
type Mode int

const (
	// AsBool: fall through to a final "true" push; any failed check jumps
	// to a shared epilogue that pushes "false" instead.
	AsBool Mode = iota
	// OrThrow: a failed check builds a `{message, path, value}` exception
	// Map and throws it (used by destructuring `let`).
	OrThrow
)

// Compiler lowers one pattern against a scrutinee already sitting on top
// of the operand stack. Compile pops that scrutinee into a hidden local
// so every sub-check can cheaply re-fetch it by path (spec.md's
// BIND_PATH: "replay path to extract value").
type Compiler struct {
	t Target
}

func New(t Target) *Compiler { return &Compiler{t: t} }

// Compile emits the full check+bind sequence for root against the value
// on top of the stack, consuming it. In AsBool mode it leaves a single
// bool on the stack. In OrThrow mode it leaves nothing (falls through on
// success, throws on failure) and every binding in root is defined as a
// mutable local in the enclosing scope.
func (c *Compiler) Compile(root *Node, mode Mode) {
	scrutinee := c.t.FreshTemp()
	c.t.DefineVar(scrutinee, true)

	var failJumps []int
	seen := make(map[string]bool)
	c.compileNode(root, scrutinee, nil, mode, &failJumps, seen)

	switch mode {
	case AsBool:
		c.t.EmitOp(chunk.OP_TRUE)
		end := c.t.EmitJump(chunk.OP_JUMP)
		for _, j := range failJumps {
			c.t.PatchJump(j)
		}
		c.t.EmitOp(chunk.OP_FALSE)
		c.t.PatchJump(end)
	case OrThrow:
		// failJumps were wired directly to per-site throw sequences, so
		// nothing to patch here; a fall-through means every check passed.
	}
}

func (c *Compiler) loadPath(scrutinee string, path []step) {
	c.t.GetVar(scrutinee)
	for _, s := range path {
		if s.isIndex {
			idx := c.t.MakeConstant(value.Number(float64(s.index)))
			c.t.EmitOp(chunk.OP_CONSTANT)
			c.t.EmitU16(idx)
			c.t.EmitOp(chunk.OP_GET_INDEX)
		} else {
			name := c.t.MakeConstant(value.FromObject(c.t.Intern(s.key)))
			slot := c.t.NewInlineCacheSlot()
			c.t.EmitOp(chunk.OP_GET_PROPERTY)
			c.t.EmitU16(name)
			c.t.EmitU16(slot)
		}
	}
}

// failHere either records a forward jump to the shared bool-false
// epilogue (AsBool) or immediately emits a throw of a structured
// exception Map describing what failed (OrThrow). In both cases it
// assumes a bool condition was just pushed by the caller and consumes it
// on both branches, since JUMP_IF_FALSE peeks rather than pops (spec.md's
// Design Note on why JUMP_IF_FALSE peeks). A passing check falls through.
func (c *Compiler) failHere(mode Mode, scrutinee string, path []step, message string, failJumps *[]int) {
	j := c.t.EmitJump(chunk.OP_JUMP_IF_FALSE)
	c.t.EmitOp(chunk.OP_POP) // condition was true: discard the peeked bool, fall through
	pass := c.t.EmitJump(chunk.OP_JUMP)
	c.t.PatchJump(j)
	c.t.EmitOp(chunk.OP_POP) // condition was false: discard the peeked bool
	switch mode {
	case AsBool:
		*failJumps = append(*failJumps, c.t.EmitJump(chunk.OP_JUMP))
	case OrThrow:
		c.emitThrow(scrutinee, path, message)
	}
	c.t.PatchJump(pass)
}

func (c *Compiler) emitThrow(scrutinee string, path []step, message string) {
	msgIdx := c.t.MakeConstant(value.FromObject(c.t.Intern(message)))
	c.t.EmitOp(chunk.OP_CONSTANT)
	c.t.EmitU16(msgIdx)
	keyMsg := c.t.MakeConstant(value.FromObject(c.t.Intern("message")))
	c.t.EmitOp(chunk.OP_CONSTANT)
	c.t.EmitU16(keyMsg)

	pathIdx := c.t.MakeConstant(value.FromObject(c.t.Intern(pathString(path))))
	c.t.EmitOp(chunk.OP_CONSTANT)
	c.t.EmitU16(pathIdx)
	keyPath := c.t.MakeConstant(value.FromObject(c.t.Intern("path")))
	c.t.EmitOp(chunk.OP_CONSTANT)
	c.t.EmitU16(keyPath)

	c.loadPath(scrutinee, path)
	keyVal := c.t.MakeConstant(value.FromObject(c.t.Intern("value")))
	c.t.EmitOp(chunk.OP_CONSTANT)
	c.t.EmitU16(keyVal)

	c.t.EmitOp(chunk.OP_MAP)
	c.t.EmitU16(3)
	c.t.EmitOp(chunk.OP_THROW)
}

// bindName records name as bound within the pattern tree currently being
// lowered, reporting a compile error the second time the same name is
// claimed (spec.md §7's "duplicate pattern binding"). Rest bindings
// (ArrayRest/MapRest) go through this too; only "_" is exempt, since
// callers never pass it here (both call sites already guard against it).
func (c *Compiler) bindName(name string, seen map[string]bool) {
	if seen[name] {
		c.t.Error("duplicate pattern binding: " + name)
		return
	}
	seen[name] = true
}

func (c *Compiler) compileNode(n *Node, scrutinee string, path []step, mode Mode, failJumps *[]int, seen map[string]bool) {
	switch n.Kind {
	case Wildcard:
		return
	case Binding:
		c.bindName(n.Name, seen)
		c.loadPath(scrutinee, path)
		c.t.DefineVar(n.Name, false)
	case Pin:
		c.loadPath(scrutinee, path)
		c.t.GetVar(n.Name)
		c.t.EmitOp(chunk.OP_EQUAL)
		c.failHere(mode, scrutinee, path, fmt.Sprintf("pinned binding %q did not match", n.Name), failJumps)
	case Literal:
		c.loadPath(scrutinee, path)
		idx := c.t.MakeConstant(n.Literal)
		c.t.EmitOp(chunk.OP_CONSTANT)
		c.t.EmitU16(idx)
		c.t.EmitOp(chunk.OP_EQUAL)
		c.failHere(mode, scrutinee, path, "literal did not match", failJumps)
	case Array:
		c.loadPath(scrutinee, path)
		c.t.EmitOp(chunk.OP_IS_ARRAY)
		c.failHere(mode, scrutinee, path, "expected an array", failJumps)

		c.loadPath(scrutinee, path)
		c.t.EmitOp(chunk.OP_LEN)
		lenIdx := c.t.MakeConstant(value.Number(float64(len(n.Elems))))
		c.t.EmitOp(chunk.OP_CONSTANT)
		c.t.EmitU16(lenIdx)
		if n.ArrayRest != nil {
			c.t.EmitOp(chunk.OP_GREATER_EQUAL)
		} else {
			c.t.EmitOp(chunk.OP_EQUAL)
		}
		c.failHere(mode, scrutinee, path, "array length did not match", failJumps)

		for i, elem := range n.Elems {
			c.compileNode(elem, scrutinee, append(path, step{isIndex: true, index: i}), mode, failJumps, seen)
		}
		if n.ArrayRest != nil && *n.ArrayRest != "_" {
			c.bindName(*n.ArrayRest, seen)
			// stack: native, array, start -- CALL expects the callee below
			// its args; the interpreter pre-defines __arrayRest as a 2-arg
			// native called with (array, start).
			c.t.GetVar("__arrayRest")
			c.loadPath(scrutinee, path)
			startIdx := c.t.MakeConstant(value.Number(float64(len(n.Elems))))
			c.t.EmitOp(chunk.OP_CONSTANT)
			c.t.EmitU16(startIdx)
			c.t.EmitOp(chunk.OP_CALL)
			c.t.EmitU8(2)
			c.t.DefineVar(*n.ArrayRest, false)
		}
	case Map:
		c.loadPath(scrutinee, path)
		c.t.EmitOp(chunk.OP_IS_MAP)
		c.failHere(mode, scrutinee, path, "expected a map", failJumps)

		keys := make([]string, 0, len(n.Entries))
		for _, e := range n.Entries {
			keys = append(keys, e.Key)
			c.compileNode(e.Pattern, scrutinee, append(path, step{key: e.Key}), mode, failJumps, seen)
		}
		if n.MapRest != nil && *n.MapRest != "_" {
			c.bindName(*n.MapRest, seen)
			c.t.GetVar("__mapRest")
			c.loadPath(scrutinee, path)
			excluded := make([]value.Value, len(keys))
			for i, k := range keys {
				excluded[i] = value.FromObject(c.t.Intern(k))
			}
			for _, ev := range excluded {
				idx := c.t.MakeConstant(ev)
				c.t.EmitOp(chunk.OP_CONSTANT)
				c.t.EmitU16(idx)
			}
			c.t.EmitOp(chunk.OP_ARRAY)
			c.t.EmitU16(uint16(len(excluded)))
			c.t.EmitOp(chunk.OP_CALL)
			c.t.EmitU8(2)
			c.t.DefineVar(*n.MapRest, false)
		}
	case Enum:
		enumIdx := c.t.MakeConstant(value.FromObject(c.t.Intern(n.EnumName)))
		variantIdx := c.t.MakeConstant(value.FromObject(c.t.Intern(n.VariantName)))
		c.loadPath(scrutinee, path)
		c.t.EmitOp(chunk.OP_MATCH_ENUM)
		c.t.EmitU16(enumIdx)
		c.t.EmitU16(variantIdx)
		// MATCH_ENUM peeks rather than pops (spec.md §4.2), so the
		// scrutinee it checked is still under the bool; drop both on
		// either branch and re-push the result alone for failHere.
		isVariant := c.t.EmitJump(chunk.OP_JUMP_IF_FALSE)
		c.t.EmitOp(chunk.OP_POP)
		c.t.EmitOp(chunk.OP_POP)
		c.t.EmitOp(chunk.OP_TRUE)
		done := c.t.EmitJump(chunk.OP_JUMP)
		c.t.PatchJump(isVariant)
		c.t.EmitOp(chunk.OP_POP)
		c.t.EmitOp(chunk.OP_POP)
		c.t.EmitOp(chunk.OP_FALSE)
		c.t.PatchJump(done)
		c.failHere(mode, scrutinee, path, fmt.Sprintf("expected %s.%s", n.EnumName, n.VariantName), failJumps)

		valuesPath := append(append([]step{}, path...), step{key: "values"})
		for i, arg := range n.Args {
			c.compileNode(arg, scrutinee, append(valuesPath, step{isIndex: true, index: i}), mode, failJumps, seen)
		}
	}
}

// UsedVariants reports the set of EnumName.VariantName pairs a list of
// top-level Enum patterns covers, used by exhaustiveness checking.
func UsedVariants(nodes []*Node) map[string]bool {
	used := make(map[string]bool)
	for _, n := range nodes {
		if n.Kind == Enum {
			used[n.EnumName+"."+n.VariantName] = true
		}
	}
	return used
}

// HasCatchAll reports whether nodes contains a Wildcard or plain Binding
// at the top level, either of which matches anything and satisfies
// exhaustiveness on its own.
func HasCatchAll(nodes []*Node) bool {
	for _, n := range nodes {
		if n.Kind == Wildcard || n.Kind == Binding {
			return true
		}
	}
	return false
}

// CheckExhaustive reports the variants of enumName missing from nodes,
// given the ADT's full variant list. An empty result (and no error)
// means the match is exhaustive.
func CheckExhaustive(enumName string, allVariants []string, nodes []*Node, hasDefault bool) []string {
	if hasDefault || HasCatchAll(nodes) {
		return nil
	}
	used := UsedVariants(nodes)
	var missing []string
	for _, v := range allVariants {
		if !used[enumName+"."+v] {
			missing = append(missing, v)
		}
	}
	return missing
}
