// Package typecheck implements Erkao's advisory type checker: a
// stack-discipline inference pass that runs alongside the compiler's
// emission, tracking one TypeTag per value the runtime stack will hold.
// It never blocks codegen (spec.md §4.5 / §7's TypeError taxonomy): a
// mismatch is recorded and surfaced, compilation continues regardless.
package typecheck

import "github.com/erkao-lang/erkao/internal/token"

// Tag is the advisory type the checker associates with a stack slot.
type Tag int

const (
	Unknown Tag = iota
	Int
	Float
	Bool
	Str
	Null
	ArrayT
	MapT
	FnT
)

func (t Tag) String() string {
	switch t {
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Bool:
		return "Bool"
	case Str:
		return "Str"
	case Null:
		return "Null"
	case ArrayT:
		return "Array"
	case MapT:
		return "Map"
	case FnT:
		return "Fn"
	default:
		return "Unknown"
	}
}

// Error is one advisory diagnostic. It never aborts compilation.
type Error struct {
	Token   token.Token
	Message string
}

// Checker mirrors the compiler's own stack discipline: every prefix/infix
// rule that pushes a runtime Value should push a matching Tag here, and
// every rule that pops a Value should pop a Tag. Depth drift between the
// two stacks is itself a programmer error in the compiler, not something
// user source can trigger, so Checker stays forgiving: popping an empty
// stack yields Unknown instead of panicking.
type Checker struct {
	stack  []Tag
	errors []Error
}

func NewChecker() *Checker { return &Checker{} }

func (c *Checker) Push(t Tag) { c.stack = append(c.stack, t) }

func (c *Checker) Pop() Tag {
	if len(c.stack) == 0 {
		return Unknown
	}
	t := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return t
}

// PopN discards n tags, tolerating an already-short stack.
func (c *Checker) PopN(n int) {
	for i := 0; i < n; i++ {
		c.Pop()
	}
}

func (c *Checker) Depth() int { return len(c.stack) }

// Unify records a mismatch unless either side is Unknown (an inference
// gap, not a proven error) or the tags already agree. Numeric Int/Float
// are treated as mutually compatible since Erkao's only numeric runtime
// type is a double; the distinction is advisory sugar for literals that
// look integral.
func (c *Checker) Unify(tok token.Token, want, got Tag, context string) {
	if want == Unknown || got == Unknown || want == got {
		return
	}
	if isNumeric(want) && isNumeric(got) {
		return
	}
	c.errors = append(c.errors, Error{Token: tok, Message: context + ": expected " + want.String() + ", got " + got.String()})
}

func isNumeric(t Tag) bool { return t == Int || t == Float }

func (c *Checker) RecordError(tok token.Token, message string) {
	c.errors = append(c.errors, Error{Token: tok, Message: message})
}

func (c *Checker) Errors() []Error { return c.errors }
