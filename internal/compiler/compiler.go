// Package compiler implements Erkao's single-pass compiler: a Pratt
// precedence parser fused directly with the bytecode emitter (no
// intermediate AST). Declarations, statements and expressions are parsed
// and written into a chunk.Chunk in the same traversal, the way
// spec.md §4.3 requires.
//
// The emission-helper naming (emitByte/emitConstant/emitJump/patchJump,
// a LoopContext-shaped break/continue stack, scope-depth tracking) is
// carried over from the teacher's bytecode compiler
// (_examples/funvibe-funxy/internal/vm/compiler*.go), which fuses a
// similar emitter onto an AST walk; this package fuses the same style of
// emitter directly onto token-stream parsing instead, since spec.md
// requires no separate AST pass.
package compiler

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/pattern"
	"github.com/erkao-lang/erkao/internal/token"
	"github.com/erkao-lang/erkao/internal/typecheck"
	"github.com/erkao-lang/erkao/internal/value"
)

// Precedence levels, lowest to highest, matching spec.md §4.3's Pratt
// table ("keyed by token type; each entry has {prefix, infix,
// precedence}").
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

// PrefixFn parses a prefix expression (the cursor is positioned just
// after the leading token). InfixFn parses the right side of a binary
// expression already having compiled its left operand.
type PrefixFn func(c *Compiler, canAssign bool)
type InfixFn func(c *Compiler, canAssign bool)

// Rule is one Pratt table entry.
type Rule struct {
	Prefix PrefixFn
	Infix  InfixFn
	Prec   Precedence
}

// StatementHook and ExpressionHook let a plug-in intercept statement or
// expression parsing before the built-in dispatch runs. Returning handled
// = false falls through to the built-in parser.
type StatementHook func(c *Compiler) (handled bool)
type ExpressionHook func(c *Compiler, canAssign bool) (handled bool)

// TypeSeedHook lets a plug-in push an initial TypeTag for a construct the
// advisory type checker otherwise has no seed for.
type TypeSeedHook func(c *Compiler)

// CompileError is one error produced during compilation, carrying the
// offending token for source-location reporting (internal/diag formats
// these; this package stays independent of diag so diag can depend on
// compiler's output without a cycle).
type CompileError struct {
	Token   token.Token
	Message string
	Cause   error
}

func (e CompileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Token, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Token, e.Message)
}

// deferRecord is one `defer expr;` registered in the currently open
// scope, run in LIFO order when that scope exits.
type deferRecord struct {
	emit func(c *Compiler)
}

// Compiler holds all single-pass compilation state for one function body
// (or the top-level script). Nested function literals get their own
// Compiler, linked via enclosing, so each owns an independent Chunk and
// scope-depth counter while sharing the token stream, Pratt table,
// interner and diagnostics collector of the root.
type Compiler struct {
	toks []token.Token
	pos  int

	chunk    *chunk.Chunk
	interner *value.Interner

	rules map[token.Kind]*Rule
	statementHooks  map[string]StatementHook
	expressionHooks map[string]ExpressionHook
	typeSeedHooks   map[string]TypeSeedHook

	scopeDepth int
	loopStack  []*BreakContext
	deferStack [][]deferRecord

	isGenerator bool
	tempCounter int

	enclosing *Compiler

	// classes maps a class name to the *value.Class built for it at
	// compile time, so a subclass declaration can resolve its
	// superclass by name without a runtime lookup (spec.md §3: classes
	// are plain compile-time objects dropped into the constant pool,
	// the same way Function already works). Shared by reference with
	// every nested function Compiler so classes declared in an
	// enclosing scope are visible to nested declarations.
	classes map[string]*value.Class

	// enums maps an enum's name to its variant names in declaration
	// order, consulted by matchStatement's exhaustiveness check
	// (spec.md §8 scenario 5).
	enums map[string][]string

	errors    []CompileError
	panicMode bool

	typeChecker *typecheck.Checker // nil when the advisory pass is disabled
}

// New creates a root Compiler over toks, writing into a fresh chunk named
// file (used only for diagnostics and chunk identity).
func New(toks []token.Token, interner *value.Interner, file string, enableTypeChecker bool) *Compiler {
	c := &Compiler{
		toks:            toks,
		chunk:           chunk.New(file),
		interner:        interner,
		rules:           defaultRules(),
		statementHooks:  make(map[string]StatementHook),
		expressionHooks: make(map[string]ExpressionHook),
		typeSeedHooks:   make(map[string]TypeSeedHook),
		classes:         make(map[string]*value.Class),
		enums:           make(map[string][]string),
	}
	c.deferStack = append(c.deferStack, nil)
	if enableTypeChecker {
		c.typeChecker = typecheck.NewChecker()
	}
	return c
}

// TypeErrors reports the advisory type checker's accumulated diagnostics,
// or nil when it is disabled.
func (c *Compiler) TypeErrors() []typecheck.Error {
	if c.typeChecker == nil {
		return nil
	}
	return c.typeChecker.Errors()
}

// Compile runs the whole program (a sequence of top-level declarations)
// and returns the compiled chunk, or the accumulated errors.
func (c *Compiler) Compile() (*chunk.Chunk, []CompileError) {
	for !c.check(token.EOF) {
		c.declaration()
		if c.panicMode {
			c.synchronize()
		}
	}
	c.emitOpTok(chunk.OP_NULL, c.previous())
	c.emitOpTok(chunk.OP_RETURN, c.previous())
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return c.chunk, nil
}

// --- Cursor surface (spec.md §6 plug-in surface) ---

func (c *Compiler) check(k token.Kind) bool  { return c.peek().Kind == k }
func (c *Compiler) peek() token.Token        { return c.toks[c.pos] }
func (c *Compiler) previous() token.Token    { return c.toks[c.pos-1] }

func (c *Compiler) advance() token.Token {
	if !c.check(token.EOF) {
		c.pos++
	}
	return c.previous()
}

func (c *Compiler) match(k token.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(k token.Kind, message string) token.Token {
	if c.check(k) {
		return c.advance()
	}
	c.errorAt(c.peek(), message)
	return c.peek()
}

func (c *Compiler) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.errors = append(c.errors, CompileError{Token: tok, Message: message, Cause: errors.New(message)})
}

func (c *Compiler) error(message string) { c.errorAt(c.previous(), message) }

// Error reports a compile error at the current token; it is the
// pattern.Target hook internal/pattern uses to surface errors (duplicate
// pattern bindings) found while lowering a pattern tree, without
// internal/pattern needing its own CompileError type.
func (c *Compiler) Error(message string) { c.errorAt(c.previous(), message) }

// synchronize discards tokens until a likely statement boundary, per the
// ParseError recovery policy in spec.md §7.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for !c.check(token.EOF) {
		if c.previous().Kind == token.SEMICOLON {
			return
		}
		switch c.peek().Kind {
		case token.CLASS, token.FUN, token.LET, token.CONST, token.FOR, token.IF,
			token.WHILE, token.RETURN, token.MATCH, token.TRY, token.IMPORT, token.EXPORT:
			return
		}
		c.advance()
	}
}

// EmitOp/EmitU8/EmitU16 implement pattern.Target and are the low-level
// primitives every higher-level emit helper in this package builds on.
func (c *Compiler) EmitOp(op chunk.Opcode) { c.chunk.WriteOp(op, c.previous()) }
func (c *Compiler) EmitU8(b byte)          { c.chunk.Write(b, c.previous()) }
func (c *Compiler) EmitU16(v uint16)       { c.chunk.WriteU16(v, c.previous()) }

func (c *Compiler) emitOpTok(op chunk.Opcode, tok token.Token) { c.chunk.WriteOp(op, tok) }

func (c *Compiler) emitByte(b byte) { c.EmitU8(b) }

func (c *Compiler) emitBytes(a, b byte) { c.EmitU8(a); c.EmitU8(b) }

// MakeConstant implements pattern.Target: interns val into the chunk's
// constant pool.
func (c *Compiler) MakeConstant(val value.Value) uint16 {
	idx, err := c.chunk.AddConstant(val)
	if err != nil {
		c.error(err.Error())
		return 0
	}
	return idx
}

func (c *Compiler) emitConstant(val value.Value) {
	c.EmitOp(chunk.OP_CONSTANT)
	c.EmitU16(c.MakeConstant(val))
}

// Intern implements pattern.Target.
func (c *Compiler) Intern(s string) *value.String { return c.interner.Intern(s) }

// NewInlineCacheSlot implements pattern.Target.
func (c *Compiler) NewInlineCacheSlot() uint16 { return c.chunk.NewInlineCacheSlot() }

// EmitJump writes op followed by a placeholder u16 offset and returns the
// offset of that placeholder for a later PatchJump call.
func (c *Compiler) EmitJump(op chunk.Opcode) int {
	c.EmitOp(op)
	offset := c.chunk.Len()
	c.EmitU16(0xFFFF)
	return offset
}

// PatchJump backfills the placeholder at offset with the distance from
// just after the operand to the current chunk end (spec.md §6: jump
// offsets are measured from the byte after the jump's operands).
func (c *Compiler) PatchJump(offset int) {
	dist := c.chunk.Len() - (offset + 2)
	if dist < 0 || dist > 0xFFFF {
		c.error("jump offset too large")
		return
	}
	c.chunk.PatchU16(offset, uint16(dist))
}

// emitLoop writes a backward LOOP to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.EmitOp(chunk.OP_LOOP)
	dist := (c.chunk.Len() + 2) - loopStart
	if dist < 0 || dist > 0xFFFF {
		c.error("loop body too large")
		return
	}
	c.EmitU16(uint16(dist))
}

// FreshTemp implements pattern.Target: a unique hidden-local name no
// source identifier can collide with.
func (c *Compiler) FreshTemp() string {
	c.tempCounter++
	return fmt.Sprintf("__t%d", c.tempCounter)
}

// DefineVar implements pattern.Target: pops TOS and binds name in the
// current scope.
func (c *Compiler) DefineVar(name string, isConst bool) {
	nameIdx := c.MakeConstant(value.FromObject(c.interner.Intern(name)))
	if isConst {
		c.EmitOp(chunk.OP_DEFINE_CONST)
	} else {
		c.EmitOp(chunk.OP_DEFINE_VAR)
	}
	c.EmitU16(nameIdx)
}

// GetVar implements pattern.Target: pushes the resolved value of name.
func (c *Compiler) GetVar(name string) {
	nameIdx := c.MakeConstant(value.FromObject(c.interner.Intern(name)))
	c.EmitOp(chunk.OP_GET_VAR)
	c.EmitU16(nameIdx)
}

func (c *Compiler) setVar(name string) {
	nameIdx := c.MakeConstant(value.FromObject(c.interner.Intern(name)))
	c.EmitOp(chunk.OP_SET_VAR)
	c.EmitU16(nameIdx)
}

// beginScope/endScope bracket a lexical scope with BEGIN_SCOPE/END_SCOPE,
// running any registered defer records in LIFO order first (spec.md
// §4.3: "All deferred records registered while a scope is live must run
// in LIFO order when the scope exits").
func (c *Compiler) beginScope() {
	c.scopeDepth++
	c.deferStack = append(c.deferStack, nil)
	c.EmitOp(chunk.OP_BEGIN_SCOPE)
}

func (c *Compiler) endScope() {
	c.runDefers()
	c.deferStack = c.deferStack[:len(c.deferStack)-1]
	c.scopeDepth--
	c.EmitOp(chunk.OP_END_SCOPE)
}

func (c *Compiler) runDefers() {
	c.runDefersAt(len(c.deferStack) - 1)
}

// runDefersAt runs depth's own deferred records in LIFO order. depth
// indexes c.deferStack directly (deferStack[0] is the top-level scope,
// deferStack[d] the scope opened at scopeDepth d), so each nesting level
// replays only the records it registered itself.
func (c *Compiler) runDefersAt(depth int) {
	list := c.deferStack[depth]
	for i := len(list) - 1; i >= 0; i-- {
		list[i].emit(c)
	}
}

func (c *Compiler) registerDefer(emit func(c *Compiler)) {
	top := len(c.deferStack) - 1
	c.deferStack[top] = append(c.deferStack[top], deferRecord{emit: emit})
}

// exitScopesTo emits END_SCOPE for every scope from the current depth
// down to (but not including) target, running each one's defers in
// order, used by break/continue/return to unwind cleanly before a
// non-local jump (spec.md §4.3: "scope-exit opcodes are emitted before
// the non-local jump"). A throw emits none: the catching OP_TRY handler
// restores the environment it recorded.
func (c *Compiler) exitScopesTo(target int) {
	for d := c.scopeDepth; d > target; d-- {
		c.runDefersAt(d)
		c.EmitOp(chunk.OP_END_SCOPE)
	}
}

func newPatternCompiler(c *Compiler) *pattern.Compiler { return pattern.New(c) }
