package compiler

import (
	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/token"
)

// BreakContextKind distinguishes a loop from a match/switch statement,
// since continue is only meaningful inside the former.
type BreakContextKind int

const (
	ContextLoop BreakContextKind = iota
	ContextSwitch
)

// BreakContext is installed by every loop and match/switch (spec.md
// §4.3's "Loop and switch control"). break/continue emit scope-exit
// opcodes down to scopeDepth, then record a forward jump here; the
// owning construct patches every recorded jump once its body closes.
type BreakContext struct {
	kind       BreakContextKind
	enclosing  *BreakContext
	scopeDepth int
	breaks     []int
	continues  []int
}

func (c *Compiler) pushLoopContext() *BreakContext {
	ctx := &BreakContext{kind: ContextLoop, enclosing: c.currentContext(), scopeDepth: c.scopeDepth}
	c.loopStack = append(c.loopStack, ctx)
	return ctx
}

func (c *Compiler) pushSwitchContext() *BreakContext {
	ctx := &BreakContext{kind: ContextSwitch, enclosing: c.currentContext(), scopeDepth: c.scopeDepth}
	c.loopStack = append(c.loopStack, ctx)
	return ctx
}

func (c *Compiler) popContext() {
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
}

func (c *Compiler) currentContext() *BreakContext {
	if len(c.loopStack) == 0 {
		return nil
	}
	return c.loopStack[len(c.loopStack)-1]
}

// nearestLoop walks outward from the innermost context to find one that
// accepts continue (only a loop, never a bare switch).
func (c *Compiler) nearestLoop() *BreakContext {
	for ctx := c.currentContext(); ctx != nil; ctx = ctx.enclosing {
		if ctx.kind == ContextLoop {
			return ctx
		}
	}
	return nil
}

func (c *Compiler) breakStatement() {
	tok := c.previous()
	ctx := c.currentContext()
	if ctx == nil {
		c.errorAt(tok, "break outside loop or switch")
		c.consume(token.SEMICOLON, "expected ';' after 'break'")
		return
	}
	c.exitScopesTo(ctx.scopeDepth)
	j := c.EmitJump(chunk.OP_JUMP)
	ctx.breaks = append(ctx.breaks, j)
	c.consume(token.SEMICOLON, "expected ';' after 'break'")
}

func (c *Compiler) continueStatement() {
	tok := c.previous()
	ctx := c.nearestLoop()
	if ctx == nil {
		c.errorAt(tok, "continue outside loop")
		c.consume(token.SEMICOLON, "expected ';' after 'continue'")
		return
	}
	c.exitScopesTo(ctx.scopeDepth)
	j := c.EmitJump(chunk.OP_JUMP)
	ctx.continues = append(ctx.continues, j)
	c.consume(token.SEMICOLON, "expected ';' after 'continue'")
}

func (c *Compiler) patchBreaks(ctx *BreakContext) {
	for _, j := range ctx.breaks {
		c.PatchJump(j)
	}
}
