package compiler

import (
	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/pattern"
	"github.com/erkao-lang/erkao/internal/token"
	"github.com/erkao-lang/erkao/internal/value"
)

// checkNext reports whether the token one past the cursor has kind k,
// without consuming anything. Used to tell `fun name(...)` (a
// declaration) from `fun(...)` (an expression) before committing to
// either parse.
func (c *Compiler) checkNext(k token.Kind) bool {
	if c.pos+1 >= len(c.toks) {
		return false
	}
	return c.toks[c.pos+1].Kind == k
}

// declaration is the top-level production every statement() loop calls:
// plug-in statement hooks run first (spec.md §6), then the built-in
// declaration forms, falling through to statement() for everything else.
func (c *Compiler) declaration() {
	for _, hook := range c.statementHooks {
		if hook(c) {
			return
		}
	}
	switch {
	case c.check(token.CLASS):
		c.advance()
		c.classDeclaration()
	case c.check(token.ENUM):
		c.advance()
		c.enumDeclaration()
	case c.check(token.LET):
		c.advance()
		c.letDeclaration(false)
	case c.check(token.CONST):
		c.advance()
		c.letDeclaration(true)
	case c.check(token.FUN) && c.checkNext(token.IDENT):
		c.advance()
		c.funDeclaration()
	default:
		c.statement()
	}
}

func (c *Compiler) funDeclaration() {
	name := c.consume(token.IDENT, "expected function name").Lexeme
	params, minArity, defaults := c.parseParams()
	fn := c.compileFunctionBody(name, params, minArity, defaults, false)
	idx := c.MakeConstant(value.FromObject(fn))
	c.EmitOp(chunk.OP_CLOSURE)
	c.EmitU16(idx)
	c.DefineVar(name, false)
}

// letDeclaration compiles `let name [= expr];`, `const name = expr;`, or
// a destructuring form (`let [a, b] = arr;` / `let {a: x, b: y} = map;`), the
// latter lowered through the pattern compiler in OrThrow mode so a
// shape mismatch throws instead of silently binding nulls.
func (c *Compiler) letDeclaration(isConst bool) {
	if c.check(token.LBRACKET) || c.check(token.LBRACE) {
		node := c.parsePattern()
		c.consume(token.ASSIGN, "expected '=' after destructuring pattern")
		c.parseExpression()
		c.tcPop()
		pc := newPatternCompiler(c)
		pc.Compile(node, pattern.OrThrow)
		c.consume(token.SEMICOLON, "expected ';' after let statement")
		return
	}

	name := c.consume(token.IDENT, "expected variable name").Lexeme
	if c.match(token.ASSIGN) {
		c.parseExpression()
		c.tcPop()
	} else {
		c.EmitOp(chunk.OP_NULL)
	}
	c.DefineVar(name, isConst)
	c.consume(token.SEMICOLON, "expected ';' after variable declaration")
}

// statement dispatches every non-declaration construct, falling through
// to an expression statement (an expression compiled for its side
// effect, its value discarded).
func (c *Compiler) statement() {
	switch {
	case c.match(token.LBRACE):
		c.block()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forInStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.BREAK):
		c.breakStatement()
	case c.match(token.CONTINUE):
		c.continueStatement()
	case c.match(token.THROW):
		c.throwStatement()
	case c.match(token.TRY):
		c.tryStatement()
	case c.match(token.DEFER):
		c.deferStatement()
	case c.match(token.MATCH):
		c.matchStatement()
	case c.match(token.IMPORT):
		c.importStatement()
	case c.match(token.EXPORT):
		c.exportStatement()
	case c.match(token.PRIVATE):
		c.privateStatement()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	c.beginScope()
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
		if c.panicMode {
			c.synchronize()
		}
	}
	c.consume(token.RBRACE, "expected '}' after block")
	c.endScope()
}

func (c *Compiler) expressionStatement() {
	c.parseExpression()
	c.tcPop()
	c.consume(token.SEMICOLON, "expected ';' after expression")
	c.EmitOp(chunk.OP_POP)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "expected '(' after 'if'")
	c.parseExpression()
	c.tcPop()
	c.consume(token.RPAREN, "expected ')' after condition")

	thenJump := c.EmitJump(chunk.OP_JUMP_IF_FALSE)
	c.EmitOp(chunk.OP_POP)
	c.statement()
	elseJump := c.EmitJump(chunk.OP_JUMP)

	c.PatchJump(thenJump)
	c.EmitOp(chunk.OP_POP)
	if c.match(token.ELSE) {
		c.statement()
	}
	c.PatchJump(elseJump)
}

// whileStatement compiles `while (cond) stmt`, patching every `continue`
// to the loop's back-edge (spec.md's OP_GC yield point) rather than
// straight back to the condition check, and every `break` to just past
// the loop.
func (c *Compiler) whileStatement() {
	loopStart := c.chunk.Len()
	c.consume(token.LPAREN, "expected '(' after 'while'")
	c.parseExpression()
	c.tcPop()
	c.consume(token.RPAREN, "expected ')' after condition")

	exitJump := c.EmitJump(chunk.OP_JUMP_IF_FALSE)
	c.EmitOp(chunk.OP_POP)

	ctx := c.pushLoopContext()
	c.statement()
	for _, j := range ctx.continues {
		c.PatchJump(j)
	}
	c.EmitOp(chunk.OP_GC)
	c.emitLoop(loopStart)
	c.popContext()

	c.PatchJump(exitJump)
	c.EmitOp(chunk.OP_POP)
	c.patchBreaks(ctx)
}

// forInStatement compiles `for (name in iterable) stmt` as an
// index-driven loop over the iterable's length (spec.md's OP_LEN/
// OP_GET_INDEX contract covers both Array and Map key iteration
// uniformly from the runtime's point of view).
func (c *Compiler) forInStatement() {
	c.consume(token.LPAREN, "expected '(' after 'for'")
	varName := c.consume(token.IDENT, "expected loop variable name").Lexeme
	c.consume(token.IN, "expected 'in' in for loop")
	c.parseExpression()
	c.tcPop()
	c.consume(token.RPAREN, "expected ')' after for-in clause")

	c.beginScope()
	iterVar := c.FreshTemp()
	c.DefineVar(iterVar, true)
	idxVar := c.FreshTemp()
	c.emitConstant(value.Number(0))
	c.DefineVar(idxVar, false)

	loopStart := c.chunk.Len()
	c.GetVar(idxVar)
	c.GetVar(iterVar)
	c.EmitOp(chunk.OP_LEN)
	c.EmitOp(chunk.OP_LESS)
	exitJump := c.EmitJump(chunk.OP_JUMP_IF_FALSE)
	c.EmitOp(chunk.OP_POP)

	ctx := c.pushLoopContext()
	c.beginScope()
	c.GetVar(iterVar)
	c.GetVar(idxVar)
	c.EmitOp(chunk.OP_GET_INDEX)
	c.DefineVar(varName, false)

	c.statement()
	c.endScope()

	for _, j := range ctx.continues {
		c.PatchJump(j)
	}
	c.GetVar(idxVar)
	c.emitConstant(value.Number(1))
	c.EmitOp(chunk.OP_ADD)
	c.setVar(idxVar)
	c.EmitOp(chunk.OP_POP)
	c.EmitOp(chunk.OP_GC)
	c.emitLoop(loopStart)
	c.popContext()

	c.PatchJump(exitJump)
	c.EmitOp(chunk.OP_POP)
	c.patchBreaks(ctx)
	c.endScope()
}

// returnStatement compiles `return [expr];`. Inside a generator
// (spec.md §4.3's yield-as-generator lowering), the explicit return
// value is only used when no `yield` ever ran in this call; otherwise
// the accumulated __yield array is returned instead, decided at runtime
// since whether `yield` ran depends on the control flow actually taken.
func (c *Compiler) returnStatement() {
	if c.check(token.SEMICOLON) {
		c.EmitOp(chunk.OP_NULL)
	} else {
		c.parseExpression()
		c.tcPop()
	}
	c.consume(token.SEMICOLON, "expected ';' after return value")

	if !c.isGenerator {
		c.exitScopesTo(0)
		c.EmitOp(chunk.OP_RETURN)
		return
	}

	c.GetVar("__yield_used")
	useYieldJump := c.EmitJump(chunk.OP_JUMP_IF_FALSE)
	c.EmitOp(chunk.OP_POP)
	c.EmitOp(chunk.OP_POP) // discard the explicit return value
	c.GetVar("__yield")
	c.exitScopesTo(0)
	c.EmitOp(chunk.OP_RETURN)

	c.PatchJump(useYieldJump)
	c.EmitOp(chunk.OP_POP)
	c.exitScopesTo(0)
	c.EmitOp(chunk.OP_RETURN)
}

func (c *Compiler) throwStatement() {
	c.parseExpression()
	c.tcPop()
	c.consume(token.SEMICOLON, "expected ';' after throw value")
	c.EmitOp(chunk.OP_THROW)
}

// tryStatement compiles `try stmt catch (name) stmt`: OP_TRY installs a
// handler that, on a matching throw, unwinds to here and pushes the
// thrown value; OP_END_TRY retires the handler once the protected body
// finishes without throwing.
func (c *Compiler) tryStatement() {
	tryJump := c.EmitJump(chunk.OP_TRY)
	c.statement()
	c.EmitOp(chunk.OP_END_TRY)
	doneJump := c.EmitJump(chunk.OP_JUMP)

	c.PatchJump(tryJump)
	c.consume(token.CATCH, "expected 'catch' after try block")
	c.consume(token.LPAREN, "expected '(' after 'catch'")
	name := c.consume(token.IDENT, "expected catch binding name").Lexeme
	c.consume(token.RPAREN, "expected ')' after catch binding")

	c.beginScope()
	c.DefineVar(name, false)
	c.statement()
	c.endScope()

	c.PatchJump(doneJump)
}

// deferStatement registers a statement to run in LIFO order when the
// enclosing scope exits (spec.md §4.3), rather than emitting it inline.
// The replay is emitted at compile time on the normal exit and before
// each break/continue/return that leaves the scope; a throw that unwinds
// past the scope does not run it.
func (c *Compiler) deferStatement() {
	start := c.pos
	c.skipStatementTokens()
	c.registerDefer(func(c *Compiler) {
		saved := c.pos
		c.pos = start
		c.statement()
		c.pos = saved
	})
}

// skipStatementTokens advances the cursor over one statement's worth of
// tokens without emitting anything, so deferStatement can record the
// span and replay it later via c.statement() from the recorded start.
func (c *Compiler) skipStatementTokens() {
	depth := 0
	if c.check(token.LBRACE) {
		for {
			switch c.peek().Kind {
			case token.EOF:
				return
			case token.LBRACE:
				depth++
			case token.RBRACE:
				depth--
				c.advance()
				if depth == 0 {
					return
				}
				continue
			}
			c.advance()
		}
	}
	for {
		switch c.peek().Kind {
		case token.EOF:
			return
		case token.LBRACE, token.LPAREN, token.LBRACKET:
			depth++
		case token.RBRACE, token.RPAREN, token.RBRACKET:
			depth--
		case token.SEMICOLON:
			if depth <= 0 {
				c.advance()
				return
			}
		}
		c.advance()
	}
}

func (c *Compiler) importStatement() {
	if c.check(token.STRING) {
		path := c.advance().Literal
		c.emitConstant(value.FromObject(c.Intern(path)))
		c.EmitOp(chunk.OP_IMPORT_MODULE)
		c.consume(token.SEMICOLON, "expected ';' after import")
		return
	}
	name := c.consume(token.IDENT, "expected a binding name or a module path string").Lexeme
	c.consume(token.FROM, "expected 'from' after import binding")
	path := c.consume(token.STRING, "expected a module path string").Literal
	pathIdx := c.MakeConstant(value.FromObject(c.Intern(path)))
	c.EmitOp(chunk.OP_IMPORT)
	c.EmitU16(pathIdx)
	c.DefineVar(name, false)
	c.consume(token.SEMICOLON, "expected ';' after import")
}

func (c *Compiler) exportStatement() {
	if c.match(token.DEFAULT) {
		c.parseExpression()
		c.tcPop()
		nameIdx := c.MakeConstant(value.FromObject(c.Intern("default")))
		c.EmitOp(chunk.OP_EXPORT_VALUE)
		c.EmitU16(nameIdx)
		c.consume(token.SEMICOLON, "expected ';' after exported default value")
		return
	}
	if c.match(token.LET) || c.match(token.CONST) {
		isConst := c.previous().Kind == token.CONST
		name := c.consume(token.IDENT, "expected variable name").Lexeme
		c.consume(token.ASSIGN, "expected '=' in exported declaration")
		c.parseExpression()
		c.tcPop()
		c.DefineVar(name, isConst)
		nameIdx := c.MakeConstant(value.FromObject(c.Intern(name)))
		c.EmitOp(chunk.OP_EXPORT)
		c.EmitU16(nameIdx)
		c.consume(token.SEMICOLON, "expected ';' after exported declaration")
		return
	}
	if c.match(token.LBRACE) {
		names := []string{c.consume(token.IDENT, "expected an exported name").Lexeme}
		for c.match(token.COMMA) {
			names = append(names, c.consume(token.IDENT, "expected an exported name").Lexeme)
		}
		c.consume(token.RBRACE, "expected '}' after exported name list")
		c.consume(token.FROM, "expected 'from' after re-exported name list")
		path := c.consume(token.STRING, "expected a module path string").Literal
		pathIdx := c.MakeConstant(value.FromObject(c.Intern(path)))
		for _, name := range names {
			nameIdx := c.MakeConstant(value.FromObject(c.Intern(name)))
			c.EmitOp(chunk.OP_EXPORT_FROM)
			c.EmitU16(pathIdx)
			c.EmitU16(nameIdx)
		}
		c.consume(token.SEMICOLON, "expected ';' after re-export")
		return
	}
	name := c.consume(token.IDENT, "expected an exported name").Lexeme
	nameIdx := c.MakeConstant(value.FromObject(c.Intern(name)))
	c.EmitOp(chunk.OP_EXPORT)
	c.EmitU16(nameIdx)
	c.consume(token.SEMICOLON, "expected ';' after export")
}

func (c *Compiler) privateStatement() {
	name := c.consume(token.IDENT, "expected a private name").Lexeme
	nameIdx := c.MakeConstant(value.FromObject(c.Intern(name)))
	c.EmitOp(chunk.OP_PRIVATE)
	c.EmitU16(nameIdx)
	c.consume(token.SEMICOLON, "expected ';' after private")
}
