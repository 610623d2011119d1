package compiler

import (
	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/token"
	"github.com/erkao-lang/erkao/internal/typecheck"
	"github.com/erkao-lang/erkao/internal/value"
)

// defaultSite records where, in the token stream, one parameter's
// default-value expression starts, so the function prologue can replay
// it later (spec.md §4.3's "Default arguments" prologue needs the
// default expression compiled *after* ARG_COUNT/LESS/JUMP_IF_FALSE, even
// though it is written inline in the parameter list).
type defaultSite struct {
	paramIndex int
	tokenPos   int
}

// parseParams consumes `( ident (= expr)? , ... )`, already positioned
// just before the opening '('. It returns the parameter names, the
// min-arity (first index with a default, or len(params) if none), and
// the recorded default-value token positions for later replay.
func (c *Compiler) parseParams() ([]string, int, []defaultSite) {
	c.consume(token.LPAREN, "expected '(' after function name")
	var params []string
	var defaults []defaultSite
	minArity := -1
	if !c.check(token.RPAREN) {
		for {
			name := c.consume(token.IDENT, "expected parameter name").Lexeme
			params = append(params, name)
			if c.match(token.ASSIGN) {
				if minArity == -1 {
					minArity = len(params) - 1
				}
				defaults = append(defaults, defaultSite{paramIndex: len(params) - 1, tokenPos: c.pos})
				c.skipBalancedUntilCommaOrParen()
			}
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expected ')' after parameters")
	if minArity == -1 {
		minArity = len(params)
	}
	return params, minArity, defaults
}

// skipBalancedUntilCommaOrParen advances the cursor over one default
// expression without emitting anything, stopping just before the
// top-level comma or closing paren that ends it.
func (c *Compiler) skipBalancedUntilCommaOrParen() {
	depth := 0
	for {
		switch c.peek().Kind {
		case token.EOF:
			return
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			if depth == 0 {
				return
			}
			depth--
		case token.COMMA:
			if depth == 0 {
				return
			}
		}
		c.advance()
	}
}

// compileFunctionBody compiles the body of a `fun` (named or anonymous),
// the cursor positioned just after the parameter list's ')'. It returns
// the compiled *chunk.Function and resynchronizes the caller's cursor to
// wherever the nested compile stopped.
func (c *Compiler) compileFunctionBody(name string, params []string, minArity int, defaults []defaultSite, isInitializer bool) *chunk.Function {
	fc := &Compiler{
		toks:            c.toks,
		pos:             c.pos,
		chunk:           chunk.New(c.chunk.File),
		interner:        c.interner,
		rules:           c.rules,
		statementHooks:  c.statementHooks,
		expressionHooks: c.expressionHooks,
		typeSeedHooks:   c.typeSeedHooks,
		classes:         c.classes,
		enums:           c.enums,
		enclosing:       c,
	}
	fc.deferStack = append(fc.deferStack, nil)
	if c.typeChecker != nil {
		fc.typeChecker = typecheck.NewChecker()
	}

	fc.consume(token.LBRACE, "expected '{' before function body")
	fc.isGenerator = scanBodyForYield(fc.toks, fc.pos)

	fc.beginScope()
	if fc.isGenerator {
		fc.emitGeneratorPrologue()
	}
	for _, d := range defaults {
		fc.emitDefaultPrologue(d.paramIndex, params[d.paramIndex], d.tokenPos)
	}

	for !fc.check(token.RBRACE) && !fc.check(token.EOF) {
		fc.declaration()
		if fc.panicMode {
			fc.synchronize()
		}
	}
	fc.consume(token.RBRACE, "expected '}' after function body")
	if fc.isGenerator {
		// Falling off the end of a generator returns __yield when a yield
		// ran, the same rule returnStatement applies, and null otherwise.
		fc.GetVar("__yield_used")
		noYield := fc.EmitJump(chunk.OP_JUMP_IF_FALSE)
		fc.EmitOp(chunk.OP_POP)
		fc.GetVar("__yield")
		fc.exitScopesTo(0)
		fc.EmitOp(chunk.OP_RETURN)
		fc.PatchJump(noYield)
		fc.EmitOp(chunk.OP_POP)
	}
	fc.endScope()
	fc.EmitOp(chunk.OP_NULL)
	fc.EmitOp(chunk.OP_RETURN)

	c.pos = fc.pos
	c.errors = append(c.errors, fc.errors...)

	var fnName *value.String
	if name != "" {
		fnName = c.Intern(name)
	}
	paramObjs := make([]*value.String, len(params))
	for i, p := range params {
		paramObjs[i] = c.Intern(p)
	}
	fn := chunk.NewFunction(fnName, paramObjs, minArity, fc.chunk)
	fn.IsInitializer = isInitializer
	return fn
}

// emitDefaultPrologue emits, for one defaulted parameter: `if
// ARG_COUNT < paramIndex+1 { paramName = <default expr>; }` exactly as
// spec.md §4.3 describes, replaying the default expression's tokens from
// where they were recorded during parameter parsing.
func (c *Compiler) emitDefaultPrologue(paramIndex int, paramName string, exprTokenPos int) {
	c.EmitOp(chunk.OP_ARG_COUNT)
	c.emitConstant(value.Number(float64(paramIndex + 1)))
	c.EmitOp(chunk.OP_LESS)
	skip := c.EmitJump(chunk.OP_JUMP_IF_FALSE)
	c.EmitOp(chunk.OP_POP)

	saved := c.pos
	c.pos = exprTokenPos
	c.parseExpression()
	c.tcPop()
	c.pos = saved

	c.setVar(paramName)
	c.EmitOp(chunk.OP_POP)
	end := c.EmitJump(chunk.OP_JUMP)
	c.PatchJump(skip)
	c.EmitOp(chunk.OP_POP)
	c.PatchJump(end)
}

// scanBodyForYield reports whether a function body (cursor positioned
// just after its opening '{') contains a `yield` at this function's own
// nesting level, skipping over any nested function literal's body
// entirely since that function's generator-ness is independent.
func scanBodyForYield(toks []token.Token, pos int) bool {
	depth := 0
	for pos < len(toks) {
		switch toks[pos].Kind {
		case token.EOF:
			return false
		case token.YIELD:
			return true
		case token.FUN:
			pos = skipNestedFunction(toks, pos+1)
		case token.LBRACE:
			depth++
			pos++
		case token.RBRACE:
			if depth == 0 {
				return false
			}
			depth--
			pos++
		default:
			pos++
		}
	}
	return false
}

// skipNestedFunction advances past a nested function literal's optional
// name, parameter list, and body, returning the position just after its
// closing '}'.
func skipNestedFunction(toks []token.Token, pos int) int {
	if pos < len(toks) && toks[pos].Kind == token.IDENT {
		pos++
	}
	if pos < len(toks) && toks[pos].Kind == token.LPAREN {
		depth := 0
		for pos < len(toks) {
			switch toks[pos].Kind {
			case token.LPAREN:
				depth++
			case token.RPAREN:
				depth--
				pos++
				if depth == 0 {
					goto afterParams
				}
				continue
			}
			pos++
		}
	}
afterParams:
	if pos < len(toks) && toks[pos].Kind == token.LBRACE {
		depth := 0
		for pos < len(toks) {
			switch toks[pos].Kind {
			case token.LBRACE:
				depth++
			case token.RBRACE:
				depth--
				pos++
				if depth == 0 {
					return pos
				}
				continue
			}
			pos++
		}
	}
	return pos
}

// emitGeneratorPrologue defines the hidden `__yield`/`__yield_used`
// locals every generator function needs (spec.md §4.3's "Yield-as-
// generator lowering").
func (c *Compiler) emitGeneratorPrologue() {
	c.EmitOp(chunk.OP_ARRAY)
	c.EmitU16(0)
	c.DefineVar("__yield", false)
	c.EmitOp(chunk.OP_FALSE)
	c.DefineVar("__yield_used", false)
}

// parseYield lowers `yield e` per spec.md §4.3: mark __yield_used,
// append e to __yield, and leave e itself as the yield expression's
// value. ARRAY_APPEND expects the array pushed before the value (pop
// value, pop array, push array), so the evaluated expression is stashed
// in a hidden temp first to get the push order right without a SWAP
// opcode.
func parseYield(c *Compiler, _ bool) {
	if !c.check(token.SEMICOLON) {
		c.parseExpression()
		c.tcPop()
	} else {
		c.EmitOp(chunk.OP_NULL)
	}
	tmp := c.FreshTemp()
	c.DefineVar(tmp, true)

	c.EmitOp(chunk.OP_TRUE)
	c.setVar("__yield_used")
	c.EmitOp(chunk.OP_POP)

	c.GetVar("__yield")
	c.GetVar(tmp)
	c.EmitOp(chunk.OP_ARRAY_APPEND)
	c.setVar("__yield")
	c.EmitOp(chunk.OP_POP)

	c.GetVar(tmp)
	c.tcPush(typecheck.Null)
}

// parseFunctionLiteral compiles `fun (params) { body }` as an
// expression, pushing a CLOSURE over the freshly compiled prototype.
func parseFunctionLiteral(c *Compiler, _ bool) {
	params, minArity, defaults := c.parseParams()
	fn := c.compileFunctionBody("", params, minArity, defaults, false)
	idx := c.MakeConstant(value.FromObject(fn))
	c.EmitOp(chunk.OP_CLOSURE)
	c.EmitU16(idx)
	c.tcPush(typecheck.FnT)
}
