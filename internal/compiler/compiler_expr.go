package compiler

import (
	"strconv"

	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/token"
	"github.com/erkao-lang/erkao/internal/typecheck"
	"github.com/erkao-lang/erkao/internal/value"
)

func (c *Compiler) tcPush(t typecheck.Tag) {
	if c.typeChecker != nil {
		c.typeChecker.Push(t)
	}
}

func (c *Compiler) tcPop() typecheck.Tag {
	if c.typeChecker != nil {
		return c.typeChecker.Pop()
	}
	return typecheck.Unknown
}

func parseNumber(c *Compiler, _ bool) {
	tok := c.previous()
	n, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		c.errorAt(tok, "invalid number literal")
		return
	}
	c.emitConstant(value.Number(n))
	if n == float64(int64(n)) {
		c.tcPush(typecheck.Int)
	} else {
		c.tcPush(typecheck.Float)
	}
}

func parseString(c *Compiler, _ bool) {
	tok := c.previous()
	c.emitConstant(value.FromObject(c.Intern(tok.Literal)))
	c.tcPush(typecheck.Str)
}

func parseLiteralBool(c *Compiler, _ bool) {
	if c.previous().Kind == token.TRUE {
		c.EmitOp(chunk.OP_TRUE)
	} else {
		c.EmitOp(chunk.OP_FALSE)
	}
	c.tcPush(typecheck.Bool)
}

func parseNull(c *Compiler, _ bool) {
	c.EmitOp(chunk.OP_NULL)
	c.tcPush(typecheck.Null)
}

func parseThis(c *Compiler, _ bool) {
	nameIdx := c.MakeConstant(value.FromObject(c.Intern("this")))
	c.EmitOp(chunk.OP_GET_THIS)
	c.EmitU16(nameIdx)
	c.tcPush(typecheck.Unknown)
}

func parseVariable(c *Compiler, canAssign bool) {
	name := c.previous().Lexeme
	if canAssign && c.match(token.ASSIGN) {
		c.parseExpression()
		rhs := c.tcPop()
		c.setVar(name)
		c.tcPush(rhs)
		return
	}
	c.GetVar(name)
	c.tcPush(typecheck.Unknown)
}

func parseGrouping(c *Compiler, _ bool) {
	c.parseExpression()
	c.consume(token.RPAREN, "expected ')' after expression")
}

func parseUnary(c *Compiler, _ bool) {
	op := c.previous()
	c.parsePrecedence(PrecUnary)
	operand := c.tcPop()
	switch op.Kind {
	case token.MINUS:
		c.EmitOp(chunk.OP_NEGATE)
		c.tcPush(operand)
	case token.BANG:
		c.EmitOp(chunk.OP_NOT)
		c.tcPush(typecheck.Bool)
	}
}

func parseBinary(c *Compiler, _ bool) {
	op := c.previous()
	rule := c.rule(op.Kind)
	c.parsePrecedence(rule.Prec + 1)

	right := c.tcPop()
	left := c.tcPop()

	var result typecheck.Tag
	switch op.Kind {
	case token.PLUS:
		c.EmitOp(chunk.OP_ADD)
		result = left
	case token.MINUS:
		c.EmitOp(chunk.OP_SUBTRACT)
		result = left
	case token.STAR:
		c.EmitOp(chunk.OP_MULTIPLY)
		result = left
	case token.SLASH:
		c.EmitOp(chunk.OP_DIVIDE)
		result = typecheck.Float
	case token.EQ:
		c.EmitOp(chunk.OP_EQUAL)
		result = typecheck.Bool
	case token.NOT_EQ:
		c.EmitOp(chunk.OP_EQUAL)
		c.EmitOp(chunk.OP_NOT)
		result = typecheck.Bool
	case token.GT:
		c.EmitOp(chunk.OP_GREATER)
		result = typecheck.Bool
	case token.GE:
		c.EmitOp(chunk.OP_GREATER_EQUAL)
		result = typecheck.Bool
	case token.LT:
		c.EmitOp(chunk.OP_LESS)
		result = typecheck.Bool
	case token.LE:
		c.EmitOp(chunk.OP_LESS_EQUAL)
		result = typecheck.Bool
	}
	c.tryFoldBinary(op.Kind)
	c.tcPush(result)
}

// tryFoldBinary implements spec.md §8's constant-folding law: a binary op
// whose two operands were each just pushed by an immediately-preceding
// CONSTANT instruction is replaced, in place, by a single CONSTANT
// pushing the already-computed result (spec.md's Non-goals permit
// "optimising beyond local peepholing and constant folding" — this is
// exactly that peephole, not a general optimiser).
func (c *Compiler) tryFoldBinary(op token.Kind) {
	code := c.chunk.Code
	n := len(code)
	const instrLen = 3 // OP_CONSTANT + u16
	if n < 2*instrLen+1 {
		return
	}
	opByte := code[n-1]
	if chunk.Opcode(opByte) != foldableOpcode(op) {
		return
	}
	rhsStart := n - 1 - instrLen
	lhsStart := rhsStart - instrLen
	if lhsStart < 0 {
		return
	}
	if chunk.Opcode(code[rhsStart]) != chunk.OP_CONSTANT || chunk.Opcode(code[lhsStart]) != chunk.OP_CONSTANT {
		return
	}
	lhsIdx := c.chunk.ReadU16(lhsStart + 1)
	rhsIdx := c.chunk.ReadU16(rhsStart + 1)
	lhs := c.chunk.Constants[lhsIdx]
	rhs := c.chunk.Constants[rhsIdx]

	if op == token.PLUS && lhs.Is(value.KindString) && rhs.Is(value.KindString) {
		ls := lhs.AsObject().(*value.String)
		rs := rhs.AsObject().(*value.String)
		c.chunk.TruncateTo(lhsStart)
		c.emitConstant(value.FromObject(c.Intern(string(ls.Bytes) + string(rs.Bytes))))
		return
	}

	folded, ok := foldConstants(op, lhs, rhs)
	if !ok {
		return
	}
	c.chunk.TruncateTo(lhsStart)
	c.emitConstant(folded)
}

func foldableOpcode(op token.Kind) chunk.Opcode {
	switch op {
	case token.PLUS:
		return chunk.OP_ADD
	case token.MINUS:
		return chunk.OP_SUBTRACT
	case token.STAR:
		return chunk.OP_MULTIPLY
	case token.SLASH:
		return chunk.OP_DIVIDE
	case token.EQ:
		return chunk.OP_EQUAL
	case token.GT:
		return chunk.OP_GREATER
	case token.GE:
		return chunk.OP_GREATER_EQUAL
	case token.LT:
		return chunk.OP_LESS
	case token.LE:
		return chunk.OP_LESS_EQUAL
	default:
		return chunk.OP_GC // sentinel: never matches a real fold site
	}
}

func foldConstants(op token.Kind, lhs, rhs value.Value) (value.Value, bool) {
	if lhs.IsNumber() && rhs.IsNumber() {
		a, b := lhs.AsNumber(), rhs.AsNumber()
		switch op {
		case token.PLUS:
			return value.Number(a + b), true
		case token.MINUS:
			return value.Number(a - b), true
		case token.STAR:
			return value.Number(a * b), true
		case token.SLASH:
			if b == 0 {
				return value.Value{}, false
			}
			return value.Number(a / b), true
		case token.EQ:
			return value.Bool(a == b), true
		case token.GT:
			return value.Bool(a > b), true
		case token.GE:
			return value.Bool(a >= b), true
		case token.LT:
			return value.Bool(a < b), true
		case token.LE:
			return value.Bool(a <= b), true
		}
	}
	return value.Value{}, false
}

// parseAnd/parseOr implement short-circuit evaluation. JUMP_IF_FALSE and
// the jump-if-true idiom (negate-and-jump would cost an extra NOT) both
// peek rather than pop per spec.md's Design Note, so the deciding operand
// stays on the stack as the expression's result when it short-circuits.
func parseAnd(c *Compiler, _ bool) {
	endJump := c.EmitJump(chunk.OP_JUMP_IF_FALSE)
	c.EmitOp(chunk.OP_POP)
	c.parsePrecedence(PrecAnd)
	c.PatchJump(endJump)
	c.tcPop()
	c.tcPop()
	c.tcPush(typecheck.Bool)
}

func parseOr(c *Compiler, _ bool) {
	elseJump := c.EmitJump(chunk.OP_JUMP_IF_FALSE)
	endJump := c.EmitJump(chunk.OP_JUMP)
	c.PatchJump(elseJump)
	c.EmitOp(chunk.OP_POP)
	c.parsePrecedence(PrecOr)
	c.PatchJump(endJump)
	c.tcPop()
	c.tcPop()
	c.tcPush(typecheck.Bool)
}

func parseDot(c *Compiler, canAssign bool) {
	c.tcPop()
	name := c.consume(token.IDENT, "expected property name after '.'").Lexeme
	nameIdx := c.MakeConstant(value.FromObject(c.Intern(name)))
	if canAssign && c.match(token.ASSIGN) {
		c.parseExpression()
		val := c.tcPop()
		slot := c.NewInlineCacheSlot()
		c.EmitOp(chunk.OP_SET_PROPERTY)
		c.EmitU16(nameIdx)
		c.EmitU16(slot)
		c.tcPush(val)
		return
	}
	if c.match(token.LPAREN) {
		argc := c.parseArgList()
		slot := c.NewInlineCacheSlot()
		c.EmitOp(chunk.OP_INVOKE)
		c.EmitU16(nameIdx)
		c.EmitU8(byte(argc))
		c.EmitU16(slot)
		c.tcPush(typecheck.Unknown)
		return
	}
	slot := c.NewInlineCacheSlot()
	c.EmitOp(chunk.OP_GET_PROPERTY)
	c.EmitU16(nameIdx)
	c.EmitU16(slot)
	c.tcPush(typecheck.Unknown)
}

func parseOptionalDot(c *Compiler, _ bool) {
	c.tcPop()
	name := c.consume(token.IDENT, "expected property name after '?.'").Lexeme
	nameIdx := c.MakeConstant(value.FromObject(c.Intern(name)))
	slot := c.NewInlineCacheSlot()
	c.EmitOp(chunk.OP_GET_PROPERTY_OPTIONAL)
	c.EmitU16(nameIdx)
	c.EmitU16(slot)
	c.tcPush(typecheck.Unknown)
}

func parseIndex(c *Compiler, canAssign bool) {
	c.tcPop() // collection
	c.parseExpression()
	c.tcPop()
	c.consume(token.RBRACKET, "expected ']' after index")
	if canAssign && c.match(token.ASSIGN) {
		c.parseExpression()
		val := c.tcPop()
		c.EmitOp(chunk.OP_SET_INDEX)
		c.tcPush(val)
		return
	}
	c.EmitOp(chunk.OP_GET_INDEX)
	c.tcPush(typecheck.Unknown)
}

func parseOptionalIndex(c *Compiler, _ bool) {
	c.tcPop()
	c.parseExpression()
	c.tcPop()
	c.consume(token.RBRACKET, "expected ']' after index")
	c.EmitOp(chunk.OP_GET_INDEX_OPTIONAL)
	c.tcPush(typecheck.Unknown)
}

// parseArgList parses a parenthesized, comma-separated argument list
// whose opening '(' has already been consumed, and returns its length.
func (c *Compiler) parseArgList() int {
	argc := 0
	if !c.check(token.RPAREN) {
		for {
			c.parseExpression()
			c.tcPop()
			argc++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expected ')' after arguments")
	return argc
}

func parseCall(c *Compiler, _ bool) {
	c.tcPop() // callee
	argc := c.parseArgList()
	c.EmitOp(chunk.OP_CALL)
	c.EmitU8(byte(argc))
	c.tcPush(typecheck.Unknown)
}

func parseArrayLiteral(c *Compiler, _ bool) {
	n := 0
	if !c.check(token.RBRACKET) {
		for {
			c.parseExpression()
			c.tcPop()
			n++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RBRACKET, "expected ']' after array elements")
	c.EmitOp(chunk.OP_ARRAY)
	c.EmitU16(uint16(n))
	c.tcPush(typecheck.ArrayT)
}

// parseMapLiteral parses `{ key: value, ... }` where key is an
// identifier or a string literal, per spec.md §4.3's pattern grammar
// (map keys and pattern map keys share this "identifier or string are
// equivalent" rule).
func parseMapLiteral(c *Compiler, _ bool) {
	n := 0
	if !c.check(token.RBRACE) {
		for {
			var key string
			switch {
			case c.check(token.IDENT):
				key = c.advance().Lexeme
			case c.check(token.STRING):
				key = c.advance().Literal
			default:
				c.errorAt(c.peek(), "expected map key")
				return
			}
			idx := c.MakeConstant(value.FromObject(c.Intern(key)))
			c.EmitOp(chunk.OP_CONSTANT)
			c.EmitU16(idx)
			c.consume(token.COLON, "expected ':' after map key")
			c.parseExpression()
			c.tcPop()
			n++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RBRACE, "expected '}' after map entries")
	c.EmitOp(chunk.OP_MAP)
	c.EmitU16(uint16(n))
	c.tcPush(typecheck.MapT)
}
