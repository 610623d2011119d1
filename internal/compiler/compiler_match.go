package compiler

import (
	"strconv"

	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/pattern"
	"github.com/erkao-lang/erkao/internal/token"
	"github.com/erkao-lang/erkao/internal/value"
)

// parsePattern parses one structural pattern per spec.md §4.3's grammar:
// wildcard `_`, pin `^name`, a literal, `[elems.. ..rest]`,
// `{key: pat, .. ..rest}`, `Enum.Variant(args...)`, or a plain binding.
// Array/map rest bindings use two consecutive '.' tokens (`..name`)
// since the lexer has no dedicated ellipsis token.
func (c *Compiler) parsePattern() *pattern.Node {
	switch {
	case c.check(token.UNDERSCORE):
		c.advance()
		return &pattern.Node{Kind: pattern.Wildcard}
	case c.match(token.CARET):
		name := c.consume(token.IDENT, "expected identifier after '^'").Lexeme
		return &pattern.Node{Kind: pattern.Pin, Name: name}
	case c.check(token.NUMBER):
		tok := c.advance()
		n, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			c.errorAt(tok, "invalid number literal in pattern")
		}
		return &pattern.Node{Kind: pattern.Literal, Literal: value.Number(n)}
	case c.check(token.STRING):
		tok := c.advance()
		return &pattern.Node{Kind: pattern.Literal, Literal: value.FromObject(c.Intern(tok.Literal))}
	case c.match(token.TRUE):
		return &pattern.Node{Kind: pattern.Literal, Literal: value.Bool(true)}
	case c.match(token.FALSE):
		return &pattern.Node{Kind: pattern.Literal, Literal: value.Bool(false)}
	case c.match(token.NULL):
		return &pattern.Node{Kind: pattern.Literal, Literal: value.Null()}
	case c.match(token.LBRACKET):
		return c.parseArrayPattern()
	case c.match(token.LBRACE):
		return c.parseMapPattern()
	case c.check(token.IDENT):
		return c.parseIdentOrEnumPattern()
	default:
		c.errorAt(c.peek(), "expected a pattern")
		return &pattern.Node{Kind: pattern.Wildcard}
	}
}

func (c *Compiler) parseRestName() *string {
	name := "_"
	if c.check(token.IDENT) {
		name = c.advance().Lexeme
	} else {
		c.consume(token.UNDERSCORE, "expected a rest binding name or '_'")
	}
	return &name
}

func (c *Compiler) parseArrayPattern() *pattern.Node {
	n := &pattern.Node{Kind: pattern.Array}
	for !c.check(token.RBRACKET) {
		if c.match(token.DOT) {
			c.consume(token.DOT, "expected '..' before a rest binding")
			n.ArrayRest = c.parseRestName()
			break
		}
		n.Elems = append(n.Elems, c.parsePattern())
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RBRACKET, "expected ']' after array pattern")
	return n
}

func (c *Compiler) parseMapPattern() *pattern.Node {
	n := &pattern.Node{Kind: pattern.Map}
	for !c.check(token.RBRACE) {
		if c.match(token.DOT) {
			c.consume(token.DOT, "expected '..' before a rest binding")
			n.MapRest = c.parseRestName()
			break
		}
		var key string
		switch {
		case c.check(token.IDENT):
			key = c.advance().Lexeme
		case c.check(token.STRING):
			key = c.advance().Literal
		default:
			c.errorAt(c.peek(), "expected a map pattern key")
			return n
		}
		c.consume(token.COLON, "expected ':' after map pattern key")
		n.Entries = append(n.Entries, pattern.MapEntry{Key: key, Pattern: c.parsePattern()})
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RBRACE, "expected '}' after map pattern")
	return n
}

// parseIdentOrEnumPattern distinguishes `Enum.Variant(...)` from a plain
// binding: both start with an identifier, but only the former is
// followed by '.'.
func (c *Compiler) parseIdentOrEnumPattern() *pattern.Node {
	name := c.advance().Lexeme
	if !c.match(token.DOT) {
		return &pattern.Node{Kind: pattern.Binding, Name: name}
	}
	variant := c.consume(token.IDENT, "expected variant name after '.'").Lexeme
	n := &pattern.Node{Kind: pattern.Enum, EnumName: name, VariantName: variant}
	if c.match(token.LPAREN) {
		if !c.check(token.RPAREN) {
			for {
				n.Args = append(n.Args, c.parsePattern())
				if !c.match(token.COMMA) {
					break
				}
			}
		}
		c.consume(token.RPAREN, "expected ')' after enum pattern arguments")
	}
	return n
}

// matchStatement compiles `match (expr) { case pattern: stmt ...
// [default: stmt] }` (spec.md §8 scenario 4). Each case clause evaluates
// the scrutinee expression once (re-pushed per arm), lowers its pattern
// in AsBool mode, and jumps to the matched arm's statement; exhaustive
// enum matches are checked when every arm's pattern is an Enum variant
// of a single ADT and no default/catch-all is present.
func (c *Compiler) matchStatement() {
	c.consume(token.LPAREN, "expected '(' after 'match'")
	c.beginScope()
	scrutineeVar := c.FreshTemp()
	c.parseExpression()
	c.tcPop()
	c.DefineVar(scrutineeVar, true)
	c.consume(token.RPAREN, "expected ')' after match scrutinee")
	c.consume(token.LBRACE, "expected '{' to start match body")

	ctx := c.pushSwitchContext()
	var nodes []*pattern.Node
	var endJumps []int
	hasDefault := false

	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		if c.match(token.DEFAULT) {
			hasDefault = true
			c.consume(token.COLON, "expected ':' after 'default'")
			c.statement()
			endJumps = append(endJumps, c.EmitJump(chunk.OP_JUMP))
			continue
		}
		c.consume(token.CASE, "expected 'case' or 'default'")
		n := c.parsePattern()
		if n.Kind == pattern.Literal {
			for _, prior := range nodes {
				if prior.Kind == pattern.Literal && prior.Literal.Equal(n.Literal) {
					c.error("duplicate literal arm: " + n.Literal.Inspect())
					break
				}
			}
		}
		nodes = append(nodes, n)
		c.consume(token.COLON, "expected ':' after case pattern")

		c.GetVar(scrutineeVar)
		pc := newPatternCompiler(c)
		pc.Compile(n, pattern.AsBool)
		next := c.EmitJump(chunk.OP_JUMP_IF_FALSE)
		c.EmitOp(chunk.OP_POP)
		c.statement()
		endJumps = append(endJumps, c.EmitJump(chunk.OP_JUMP))
		c.PatchJump(next)
		c.EmitOp(chunk.OP_POP)
	}
	c.consume(token.RBRACE, "expected '}' after match body")

	if enumName, ok := singleEnumScrutinee(nodes); ok {
		if missing := pattern.CheckExhaustive(enumName, c.knownEnumVariants(enumName), nodes, hasDefault); len(missing) > 0 {
			c.error("non-exhaustive match: missing variant(s) " + joinStrings(missing))
		}
	}

	for _, j := range endJumps {
		c.PatchJump(j)
	}
	c.popContext()
	c.patchBreaks(ctx)
	c.endScope()
}

func singleEnumScrutinee(nodes []*pattern.Node) (string, bool) {
	name := ""
	for _, n := range nodes {
		if n.Kind != pattern.Enum {
			return "", false
		}
		if name == "" {
			name = n.EnumName
		} else if name != n.EnumName {
			return "", false
		}
	}
	if name == "" {
		return "", false
	}
	return name, true
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
