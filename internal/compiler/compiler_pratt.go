package compiler

import "github.com/erkao-lang/erkao/internal/token"

// defaultRules builds the base Pratt table (spec.md §4.3 / §9: "a dense
// table indexed by token kind; plug-ins layer by overwrite"). Grounded on
// the precedence-map shape of the corpus's own precedence-climbing
// parsers (kanso's parsePrattExpr/binaryPrecedence,
// sentra's parser.precedence), generalized here into the classic
// {prefix, infix, precedence} record per entry since this compiler fuses
// emission directly into the climb instead of building an ast.Expr.
func defaultRules() map[token.Kind]*Rule {
	r := make(map[token.Kind]*Rule)

	set := func(k token.Kind, prefix PrefixFn, infix InfixFn, prec Precedence) {
		r[k] = &Rule{Prefix: prefix, Infix: infix, Prec: prec}
	}

	set(token.NUMBER, parseNumber, nil, PrecNone)
	set(token.STRING, parseString, nil, PrecNone)
	set(token.TRUE, parseLiteralBool, nil, PrecNone)
	set(token.FALSE, parseLiteralBool, nil, PrecNone)
	set(token.NULL, parseNull, nil, PrecNone)
	set(token.IDENT, parseVariable, nil, PrecNone)
	set(token.THIS, parseThis, nil, PrecNone)
	set(token.LPAREN, parseGrouping, parseCall, PrecCall)
	set(token.LBRACKET, parseArrayLiteral, parseIndex, PrecCall)
	set(token.OPTIONAL_LBRACKET, nil, parseOptionalIndex, PrecCall)
	set(token.LBRACE, parseMapLiteral, nil, PrecNone)
	set(token.FUN, parseFunctionLiteral, nil, PrecNone)
	set(token.YIELD, parseYield, nil, PrecNone)

	set(token.BANG, parseUnary, nil, PrecUnary)
	set(token.MINUS, parseUnary, parseBinary, PrecTerm)
	set(token.PLUS, nil, parseBinary, PrecTerm)
	set(token.STAR, nil, parseBinary, PrecFactor)
	set(token.SLASH, nil, parseBinary, PrecFactor)

	set(token.EQ, nil, parseBinary, PrecEquality)
	set(token.NOT_EQ, nil, parseBinary, PrecEquality)
	set(token.GT, nil, parseBinary, PrecComparison)
	set(token.GE, nil, parseBinary, PrecComparison)
	set(token.LT, nil, parseBinary, PrecComparison)
	set(token.LE, nil, parseBinary, PrecComparison)

	set(token.AND, nil, parseAnd, PrecAnd)
	set(token.OR, nil, parseOr, PrecOr)

	set(token.DOT, nil, parseDot, PrecCall)
	set(token.OPTIONAL_DOT, nil, parseOptionalDot, PrecCall)

	return r
}

func (c *Compiler) rule(k token.Kind) *Rule {
	if r, ok := c.rules[k]; ok {
		return r
	}
	return &Rule{Prec: PrecNone}
}

// RegisterPrefixRule installs or overwrites the prefix handler for k
// (spec.md §6 plug-in surface, part a). Idempotent: calling it twice with
// the same arguments leaves the table in the same state.
func (c *Compiler) RegisterPrefixRule(k token.Kind, fn PrefixFn, prec Precedence) {
	existing, ok := c.rules[k]
	if !ok {
		existing = &Rule{}
		c.rules[k] = existing
	}
	existing.Prefix = fn
	if prec != PrecNone {
		existing.Prec = prec
	}
}

// RegisterInfixRule installs or overwrites the infix handler for k.
func (c *Compiler) RegisterInfixRule(k token.Kind, fn InfixFn, prec Precedence) {
	existing, ok := c.rules[k]
	if !ok {
		existing = &Rule{}
		c.rules[k] = existing
	}
	existing.Infix = fn
	existing.Prec = prec
}

// RegisterStatementHook installs a named statement hook. Re-registering
// the same name overwrites rather than duplicating it, keeping
// registration idempotent.
func (c *Compiler) RegisterStatementHook(name string, hook StatementHook) {
	c.statementHooks[name] = hook
}

func (c *Compiler) RegisterExpressionHook(name string, hook ExpressionHook) {
	c.expressionHooks[name] = hook
}

func (c *Compiler) RegisterTypeSeed(name string, hook TypeSeedHook) {
	c.typeSeedHooks[name] = hook
}

// parseExpression parses and emits one expression at PrecAssignment (the
// lowest expression precedence; statement-level expressions and operand
// positions both enter here).
func (c *Compiler) parseExpression() {
	c.parsePrecedence(PrecAssignment)
}

// parsePrecedence is the Pratt climb: consume a prefix, then keep folding
// in infix operators whose precedence is at or above prec.
func (c *Compiler) parsePrecedence(prec Precedence) {
	for _, hook := range c.expressionHooks {
		if hook(c, prec <= PrecAssignment) {
			c.continuePrecedence(prec)
			return
		}
	}

	tok := c.advance()
	rule := c.rule(tok.Kind)
	if rule.Prefix == nil {
		c.errorAt(tok, "expected an expression")
		return
	}
	canAssign := prec <= PrecAssignment
	rule.Prefix(c, canAssign)
	c.continuePrecedence(prec)
}

func (c *Compiler) continuePrecedence(prec Precedence) {
	for prec <= c.rule(c.peek().Kind).Prec {
		tok := c.advance()
		rule := c.rule(tok.Kind)
		if rule.Infix == nil {
			c.errorAt(tok, "unexpected token in expression")
			return
		}
		rule.Infix(c, prec <= PrecAssignment)
	}
}
