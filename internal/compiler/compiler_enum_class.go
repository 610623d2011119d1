package compiler

import (
	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/token"
	"github.com/erkao-lang/erkao/internal/value"
)

// classDeclaration compiles `class Name [(Super)] { fun method(...) {} ... }`.
// A Class is a plain compile-time object (spec.md §3), built once here and
// dropped into the constant pool exactly as a Function already is — no
// dedicated CLASS/METHOD opcode is needed since nothing about building the
// method table depends on the running program's state. `init` is marked
// as the constructor; every other method binds `this` when the
// interpreter resolves it off an Instance via GET_PROPERTY.
func (c *Compiler) classDeclaration() {
	name := c.consume(token.IDENT, "expected class name").Lexeme

	var super *value.Class
	if c.match(token.LPAREN) {
		superName := c.consume(token.IDENT, "expected superclass name").Lexeme
		var ok bool
		super, ok = c.classes[superName]
		if !ok {
			c.error("unknown superclass '" + superName + "'")
		}
		c.consume(token.RPAREN, "expected ')' after superclass name")
	}

	class := value.NewClass(c.Intern(name), super)
	c.classes[name] = class

	c.consume(token.LBRACE, "expected '{' before class body")
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		methodName := c.consume(token.IDENT, "expected method name").Lexeme
		params, minArity, defaults := c.parseParams()
		isInit := methodName == "init"
		fn := c.compileFunctionBody(methodName, params, minArity, defaults, isInit)
		class.Methods[methodName] = fn
	}
	c.consume(token.RBRACE, "expected '}' after class body")

	idx := c.MakeConstant(value.FromObject(class))
	c.EmitOp(chunk.OP_CONSTANT)
	c.EmitU16(idx)
	c.DefineVar(name, false)
}

// enumDeclaration compiles `enum Name { V1, V2(a, b), ... }`. Every
// variant becomes an EnumCtor constant (spec.md §3); zero-arity variants
// still construct one with Arity 0 rather than an Instance directly,
// since building an Instance needs a live Mutator the compiler doesn't
// have — the interpreter is responsible for auto-invoking a zero-arity
// EnumCtor into a singleton Instance the first time it is read off the
// enum's namespace map (documented in DESIGN.md). The namespace itself
// is built at runtime via OP_MAP so it participates in the GC exactly
// like a user-written map literal.
func (c *Compiler) enumDeclaration() {
	name := c.consume(token.IDENT, "expected enum name").Lexeme
	enumNameObj := c.Intern(name)

	c.consume(token.LBRACE, "expected '{' before enum body")
	pairs := 0
	var variants []string
	seen := make(map[string]bool)
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		variantName := c.consume(token.IDENT, "expected variant name").Lexeme
		if seen[variantName] {
			c.error("duplicate enum variant '" + variantName + "'")
		}
		seen[variantName] = true
		variants = append(variants, variantName)
		arity := 0
		if c.match(token.LPAREN) {
			if !c.check(token.RPAREN) {
				for {
					c.consume(token.IDENT, "expected field name")
					arity++
					if !c.match(token.COMMA) {
						break
					}
				}
			}
			c.consume(token.RPAREN, "expected ')' after variant fields")
		}

		keyIdx := c.MakeConstant(value.FromObject(c.Intern(variantName)))
		c.EmitOp(chunk.OP_CONSTANT)
		c.EmitU16(keyIdx)

		ctor := value.NewEnumCtor(enumNameObj, c.Intern(variantName), arity)
		valIdx := c.MakeConstant(value.FromObject(ctor))
		c.EmitOp(chunk.OP_CONSTANT)
		c.EmitU16(valIdx)

		pairs++
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RBRACE, "expected '}' after enum body")

	c.enums[name] = variants
	c.EmitOp(chunk.OP_MAP)
	c.EmitU16(uint16(pairs))
	c.DefineVar(name, true)
}

// knownEnumVariants reports the declared variant names of enumName, or
// nil if no enum by that name was compiled in this program (in which
// case matchStatement skips the exhaustiveness check entirely).
func (c *Compiler) knownEnumVariants(enumName string) []string {
	return c.enums[enumName]
}
