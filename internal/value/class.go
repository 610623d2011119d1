package value

import "fmt"

// Class is a user-defined class: a name and its method table. Methods are
// stored as Object rather than a concrete function type so this package
// never has to import internal/chunk, which owns the Function object that
// actually carries compiled bytecode.
type Class struct {
	hdr       GCHeader
	Name      *String
	Methods   map[string]Object
	Super     *Class
}

func NewClass(name *String, super *Class) *Class {
	return &Class{Name: name, Super: super, Methods: make(map[string]Object), hdr: GCHeader{Size: 64}}
}

func (c *Class) Kind() Kind        { return KindClass }
func (c *Class) Header() *GCHeader { return &c.hdr }
func (c *Class) Inspect() string   { return fmt.Sprintf("<class %s>", c.Name.Inspect()) }

// FindMethod resolves name through the class chain, searching this class
// before its superclass, matching ordinary single-inheritance dispatch.
func (c *Class) FindMethod(name string) (Object, bool) {
	for cur := c; cur != nil; cur = cur.Super {
		if m, ok := cur.Methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

func (c *Class) Children(dst []Value) []Value {
	dst = append(dst, FromObject(c.Name))
	for _, m := range c.Methods {
		dst = append(dst, FromObject(m))
	}
	if c.Super != nil {
		dst = append(dst, FromObject(c.Super))
	}
	return dst
}

// Instance is a live object of some Class. Fields use the same
// open-addressed Map as user-visible maps so the inline-cache slot kind
// FIELD can cache a (class, slot-index) pair and re-validate it cheaply:
// see internal/chunk's InlineCache.
type Instance struct {
	hdr    GCHeader
	Class  *Class
	Fields *Map
}

func NewInstance(vm Mutator, class *Class) *Instance {
	return &Instance{Class: class, Fields: NewMap(vm), hdr: GCHeader{Size: 32}}
}

func (i *Instance) Kind() Kind        { return KindInstance }
func (i *Instance) Header() *GCHeader { return &i.hdr }
func (i *Instance) Inspect() string   { return fmt.Sprintf("<%s instance>", i.Class.Name.Inspect()) }

func (i *Instance) Children(dst []Value) []Value {
	dst = append(dst, FromObject(i.Class))
	return i.Fields.Children(dst)
}

// BoundMethod pairs a receiver with the method Object looked up from its
// class, so calling it needs no further field lookup (spec's METHOD
// inline cache slot caches exactly this pairing).
type BoundMethod struct {
	hdr      GCHeader
	Receiver Value
	Method   Object
}

func NewBoundMethod(receiver Value, method Object) *BoundMethod {
	return &BoundMethod{Receiver: receiver, Method: method, hdr: GCHeader{Size: 40}}
}

func (b *BoundMethod) Kind() Kind        { return KindBoundMethod }
func (b *BoundMethod) Header() *GCHeader { return &b.hdr }
func (b *BoundMethod) Inspect() string   { return b.Method.Inspect() }
func (b *BoundMethod) Children(dst []Value) []Value {
	return append(dst, b.Receiver, FromObject(b.Method))
}

// EnumCtor is one variant constructor of an algebraic data type, e.g.
// Option.Some. Calling it with Arity arguments produces an Instance whose
// Fields hold the positional payload under names "0", "1", ...
type EnumCtor struct {
	hdr         GCHeader
	EnumName    *String
	VariantName *String
	Arity       int
}

func NewEnumCtor(enumName, variantName *String, arity int) *EnumCtor {
	return &EnumCtor{EnumName: enumName, VariantName: variantName, Arity: arity, hdr: GCHeader{Size: 40}}
}

func (e *EnumCtor) Kind() Kind        { return KindEnumCtor }
func (e *EnumCtor) Header() *GCHeader { return &e.hdr }
func (e *EnumCtor) Inspect() string {
	return fmt.Sprintf("<%s.%s>", e.EnumName.Inspect(), e.VariantName.Inspect())
}
func (e *EnumCtor) Children(dst []Value) []Value {
	return append(dst, FromObject(e.EnumName), FromObject(e.VariantName))
}
