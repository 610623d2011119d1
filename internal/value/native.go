package value

import "fmt"

// Native wraps a Go function as a callable Erkao value. Arity of -1 marks
// a variadic native, matching the corpus's convention for builtins.
type Native struct {
	hdr   GCHeader
	Name  *String
	Arity int
	Fn    func(args []Value) (Value, error)
}

func NewNative(name *String, arity int, fn func(args []Value) (Value, error)) *Native {
	return &Native{Name: name, Arity: arity, Fn: fn, hdr: GCHeader{Generation: Old, Size: 48}}
}

func (n *Native) Kind() Kind                   { return KindNative }
func (n *Native) Header() *GCHeader            { return &n.hdr }
func (n *Native) Inspect() string              { return fmt.Sprintf("<native %s>", n.Name.Inspect()) }
func (n *Native) Children(dst []Value) []Value { return append(dst, FromObject(n.Name)) }
