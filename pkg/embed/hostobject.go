package erkao

import (
	"fmt"
	"reflect"

	"github.com/erkao-lang/erkao/internal/value"
)

// hostObject wraps a Go value (typically a pointer to a struct the host
// bound by reference) so it can sit inside an Erkao value.Value without
// copying it. It implements value.HostAccessor so `receiver.field` and
// `receiver.Method(...)` reach back into the wrapped Go value through
// reflection; mutating a field through a bound method is visible on the
// Go side the same way it would be through any other pointer receiver.
type hostObject struct {
	hdr     value.GCHeader
	goValue interface{}
	m       *marshaller
}

func newHostObject(m *marshaller, v interface{}) *hostObject {
	return &hostObject{goValue: v, m: m, hdr: value.GCHeader{Generation: value.Old, Size: 16}}
}

func (h *hostObject) Kind() value.Kind        { return value.KindHostObject }
func (h *hostObject) Header() *value.GCHeader { return &h.hdr }
func (h *hostObject) Inspect() string         { return fmt.Sprintf("<host %T>", h.goValue) }

// Children reports no outgoing edges: whatever h.goValue references is
// Go-heap state the collector never traces.
func (h *hostObject) Children(dst []value.Value) []value.Value { return dst }

// HostGet resolves name against the wrapped Go value: first as a
// method, then as an exported struct field (through one level of pointer
// indirection). A method resolves to a *value.Native closing over the
// receiver, so `obj.Method(args)` compiles and runs as an ordinary call
// once OP_GET_PROPERTY has produced it.
func (h *hostObject) HostGet(name string) (value.Value, bool) {
	rv := reflect.ValueOf(h.goValue)

	if method := rv.MethodByName(name); method.IsValid() {
		return value.FromObject(h.m.wrapFunc(method)), true
	}

	elem := rv
	if elem.Kind() == reflect.Ptr {
		if elem.IsNil() {
			return value.Null(), false
		}
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return value.Value{}, false
	}
	field := elem.FieldByName(name)
	if !field.IsValid() || !field.CanInterface() {
		return value.Value{}, false
	}
	v, err := h.m.toValue(field.Interface())
	if err != nil {
		return value.Value{}, false
	}
	return v, true
}
