package interp

import "github.com/erkao-lang/erkao/internal/value"

// ThrownValue is an Erkao-level exception in flight: any value, not just
// a Go error, since `throw` accepts an arbitrary expression. It
// implements error so it can travel through ordinary Go return values
// as runFrame unwinds the call stack looking for an open try handler.
type ThrownValue struct {
	Value value.Value
}

func (t *ThrownValue) Error() string { return "uncaught: " + t.Value.Inspect() }

// throwRuntime builds the `{message}` exception map every built-in
// runtime check (bad index, wrong arity, non-callable value, ...)
// raises, matching the shape internal/pattern's destructuring failures
// already throw.
func (vm *VM) throwRuntime(message string) *ThrownValue {
	m := value.NewMap(vm)
	vm.alloc(m)
	m.Set(vm.Interner.Intern("message"), value.FromObject(vm.Interner.Intern(message)))
	return &ThrownValue{Value: value.FromObject(m)}
}
