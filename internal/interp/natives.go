package interp

import (
	"github.com/erkao-lang/erkao/internal/value"
)

// registerNatives installs the handful of built-ins the compiled
// pattern-matching bytecode calls by name (internal/pattern never emits
// inline array-slicing or map-filtering bytecode itself; it compiles a
// plain OP_CALL of these two names instead, same as any other function
// call). Every other standard-library surface is out of scope per
// spec.md §1 and is left for the host to populate into vm.Globals
// before Interpret runs.
func registerNatives(vm *VM) {
	defineNative(vm, "__arrayRest", 2, arrayRest)
	defineNative(vm, "__mapRest", 2, mapRest)
}

// defineNative defines name as a permanent global binding. NewNative
// starts in the Old generation (same as interned strings and classes),
// so unlike every runtime-allocated value it is never passed through
// vm.alloc/Register — it lives for the VM's whole lifetime regardless.
func defineNative(vm *VM, name string, arity int, fn func(vm *VM, args []value.Value) (value.Value, error)) {
	n := name
	native := value.NewNative(vm.Interner.Intern(n), arity, func(args []value.Value) (value.Value, error) {
		return fn(vm, args)
	})
	vm.Globals.Define(n, value.FromObject(native), true)
}

// arrayRest implements `(array, start) -> sub-array` for array rest
// patterns (`[a, b, ..rest]`).
func arrayRest(vm *VM, args []value.Value) (value.Value, error) {
	arr, ok := args[0].AsObject().(*value.Array)
	if !ok || !args[0].Is(value.KindArray) {
		return value.Null(), vm.throwRuntime("__arrayRest: expected an array")
	}
	if !args[1].IsNumber() {
		return value.Null(), vm.throwRuntime("__arrayRest: expected a start index")
	}
	start := int(args[1].AsNumber())
	if start < 0 {
		start = 0
	}
	if start > len(arr.Items) {
		start = len(arr.Items)
	}
	rest := value.NewArray(vm, append([]value.Value(nil), arr.Items[start:]...))
	vm.alloc(rest)
	return value.FromObject(rest), nil
}

// mapRest implements `(map, excludedKeys) -> new map excluding those
// keys` for map rest patterns (`{a: x, ..rest}`).
func mapRest(vm *VM, args []value.Value) (value.Value, error) {
	src, ok := args[0].AsObject().(*value.Map)
	if !ok || !args[0].Is(value.KindMap) {
		return value.Null(), vm.throwRuntime("__mapRest: expected a map")
	}
	excluded, ok := args[1].AsObject().(*value.Array)
	if !ok || !args[1].Is(value.KindArray) {
		return value.Null(), vm.throwRuntime("__mapRest: expected an array of excluded keys")
	}
	skip := make(map[*value.String]bool, len(excluded.Items))
	for _, v := range excluded.Items {
		if s, ok := v.AsObject().(*value.String); ok && v.Is(value.KindString) {
			skip[s] = true
		}
	}
	out := value.NewMap(vm)
	vm.alloc(out)
	src.Each(func(key *value.String, val value.Value) {
		if !skip[key] {
			out.Set(key, val)
		}
	})
	return value.FromObject(out), nil
}
