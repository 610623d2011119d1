package interp

import (
	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/value"
)

// CallValue invokes callee(args) from outside the dispatch loop, the
// path a host uses to call a script-defined or bound function directly
// (pkg/embed's VM.Call) without going through a frame of its own.
func (vm *VM) CallValue(callee value.Value, args []value.Value) (value.Value, error) {
	return vm.call(callee, args)
}

// call dispatches callee(args), the shared path behind OP_CALL,
// OP_CALL_OPTIONAL and the post-resolution half of OP_INVOKE. A class
// callee instantiates; an enum constructor builds (or reuses) an
// Instance; a bound method re-dispatches against its receiver; anything
// else that isn't a Function or Native is a throw.
func (vm *VM) call(callee value.Value, args []value.Value) (value.Value, error) {
	if !callee.IsObject() || callee.AsObject() == nil {
		return value.Null(), vm.throwRuntime("cannot call a non-function value " + callee.Inspect())
	}
	switch obj := callee.AsObject().(type) {
	case *chunk.Function:
		return vm.callFunction(obj, args, value.Null(), false)
	case *value.Native:
		return vm.callNative(obj, args)
	case *value.BoundMethod:
		fn, ok := obj.Method.(*chunk.Function)
		if !ok {
			return value.Null(), vm.throwRuntime("bound method is not callable")
		}
		return vm.callFunction(fn, args, obj.Receiver, true)
	case *value.Class:
		return vm.instantiate(obj, args)
	case *value.EnumCtor:
		return vm.callEnumCtor(obj, args)
	default:
		return value.Null(), vm.throwRuntime("cannot call a non-function value " + callee.Inspect())
	}
}

func (vm *VM) callNative(n *value.Native, args []value.Value) (value.Value, error) {
	if n.Arity >= 0 && len(args) != n.Arity {
		return value.Null(), vm.throwRuntime("wrong number of arguments to " + n.Name.Inspect())
	}
	v, err := n.Fn(args)
	if err != nil {
		if tv, ok := err.(*ThrownValue); ok {
			return value.Null(), tv
		}
		return value.Null(), vm.throwRuntime(err.Error())
	}
	return v, nil
}

// callFunction runs fn's body in a fresh recursive frame. A method's
// Function.Env is always nil (classDeclaration never clones methods
// through WithEnv, only free-function literals go through OP_CLOSURE),
// so the enclosing scope for a method body falls back to vm.Globals;
// a plain closure's Env is the scope it captured at CLOSURE time.
func (vm *VM) callFunction(fn *chunk.Function, args []value.Value, this value.Value, hasThis bool) (value.Value, error) {
	enclosing := fn.Env
	if enclosing == nil {
		enclosing = vm.Globals
	}
	env := value.NewEnvironment(enclosing)
	for i, p := range fn.Params {
		var v value.Value
		if i < len(args) {
			v = args[i]
		} else {
			v = value.Null()
		}
		env.Define(p.Inspect(), v, false)
	}

	f := &frame{fn: fn, env: env, argCount: len(args), this: this, hasThis: hasThis}
	result, err := vm.runFrame(f)
	if err != nil {
		return value.Null(), err
	}
	if fn.IsInitializer {
		return this, nil
	}
	return result, nil
}

// instantiate builds a fresh Instance of class, running its init method
// (if any) for side effects and always returning the instance itself,
// matching how constructors behave regardless of what init's own body
// returns.
func (vm *VM) instantiate(class *value.Class, args []value.Value) (value.Value, error) {
	inst := value.NewInstance(vm, class)
	vm.alloc(inst)
	instVal := value.FromObject(inst)
	if initM, ok := class.FindMethod("init"); ok {
		fn, ok := initM.(*chunk.Function)
		if !ok {
			return value.Null(), vm.throwRuntime("init is not callable")
		}
		if _, err := vm.callFunction(fn, args, instVal, true); err != nil {
			return value.Null(), err
		}
	}
	return instVal, nil
}

// callEnumCtor builds the `{name, values: [...]}` Instance-Map spec.md §3
// says an arity>0 variant constructor produces, auto-caching the
// synthetic per-variant Class it needs (Instance requires a *value.Class,
// and EnumCtor is not one).
func (vm *VM) callEnumCtor(ctor *value.EnumCtor, args []value.Value) (value.Value, error) {
	if len(args) != ctor.Arity {
		return value.Null(), vm.throwRuntime("wrong number of arguments to " + ctor.Inspect())
	}
	class := vm.enumVariantClass(ctor)
	inst := value.NewInstance(vm, class)
	vm.alloc(inst)
	values := vm.alloc(value.NewArray(vm, args)).(*value.Array)
	inst.Fields.Set(vm.Interner.Intern("name"), value.FromObject(ctor.VariantName))
	inst.Fields.Set(vm.Interner.Intern("values"), value.FromObject(values))
	return value.FromObject(inst), nil
}

// enumVariantClass returns the lazily-created synthetic class identifying
// ctor's variant, named "EnumName.VariantName" so OP_MATCH_ENUM and
// equality both see a stable, distinguishing identity across every
// Instance of the same variant.
func (vm *VM) enumVariantClass(ctor *value.EnumCtor) *value.Class {
	if c, ok := vm.enumClasses[ctor]; ok {
		return c
	}
	name := vm.Interner.Intern(ctor.EnumName.Inspect() + "." + ctor.VariantName.Inspect())
	class := value.NewClass(name, nil)
	vm.enumClasses[ctor] = class
	return class
}

// autoInvokeZeroArity reads a value off an enum namespace map and, if it
// is still a raw zero-arity EnumCtor (never yet constructed), replaces it
// with a cached singleton Instance so repeated reads of e.g. Option.None
// return the identical object (required for Value.Equal's identity
// fallback to treat two reads of the same nullary variant as equal).
func (vm *VM) autoInvokeZeroArity(v value.Value) (value.Value, error) {
	ctor, ok := v.AsObject().(*value.EnumCtor)
	if !ok || !v.Is(value.KindEnumCtor) || ctor.Arity != 0 {
		return v, nil
	}
	if inst, ok := vm.enumSingletons[ctor]; ok {
		return value.FromObject(inst), nil
	}
	built, err := vm.callEnumCtor(ctor, nil)
	if err != nil {
		return value.Null(), err
	}
	vm.enumSingletons[ctor] = built.AsObject().(*value.Instance)
	return built, nil
}

// getProperty resolves receiver.name for GET_PROPERTY/GET_PROPERTY_OPTIONAL/
// INVOKE's fallback path, populating cache when the receiver shape
// supports memoizing the lookup (Instance fields and methods; Map field
// access used by pattern destructuring's name-key steps).
func (vm *VM) getProperty(receiver value.Value, name string, cache *chunk.InlineCache) (value.Value, error) {
	if receiver.IsObject() && receiver.AsObject() != nil {
		switch obj := receiver.AsObject().(type) {
		case *value.Instance:
			if cache != nil && cache.Kind == chunk.CacheField && cache.Class == obj.Class {
				if key, val, ok := obj.Fields.EntryAt(cache.Slot); ok && key.Inspect() == name {
					return val, nil
				}
			}
			key := vm.Interner.Intern(name)
			if v, ok := obj.Fields.Get(key); ok {
				if cache != nil {
					if idx, found := obj.Fields.Slot(key); found {
						cache.Kind = chunk.CacheField
						cache.Class = obj.Class
						cache.Slot = idx
					}
				}
				return v, nil
			}
			if m, ok := obj.Class.FindMethod(name); ok {
				if cache != nil {
					cache.Kind = chunk.CacheMethod
					cache.Class = obj.Class
				}
				bound := value.NewBoundMethod(receiver, m)
				vm.alloc(bound)
				return value.FromObject(bound), nil
			}
			return value.Null(), vm.throwRuntime("undefined property '" + name + "'")
		case *value.Map:
			key := vm.Interner.Intern(name)
			if v, ok := obj.Get(key); ok {
				resolved, err := vm.autoInvokeZeroArity(v)
				if err != nil {
					return value.Null(), err
				}
				if resolved != v {
					obj.Set(key, resolved)
				}
				return resolved, nil
			}
			return value.Null(), vm.throwRuntime("undefined key '" + name + "'")
		case *value.EnumCtor:
			return value.Null(), vm.throwRuntime("cannot access property '" + name + "' of an enum constructor")
		case value.HostAccessor:
			if v, ok := obj.HostGet(name); ok {
				return v, nil
			}
			return value.Null(), vm.throwRuntime("undefined property '" + name + "'")
		}
		return value.Null(), vm.throwRuntime("cannot access property '" + name + "' of " + receiver.Inspect())
	}
	return value.Null(), vm.throwRuntime("cannot access property '" + name + "' of null")
}

// setProperty implements SET_PROPERTY: only an Instance's own fields are
// assignable from outside a method body's `this`.
func (vm *VM) setProperty(receiver value.Value, name string, v value.Value) error {
	inst, ok := receiver.AsObject().(*value.Instance)
	if !receiver.IsObject() || !ok {
		return vm.throwRuntime("cannot set property '" + name + "' of " + receiver.Inspect())
	}
	inst.Fields.Set(vm.Interner.Intern(name), v)
	return nil
}

// getIndex implements GET_INDEX/GET_INDEX_OPTIONAL for Array, Map and
// String receivers.
func (vm *VM) getIndex(receiver, index value.Value) (value.Value, error) {
	if !receiver.IsObject() || receiver.AsObject() == nil {
		return value.Null(), vm.throwRuntime("cannot index null")
	}
	switch obj := receiver.AsObject().(type) {
	case *value.Array:
		if !index.IsNumber() {
			return value.Null(), vm.throwRuntime("array index must be a number")
		}
		v, err := obj.Get(int(index.AsNumber()))
		if err != nil {
			return value.Null(), vm.throwRuntime(err.Error())
		}
		return v, nil
	case *value.Map:
		key, ok := keyOf(index)
		if !ok {
			return value.Null(), vm.throwRuntime("map key must be a string")
		}
		if v, ok := obj.Get(key); ok {
			resolved, err := vm.autoInvokeZeroArity(v)
			if err != nil {
				return value.Null(), err
			}
			if resolved != v {
				obj.Set(key, resolved)
			}
			return resolved, nil
		}
		return value.Null(), nil
	case *value.String:
		if !index.IsNumber() {
			return value.Null(), vm.throwRuntime("string index must be a number")
		}
		i := int(index.AsNumber())
		if i < 0 || i >= len(obj.Bytes) {
			return value.Null(), vm.throwRuntime("string index out of bounds")
		}
		return value.FromObject(vm.Interner.Intern(string(obj.Bytes[i : i+1]))), nil
	default:
		return value.Null(), vm.throwRuntime("cannot index " + receiver.Inspect())
	}
}

// setIndex implements SET_INDEX for Array and Map receivers.
func (vm *VM) setIndex(receiver, index, v value.Value) error {
	if !receiver.IsObject() || receiver.AsObject() == nil {
		return vm.throwRuntime("cannot index null")
	}
	switch obj := receiver.AsObject().(type) {
	case *value.Array:
		if !index.IsNumber() {
			return vm.throwRuntime("array index must be a number")
		}
		if err := obj.Set(int(index.AsNumber()), v); err != nil {
			return vm.throwRuntime(err.Error())
		}
		return nil
	case *value.Map:
		key, ok := keyOf(index)
		if !ok {
			return vm.throwRuntime("map key must be a string")
		}
		obj.Set(key, v)
		return nil
	default:
		return vm.throwRuntime("cannot index " + receiver.Inspect())
	}
}

func keyOf(index value.Value) (*value.String, bool) {
	if s, ok := index.AsObject().(*value.String); ok && index.Is(value.KindString) {
		return s, true
	}
	return nil, false
}
