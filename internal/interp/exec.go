package interp

import (
	"errors"

	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/value"
)

// runFrame is the bytecode dispatch loop: one Go call per Erkao call, so
// a throw that nothing inside this frame catches returns as an ordinary
// Go error and lets the caller's own runFrame decide whether one of
// *its* try handlers covers it. Every GC-eligible allocation anywhere
// in this function flows through vm.alloc.
func (vm *VM) runFrame(f *frame) (value.Value, error) {
	vm.Guard.Check()
	vm.frames = append(vm.frames, f)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()
	c := f.fn.Chunk

	for f.ip < len(c.Code) {
		op := chunk.Opcode(c.Code[f.ip])
		f.ip++

		var thrown *ThrownValue

		switch op {
		case chunk.OP_CONSTANT:
			idx := f.readU16(c)
			f.push(c.Constants[idx])

		case chunk.OP_NULL:
			f.push(value.Null())
		case chunk.OP_TRUE:
			f.push(value.Bool(true))
		case chunk.OP_FALSE:
			f.push(value.Bool(false))
		case chunk.OP_POP:
			f.pop()

		case chunk.OP_STRINGIFY:
			v := f.pop()
			f.push(value.FromObject(vm.Interner.Intern(v.Inspect())))

		case chunk.OP_DEFINE_VAR:
			name := f.readName(c)
			f.env.Define(name, f.pop(), false)
		case chunk.OP_DEFINE_CONST:
			name := f.readName(c)
			f.env.Define(name, f.pop(), true)

		case chunk.OP_GET_VAR:
			name := f.readName(c)
			v, ok := f.env.Get(name)
			if !ok {
				thrown = vm.throwRuntime("undefined variable '" + name + "'")
				break
			}
			f.push(v)

		case chunk.OP_SET_VAR:
			name := f.readName(c)
			v := f.peek(0)
			ok, isConst := f.env.Assign(name, v)
			if !ok {
				thrown = vm.throwRuntime("undefined variable '" + name + "'")
				break
			}
			if isConst {
				thrown = vm.throwRuntime("cannot assign to const '" + name + "'")
			}

		case chunk.OP_GET_THIS:
			f.readU16(c) // name constant, unused: `this` is bound per-frame
			if !f.hasThis {
				thrown = vm.throwRuntime("'this' used outside a method")
				break
			}
			f.push(f.this)

		case chunk.OP_GET_PROPERTY:
			name := f.readName(c)
			cache := c.Cache(f.readU16(c))
			recv := f.pop()
			v, err := vm.getProperty(recv, name, cache)
			if err != nil {
				thrown = vm.asThrown(err)
				break
			}
			f.push(v)

		case chunk.OP_GET_PROPERTY_OPTIONAL:
			name := f.readName(c)
			cache := c.Cache(f.readU16(c))
			recv := f.pop()
			if recv.IsNull() {
				f.push(value.Null())
				break
			}
			v, err := vm.getProperty(recv, name, cache)
			if err != nil {
				thrown = vm.asThrown(err)
				break
			}
			f.push(v)

		case chunk.OP_SET_PROPERTY:
			name := f.readName(c)
			c.Cache(f.readU16(c)) // field-shape cache not needed for writes today
			v := f.pop()
			recv := f.pop()
			if err := vm.setProperty(recv, name, v); err != nil {
				thrown = vm.asThrown(err)
				break
			}
			f.push(v)

		case chunk.OP_GET_INDEX:
			idx := f.pop()
			recv := f.pop()
			v, err := vm.getIndex(recv, idx)
			if err != nil {
				thrown = vm.asThrown(err)
				break
			}
			f.push(v)

		case chunk.OP_GET_INDEX_OPTIONAL:
			idx := f.pop()
			recv := f.pop()
			if recv.IsNull() {
				f.push(value.Null())
				break
			}
			v, err := vm.getIndex(recv, idx)
			if err != nil {
				thrown = vm.asThrown(err)
				break
			}
			f.push(v)

		case chunk.OP_SET_INDEX:
			v := f.pop()
			idx := f.pop()
			recv := f.pop()
			if err := vm.setIndex(recv, idx, v); err != nil {
				thrown = vm.asThrown(err)
				break
			}
			f.push(v)

		case chunk.OP_ADD:
			b, a := f.pop(), f.pop()
			switch {
			case a.IsNumber() && b.IsNumber():
				f.push(value.Number(a.AsNumber() + b.AsNumber()))
			case a.Is(value.KindString) && b.Is(value.KindString):
				as, bs := a.AsObject().(*value.String), b.AsObject().(*value.String)
				f.push(value.FromObject(vm.Interner.Intern(string(as.Bytes) + string(bs.Bytes))))
			default:
				thrown = vm.throwRuntime("cannot add " + a.Inspect() + " and " + b.Inspect())
			}

		case chunk.OP_SUBTRACT:
			thrown = vm.numericBinary(f, func(a, b float64) float64 { return a - b })
		case chunk.OP_MULTIPLY:
			thrown = vm.numericBinary(f, func(a, b float64) float64 { return a * b })
		case chunk.OP_DIVIDE:
			b, a := f.pop(), f.pop()
			if !a.IsNumber() || !b.IsNumber() {
				thrown = vm.throwRuntime("cannot divide " + a.Inspect() + " and " + b.Inspect())
				break
			}
			if b.AsNumber() == 0 {
				thrown = vm.throwRuntime("division by zero")
				break
			}
			f.push(value.Number(a.AsNumber() / b.AsNumber()))

		case chunk.OP_NEGATE:
			a := f.pop()
			if !a.IsNumber() {
				thrown = vm.throwRuntime("cannot negate " + a.Inspect())
				break
			}
			f.push(value.Number(-a.AsNumber()))

		case chunk.OP_NOT:
			a := f.pop()
			f.push(value.Bool(!a.Truthy()))

		case chunk.OP_EQUAL:
			b, a := f.pop(), f.pop()
			f.push(value.Bool(a.Equal(b)))

		case chunk.OP_GREATER:
			thrown = vm.compareBinary(f, func(a, b float64) bool { return a > b })
		case chunk.OP_GREATER_EQUAL:
			thrown = vm.compareBinary(f, func(a, b float64) bool { return a >= b })
		case chunk.OP_LESS:
			thrown = vm.compareBinary(f, func(a, b float64) bool { return a < b })
		case chunk.OP_LESS_EQUAL:
			thrown = vm.compareBinary(f, func(a, b float64) bool { return a <= b })

		case chunk.OP_JUMP:
			offset := f.readU16(c)
			f.ip += int(offset)
		case chunk.OP_JUMP_IF_FALSE:
			offset := f.readU16(c)
			if !f.peek(0).Truthy() {
				f.ip += int(offset)
			}
		case chunk.OP_LOOP:
			offset := f.readU16(c)
			f.ip -= int(offset)

		case chunk.OP_CALL, chunk.OP_CALL_OPTIONAL:
			argc := int(f.readU8(c))
			args := f.popN(argc)
			callee := f.pop()
			if op == chunk.OP_CALL_OPTIONAL && callee.IsNull() {
				f.push(value.Null())
				break
			}
			v, err := vm.call(callee, args)
			if err != nil {
				thrown = vm.asThrown(err)
				break
			}
			f.push(v)

		case chunk.OP_INVOKE:
			name := f.readName(c)
			argc := int(f.readU8(c))
			cache := c.Cache(f.readU16(c))
			args := f.popN(argc)
			recv := f.pop()
			v, err := vm.invoke(recv, name, args, cache)
			if err != nil {
				thrown = vm.asThrown(err)
				break
			}
			f.push(v)

		case chunk.OP_ARG_COUNT:
			// The compiler emits this with no operand bytes (see
			// emitDefaultPrologue): it pushes the call's actual argument
			// count, compared against a following constant by hand-rolled
			// OP_LESS, rather than carrying its own threshold operand.
			f.push(value.Number(float64(f.argCount)))

		case chunk.OP_CLOSURE:
			idx := f.readU16(c)
			proto := c.Constants[idx].AsObject().(*chunk.Function)
			closure := proto.WithEnv(f.env)
			vm.alloc(closure)
			f.push(value.FromObject(closure))

		case chunk.OP_RETURN:
			return f.pop(), nil

		case chunk.OP_TRY:
			offset := f.readU16(c)
			f.tries = append(f.tries, tryHandler{
				catchIP: f.ip + int(offset),
				env:     f.env,
				stackLo: len(f.stack),
			})
		case chunk.OP_END_TRY:
			if len(f.tries) > 0 {
				f.tries = f.tries[:len(f.tries)-1]
			}
		case chunk.OP_THROW:
			v := f.pop()
			thrown = &ThrownValue{Value: v}
		case chunk.OP_TRY_UNWRAP:
			// No surface syntax emits this opcode (see SPEC_FULL.md's
			// Non-goals); handled so a chunk from a future compiler
			// extension isn't left unsupported. Unwraps an Ok/Some
			// variant Instance-Map's first "values" entry, throwing the
			// instance itself when it holds Err/None.
			v := f.pop()
			inst, ok := v.AsObject().(*value.Instance)
			if !ok || !v.Is(value.KindInstance) {
				thrown = vm.throwRuntime("cannot unwrap " + v.Inspect())
				break
			}
			if valuesV, ok := inst.Fields.Get(vm.Interner.Intern("values")); ok {
				if values, ok := valuesV.AsObject().(*value.Array); ok && values.Len() > 0 {
					payload, _ := values.Get(0)
					f.push(payload)
					break
				}
			}
			thrown = &ThrownValue{Value: v}

		case chunk.OP_BEGIN_SCOPE:
			f.env = value.NewEnvironment(f.env)
		case chunk.OP_END_SCOPE:
			f.env = f.env.Enclosing()

		case chunk.OP_IMPORT:
			idx := f.readU16(c)
			path := c.Constants[idx].AsObject().(*value.String).Inspect()
			ns, err := vm.loadModule(path)
			if err != nil {
				thrown = vm.asThrown(err)
				break
			}
			f.push(ns)
		case chunk.OP_IMPORT_MODULE:
			pathVal := f.pop()
			path := pathVal.AsObject().(*value.String).Inspect()
			if _, err := vm.loadModule(path); err != nil {
				thrown = vm.asThrown(err)
				break
			}

		case chunk.OP_EXPORT:
			name := f.readName(c)
			v, ok := f.env.Get(name)
			if !ok {
				thrown = vm.throwRuntime("cannot export undefined name '" + name + "'")
				break
			}
			vm.currentExports.Set(vm.Interner.Intern(name), v)
		case chunk.OP_EXPORT_VALUE:
			// Emitted by `export default expr;` under the name "default".
			name := f.readName(c)
			v := f.pop()
			f.env.Define(name, v, false)
			vm.currentExports.Set(vm.Interner.Intern(name), v)
		case chunk.OP_EXPORT_FROM:
			// Emitted by `export {a, b} from "path";`, one instruction per
			// re-exported name: re-exports name from the module at path.
			pathIdx := f.readU16(c)
			path := c.Constants[pathIdx].AsObject().(*value.String).Inspect()
			name := f.readName(c)
			ns, err := vm.loadModule(path)
			if err != nil {
				thrown = vm.asThrown(err)
				break
			}
			if nsMap, ok := ns.AsObject().(*value.Map); ok {
				if v, ok := nsMap.Get(vm.Interner.Intern(name)); ok {
					vm.currentExports.Set(vm.Interner.Intern(name), v)
				}
			}
		case chunk.OP_PRIVATE:
			// Marks name as module-private. Since only an explicit EXPORT
			// ever writes into vm.currentExports, every binding is
			// private by default already; this opcode just consumes its
			// operand with no further runtime effect.
			f.readU16(c)

		case chunk.OP_ARRAY:
			n := int(f.readU16(c))
			items := f.popN(n)
			arr := value.NewArray(vm, items)
			vm.alloc(arr)
			f.push(value.FromObject(arr))
		case chunk.OP_ARRAY_APPEND:
			v := f.pop()
			arr := f.pop()
			a, ok := arr.AsObject().(*value.Array)
			if !ok || !arr.Is(value.KindArray) {
				thrown = vm.throwRuntime("cannot append to " + arr.Inspect())
				break
			}
			a.Append(v)
			f.push(arr)

		case chunk.OP_MAP:
			n := int(f.readU16(c))
			pairs := f.popN(2 * n)
			m := value.NewMap(vm)
			vm.alloc(m)
			for i := 0; i < n; i++ {
				key := pairs[2*i]
				val := pairs[2*i+1]
				ks, ok := key.AsObject().(*value.String)
				if !ok || !key.Is(value.KindString) {
					thrown = vm.throwRuntime("map key must be a string")
					break
				}
				m.Set(ks, val)
			}
			if thrown == nil {
				f.push(value.FromObject(m))
			}
		case chunk.OP_MAP_SET:
			v := f.pop()
			key := f.pop()
			m := f.pop()
			mm, ok := m.AsObject().(*value.Map)
			if !ok || !m.Is(value.KindMap) {
				thrown = vm.throwRuntime("cannot set a key on " + m.Inspect())
				break
			}
			ks, ok := key.AsObject().(*value.String)
			if !ok || !key.Is(value.KindString) {
				thrown = vm.throwRuntime("map key must be a string")
				break
			}
			mm.Set(ks, v)
			f.push(m)
		case chunk.OP_MAP_HAS:
			key := f.pop()
			m := f.pop()
			mm, ok := m.AsObject().(*value.Map)
			if !ok || !m.Is(value.KindMap) {
				thrown = vm.throwRuntime("cannot check a key on " + m.Inspect())
				break
			}
			ks, ok := key.AsObject().(*value.String)
			if !ok || !key.Is(value.KindString) {
				f.push(value.Bool(false))
				break
			}
			f.push(value.Bool(mm.Has(ks)))

		case chunk.OP_LEN:
			v := f.pop()
			n, err := lengthOf(v)
			if err != nil {
				thrown = vm.throwRuntime(err.Error())
				break
			}
			f.push(value.Number(float64(n)))
		case chunk.OP_IS_ARRAY:
			v := f.pop()
			f.push(value.Bool(v.Is(value.KindArray)))
		case chunk.OP_IS_MAP:
			v := f.pop()
			f.push(value.Bool(v.Is(value.KindMap)))

		case chunk.OP_MATCH_ENUM:
			enumIdx := f.readU16(c)
			variantIdx := f.readU16(c)
			enumName := c.Constants[enumIdx].AsObject().(*value.String).Inspect()
			variantName := c.Constants[variantIdx].AsObject().(*value.String).Inspect()
			v := f.peek(0)
			f.push(value.Bool(matchesVariant(v, enumName, variantName)))

		case chunk.OP_GC:
			vm.GC.MaybeCollect()

		default:
			thrown = vm.throwRuntime("unimplemented opcode")
		}

		if thrown != nil {
			if caught := vm.catchInFrame(f, thrown); caught {
				continue
			}
			return value.Null(), thrown
		}
	}
	return value.Null(), nil
}

// catchInFrame unwinds to the innermost open try handler in f, if any,
// resuming execution there with the thrown value on the stack (the
// catch clause's own DEFINE_VAR immediately consumes it).
func (vm *VM) catchInFrame(f *frame, tv *ThrownValue) bool {
	if len(f.tries) == 0 {
		return false
	}
	h := f.tries[len(f.tries)-1]
	f.tries = f.tries[:len(f.tries)-1]
	f.stack = f.stack[:h.stackLo]
	f.env = h.env
	f.ip = h.catchIP
	f.push(tv.Value)
	return true
}

// asThrown normalizes any error into a ThrownValue. Every error an
// interp helper returns is already one (built via vm.throwRuntime or
// propagated from a nested runFrame); the fallback below only matters
// if some future helper ever returns a plain Go error instead.
func (vm *VM) asThrown(err error) *ThrownValue {
	if tv, ok := err.(*ThrownValue); ok {
		return tv
	}
	return vm.throwRuntime(err.Error())
}

func (vm *VM) numericBinary(f *frame, op func(a, b float64) float64) *ThrownValue {
	b, a := f.pop(), f.pop()
	if !a.IsNumber() || !b.IsNumber() {
		return vm.throwRuntime("expected two numbers, got " + a.Inspect() + " and " + b.Inspect())
	}
	f.push(value.Number(op(a.AsNumber(), b.AsNumber())))
	return nil
}

func (vm *VM) compareBinary(f *frame, op func(a, b float64) bool) *ThrownValue {
	b, a := f.pop(), f.pop()
	if !a.IsNumber() || !b.IsNumber() {
		return vm.throwRuntime("cannot compare " + a.Inspect() + " and " + b.Inspect())
	}
	f.push(value.Bool(op(a.AsNumber(), b.AsNumber())))
	return nil
}

func lengthOf(v value.Value) (int, error) {
	if !v.IsObject() || v.AsObject() == nil {
		return 0, errors.New("cannot take the length of " + v.Inspect())
	}
	switch obj := v.AsObject().(type) {
	case *value.Array:
		return len(obj.Items), nil
	case *value.Map:
		return obj.Len(), nil
	case *value.String:
		return len(obj.Bytes), nil
	default:
		return 0, errors.New("cannot take the length of " + v.Inspect())
	}
}

// matchesVariant reports whether v is (or, for a bare not-yet-invoked
// zero-arity constructor, would construct into) an Instance of the
// exact enumName.variantName variant.
func matchesVariant(v value.Value, enumName, variantName string) bool {
	want := enumName + "." + variantName
	if inst, ok := v.AsObject().(*value.Instance); ok && v.Is(value.KindInstance) {
		return inst.Class.Name.Inspect() == want
	}
	if ctor, ok := v.AsObject().(*value.EnumCtor); ok && v.Is(value.KindEnumCtor) {
		return ctor.EnumName.Inspect() == enumName && ctor.VariantName.Inspect() == variantName
	}
	return false
}

// invoke is OP_INVOKE's fused property-lookup-then-call, sharing
// getProperty's cache population for the field case (a field holding a
// callable, e.g. a stored closure) and adding a CacheMethod-hit fast
// path so a hot method call skips FindMethod entirely.
func (vm *VM) invoke(recv value.Value, name string, args []value.Value, cache *chunk.InlineCache) (value.Value, error) {
	if inst, ok := recv.AsObject().(*value.Instance); ok && recv.Is(value.KindInstance) {
		if cache.Kind == chunk.CacheMethod && cache.Class == inst.Class {
			if m, ok := inst.Class.FindMethod(name); ok {
				if fn, ok := m.(*chunk.Function); ok {
					return vm.callFunction(fn, args, recv, true)
				}
			}
		}
		if _, hasField := inst.Fields.Get(vm.Interner.Intern(name)); !hasField {
			if m, ok := inst.Class.FindMethod(name); ok {
				cache.Kind = chunk.CacheMethod
				cache.Class = inst.Class
				if fn, ok := m.(*chunk.Function); ok {
					return vm.callFunction(fn, args, recv, true)
				}
				return vm.call(value.FromObject(m), args)
			}
		}
	}
	callee, err := vm.getProperty(recv, name, cache)
	if err != nil {
		return value.Null(), err
	}
	return vm.call(callee, args)
}

// loadModule resolves path through the module cache, consulting
// vm.Loader for an actual miss. Hosts that never configure import/export
// leave Loader nil, which surfaces as a clear thrown error rather than a
// nil-pointer panic.
func (vm *VM) loadModule(path string) (value.Value, error) {
	if vm.Loader == nil {
		return value.Null(), vm.throwRuntime("import: no module loader configured for '" + path + "'")
	}
	ns, err := vm.Modules.Get(path, vm.Loader)
	if err != nil {
		if tv, ok := err.(*ThrownValue); ok {
			return value.Null(), tv
		}
		return value.Null(), vm.throwRuntime("import '" + path + "': " + err.Error())
	}
	return ns, nil
}
