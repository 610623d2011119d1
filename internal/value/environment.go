package value

// Environment is a chained, name-keyed binding record. Erkao resolves
// variables by name rather than by compiled slot index (GET_VAR/SET_VAR/
// DEFINE_VAR all carry a name constant, not a stack offset), so the
// runtime representation is a simple linked scope chain instead of the
// slot/upvalue arrays a register-style VM would use.
type Environment struct {
	values    map[string]Value
	consts    map[string]bool
	enclosing *Environment
}

func NewEnvironment(enclosing *Environment) *Environment {
	return &Environment{values: make(map[string]Value), consts: make(map[string]bool), enclosing: enclosing}
}

func (e *Environment) Enclosing() *Environment { return e.enclosing }

// Define introduces name in this scope, shadowing any binding of the same
// name in an enclosing scope. Redefining a name already bound in *this*
// scope is a compile-time error the compiler checks before emitting
// DEFINE_VAR/DEFINE_CONST; Environment itself does not re-validate it.
func (e *Environment) Define(name string, v Value, isConst bool) {
	e.values[name] = v
	e.consts[name] = isConst
}

// Get resolves name by walking outward through enclosing scopes.
func (e *Environment) Get(name string) (Value, bool) {
	for env := e; env != nil; env = env.enclosing {
		if v, ok := env.values[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Assign finds the nearest scope that already binds name and overwrites
// it there, reporting isConst=true (and leaving the value untouched) if
// that binding is immutable.
func (e *Environment) Assign(name string, v Value) (ok bool, isConst bool) {
	for env := e; env != nil; env = env.enclosing {
		if _, bound := env.values[name]; bound {
			if env.consts[name] {
				return true, true
			}
			env.values[name] = v
			return true, false
		}
	}
	return false, false
}

// IsConst reports whether name, as resolved from this scope outward, was
// bound with DEFINE_CONST.
func (e *Environment) IsConst(name string) bool {
	for env := e; env != nil; env = env.enclosing {
		if _, bound := env.values[name]; bound {
			return env.consts[name]
		}
	}
	return false
}

// Children appends every Value reachable from this scope chain, used by
// the collector when an Environment is itself a GC root (e.g. captured by
// a closure).
func (e *Environment) Children(dst []Value) []Value {
	for env := e; env != nil; env = env.enclosing {
		for _, v := range env.values {
			dst = append(dst, v)
		}
	}
	return dst
}
