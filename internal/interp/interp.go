// Package interp implements Erkao's bytecode interpreter: a correct,
// non-optimising dispatch loop over every opcode internal/chunk defines,
// wired to the generational collector (internal/gc), the module cache
// (internal/module) and the single-mutator-goroutine assertion
// (internal/vmguard). Optimising the dispatch loop itself is explicitly
// out of scope (spec.md §1's Non-goals) — this loop exists to give every
// opcode's documented contract a correct, exercisable implementation,
// the way the teacher's own internal/vm/vm.go gives its opcode set one,
// not to make it fast.
//
// The one deliberate structural departure from the teacher: Erkao
// resolves every variable by name through a value.Environment chain
// rather than by compiled stack slot, so there is no slot-indexed local
// array and no upvalue-closing machinery. A closure captures its whole
// defining Environment by reference at OP_CLOSURE time
// (chunk.Function.WithEnv), and a function call is a single recursive
// Go call (runFrame) rather than a push onto a shared, base-pointer-
// addressed operand stack — exceptions then unwind for free through
// Go's own call stack, each runFrame catching what its own try handlers
// cover and letting the rest propagate to its caller.
package interp

import (
	"io"

	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/config"
	"github.com/erkao-lang/erkao/internal/gc"
	"github.com/erkao-lang/erkao/internal/module"
	"github.com/erkao-lang/erkao/internal/value"
	"github.com/erkao-lang/erkao/internal/vmguard"
)

// VM owns every piece of mutable state one running Erkao program shares:
// the global scope, the collector, the module cache, and the single-
// goroutine guard. A host embeds one VM per isolated program.
type VM struct {
	Interner *value.Interner
	Globals  *value.Environment
	GC       *gc.Collector
	Guard    *vmguard.Guard
	Modules  *module.Cache
	Loader   module.Loader
	Out      io.Writer

	frames         []*frame
	currentExports *value.Map

	enumClasses    map[*value.EnumCtor]*value.Class
	enumSingletons map[*value.EnumCtor]*value.Instance
}

// New creates a VM ready to Interpret one or more top-level chunks.
// loader resolves import paths to compiled namespaces; it may be nil if
// the embedding host never uses `import`/`export`, matching spec.md §1's
// Non-goal that the module *loader* (path resolution, source reading)
// lives outside this core.
func New(interner *value.Interner, cfg config.Config, loader module.Loader, out io.Writer) *VM {
	if out == nil {
		out = io.Discard
	}
	vm := &VM{
		Interner:       interner,
		Globals:        value.NewEnvironment(nil),
		Guard:          vmguard.New(cfg.StrictThreading),
		Modules:        module.NewCache(),
		Loader:         loader,
		Out:            out,
		enumClasses:    make(map[*value.EnumCtor]*value.Class),
		enumSingletons: make(map[*value.EnumCtor]*value.Instance),
	}
	vm.GC = gc.New(interner, vm.Roots, cfg.GCConfig())
	registerNatives(vm)
	return vm
}

// Barrier implements value.Mutator by forwarding to the collector, so
// Array/Map/Instance can fire the write barrier without importing
// internal/gc themselves.
func (vm *VM) Barrier(holder value.Object, v value.Value) { vm.GC.Barrier(holder, v) }

// AccountBytes implements value.Mutator.
func (vm *VM) AccountBytes(delta int) { vm.GC.AccountBytes(delta) }

// alloc registers o with the collector and returns it, the single
// choke point every runtime allocation (arrays, maps, instances,
// closures, bound methods) passes through. Compile-time constants
// (classes, enum constructors, interned strings) never flow through
// here.
func (vm *VM) alloc(o value.Object) value.Object {
	vm.GC.Register(o)
	return o
}

// Track registers a heap object a host constructs directly (pkg/embed
// marshalling a Go slice/map/struct into an Array/Map) with the
// collector, the same allocation path vm.alloc gives the interpreter's
// own opcodes.
func (vm *VM) Track(o value.Object) value.Object { return vm.alloc(o) }

// Roots implements gc.RootSource: every Value directly reachable from
// VM state outside the heap graph itself — the global scope, every live
// call frame's environment/operand stack/`this`, the module table, and
// the current program's in-progress export namespace.
func (vm *VM) Roots(dst []value.Value) []value.Value {
	dst = vm.Globals.Children(dst)
	dst = vm.Modules.Roots(dst)
	if vm.currentExports != nil {
		dst = append(dst, value.FromObject(vm.currentExports))
	}
	for _, f := range vm.frames {
		dst = f.env.Children(dst)
		dst = append(dst, f.stack...)
		if f.hasThis {
			dst = append(dst, f.this)
		}
		for _, th := range f.tries {
			dst = th.env.Children(dst)
		}
	}
	return dst
}

// Interpret runs fn as a top-level program (no arguments, closing over
// vm.Globals) and returns the value of its top-level `return` (null when
// it ends without one), or the uncaught exception's payload wrapped in an
// error.
func Interpret(vm *VM, fn *chunk.Function) (value.Value, error) {
	vm.Guard.Check()
	topEnv := value.NewEnvironment(vm.Globals)
	vm.currentExports = value.NewMap(vm)
	vm.alloc(vm.currentExports)
	f := &frame{fn: fn, env: topEnv}
	result, err := vm.runFrame(f)
	if err != nil {
		if tv, ok := err.(*ThrownValue); ok {
			return value.Null(), tv
		}
		return value.Null(), err
	}
	return result, nil
}

// InterpretIn runs fn against env instead of a fresh child scope of
// vm.Globals, so top-level `let`/`fun`/`class` declarations land directly
// in env rather than a scope that is discarded when fn returns. pkg/embed
// uses this (passing vm.Globals itself) so successive Eval calls on one
// VM accumulate declarations the way a REPL session would; import/export
// machinery still goes through Interpret, which every module load uses.
func InterpretIn(vm *VM, fn *chunk.Function, env *value.Environment) (value.Value, error) {
	vm.Guard.Check()
	f := &frame{fn: fn, env: env}
	result, err := vm.runFrame(f)
	if err != nil {
		if tv, ok := err.(*ThrownValue); ok {
			return value.Null(), tv
		}
		return value.Null(), err
	}
	return result, nil
}

// Exports returns the namespace built by the most recent Interpret call,
// the value OP_IMPORT hands to an importing module.
func (vm *VM) Exports() value.Value {
	if vm.currentExports == nil {
		return value.Null()
	}
	return value.FromObject(vm.currentExports)
}
