// Package erkao is Erkao's host-embedding API: construct a VM, Bind Go
// values and functions into its global scope, then Eval script source
// against it. It is the one public entry point this module exposes for
// embedding the language core (internal/lexer, internal/compiler,
// internal/interp) into a surrounding Go program; everything else below
// internal/ is deliberately unexported.
package erkao

import (
	"fmt"
	"os"

	"github.com/erkao-lang/erkao/internal/chunk"
	"github.com/erkao-lang/erkao/internal/compiler"
	"github.com/erkao-lang/erkao/internal/config"
	"github.com/erkao-lang/erkao/internal/interp"
	"github.com/erkao-lang/erkao/internal/lexer"
	"github.com/erkao-lang/erkao/internal/value"
)

// VM is a single embedded Erkao program: its own interner, global scope
// and collector. A host that wants isolated scripts creates one VM per
// script.
type VM struct {
	interp   *interp.VM
	interner *value.Interner
	marsh    *marshaller
	cfg      config.Config
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithConfig overrides the default GC/type-checker/concurrency config a
// VM runs with; without it, New uses config.Default().
func WithConfig(cfg config.Config) Option {
	return func(v *VM) { v.cfg = cfg }
}

// New creates a VM with no bindings and an empty global scope, ready for
// Bind and Eval calls.
func New(opts ...Option) *VM {
	in := value.NewInterner()
	v := &VM{interner: in, cfg: config.Default()}
	for _, opt := range opts {
		opt(v)
	}
	v.interp = interp.New(in, v.cfg, nil, os.Stdout)
	v.marsh = newMarshaller(v)
	return v
}

// Bind registers a Go value or function under name in the VM's global
// scope. A func is wrapped so scripts can call it directly; any other
// value is marshalled once, eagerly, the same as Set.
func (v *VM) Bind(name string, goValue interface{}) error {
	val, err := v.marsh.toValue(goValue)
	if err != nil {
		return fmt.Errorf("erkao: bind %q: %w", name, err)
	}
	v.interp.Globals.Define(name, val, true)
	return nil
}

// Set is Bind's synonym for plain data bindings; prefer Bind for
// functions and Set for values, matching the distinction host code
// usually wants to read at the call site even though both do the same
// thing.
func (v *VM) Set(name string, goValue interface{}) error { return v.Bind(name, goValue) }

// Get reads a global by name and marshals it back to a Go value.
func (v *VM) Get(name string) (interface{}, error) {
	val, ok := v.interp.Globals.Get(name)
	if !ok {
		return nil, fmt.Errorf("erkao: global %q is not defined", name)
	}
	return v.marsh.fromValue(val, nil)
}

// Call invokes a script-defined or bound function by name with args,
// marshalling each argument in and the result back out.
func (v *VM) Call(funcName string, args ...interface{}) (interface{}, error) {
	callee, ok := v.interp.Globals.Get(funcName)
	if !ok {
		return nil, fmt.Errorf("erkao: function %q is not defined", funcName)
	}
	vals := make([]value.Value, len(args))
	for i, a := range args {
		val, err := v.marsh.toValue(a)
		if err != nil {
			return nil, fmt.Errorf("erkao: call %q: argument %d: %w", funcName, i, err)
		}
		vals[i] = val
	}
	result, err := v.interp.CallValue(callee, vals)
	if err != nil {
		return nil, err
	}
	return v.marsh.fromValue(result, nil)
}

// Eval compiles and runs code as a top-level program against this VM's
// existing global scope, so successive Eval calls see each other's
// top-level `let`/`fun`/`class` declarations the way a REPL session
// would.
func (v *VM) Eval(code string) (interface{}, error) {
	return v.evalNamed("<eval>", code)
}

func (v *VM) evalNamed(path, code string) (interface{}, error) {
	toks := lexer.Tokenize(code)
	c := compiler.New(toks, v.interner, path, v.cfg.EnableTypeChecker)
	ch, errs := c.Compile()
	if len(errs) > 0 {
		msg := "erkao: compile errors:\n"
		for _, e := range errs {
			msg += fmt.Sprintf("  %s\n", e.Error())
		}
		return nil, fmt.Errorf("%s", msg)
	}
	fn := chunk.NewFunction(nil, nil, 0, ch)
	result, err := interp.InterpretIn(v.interp, fn, v.interp.Globals)
	if err != nil {
		return nil, err
	}
	return v.marsh.fromValue(result, nil)
}

// LoadFile reads, compiles and runs the script at path against this VM.
func (v *VM) LoadFile(path string) (interface{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return v.evalNamed(path, string(content))
}

// Interp exposes the underlying interpreter VM for a host that needs
// lower-level access than Bind/Eval offer (a custom import loader,
// inspecting GC stats). Most embedders never need this.
func (v *VM) Interp() *interp.VM { return v.interp }
