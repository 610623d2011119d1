// Package value implements Erkao's runtime value representation: the
// tagged Value union, the heap Object kinds (String, Array, Map, Class,
// Instance, BoundMethod, EnumCtor, Native), and the GC-visible header every
// heap object carries. The bytecode-owning Function object lives in
// internal/chunk, which imports this package for the Object interface —
// the same layering the retrieved corpus uses to keep its value
// representation free of a dependency on its own bytecode chunk type.
package value

import "hash/fnv"

// Kind identifies the concrete shape of a heap Object.
type Kind uint8

const (
	KindString Kind = iota
	KindArray
	KindMap
	KindFunction
	KindNative
	KindClass
	KindInstance
	KindBoundMethod
	KindEnumCtor
	// KindHostObject marks a value a host embedding this package bound by
	// reference (pkg/embed's hostObject); the interpreter never
	// constructs one itself.
	KindHostObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindFunction:
		return "Function"
	case KindNative:
		return "Native"
	case KindClass:
		return "Class"
	case KindInstance:
		return "Instance"
	case KindBoundMethod:
		return "BoundMethod"
	case KindEnumCtor:
		return "EnumCtor"
	case KindHostObject:
		return "HostObject"
	default:
		return "Unknown"
	}
}

// Generation is the GC generation a heap object currently lives in.
type Generation uint8

const (
	Young Generation = iota
	Old
)

// GCHeader is the {generation, age, marked, remembered, size} tuple every
// heap object carries. It is embedded by value, not pointed to, so objects
// own their header storage and the collector mutates it in place.
type GCHeader struct {
	Generation Generation
	Age        uint8
	Marked     bool
	Remembered bool
	Size       int
}

// Object is implemented by every heap-allocated Erkao value. The collector
// in internal/gc only ever touches objects through this interface, never
// through their concrete types, so new object kinds need no collector
// changes as long as Children reports every outgoing Value edge.
type Object interface {
	Kind() Kind
	Inspect() string
	Header() *GCHeader
	// Children appends every Value this object directly references to dst
	// and returns the extended slice. Leaf objects (strings) return dst
	// unchanged; natives and enum constructors report only their name
	// strings.
	Children(dst []Value) []Value
}

// HostAccessor lets a value a host embedding binds by reference (see
// pkg/embed's hostObject) expose Go fields and methods to script
// `receiver.name` syntax. This package stays free of reflect and of
// pkg/embed itself; HostGet is the only hook the interpreter needs, and
// a bound method comes back as an ordinary callable Value (typically a
// *Native closing over the receiver), so OP_INVOKE never has to know a
// host object was involved.
type HostAccessor interface {
	HostGet(name string) (Value, bool)
}

// Mutator is the narrow slice of VM/GC state that heap objects need in
// order to honor the write barrier on mutation. internal/gc implements it;
// internal/value never imports internal/gc, avoiding the obvious cycle.
type Mutator interface {
	// Barrier records that holder now references v, re-remembering holder
	// if it is an old object pointing at a young one.
	Barrier(holder Object, v Value)
	// AccountBytes adjusts the collector's allocation counter by delta
	// bytes, used when a container resizes its backing storage.
	AccountBytes(delta int)
}

func hashBytes(b []byte) uint32 {
	h := fnv.New32a()
	h.Write(b)
	return h.Sum32()
}
