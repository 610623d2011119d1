package value

// String is the interned string object. Equal content always shares one
// *String once it has passed through an Interner, so Value.Equal can take
// the pointer-identity fast path before falling back to a byte compare.
type String struct {
	hdr   GCHeader
	Bytes []byte
	hash  uint32
}

func (s *String) Kind() Kind                     { return KindString }
func (s *String) Inspect() string                { return string(s.Bytes) }
func (s *String) Header() *GCHeader              { return &s.hdr }
func (s *String) Children(dst []Value) []Value   { return dst }
func (s *String) Hash() uint32                   { return s.hash }
func (s *String) Len() int                       { return len(s.Bytes) }
func (s *String) Equal(o *String) bool           { return s == o || (s.hash == o.hash && string(s.Bytes) == string(o.Bytes)) }

// Interner is the process-wide string table. Per the concurrency model,
// Erkao runs a single mutator goroutine at a time, so the table is a plain
// map with no lock; internal/vmguard asserts the single-goroutine
// invariant when config.Config.StrictThreading is set.
type Interner struct {
	table map[string]*String
}

func NewInterner() *Interner {
	return &Interner{table: make(map[string]*String, 64)}
}

// Intern returns the canonical *String for s, allocating and registering
// a new one on first sight. Interned strings start in the Old generation:
// they are reachable from the table itself for the program's lifetime
// until a major cycle proves the table is their only referrer.
func (in *Interner) Intern(s string) *String {
	if existing, ok := in.table[s]; ok {
		return existing
	}
	str := &String{
		Bytes: []byte(s),
		hash:  hashBytes([]byte(s)),
		hdr:   GCHeader{Generation: Old, Size: len(s) + 32},
	}
	in.table[s] = str
	return str
}

// Sweep drops every table entry whose only reference was the table itself
// (reported by keep returning false), called by the collector's major
// cycle after tracing the live heap.
func (in *Interner) Sweep(keep func(*String) bool) int {
	removed := 0
	for k, s := range in.table {
		if !keep(s) {
			delete(in.table, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of distinct interned strings, used by gc
// diagnostics.
func (in *Interner) Len() int { return len(in.table) }

// All iterates every interned string. Order is unspecified; callers that
// need determinism should sort by Hash() or Bytes themselves.
func (in *Interner) All(fn func(*String)) {
	for _, s := range in.table {
		fn(s)
	}
}
