package value

// mapEntry is one slot of the open-addressed table. A slot is free when
// used is false; it is a tombstone when used is true but alive is false
// (the key is kept), which keeps probe chains intact after a delete
// without a full rehash.
type mapEntry struct {
	key   *String
	val   Value
	used  bool
	alive bool
}

// Map is Erkao's open-addressed, linear-probing hash map, keyed by
// interned strings. The corpus's own map object is a persistent HAMT;
// this one is deliberately the simpler open-addressing table the
// specification calls for instead.
type Map struct {
	hdr     GCHeader
	entries []mapEntry
	count   int // occupied, alive entries
	used    int // occupied slots including tombstones, for resize accounting
	vm      Mutator
}

const mapMinCap = 8
const mapMaxLoad = 0.75

func NewMap(vm Mutator) *Map {
	m := &Map{vm: vm}
	m.entries = make([]mapEntry, mapMinCap)
	m.hdr.Size = mapMinCap * 40
	return m
}

func (m *Map) Kind() Kind        { return KindMap }
func (m *Map) Header() *GCHeader { return &m.hdr }
func (m *Map) Len() int          { return m.count }

func (m *Map) Inspect() string {
	s := "{"
	first := true
	for i := range m.entries {
		e := &m.entries[i]
		if !e.used || !e.alive {
			continue
		}
		if !first {
			s += ", "
		}
		first = false
		s += e.key.Inspect() + ": " + e.val.Inspect()
	}
	return s + "}"
}

func (m *Map) Children(dst []Value) []Value {
	for i := range m.entries {
		e := &m.entries[i]
		if e.used && e.alive {
			dst = append(dst, FromObject(e.key), e.val)
		}
	}
	return dst
}

// findSlot returns the index of key's slot if present (found=true), or
// the first free-or-tombstone slot a subsequent Set should use.
func (m *Map) findSlot(key *String) (idx int, found bool) {
	mask := uint32(len(m.entries) - 1)
	i := key.hash & mask
	firstTombstone := -1
	for {
		e := &m.entries[i]
		if !e.used {
			if firstTombstone >= 0 {
				return firstTombstone, false
			}
			return int(i), false
		}
		if !e.alive {
			if firstTombstone < 0 {
				firstTombstone = int(i)
			}
		} else if e.key.Equal(key) {
			return int(i), true
		}
		i = (i + 1) & mask
	}
}

func (m *Map) Get(key *String) (Value, bool) {
	idx, found := m.findSlot(key)
	if !found {
		return Value{}, false
	}
	return m.entries[idx].val, true
}

func (m *Map) Has(key *String) bool {
	_, found := m.findSlot(key)
	return found
}

// Set stores val under key, growing the table first if the load factor
// would exceed the 0.75 ceiling, then fires the write barrier for both
// the key and the value.
func (m *Map) Set(key *String, val Value) {
	if float64(m.used+1) > float64(len(m.entries))*mapMaxLoad {
		m.grow()
	}
	idx, found := m.findSlot(key)
	e := &m.entries[idx]
	if !e.used {
		e.used = true
		m.used++
	}
	if !e.alive || !found {
		m.count++
	}
	e.key = key
	e.val = val
	e.alive = true
	if m.vm != nil {
		m.vm.Barrier(m, FromObject(key))
		m.vm.Barrier(m, val)
	}
}

// Delete tombstones key's slot if present, reporting whether it was.
func (m *Map) Delete(key *String) bool {
	idx, found := m.findSlot(key)
	if !found {
		return false
	}
	m.entries[idx].alive = false
	m.entries[idx].val = Value{}
	m.count--
	return true
}

func (m *Map) grow() {
	newCap := len(m.entries) * 2
	old := m.entries
	m.entries = make([]mapEntry, newCap)
	m.used = 0
	for i := range old {
		e := &old[i]
		if e.used && e.alive {
			idx, _ := m.findSlot(e.key)
			m.entries[idx] = mapEntry{key: e.key, val: e.val, used: true, alive: true}
			m.used++
		}
	}
	if m.vm != nil {
		m.vm.AccountBytes((newCap - len(old)) * 40)
	}
	m.hdr.Size = newCap * 40
}

// Slot exposes findSlot to callers outside the package (internal/interp's
// inline-cache population for GET_PROPERTY/SET_PROPERTY on instance
// fields, which are stored in this same table).
func (m *Map) Slot(key *String) (idx int, found bool) {
	return m.findSlot(key)
}

// EntryAt returns the live entry at slot idx, or ok=false if idx is out
// of range, free, or tombstoned. A cache that remembered idx from a
// previous Slot/findSlot call must re-validate the key here before
// trusting the value, since a resize can relocate entries.
func (m *Map) EntryAt(idx int) (key *String, val Value, ok bool) {
	if idx < 0 || idx >= len(m.entries) {
		return nil, Value{}, false
	}
	e := &m.entries[idx]
	if !e.used || !e.alive {
		return nil, Value{}, false
	}
	return e.key, e.val, true
}

// Each iterates live entries in table order (unspecified, per spec).
func (m *Map) Each(fn func(key *String, val Value)) {
	for i := range m.entries {
		e := &m.entries[i]
		if e.used && e.alive {
			fn(e.key, e.val)
		}
	}
}
