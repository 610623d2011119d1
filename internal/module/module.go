// Package module implements the in-memory half of spec.md §6's "Module
// system": a canonicalised-path keyed cache of already-loaded module
// namespaces, with concurrent loads of the same path collapsed onto a
// single in-flight compile. Resolving a source path to bytes and
// canonicalising it is the host's job (the module *loader*, explicitly
// out of scope here); this package only owns the cache and the
// correlation IDs attached to its verbose trace.
package module

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/erkao-lang/erkao/internal/value"
)

// Loader compiles and runs the module at canonicalPath, returning the
// namespace object OP_IMPORT pushes. Supplied by the host (interp),
// never implemented here.
type Loader func(canonicalPath string) (value.Value, error)

// Cache is safe for concurrent use. Each canonical path is loaded at
// most once; concurrent requests for the same path block on the same
// in-flight Loader call rather than racing two compiles.
type Cache struct {
	mu      sync.RWMutex
	loaded  map[string]value.Value
	group   singleflight.Group
	Verbose io.Writer
}

func NewCache() *Cache {
	return &Cache{loaded: make(map[string]value.Value)}
}

func (c *Cache) verbosef(format string, args ...any) {
	if c.Verbose == nil {
		return
	}
	fmt.Fprintf(c.Verbose, format+"\n", args...)
}

// Get returns the cached namespace for canonicalPath, calling load at
// most once even under concurrent callers requesting the same path.
func (c *Cache) Get(canonicalPath string, load Loader) (value.Value, error) {
	c.mu.RLock()
	if v, ok := c.loaded[canonicalPath]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	correlationID := uuid.New()
	c.verbosef("module[%s]: loading %s", correlationID, canonicalPath)

	v, err, shared := c.group.Do(canonicalPath, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.loaded[canonicalPath]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
		ns, err := load(canonicalPath)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.loaded[canonicalPath] = ns
		c.mu.Unlock()
		return ns, nil
	})
	if err != nil {
		c.verbosef("module[%s]: load of %s failed: %v", correlationID, canonicalPath, err)
		return value.Null(), err
	}

	ns := v.(value.Value)
	c.verbosef("module[%s]: loaded %s (shared=%v)", correlationID, canonicalPath, shared)
	return ns, nil
}

// Roots appends every cached module's namespace object to dst, used by
// the interpreter's gc.RootSource: a module stays reachable for the
// program's lifetime once loaded, even if nothing else in the running
// program still holds a reference to its namespace.
func (c *Cache) Roots(dst []value.Value) []value.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ns := range c.loaded {
		dst = append(dst, ns)
	}
	return dst
}

// Invalidate drops canonicalPath from the cache, forcing the next Get
// to reload it. Used by hosts that support hot-reload; the core never
// calls this itself.
func (c *Cache) Invalidate(canonicalPath string) {
	c.mu.Lock()
	delete(c.loaded, canonicalPath)
	c.mu.Unlock()
}
