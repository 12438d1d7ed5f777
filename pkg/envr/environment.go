// Package envr implements chained scope environments: a local binding table
// that falls back to an owned parent on lookup.
package envr

import (
	"iter"
	"maps"
)

// Env is one level of a scope chain. Keys must be comparable; values are
// boxed so that GetMut can hand out a stable pointer into any level.
//
// A parent handed to Extend or NewFrom belongs to the child from then on.
// An Env is not safe for concurrent use.
type Env[K comparable, V any] struct {
	locals map[K]*V
	parent *Env[K, V]
}

// Entry is a single key/value binding.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// New returns an empty root environment.
func New[K comparable, V any]() *Env[K, V] {
	return NewFrom[K, V](nil)
}

// NewFrom returns an empty environment nested under parent (a root when nil).
func NewFrom[K comparable, V any](parent *Env[K, V]) *Env[K, V] {
	return &Env[K, V]{
		locals: make(map[K]*V),
		parent: parent,
	}
}

// FromPairs builds a parentless environment. Later duplicates overwrite
// earlier ones.
func FromPairs[K comparable, V any](pairs ...Entry[K, V]) *Env[K, V] {
	e := New[K, V]()
	for _, p := range pairs {
		e.Set(p.Key, p.Value)
	}
	return e
}

// FromMap builds a parentless environment holding a copy of m.
func FromMap[K comparable, V any](m map[K]V) *Env[K, V] {
	return Collect(maps.All(m))
}

// Collect builds a parentless environment from a key/value sequence.
func Collect[K comparable, V any](seq iter.Seq2[K, V]) *Env[K, V] {
	e := New[K, V]()
	for k, v := range seq {
		e.Set(k, v)
	}
	return e
}

// Extend returns a new empty environment that owns e as its parent.
func (e *Env[K, V]) Extend() *Env[K, V] {
	return NewFrom(e)
}

// Extension returns a new empty environment whose parent is a deep copy of
// e. The receiver is left untouched. Copying is O(Size()).
func (e *Env[K, V]) Extension() *Env[K, V] {
	return NewFrom(e.Clone())
}

// ExtensionFunc is Extension with values duplicated through clone.
func (e *Env[K, V]) ExtensionFunc(clone func(V) V) *Env[K, V] {
	return NewFrom(e.CloneFunc(clone))
}

// Clone copies every level of the chain. Values are copied by assignment.
func (e *Env[K, V]) Clone() *Env[K, V] {
	return e.CloneFunc(func(v V) V { return v })
}

// CloneFunc copies every level of the chain, duplicating values with clone.
func (e *Env[K, V]) CloneFunc(clone func(V) V) *Env[K, V] {
	if e == nil {
		return nil
	}
	root := &Env[K, V]{}
	dst := root
	for src := e; src != nil; src = src.parent {
		dst.locals = make(map[K]*V, len(src.locals))
		for k, v := range src.locals {
			c := clone(*v)
			dst.locals[k] = &c
		}
		if src.parent != nil {
			dst.parent = &Env[K, V]{}
			dst = dst.parent
		}
	}
	return root
}

// Locals iterates the bindings held directly by e.
func (e *Env[K, V]) Locals() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range e.locals {
			if !yield(k, *v) {
				return
			}
		}
	}
}

// LocalLen reports the number of local bindings.
func (e *Env[K, V]) LocalLen() int {
	return len(e.locals)
}

// Parent exposes the enclosing environment (nil for a root).
func (e *Env[K, V]) Parent() *Env[K, V] {
	return e.parent
}

// HasParent reports whether e extends another environment.
func (e *Env[K, V]) HasParent() bool {
	return e.parent != nil
}

// Size is the number of bindings over every level. Shadowed keys count once
// per level that binds them.
func (e *Env[K, V]) Size() int {
	n := 0
	for cur := e; cur != nil; cur = cur.parent {
		n += len(cur.locals)
	}
	return n
}

// Depth is the number of levels in the chain, counting e.
func (e *Env[K, V]) Depth() int {
	n := 0
	for cur := e; cur != nil; cur = cur.parent {
		n++
	}
	return n
}

// ContainsLocal reports whether k is bound at this level.
func (e *Env[K, V]) ContainsLocal(k K) bool {
	_, ok := e.locals[k]
	return ok
}

// Contains reports whether k is bound anywhere in the chain.
func (e *Env[K, V]) Contains(k K) bool {
	return e.Owner(k) != nil
}

// Owner returns the nearest level that binds k, or nil.
func (e *Env[K, V]) Owner(k K) *Env[K, V] {
	for cur := e; cur != nil; cur = cur.parent {
		if _, ok := cur.locals[k]; ok {
			return cur
		}
	}
	return nil
}

// Get looks k up locally, then through the ancestors.
func (e *Env[K, V]) Get(k K) (V, bool) {
	if p := e.GetMut(k); p != nil {
		return *p, true
	}
	var zero V
	return zero, false
}

// GetMut returns a pointer to the nearest binding for k, which may live in an
// ancestor. Writes through it are seen by every environment sharing that
// level. Returns nil when k is unbound.
func (e *Env[K, V]) GetMut(k K) *V {
	for cur := e; cur != nil; cur = cur.parent {
		if p, ok := cur.locals[k]; ok {
			return p
		}
	}
	return nil
}

// Define binds k locally only when k is unbound in the whole chain. On
// conflict nothing changes and the rejected pair is returned with false.
func (e *Env[K, V]) Define(k K, v V) (Entry[K, V], bool) {
	if e.Contains(k) {
		return Entry[K, V]{Key: k, Value: v}, false
	}
	e.locals[k] = &v
	return Entry[K, V]{}, true
}

// Set binds k at this level, shadowing any ancestor binding. It returns the
// previous local value, if there was one.
func (e *Env[K, V]) Set(k K, v V) (V, bool) {
	if p, ok := e.locals[k]; ok {
		old := *p
		*p = v
		return old, true
	}
	e.locals[k] = &v
	var zero V
	return zero, false
}

// Update overwrites the nearest existing binding for k wherever it lives and
// returns the stored value. When k is unbound, v is handed back with false
// and nothing is inserted.
func (e *Env[K, V]) Update(k K, v V) (V, bool) {
	p := e.GetMut(k)
	if p == nil {
		return v, false
	}
	*p = v
	return *p, true
}

// Delete removes the local binding for k. Ancestors are not touched.
func (e *Env[K, V]) Delete(k K) (V, bool) {
	p, ok := e.locals[k]
	if !ok {
		var zero V
		return zero, false
	}
	delete(e.locals, k)
	return *p, true
}
