package envr

import (
	"iter"
	"maps"
)

// Flatten collapses the chain into a single parentless environment. On a
// shadowed key the innermost binding wins. The receiver chain is consumed and
// must not be used afterwards.
func (e *Env[K, V]) Flatten() *Env[K, V] {
	out := New[K, V]()
	for cur := e; cur != nil; cur = cur.parent {
		for k, v := range cur.locals {
			if _, seen := out.locals[k]; !seen {
				out.Set(k, *v)
			}
		}
	}
	e.locals = make(map[K]*V)
	e.parent = nil
	return out
}

// Keylist returns one key sequence per level, innermost first. Each sequence
// is lazy and may be ranged over more than once.
func (e *Env[K, V]) Keylist() []iter.Seq[K] {
	var list []iter.Seq[K]
	for cur := e; cur != nil; cur = cur.parent {
		list = append(list, maps.Keys(cur.locals))
	}
	return list
}

// Keyset returns every distinct key bound in the chain.
func (e *Env[K, V]) Keyset() map[K]struct{} {
	set := make(map[K]struct{})
	for cur := e; cur != nil; cur = cur.parent {
		for k := range cur.locals {
			set[k] = struct{}{}
		}
	}
	return set
}

// Stack maps each key to all of its values, innermost first.
func (e *Env[K, V]) Stack() map[K][]V {
	stack := make(map[K][]V)
	for cur := e; cur != nil; cur = cur.parent {
		for k, v := range cur.locals {
			stack[k] = append(stack[k], *v)
		}
	}
	return stack
}

// Difference returns a parentless environment with the keys bound in e's
// chain but nowhere in other's, each mapped to its visible value in e.
// Only keys are compared.
func (e *Env[K, V]) Difference(other *Env[K, V]) *Env[K, V] {
	out := New[K, V]()
	var exclude map[K]struct{}
	if other != nil {
		exclude = other.Keyset()
	}
	for k := range e.Keyset() {
		if _, ok := exclude[k]; ok {
			continue
		}
		if v, ok := e.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}
