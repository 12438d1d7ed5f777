package envr

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Equal reports whether a and b hold the same bindings at every level, in
// the same order of levels.
func Equal[K, V comparable](a, b *Env[K, V]) bool {
	return EqualFunc(a, b, func(x, y V) bool { return x == y })
}

// EqualFunc is like Equal but compares values with eq.
func EqualFunc[K comparable, V any](a, b *Env[K, V], eq func(V, V) bool) bool {
	for a != nil && b != nil {
		if len(a.locals) != len(b.locals) {
			return false
		}
		for k, va := range a.locals {
			vb, ok := b.locals[k]
			if !ok || !eq(*va, *vb) {
				return false
			}
		}
		a, b = a.parent, b.parent
	}
	return a == nil && b == nil
}

// String renders the local bindings followed by an indented parent block.
// Keys are ordered by their printed form.
func (e *Env[K, V]) String() string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, line := range e.localLines() {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString(",\n")
	}
	if e.parent != nil {
		b.WriteString("  parent = ")
		var nested strings.Builder
		for _, line := range strings.Split(e.parent.String(), "\n") {
			nested.WriteString("  ")
			nested.WriteString(line)
			nested.WriteByte('\n')
		}
		b.WriteString(strings.TrimSpace(nested.String()))
		b.WriteByte('\n')
	}
	b.WriteByte('}')
	return b.String()
}

func (e *Env[K, V]) localLines() []string {
	lines := make([]string, 0, len(e.locals))
	for k, v := range e.locals {
		lines = append(lines, fmt.Sprintf("%v = %v", k, *v))
	}
	slices.Sort(lines)
	return lines
}

// GoString renders the chain structurally: a root prints as
// Environment(map), a nested level as Environment{local: map, parent: ...}.
func (e *Env[K, V]) GoString() string {
	if e == nil {
		return "Environment(nil)"
	}
	local := maps.Collect(e.Locals())
	if e.parent == nil {
		return fmt.Sprintf("Environment(%#v)", local)
	}
	return fmt.Sprintf("Environment{local: %#v, parent: %s}", local, e.parent.GoString())
}
