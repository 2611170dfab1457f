package model

import "strings"

// InputKey is the context key seeded with the caller-supplied input.
const InputKey = "input"

// Context is the key/value accumulator of one pipeline execution. It is owned
// by a single execution and is not safe for concurrent mutation.
type Context map[string]Value

// NewContext returns a context seeded with the given input.
func NewContext(input Value) Context {
	return Context{InputKey: input}
}

// Lookup resolves a dot-separated path. The first segment names a context
// key, later segments descend into mappings. A missing key, a traversal
// through a non-mapping or a null result all report not found.
func (c Context) Lookup(path string) (Value, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := c[head]
	if !ok {
		return Value{}, false
	}
	if nested {
		return v.Lookup(rest)
	}
	if v.IsNull() {
		return Value{}, false
	}
	return v, true
}

// Lookup resolves a dot-separated path relative to v.
func (v Value) Lookup(path string) (Value, bool) {
	cur := v
	for _, key := range strings.Split(path, ".") {
		next, ok := cur.Get(key)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	if cur.IsNull() {
		return Value{}, false
	}
	return cur, true
}

// Merge writes every entry of updates into c, overwriting existing keys.
func (c Context) Merge(updates map[string]Value) {
	for k, v := range updates {
		c[k] = v
	}
}

// Clone returns a shallow copy of c. Values are immutable, so the copy can be
// handed to another goroutine.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
