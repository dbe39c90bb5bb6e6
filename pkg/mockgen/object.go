package mockgen

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Object is a JSON object that remembers key insertion order, so generated
// responses follow the order of the selection set.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set stores v under key. A key that is already present keeps its position.
func (o *Object) Set(key string, v any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Path locates a value in a response: response keys (strings) and list
// indexes (ints), as used by the GraphQL error "path".
type Path []any

// Field returns a copy of p extended with a response key.
func (p Path) Field(key string) Path {
	return append(p[:len(p):len(p)], key)
}

// Index returns a copy of p extended with a list index.
func (p Path) Index(i int) Path {
	return append(p[:len(p):len(p)], i)
}

// String renders the path dotted, e.g. "user.friends.0.name".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		switch v := seg.(type) {
		case string:
			parts[i] = v
		case int:
			parts[i] = strconv.Itoa(v)
		}
	}
	return strings.Join(parts, ".")
}
