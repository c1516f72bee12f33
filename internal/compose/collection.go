package compose

import (
	"bytes"
	"encoding/json"
)

// Collection is a keyed map that remembers first-insertion order.
// Presence is tracked separately from the value, so a key declared with a
// null body still counts as defined. A nil *Collection reads as empty.
type Collection[T any] struct {
	keys  []string
	items map[string]T
}

// NewCollection returns an empty collection.
func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{items: make(map[string]T)}
}

// Set stores value under key. Re-setting a key keeps its original position.
func (c *Collection[T]) Set(key string, value T) {
	if c.items == nil {
		c.items = make(map[string]T)
	}
	if _, exists := c.items[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.items[key] = value
}

// Get returns the value for key and whether the key is present.
func (c *Collection[T]) Get(key string) (T, bool) {
	var zero T
	if c == nil || c.items == nil {
		return zero, false
	}
	v, ok := c.items[key]
	return v, ok
}

// Has reports whether key is present.
func (c *Collection[T]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Keys returns the keys in insertion order. The slice is a copy.
func (c *Collection[T]) Keys() []string {
	if c == nil {
		return []string{}
	}
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of keys.
func (c *Collection[T]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Each calls fn for every entry in insertion order.
func (c *Collection[T]) Each(fn func(key string, value T)) {
	if c == nil {
		return
	}
	for _, k := range c.keys {
		fn(k, c.items[k])
	}
}

// MarshalJSON writes the collection as a JSON object in insertion order.
func (c *Collection[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if c != nil {
		for i, k := range c.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(c.items[k])
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
