package bindec

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// container is a tree node that accepts child slots.
type container interface {
	set(name any, value any) error
}

// Map is an ordered mapping node. Keys are unique and iteration follows
// insertion order, so serialized output reproduces the decode order of the
// input file.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap returns an empty ordered map node.
func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order. The slice is shared; callers
// must not modify it.
func (m *Map) Keys() []string { return m.keys }

// Get returns the value under key and whether it is present.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) set(name any, value any) error {
	key := keyString(name)
	if _, ok := m.values[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	m.keys = append(m.keys, key)
	m.values[key] = value
	return nil
}

// MarshalJSON encodes the map as a JSON object with keys in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the map as a YAML mapping with keys in insertion order.
func (m *Map) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		keyNode := &yaml.Node{}
		keyNode.SetString(k)
		valNode := &yaml.Node{}
		if err := valNode.Encode(m.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// Array is an ordered sequence node. Entries must be recorded under the
// strictly sequential indices 0,1,2,...
type Array struct {
	values []any
}

// NewArray returns an empty array node.
func NewArray() *Array { return &Array{} }

// Len returns the number of entries.
func (a *Array) Len() int { return len(a.values) }

// Index returns the entry at i.
func (a *Array) Index(i int) any { return a.values[i] }

func (a *Array) set(name any, value any) error {
	idx, ok := name.(int)
	if !ok || idx != len(a.values) {
		return fmt.Errorf("%w: got index %v, expected %d", ErrOutOfSequence, name, len(a.values))
	}
	a.values = append(a.values, value)
	return nil
}

// MarshalJSON encodes the array as a JSON array.
func (a *Array) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.values)
}

// MarshalYAML encodes the array as a YAML sequence.
func (a *Array) MarshalYAML() (any, error) {
	return a.values, nil
}

// TreeSink builds an in-memory tree of Map and Array nodes. The root map
// outlives the decode, so a caller that catches a mid-decode failure can
// still inspect every subtree finalized before the failure.
type TreeSink struct {
	stack []container
	cur   container
	root  *Map
}

// NewTreeSink returns a tree sink with an empty root map.
func NewTreeSink() *TreeSink {
	root := NewMap()
	return &TreeSink{cur: root, root: root}
}

// Root returns the root map of the decoded tree.
func (t *TreeSink) Root() *Map { return t.root }

func (t *TreeSink) EnterMap(name any) error {
	return t.enter(name, NewMap())
}

func (t *TreeSink) EnterArray(name any) error {
	return t.enter(name, NewArray())
}

func (t *TreeSink) enter(name any, node container) error {
	if err := t.cur.set(name, node); err != nil {
		return err
	}
	t.stack = append(t.stack, t.cur)
	t.cur = node
	return nil
}

func (t *TreeSink) Exit() error {
	if len(t.stack) == 0 {
		return fmt.Errorf("sink exit without matching enter")
	}
	t.cur = t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return nil
}

func (t *TreeSink) Set(name any, value any) error {
	return t.cur.set(name, value)
}

func (t *TreeSink) Blob(name any, data []byte) error {
	return t.cur.set(name, data)
}

func keyString(name any) string {
	if s, ok := name.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", name)
}
