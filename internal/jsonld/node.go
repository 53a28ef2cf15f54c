package jsonld

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node is a JSON-LD node object. Property keys are normalised terms and are
// kept in lexical order; values keep document order.
type Node struct {
	ID    string
	Types []string
	props []property
	index map[string]int
}

type property struct {
	key    string
	values []Value
}

func (n *Node) add(key string, values []Value) {
	if i, ok := n.index[key]; ok {
		n.props[i].values = append(n.props[i].values, values...)
		return
	}
	n.index[key] = len(n.props)
	n.props = append(n.props, property{key: key, values: values})
}

// Keys returns the property keys of the node
func (n *Node) Keys() []string {
	keys := make([]string, len(n.props))
	for i, p := range n.props {
		keys[i] = p.key
	}
	return keys
}

// Get returns all values of a property
func (n *Node) Get(key string) []Value {
	if n == nil {
		return nil
	}
	i, ok := n.index[key]
	if !ok {
		return nil
	}
	return n.props[i].values
}

// First returns the first value of a property
func (n *Node) First(key string) (Value, bool) {
	vals := n.Get(key)
	if len(vals) == 0 {
		return Value{}, false
	}
	return vals[0], true
}

// Text returns the text of the first value of a property, or ""
func (n *Node) Text(key string) string {
	v, ok := n.First(key)
	if !ok {
		return ""
	}
	return v.Text()
}

// HasType reports whether the node carries the given (normalised) type
func (n *Node) HasType(t string) bool {
	for _, typ := range n.Types {
		if typ == t {
			return true
		}
	}
	return false
}

// Walk calls fn for every node reachable from n, including n, once each
func (n *Node) Walk(fn func(*Node)) {
	seen := make(map[*Node]bool)
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur == nil || seen[cur] {
			return
		}
		seen[cur] = true
		fn(cur)
		for _, p := range cur.props {
			for _, v := range p.values {
				walk(v.node)
			}
		}
	}
	walk(n)
}

// Value is one property value: a literal, a reference by @id, or a node
type Value struct {
	literal any // string, json.Number or bool
	lang    string
	id      string
	node    *Node
}

// IsLiteral reports whether the value is a literal
func (v Value) IsLiteral() bool { return v.literal != nil }

// IsNode reports whether the value is (or resolves to) a node with properties
func (v Value) IsNode() bool { return v.node != nil && len(v.node.props) > 0 }

// Node returns the referenced or embedded node, or nil
func (v Value) Node() *Node { return v.node }

// ID returns the @id of a reference or node value
func (v Value) ID() string { return v.id }

// Language returns the @language of a literal
func (v Value) Language() string { return v.lang }

// Literal returns the raw literal (string, json.Number or bool)
func (v Value) Literal() any { return v.literal }

// AsString returns the literal if it is a string
func (v Value) AsString() (string, bool) {
	s, ok := v.literal.(string)
	return s, ok
}

// Number returns the literal if it is a JSON number
func (v Value) Number() (json.Number, bool) {
	num, ok := v.literal.(json.Number)
	return num, ok
}

// Text renders the value as text: the literal, or the @id of a reference.
// Embedded nodes without an @id render as "".
func (v Value) Text() string {
	switch x := v.literal.(type) {
	case nil:
		return v.id
	case string:
		return strings.TrimSpace(x)
	default:
		return fmt.Sprint(x)
	}
}

// IsIRI reports whether the value text is an http(s) IRI
func (v Value) IsIRI() bool {
	t := v.Text()
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}
