// Package jsonld reads CodeMeta JSON-LD documents into a small read-only node tree.
//
// It is not a JSON-LD processor: there is no context resolution or expansion
// algorithm. Keys are normalised by stripping the well-known prefixes CodeMeta
// documents use in practice, which is enough for field-by-field mapping.
package jsonld

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrNoSoftware is returned when a document contains nothing that can be converted
var ErrNoSoftware = errors.New("no SoftwareSourceCode node in document")

// TypeSoftwareSourceCode is the CodeMeta root type
const TypeSoftwareSourceCode = "SoftwareSourceCode"

// keyPrefixes are stripped from property keys and type names, longest first
var keyPrefixes = []string{
	"https://codemeta.github.io/terms/",
	"https://w3id.org/software-types#",
	"https://w3id.org/software-iodata#",
	"http://schema.org/",
	"https://schema.org/",
	"codemeta:",
	"schema:",
	"stype:",
	"sdo:",
}

// Document is a parsed JSON-LD document
type Document struct {
	Nodes []*Node // Top-level nodes, in document order
	byID  map[string]*Node
}

// Parse reads a JSON-LD document. The top level may be a node object,
// an array of node objects, or an object with an @graph. Arrays and @graph
// wrappers nested in the top level are flattened, so several documents
// combined into one array parse as one document.
func Parse(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode json: trailing data after document")
	}

	doc := &Document{byID: make(map[string]*Node)}

	switch raw.(type) {
	case map[string]any, []any:
	default:
		return nil, fmt.Errorf("document must be a JSON object or array, got %s", kindOf(raw))
	}
	var tops []any
	flattenTop(raw, &tops)

	for i, item := range tops {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("top-level item %d: expected object, got %s", i, kindOf(item))
		}
		node, err := doc.buildNode(obj)
		if err != nil {
			return nil, fmt.Errorf("top-level item %d: %w", i, err)
		}
		doc.Nodes = append(doc.Nodes, node)
	}

	doc.link()
	return doc, nil
}

// flattenTop appends the node objects of v to out, unwrapping @graph and
// arrays at any depth. Anything else is appended as is and rejected later.
func flattenTop(v any, out *[]any) {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			flattenTop(item, out)
		}
	case map[string]any:
		graph, ok := x["@graph"]
		if !ok {
			*out = append(*out, x)
			return
		}
		flattenTop(graph, out)
	default:
		*out = append(*out, x)
	}
}

// ParseBytes is Parse over an in-memory document
func ParseBytes(data []byte) (*Document, error) {
	return Parse(bytes.NewReader(data))
}

// Lookup returns the node with the given @id
func (d *Document) Lookup(id string) (*Node, bool) {
	n, ok := d.byID[id]
	return n, ok
}

// SoftwareNodes returns the nodes to convert: every SoftwareSourceCode node,
// or, when there is none, every untyped top-level node.
func (d *Document) SoftwareNodes() ([]*Node, error) {
	var out []*Node
	for _, n := range d.Nodes {
		if n.HasType(TypeSoftwareSourceCode) {
			out = append(out, n)
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	for _, n := range d.Nodes {
		if len(n.Types) == 0 && len(n.props) > 0 {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSoftware
	}
	return out, nil
}

func (d *Document) buildNode(obj map[string]any) (*Node, error) {
	n := &Node{index: make(map[string]int)}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := obj[k]
		switch k {
		case "@context", "@graph":
			continue
		case "@id":
			id, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("@id must be a string, got %s", kindOf(v))
			}
			n.ID = id
			continue
		case "@type":
			types, err := stringList(v)
			if err != nil {
				return nil, fmt.Errorf("@type: %w", err)
			}
			for _, t := range types {
				n.Types = append(n.Types, Term(t))
			}
			continue
		}

		values, err := d.buildValues(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		n.add(Term(k), values)
	}

	if n.ID != "" {
		if existing, ok := d.byID[n.ID]; ok && len(existing.props) > 0 && len(n.props) == 0 {
			return existing, nil
		}
		d.byID[n.ID] = n
	}
	return n, nil
}

func (d *Document) buildValues(v any) ([]Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any:
		var out []Value
		for _, item := range x {
			vals, err := d.buildValues(item)
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
		}
		return out, nil
	case map[string]any:
		if list, ok := x["@list"]; ok {
			return d.buildValues(list)
		}
		if lit, ok := x["@value"]; ok {
			if lit == nil {
				return nil, nil
			}
			if _, nested := lit.(map[string]any); nested {
				return nil, errors.New("@value must be a scalar")
			}
			lang, _ := x["@language"].(string)
			return []Value{{literal: lit, lang: lang}}, nil
		}
		if id, ok := x["@id"].(string); ok && len(x) == 1 {
			return []Value{{id: id}}, nil
		}
		node, err := d.buildNode(x)
		if err != nil {
			return nil, err
		}
		return []Value{{id: node.ID, node: node}}, nil
	default:
		return []Value{{literal: x}}, nil
	}
}

// link resolves bare @id references against nodes defined elsewhere in the document
func (d *Document) link() {
	seen := make(map[*Node]bool)
	var walk func(n *Node)
	walk = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for i := range n.props {
			for j := range n.props[i].values {
				v := &n.props[i].values[j]
				if v.node == nil && v.id != "" {
					if target, ok := d.byID[v.id]; ok {
						v.node = target
					}
				}
				if v.node != nil {
					walk(v.node)
				}
			}
		}
	}
	for _, n := range d.Nodes {
		walk(n)
	}
}

// Term normalises a key, type or IRI to its local CodeMeta/schema.org term.
// Keywords (starting with "@") and unrecognised IRIs are returned unchanged.
func Term(s string) string {
	for _, p := range keyPrefixes {
		if strings.HasPrefix(s, p) {
			return s[len(p):]
		}
	}
	return s
}

func stringList(v any) ([]string, error) {
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %s", kindOf(item))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or array, got %s", kindOf(v))
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
