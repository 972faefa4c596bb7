package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyKey   = errors.New("config: empty key")
	ErrNotMapping = errors.New("config: not a mapping")
)

// Document is an editable YAML view of config content. Comments and key order
// survive a Get/Set/String round trip.
type Document struct {
	root yaml.Node
}

// ParseDocument parses content. Empty content yields an empty mapping.
func ParseDocument(content string) (*Document, error) {
	d := &Document{}
	if err := yaml.Unmarshal([]byte(content), &d.root); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if d.root.Kind == 0 {
		d.root = yaml.Node{Kind: yaml.DocumentNode}
	}
	// comment-only content parses to a document without a body
	if len(d.root.Content) == 0 {
		d.root.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	if top := d.root.Content[0]; top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse config: top level: %w", ErrNotMapping)
	}
	return d, nil
}

// Get returns the value at a dotted key such as "ui.theme". Scalars are returned
// as written; mappings and sequences as YAML.
func (d *Document) Get(key string) (string, bool) {
	node, err := d.lookup(key)
	if err != nil || node == nil {
		return "", false
	}
	if node.Kind == yaml.ScalarNode {
		return node.Value, true
	}
	out, err := encode(node)
	if err != nil {
		return "", false
	}
	return strings.TrimSuffix(out, "\n"), true
}

// Set stores value at a dotted key, creating intermediate mappings. value is read
// as YAML, so "true", "3" and "[a, b]" keep their types.
func (d *Document) Set(key, value string) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}

	newNode, err := parseValue(value)
	if err != nil {
		return err
	}

	current := d.root.Content[0]
	for i, part := range parts {
		if current.Kind != yaml.MappingNode {
			return fmt.Errorf("%s: %w", strings.Join(parts[:i], "."), ErrNotMapping)
		}

		idx := findKey(current, part)
		last := i == len(parts)-1

		if last {
			if idx < 0 {
				current.Content = append(current.Content, scalarKey(part), newNode)
				return nil
			}
			old := current.Content[idx+1]
			newNode.HeadComment = old.HeadComment
			newNode.LineComment = old.LineComment
			newNode.FootComment = old.FootComment
			current.Content[idx+1] = newNode
			return nil
		}

		if idx < 0 {
			child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			current.Content = append(current.Content, scalarKey(part), child)
			current = child
			continue
		}
		current = current.Content[idx+1]
	}
	return nil
}

// Keys returns the top-level keys in document order.
func (d *Document) Keys() []string {
	top := d.root.Content[0]
	keys := make([]string, 0, len(top.Content)/2)
	for i := 0; i+1 < len(top.Content); i += 2 {
		keys = append(keys, top.Content[i].Value)
	}
	return keys
}

func (d *Document) String() string {
	if len(d.root.Content[0].Content) == 0 && d.root.HeadComment == "" {
		return ""
	}
	out, err := encode(&d.root)
	if err != nil {
		return ""
	}
	return out
}

func (d *Document) lookup(key string) (*yaml.Node, error) {
	parts, err := splitKey(key)
	if err != nil {
		return nil, err
	}

	current := d.root.Content[0]
	for _, part := range parts {
		if current.Kind != yaml.MappingNode {
			return nil, ErrNotMapping
		}
		idx := findKey(current, part)
		if idx < 0 {
			return nil, nil
		}
		current = current.Content[idx+1]
	}
	return current, nil
}

func splitKey(key string) ([]string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("config: malformed key %q", key)
		}
	}
	return parts, nil
}

// findKey returns the index of key's key node in a mapping, or -1.
func findKey(mapping *yaml.Node, key string) int {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func scalarKey(name string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
}

func parseValue(value string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(value), &doc); err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}, nil
	}
	node := doc.Content[0]
	node.HeadComment, node.LineComment, node.FootComment = "", "", ""
	return node, nil
}

func encode(node *yaml.Node) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
