package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLLimits bounds the size and shape of configuration documents
type YAMLLimits struct {
	MaxFileSize  int64 // Maximum document size in bytes (default: 1MB)
	MaxDepth     int   // Maximum nesting depth (default: 20)
	MaxNodes     int   // Maximum number of nodes (default: 10000)
	MaxValueSize int   // Maximum scalar size in bytes (default: 64KB)
}

// DefaultYAMLLimits returns limits suited to config files and tool catalogs
func DefaultYAMLLimits() YAMLLimits {
	return YAMLLimits{
		MaxFileSize:  1 << 20,
		MaxDepth:     20,
		MaxNodes:     10000,
		MaxValueSize: 64 << 10,
	}
}

// DecodeYAML validates data against limits and decodes it into v.
// Unknown fields are rejected so typos in config keys surface early.
func DecodeYAML(data []byte, v any, limits YAMLLimits) error {
	if limits.MaxFileSize > 0 && int64(len(data)) > limits.MaxFileSize {
		return fmt.Errorf("YAML document size %d bytes exceeds maximum %d bytes", len(data), limits.MaxFileSize)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("YAML parse error: %w", err)
	}

	nodes := 0
	if err := checkNode(&root, 0, limits, &nodes); err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("YAML decode error: %w", err)
	}
	return nil
}

func checkNode(node *yaml.Node, depth int, limits YAMLLimits, nodes *int) error {
	if limits.MaxDepth > 0 && depth > limits.MaxDepth {
		return fmt.Errorf("YAML nesting depth %d exceeds maximum %d", depth, limits.MaxDepth)
	}

	*nodes++
	if limits.MaxNodes > 0 && *nodes > limits.MaxNodes {
		return fmt.Errorf("YAML node count exceeds maximum %d", limits.MaxNodes)
	}

	switch node.Kind {
	case yaml.ScalarNode:
		if limits.MaxValueSize > 0 && len(node.Value) > limits.MaxValueSize {
			return fmt.Errorf("YAML value size %d bytes exceeds maximum %d bytes", len(node.Value), limits.MaxValueSize)
		}
	case yaml.AliasNode:
		// Aliases are expanded by the decoder; count their targets too
		if node.Alias != nil {
			return checkNode(node.Alias, depth+1, limits, nodes)
		}
	default:
		next := depth + 1
		if node.Kind == yaml.DocumentNode {
			next = depth
		}
		for _, child := range node.Content {
			if err := checkNode(child, next, limits, nodes); err != nil {
				return err
			}
		}
	}
	return nil
}
