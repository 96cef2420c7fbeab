package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// decodeYAML parses YAML through yaml.Node so mapping order survives.
func decodeYAML(data []byte) (value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return value{}, err
	}
	return fromYAML(&doc, 0)
}

func fromYAML(n *yaml.Node, depth int) (value, error) {
	if depth > maxDepth {
		return value{}, fmt.Errorf("document nested deeper than %d levels", maxDepth)
	}

	switch n.Kind {
	case 0:
		// Empty input.
		return value{kind: kindNull}, nil

	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value{kind: kindNull}, nil
		}
		return fromYAML(n.Content[0], depth)

	case yaml.AliasNode:
		return fromYAML(n.Alias, depth+1)

	case yaml.MappingNode:
		v := value{kind: kindObject}
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode := n.Content[i]
			if keyNode.Kind != yaml.ScalarNode {
				return value{}, fmt.Errorf("line %d: mapping key must be a scalar", keyNode.Line)
			}
			val, err := fromYAML(n.Content[i+1], depth+1)
			if err != nil {
				return value{}, err
			}
			v.set(keyNode.Value, val)
		}
		return v, nil

	case yaml.SequenceNode:
		v := value{kind: kindArray}
		for _, item := range n.Content {
			iv, err := fromYAML(item, depth+1)
			if err != nil {
				return value{}, err
			}
			v.items = append(v.items, iv)
		}
		return v, nil

	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return value{kind: kindNull}, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return value{}, fmt.Errorf("line %d: %w", n.Line, err)
			}
			return value{kind: kindBool, boolean: b}, nil
		case "!!int", "!!float":
			return value{kind: kindNumber, str: n.Value}, nil
		default:
			return value{kind: kindString, str: n.Value}, nil
		}
	}

	return value{}, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}
