// Package yaml loads graph definitions from YAML and builds live graphs
// through a node type registry.
package yaml

// GraphDefinition is the YAML shape of a graph: named nodes plus the
// connections between their plugs.
type GraphDefinition struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Metadata    map[string]any         `yaml:"metadata,omitempty"`
	Nodes       []NodeDefinition       `yaml:"nodes"`
	Connections []ConnectionDefinition `yaml:"connections,omitempty"`
	Inputs      []PromotionDefinition  `yaml:"inputs,omitempty"`
	Outputs     []PromotionDefinition  `yaml:"outputs,omitempty"`
}

// NodeDefinition declares one node: its unique name within the graph, the
// registered type that computes it, and optional initial input values.
type NodeDefinition struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
	Inputs   map[string]any `yaml:"inputs,omitempty"`
	Omit     bool           `yaml:"omit,omitempty"`
}

// ConnectionDefinition wires an output plug to an input plug. Both ends are
// "node.plug" references, optionally extended to "node.plug.sub" for
// composite sub-plugs.
type ConnectionDefinition struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// PromotionDefinition exposes a member node's plug on the graph boundary
// under the given name.
type PromotionDefinition struct {
	Name string `yaml:"name"`
	Plug string `yaml:"plug"`
}
