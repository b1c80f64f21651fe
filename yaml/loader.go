package yaml

import (
	"fmt"
	"io"
	"os"
	"strings"

	goyaml "github.com/goccy/go-yaml"

	"github.com/plumbgo/plumb"
)

// Loader parses YAML graph definitions and builds live graphs. Node types
// are resolved through the same registry deserialization uses.
type Loader struct {
	registry *plumb.Registry
}

// NewLoader creates a loader backed by the given registry.
func NewLoader(reg *plumb.Registry) *Loader {
	return &Loader{registry: reg}
}

// Parse decodes a graph definition from YAML without building it.
func (l *Loader) Parse(data []byte) (*GraphDefinition, error) {
	var def GraphDefinition
	if err := goyaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("yaml: parsing graph definition: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("yaml: graph definition has no name")
	}
	return &def, nil
}

// Load parses YAML from r and builds the graph.
func (l *Loader) Load(r io.Reader) (*plumb.Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("yaml: reading graph definition: %w", err)
	}
	def, err := l.Parse(data)
	if err != nil {
		return nil, err
	}
	return l.Build(def)
}

// LoadFile parses the YAML file at path and builds the graph.
func (l *Loader) LoadFile(path string) (*plumb.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("yaml: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return l.Load(f)
}

// Build turns a parsed definition into a live graph: nodes are created
// through the registry, initial input values applied, connections wired and
// boundary plugs promoted.
func (l *Loader) Build(def *GraphDefinition) (*plumb.Graph, error) {
	g := plumb.NewGraph(def.Name)

	for _, nd := range def.Nodes {
		factory, ok := l.registry.Lookup(nd.Type)
		if !ok {
			return nil, fmt.Errorf("yaml: node %q: unknown type %q", nd.Name, nd.Type)
		}
		opts := []plumb.NodeOption{}
		if len(nd.Metadata) > 0 {
			opts = append(opts, plumb.WithMetadata(nd.Metadata))
		}
		n := plumb.NewNode(nd.Name, factory(), opts...)
		for name, value := range nd.Inputs {
			p := n.Input(name)
			if p == nil {
				return nil, fmt.Errorf("yaml: node %q has no input %q", nd.Name, name)
			}
			p.SetValue(value)
		}
		n.SetOmit(nd.Omit)
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}

	for _, cd := range def.Connections {
		out, err := resolveOutput(g, cd.From)
		if err != nil {
			return nil, err
		}
		in, err := resolveInput(g, cd.To)
		if err != nil {
			return nil, err
		}
		if err := out.Connect(in); err != nil {
			return nil, fmt.Errorf("yaml: connecting %s to %s: %w", cd.From, cd.To, err)
		}
	}

	for _, pd := range def.Inputs {
		in, err := resolveInput(g, pd.Plug)
		if err != nil {
			return nil, err
		}
		if err := g.PromoteInput(pd.Name, in); err != nil {
			return nil, err
		}
	}
	for _, pd := range def.Outputs {
		out, err := resolveOutput(g, pd.Plug)
		if err != nil {
			return nil, err
		}
		if err := g.PromoteOutput(pd.Name, out); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// splitRef splits a "node.plug" or "node.plug.sub" reference into the node
// name and the plug path.
func splitRef(ref string) (node, plug string, err error) {
	node, plug, ok := strings.Cut(ref, ".")
	if !ok || node == "" || plug == "" {
		return "", "", fmt.Errorf("yaml: malformed plug reference %q, want \"node.plug\"", ref)
	}
	return node, plug, nil
}

func resolveOutput(g *plumb.Graph, ref string) (*plumb.OutputPlug, error) {
	nodeName, plugPath, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	n := g.Node(nodeName)
	if n == nil {
		return nil, fmt.Errorf("yaml: reference %q: no node named %q", ref, nodeName)
	}
	p := n.Output(plugPath)
	if p == nil {
		return nil, fmt.Errorf("yaml: reference %q: node %q has no output %q", ref, nodeName, plugPath)
	}
	return p, nil
}

func resolveInput(g *plumb.Graph, ref string) (*plumb.InputPlug, error) {
	nodeName, plugPath, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	n := g.Node(nodeName)
	if n == nil {
		return nil, fmt.Errorf("yaml: reference %q: no node named %q", ref, nodeName)
	}
	p := n.Input(plugPath)
	if p == nil {
		return nil, fmt.Errorf("yaml: reference %q: node %q has no input %q", ref, nodeName, plugPath)
	}
	return p, nil
}
