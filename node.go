package plumb

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Computable is the capability a node type supplies: a declared plug schema
// and a pure compute function over the gathered input values.
//
// Compute must not touch other nodes or shared state; it receives every
// declared input by name (composite inputs arrive as a map of sub-key to
// value) and returns values keyed by declared output plug name. Returned
// keys may use the dotted "plug.sub" form to address a sub-plug. Returning
// a subset of the declared outputs is allowed; returning an undeclared key
// is an evaluation error.
type Computable interface {
	// Type is the registry name used to reconstruct nodes of this kind from
	// a serialized record.
	Type() string

	// InputNames declares the input plugs. A dotted name such as
	// "workers.0" declares a sub-plug under a composite root.
	InputNames() []string

	// OutputNames declares the output plugs, dotted names allowed.
	OutputNames() []string

	Compute(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// Node is a named unit of computation owning input and output plugs.
// A node's plug and connection state is independent of graph membership.
type Node struct {
	name       string
	id         string
	computable Computable
	metadata   map[string]any
	omit       bool
	evaluated  bool

	inputs      map[string]*InputPlug
	outputs     map[string]*OutputPlug
	inputOrder  []string
	outputOrder []string

	listeners  map[EventKind][]EventListener
	unresolved []UnresolvedConnection
}

// NodeOption configures a Node at construction time.
type NodeOption func(*Node)

// WithIdentifier pins the node's identifier instead of generating one.
// Identifiers must be stable across serialize/deserialize cycles.
func WithIdentifier(id string) NodeOption {
	return func(n *Node) { n.id = id }
}

// WithMetadata merges the given entries into the node's metadata.
func WithMetadata(metadata map[string]any) NodeOption {
	return func(n *Node) {
		for k, v := range metadata {
			n.metadata[k] = v
		}
	}
}

// WithInputValue sets a declared input plug's value, dotted sub-plug names
// allowed. Used for static configuration of unconnected inputs.
func WithInputValue(name string, v any) NodeOption {
	return func(n *Node) {
		if p := n.Input(name); p != nil {
			p.SetValue(v)
		}
	}
}

// NewNode creates a node for the given computable, declaring one plug per
// name in the computable's schema. If name is empty the computable's type
// name is used.
func NewNode(name string, c Computable, opts ...NodeOption) *Node {
	if name == "" {
		name = c.Type()
	}
	n := &Node{
		name:       name,
		computable: c,
		metadata:   make(map[string]any),
		inputs:     make(map[string]*InputPlug),
		outputs:    make(map[string]*OutputPlug),
	}
	for _, in := range c.InputNames() {
		n.declareInput(in)
	}
	for _, out := range c.OutputNames() {
		n.declareOutput(out)
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.id == "" {
		n.id = name + "-" + uuid.NewString()
	}
	return n
}

func (n *Node) declareInput(name string) {
	root, sub, composite := strings.Cut(name, ".")
	p, ok := n.inputs[root]
	if !ok {
		p = &InputPlug{name: root, node: n}
		n.inputs[root] = p
		n.inputOrder = append(n.inputOrder, root)
	}
	if composite {
		p.Sub(sub)
	}
}

func (n *Node) declareOutput(name string) {
	root, sub, composite := strings.Cut(name, ".")
	p, ok := n.outputs[root]
	if !ok {
		p = &OutputPlug{name: root, node: n}
		n.outputs[root] = p
		n.outputOrder = append(n.outputOrder, root)
	}
	if composite {
		p.Sub(sub)
	}
}

// Name returns the node's name.
func (n *Node) Name() string { return n.name }

// Identifier returns the node's process-unique identifier.
func (n *Node) Identifier() string { return n.id }

// Type returns the registry type name of the node's computable.
func (n *Node) Type() string { return n.computable.Type() }

// Computable returns the node's compute capability.
func (n *Node) Computable() Computable { return n.computable }

// Metadata returns the node's metadata map. Entries carry opaque scheduling
// hints such as batch size or interpreter tags.
func (n *Node) Metadata() map[string]any { return n.metadata }

// SetOmit marks or unmarks the node as omitted. Evaluating an omitted node
// is a no-op that leaves existing output values unchanged.
func (n *Node) SetOmit(omit bool) { n.omit = omit }

// Omitted reports whether the node is marked omitted.
func (n *Node) Omitted() bool { return n.omit }

// Evaluated reports whether the node has evaluated since construction or
// its last input change.
func (n *Node) Evaluated() bool { return n.evaluated }

// IsDirty reports whether any input plug changed since the last evaluation.
func (n *Node) IsDirty() bool {
	for _, name := range n.inputOrder {
		if n.inputs[name].IsDirty() {
			return true
		}
	}
	return false
}

// Input returns the named input plug, or nil if the root plug is not
// declared. A dotted name addresses a sub-plug, created on first access.
func (n *Node) Input(name string) *InputPlug {
	root, sub, composite := strings.Cut(name, ".")
	p, ok := n.inputs[root]
	if !ok {
		return nil
	}
	if composite {
		return p.Sub(sub)
	}
	return p
}

// Output returns the named output plug, or nil if the root plug is not
// declared. A dotted name addresses a sub-plug, created on first access.
func (n *Node) Output(name string) *OutputPlug {
	root, sub, composite := strings.Cut(name, ".")
	p, ok := n.outputs[root]
	if !ok {
		return nil
	}
	if composite {
		return p.Sub(sub)
	}
	return p
}

// InputNames returns the root input plug names in declaration order.
func (n *Node) InputNames() []string { return n.inputOrder }

// OutputNames returns the root output plug names in declaration order.
func (n *Node) OutputNames() []string { return n.outputOrder }

// UpstreamNodes returns the distinct owners of all outputs connected to
// this node's inputs, in declaration order.
func (n *Node) UpstreamNodes() []*Node {
	seen := make(map[string]bool)
	var nodes []*Node
	add := func(out *OutputPlug) {
		if out == nil || out.node == nil || seen[out.node.id] {
			return
		}
		seen[out.node.id] = true
		nodes = append(nodes, out.node)
	}
	for _, name := range n.inputOrder {
		p := n.inputs[name]
		add(p.conn)
		for _, key := range sortedInputKeys(p.subs) {
			add(p.subs[key].conn)
		}
	}
	return nodes
}

// DownstreamNodes returns the distinct owners of all inputs connected to
// this node's outputs, in declaration order.
func (n *Node) DownstreamNodes() []*Node {
	seen := make(map[string]bool)
	var nodes []*Node
	add := func(in *InputPlug) {
		if in.node == nil || seen[in.node.id] {
			return
		}
		seen[in.node.id] = true
		nodes = append(nodes, in.node)
	}
	for _, name := range n.outputOrder {
		p := n.outputs[name]
		for _, in := range p.conns {
			add(in)
		}
		for _, key := range sortedOutputKeys(p.subs) {
			for _, in := range p.subs[key].conns {
				add(in)
			}
		}
	}
	return nodes
}

// Evaluate gathers the input values, invokes the computable and writes the
// returned values into the output plugs, propagating them to connected
// downstream inputs. Omitted nodes are skipped without touching outputs.
// Failures are reported as *EvaluationError tagged with the node
// identifier.
func (n *Node) Evaluate(ctx context.Context) (map[string]any, error) {
	if n.omit {
		n.emit(EvaluationOmitted)
		return nil, nil
	}
	n.emit(EvaluationStarted)

	inputs := make(map[string]any, len(n.inputOrder))
	for _, name := range n.inputOrder {
		inputs[name] = n.inputs[name].Value()
	}

	outputs, err := n.compute(ctx, inputs)
	if err != nil {
		n.emit(EvaluationFailed)
		return nil, &EvaluationError{NodeID: n.id, Err: err}
	}

	for name, value := range outputs {
		root, sub, composite := strings.Cut(name, ".")
		p, ok := n.outputs[root]
		if !ok {
			n.emit(EvaluationFailed)
			return nil, &EvaluationError{
				NodeID: n.id,
				Err:    fmt.Errorf("compute returned undeclared output %q", name),
			}
		}
		if composite {
			p.Sub(sub).SetValue(value)
		} else {
			p.SetValue(value)
		}
	}

	for _, name := range n.inputOrder {
		n.inputs[name].clean()
	}
	n.evaluated = true
	n.emit(EvaluationFinished)
	return outputs, nil
}

func (n *Node) compute(ctx context.Context, inputs map[string]any) (outputs map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compute panicked: %v", r)
		}
	}()
	return n.computable.Compute(ctx, inputs)
}
