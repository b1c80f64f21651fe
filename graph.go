package plumb

import (
	"context"
	"fmt"
)

// Graph owns an ordered collection of nodes. Dependency edges are derived
// from plug connections between member nodes; the graph itself stores no
// edge list. Insertion order is preserved and used as the tie-break for
// deterministic layering.
type Graph struct {
	name  string
	nodes []*Node
	byID  map[string]*Node

	inputs      map[string]*InputPlug
	outputs     map[string]*OutputPlug
	inputOrder  []string
	outputOrder []string
}

// NewGraph creates an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{
		name:    name,
		byID:    make(map[string]*Node),
		inputs:  make(map[string]*InputPlug),
		outputs: make(map[string]*OutputPlug),
	}
}

// Name returns the graph's name.
func (g *Graph) Name() string { return g.name }

// AddNode adds the node to the graph. Adding a node twice is a no-op.
// Node names must be unique within a graph.
func (g *Graph) AddNode(n *Node) error {
	if _, ok := g.byID[n.id]; ok {
		return nil
	}
	for _, existing := range g.nodes {
		if existing.name == n.name {
			return fmt.Errorf("plumb: a node named %q already exists in graph %q", n.name, g.name)
		}
	}
	g.nodes = append(g.nodes, n)
	g.byID[n.id] = n
	return nil
}

// RemoveNode disconnects all of the node's plugs and removes it from the
// graph. Removing a non-member is a no-op.
func (g *Graph) RemoveNode(n *Node) {
	if _, ok := g.byID[n.id]; !ok {
		return
	}
	for _, name := range n.inputOrder {
		disconnectInput(n.inputs[name])
		for _, key := range sortedInputKeys(n.inputs[name].subs) {
			disconnectInput(n.inputs[name].subs[key])
		}
	}
	for _, name := range n.outputOrder {
		disconnectOutput(n.outputs[name])
		for _, key := range sortedOutputKeys(n.outputs[name].subs) {
			disconnectOutput(n.outputs[name].subs[key])
		}
	}
	delete(g.byID, n.id)
	for i, member := range g.nodes {
		if member == n {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
}

func disconnectInput(p *InputPlug) {
	if p.conn != nil {
		_ = p.conn.Disconnect(p)
	}
}

func disconnectOutput(p *OutputPlug) {
	for _, in := range append([]*InputPlug(nil), p.conns...) {
		_ = p.Disconnect(in)
	}
}

// Nodes returns the member nodes in insertion order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Node returns the member node with the given name, or nil.
func (g *Graph) Node(name string) *Node {
	for _, n := range g.nodes {
		if n.name == name {
			return n
		}
	}
	return nil
}

// NodeByID returns the member node with the given identifier, or nil.
func (g *Graph) NodeByID(id string) *Node { return g.byID[id] }

// EntryNodes returns the member nodes with no upstream member.
func (g *Graph) EntryNodes() []*Node {
	var entries []*Node
	for _, n := range g.nodes {
		if len(g.memberUpstream(n)) == 0 {
			entries = append(entries, n)
		}
	}
	return entries
}

// ExitNodes returns the member nodes with no downstream member.
func (g *Graph) ExitNodes() []*Node {
	var exits []*Node
	for _, n := range g.nodes {
		downstream := 0
		for _, d := range n.DownstreamNodes() {
			if _, ok := g.byID[d.id]; ok {
				downstream++
			}
		}
		if downstream == 0 {
			exits = append(exits, n)
		}
	}
	return exits
}

func (g *Graph) memberUpstream(n *Node) []*Node {
	var members []*Node
	for _, u := range n.UpstreamNodes() {
		if _, ok := g.byID[u.id]; ok {
			members = append(members, u)
		}
	}
	return members
}

// Layers partitions the member nodes into dependency layers: a node with no
// upstream member sits in layer 0, every other node sits one past its
// deepest upstream member. Nodes within a layer have no dependency edges
// between them, which makes intra-layer parallelism safe. Within a layer,
// nodes keep their insertion order. Layers fails with *CycleError if the
// induced graph is not acyclic.
func (g *Graph) Layers() ([][]*Node, error) {
	if err := g.detectCycles(); err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(g.nodes))
	var layerOf func(n *Node) int
	layerOf = func(n *Node) int {
		if d, ok := depth[n.id]; ok {
			return d
		}
		d := 0
		for _, u := range g.memberUpstream(n) {
			if ud := layerOf(u) + 1; ud > d {
				d = ud
			}
		}
		depth[n.id] = d
		return d
	}

	max := 0
	for _, n := range g.nodes {
		if d := layerOf(n); d > max {
			max = d
		}
	}
	layers := make([][]*Node, max+1)
	for _, n := range g.nodes {
		d := depth[n.id]
		layers[d] = append(layers[d], n)
	}
	return layers, nil
}

// Sequence flattens the layering into a single evaluation order.
func (g *Graph) Sequence() ([]*Node, error) {
	layers, err := g.Layers()
	if err != nil {
		return nil, err
	}
	var seq []*Node
	for _, layer := range layers {
		seq = append(seq, layer...)
	}
	return seq, nil
}

// detectCycles walks the member dependency graph depth-first with three
// visit states. A downstream edge back into a node still in progress is a
// cycle; the nodes on the active path from that node form the reported
// participants.
func (g *Graph) detectCycles() error {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []*Node

	var visit func(n *Node) *CycleError
	visit = func(n *Node) *CycleError {
		switch state[n.id] {
		case done:
			return nil
		case inProgress:
			var ids []string
			for i, s := range stack {
				if s.id == n.id {
					for _, p := range stack[i:] {
						ids = append(ids, p.id)
					}
					break
				}
			}
			return &CycleError{Nodes: ids}
		}
		state[n.id] = inProgress
		stack = append(stack, n)
		for _, d := range n.DownstreamNodes() {
			if _, ok := g.byID[d.id]; !ok {
				continue
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[n.id] = done
		return nil
	}

	for _, n := range g.nodes {
		if state[n.id] == unvisited {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// PromoteInput names a member node's input plug as a boundary input of the
// graph, exposed when the graph is wrapped as a node.
func (g *Graph) PromoteInput(name string, p *InputPlug) error {
	if p == nil || p.node == nil || g.byID[p.node.id] == nil {
		return fmt.Errorf("plumb: cannot promote input %q: plug does not belong to a member of graph %q", name, g.name)
	}
	if _, ok := g.inputs[name]; ok {
		return fmt.Errorf("plumb: graph %q already has a boundary input %q", g.name, name)
	}
	g.inputs[name] = p
	g.inputOrder = append(g.inputOrder, name)
	return nil
}

// PromoteOutput names a member node's output plug as a boundary output of
// the graph.
func (g *Graph) PromoteOutput(name string, p *OutputPlug) error {
	if p == nil || p.node == nil || g.byID[p.node.id] == nil {
		return fmt.Errorf("plumb: cannot promote output %q: plug does not belong to a member of graph %q", name, g.name)
	}
	if _, ok := g.outputs[name]; ok {
		return fmt.Errorf("plumb: graph %q already has a boundary output %q", g.name, name)
	}
	g.outputs[name] = p
	g.outputOrder = append(g.outputOrder, name)
	return nil
}

// Input returns the promoted boundary input plug with the given name.
func (g *Graph) Input(name string) *InputPlug { return g.inputs[name] }

// Output returns the promoted boundary output plug with the given name.
func (g *Graph) Output(name string) *OutputPlug { return g.outputs[name] }

// AsNode wraps the graph as a node exposing the promoted boundary plugs.
// Evaluating the wrapper forwards the wrapper's input values to the
// promoted internal inputs, evaluates the whole internal graph
// sequentially, then reads the promoted outputs. Subgraphs compose this
// way without flattening.
func (g *Graph) AsNode(name string, opts ...NodeOption) *Node {
	return g.AsNodeWith(name, NewSequentialEvaluator(), opts...)
}

// AsNodeWith wraps the graph as a node evaluated by the given evaluator.
func (g *Graph) AsNodeWith(name string, ev Evaluator, opts ...NodeOption) *Node {
	return NewNode(name, &graphComputable{graph: g, evaluator: ev}, opts...)
}

type graphComputable struct {
	graph     *Graph
	evaluator Evaluator
}

func (c *graphComputable) Type() string { return "graph:" + c.graph.name }

func (c *graphComputable) InputNames() []string { return c.graph.inputOrder }

func (c *graphComputable) OutputNames() []string { return c.graph.outputOrder }

func (c *graphComputable) Compute(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	for _, name := range c.graph.inputOrder {
		if v, ok := inputs[name]; ok && v != nil {
			c.graph.inputs[name].SetValue(v)
		}
	}
	if err := c.evaluator.Evaluate(ctx, c.graph); err != nil {
		return nil, err
	}
	outputs := make(map[string]any, len(c.graph.outputOrder))
	for _, name := range c.graph.outputOrder {
		outputs[name] = c.graph.outputs[name].Value()
	}
	return outputs, nil
}
