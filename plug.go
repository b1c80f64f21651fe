package plumb

import (
	"fmt"
	"sort"
)

// InputPlug is a connectable input port on a Node. An input accepts at most
// one upstream connection. An input may be composite: named sub-plugs,
// created on first access, each independently connectable; the composite
// value is the mapping of sub-plug values.
type InputPlug struct {
	name   string
	node   *Node
	value  any
	dirty  bool
	conn   *OutputPlug
	subs   map[string]*InputPlug
	parent *InputPlug
}

// OutputPlug is a connectable output port on a Node. An output fans out to
// any number of downstream inputs and pushes its value to all of them
// whenever it is set.
type OutputPlug struct {
	name   string
	node   *Node
	value  any
	dirty  bool
	conns  []*InputPlug
	subs   map[string]*OutputPlug
	parent *OutputPlug
}

// Name returns the plug name. Sub-plug names are qualified with their
// parent, e.g. "workers.0".
func (p *InputPlug) Name() string {
	if p.parent != nil {
		return p.parent.Name() + "." + p.name
	}
	return p.name
}

// Node returns the node owning this plug.
func (p *InputPlug) Node() *Node { return p.node }

// Sub returns the sub-plug for the given key, creating it on first access.
func (p *InputPlug) Sub(key string) *InputPlug {
	if p.subs == nil {
		p.subs = make(map[string]*InputPlug)
	}
	sub, ok := p.subs[key]
	if !ok {
		sub = &InputPlug{name: key, node: p.node, parent: p}
		p.subs[key] = sub
	}
	return sub
}

// SubPlugs returns the existing sub-plugs keyed by sub-key.
func (p *InputPlug) SubPlugs() map[string]*InputPlug { return p.subs }

// Connection returns the upstream output this input is connected to, or nil.
func (p *InputPlug) Connection() *OutputPlug { return p.conn }

// Value returns the plug's current value. For a composite plug the value is
// assembled as a map of sub-key to sub-plug value.
func (p *InputPlug) Value() any {
	if len(p.subs) > 0 {
		m := make(map[string]any, len(p.subs))
		for key, sub := range p.subs {
			m[key] = sub.Value()
		}
		return m
	}
	return p.value
}

// SetValue sets the plug's value and marks it dirty. Setting a map on a
// composite plug distributes the entries to the sub-plugs. Directly setting
// a connected input is only meaningful during propagation; as an authoring
// action it configures unconnected inputs.
func (p *InputPlug) SetValue(v any) {
	if m, ok := v.(map[string]any); ok && len(p.subs) > 0 {
		for key, val := range m {
			p.Sub(key).SetValue(val)
		}
		return
	}
	p.value = v
	p.dirty = true
}

// IsDirty reports whether the plug, or any of its sub-plugs, has been set
// since the owning node last evaluated.
func (p *InputPlug) IsDirty() bool {
	if p.dirty {
		return true
	}
	for _, sub := range p.subs {
		if sub.IsDirty() {
			return true
		}
	}
	return false
}

func (p *InputPlug) clean() {
	p.dirty = false
	for _, sub := range p.subs {
		sub.clean()
	}
}

func (p *InputPlug) path() string {
	if p.node != nil {
		return p.node.Name() + "." + p.Name()
	}
	return p.Name()
}

// Name returns the plug name, parent-qualified for sub-plugs.
func (p *OutputPlug) Name() string {
	if p.parent != nil {
		return p.parent.Name() + "." + p.name
	}
	return p.name
}

// Node returns the node owning this plug.
func (p *OutputPlug) Node() *Node { return p.node }

// Sub returns the sub-plug for the given key, creating it on first access.
func (p *OutputPlug) Sub(key string) *OutputPlug {
	if p.subs == nil {
		p.subs = make(map[string]*OutputPlug)
	}
	sub, ok := p.subs[key]
	if !ok {
		sub = &OutputPlug{name: key, node: p.node, parent: p}
		p.subs[key] = sub
	}
	return sub
}

// SubPlugs returns the existing sub-plugs keyed by sub-key.
func (p *OutputPlug) SubPlugs() map[string]*OutputPlug { return p.subs }

// Connections returns the downstream inputs this output feeds.
func (p *OutputPlug) Connections() []*InputPlug { return p.conns }

// Value returns the plug's current value, assembling composite plugs into a
// map of sub-key to sub-plug value.
func (p *OutputPlug) Value() any {
	if len(p.subs) > 0 {
		m := make(map[string]any, len(p.subs))
		for key, sub := range p.subs {
			m[key] = sub.Value()
		}
		return m
	}
	return p.value
}

// SetValue sets the plug's value and pushes it to every connected input.
// Setting a map on a composite plug distributes the entries to sub-plugs,
// each propagating along its own connections.
func (p *OutputPlug) SetValue(v any) {
	if m, ok := v.(map[string]any); ok && len(p.subs) > 0 {
		for key, val := range m {
			p.Sub(key).SetValue(val)
		}
		return
	}
	p.value = v
	p.dirty = true
	for _, in := range p.conns {
		in.SetValue(v)
	}
}

// Connect wires this output to the given input. The input receives the
// output's current value immediately. Connecting fails with
// ErrInvalidConnection if both plugs live on the same node or if exactly
// one side is a composite root, and with ErrAlreadyConnected if the input
// is already fed by a different output. Connecting two composite roots
// wires their sub-plugs pairwise by key.
func (p *OutputPlug) Connect(in *InputPlug) error {
	if in == nil {
		return fmt.Errorf("%w: nil input plug", ErrInvalidConnection)
	}
	if p.node != nil && p.node == in.node {
		return fmt.Errorf("%w: %s and %s belong to the same node", ErrInvalidConnection, p.path(), in.path())
	}
	if len(p.subs) > 0 || len(in.subs) > 0 {
		if len(p.subs) > 0 && len(in.subs) > 0 {
			for _, key := range sortedOutputKeys(p.subs) {
				if err := p.subs[key].Connect(in.Sub(key)); err != nil {
					return err
				}
			}
			return nil
		}
		return fmt.Errorf("%w: cannot connect composite root and scalar plug (%s -> %s)",
			ErrInvalidConnection, p.path(), in.path())
	}
	if in.conn == p {
		return nil
	}
	if in.conn != nil {
		return fmt.Errorf("%w: %s is fed by %s", ErrAlreadyConnected, in.path(), in.conn.path())
	}
	p.conns = append(p.conns, in)
	in.conn = p
	in.SetValue(p.value)
	return nil
}

// Disconnect removes the connection between this output and the given
// input. It fails with ErrNotConnected if no such connection exists.
func (p *OutputPlug) Disconnect(in *InputPlug) error {
	if in == nil || in.conn != p {
		return fmt.Errorf("%w: %s does not feed %s", ErrNotConnected, p.path(), plugPath(in))
	}
	for i, c := range p.conns {
		if c == in {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			break
		}
	}
	in.conn = nil
	in.dirty = true
	return nil
}

func (p *OutputPlug) path() string {
	if p.node != nil {
		return p.node.Name() + "." + p.Name()
	}
	return p.Name()
}

func plugPath(p *InputPlug) string {
	if p == nil {
		return "<nil>"
	}
	return p.path()
}

func sortedInputKeys(m map[string]*InputPlug) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedOutputKeys(m map[string]*OutputPlug) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
