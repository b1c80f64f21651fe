package plumb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ohler55/ojg/oj"
	"github.com/xeipuuv/gojsonschema"
)

// ConnectionRecord references the far side of a plug connection by node
// identifier and plug name, resolvable against a node store.
type ConnectionRecord struct {
	Identifier string `json:"identifier"`
	Plug       string `json:"plug"`
}

// PlugRecord is the serialized state of a single plug: its raw value, any
// sub-plugs and the connections attached to it. Input plugs reference their
// upstream output; output plugs reference their downstream inputs.
type PlugRecord struct {
	Value       any                    `json:"value"`
	SubPlugs    map[string]*PlugRecord `json:"sub_plugs,omitempty"`
	Connections []ConnectionRecord     `json:"connections"`
}

// NodeRecord is the JSON-compatible snapshot of a node. The shape is
// stable: extended by adding keys, never by renaming.
type NodeRecord struct {
	Identifier string                 `json:"identifier"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Metadata   map[string]any         `json:"metadata"`
	Inputs     map[string]*PlugRecord `json:"inputs"`
	Outputs    map[string]*PlugRecord `json:"outputs"`
}

// GraphRecord is the JSON-compatible snapshot of a graph. Edges are carried
// by each node's own connection references; there is no separate edge
// table.
type GraphRecord struct {
	Name  string        `json:"name"`
	Nodes []*NodeRecord `json:"nodes"`
}

// UnresolvedConnection is an upstream reference restored from a lone node
// record. The deserialized node is not wired into a live graph; the caller
// reconciles these against its own node store.
type UnresolvedConnection struct {
	Input      string // local input plug name, dotted for sub-plugs
	Identifier string // upstream node identifier
	Plug       string // upstream output plug name
}

// UnresolvedConnections returns the upstream references restored by
// NodeFromRecord, ordered by input plug name.
func (n *Node) UnresolvedConnections() []UnresolvedConnection { return n.unresolved }

// Record snapshots the node into its serialized form: identifier, name,
// type reference, metadata and per-plug values plus connection references.
// Upstream values are not embedded; inputs carry whatever was last
// propagated into them.
func (n *Node) Record() *NodeRecord {
	metadata := make(map[string]any, len(n.metadata)+1)
	for k, v := range n.metadata {
		metadata[k] = v
	}
	if n.omit {
		metadata["omitted"] = true
	}

	inputs := make(map[string]*PlugRecord, len(n.inputOrder))
	for _, name := range n.inputOrder {
		p := n.inputs[name]
		rec := &PlugRecord{Value: p.value, Connections: inputConnections(p)}
		for _, key := range sortedInputKeys(p.subs) {
			sub := p.subs[key]
			if rec.SubPlugs == nil {
				rec.SubPlugs = make(map[string]*PlugRecord, len(p.subs))
			}
			rec.SubPlugs[key] = &PlugRecord{Value: sub.value, Connections: inputConnections(sub)}
		}
		inputs[name] = rec
	}

	outputs := make(map[string]*PlugRecord, len(n.outputOrder))
	for _, name := range n.outputOrder {
		p := n.outputs[name]
		rec := &PlugRecord{Value: p.value, Connections: outputConnections(p)}
		for _, key := range sortedOutputKeys(p.subs) {
			sub := p.subs[key]
			if rec.SubPlugs == nil {
				rec.SubPlugs = make(map[string]*PlugRecord, len(p.subs))
			}
			rec.SubPlugs[key] = &PlugRecord{Value: sub.value, Connections: outputConnections(sub)}
		}
		outputs[name] = rec
	}

	return &NodeRecord{
		Identifier: n.id,
		Name:       n.name,
		Type:       n.computable.Type(),
		Metadata:   metadata,
		Inputs:     inputs,
		Outputs:    outputs,
	}
}

func inputConnections(p *InputPlug) []ConnectionRecord {
	if p.conn == nil {
		return []ConnectionRecord{}
	}
	return []ConnectionRecord{{Identifier: p.conn.node.id, Plug: p.conn.Name()}}
}

func outputConnections(p *OutputPlug) []ConnectionRecord {
	conns := make([]ConnectionRecord, 0, len(p.conns))
	for _, in := range p.conns {
		conns = append(conns, ConnectionRecord{Identifier: in.node.id, Plug: in.Name()})
	}
	return conns
}

// mergeOutputs copies a result record's output values back into the live
// node, propagating them along existing connections, and marks the node
// evaluated.
func (n *Node) mergeOutputs(rec *NodeRecord) {
	for name, pr := range rec.Outputs {
		p, ok := n.outputs[name]
		if !ok {
			continue
		}
		for key, sub := range pr.SubPlugs {
			p.Sub(key).SetValue(sub.Value)
		}
		if len(pr.SubPlugs) == 0 {
			p.SetValue(pr.Value)
		}
	}
	for _, name := range n.inputOrder {
		n.inputs[name].clean()
	}
	n.evaluated = true
}

// NodeFromRecord reconstructs a node from its record, resolving the type
// reference through the registry. Plug values and metadata are restored;
// upstream connections are kept as an unresolved reference list for the
// caller to reconcile.
func NodeFromRecord(rec *NodeRecord, reg *Registry) (*Node, error) {
	factory, ok := reg.Lookup(rec.Type)
	if !ok {
		return nil, &SerializationError{Op: "decode node", Err: fmt.Errorf("%w: %q", ErrUnknownType, rec.Type)}
	}
	n := NewNode(rec.Name, factory(), WithIdentifier(rec.Identifier), WithMetadata(rec.Metadata))
	if omitted, ok := rec.Metadata["omitted"].(bool); ok && omitted {
		n.omit = true
	}
	// The omit flag lives on the node; keeping the transport key in metadata
	// would survive SetOmit(false) and re-encode as omitted.
	delete(n.metadata, "omitted")

	for _, name := range sortedRecordKeys(rec.Inputs) {
		pr := rec.Inputs[name]
		p, ok := n.inputs[name]
		if !ok {
			return nil, &SerializationError{
				Op:  "decode node",
				Err: fmt.Errorf("record declares input %q unknown to type %q", name, rec.Type),
			}
		}
		if len(pr.SubPlugs) == 0 {
			p.SetValue(pr.Value)
		}
		for _, key := range sortedRecordKeys(pr.SubPlugs) {
			sub := pr.SubPlugs[key]
			p.Sub(key).SetValue(sub.Value)
			for _, c := range sub.Connections {
				n.unresolved = append(n.unresolved, UnresolvedConnection{
					Input: name + "." + key, Identifier: c.Identifier, Plug: c.Plug,
				})
			}
		}
		for _, c := range pr.Connections {
			n.unresolved = append(n.unresolved, UnresolvedConnection{
				Input: name, Identifier: c.Identifier, Plug: c.Plug,
			})
		}
	}

	for name, pr := range rec.Outputs {
		p, ok := n.outputs[name]
		if !ok {
			return nil, &SerializationError{
				Op:  "decode node",
				Err: fmt.Errorf("record declares output %q unknown to type %q", name, rec.Type),
			}
		}
		if len(pr.SubPlugs) == 0 {
			p.value = pr.Value
		}
		for _, key := range sortedRecordKeys(pr.SubPlugs) {
			p.Sub(key).value = pr.SubPlugs[key].Value
		}
	}
	return n, nil
}

// EncodeNode serializes the node into its JSON record.
func EncodeNode(n *Node) ([]byte, error) {
	return marshalRecord(n.Record(), "encode node")
}

// DecodeNode validates the record shape and reconstructs the node through
// the registry.
func DecodeNode(data []byte, reg *Registry) (*Node, error) {
	rec, err := decodeNodeRecord(data)
	if err != nil {
		return nil, err
	}
	return NodeFromRecord(rec, reg)
}

// EncodeGraph serializes the graph: its name plus every member node's
// record. Intra-graph edges travel as the nodes' connection references.
func EncodeGraph(g *Graph) ([]byte, error) {
	rec := &GraphRecord{Name: g.name, Nodes: make([]*NodeRecord, 0, len(g.nodes))}
	for _, n := range g.nodes {
		rec.Nodes = append(rec.Nodes, n.Record())
	}
	return marshalRecord(rec, "encode graph")
}

// DecodeGraph reconstructs a standalone graph: every member node is rebuilt
// through the registry and the intra-graph connections are rewired from the
// nodes' connection references.
func DecodeGraph(data []byte, reg *Registry) (*Graph, error) {
	if err := validateRecord(data, graphRecordSchema, "decode graph"); err != nil {
		return nil, err
	}
	var rec GraphRecord
	if err := oj.Unmarshal(data, &rec); err != nil {
		return nil, &SerializationError{Op: "decode graph", Err: err}
	}

	g := NewGraph(rec.Name)
	for _, nodeRec := range rec.Nodes {
		n, err := NodeFromRecord(nodeRec, reg)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(n); err != nil {
			return nil, &SerializationError{Op: "decode graph", Err: err}
		}
	}

	for _, n := range g.nodes {
		for _, u := range n.unresolved {
			upstream := g.byID[u.Identifier]
			if upstream == nil {
				return nil, &SerializationError{
					Op:  "decode graph",
					Err: fmt.Errorf("node %s references upstream %s outside the record", n.id, u.Identifier),
				}
			}
			out := upstream.Output(u.Plug)
			if out == nil {
				return nil, &SerializationError{
					Op:  "decode graph",
					Err: fmt.Errorf("upstream %s has no output plug %q", u.Identifier, u.Plug),
				}
			}
			if err := out.Connect(n.Input(u.Input)); err != nil {
				return nil, &SerializationError{Op: "decode graph", Err: err}
			}
		}
		n.unresolved = nil
	}
	return g, nil
}

func decodeNodeRecord(data []byte) (*NodeRecord, error) {
	if err := validateRecord(data, nodeRecordSchema, "decode node"); err != nil {
		return nil, err
	}
	var rec NodeRecord
	if err := oj.Unmarshal(data, &rec); err != nil {
		return nil, &SerializationError{Op: "decode node", Err: err}
	}
	return &rec, nil
}

func marshalRecord(v any, op string) ([]byte, error) {
	data, err := oj.Marshal(v)
	if err != nil {
		return nil, &SerializationError{Op: op, Err: err}
	}
	return data, nil
}

func validateRecord(data []byte, schema, op string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return &SerializationError{Op: op, Err: err}
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return &SerializationError{Op: op, Err: fmt.Errorf("invalid record: %s", strings.Join(details, "; "))}
	}
	return nil
}

func sortedRecordKeys(m map[string]*PlugRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// stable restore order for deterministic unresolved lists
	sort.Strings(keys)
	return keys
}

const plugDefinitions = `
    "plug": {
      "type": "object",
      "properties": {
        "sub_plugs": {
          "type": "object",
          "additionalProperties": {"$ref": "#/definitions/plug"}
        },
        "connections": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["identifier", "plug"],
            "properties": {
              "identifier": {"type": "string", "minLength": 1},
              "plug": {"type": "string", "minLength": 1}
            }
          }
        }
      }
    },
    "node": {
      "type": "object",
      "required": ["identifier", "name", "type", "inputs", "outputs"],
      "properties": {
        "identifier": {"type": "string", "minLength": 1},
        "name": {"type": "string", "minLength": 1},
        "type": {"type": "string", "minLength": 1},
        "metadata": {"type": "object"},
        "inputs": {
          "type": "object",
          "additionalProperties": {"$ref": "#/definitions/plug"}
        },
        "outputs": {
          "type": "object",
          "additionalProperties": {"$ref": "#/definitions/plug"}
        }
      }
    }`

const nodeRecordSchema = `{
  "$ref": "#/definitions/node",
  "definitions": {` + plugDefinitions + `
  }
}`

const graphRecordSchema = `{
  "type": "object",
  "required": ["name", "nodes"],
  "properties": {
    "name": {"type": "string"},
    "nodes": {
      "type": "array",
      "items": {"$ref": "#/definitions/node"}
    }
  },
  "definitions": {` + plugDefinitions + `
  }
}`
