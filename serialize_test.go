package plumb_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/plumbgo/plumb"
)

// asInt accepts the integer shapes a value can take before and after a JSON
// round trip.
func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func scaleComputable() plumb.Computable {
	return plumb.Func("scale", func(_ context.Context, in map[string]any) (map[string]any, error) {
		x, err := asInt(in["x"])
		if err != nil {
			return nil, err
		}
		factor, err := asInt(in["factor"])
		if err != nil {
			return nil, err
		}
		return map[string]any{"result": x * factor}, nil
	}, []string{"x", "factor"}, []string{"result"})
}

func scaleRegistry() *plumb.Registry {
	reg := plumb.NewRegistry()
	reg.Register("scale", scaleComputable)
	return reg
}

func TestNodeRoundTrip(t *testing.T) {
	n := plumb.NewNode("scaler", scaleComputable(),
		plumb.WithIdentifier("scaler-1"),
		plumb.WithMetadata(map[string]any{"farm": "renderwall"}),
		plumb.WithInputValue("x", 5),
		plumb.WithInputValue("factor", 3))
	n.SetOmit(true)

	data, err := plumb.EncodeNode(n)
	if err != nil {
		t.Fatalf("EncodeNode() error = %v", err)
	}
	got, err := plumb.DecodeNode(data, scaleRegistry())
	if err != nil {
		t.Fatalf("DecodeNode() error = %v", err)
	}

	if got.Name() != "scaler" || got.Identifier() != "scaler-1" || got.Type() != "scale" {
		t.Errorf("identity = %s/%s/%s", got.Name(), got.Identifier(), got.Type())
	}
	if got.Metadata()["farm"] != "renderwall" {
		t.Errorf("metadata = %v", got.Metadata())
	}
	if !got.Omitted() {
		t.Error("omit flag lost in round trip")
	}
	if x, _ := asInt(got.Input("x").Value()); x != 5 {
		t.Errorf("x = %v, want 5", got.Input("x").Value())
	}
}

func TestOmitFlagRoundTrip(t *testing.T) {
	n := plumb.NewNode("scaler", scaleComputable())
	n.SetOmit(true)

	data, err := plumb.EncodeNode(n)
	if err != nil {
		t.Fatalf("EncodeNode() error = %v", err)
	}
	decoded, err := plumb.DecodeNode(data, scaleRegistry())
	if err != nil {
		t.Fatalf("DecodeNode() error = %v", err)
	}
	if !decoded.Omitted() {
		t.Fatal("omit flag lost in round trip")
	}
	if _, ok := decoded.Metadata()["omitted"]; ok {
		t.Errorf("transport key leaked into metadata: %v", decoded.Metadata())
	}

	// Un-omitting a decoded node must stick across another round trip.
	decoded.SetOmit(false)
	data, err = plumb.EncodeNode(decoded)
	if err != nil {
		t.Fatalf("EncodeNode() error = %v", err)
	}
	again, err := plumb.DecodeNode(data, scaleRegistry())
	if err != nil {
		t.Fatalf("DecodeNode() error = %v", err)
	}
	if again.Omitted() {
		t.Errorf("un-omitted node came back omitted: metadata = %v", again.Metadata())
	}
}

func TestNodeRoundTripUnresolvedConnections(t *testing.T) {
	a := plumb.NewNode("a", scaleComputable(), plumb.WithIdentifier("a-1"))
	b := plumb.NewNode("b", scaleComputable(), plumb.WithIdentifier("b-1"))
	wire(t, a.Output("result"), b.Input("x"))

	data, err := plumb.EncodeNode(b)
	if err != nil {
		t.Fatalf("EncodeNode() error = %v", err)
	}
	got, err := plumb.DecodeNode(data, scaleRegistry())
	if err != nil {
		t.Fatalf("DecodeNode() error = %v", err)
	}

	unresolved := got.UnresolvedConnections()
	if len(unresolved) != 1 {
		t.Fatalf("UnresolvedConnections() = %v", unresolved)
	}
	u := unresolved[0]
	if u.Input != "x" || u.Identifier != "a-1" || u.Plug != "result" {
		t.Errorf("unresolved = %+v", u)
	}
	if got.Input("x").Connection() != nil {
		t.Error("lone-node decode must not invent live connections")
	}
}

func TestUnresolvedConnectionsOrderedByInput(t *testing.T) {
	a := plumb.NewNode("a", scaleComputable(), plumb.WithIdentifier("a-1"))
	b := plumb.NewNode("b", scaleComputable(), plumb.WithIdentifier("b-1"))
	c := plumb.NewNode("c", scaleComputable(), plumb.WithIdentifier("c-1"))
	wire(t, a.Output("result"), c.Input("x"))
	wire(t, b.Output("result"), c.Input("factor"))

	data, err := plumb.EncodeNode(c)
	if err != nil {
		t.Fatalf("EncodeNode() error = %v", err)
	}
	got, err := plumb.DecodeNode(data, scaleRegistry())
	if err != nil {
		t.Fatalf("DecodeNode() error = %v", err)
	}

	unresolved := got.UnresolvedConnections()
	if len(unresolved) != 2 {
		t.Fatalf("UnresolvedConnections() = %v", unresolved)
	}
	if unresolved[0].Input != "factor" || unresolved[1].Input != "x" {
		t.Errorf("unresolved order = [%s %s], want [factor x]",
			unresolved[0].Input, unresolved[1].Input)
	}
}

func TestGraphRoundTrip(t *testing.T) {
	a := plumb.NewNode("a", scaleComputable(),
		plumb.WithInputValue("x", 5), plumb.WithInputValue("factor", 2))
	b := plumb.NewNode("b", scaleComputable(), plumb.WithInputValue("factor", 10))
	g := plumb.NewGraph("pipeline")
	addAll(t, g, a, b)
	wire(t, a.Output("result"), b.Input("x"))

	data, err := plumb.EncodeGraph(g)
	if err != nil {
		t.Fatalf("EncodeGraph() error = %v", err)
	}
	got, err := plumb.DecodeGraph(data, scaleRegistry())
	if err != nil {
		t.Fatalf("DecodeGraph() error = %v", err)
	}

	if got.Name() != "pipeline" || len(got.Nodes()) != 2 {
		t.Fatalf("decoded graph = %s with %d nodes", got.Name(), len(got.Nodes()))
	}
	gb := got.Node("b")
	if gb.Input("x").Connection() == nil {
		t.Fatal("intra-graph connection was not rewired")
	}
	if len(gb.UnresolvedConnections()) != 0 {
		t.Errorf("resolved graph still carries unresolved refs: %v", gb.UnresolvedConnections())
	}

	// The restored graph evaluates identically to the original.
	if err := plumb.NewSequentialEvaluator().Evaluate(context.Background(), got); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	result, _ := asInt(gb.Output("result").Value())
	if result != 100 {
		t.Errorf("b.result = %v, want 100", gb.Output("result").Value())
	}
}

func TestGraphRoundTripCompositePlugs(t *testing.T) {
	fanin := plumb.Func("fanin", func(_ context.Context, in map[string]any) (map[string]any, error) {
		return nil, nil
	}, []string{"workers.0", "workers.1"}, nil)
	reg := plumb.NewRegistry()
	reg.Register("fanin", func() plumb.Computable { return fanin })

	n := plumb.NewNode("consumer", fanin)
	n.Input("workers.0").SetValue("alpha")
	n.Input("workers.1").SetValue("beta")
	g := plumb.NewGraph("g")
	addAll(t, g, n)

	data, err := plumb.EncodeGraph(g)
	if err != nil {
		t.Fatalf("EncodeGraph() error = %v", err)
	}
	got, err := plumb.DecodeGraph(data, reg)
	if err != nil {
		t.Fatalf("DecodeGraph() error = %v", err)
	}
	workers, ok := got.Node("consumer").Input("workers").Value().(map[string]any)
	if !ok {
		t.Fatalf("workers = %T, want map", got.Node("consumer").Input("workers").Value())
	}
	if workers["0"] != "alpha" || workers["1"] != "beta" {
		t.Errorf("workers = %v", workers)
	}
}

func TestDecodeErrors(t *testing.T) {
	n := plumb.NewNode("n", scaleComputable())
	data, err := plumb.EncodeNode(n)
	if err != nil {
		t.Fatalf("EncodeNode() error = %v", err)
	}

	tests := []struct {
		name     string
		data     []byte
		registry *plumb.Registry
		sentinel error
	}{
		{
			name:     "unregistered type",
			data:     data,
			registry: plumb.NewRegistry(),
			sentinel: plumb.ErrUnknownType,
		},
		{
			name:     "record missing required keys",
			data:     []byte(`{"name": "n"}`),
			registry: scaleRegistry(),
		},
		{
			name:     "wrong shapes rejected by schema",
			data:     []byte(`{"identifier": "x", "name": "n", "type": "scale", "inputs": [], "outputs": {}}`),
			registry: scaleRegistry(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plumb.DecodeNode(tt.data, tt.registry)
			var serErr *plumb.SerializationError
			if !errors.As(err, &serErr) {
				t.Fatalf("DecodeNode() error = %v, want *SerializationError", err)
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("DecodeNode() error = %v, want %v", err, tt.sentinel)
			}
		})
	}
}

func TestDecodeGraphDanglingReference(t *testing.T) {
	a := plumb.NewNode("a", scaleComputable())
	b := plumb.NewNode("b", scaleComputable())
	wire(t, a.Output("result"), b.Input("x"))

	// Encode a graph holding only b; its upstream reference cannot resolve.
	g := plumb.NewGraph("partial")
	addAll(t, g, b)
	data, err := plumb.EncodeGraph(g)
	if err != nil {
		t.Fatalf("EncodeGraph() error = %v", err)
	}
	var serErr *plumb.SerializationError
	if _, err := plumb.DecodeGraph(data, scaleRegistry()); !errors.As(err, &serErr) {
		t.Errorf("DecodeGraph() error = %v, want *SerializationError", err)
	}
}
