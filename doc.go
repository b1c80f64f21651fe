/*
Package plumb implements a flow-based execution engine: computational nodes
connected through typed input and output plugs, evaluated in dependency
order with pluggable concurrency strategies.

A Node owns named input and output plugs and a Computable capability. Plugs
are wired output-to-input; a Graph derives its evaluation order from those
connections and partitions nodes into layers that are safe to run in
parallel. Nodes serialize to a plain JSON record so a graph can be paused,
stored, or shipped to a remote worker and resumed there.

Basic usage:

	double := plumb.Func("double",
		func(ctx context.Context, in map[string]any) (map[string]any, error) {
			return map[string]any{"result": in["y"].(int) * 2}, nil
		},
		[]string{"y"}, []string{"result"})

	a := plumb.NewNode("a", builtin.Value{})
	b := plumb.NewNode("b", double)

	g := plumb.NewGraph("demo")
	g.AddNode(a)
	g.AddNode(b)
	a.Output("value").Connect(b.Input("y"))
	a.Input("value").SetValue(5)

	err := plumb.NewSequentialEvaluator().Evaluate(ctx, g)
	// b.Output("result").Value() == 10

Evaluation strategies:

  - SequentialEvaluator runs nodes one at a time in a deterministic order.
  - ThreadedEvaluator runs each layer on a bounded goroutine pool, joining
    the whole layer before the next one starts.
  - ProcessEvaluator round-trips every node through the serialization
    contract and hands it to a Worker, which may live in another OS process
    or on a render farm.

Graphs compose: Graph.AsNode wraps a graph behind promoted boundary plugs
so it can be a node inside a larger graph without flattening.
*/
package plumb
