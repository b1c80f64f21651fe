package plumb_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/plumbgo/plumb"
)

func doubleComputable() plumb.Computable {
	return plumb.Func("double", func(_ context.Context, in map[string]any) (map[string]any, error) {
		x, ok := in["x"].(int)
		if !ok {
			return nil, fmt.Errorf("x must be an int, got %T", in["x"])
		}
		return map[string]any{"result": x * 2}, nil
	}, []string{"x"}, []string{"result"})
}

func doubleRegistry() *plumb.Registry {
	reg := plumb.NewRegistry()
	reg.Register("double", doubleComputable)
	return reg
}

// doubleChain builds a -> b where both double their input.
func doubleChain(t *testing.T, seed int) *plumb.Graph {
	t.Helper()
	a := plumb.NewNode("a", doubleComputable(), plumb.WithInputValue("x", seed))
	b := plumb.NewNode("b", doubleComputable())
	g := plumb.NewGraph("chain")
	addAll(t, g, a, b)
	wire(t, a.Output("result"), b.Input("x"))
	return g
}

func TestEvaluatorStrategiesAgree(t *testing.T) {
	tests := []struct {
		name string
		ev   plumb.Evaluator
	}{
		{"sequential", plumb.NewSequentialEvaluator()},
		{"threaded", plumb.NewThreadedEvaluator(plumb.WithMaxWorkers(2))},
		{"process", plumb.NewProcessEvaluator(&plumb.LocalWorker{Registry: doubleRegistry()})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := doubleChain(t, 5)
			if err := tt.ev.Evaluate(context.Background(), g); err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got := g.Node("b").Output("result").Value(); got != 20 {
				t.Errorf("b.result = %v, want 20", got)
			}
		})
	}
}

func TestThreadedEvaluatorLayerBarrier(t *testing.T) {
	produce := func(v int) plumb.Computable {
		return plumb.Func("produce", func(_ context.Context, in map[string]any) (map[string]any, error) {
			return map[string]any{"out": v}, nil
		}, nil, []string{"out"})
	}

	var got atomic.Value
	sum := plumb.Func("sum", func(_ context.Context, in map[string]any) (map[string]any, error) {
		workers, ok := in["workers"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("workers must be a map, got %T", in["workers"])
		}
		total := 0
		for _, v := range workers {
			n, ok := v.(int)
			if !ok {
				return nil, fmt.Errorf("worker value %v not ready", v)
			}
			total += n
		}
		got.Store(total)
		return map[string]any{"total": total}, nil
	}, []string{"workers.0", "workers.1", "workers.2", "workers.3"}, []string{"total"})

	g := plumb.NewGraph("fanin")
	consumer := plumb.NewNode("consumer", sum)
	addAll(t, g, consumer)
	for i := 0; i < 4; i++ {
		p := plumb.NewNode(fmt.Sprintf("producer-%d", i), produce(i+1))
		addAll(t, g, p)
		wire(t, p.Output("out"), consumer.Input(fmt.Sprintf("workers.%d", i)))
	}

	ev := plumb.NewThreadedEvaluator(plumb.WithMaxWorkers(4))
	if err := ev.Evaluate(context.Background(), g); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.Load() != 10 {
		t.Errorf("consumer saw %v, want 10", got.Load())
	}
}

func TestEvaluatorAbortsAtLayerBoundary(t *testing.T) {
	fail := plumb.Func("fail", func(_ context.Context, in map[string]any) (map[string]any, error) {
		return nil, errors.New("broken")
	}, []string{"in"}, []string{"out"})

	var downstreamRan atomic.Bool
	observe := plumb.Func("observe", func(_ context.Context, in map[string]any) (map[string]any, error) {
		downstreamRan.Store(true)
		return nil, nil
	}, []string{"in"}, nil)

	a := plumb.NewNode("a", passthrough("op", nil, []string{"out"}))
	b := plumb.NewNode("b", fail)
	c := plumb.NewNode("c", observe)

	g := plumb.NewGraph("g")
	addAll(t, g, a, b, c)
	wire(t, a.Output("out"), b.Input("in"))
	wire(t, b.Output("out"), c.Input("in"))

	err := plumb.NewThreadedEvaluator().Evaluate(context.Background(), g)
	var evalErr *plumb.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("Evaluate() error = %v, want *EvaluationError", err)
	}
	if evalErr.NodeID != b.Identifier() {
		t.Errorf("NodeID = %q, want %q", evalErr.NodeID, b.Identifier())
	}
	if downstreamRan.Load() {
		t.Error("downstream layer ran after a failure")
	}
	if !a.Evaluated() {
		t.Error("earlier layer should have completed")
	}
}

func TestEvaluatorSkipsOmittedNodes(t *testing.T) {
	g := doubleChain(t, 5)
	g.Node("b").SetOmit(true)
	g.Node("b").Output("result").SetValue(99)

	for _, ev := range []plumb.Evaluator{
		plumb.NewSequentialEvaluator(),
		plumb.NewProcessEvaluator(&plumb.LocalWorker{Registry: doubleRegistry()}),
	} {
		if err := ev.Evaluate(context.Background(), g); err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if got := g.Node("b").Output("result").Value(); got != 99 {
			t.Errorf("omitted node output = %v, want 99", got)
		}
	}
}

func TestEvaluatorsEmitOmittedEvent(t *testing.T) {
	evaluators := map[string]func() plumb.Evaluator{
		"sequential": func() plumb.Evaluator { return plumb.NewSequentialEvaluator() },
		"threaded":   func() plumb.Evaluator { return plumb.NewThreadedEvaluator() },
		"process": func() plumb.Evaluator {
			return plumb.NewProcessEvaluator(&plumb.LocalWorker{Registry: doubleRegistry()})
		},
	}

	for name, makeEv := range evaluators {
		t.Run(name, func(t *testing.T) {
			n := plumb.NewNode("n", doubleComputable(), plumb.WithInputValue("x", 1))
			n.SetOmit(true)
			var omitted atomic.Int32
			n.On(plumb.EvaluationOmitted, func(*plumb.Node) { omitted.Add(1) })

			g := plumb.NewGraph("g")
			addAll(t, g, n)
			if err := makeEv().Evaluate(context.Background(), g); err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if omitted.Load() != 1 {
				t.Errorf("omitted event fired %d times, want 1", omitted.Load())
			}
		})
	}
}

func TestEvaluatorSkipClean(t *testing.T) {
	var calls atomic.Int32
	counting := plumb.Func("count", func(_ context.Context, in map[string]any) (map[string]any, error) {
		calls.Add(1)
		return map[string]any{"out": int(calls.Load())}, nil
	}, []string{"in"}, []string{"out"})

	n := plumb.NewNode("n", counting, plumb.WithInputValue("in", 1))
	g := plumb.NewGraph("g")
	addAll(t, g, n)

	ev := plumb.NewSequentialEvaluator(plumb.WithSkipClean())
	if err := ev.Evaluate(context.Background(), g); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if err := ev.Evaluate(context.Background(), g); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("clean node re-evaluated: %d calls", calls.Load())
	}

	n.Input("in").SetValue(2)
	if err := ev.Evaluate(context.Background(), g); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("dirty node skipped: %d calls", calls.Load())
	}
}

func TestEvaluatorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := doubleChain(t, 5)
	err := plumb.NewSequentialEvaluator().Evaluate(ctx, g)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want context.Canceled", err)
	}
}

func TestEvaluateGraphDefaultsToSequential(t *testing.T) {
	g := doubleChain(t, 2)
	if err := plumb.EvaluateGraph(context.Background(), g, nil); err != nil {
		t.Fatalf("EvaluateGraph() error = %v", err)
	}
	if got := g.Node("b").Output("result").Value(); got != 8 {
		t.Errorf("b.result = %v, want 8", got)
	}
}

func TestEvaluatorReportsCycles(t *testing.T) {
	op := passthrough("op", []string{"in"}, []string{"out"})
	a := plumb.NewNode("a", op)
	b := plumb.NewNode("b", op)
	g := plumb.NewGraph("loop")
	addAll(t, g, a, b)
	wire(t, a.Output("out"), b.Input("in"))
	wire(t, b.Output("out"), a.Input("in"))

	var cycleErr *plumb.CycleError
	if err := plumb.NewSequentialEvaluator().Evaluate(context.Background(), g); !errors.As(err, &cycleErr) {
		t.Errorf("Evaluate() error = %v, want *CycleError", err)
	}
}
