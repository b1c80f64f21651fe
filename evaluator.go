package plumb

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Evaluator executes a graph's dependency layers under a chosen concurrency
// model. Implementations must evaluate layer i completely before starting
// layer i+1; within a layer no ordering may be assumed. A failing node
// aborts the run at the layer boundary: earlier layers' outputs stay valid,
// later layers never start, and the *EvaluationError propagates to the
// caller.
type Evaluator interface {
	Evaluate(ctx context.Context, g *Graph) error
}

// EvaluatorFunc adapts a function to the Evaluator interface. Custom
// evaluators and middleware wrap existing evaluators this way to add
// tracing or logging around evaluation without touching the scheduler.
type EvaluatorFunc func(ctx context.Context, g *Graph) error

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, g *Graph) error { return f(ctx, g) }

// EvaluatorOption configures an evaluator.
type EvaluatorOption func(*evaluatorOptions)

type evaluatorOptions struct {
	logger     Logger
	maxWorkers int
	skipClean  bool
}

func newEvaluatorOptions(opts []EvaluatorOption) evaluatorOptions {
	o := evaluatorOptions{logger: NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger attaches a logger to the evaluator.
func WithLogger(l Logger) EvaluatorOption {
	return func(o *evaluatorOptions) { o.logger = l }
}

// WithMaxWorkers bounds the number of nodes evaluated concurrently within a
// layer. Zero means no bound.
func WithMaxWorkers(n int) EvaluatorOption {
	return func(o *evaluatorOptions) { o.maxWorkers = n }
}

// WithSkipClean skips nodes whose inputs have not changed since they last
// evaluated, enabling partial re-evaluation of a graph.
func WithSkipClean() EvaluatorOption {
	return func(o *evaluatorOptions) { o.skipClean = true }
}

func (o *evaluatorOptions) skip(n *Node) bool {
	return o.skipClean && n.Evaluated() && !n.IsDirty()
}

// SequentialEvaluator evaluates nodes one at a time in deterministic
// insertion order within each layer.
type SequentialEvaluator struct {
	opts evaluatorOptions
}

// NewSequentialEvaluator creates a single-threaded evaluator.
func NewSequentialEvaluator(opts ...EvaluatorOption) *SequentialEvaluator {
	return &SequentialEvaluator{opts: newEvaluatorOptions(opts)}
}

// Evaluate implements Evaluator.
func (e *SequentialEvaluator) Evaluate(ctx context.Context, g *Graph) error {
	layers, err := g.Layers()
	if err != nil {
		return err
	}
	e.opts.logger.Debug(ctx, "evaluating graph", "graph", g.Name(), "layers", len(layers))
	for _, layer := range layers {
		for _, n := range layer {
			if err := ctx.Err(); err != nil {
				return err
			}
			if e.opts.skip(n) {
				continue
			}
			if _, err := n.Evaluate(ctx); err != nil {
				e.opts.logger.Error(ctx, "node evaluation failed", "node", n.Name(), "error", err)
				return err
			}
		}
	}
	return nil
}

// ThreadedEvaluator evaluates each layer's nodes concurrently on a bounded
// goroutine pool, joining the whole layer before the next one starts.
// Suited to I/O-bound computes.
type ThreadedEvaluator struct {
	opts evaluatorOptions
}

// NewThreadedEvaluator creates a goroutine-pool evaluator.
func NewThreadedEvaluator(opts ...EvaluatorOption) *ThreadedEvaluator {
	return &ThreadedEvaluator{opts: newEvaluatorOptions(opts)}
}

// Evaluate implements Evaluator.
func (e *ThreadedEvaluator) Evaluate(ctx context.Context, g *Graph) error {
	layers, err := g.Layers()
	if err != nil {
		return err
	}
	e.opts.logger.Debug(ctx, "evaluating graph", "graph", g.Name(), "layers", len(layers))
	for _, layer := range layers {
		eg, gctx := errgroup.WithContext(ctx)
		if e.opts.maxWorkers > 0 {
			eg.SetLimit(e.opts.maxWorkers)
		}
		for _, n := range layer {
			if e.opts.skip(n) {
				continue
			}
			n := n
			eg.Go(func() error {
				_, err := n.Evaluate(gctx)
				return err
			})
		}
		if err := eg.Wait(); err != nil {
			e.opts.logger.Error(ctx, "layer evaluation failed", "graph", g.Name(), "error", err)
			return err
		}
	}
	return nil
}

// ProcessEvaluator evaluates each node by round-tripping it through the
// serialization contract and a Worker. The worker receives the node's
// record with all input values resolved, evaluates it in isolation and
// returns the result record; the evaluator merges the outputs back into the
// live node before the next layer starts. With an ExecWorker the isolation
// boundary is an OS process; a remote/farm adapter is a drop-in alternative
// behind the same Worker interface. Suited to CPU-bound or
// isolation-sensitive computes; node values must be JSON-serializable.
type ProcessEvaluator struct {
	worker Worker
	opts   evaluatorOptions
}

// NewProcessEvaluator creates an evaluator that dispatches nodes to the
// given worker.
func NewProcessEvaluator(w Worker, opts ...EvaluatorOption) *ProcessEvaluator {
	return &ProcessEvaluator{worker: w, opts: newEvaluatorOptions(opts)}
}

// Evaluate implements Evaluator.
func (e *ProcessEvaluator) Evaluate(ctx context.Context, g *Graph) error {
	layers, err := g.Layers()
	if err != nil {
		return err
	}
	e.opts.logger.Debug(ctx, "evaluating graph", "graph", g.Name(), "layers", len(layers))
	for _, layer := range layers {
		eg, gctx := errgroup.WithContext(ctx)
		if e.opts.maxWorkers > 0 {
			eg.SetLimit(e.opts.maxWorkers)
		}
		for _, n := range layer {
			if n.Omitted() {
				n.emit(EvaluationOmitted)
				continue
			}
			if e.opts.skip(n) {
				continue
			}
			n := n
			eg.Go(func() error {
				result, err := e.worker.Run(gctx, n.Record())
				if err != nil {
					var evalErr *EvaluationError
					if errors.As(err, &evalErr) {
						return err
					}
					return &EvaluationError{NodeID: n.Identifier(), Err: err}
				}
				n.mergeOutputs(result)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			e.opts.logger.Error(ctx, "layer evaluation failed", "graph", g.Name(), "error", err)
			return err
		}
	}
	return nil
}

// EvaluateGraph runs the graph with the given evaluator, defaulting to a
// sequential one when ev is nil.
func EvaluateGraph(ctx context.Context, g *Graph, ev Evaluator) error {
	if ev == nil {
		ev = NewSequentialEvaluator()
	}
	return ev.Evaluate(ctx, g)
}
