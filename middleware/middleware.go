// Package middleware provides evaluator decorators: cross-cutting concerns
// such as logging and timing wrapped around any plumb.Evaluator without
// touching the scheduling contract.
package middleware

import (
	"context"

	"github.com/plumbgo/plumb"
)

// Middleware wraps an evaluator with additional behavior. The wrapped
// evaluator keeps the layer-barrier guarantees of the one it decorates.
type Middleware func(plumb.Evaluator) plumb.Evaluator

// Chain applies middlewares to an evaluator in order: the first middleware
// becomes the outermost wrapper.
func Chain(ev plumb.Evaluator, middlewares ...Middleware) plumb.Evaluator {
	for i := len(middlewares) - 1; i >= 0; i-- {
		ev = middlewares[i](ev)
	}
	return ev
}

// Logging logs the start and outcome of every graph evaluation.
func Logging(logger plumb.Logger) Middleware {
	return func(next plumb.Evaluator) plumb.Evaluator {
		return plumb.EvaluatorFunc(func(ctx context.Context, g *plumb.Graph) error {
			logger.Info(ctx, "graph evaluation starting", "graph", g.Name(), "nodes", len(g.Nodes()))
			err := next.Evaluate(ctx, g)
			if err != nil {
				logger.Error(ctx, "graph evaluation failed", "graph", g.Name(), "error", err)
				return err
			}
			logger.Info(ctx, "graph evaluation finished", "graph", g.Name())
			return nil
		})
	}
}
