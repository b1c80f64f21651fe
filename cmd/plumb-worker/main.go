// Command plumb-worker is the process boundary for graph evaluation: it
// reads one serialized node record from stdin, evaluates it with the
// builtin registry and writes the result record to stdout. Point an
// ExecWorker at this binary, or use it as the entry point of a farm job.
//
// It can also run a whole YAML graph definition with "run".
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/plumbgo/plumb"
	"github.com/plumbgo/plumb/builtin"
	"github.com/plumbgo/plumb/yaml"
)

// Version information set by ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		strategy    = flag.String("strategy", "sequential", "Evaluation strategy for run: sequential, threaded or process")
		maxWorkers  = flag.Int("max-workers", 0, "Bound on concurrent nodes per layer (0 = unbounded)")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "plumb-worker - evaluate serialized plumb nodes\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  plumb-worker                 Serve one node record over stdin/stdout\n")
		fmt.Fprintf(os.Stderr, "  plumb-worker run <file.yaml> Evaluate a YAML graph definition\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("plumb-worker %s (commit: %s)\n", version, commit)
		return
	}

	reg := plumb.NewRegistry()
	builtin.RegisterAll(reg)
	ctx := context.Background()

	args := flag.Args()
	if len(args) == 0 {
		if err := plumb.ServeWorker(ctx, os.Stdin, os.Stdout, reg); err != nil {
			fmt.Fprintf(os.Stderr, "plumb-worker: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if args[0] != "run" || len(args) != 2 {
		flag.Usage()
		os.Exit(2)
	}
	if err := runGraph(ctx, args[1], reg, *strategy, *maxWorkers); err != nil {
		fmt.Fprintf(os.Stderr, "plumb-worker: %v\n", err)
		os.Exit(1)
	}
}

func runGraph(ctx context.Context, path string, reg *plumb.Registry, strategy string, maxWorkers int) error {
	g, err := yaml.NewLoader(reg).LoadFile(path)
	if err != nil {
		return err
	}

	var ev plumb.Evaluator
	switch strategy {
	case "sequential":
		ev = plumb.NewSequentialEvaluator()
	case "threaded":
		ev = plumb.NewThreadedEvaluator(plumb.WithMaxWorkers(maxWorkers))
	case "process":
		ev = plumb.NewProcessEvaluator(&plumb.LocalWorker{Registry: reg}, plumb.WithMaxWorkers(maxWorkers))
	default:
		return fmt.Errorf("unknown strategy %q", strategy)
	}

	if err := ev.Evaluate(ctx, g); err != nil {
		return err
	}

	for _, n := range g.ExitNodes() {
		for _, name := range n.OutputNames() {
			fmt.Printf("%s.%s = %v\n", n.Name(), name, n.Output(name).Value())
		}
	}
	return nil
}
