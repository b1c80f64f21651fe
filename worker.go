package plumb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Worker evaluates a single serialized node across an isolation boundary:
// it receives a node record with resolved input values, evaluates the node
// and returns the result record. The local process pool and a remote farm
// adapter are the same operation behind this interface, at different
// boundaries.
type Worker interface {
	Run(ctx context.Context, rec *NodeRecord) (*NodeRecord, error)
}

// LocalWorker rebuilds the node from its record through a registry and
// evaluates it in-process. The copy shares no state with the original node,
// giving process-pool semantics without the process.
type LocalWorker struct {
	Registry *Registry
}

// Run implements Worker.
func (w *LocalWorker) Run(ctx context.Context, rec *NodeRecord) (*NodeRecord, error) {
	n, err := NodeFromRecord(rec, w.Registry)
	if err != nil {
		return nil, err
	}
	if _, err := n.Evaluate(ctx); err != nil {
		return nil, err
	}
	return n.Record(), nil
}

// ExecWorker spawns one OS process per node: the node record is written to
// the command's stdin as JSON and the result record is read back from its
// stdout. The spawned command is expected to call ServeWorker with a
// registry matching the orchestrator's.
type ExecWorker struct {
	Path string
	Args []string
}

// Run implements Worker.
func (w *ExecWorker) Run(ctx context.Context, rec *NodeRecord) (*NodeRecord, error) {
	payload, err := marshalRecord(rec, "encode node")
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, w.Path, w.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("worker %s: %w: %s", w.Path, err, msg)
		}
		return nil, fmt.Errorf("worker %s: %w", w.Path, err)
	}
	return decodeNodeRecord(stdout.Bytes())
}

// ServeWorker implements the worker side of the contract: read one node
// record from r, rebuild and evaluate the node, write the result record to
// w. Run it from the process an ExecWorker spawns, or from a farm job's
// entry point.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer, reg *Registry) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("plumb: reading node record: %w", err)
	}
	n, err := DecodeNode(data, reg)
	if err != nil {
		return err
	}
	if _, err := n.Evaluate(ctx); err != nil {
		return err
	}
	out, err := EncodeNode(n)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("plumb: writing result record: %w", err)
	}
	return nil
}
