package plumb

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors raised while authoring a graph. Authoring errors fail fast
// and are never retried.
var (
	// ErrInvalidConnection is returned when a connection would pair plugs of
	// incompatible shape, or plugs owned by the same node.
	ErrInvalidConnection = errors.New("plumb: invalid connection")

	// ErrAlreadyConnected is returned when connecting to a non-composite
	// input plug that already has an upstream connection.
	ErrAlreadyConnected = errors.New("plumb: input plug already connected")

	// ErrNotConnected is returned when disconnecting plugs that are not
	// connected to each other.
	ErrNotConnected = errors.New("plumb: plugs are not connected")

	// ErrUnknownType is returned when a serialized record references a node
	// type that has not been registered.
	ErrUnknownType = errors.New("plumb: unknown node type")
)

// CycleError is returned by Graph.Layers when the connection graph is not
// acyclic. Nodes holds the identifiers of the nodes participating in the
// cycle.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("plumb: cycle detected involving nodes [%s]", strings.Join(e.Nodes, ", "))
}

// EvaluationError wraps a failure inside a node's Compute, tagged with the
// identifier of the failing node.
type EvaluationError struct {
	NodeID string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("plumb: evaluating node %s: %v", e.NodeID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// SerializationError wraps a failure while encoding or decoding a node or
// graph record. Op names the record operation that failed.
type SerializationError struct {
	Op  string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("plumb: %s: %v", e.Op, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
