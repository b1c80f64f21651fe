package plumb

// EventKind identifies a point in a node's evaluation lifecycle.
type EventKind string

// Events emitted by Node.Evaluate.
const (
	EvaluationStarted  EventKind = "evaluation-started"
	EvaluationFinished EventKind = "evaluation-finished"
	EvaluationOmitted  EventKind = "evaluation-omitted"
	EvaluationFailed   EventKind = "evaluation-failed"
)

// EventListener observes a node's evaluation lifecycle. Listeners run
// synchronously on the evaluating goroutine; they must not mutate plugs.
type EventListener func(n *Node)

// On registers a listener for the given event kind.
func (n *Node) On(kind EventKind, l EventListener) {
	if n.listeners == nil {
		n.listeners = make(map[EventKind][]EventListener)
	}
	n.listeners[kind] = append(n.listeners[kind], l)
}

func (n *Node) emit(kind EventKind) {
	for _, l := range n.listeners[kind] {
		l(n)
	}
}
