package builtin

import "context"

// ValueType is the registry name of the Value computable.
const ValueType = "builtin.value"

// Value passes its input through unchanged. A value node is the idiomatic
// way to feed a constant into several downstream inputs from a single
// place.
type Value struct{}

// Type implements plumb.Computable.
func (Value) Type() string { return ValueType }

// InputNames implements plumb.Computable.
func (Value) InputNames() []string { return []string{"value"} }

// OutputNames implements plumb.Computable.
func (Value) OutputNames() []string { return []string{"value"} }

// Compute implements plumb.Computable.
func (Value) Compute(_ context.Context, inputs map[string]any) (map[string]any, error) {
	return map[string]any{"value": inputs["value"]}, nil
}
