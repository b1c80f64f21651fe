package plumb

import "context"

// ComputeFunc is a plain function usable as a node's compute capability.
type ComputeFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

type funcComputable struct {
	typ     string
	fn      ComputeFunc
	inputs  []string
	outputs []string
}

// Func adapts a function into a Computable. Input and output plug names are
// supplied explicitly; dotted names declare sub-plugs. Register the same
// adapter under its type name to make nodes of this kind deserializable:
//
//	registry.Register("double", func() plumb.Computable {
//		return plumb.Func("double", doubleFn, []string{"y"}, []string{"result"})
//	})
func Func(typ string, fn ComputeFunc, inputs, outputs []string) Computable {
	return &funcComputable{typ: typ, fn: fn, inputs: inputs, outputs: outputs}
}

func (f *funcComputable) Type() string          { return f.typ }
func (f *funcComputable) InputNames() []string  { return f.inputs }
func (f *funcComputable) OutputNames() []string { return f.outputs }

func (f *funcComputable) Compute(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return f.fn(ctx, inputs)
}
