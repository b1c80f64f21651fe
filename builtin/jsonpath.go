package builtin

import (
	"context"
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// JSONPathType is the registry name of the JSONPath computable.
const JSONPathType = "builtin.jsonpath"

// JSONPath extracts values from structured data with a JSONPath
// expression. A single match yields the matched value on "result"; multiple
// matches yield a slice.
type JSONPath struct{}

// Type implements plumb.Computable.
func (JSONPath) Type() string { return JSONPathType }

// InputNames implements plumb.Computable.
func (JSONPath) InputNames() []string { return []string{"data", "path"} }

// OutputNames implements plumb.Computable.
func (JSONPath) OutputNames() []string { return []string{"result"} }

// Compute implements plumb.Computable.
func (JSONPath) Compute(_ context.Context, inputs map[string]any) (map[string]any, error) {
	path, ok := inputs["path"].(string)
	if !ok {
		return nil, fmt.Errorf("jsonpath: path must be a string, got %T", inputs["path"])
	}
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("jsonpath: parsing %q: %w", path, err)
	}
	matches := expr.Get(inputs["data"])
	var result any
	switch len(matches) {
	case 0:
		result = nil
	case 1:
		result = matches[0]
	default:
		result = matches
	}
	return map[string]any{"result": result}, nil
}
