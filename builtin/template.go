package builtin

import (
	"context"
	"fmt"
	"strings"
	"text/template"
)

// TemplateType is the registry name of the Template computable.
const TemplateType = "builtin.template"

// Template renders a Go text/template against its "data" input and emits
// the rendered string on "text".
type Template struct{}

// Type implements plumb.Computable.
func (Template) Type() string { return TemplateType }

// InputNames implements plumb.Computable.
func (Template) InputNames() []string { return []string{"template", "data"} }

// OutputNames implements plumb.Computable.
func (Template) OutputNames() []string { return []string{"text"} }

// Compute implements plumb.Computable.
func (Template) Compute(_ context.Context, inputs map[string]any) (map[string]any, error) {
	src, ok := inputs["template"].(string)
	if !ok {
		return nil, fmt.Errorf("template: template must be a string, got %T", inputs["template"])
	}
	tmpl, err := template.New("node").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("template: parsing: %w", err)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, inputs["data"]); err != nil {
		return nil, fmt.Errorf("template: rendering: %w", err)
	}
	return map[string]any{"text": buf.String()}, nil
}
