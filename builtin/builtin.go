// Package builtin ships general-purpose computables: a value passthrough
// for injecting constants, JSONPath extraction, text templating and a
// sandboxed Lua script runner. Register them with RegisterAll so serialized
// graphs using them can be rebuilt anywhere.
package builtin

import "github.com/plumbgo/plumb"

// RegisterAll registers every builtin node type with the registry.
func RegisterAll(reg *plumb.Registry) {
	reg.Register(ValueType, func() plumb.Computable { return Value{} })
	reg.Register(JSONPathType, func() plumb.Computable { return JSONPath{} })
	reg.Register(TemplateType, func() plumb.Computable { return Template{} })
	reg.Register(LuaType, func() plumb.Computable { return Lua{} })
}
