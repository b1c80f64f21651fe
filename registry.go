package plumb

import "sort"

// Factory builds a fresh Computable for a registered node type.
type Factory func() Computable

// Registry maps node type names to factories. Deserialization resolves a
// record's type reference through a registry populated at process start;
// unregistered names fail with a *SerializationError instead of any
// implicit lookup.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given type name, replacing any previous
// registration.
func (r *Registry) Register(typ string, f Factory) {
	r.factories[typ] = f
}

// Lookup returns the factory for the given type name.
func (r *Registry) Lookup(typ string) (Factory, bool) {
	f, ok := r.factories[typ]
	return f, ok
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
