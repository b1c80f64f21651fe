package builtin

import (
	"context"
	"fmt"

	"github.com/Shopify/go-lua"
)

// LuaType is the registry name of the Lua computable.
const LuaType = "builtin.lua"

// Lua runs a Lua script in a sandboxed interpreter. The node's "data"
// input is exposed to the script as the global "input"; whatever the script
// leaves in the global "result" becomes the node's "result" output. Only
// the base, string, table and math libraries are loaded.
type Lua struct{}

// Type implements plumb.Computable.
func (Lua) Type() string { return LuaType }

// InputNames implements plumb.Computable.
func (Lua) InputNames() []string { return []string{"script", "data"} }

// OutputNames implements plumb.Computable.
func (Lua) OutputNames() []string { return []string{"result"} }

// Compute implements plumb.Computable.
func (Lua) Compute(_ context.Context, inputs map[string]any) (map[string]any, error) {
	script, ok := inputs["script"].(string)
	if !ok {
		return nil, fmt.Errorf("lua: script must be a string, got %T", inputs["script"])
	}

	l := lua.NewState()
	openSandbox(l)

	pushLua(l, inputs["data"])
	l.SetGlobal("input")

	if err := lua.DoString(l, script); err != nil {
		return nil, fmt.Errorf("lua: running script: %w", err)
	}

	l.Global("result")
	result := pullLua(l, -1)
	l.Pop(1)
	return map[string]any{"result": result}, nil
}

// openSandbox loads the safe standard libraries and strips the loaders that
// reach the filesystem.
func openSandbox(l *lua.State) {
	for _, lib := range []struct {
		name string
		open lua.Function
	}{
		{"_G", lua.BaseOpen},
		{"string", lua.StringOpen},
		{"table", lua.TableOpen},
		{"math", lua.MathOpen},
	} {
		lua.Require(l, lib.name, lib.open, true)
		l.Pop(1)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		l.PushNil()
		l.SetGlobal(name)
	}
}

// pushLua converts a Go value onto the Lua stack. Maps and slices become
// tables; anything unrepresentable becomes nil.
func pushLua(l *lua.State, v any) {
	switch val := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(val)
	case int:
		l.PushInteger(val)
	case int64:
		l.PushInteger(int(val))
	case float64:
		l.PushNumber(val)
	case string:
		l.PushString(val)
	case []any:
		l.NewTable()
		for i, item := range val {
			l.PushInteger(i + 1)
			pushLua(l, item)
			l.SetTable(-3)
		}
	case map[string]any:
		l.NewTable()
		for k, item := range val {
			l.PushString(k)
			pushLua(l, item)
			l.SetTable(-3)
		}
	default:
		l.PushNil()
	}
}

// pullLua converts the Lua value at idx back to Go. Tables with contiguous
// integer keys become slices, other tables become maps.
func pullLua(l *lua.State, idx int) any {
	switch l.TypeOf(idx) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return l.ToBoolean(idx)
	case lua.TypeNumber:
		n, _ := l.ToNumber(idx)
		return n
	case lua.TypeString:
		s, _ := l.ToString(idx)
		return s
	case lua.TypeTable:
		l.PushValue(idx)
		length := 0
		isArray := true
		l.PushNil()
		for l.Next(-2) {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
				l.Pop(2)
				break
			}
			if n, _ := l.ToNumber(-2); int(n) > length {
				length = int(n)
			}
			l.Pop(1)
		}
		if isArray && length > 0 {
			arr := make([]any, length)
			for i := 1; i <= length; i++ {
				l.PushInteger(i)
				l.Table(-2)
				arr[i-1] = pullLua(l, -1)
				l.Pop(1)
			}
			l.Pop(1)
			return arr
		}
		obj := make(map[string]any)
		l.PushNil()
		for l.Next(-2) {
			key, _ := l.ToString(-2)
			obj[key] = pullLua(l, -1)
			l.Pop(1)
		}
		l.Pop(1)
		return obj
	default:
		return nil
	}
}
