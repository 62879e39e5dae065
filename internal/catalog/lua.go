package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultScriptTimeout bounds the execution of one catalog script.
const DefaultScriptTimeout = 5 * time.Second

// LuaSource defines components from a Lua script. The script calls the
// global function component{...} once per component:
//
//	component {
//	    scheme = "greeter",
//	    syntax = "greeter:name",
//	    description = "Says hello",
//	    path = { { name = "name", required = true, description = "Who to greet" } },
//	    parameters = {
//	        { name = "loud", type = "boolean", default = "false", description = "Shout" },
//	    },
//	}
//
// Only the base, table, string and math libraries are available.
type LuaSource struct {
	Name    string
	Script  string
	Timeout time.Duration
}

// NewLuaFileSource reads a script from disk.
func NewLuaFileSource(path string) (*LuaSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceError{Source: path, Err: err}
	}
	return &LuaSource{Name: path, Script: string(data)}, nil
}

// Load runs the script and returns the components it defined.
func (s *LuaSource) Load(ctx context.Context) ([]*ComponentSchema, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSafeLibraries(L)
	L.SetContext(ctx)

	var (
		schemas []*ComponentSchema
		defErr  error
	)
	L.SetGlobal("component", L.NewFunction(func(L *lua.LState) int {
		schema, err := tableToSchema(L.CheckTable(1))
		if err != nil {
			defErr = err
			L.RaiseError("%s", err.Error())
			return 0
		}
		schemas = append(schemas, schema)
		return 0
	}))

	if err := L.DoString(s.Script); err != nil {
		if defErr != nil {
			err = defErr
		}
		return nil, &SourceError{Source: s.Name, Err: fmt.Errorf("%w: %w", ErrScript, err)}
	}
	return schemas, nil
}

// Base library functions that load code from files or strings.
var unsafeBaseFuncs = []string{"dofile", "loadfile", "load", "loadstring"}

// openSafeLibraries opens the libraries a definition script may use.
// io, os, debug and package stay closed, and the base loaders are removed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	for _, name := range unsafeBaseFuncs {
		L.SetGlobal(name, lua.LNil)
	}
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

func tableToSchema(t *lua.LTable) (*ComponentSchema, error) {
	id := luaString(t, "scheme")
	if id == "" {
		return nil, fmt.Errorf("%w: component without scheme", ErrInvalidSchema)
	}

	path, err := tableToParams(t.RawGetString("path"))
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", id, err)
	}
	query, err := tableToParams(t.RawGetString("parameters"))
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", id, err)
	}

	s := NewComponentSchema(id, path, query)
	s.Title = luaString(t, "title")
	s.Description = luaString(t, "description")
	s.Deprecated = lua.LVAsBool(t.RawGetString("deprecated"))
	if syntax := luaString(t, "syntax"); syntax != "" {
		s.Syntax = syntax
	}
	return s, nil
}

func tableToParams(v lua.LValue) ([]ParamDef, error) {
	if v == lua.LNil {
		return nil, nil
	}
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: parameter list must be a table", ErrInvalidSchema)
	}

	defs := make([]ParamDef, 0, t.Len())
	for i := 1; i <= t.Len(); i++ {
		pt, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %d must be a table", ErrInvalidSchema, i)
		}
		def := ParamDef{
			Name:        luaString(pt, "name"),
			Type:        ParseParamType(luaString(pt, "type")),
			Default:     luaString(pt, "default"),
			Required:    lua.LVAsBool(pt.RawGetString("required")),
			Deprecated:  lua.LVAsBool(pt.RawGetString("deprecated")),
			Description: luaString(pt, "description"),
			Remainder:   lua.LVAsBool(pt.RawGetString("remainder")),
			Reference:   lua.LVAsBool(pt.RawGetString("reference")),
		}
		if def.Name == "" {
			return nil, fmt.Errorf("%w: parameter %d has no name", ErrInvalidSchema, i)
		}
		if et, ok := pt.RawGetString("enum").(*lua.LTable); ok {
			for j := 1; j <= et.Len(); j++ {
				def.Enum = append(def.Enum, lua.LVAsString(et.RawGetInt(j)))
			}
		}
		if def.HasEnum() && def.Type == TypeString {
			def.Type = TypeEnum
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func luaString(t *lua.LTable, key string) string {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return ""
	}
	return lua.LVAsString(v)
}
