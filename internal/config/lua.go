package config

import (
	"context"
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// noneMarker is the payload of the NONE userdata. Lua tables cannot hold
// nil, so configs write `format = NONE` to request an unpackaged artifact.
type noneMarker struct{}

// decodeLua runs a Lua config in the sandbox and converts the global
// dotslash table. Table keys are sorted because Lua does not keep
// insertion order.
func decodeLua(ctx context.Context, code string, release ReleaseInfo) (value, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	injectReleaseTable(L, release)
	none := L.NewUserData()
	none.Value = noneMarker{}
	L.SetGlobal(luaGlobalNone, none)

	if err := L.DoString(code); err != nil {
		return value{}, &ParseError{
			Message: "Lua error",
			Detail:  err.Error(),
		}
	}

	root := L.GetGlobal(luaGlobalConfig)
	if root.Type() != lua.LTTable {
		return value{}, &ParseError{
			Message: fmt.Sprintf("missing or invalid '%s' table", luaGlobalConfig),
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}

	v, err := fromLua(root, 0)
	if err != nil {
		return value{}, &ParseError{
			Message: "unsupported value in Lua config",
			Detail:  err.Error(),
		}
	}
	return v, nil
}

func fromLua(lv lua.LValue, depth int) (value, error) {
	if depth > maxDepth {
		return value{}, fmt.Errorf("table nested deeper than %d levels", maxDepth)
	}

	switch lv.Type() {
	case lua.LTNil:
		return value{kind: kindNull}, nil
	case lua.LTBool:
		return value{kind: kindBool, boolean: lua.LVAsBool(lv)}, nil
	case lua.LTNumber:
		return value{kind: kindNumber, str: lv.String()}, nil
	case lua.LTString:
		return value{kind: kindString, str: lua.LVAsString(lv)}, nil
	case lua.LTUserData:
		if _, ok := lv.(*lua.LUserData).Value.(noneMarker); ok {
			return value{kind: kindNull}, nil
		}
	case lua.LTTable:
		return fromLuaTable(lv.(*lua.LTable), depth)
	}
	return value{}, fmt.Errorf("%s values are not allowed", lv.Type())
}

func fromLuaTable(t *lua.LTable, depth int) (value, error) {
	if n := t.MaxN(); n > 0 && t.Len() == n && countKeys(t) == n {
		v := value{kind: kindArray}
		for i := 1; i <= n; i++ {
			item, err := fromLua(t.RawGetInt(i), depth+1)
			if err != nil {
				return value{}, err
			}
			v.items = append(v.items, item)
		}
		return v, nil
	}

	var keys []string
	var badKey lua.LValue
	t.ForEach(func(k, _ lua.LValue) {
		if k.Type() != lua.LTString {
			badKey = k
			return
		}
		keys = append(keys, lua.LVAsString(k))
	})
	if badKey != nil {
		return value{}, fmt.Errorf("table key %s must be a string", badKey.String())
	}
	sort.Strings(keys)

	v := value{kind: kindObject}
	for _, key := range keys {
		val, err := fromLua(t.RawGetString(key), depth+1)
		if err != nil {
			return value{}, fmt.Errorf("%s: %w", key, err)
		}
		v.set(key, val)
	}
	return v, nil
}

func countKeys(t *lua.LTable) int {
	n := 0
	t.ForEach(func(_, _ lua.LValue) { n++ })
	return n
}

// injectReleaseTable exposes the release being processed to Lua configs as
// a read-only global table.
func injectReleaseTable(L *lua.LState, release ReleaseInfo) {
	table := L.NewTable()
	L.SetField(table, "tag", lua.LString(release.Tag))
	L.SetField(table, "repo", lua.LString(release.Repo))
	L.SetGlobal(luaGlobalRelease, makeReadOnly(L, table))
}

// makeReadOnly wraps table in an empty proxy whose metatable redirects
// reads and rejects writes.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s table is read-only and cannot be modified", luaGlobalRelease)
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
