package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// ExposeToLua publishes info to a registry script as the global "platform".
// Scripts read platform.os, platform.system, platform.arch,
// platform.arch_raw, platform.keys and platform.distro, and may call
// platform.is(name) and platform.when(cond, value). Assignment raises an
// error.
//
// onRead, if non-nil, is called with the field name on every read.
func ExposeToLua(L *lua.LState, info *Info, onRead func(field string)) {
	fields := map[string]lua.LValue{
		"os":       lua.LString(info.OS),
		"system":   lua.LString(info.System()),
		"arch":     lua.LString(info.Arch),
		"arch_raw": lua.LString(info.ArchRaw),
		"keys":     stringList(L, info.Keys()),
		"distro":   lua.LNil,
		"is": L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LBool(info.Is(L.CheckString(1))))
			return 1
		}),
		"when": L.NewFunction(func(L *lua.LState) int {
			if lua.LVAsBool(L.Get(1)) {
				L.Push(L.Get(2))
			} else {
				L.Push(lua.LNil)
			}
			return 1
		}),
	}
	if d := info.Distro; d != nil {
		t := L.NewTable()
		t.RawSetString("id", lua.LString(d.ID))
		t.RawSetString("family", lua.LString(d.Family))
		t.RawSetString("version", lua.LString(d.Version))
		fields["distro"] = t
	}

	backing := L.NewTable()
	for k, v := range fields {
		backing.RawSetString(k, v)
	}
	L.SetGlobal("platform", frozen(L, backing, onRead))
}

func stringList(L *lua.LState, items []string) *lua.LTable {
	t := L.CreateTable(len(items), 0)
	for _, s := range items {
		t.Append(lua.LString(s))
	}
	return t
}

// frozen returns an empty proxy that reads through to t and refuses writes.
func frozen(L *lua.LState, t *lua.LTable, onRead func(string)) *lua.LTable {
	meta := L.NewTable()
	meta.RawSetString("__index", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckAny(2)
		if onRead != nil {
			onRead(key.String())
		}
		L.Push(t.RawGet(key))
		return 1
	}))
	meta.RawSetString("__metatable", lua.LFalse)
	meta.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform is read-only (tried to set %q)", L.CheckAny(2).String())
		return 0
	}))
	proxy := L.NewTable()
	L.SetMetatable(proxy, meta)
	return proxy
}
