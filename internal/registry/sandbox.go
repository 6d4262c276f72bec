package registry

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Registry scripts get the base, string, table and math libraries only.
var registryLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.StringLibName, lua.OpenString},
	{lua.TabLibName, lua.OpenTable},
	{lua.MathLibName, lua.OpenMath},
}

// base library functions that reach the filesystem or load code
var unsafeBuiltins = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// newSandboxedVM returns a Lua state that cannot touch files, spawn
// processes or load further code.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range registryLibs {
		err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name))
		if err != nil {
			panic(fmt.Sprintf("open lua library %s: %v", lib.name, err))
		}
	}
	for _, name := range unsafeBuiltins {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
