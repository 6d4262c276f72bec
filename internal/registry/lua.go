package registry

import (
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/platform"
)

// luaCodec evaluates a registry script. The script must assign a global
// "sources" table:
//
//	sources = {
//	  Linux = {
//	    { url = "https://...", sha256 = "", desc = "johnvansickle static" },
//	  },
//	}
//
// Scripts may read the read-only "platform" table. A script that does is
// marked dynamic: its output depends on the host, so it is never rewritten.
type luaCodec struct {
	platform *platform.Info
	dynamic  bool
}

func (c *luaCodec) decode(data []byte) (Table, error) {
	L := newSandboxedVM()
	defer L.Close()

	info := c.platform
	if info == nil {
		info = &platform.Info{}
	}
	platform.ExposeToLua(L, info, func(string) { c.dynamic = true })

	if err := L.DoString(string(data)); err != nil {
		return nil, &ParseError{Message: "Lua syntax error", Detail: trimTraceback(err.Error())}
	}

	sourcesVal := L.GetGlobal("sources")
	root, ok := sourcesVal.(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'sources' table",
			Detail:  fmt.Sprintf("expected table, got %s", sourcesVal.Type()),
		}
	}

	table := Table{}
	var extractErr error
	root.ForEach(func(key, value lua.LValue) {
		if extractErr != nil {
			return
		}
		name, ok := key.(lua.LString)
		if !ok {
			extractErr = fmt.Errorf("platform keys must be strings, got %s", key.Type())
			return
		}
		list, ok := value.(*lua.LTable)
		if !ok {
			extractErr = fmt.Errorf("platform %q: expected list of sources, got %s", string(name), value.Type())
			return
		}
		sources, err := extractSources(list)
		if err != nil {
			extractErr = fmt.Errorf("platform %q: %w", string(name), err)
			return
		}
		table[string(name)] = sources
	})
	if extractErr != nil {
		return nil, &ParseError{Message: "invalid 'sources' table", Detail: extractErr.Error()}
	}

	return table, nil
}

func (c *luaCodec) encode(table Table) ([]byte, error) {
	return []byte(newGenerator().generate(table)), nil
}

// extractSources reads a list of source entries in index order. nil holes
// (from platform.when) are skipped. A bare string is shorthand for a URL.
func extractSources(list *lua.LTable) ([]*Source, error) {
	type indexed struct {
		index float64
		src   *Source
	}

	var entries []indexed
	var err error
	list.ForEach(func(key, value lua.LValue) {
		if err != nil {
			return
		}
		idx, ok := key.(lua.LNumber)
		if !ok {
			err = fmt.Errorf("sources must be a list, found key %q", key.String())
			return
		}

		var src *Source
		switch v := value.(type) {
		case lua.LString:
			src = &Source{URL: string(v)}
		case *lua.LTable:
			src = &Source{
				URL:         stringField(v, "url"),
				SHA256:      stringField(v, "sha256"),
				Description: stringField(v, "desc"),
				Signature:   stringField(v, "sig"),
			}
		default:
			err = fmt.Errorf("source #%v: expected table or string, got %s", float64(idx), value.Type())
			return
		}
		entries = append(entries, indexed{index: float64(idx), src: src})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

	sources := make([]*Source, 0, len(entries))
	for _, e := range entries {
		sources = append(sources, e.src)
	}
	return sources, nil
}

func stringField(t *lua.LTable, name string) string {
	if v, ok := t.RawGetString(name).(lua.LString); ok {
		return string(v)
	}
	return ""
}

// trimTraceback drops the Lua stack traceback from an error message.
func trimTraceback(detail string) string {
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		return strings.TrimSpace(detail[:idx])
	}
	return detail
}
