package registry

import (
	"bytes"
	"sort"
	"strings"
)

// generator writes a Table back out as a Lua registry script.
type generator struct {
	indent string
}

func newGenerator() *generator {
	return &generator{indent: "  "}
}

// generate emits a deterministic script: platforms sorted by name, sources
// in priority order.
func (g *generator) generate(table Table) string {
	var buf bytes.Buffer

	buf.WriteString("-- depfetch source registry\n")
	buf.WriteString("-- Rewritten by depfetch when a hash is trusted; comments are not preserved.\n\n")
	buf.WriteString("sources = {\n")

	platforms := make([]string, 0, len(table))
	for name := range table {
		platforms = append(platforms, name)
	}
	sort.Strings(platforms)

	for _, name := range platforms {
		buf.WriteString(g.indent)
		buf.WriteString("[")
		buf.WriteString(quoteLuaString(name))
		buf.WriteString("] = {\n")

		for _, src := range table[name] {
			g.writeSource(&buf, src)
		}

		buf.WriteString(g.indent)
		buf.WriteString("},\n")
	}

	buf.WriteString("}\n")
	return buf.String()
}

func (g *generator) writeSource(buf *bytes.Buffer, src *Source) {
	inner := strings.Repeat(g.indent, 3)

	buf.WriteString(strings.Repeat(g.indent, 2))
	buf.WriteString("{\n")

	writeField := func(key, value string, always bool) {
		if value == "" && !always {
			return
		}
		buf.WriteString(inner)
		buf.WriteString(key)
		buf.WriteString(" = ")
		buf.WriteString(quoteLuaString(value))
		buf.WriteString(",\n")
	}
	writeField("url", src.URL, true)
	writeField("sha256", src.SHA256, true)
	writeField("desc", src.Description, false)
	writeField("sig", src.Signature, false)

	buf.WriteString(strings.Repeat(g.indent, 2))
	buf.WriteString("},\n")
}

// quoteLuaString quotes a string for Lua, handling special characters.
func quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
