// Package command resolves {name} placeholders in command templates.
package command

import (
	"strings"
)

// Template is a command string plus the variables bound to it.
type Template struct {
	raw  string
	vars map[string]Value
}

func New(raw string) *Template {
	return &Template{
		raw:  raw,
		vars: make(map[string]Value),
	}
}

// Set binds a single variable. Empty names are ignored.
func (t *Template) Set(name string, value Value) *Template {
	if name == "" {
		return t
	}
	t.vars[name] = value
	return t
}

// SetMap merges vars into the bindings, later writes winning by name.
func (t *Template) SetMap(vars map[string]Value) *Template {
	for name, value := range vars {
		t.Set(name, value)
	}
	return t
}

// Build returns the command with every bound placeholder replaced.
func (t *Template) Build() string {
	return Resolve(t.raw, t.vars)
}

// Resolve replaces each {name} whose name is bound in vars with the value's
// string form, in a single left-to-right pass. Unbound or malformed
// placeholders are copied through unchanged and substituted text is never
// rescanned.
func Resolve(raw string, vars map[string]Value) string {
	if len(vars) == 0 || !strings.Contains(raw, "{") {
		return raw
	}

	var sb strings.Builder
	sb.Grow(len(raw))

	for i := 0; i < len(raw); {
		if raw[i] != '{' {
			sb.WriteByte(raw[i])
			i++
			continue
		}
		end := strings.IndexByte(raw[i+1:], '}')
		if end < 0 {
			sb.WriteString(raw[i:])
			break
		}
		name := raw[i+1 : i+1+end]
		if value, ok := vars[name]; ok && !strings.Contains(name, "{") {
			sb.WriteString(value.String())
			i += end + 2
			continue
		}
		sb.WriteByte('{')
		i++
	}
	return sb.String()
}
