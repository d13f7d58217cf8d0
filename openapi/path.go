package openapi

import (
	"fmt"
	"strings"
)

// macroTypeMap maps mux route macros to OpenAPI type and format.
var macroTypeMap = map[string][2]string{
	"uuid":     {"string", "uuid"},
	"int":      {"integer", ""},
	"float":    {"number", ""},
	"slug":     {"string", ""},
	"alpha":    {"string", ""},
	"alphanum": {"string", ""},
	"date":     {"string", "date"},
	"hex":      {"string", ""},
	"domain":   {"string", "hostname"},
}

// PathVar is a variable found in a route template.
type PathVar struct {
	Name string
	// Macro is the mux route macro ("{id:int}") or "int" for an Express
	// digit constraint (":id(\\d+)"). Empty when unconstrained.
	Macro string
}

// ParsePath converts a route template to OpenAPI form. It understands
// Express-style ":name" tokens (with optional "?" and "(regex)" suffixes)
// and mux-style "{name}" / "{name:macro}" tokens, including the net/http
// "{name...}" wildcard and "{$}" anchor, and returns the variables in the
// order they appear.
//
// See: https://spec.openapis.org/oas/v3.1.0#path-templating
func ParsePath(tpl string) (string, []PathVar, error) {
	var (
		out  strings.Builder
		vars []PathVar
	)

	for i := 0; i < len(tpl); {
		switch {
		case tpl[i] == '{':
			end, err := closingBrace(tpl, i)
			if err != nil {
				return "", nil, err
			}
			inner := tpl[i+1 : end]
			if inner == "$" {
				// net/http end-of-path anchor: "/items/{$}"
				i = end + 1
				continue
			}
			name, macro, _ := strings.Cut(inner, ":")
			// net/http remainder wildcard: "{path...}"
			name = strings.TrimSuffix(strings.TrimSpace(name), "...")
			if name == "" {
				return "", nil, fmt.Errorf("empty path variable in %q", tpl)
			}
			vars = append(vars, PathVar{Name: name, Macro: strings.TrimSpace(macro)})
			out.WriteString("{" + name + "}")
			i = end + 1

		case tpl[i] == ':' && (i == 0 || tpl[i-1] == '/'):
			j := i + 1
			for j < len(tpl) && isIdentByte(tpl[j]) {
				j++
			}
			name := tpl[i+1 : j]
			if name == "" {
				return "", nil, fmt.Errorf("empty path variable in %q", tpl)
			}
			v := PathVar{Name: name}
			if j < len(tpl) && tpl[j] == '(' {
				end := strings.IndexByte(tpl[j:], ')')
				if end < 0 {
					return "", nil, fmt.Errorf("unbalanced parentheses in %q", tpl)
				}
				if pattern := tpl[j+1 : j+end]; pattern == `\d+` || pattern == `\\d+` || pattern == "[0-9]+" {
					v.Macro = "int"
				}
				j += end + 1
			}
			if j < len(tpl) && tpl[j] == '?' {
				j++
			}
			vars = append(vars, v)
			out.WriteString("{" + name + "}")
			i = j

		default:
			out.WriteByte(tpl[i])
			i++
		}
	}

	return out.String(), vars, nil
}

// closingBrace returns the index of the brace that closes the one at
// start, allowing nested braces inside macro regexps such as {8}.
func closingBrace(s string, start int) (int, error) {
	level := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			level++
		case '}':
			if level--; level == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced braces in %q", s)
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// JoinPath mounts a route path under a scope prefix. A route path of "/"
// (or "") collapses to "/{scope}"; duplicate slashes are removed and a
// trailing slash is dropped.
func JoinPath(scope, route string) string {
	parts := []string{}
	for _, seg := range strings.Split(scope+"/"+route, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return "/" + strings.Join(parts, "/")
}

// IsIdentifierName reports whether a parameter or property name denotes an
// identifier: "id" itself, or a name ending in "Id", "ID" or "_id".
func IsIdentifierName(name string) bool {
	if strings.EqualFold(name, "id") {
		return true
	}
	return strings.HasSuffix(name, "Id") || strings.HasSuffix(name, "ID") ||
		strings.HasSuffix(strings.ToLower(name), "_id")
}

// PathParameter builds the required path Parameter for a route variable.
// A known macro decides the schema; otherwise identifier-like names are
// integers and everything else is a string.
//
// See: https://spec.openapis.org/oas/v3.1.0#parameter-object
func PathParameter(v PathVar) *Parameter {
	param := &Parameter{
		Name:     v.Name,
		In:       "path",
		Required: true,
		Schema:   &Schema{Type: TypeString("string")},
	}

	if typeInfo, ok := macroTypeMap[v.Macro]; ok {
		param.Schema = &Schema{Type: TypeString(typeInfo[0]), Format: typeInfo[1]}
		return param
	}

	if IsIdentifierName(v.Name) {
		param.Schema = &Schema{Type: TypeString("integer")}
	}

	return param
}
