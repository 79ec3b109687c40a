// Package template substitutes {{name}} tokens in the pass template.
package template

import "regexp"

var tokenPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Render replaces every {{name}} token that has an entry in values with the
// corresponding string. Tokens without an entry are left verbatim: templates
// may contain unrelated double-brace text that is not ours to touch.
//
// Substitution is a single pass over the template, so brace syntax inside a
// replacement value is never re-expanded.
func Render(tpl string, values map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		name := match[2 : len(match)-2]
		if v, ok := values[name]; ok {
			return v
		}
		return match
	})
}

// Tokens returns the distinct placeholder names present in a template, in
// order of first appearance.
func Tokens(tpl string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range tokenPattern.FindAllStringSubmatch(tpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
