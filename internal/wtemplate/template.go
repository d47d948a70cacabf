// Package wtemplate renders a webhook's command string against the
// parameters supplied in the triggering request. Placeholder syntax is
// deliberately the bare mustache form used throughout the external
// interface — {{name}} — not Go's {{.name}}; this package is the only
// place that distinction is visible.
package wtemplate

import (
	"bytes"
	"fmt"
	"regexp"
	"text/template"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Render substitutes every {{name}} placeholder in command with
// params["name"]. It is strict: a placeholder with no matching parameter
// is a rendering error, not a silently empty string, so malformed
// requests fail fast with a 400 rather than running a half-filled
// command.
func Render(command string, params map[string]string) (string, error) {
	dotted := placeholder.ReplaceAllString(command, "{{.$1}}")

	tmpl, err := template.New("command").Option("missingkey=error").Parse(dotted)
	if err != nil {
		return "", fmt.Errorf("invalid command template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("missing template parameter: %w", err)
	}

	return buf.String(), nil
}

// Placeholders returns the distinct parameter names a command template
// references, in first-seen order.
func Placeholders(command string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(command, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
