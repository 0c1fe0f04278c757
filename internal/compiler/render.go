package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// variablePattern matches ${name} references, including dotted paths such as
// ${user.name}.
var variablePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// renderText substitutes ${...} variable references in a text element by
// translating them to template expressions and delegating evaluation to the
// engine.
func renderText(text string, vars map[string]any) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}

	converted := variablePattern.ReplaceAllString(text, "{{ $1 }}")
	tmpl, err := pongo2.FromString(converted)
	if err != nil {
		return "", fmt.Errorf("compiler: parse text element: %w", err)
	}

	out, err := tmpl.Execute(pongo2.Context(vars))
	if err != nil {
		return "", fmt.Errorf("compiler: render text element: %w", err)
	}
	return out, nil
}

// evalCondition evaluates a conditional element's expression against the
// variable context. Expressions use the engine's syntax (==, !=, <, >, and,
// or, parentheses).
func evalCondition(condition string, vars map[string]any) (bool, error) {
	expr := strings.TrimSpace(condition)
	if expr == "" {
		return false, fmt.Errorf("compiler: conditional element has an empty condition")
	}

	tmpl, err := pongo2.FromString("{% if " + expr + " %}1{% endif %}")
	if err != nil {
		return false, fmt.Errorf("compiler: parse condition %q: %w", condition, err)
	}

	out, err := tmpl.Execute(pongo2.Context(vars))
	if err != nil {
		return false, fmt.Errorf("compiler: evaluate condition %q: %w", condition, err)
	}
	return out == "1", nil
}
