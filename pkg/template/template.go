// Package template substitutes {{name}} placeholders in message text using
// the execution context.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Render replaces every {{name}} placeholder in input with the value of
// context[name]. Unresolved placeholders are left literal: substitution
// never fails, so an authoring typo degrades to visible text instead of
// aborting the step.
func Render(input string, context map[string]any) string {
	if input == "" || len(context) == 0 {
		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		key := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])

		value, ok := lookup(context, key)
		if !ok {
			return match
		}

		return stringify(value)
	})
}

// lookup resolves a dotted key ("customer.name") against nested maps.
func lookup(context map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")

	var current any = context

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		// JSON numbers decode as float64; print integers without the
		// trailing ".000000".
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}

		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
