package workflow

import (
	"fmt"
	"regexp"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_.\-]+)\}`)

// RenderArgs substitutes {name} placeholders in action arguments. Every
// placeholder must resolve; a missing value is an error
func RenderArgs(args []string, values map[string]string) ([]string, error) {
	res := make([]string, len(args))
	for i, arg := range args {
		var missing string
		res[i] = placeholder.ReplaceAllStringFunc(arg, func(m string) string {
			name := placeholder.FindStringSubmatch(m)[1]
			if v, ok := values[name]; ok {
				return v
			}
			if missing == "" {
				missing = name
			}
			return m
		})
		if missing != "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingValue, missing)
		}
	}
	return res, nil
}

// Placeholders returns the names referenced by the given arguments
func Placeholders(args []string) []string {
	var res []string
	for _, arg := range args {
		for _, m := range placeholder.FindAllStringSubmatch(arg, -1) {
			res = append(res, m[1])
		}
	}
	return res
}
