package ctx

import (
	"fmt"
	"strings"

	"github.com/albertocavalcante/rules-python-go/types"
)

// expandLocation expands $(location ...) and $(locations ...) patterns in a
// string. The singular form requires the label to resolve to exactly one
// file; the plural form joins all files with spaces. Text that merely looks
// like an expansion, such as an unrelated make variable, passes through
// verbatim.
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/LocationExpander.java
func expandLocation(input string, labelMap map[string][]*types.File) (string, error) {
	var out strings.Builder
	rest := input

	for {
		start := strings.Index(rest, "$(location")
		if start == -1 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])

		end := strings.Index(rest[start:], ")")
		if end == -1 {
			return "", fmt.Errorf("unmatched parenthesis in $(location ...)")
		}
		end += start

		pattern := rest[start : end+1]
		rest = rest[end+1:]

		var label string
		var isPlural bool
		switch {
		case strings.HasPrefix(pattern, "$(locations "):
			label = strings.TrimSpace(pattern[len("$(locations ") : len(pattern)-1])
			isPlural = true
		case strings.HasPrefix(pattern, "$(location "):
			label = strings.TrimSpace(pattern[len("$(location ") : len(pattern)-1])
		default:
			out.WriteString(pattern)
			continue
		}

		files, ok := labelMap[label]
		if !ok {
			return "", fmt.Errorf("label %q not found in location expansion", label)
		}
		if len(files) == 0 {
			return "", fmt.Errorf("label %q has no files", label)
		}
		if !isPlural && len(files) > 1 {
			return "", fmt.Errorf("label %q expands to multiple files, use $(locations ...) instead", label)
		}

		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path()
		}
		out.WriteString(strings.Join(paths, " "))
	}

	return out.String(), nil
}
