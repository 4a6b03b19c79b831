package results

import "sort"

// Flatten collapses nested string-keyed mappings into a single level with
// `/`-joined path keys. Leaf values pass through unchanged.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", m)

	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "/" + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, path, nested)

			continue
		}
		out[path] = v
	}
}

// columns orders flattened paths deterministically: the round column first,
// every other path sorted.
func columns(flat map[string]any) []string {
	cols := make([]string, 0, len(flat))
	for k := range flat {
		if k == "round" {
			continue
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	return append([]string{"round"}, cols...)
}
