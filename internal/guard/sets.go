package guard

import "strings"

func lowerSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	addLower(out, items)
	return out
}

func addLower(set map[string]struct{}, items []string) {
	for _, item := range items {
		set[strings.ToLower(item)] = struct{}{}
	}
}
