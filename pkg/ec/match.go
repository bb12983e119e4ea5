package ec

import "strings"

// matchesPath reports whether a stream subscription's item_names list
// selects path (a full "key" or "key.sub" EC path). In addition to
// spec.md §4.8's "*" (all keys) and exact root-key match, it implements
// original_source/aiko_services/share.py's "key.*" subkey wildcard,
// meaning "every subkey of key" — present in the original's get_items but
// not named in spec.md's prose (SPEC_FULL.md §16).
func matchesPath(itemNames []string, path string) bool {
	root := rootKey(path)
	for _, n := range itemNames {
		switch {
		case n == "*":
			return true
		case n == path:
			return true
		case n == root:
			return true
		case strings.HasSuffix(n, ".*") && strings.TrimSuffix(n, ".*") == root:
			return true
		}
	}
	return false
}
