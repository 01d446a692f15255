package rules

import "github.com/sb2root/sbcore/pkg/ruletree"

// matchSelector implements the selector-match rules of the rule
// engine: PATH requires exact length-and-equality, PREFIX a byte
// prefix, DIR a path-or-directory-boundary prefix (or both-are-root).
// On match it returns the matched length, used as the "minimum path
// length needed to decide this rule".
func matchSelector(selType ruletree.SelectorType, selector, path string) (matched bool, length int) {
	switch selType {
	case ruletree.SelectorPath:
		if len(selector) == len(path) && selector == path {
			return true, len(selector)
		}
		return false, 0

	case ruletree.SelectorPrefix:
		if len(path) >= len(selector) && path[:len(selector)] == selector {
			return true, len(selector)
		}
		return false, 0

	case ruletree.SelectorDir:
		if path == selector {
			return true, len(selector)
		}
		if selector == "/" && path == "/" {
			return true, 1
		}
		if len(path) > len(selector) && path[:len(selector)] == selector && path[len(selector)] == '/' {
			return true, len(selector)
		}
		return false, 0

	default:
		return false, 0
	}
}
