// Package permission implements matching of dot-segmented permission
// strings against granted patterns.
package permission

import "strings"

const wildcardSuffix = ".*"

// Matches reports whether a permission satisfies a granted pattern.
// Comparison is case-insensitive throughout. A pattern ending in ".*"
// grants the prefix segment and everything under it; the wildcard is only
// meaningful as the final segment and is never expanded recursively.
// Total for any two strings: empty inputs simply do not match.
func Matches(permission, pattern string) bool {
	if permission == "" || pattern == "" {
		return false
	}
	if strings.EqualFold(permission, pattern) {
		return true
	}
	if strings.HasSuffix(pattern, wildcardSuffix) {
		prefix := pattern[:len(pattern)-len(wildcardSuffix)]
		return hasPrefixFold(permission, prefix+".")
	}
	return false
}

// MatchesAny reports whether a permission satisfies at least one of the
// granted patterns.
func MatchesAny(permission string, patterns []string) bool {
	for _, pattern := range patterns {
		if Matches(permission, pattern) {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
