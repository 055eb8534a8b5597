package lex

import (
	"strconv"
	"strings"
)

// DefaultScopeGlue separates nested path segments unless reconfigured
const DefaultScopeGlue = "."

// Missing returns the sentinel used to tell an absent key from a present falsy one.
// It never compares equal to any value a caller can build.
func Missing() Value { return Value{kind: kindMissing} }

// IsMissing reports whether v is the Missing sentinel
func IsMissing(v Value) bool { return v.kind == kindMissing }

// splitPath splits a dotted or glued path into its segments
func splitPath(path, glue string) []string {
	if glue == "" {
		glue = DefaultScopeGlue
	}
	if glue != DefaultScopeGlue && strings.Contains(path, glue) {
		return strings.Split(path, glue)
	}
	return strings.Split(path, DefaultScopeGlue)
}

// Resolve walks path through ctx one segment at a time and returns def as
// soon as a segment cannot be followed. No partial matches are returned.
func Resolve(path string, ctx Value, def Value, glue string) Value {
	path = strings.TrimSpace(path)
	if path == "" {
		return def
	}

	current := ctx
	for _, part := range splitPath(path, glue) {
		switch current.kind {
		case KindMapping:
			next, ok := current.m.Get(part)
			if !ok {
				return def
			}
			current = next
		case KindSequence:
			next, ok := sequenceIndex(current.seq, part)
			if !ok {
				return def
			}
			current = next
		default:
			// Scalars and string-like objects expose no named properties.
			return def
		}
	}
	return current
}

// sequenceIndex looks up a decimal segment such as the 0 in list.0
func sequenceIndex(items []Value, part string) (Value, bool) {
	if part == "" || part[0] < '0' || part[0] > '9' {
		return Value{}, false
	}
	i, err := strconv.Atoi(part)
	if err != nil || i < 0 || i >= len(items) {
		return Value{}, false
	}
	return items[i], true
}

// isPathChar reports whether r may appear in a variable path
func isPathChar(r byte, glue string) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.':
		return true
	}
	return strings.IndexByte(glue, r) >= 0
}

// IsPath reports whether s is made only of path characters
func IsPath(s, glue string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isPathChar(s[i], glue) {
			return false
		}
	}
	return true
}

// isCallbackName reports whether a path has the shape of a namespaced callback
// name: two path runs joined by the glue.
func isCallbackName(s, glue string) bool {
	if glue == "" {
		glue = DefaultScopeGlue
	}
	if !IsPath(s, glue) {
		return false
	}
	idx := strings.Index(s, glue)
	return idx > 0 && idx+len(glue) < len(s)
}
