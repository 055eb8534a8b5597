package lex

import (
	"regexp"
	"strings"
)

var recursiveMarker = regexp.MustCompile(`\{\{\s*\*recursive\s+([^\s*}]+)\s*\*\s*\}\}`)

// expandRecursive replaces each {{ *recursive key* }} marker in text with
// fragment rendered once per child found under key in ctx. Every child runs
// the whole pipeline and then has its own markers expanded against its own
// key, so trees of any depth unfold depth first while siblings keep their
// order. Missing or empty children remove the marker.
func (s *Session) expandRecursive(text string, ctx Value, fragment string, level int) (string, error) {
	pos := 0
	for {
		loc := recursiveMarker.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			return text, nil
		}
		start, end := pos+loc[0], pos+loc[1]
		key := text[pos+loc[2] : pos+loc[3]]

		limit := s.parser.config.MaxRenderDepth
		if limit > 0 && level >= limit {
			return "", &DepthError{Depth: level + 1, Limit: limit}
		}

		out, err := s.expandChildren(key, ctx, fragment, level)
		if err != nil {
			return "", err
		}

		text = text[:start] + out + text[end:]
		pos = start + len(out)
	}
}

func (s *Session) expandChildren(key string, ctx Value, fragment string, level int) (string, error) {
	children := Resolve(key, ctx, Missing(), s.glue)
	if !children.IsCollection() || children.Len() == 0 {
		return "", nil
	}

	items := children.Items()
	if !hasNestedCollection(items) {
		// A flat collection is one child rather than a list of children.
		items = []Value{children}
	}

	s.logger.WithFields(Fields{"key": key, "children": len(items), "level": level}).Debug("Expanding recursive marker")

	var sb strings.Builder
	for _, item := range items {
		child := normalizeChild(item)
		if _, ok := child.Get(key); !ok {
			child.Set(key, Seq())
		}
		childValue := MapValue(child)

		rendered, err := s.Parse(fragment, childValue)
		if err != nil {
			return "", err
		}
		rendered, err = s.expandRecursive(rendered, childValue, fragment, level+1)
		if err != nil {
			return "", err
		}
		sb.WriteString(rendered)
	}
	return sb.String(), nil
}

func hasNestedCollection(items []Value) bool {
	for _, item := range items {
		if item.IsCollection() {
			return true
		}
	}
	return false
}

// normalizeChild copies a child into a fresh mapping. A sequence contributes
// its elements under their indexes and a scalar becomes the "0" entry.
func normalizeChild(v Value) *Mapping {
	switch v.Kind() {
	case KindMapping:
		return cloneMapping(v.AsMapping())
	case KindSequence:
		m := NewMapping()
		for i, item := range v.AsSequence() {
			m.Set(formatNumber(float64(i)), item)
		}
		return m
	default:
		m := NewMapping()
		m.Set("0", v)
		return m
	}
}
