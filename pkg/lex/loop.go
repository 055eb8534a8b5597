package lex

import (
	"strings"

	"github.com/benjaminschreck/go-lex/pkg/lex/scan"
)

// parseVariables replaces {{ path }} tags and expands {{ path }}...{{ /path }}
// loops in a single left-to-right scan. Everything it produces is hidden in
// store under the rendered category so no later pass parses it again.
//
// A path that does not resolve is left in place for the callback pass when
// the session has a callback and renders as nothing otherwise.
func (s *Session) parseVariables(text string, ctx Value, store *Store) (string, error) {
	pos := 0
	for {
		tag, ok := scan.Next(text, pos)
		if !ok {
			return text, nil
		}
		pos = tag.End

		if tag.SelfClosing || tag.Params() != "" {
			continue
		}
		if _, closer := tag.Closer(); closer {
			continue
		}
		name := tag.Name()
		if !IsPath(name, s.glue) || isReservedTag(name) {
			continue
		}

		value := Resolve(name, ctx, Missing(), s.glue)
		block, isBlock := scan.MatchBlock(text, tag)

		var start, end int
		var output string
		switch {
		case isBlock && IsMissing(value):
			if s.callback != nil {
				pos = block.Close.End
				continue
			}
			start, end = block.Open.Start, block.Close.End

		case isBlock:
			out, err := s.expandLoop(name, block.Content(text), value, ctx)
			if err != nil {
				return "", err
			}
			start, end, output = block.Open.Start, block.Close.End, out

		case IsMissing(value):
			if s.callback != nil {
				continue
			}
			start, end = tag.Start, tag.End

		default:
			start, end, output = tag.Start, tag.End, value.String()
		}

		if output != "" {
			output = store.Hide(CategoryRendered, output)
		}
		text = text[:start] + output + text[end:]
		pos = start + len(output)
	}
}

// expandLoop renders content once per item of value. Each item runs the
// scope passes with the item merged over the enclosing context, so lookups
// fall back from the item to outer loops and the root. A value that is not a
// collection renders nothing.
func (s *Session) expandLoop(name, content string, value, ctx Value) (string, error) {
	if !value.IsCollection() {
		return "", nil
	}

	items := value.Items()
	s.logger.WithFields(Fields{"loop": name, "items": len(items)}).Debug("Expanding loop")

	var sb strings.Builder
	for _, item := range items {
		itemCtx := ctx
		if item.Kind() == KindMapping {
			itemCtx = Merge(ctx, item)
		}

		store := NewStore()
		out, err := s.scope(content, itemCtx, store)
		if err != nil {
			return "", err
		}
		sb.WriteString(store.InjectAll(out))
	}
	return sb.String(), nil
}
