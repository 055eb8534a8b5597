package lex

import (
	"strings"

	"github.com/benjaminschreck/go-lex/pkg/lex/scan"
)

// Session is the state of one top-level Parse call: the root data every
// nested parse merges against, the callback, and the nesting depth. A new
// session is created per Parse, so concurrent parses never share state
// except the cumulative noparse store of their Parser.
type Session struct {
	parser     *Parser
	root       Value
	ctx        Value
	callback   Callback
	allowRaw   bool
	glue       string
	cumulative bool
	depth      int
	logger     *Logger
}

// Root returns the data passed to the top-level Parse call
func (s *Session) Root() Value { return s.root }

// Data returns the context in effect where the current tag was found
func (s *Session) Data() Value { return s.ctx }

// Depth returns how many nested parses lie between this session and the top-level call
func (s *Session) Depth() int { return s.depth }

// Glue returns the scope glue this session splits paths with
func (s *Session) Glue() string { return s.glue }

// Parse runs the full pipeline on text with data merged over the root
// context. Callbacks use it to render their block content for each item
// they handle. It fails with ErrMaxDepth once nesting exceeds the limit.
func (s *Session) Parse(text string, data Value) (string, error) {
	child, err := s.nested()
	if err != nil {
		return "", err
	}
	ctx := Merge(s.root, data)
	child.ctx = ctx
	return child.render(text, ctx)
}

// nested returns a copy of s one level deeper
func (s *Session) nested() (*Session, error) {
	limit := s.parser.config.MaxRenderDepth
	if limit > 0 && s.depth+1 > limit {
		return nil, &DepthError{Depth: s.depth + 1, Limit: limit}
	}
	child := *s
	child.depth++
	child.logger = s.logger.WithField("depth", child.depth)
	return &child, nil
}

// at returns a copy of s whose Data is ctx
func (s *Session) at(ctx Value) *Session {
	cs := *s
	cs.ctx = ctx
	return &cs
}

var rawCodeReplacer = strings.NewReplacer("<?", "&lt;?", "?>", "?&gt;")

// neutralizeRawCode escapes host code delimiters so a template cannot smuggle
// executable source into the output
func neutralizeRawCode(text string) string {
	return rawCodeReplacer.Replace(text)
}

// parseComments removes every {{# ... #}} comment. An unterminated comment is
// left in place as literal text.
func parseComments(text string) string {
	if !strings.Contains(text, "{{#") {
		return text
	}
	var sb strings.Builder
	sb.Grow(len(text))
	for {
		start := strings.Index(text, "{{#")
		if start == -1 {
			sb.WriteString(text)
			return sb.String()
		}
		sb.WriteString(text[:start])
		end := strings.Index(text[start+3:], "#}}")
		if end == -1 {
			sb.WriteString(text[start:])
			return sb.String()
		}
		text = text[start+3+end+3:]
	}
}

// extractNoparse hides the content of every {{ noparse }} block
func extractNoparse(text string, store *Store) string {
	pos := 0
	for {
		tag, ok := scan.Next(text, pos)
		if !ok {
			return text
		}
		if tag.Body != "noparse" || tag.SelfClosing {
			pos = tag.End
			continue
		}
		block, ok := scan.MatchBlock(text, tag)
		if !ok {
			pos = tag.End
			continue
		}
		token := store.Hide(CategoryNoparse, block.Content(text))
		text = text[:block.Open.Start] + token + text[block.Close.End:]
		pos = block.Open.Start + len(token)
	}
}

// extractBlocks hides every outermost {{ name }}...{{ /name }} block so the
// conditional pass of this scope does not see into it. Blocks whose opening
// tag carries parameters belong to callbacks; the others are loops.
func (s *Session) extractBlocks(text string, store *Store) string {
	pos := 0
	for {
		tag, ok := scan.Next(text, pos)
		if !ok {
			return text
		}
		pos = tag.End

		if tag.SelfClosing {
			continue
		}
		if _, closer := tag.Closer(); closer {
			continue
		}
		name := tag.Name()
		if !IsPath(name, s.glue) || isReservedTag(name) {
			continue
		}

		block, ok := scan.MatchBlock(text, tag)
		if !ok {
			continue
		}

		category := CategoryLoopedTags
		if hasParameters(tag.Params()) {
			category = CategoryCallbackBlocks
		}
		token := store.Hide(category, block.Raw(text))
		text = text[:block.Open.Start] + token + text[block.Close.End:]
		pos = block.Open.Start + len(token)
	}
}

// hasParameters reports whether a tag's parameter text holds at least one
// key=value pair
func hasParameters(params string) bool {
	return strings.Contains(params, "=")
}

// isReservedTag reports names that are never variables or callbacks
func isReservedTag(name string) bool {
	return name == "noparse" || isControlKeyword(name)
}

// scope runs the passes that every nesting level repeats: block extraction,
// conditionals, variables and loops, then callbacks. Placeholders created in
// store stay in the returned text.
func (s *Session) scope(text string, ctx Value, store *Store) (string, error) {
	text = s.extractBlocks(text, store)
	s.logger.DebugPass("extract_blocks", text)

	text, err := s.parseConditionals(text, ctx)
	if err != nil {
		return "", err
	}
	s.logger.DebugPass("conditionals", text)

	text = store.Inject(text, CategoryLoopedTags)

	text, err = s.parseVariables(text, ctx, store)
	if err != nil {
		return "", err
	}
	s.logger.DebugPass("variables", text)

	text = store.Inject(text, CategoryCallbackBlocks)

	if s.callback != nil {
		text, err = s.parseCallbackTags(text, ctx)
		if err != nil {
			return "", err
		}
		s.logger.DebugPass("callbacks", text)
	}
	return text, nil
}

// render runs the whole pipeline for one parse level
func (s *Session) render(text string, ctx Value) (string, error) {
	if !s.allowRaw {
		text = neutralizeRawCode(text)
	}
	text = parseComments(text)

	noparse := NewStore()
	if s.cumulative {
		noparse = s.parser.noparse
	}
	text = extractNoparse(text, noparse)

	store := NewStore()
	text, err := s.scope(text, ctx, store)
	if err != nil {
		return "", err
	}

	text = store.InjectAll(text)
	if !s.cumulative {
		text = noparse.InjectAll(text)
	}
	return text, nil
}
