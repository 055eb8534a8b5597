package lex

import (
	"github.com/benjaminschreck/go-lex/pkg/lex/scan"
)

// TagKind classifies the syntactic unit a Tag or Reference was built from
type TagKind int

const (
	TagVariable TagKind = iota
	TagLoop
	TagConditional
	TagCallback
	TagRecursive
)

func (k TagKind) String() string {
	switch k {
	case TagVariable:
		return "variable"
	case TagLoop:
		return "loop"
	case TagConditional:
		return "conditional"
	case TagCallback:
		return "callback"
	case TagRecursive:
		return "recursive"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name
func (k TagKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Tag is what a Callback receives. Content is the text between the opening
// and closing tag, untouched by any pass, and empty for self-closing or lone
// tags. Tags referenced from inside a condition arrive with Kind
// TagConditional and their result is compared as a string literal.
type Tag struct {
	Kind        TagKind
	Name        string
	Params      *Params
	Content     string
	SelfClosing bool
}

// Param returns the named parameter or def when it is absent
func (t Tag) Param(key, def string) string {
	if t.Params == nil {
		return def
	}
	if v, ok := t.Params.Get(key); ok {
		return v
	}
	return def
}

// Callback handles tags the parser does not resolve itself. The returned
// text replaces the tag; it may contain {{ *recursive key* }} markers.
type Callback func(s *Session, tag Tag) (string, error)

// parseCallbackTags dispatches every {{ name params? }} tag left in text to
// the callback, left to right. Block forms get the content up to their
// matching {{ /name }}. Scanning resumes after the substituted text, so
// callback output is never dispatched twice in the same pass.
func (s *Session) parseCallbackTags(text string, ctx Value) (string, error) {
	if s.callback == nil {
		return text, nil
	}

	pos := 0
	for {
		tag, ok := scan.Next(text, pos)
		if !ok {
			return text, nil
		}
		pos = tag.End

		if _, closer := tag.Closer(); closer {
			continue
		}
		name := tag.Name()
		if !IsPath(name, s.glue) || isReservedTag(name) {
			continue
		}

		params, err := s.parseParameters(tag.Params(), ctx)
		if err != nil {
			return "", err
		}

		cbTag := Tag{
			Kind:        TagCallback,
			Name:        name,
			Params:      params,
			SelfClosing: tag.SelfClosing,
		}
		end := tag.End
		if !tag.SelfClosing {
			if block, ok := scan.MatchBlock(text, tag); ok {
				cbTag.Content = block.Content(text)
				end = block.Close.End
			}
		}

		out, err := s.invoke(cbTag, ctx)
		if err != nil {
			return "", err
		}

		fragment := cbTag.Content
		if fragment == "" {
			fragment = out
		}
		out, err = s.expandRecursive(out, ctx, fragment, 0)
		if err != nil {
			return "", err
		}

		text = text[:tag.Start] + out + text[end:]
		pos = tag.Start + len(out)
	}
}

// dispatchInline calls the callback for a reference found inside a condition
// or a parameter value. It has no content and is never expanded recursively.
func (s *Session) dispatchInline(name, rawParams string, ctx Value) (string, error) {
	params, err := s.parseParameters(rawParams, ctx)
	if err != nil {
		return "", err
	}
	return s.invoke(Tag{
		Kind:        TagConditional,
		Name:        name,
		Params:      params,
		SelfClosing: true,
	}, ctx)
}

// invoke runs the callback once, turning returned errors and panics into a
// CallbackError
func (s *Session) invoke(tag Tag, ctx Value) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", &CallbackError{Name: tag.Name, Cause: RecoverError(r)}
		}
	}()

	s.parser.metrics.observeCallback()
	if s.logger.IsDebugMode() {
		s.logger.WithFields(Fields{"tag": tag.Name, "kind": tag.Kind, "params": tag.Params.Len()}).Debug("Dispatching callback")
	}

	out, err = s.callback(s.at(ctx), tag)
	if err != nil {
		return "", &CallbackError{Name: tag.Name, Cause: err}
	}
	return out, nil
}
