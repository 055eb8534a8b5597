package scan

import (
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Tag is one {{ ... }} occurrence in a text
type Tag struct {
	// Start and End bound the whole tag, delimiters included
	Start int
	End   int
	// Body is the trimmed text between the delimiters, without a trailing "/"
	Body string
	// SelfClosing is set for {{ name /}}
	SelfClosing bool
}

// Raw returns the tag exactly as it appears in text
func (t Tag) Raw(text string) string {
	return text[t.Start:t.End]
}

// Name returns the first word of the body
func (t Tag) Name() string {
	name, _ := SplitBody(t.Body)
	return name
}

// Params returns everything after the first word of the body
func (t Tag) Params() string {
	_, params := SplitBody(t.Body)
	return params
}

// Closer reports whether the tag is {{ /name }} and returns name
func (t Tag) Closer() (string, bool) {
	if !strings.HasPrefix(t.Body, "/") {
		return "", false
	}
	return strings.TrimSpace(t.Body[1:]), true
}

// SplitBody splits a tag body into its leading word and the remaining text
func SplitBody(body string) (string, string) {
	body = strings.TrimSpace(body)
	idx := strings.IndexAny(body, " \t\r\n")
	if idx == -1 {
		return body, ""
	}
	return body[:idx], strings.TrimSpace(body[idx:])
}

// Next finds the first tag starting at or after from. An opening delimiter
// that is followed by another one before any closing delimiter is skipped, so
// "{{ {{ x }}" yields "{{ x }}".
func Next(text string, from int) (Tag, bool) {
	if from < 0 {
		from = 0
	}
	for from < len(text) {
		rel := strings.Index(text[from:], openDelim)
		if rel == -1 {
			return Tag{}, false
		}
		start := from + rel

		relEnd := strings.Index(text[start+len(openDelim):], closeDelim)
		if relEnd == -1 {
			return Tag{}, false
		}
		bodyEnd := start + len(openDelim) + relEnd
		inner := text[start+len(openDelim) : bodyEnd]

		if nested := strings.LastIndex(inner, openDelim); nested != -1 {
			from = start + len(openDelim) + nested
			continue
		}

		tag := Tag{Start: start, End: bodyEnd + len(closeDelim)}
		body := strings.TrimSpace(inner)
		if strings.HasSuffix(body, "/") && !strings.HasPrefix(body, "/") {
			tag.SelfClosing = true
			body = strings.TrimSpace(strings.TrimSuffix(body, "/"))
		}
		tag.Body = body
		return tag, true
	}
	return Tag{}, false
}

// All returns every tag in text in document order
func All(text string) []Tag {
	var tags []Tag
	pos := 0
	for {
		tag, ok := Next(text, pos)
		if !ok {
			return tags
		}
		tags = append(tags, tag)
		pos = tag.End
	}
}

// Block is an opening tag together with its matching close tag
type Block struct {
	Open  Tag
	Close Tag
}

// Content returns the text between the two tags
func (b Block) Content(text string) string {
	return text[b.Open.End:b.Close.Start]
}

// Raw returns the block from the start of the opening tag to the end of the closing tag
func (b Block) Raw(text string) string {
	return text[b.Open.Start:b.Close.End]
}

// MatchBlock finds the {{ /name }} that closes open. Same-name openings in
// between raise the depth and need their own closer first, so in
// {{x}}A{{x}}B{{/x}}C{{/x}} the outer block holds A{{x}}B{{/x}}C.
// Self-closing tags never open a block.
func MatchBlock(text string, open Tag) (Block, bool) {
	if open.SelfClosing {
		return Block{}, false
	}
	name := open.Name()
	if name == "" {
		return Block{}, false
	}

	depth := 1
	pos := open.End
	for {
		tag, ok := Next(text, pos)
		if !ok {
			return Block{}, false
		}
		pos = tag.End

		if closer, isCloser := tag.Closer(); isCloser {
			if closer == name {
				depth--
				if depth == 0 {
					return Block{Open: open, Close: tag}, true
				}
			}
			continue
		}
		if !tag.SelfClosing && tag.Name() == name {
			depth++
		}
	}
}
