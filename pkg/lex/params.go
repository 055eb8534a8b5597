package lex

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Params holds the parameters of a callback tag in the order they were written
type Params = orderedmap.OrderedMap[string, string]

// NewParams returns an empty parameter map
func NewParams() *Params {
	return orderedmap.New[string, string]()
}

// quote entities accepted as parameter delimiters when a template was
// HTML-escaped before reaching the parser
var entityQuotes = []string{"&quot;", "&#34;", "&#39;", "&apos;"}

// parseParameters reads key="value" pairs from a tag's parameter string.
// Values may be single, double or entity quoted, a {name params} callback
// reference, or a bare word that is resolved as a path against ctx. A bare
// word that does not resolve but looks like a callback name goes to the
// callback when there is one.
func (s *Session) parseParameters(raw string, ctx Value) (*Params, error) {
	params := NewParams()
	pos := 0

	for pos < len(raw) {
		pos = skipSpace(raw, pos)
		if pos >= len(raw) {
			break
		}

		keyStart := pos
		for pos < len(raw) && isParamKeyChar(raw[pos]) {
			pos++
		}
		key := raw[keyStart:pos]
		if key == "" {
			// Not a key; skip the offending character.
			pos++
			continue
		}

		pos = skipSpace(raw, pos)
		if pos >= len(raw) || raw[pos] != '=' {
			// A bare flag carries no value.
			continue
		}
		pos = skipSpace(raw, pos+1)
		if pos >= len(raw) {
			params.Set(key, "")
			break
		}

		value, next, err := s.readParamValue(raw, pos, ctx)
		if err != nil {
			return nil, err
		}
		params.Set(key, value)
		pos = next
	}

	return params, nil
}

func (s *Session) readParamValue(raw string, pos int, ctx Value) (string, int, error) {
	switch c := raw[pos]; {
	case c == '"' || c == '\'':
		value, end, ok := readQuoted(raw, pos)
		if !ok {
			return raw[pos+1:], len(raw), nil
		}
		return value, end, nil

	case c == '&':
		for _, entity := range entityQuotes {
			if !strings.HasPrefix(raw[pos:], entity) {
				continue
			}
			start := pos + len(entity)
			end := findUnescaped(raw, entity, start)
			if end == -1 {
				return unescapeParam(raw[start:]), len(raw), nil
			}
			return unescapeParam(raw[start:end]), end + len(entity), nil
		}

	case c == '{':
		end := matchBrace(raw, pos)
		if end == -1 {
			break
		}
		ref := raw[pos : end+1]
		if s == nil || s.callback == nil {
			return ref, end + 1, nil
		}
		name, rest := splitCallbackRef(raw[pos+1 : end])
		out, err := s.dispatchInline(name, rest, ctx)
		if err != nil {
			return "", 0, err
		}
		return out, end + 1, nil
	}

	end := pos
	for end < len(raw) && !isSpace(raw[end]) {
		end++
	}
	word := raw[pos:end]
	glue := DefaultScopeGlue
	if s != nil {
		glue = s.glue
	}
	if IsPath(word, glue) {
		if v := Resolve(word, ctx, Missing(), glue); !IsMissing(v) {
			return v.String(), end, nil
		}
		if s != nil && s.callback != nil && !isNumeric(word) && isCallbackName(word, glue) {
			out, err := s.dispatchInline(word, "", ctx)
			if err != nil {
				return "", 0, err
			}
			return out, end, nil
		}
	}
	return word, end, nil
}

// findUnescaped returns the index of the first delim at or after from that is
// not preceded by a backslash
func findUnescaped(s, delim string, from int) int {
	for from <= len(s) {
		idx := strings.Index(s[from:], delim)
		if idx == -1 {
			return -1
		}
		at := from + idx
		if at > 0 && s[at-1] == '\\' {
			from = at + 1
			continue
		}
		return at
	}
	return -1
}

// unescapeParam drops the backslash in front of escaped characters
func unescapeParam(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func isParamKeyChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return c == '_' || c == '-' || c == '.' || c == ':'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && isSpace(s[pos]) {
		pos++
	}
	return pos
}
