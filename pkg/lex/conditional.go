package lex

import (
	"fmt"
	"strings"

	"github.com/benjaminschreck/go-lex/pkg/lex/scan"
)

// controlKind is the role a tag plays in a conditional chain
type controlKind int

const (
	controlIf controlKind = iota
	controlUnless
	controlElseIf
	controlElseUnless
	controlElse
	controlEndIf
)

func (k controlKind) String() string {
	switch k {
	case controlIf:
		return "if"
	case controlUnless:
		return "unless"
	case controlElseIf:
		return "elseif"
	case controlElseUnless:
		return "elseunless"
	case controlElse:
		return "else"
	case controlEndIf:
		return "endif"
	default:
		return "unknown"
	}
}

// controlToken is either a run of plain text or a conditional tag
type controlToken struct {
	text   string
	isTag  bool
	kind   controlKind
	expr   string
	pos    int
	result bool
}

// classifyControl reports whether a tag body is a conditional keyword and
// splits off its expression. The keyword must be followed by whitespace or
// "(" so that paths such as "ifdef" stay variables.
func classifyControl(body string) (controlKind, string, bool) {
	switch body {
	case "else":
		return controlElse, "", true
	case "endif":
		return controlEndIf, "", true
	}

	// Longest keywords first so "elseif" is not read as "else".
	for _, kw := range []controlKind{controlElseUnless, controlElseIf, controlUnless, controlIf} {
		word := kw.String()
		if !strings.HasPrefix(body, word) {
			continue
		}
		rest := body[len(word):]
		if rest == "" {
			return kw, "", true
		}
		switch rest[0] {
		case ' ', '\t', '\r', '\n', '(':
			return kw, strings.TrimSpace(rest), true
		}
	}
	return 0, "", false
}

// isControlKeyword reports whether a tag name belongs to the conditional syntax
func isControlKeyword(name string) bool {
	switch name {
	case "if", "unless", "elseif", "elseunless", "else", "endif":
		return true
	}
	return false
}

// tokenizeControls splits text into plain text and conditional tags
func tokenizeControls(text string) []controlToken {
	var tokens []controlToken
	last := 0
	for _, tag := range scan.All(text) {
		kind, expr, ok := classifyControl(tag.Body)
		if !ok || tag.SelfClosing {
			continue
		}
		if tag.Start > last {
			tokens = append(tokens, controlToken{text: text[last:tag.Start], pos: last})
		}
		tokens = append(tokens, controlToken{isTag: true, kind: kind, expr: expr, pos: tag.Start})
		last = tag.End
	}
	if last < len(text) {
		tokens = append(tokens, controlToken{text: text[last:], pos: last})
	}
	return tokens
}

// chainNode is a piece of a conditional tree
type chainNode interface {
	render(sb *strings.Builder)
}

type textNode struct {
	content string
}

func (n *textNode) render(sb *strings.Builder) {
	sb.WriteString(n.content)
}

// ifNode is one if/unless chain with its elseif branches and optional else
type ifNode struct {
	branches []chainBranch
	elseBody []chainNode
}

type chainBranch struct {
	result bool
	body   []chainNode
}

func (n *ifNode) render(sb *strings.Builder) {
	for _, branch := range n.branches {
		if branch.result {
			renderChainBody(sb, branch.body)
			return
		}
	}
	renderChainBody(sb, n.elseBody)
}

func renderChainBody(sb *strings.Builder, body []chainNode) {
	for _, node := range body {
		node.render(sb)
	}
}

// chainParser builds the if tree from tokens whose conditions are already
// evaluated
type chainParser struct {
	tokens []controlToken
	pos    int
}

func (p *chainParser) current() (controlToken, bool) {
	if p.pos >= len(p.tokens) {
		return controlToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *chainParser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *chainParser) parseStructures() ([]chainNode, error) {
	body, err := p.parseBodyUntil()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.current(); ok {
		return nil, NewParseError(fmt.Sprintf("unexpected {{ %s }} without matching if", tok.kind), tok.kind.String(), tok.pos)
	}
	return body, nil
}

func (p *chainParser) parseIf() (*ifNode, error) {
	open, _ := p.current()
	p.advance()

	node := &ifNode{}
	body, err := p.parseBodyUntil(controlElseIf, controlElseUnless, controlElse, controlEndIf)
	if err != nil {
		return nil, err
	}
	node.branches = append(node.branches, chainBranch{result: open.result, body: body})

	for {
		tok, ok := p.current()
		if !ok {
			return nil, NewParseError("missing {{ endif }} for {{ "+open.kind.String()+" }}", open.expr, open.pos)
		}

		switch tok.kind {
		case controlElseIf, controlElseUnless:
			p.advance()
			body, err := p.parseBodyUntil(controlElseIf, controlElseUnless, controlElse, controlEndIf)
			if err != nil {
				return nil, err
			}
			node.branches = append(node.branches, chainBranch{result: tok.result, body: body})

		case controlElse:
			p.advance()
			body, err := p.parseBodyUntil(controlEndIf)
			if err != nil {
				return nil, err
			}
			node.elseBody = body
			if _, ok := p.current(); !ok {
				return nil, NewParseError("missing {{ endif }} after {{ else }}", open.expr, open.pos)
			}

		case controlEndIf:
			p.advance()
			return node, nil
		}
	}
}

func (p *chainParser) parseBodyUntil(stops ...controlKind) ([]chainNode, error) {
	var body []chainNode

	for {
		tok, ok := p.current()
		if !ok {
			return body, nil
		}

		if !tok.isTag {
			body = append(body, &textNode{content: tok.text})
			p.advance()
			continue
		}

		for _, stop := range stops {
			if tok.kind == stop {
				return body, nil
			}
		}

		switch tok.kind {
		case controlIf, controlUnless:
			node, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			body = append(body, node)
		default:
			return nil, NewParseError(fmt.Sprintf("unexpected {{ %s }}", tok.kind), tok.kind.String(), tok.pos)
		}
	}
}

// parseConditionals evaluates every conditional tag in document order, then
// keeps one branch of each chain. Text hidden behind placeholders is not seen.
func (s *Session) parseConditionals(text string, ctx Value) (string, error) {
	tokens := tokenizeControls(text)
	hasTag := false
	for i := range tokens {
		tok := &tokens[i]
		if !tok.isTag {
			continue
		}
		hasTag = true

		switch tok.kind {
		case controlIf, controlUnless, controlElseIf, controlElseUnless:
			if tok.expr == "" {
				return "", NewParseError("empty condition", "{{ "+tok.kind.String()+" }}", tok.pos)
			}
			result, err := s.evaluate(tok.expr, ctx)
			if err != nil {
				return "", err
			}
			if tok.kind == controlUnless || tok.kind == controlElseUnless {
				result = !result
			}
			tok.result = result
		}
	}
	if !hasTag {
		return text, nil
	}

	parser := &chainParser{tokens: tokens}
	nodes, err := parser.parseStructures()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(len(text))
	renderChainBody(&sb, nodes)
	return sb.String(), nil
}

// evaluate parses (through the cache) and evaluates one condition
func (s *Session) evaluate(expr string, ctx Value) (bool, error) {
	node, err := s.parser.cache.Parse(expr, s.glue)
	if err != nil {
		return false, err
	}

	ev := &condEvaluator{session: s, ctx: ctx, glue: s.glue}
	v, err := node.eval(ev)
	if err != nil {
		return false, err
	}

	result := v.Truthy()
	s.logger.DebugCondition(expr, result)
	return result, nil
}
