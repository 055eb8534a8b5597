package lex

import (
	"fmt"
	"strconv"
	"strings"
)

// condNode is a node of a parsed conditional expression
type condNode interface {
	String() string
	eval(ev *condEvaluator) (Value, error)
}

// literalNode is a quoted string, number or keyword literal
type literalNode struct {
	value Value
}

func (n *literalNode) String() string {
	return fmt.Sprintf("Literal(%s)", n.value.GoString())
}

func (n *literalNode) eval(ev *condEvaluator) (Value, error) {
	return n.value, nil
}

// pathNode is a bare variable path
type pathNode struct {
	path string
}

func (n *pathNode) String() string {
	return fmt.Sprintf("Path(%s)", n.path)
}

func (n *pathNode) eval(ev *condEvaluator) (Value, error) {
	return ev.resolvePath(n.path)
}

// existsNode is "exists <path>"
type existsNode struct {
	path string
}

func (n *existsNode) String() string {
	return fmt.Sprintf("Exists(%s)", n.path)
}

func (n *existsNode) eval(ev *condEvaluator) (Value, error) {
	return Bool(!IsMissing(Resolve(n.path, ev.ctx, Missing(), ev.glue))), nil
}

// notNode negates its operand
type notNode struct {
	operand condNode
}

func (n *notNode) String() string {
	return fmt.Sprintf("Not(%s)", n.operand.String())
}

func (n *notNode) eval(ev *condEvaluator) (Value, error) {
	v, err := n.operand.eval(ev)
	if err != nil {
		return Value{}, err
	}
	return Bool(!v.Truthy()), nil
}

// binaryNode is a comparison or logical operation
type binaryNode struct {
	left     condNode
	operator string
	right    condNode
}

func (n *binaryNode) String() string {
	return fmt.Sprintf("BinaryOp(%s %s %s)", n.left.String(), n.operator, n.right.String())
}

// eval evaluates both sides before combining them. Callback references are
// dispatched for every operand, matching the order they appear in.
func (n *binaryNode) eval(ev *condEvaluator) (Value, error) {
	left, err := n.left.eval(ev)
	if err != nil {
		return Value{}, err
	}
	right, err := n.right.eval(ev)
	if err != nil {
		return Value{}, err
	}

	switch n.operator {
	case "and", "&&":
		return Bool(left.Truthy() && right.Truthy()), nil
	case "or", "||":
		return Bool(left.Truthy() || right.Truthy()), nil
	case "==":
		return Bool(looseEqual(left, right)), nil
	case "!=", "<>":
		return Bool(!looseEqual(left, right)), nil
	case "===":
		return Bool(strictEqual(left, right)), nil
	case "!==":
		return Bool(!strictEqual(left, right)), nil
	case "<":
		return Bool(looseCompare(left, right) < 0), nil
	case ">":
		return Bool(looseCompare(left, right) > 0), nil
	case "<=":
		return Bool(looseCompare(left, right) <= 0), nil
	case ">=":
		return Bool(looseCompare(left, right) >= 0), nil
	default:
		return Value{}, NewParseError("unknown operator", n.operator, 0)
	}
}

// callbackRefNode is an explicit {name params} reference inside a condition
type callbackRefNode struct {
	name   string
	params string
}

func (n *callbackRefNode) String() string {
	if n.params == "" {
		return fmt.Sprintf("Callback(%s)", n.name)
	}
	return fmt.Sprintf("Callback(%s %s)", n.name, n.params)
}

func (n *callbackRefNode) eval(ev *condEvaluator) (Value, error) {
	if ev.session == nil || ev.session.callback == nil {
		return Null(), nil
	}
	out, err := ev.session.dispatchInline(n.name, n.params, ev.ctx)
	if err != nil {
		return Value{}, err
	}
	return String(out), nil
}

// condEvaluator carries what a condition needs while it is evaluated
type condEvaluator struct {
	session *Session
	ctx     Value
	glue    string
}

// resolvePath folds a path into the literal it stands for. Collections become
// booleans, string-like objects their string form. Unresolved callback-shaped
// names go to the callback; anything else unresolved is null.
func (ev *condEvaluator) resolvePath(path string) (Value, error) {
	v := Resolve(path, ev.ctx, Missing(), ev.glue)
	if IsMissing(v) {
		if ev.session != nil && ev.session.callback != nil && isCallbackName(path, ev.glue) {
			out, err := ev.session.dispatchInline(path, "", ev.ctx)
			if err != nil {
				return Value{}, err
			}
			return String(out), nil
		}
		return Null(), nil
	}
	return toLiteral(v), nil
}

// toLiteral reduces a resolved value to what a condition can compare
func toLiteral(v Value) Value {
	switch v.kind {
	case KindSequence, KindMapping:
		return Bool(v.Len() > 0)
	case KindStringLike:
		return String(v.str.String())
	default:
		return v
	}
}

// Expression tokens

type condTokenType int

const (
	condTokenWord condTokenType = iota
	condTokenNumber
	condTokenString
	condTokenOperator
	condTokenLeftParen
	condTokenRightParen
	condTokenCallback
	condTokenEOF
)

type condToken struct {
	typ   condTokenType
	value string
	pos   int
}

var condOperators = []string{"===", "!==", "==", "!=", "<>", "<=", ">=", "&&", "||", "<", ">", "!"}

// tokenizeCondition splits a condition into tokens. Quoted strings are
// consumed whole so glue characters or operators inside them stay literal.
func tokenizeCondition(expr, glue string) ([]condToken, error) {
	var tokens []condToken
	pos := 0

	for pos < len(expr) {
		c := expr[pos]

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			pos++
			continue
		}

		switch {
		case c == '\'' || c == '"':
			value, end, ok := readQuoted(expr, pos)
			if !ok {
				return nil, NewParseError("unterminated string literal", expr[pos:], pos)
			}
			tokens = append(tokens, condToken{typ: condTokenString, value: value, pos: pos})
			pos = end
			continue

		case c == '(':
			tokens = append(tokens, condToken{typ: condTokenLeftParen, value: "(", pos: pos})
			pos++
			continue

		case c == ')':
			tokens = append(tokens, condToken{typ: condTokenRightParen, value: ")", pos: pos})
			pos++
			continue

		case c == '{':
			end := matchBrace(expr, pos)
			if end == -1 {
				return nil, NewParseError("unterminated callback reference", expr[pos:], pos)
			}
			tokens = append(tokens, condToken{typ: condTokenCallback, value: strings.TrimSpace(expr[pos+1 : end]), pos: pos})
			pos = end + 1
			continue

		case c == '-' && pos+1 < len(expr) && isDigit(expr[pos+1]) && expectsOperand(tokens):
			end := pos + 1
			for end < len(expr) && isPathChar(expr[end], glue) {
				end++
			}
			word := expr[pos:end]
			if _, err := strconv.ParseFloat(word, 64); err != nil {
				return nil, NewParseError("invalid number", word, pos)
			}
			tokens = append(tokens, condToken{typ: condTokenNumber, value: word, pos: pos})
			pos = end
			continue

		case isPathChar(c, glue):
			end := pos
			for end < len(expr) && isPathChar(expr[end], glue) {
				end++
			}
			word := expr[pos:end]
			typ := condTokenWord
			if isNumeric(word) {
				typ = condTokenNumber
			}
			tokens = append(tokens, condToken{typ: typ, value: word, pos: pos})
			pos = end
			continue
		}

		matched := false
		for _, op := range condOperators {
			if strings.HasPrefix(expr[pos:], op) {
				tokens = append(tokens, condToken{typ: condTokenOperator, value: op, pos: pos})
				pos += len(op)
				matched = true
				break
			}
		}
		if !matched {
			return nil, NewParseError(fmt.Sprintf("unexpected character '%c'", c), expr[pos:], pos)
		}
	}

	tokens = append(tokens, condToken{typ: condTokenEOF, pos: pos})
	return tokens, nil
}

// expectsOperand reports whether the next token starts an operand, which is
// where a leading minus belongs to a number
func expectsOperand(tokens []condToken) bool {
	if len(tokens) == 0 {
		return true
	}
	last := tokens[len(tokens)-1]
	switch last.typ {
	case condTokenOperator, condTokenLeftParen:
		return true
	case condTokenWord:
		switch strings.ToLower(last.value) {
		case "and", "or", "not":
			return true
		}
	}
	return false
}

// readQuoted reads a quoted literal starting at pos. Backslash escapes the
// next character.
func readQuoted(s string, pos int) (string, int, bool) {
	quote := s[pos]
	var value strings.Builder
	for i := pos + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				i++
				value.WriteByte(s[i])
			}
		case quote:
			return value.String(), i + 1, true
		default:
			value.WriteByte(s[i])
		}
	}
	return "", 0, false
}

// matchBrace returns the index of the "}" closing the "{" at pos, skipping
// quoted strings, or -1
func matchBrace(s string, pos int) int {
	depth := 0
	for i := pos; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			_, end, ok := readQuoted(s, i)
			if !ok {
				return -1
			}
			i = end - 1
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// isNumeric reports whether s is a plain decimal number
func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	if s == "" || s == "." {
		return false
	}
	dot := false
	for i := 0; i < len(s); i++ {
		switch {
		case isDigit(s[i]):
		case s[i] == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}

// Expression parser

// condParser parses condition tokens into a tree
type condParser struct {
	expr   string
	tokens []condToken
	pos    int
}

// parseCondition parses a conditional expression into a tree
func parseCondition(expr, glue string) (condNode, error) {
	tokens, err := tokenizeCondition(expr, glue)
	if err != nil {
		return nil, withExpression(err, expr)
	}

	p := &condParser{expr: expr, tokens: tokens}
	if p.current().typ == condTokenEOF {
		return nil, NewParseError("empty condition", expr, 0)
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, withExpression(err, expr)
	}

	if tok := p.current(); tok.typ != condTokenEOF {
		return nil, NewParseError(fmt.Sprintf("unexpected trailing token %q in %q", tok.value, expr), tok.value, tok.pos)
	}
	return node, nil
}

func withExpression(err error, expr string) error {
	if pe, ok := err.(*ParseError); ok {
		if !strings.Contains(pe.Message, expr) {
			pe.Message = fmt.Sprintf("%s in %q", pe.Message, expr)
		}
		return pe
	}
	return err
}

func (p *condParser) current() condToken {
	if p.pos >= len(p.tokens) {
		return condToken{typ: condTokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *condParser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

// isKeyword reports whether the current token is the given word, ignoring case
func (p *condParser) isKeyword(word string) bool {
	tok := p.current()
	return tok.typ == condTokenWord && strings.EqualFold(tok.value, word)
}

func (p *condParser) isOperator(ops ...string) bool {
	tok := p.current()
	if tok.typ != condTokenOperator {
		return false
	}
	for _, op := range ops {
		if tok.value == op {
			return true
		}
	}
	return false
}

// parseOr parses "or" chains (lowest precedence)
func (p *condParser) parseOr() (condNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{left: left, operator: "or", right: right}
	}
	return left, nil
}

// parseAnd parses "and" chains
func (p *condParser) parseAnd() (condNode, error) {
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseLogicalOr()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{left: left, operator: "and", right: right}
	}
	return left, nil
}

// parseLogicalOr parses "||" chains
func (p *condParser) parseLogicalOr() (condNode, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.isOperator("||") {
		p.advance()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{left: left, operator: "||", right: right}
	}
	return left, nil
}

// parseLogicalAnd parses "&&" chains
func (p *condParser) parseLogicalAnd() (condNode, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isOperator("&&") {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{left: left, operator: "&&", right: right}
	}
	return left, nil
}

// parseComparison parses equality and relational operators
func (p *condParser) parseComparison() (condNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOperator("==", "!=", "===", "!==", "<>", "<", ">", "<=", ">=") {
		op := p.current().value
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{left: left, operator: op, right: right}
	}
	return left, nil
}

// parseUnary parses "!" and "not"
func (p *condParser) parseUnary() (condNode, error) {
	if p.isOperator("!") || p.isKeyword("not") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

// parsePrimary parses literals, paths, exists clauses, callback references
// and parenthesised expressions
func (p *condParser) parsePrimary() (condNode, error) {
	tok := p.current()

	switch tok.typ {
	case condTokenString:
		p.advance()
		return &literalNode{value: String(tok.value)}, nil

	case condTokenNumber:
		p.advance()
		n, err := strconv.ParseFloat(tok.value, 64)
		if err != nil {
			return nil, NewParseError("invalid number", tok.value, tok.pos)
		}
		return &literalNode{value: Number(n)}, nil

	case condTokenCallback:
		p.advance()
		name, params := splitCallbackRef(tok.value)
		if name == "" {
			return nil, NewParseError("empty callback reference", "{"+tok.value+"}", tok.pos)
		}
		return &callbackRefNode{name: name, params: params}, nil

	case condTokenLeftParen:
		p.advance()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current().typ != condTokenRightParen {
			return nil, NewParseError("expected ')'", p.current().value, p.current().pos)
		}
		p.advance()
		return node, nil

	case condTokenWord:
		word := tok.value
		switch strings.ToLower(word) {
		case "true":
			p.advance()
			return &literalNode{value: Bool(true)}, nil
		case "false":
			p.advance()
			return &literalNode{value: Bool(false)}, nil
		case "null":
			p.advance()
			return &literalNode{value: Null()}, nil
		case "and", "or":
			return nil, NewParseError("missing operand before '"+word+"'", word, tok.pos)
		case "exists":
			next := p.peek(1)
			if next.typ == condTokenWord && !isReservedWord(next.value) {
				p.advance()
				p.advance()
				return &existsNode{path: next.value}, nil
			}
		}
		p.advance()
		return &pathNode{path: word}, nil

	case condTokenEOF:
		return nil, NewParseError("unexpected end of condition", "", tok.pos)

	default:
		return nil, NewParseError("unexpected token", tok.value, tok.pos)
	}
}

func (p *condParser) peek(offset int) condToken {
	if p.pos+offset >= len(p.tokens) {
		return condToken{typ: condTokenEOF}
	}
	return p.tokens[p.pos+offset]
}

func isReservedWord(word string) bool {
	switch strings.ToLower(word) {
	case "and", "or", "not", "true", "false", "null":
		return true
	}
	return false
}

// splitCallbackRef splits "name params" from a {...} reference
func splitCallbackRef(body string) (string, string) {
	body = strings.TrimSpace(body)
	idx := strings.IndexAny(body, " \t\r\n")
	if idx == -1 {
		return body, ""
	}
	return body[:idx], strings.TrimSpace(body[idx:])
}

// EvaluateCondition evaluates expr against ctx without a callback and
// returns its truth value.
func EvaluateCondition(expr string, ctx Value) (bool, error) {
	return New().EvaluateCondition(expr, ctx, nil)
}
