package lex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/benjaminschreck/go-lex/pkg/lex/scan"
)

// IssueSeverity indicates how serious a template issue is. Errors make Parse
// fail; warnings mark text the parser will leave alone.
type IssueSeverity string

const (
	IssueSeverityError   IssueSeverity = "error"
	IssueSeverityWarning IssueSeverity = "warning"
)

// IssueCode classifies a template issue
type IssueCode string

const (
	IssueCodeSyntaxError          IssueCode = "SYNTAX_ERROR"
	IssueCodeControlBlockMismatch IssueCode = "CONTROL_BLOCK_MISMATCH"
	IssueCodeUnsupportedExpr      IssueCode = "UNSUPPORTED_EXPRESSION"
)

// Location points into a template. Offset is in bytes; Line and Column start at 1.
type Location struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Issue is one problem found by ValidateTemplate
type Issue struct {
	ID         string        `json:"id"`
	Severity   IssueSeverity `json:"severity"`
	Code       IssueCode     `json:"code"`
	Message    string        `json:"message"`
	Raw        string        `json:"raw"`
	Expression string        `json:"expression,omitempty"`
	Location   Location      `json:"location"`
}

// ValidationSummary contains validation counters.
type ValidationSummary struct {
	CheckedTags        int `json:"checkedTags"`
	ErrorCount         int `json:"errorCount"`
	WarningCount       int `json:"warningCount"`
	ReturnedIssueCount int `json:"returnedIssueCount"`
}

// ValidationResult contains syntax validation output. Valid is false as soon
// as there is one error; warnings alone keep a template valid.
type ValidationResult struct {
	Valid           bool              `json:"valid"`
	Summary         ValidationSummary `json:"summary"`
	Issues          []Issue           `json:"issues"`
	IssuesTruncated bool              `json:"issuesTruncated"`
}

// Reference is a name a template reads: a variable, a loop, a path tested by
// a condition, a callback or a recursive key.
type Reference struct {
	Kind     TagKind  `json:"kind"`
	Name     string   `json:"name"`
	Raw      string   `json:"raw"`
	Location Location `json:"location"`
}

// ValidateTemplate checks text with the default parser's settings and returns
// every issue
func ValidateTemplate(text string) ValidationResult {
	result, _ := DefaultParser().ValidateTemplate(text, 0)
	return result
}

// ExtractReferences lists what text refers to, using the default parser's glue
func ExtractReferences(text string) []Reference {
	return DefaultParser().ExtractReferences(text)
}

// ValidateTemplate checks conditional balance, condition expressions and tag
// shapes without rendering anything. maxIssues caps the returned issues; 0
// means no cap.
func (p *Parser) ValidateTemplate(text string, maxIssues int) (ValidationResult, error) {
	if maxIssues < 0 {
		return ValidationResult{}, fmt.Errorf("maxIssues must be >= 0")
	}

	ts := scanTemplate(text, p.ScopeGlue())
	ts.validate()
	issues := ts.issues
	sortIssues(issues)

	summary := ValidationSummary{CheckedTags: len(ts.tags)}
	for i := range issues {
		issues[i].ID = fmt.Sprintf("iss_%03d", i+1)
		if issues[i].Severity == IssueSeverityError {
			summary.ErrorCount++
		} else {
			summary.WarningCount++
		}
	}

	returned := issues
	truncated := false
	if maxIssues > 0 && len(issues) > maxIssues {
		returned = issues[:maxIssues]
		truncated = true
	}
	summary.ReturnedIssueCount = len(returned)

	p.logger.WithFields(Fields{
		"tags":     summary.CheckedTags,
		"errors":   summary.ErrorCount,
		"warnings": summary.WarningCount,
	}).Debug("Validated template")

	return ValidationResult{
		Valid:           summary.ErrorCount == 0,
		Summary:         summary,
		Issues:          returned,
		IssuesTruncated: truncated,
	}, nil
}

// ExtractReferences lists, in document order, every name text refers to.
// Blocks without parameters are reported as loops and tags with parameters
// as callbacks; a lone tag is reported as a variable even though a callback
// may end up answering it.
func (p *Parser) ExtractReferences(text string) []Reference {
	ts := scanTemplate(text, p.ScopeGlue())
	refs := make([]Reference, 0)

	for _, tag := range ts.tags {
		emit := func(kind TagKind, name string) {
			refs = append(refs, Reference{
				Kind:     kind,
				Name:     name,
				Raw:      tag.Raw(text),
				Location: locate(text, tag.Start),
			})
		}

		body := tag.Body
		if body == "" {
			continue
		}
		if strings.HasPrefix(body, "*") {
			if m := recursiveMarker.FindStringSubmatch(tag.Raw(text)); m != nil {
				emit(TagRecursive, m[1])
			}
			continue
		}
		if _, expr, ok := classifyControl(body); ok {
			if node, err := parseCondition(expr, ts.glue); err == nil {
				collectConditionReferences(node, emit)
			}
			continue
		}
		if _, closer := tag.Closer(); closer {
			continue
		}

		name := tag.Name()
		if !IsPath(name, ts.glue) || isReservedTag(name) {
			continue
		}
		params := tag.Params()
		switch {
		case tag.SelfClosing || hasParameters(params):
			emit(TagCallback, name)
		default:
			if _, ok := scan.MatchBlock(text, tag); ok {
				emit(TagLoop, name)
			} else {
				emit(TagVariable, name)
			}
		}
		collectParamReferences(params, ts.glue, emit)
	}
	return refs
}

func collectConditionReferences(node condNode, emit func(kind TagKind, name string)) {
	switch n := node.(type) {
	case *pathNode:
		emit(TagConditional, n.path)
	case *existsNode:
		emit(TagConditional, n.path)
	case *callbackRefNode:
		emit(TagCallback, n.name)
	case *notNode:
		collectConditionReferences(n.operand, emit)
	case *binaryNode:
		collectConditionReferences(n.left, emit)
		collectConditionReferences(n.right, emit)
	}
}

// collectParamReferences reports the {name params} references in a tag's
// parameter text
func collectParamReferences(params, glue string, emit func(kind TagKind, name string)) {
	for i := 0; i < len(params); i++ {
		if params[i] != '{' {
			continue
		}
		end := matchBrace(params, i)
		if end == -1 {
			return
		}
		if name, _ := splitCallbackRef(params[i+1 : end]); IsPath(name, glue) {
			emit(TagCallback, name)
		}
		i = end
	}
}

// templateScan holds the tags of a template that the parser would look at:
// everything outside comments and noparse content.
type templateScan struct {
	text   string
	glue   string
	tags   []scan.Tag
	issues []Issue
}

type span struct{ start, end int }

func scanTemplate(text, glue string) *templateScan {
	ts := &templateScan{text: text, glue: glue}
	skipped := ts.commentSpans()

	inside := func(pos int) bool {
		for _, sp := range skipped {
			if pos >= sp.start && pos < sp.end {
				return true
			}
		}
		return false
	}

	for _, tag := range scan.All(text) {
		if inside(tag.Start) {
			continue
		}
		ts.tags = append(ts.tags, tag)
		if tag.Body != "noparse" || tag.SelfClosing {
			continue
		}
		block, ok := scan.MatchBlock(text, tag)
		if !ok {
			ts.addIssue(IssueSeverityWarning, IssueCodeControlBlockMismatch, "{{ noparse }} is never closed and stays as text", tag, "")
			continue
		}
		skipped = append(skipped, span{block.Open.End, block.Close.Start})
	}
	return ts
}

// commentSpans returns the ranges of terminated comments. An unterminated
// one is reported and left alone, as Parse does.
func (ts *templateScan) commentSpans() []span {
	var spans []span
	pos := 0
	for {
		start := strings.Index(ts.text[pos:], "{{#")
		if start == -1 {
			return spans
		}
		start += pos
		end := strings.Index(ts.text[start+3:], "#}}")
		if end == -1 {
			ts.addIssue(IssueSeverityWarning, IssueCodeSyntaxError, "comment is never closed and stays as text",
				scan.Tag{Start: start, End: len(ts.text)}, "")
			return spans
		}
		end += start + 3 + 3
		spans = append(spans, span{start, end})
		pos = end
	}
}

type validationFrame struct {
	tag     scan.Tag
	kind    controlKind
	expr    string
	sawElse bool
}

func (ts *templateScan) validate() {
	var stack []validationFrame
	matchedClosers := make(map[int]bool)

	for _, tag := range ts.tags {
		body := tag.Body
		if body == "" {
			ts.addIssue(IssueSeverityError, IssueCodeSyntaxError, "empty template tag", tag, "")
			continue
		}
		if strings.HasPrefix(body, "*") {
			if !recursiveMarker.MatchString(tag.Raw(ts.text)) {
				ts.addIssue(IssueSeverityWarning, IssueCodeSyntaxError, "malformed recursive marker, expected {{ *recursive key* }}", tag, "")
			}
			continue
		}

		if kind, expr, ok := classifyControl(body); ok {
			switch kind {
			case controlIf, controlUnless:
				ts.checkCondition(kind, expr, tag)
				stack = append(stack, validationFrame{tag: tag, kind: kind, expr: expr})
			case controlElseIf, controlElseUnless:
				switch {
				case len(stack) == 0:
					ts.addIssue(IssueSeverityError, IssueCodeControlBlockMismatch, fmt.Sprintf("{{ %s }} must be inside an {{ if }} block", kind), tag, expr)
				case stack[len(stack)-1].sawElse:
					ts.addIssue(IssueSeverityError, IssueCodeControlBlockMismatch, fmt.Sprintf("{{ %s }} cannot appear after {{ else }}", kind), tag, expr)
				}
				ts.checkCondition(kind, expr, tag)
			case controlElse:
				switch {
				case len(stack) == 0:
					ts.addIssue(IssueSeverityError, IssueCodeControlBlockMismatch, "{{ else }} has no matching {{ if }}", tag, "")
				case stack[len(stack)-1].sawElse:
					ts.addIssue(IssueSeverityError, IssueCodeControlBlockMismatch, "{{ else }} can only appear once in an {{ if }} block", tag, "")
				default:
					stack[len(stack)-1].sawElse = true
				}
			case controlEndIf:
				if len(stack) == 0 {
					ts.addIssue(IssueSeverityError, IssueCodeControlBlockMismatch, "{{ endif }} has no matching {{ if }}", tag, "")
					continue
				}
				stack = stack[:len(stack)-1]
			}
			continue
		}

		if name, closer := tag.Closer(); closer {
			if !matchedClosers[tag.Start] && name != "noparse" {
				ts.addIssue(IssueSeverityWarning, IssueCodeControlBlockMismatch, fmt.Sprintf("{{ /%s }} closes no block and stays as text", name), tag, "")
			}
			continue
		}

		name := tag.Name()
		switch {
		case name == "noparse":
			if block, ok := scan.MatchBlock(ts.text, tag); ok {
				matchedClosers[block.Close.Start] = true
			}
		case isControlKeyword(name):
			ts.addIssue(IssueSeverityWarning, IssueCodeSyntaxError, fmt.Sprintf("malformed {{ %s }} tag stays as text", name), tag, "")
		case !IsPath(name, ts.glue):
			ts.addIssue(IssueSeverityWarning, IssueCodeSyntaxError, fmt.Sprintf("%q is not a variable, loop or callback name; the tag stays as text", name), tag, "")
		case !tag.SelfClosing:
			if block, ok := scan.MatchBlock(ts.text, tag); ok {
				matchedClosers[block.Close.Start] = true
			}
		}
	}

	for _, open := range stack {
		ts.addIssue(IssueSeverityError, IssueCodeControlBlockMismatch,
			fmt.Sprintf("missing {{ endif }} for %s", open.tag.Raw(ts.text)), open.tag, open.expr)
	}

	if idx := strings.LastIndex(ts.text, "{{"); idx != -1 && !strings.Contains(ts.text[idx:], "}}") && !strings.HasPrefix(ts.text[idx:], "{{#") {
		ts.addIssue(IssueSeverityWarning, IssueCodeSyntaxError, "tag is never closed and stays as text",
			scan.Tag{Start: idx, End: len(ts.text)}, "")
	}
}

func (ts *templateScan) checkCondition(kind controlKind, expr string, tag scan.Tag) {
	if _, err := parseCondition(expr, ts.glue); err != nil {
		ts.addIssue(IssueSeverityError, IssueCodeUnsupportedExpr, fmt.Sprintf("unsupported %s expression: %v", kind, err), tag, expr)
	}
}

func (ts *templateScan) addIssue(severity IssueSeverity, code IssueCode, message string, tag scan.Tag, expr string) {
	ts.issues = append(ts.issues, Issue{
		Severity:   severity,
		Code:       code,
		Message:    message,
		Raw:        tag.Raw(ts.text),
		Expression: expr,
		Location:   locate(ts.text, tag.Start),
	})
}

// locate turns a byte offset into a Location
func locate(text string, offset int) Location {
	before := text[:offset]
	line := strings.Count(before, "\n") + 1
	column := offset - (strings.LastIndexByte(before, '\n') + 1) + 1
	return Location{Offset: offset, Line: line, Column: column}
}

func sortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		left, right := issues[i], issues[j]
		if left.Location.Offset != right.Location.Offset {
			return left.Location.Offset < right.Location.Offset
		}
		if left.Code != right.Code {
			return left.Code < right.Code
		}
		return left.Message < right.Message
	})
}
