package lex

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(opts ...Option) *Parser {
	return NewWithOptions(append([]Option{WithLogger(NewNopLogger())}, opts...)...)
}

func TestParse(t *testing.T) {
	data := Map(
		P("name", String("Dan")),
		P("zero", Int(0)),
		P("zerof", Number(0.0)),
		P("str0", String("0")),
		P("empty", String("")),
		P("nothing", Null()),
		P("yes", Bool(true)),
		P("obj", StringLike(stringer(""))),
		P("user", Map(P("first", String("Ada")), P("last", String("Lovelace")))),
		P("list", Seq(String("x"), String("y"))),
		P("none", Seq()),
		P("posts", Seq(
			Map(P("title", String("Hello")), P("draft", Bool(false))),
			Map(P("title", String("World")), P("draft", Bool(true))),
		)),
		P("pages", Map(
			P("home", Map(P("v", Int(1)))),
			P("about", Map(P("v", Int(2)))),
		)),
		P("snippet", String("{{ name }}")),
	)

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "text without tags is unchanged",
			template: "Hello, world. <b>ok</b> { single } braces",
			want:     "Hello, world. <b>ok</b> { single } braces",
		},
		{
			name:     "variables",
			template: "Hi {{ name }} and {{user.first}} {{ user.last }}",
			want:     "Hi Dan and Ada Lovelace",
		},
		{
			name:     "falsy values render their string form",
			template: "[{{ zero }}][{{ zerof }}][{{ str0 }}][{{ empty }}][{{ nothing }}][{{ obj }}]",
			want:     "[0][0][0][][][]",
		},
		{
			name:     "booleans",
			template: "[{{ yes }}]",
			want:     "[1]",
		},
		{
			name:     "unresolved variable without callback renders nothing",
			template: "a{{ missing }}b",
			want:     "ab",
		},
		{
			name:     "collections render nothing as variables",
			template: "[{{ list }}]",
			want:     "[]",
		},
		{
			name:     "numeric segments index sequences",
			template: "{{ list.1 }}|{{ posts.0.title }}{{ if posts.1.draft }}*{{ endif }}|{{ list.5 }}",
			want:     "y|Hello*|",
		},
		{
			name:     "comments are removed",
			template: "a{{# hidden {{ name }} #}}b",
			want:     "ab",
		},
		{
			name:     "noparse content is verbatim",
			template: "{{ noparse }}{{ name }}{{ if x }}{{ /noparse }} {{ name }}",
			want:     "{{ name }}{{ if x }} Dan",
		},
		{
			name:     "loop over sequence of mappings",
			template: "{{ posts }}<{{ title }}>{{ /posts }}",
			want:     "<Hello><World>",
		},
		{
			name:     "loop with conditional on item fields",
			template: "{{ posts }}{{ title }}{{ if draft }}*{{ endif }};{{ /posts }}",
			want:     "Hello;World*;",
		},
		{
			name:     "loop falls back to root",
			template: "{{ posts }}{{ name }}:{{ title }} {{ /posts }}",
			want:     "Dan:Hello Dan:World ",
		},
		{
			name:     "loop over mapping values",
			template: "{{ pages }}{{ v }}{{ /pages }}",
			want:     "12",
		},
		{
			name:     "loop over scalars keeps enclosing context",
			template: "{{ list }}-{{ name }}{{ /list }}",
			want:     "-Dan-Dan",
		},
		{
			name:     "empty collection loops zero times",
			template: "[{{ none }}x{{ /none }}]",
			want:     "[]",
		},
		{
			name:     "non-collection loop renders nothing",
			template: "[{{ name }}x{{ /name }}]",
			want:     "[]",
		},
		{
			name:     "unresolved loop without callback renders nothing",
			template: "[{{ missing }}x{{ /missing }}]",
			want:     "[]",
		},
		{
			name:     "substituted values are not parsed again",
			template: "{{ snippet }}",
			want:     "{{ name }}",
		},
		{
			name:     "conditionals around loops",
			template: "{{ if list }}{{ list }}.{{ /list }}{{ else }}none{{ endif }}",
			want:     "..",
		},
		{
			name:     "exists on falsy value",
			template: "{{ if exists zero }}yes{{ else }}no{{ endif }}",
			want:     "yes",
		},
		{
			name:     "unresolved variable in if is false",
			template: "{{ if missing }}A{{ else }}B{{ endif }}",
			want:     "B",
		},
		{
			name:     "raw code is escaped",
			template: "<?php echo 1; ?>",
			want:     "&lt;?php echo 1; ?&gt;",
		},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.template, data, nil, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNestedLoops(t *testing.T) {
	data := Map(
		P("title", String("Archive")),
		P("years", Seq(
			Map(
				P("year", Int(2023)),
				P("months", Seq(
					Map(P("name", String("jun")), P("posts", Int(0))),
					Map(P("name", String("jul")), P("posts", Int(3))),
				)),
			),
			Map(
				P("year", Int(2024)),
				P("months", Seq(
					Map(P("name", String("jul")), P("posts", Int(0))),
				)),
			),
		)),
	)

	template := "{{ years }}[{{ year }}:" +
		"{{ months }}{{ if year == 2024 }}!{{ endif }}{{ if name == 'jul' }}J{{ endif }}" +
		"{{ if posts > 0 }}({{ posts }}){{ endif }}{{ name }}{{ title }};{{ /months }}" +
		"]{{ /years }}"

	got, err := newTestParser().Parse(template, data, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "[2023:junArchive;J(3)julArchive;][2024:!JjulArchive;]", got)
}

func TestParseIsIdempotentOnPlainText(t *testing.T) {
	p := newTestParser()
	for _, text := range []string{"", "plain", "a { b } c", "line\nbreaks\n", "{ {not a tag} }"} {
		got, err := p.Parse(text, Map(), nil, false)
		require.NoError(t, err)
		assert.Equal(t, text, got)
	}
}

func TestParseValuesShapedLikePlaceholders(t *testing.T) {
	p := newTestParser()
	forged := []string{
		NewStore().Placeholder(CategoryRendered, "v"),
		CategoryRendered + "_0123456789abcdef",
	}
	for _, token := range forged {
		data := Map(P("a", String("v")), P("b", String(token)))
		for _, tpl := range []string{"{{ a }}|{{ b }}", "{{ b }}|{{ a }}"} {
			want := strings.NewReplacer("{{ a }}", "v", "{{ b }}", token).Replace(tpl)
			for i := 0; i < 50; i++ {
				got, err := p.Parse(tpl, data, nil, false)
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
		}
	}
}

func TestParseAllowRawCode(t *testing.T) {
	p := newTestParser()
	got, err := p.Parse("<?php echo 1; ?>", Map(), nil, true)
	require.NoError(t, err)
	assert.Equal(t, "<?php echo 1; ?>", got)

	raw := newTestParser(WithConfig(&Config{AllowRawCode: true, LogLevel: "off"}))
	got, err = raw.Parse("<? ?>", Map(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "<? ?>", got)
}

func TestScopeGlue(t *testing.T) {
	p := newTestParser()
	assert.Equal(t, ".", p.ScopeGlue())

	data := Map(P("a", Map(P("b", String("nested")))))

	assert.Equal(t, "~", p.ScopeGlue("~"))
	got, err := p.Parse("{{ a~b }}", data, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "nested", got)

	t.Run("glue persists across parses", func(t *testing.T) {
		got, err := p.Parse("{{ if a~b == 'nested' }}ok{{ endif }}", data, nil, false)
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, "~", p.ScopeGlue())
	})

	t.Run("dots still split", func(t *testing.T) {
		got, err := p.Parse("{{ a.b }}", data, nil, false)
		require.NoError(t, err)
		assert.Equal(t, "nested", got)
	})

	t.Run("empty glue is ignored", func(t *testing.T) {
		assert.Equal(t, "~", p.ScopeGlue(""))
	})

	t.Run("option", func(t *testing.T) {
		colon := newTestParser(WithScopeGlue(":"))
		got, err := colon.Parse("{{ a:b }}", data, nil, false)
		require.NoError(t, err)
		assert.Equal(t, "nested", got)
	})
}

func TestCumulativeNoparse(t *testing.T) {
	p := newTestParser()
	p.CumulativeNoparse(true)

	first, err := p.Parse("A{{ noparse }}{{ one }}{{ /noparse }}", Map(), nil, false)
	require.NoError(t, err)
	assert.NotContains(t, first, "{{ one }}")
	assert.Contains(t, first, CategoryNoparse+"_")

	second, err := p.Parse("B{{ noparse }}{{ two }}{{ /noparse }}", Map(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, "A{{ one }}|B{{ two }}", p.InjectNoparse(first+"|"+second))

	t.Run("disabled restores at the end of each parse", func(t *testing.T) {
		p.CumulativeNoparse(false)
		got, err := p.Parse("{{ noparse }}{{ three }}{{ /noparse }}", Map(), nil, false)
		require.NoError(t, err)
		assert.Equal(t, "{{ three }}", got)
	})
}

func TestParseConditionalChains(t *testing.T) {
	data := Map(
		P("x", Int(2)),
		P("zero", Int(0)),
		P("name", String("Dan")),
		P("a", Bool(true)),
		P("b", Bool(false)),
	)

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"if true", "{{ if a }}A{{ endif }}", "A"},
		{"if false", "{{ if b }}A{{ endif }}", ""},
		{"if else", "{{ if b }}A{{ else }}B{{ endif }}", "B"},
		{"elseif", "{{ if x == 1 }}one{{ elseif x == 2 }}two{{ else }}other{{ endif }}", "two"},
		{"first true branch wins", "{{ if x > 0 }}first{{ elseif x == 2 }}second{{ endif }}", "first"},
		{"unless", "{{ unless zero }}U{{ endif }}", "U"},
		{"unless else", "{{ unless name }}U{{ else }}N{{ endif }}", "N"},
		{"elseunless", "{{ if zero }}A{{ elseunless name }}B{{ else }}C{{ endif }}", "C"},
		{"nested", "{{ if a }}A{{ if b }}B{{ else }}b{{ endif }}!{{ endif }}", "Ab!"},
		{"nested in discarded branch", "{{ if b }}{{ if a }}X{{ endif }}{{ else }}Y{{ endif }}", "Y"},
		{"parenthesised keyword", "{{ if(a) }}P{{ endif }}", "P"},
		{"surrounding text", "<{{ if a }}in{{ endif }}>", "<in>"},
		{"variables inside branches", "{{ if a }}{{ name }}{{ endif }}", "Dan"},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.template, data, nil, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConditionalErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{"missing endif", "{{ if a }}x"},
		{"missing endif after else", "{{ if a }}x{{ else }}y"},
		{"stray else", "x{{ else }}y"},
		{"stray endif", "x{{ endif }}"},
		{"stray elseif", "{{ elseif a }}"},
		{"elseif after else", "{{ if a }}{{ else }}{{ elseif b }}{{ endif }}"},
		{"empty condition", "{{ if }}x{{ endif }}"},
		{"malformed expression", "{{ if a == }}x{{ endif }}"},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.template, Map(P("a", Bool(true))), nil, false)
			require.Error(t, err)
			assert.True(t, IsParseError(err), "expected ParseError, got %T: %v", err, err)
		})
	}

	t.Run("malformed expression inside a loop", func(t *testing.T) {
		data := Map(P("items", Seq(Map())))
		_, err := p.Parse("{{ items }}{{ if == }}{{ endif }}{{ /items }}", data, nil, false)
		assert.True(t, IsParseError(err))
	})
}

func TestIndependentPasses(t *testing.T) {
	p := newTestParser()
	data := Map(P("a", Bool(true)), P("name", String("Dan")), P("list", Seq(Map(P("v", Int(1))))))

	t.Run("comments", func(t *testing.T) {
		assert.Equal(t, "ab", p.ParseComments("a{{# c #}}b"))
		assert.Equal(t, "a{{# unterminated", p.ParseComments("a{{# unterminated"))
		assert.Equal(t, "ac{{# open", p.ParseComments("a{{# c #}}c{{# open"))
	})

	t.Run("unterminated comment keeps the rest", func(t *testing.T) {
		got, err := p.Parse("Hello {{# note\n{{ name }} world", data, nil, false)
		require.NoError(t, err)
		assert.Equal(t, "Hello {{# note\nDan world", got)
	})

	t.Run("conditionals leave variables alone", func(t *testing.T) {
		got, err := p.ParseConditionals("{{ if a }}{{ name }}{{ endif }}", data, nil)
		require.NoError(t, err)
		assert.Equal(t, "{{ name }}", got)
	})

	t.Run("variables leave outer conditionals alone", func(t *testing.T) {
		got, err := p.ParseVariables("{{ if a }}{{ name }}{{ endif }}{{ list }}{{ v }}{{ /list }}", data, nil)
		require.NoError(t, err)
		assert.Equal(t, "{{ if a }}Dan{{ endif }}1", got)
	})

	t.Run("callback tags", func(t *testing.T) {
		cb := func(s *Session, tag Tag) (string, error) { return "<" + tag.Name + ">", nil }
		got, err := p.ParseCallbackTags("{{ x.y }} {{ name }}", data, cb)
		require.NoError(t, err)
		assert.Equal(t, "<x.y> <name>", got)

		got, err = p.ParseCallbackTags("{{ x.y }}", data, nil)
		require.NoError(t, err)
		assert.Equal(t, "{{ x.y }}", got)
	})
}

func TestParseConcurrentCallers(t *testing.T) {
	p := newTestParser()
	template := "{{ items }}{{ name }}-{{ n }};{{ /items }}{{ if n }}{{ n }}{{ endif }}"

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := Map(
				P("n", Int(i)),
				P("items", Seq(Map(P("name", String(fmt.Sprintf("w%d", i)))))),
			)
			got, err := p.Parse(template, data, nil, false)
			assert.NoError(t, err)

			want := fmt.Sprintf("w%d-%d;", i, i)
			if i > 0 {
				want += fmt.Sprint(i)
			}
			assert.Equal(t, want, got)
		}(i)
	}
	wg.Wait()
}

func TestPackageParse(t *testing.T) {
	got, err := Parse("{{ greeting }}, {{ who }}!", Map(P("greeting", String("Hello")), P("who", String("world"))), nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", got)
	assert.Same(t, DefaultParser(), DefaultParser())
}

func TestParseLargeLoop(t *testing.T) {
	items := make([]Value, 200)
	for i := range items {
		items[i] = Map(P("i", Int(i)))
	}
	got, err := newTestParser().Parse("{{ items }}{{ if i >= 198 }}{{ i }},{{ endif }}{{ /items }}", Map(P("items", Seq(items...))), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "198,199,", got)
	assert.False(t, strings.Contains(got, CategoryRendered))
}
